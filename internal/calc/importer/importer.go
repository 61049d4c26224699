package importer

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/devalgupta404/IntegrityInspect/internal/calc/assessment"
	"github.com/xuri/excelize/v2"
)

var (
	ErrEmptySheet     = errors.New("sheet has no data rows")
	ErrMissingColumns = errors.New("missing required columns")
)

// Column names recognized in the header row, in any order and case.
const (
	ColID          = "assessment_id"
	ColType        = "building_type"
	ColFloors      = "floors"
	ColMaterial    = "material"
	ColYear        = "year_built"
	ColDamage      = "damage_types"
	ColDescription = "damage_description"
	ColLatitude    = "latitude"
	ColLongitude   = "longitude"
)

var required = []string{ColType, ColFloors, ColMaterial, ColYear}

// RowError points at a spreadsheet row (1-based, header is row 1).
type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

type Row struct {
	Row     int
	Request assessment.Request
}

// Parse reads the first sheet of an xlsx workbook into assessment requests.
// Rows that cannot be parsed are returned as RowErrors; blank rows are skipped.
func Parse(r io.Reader) ([]Row, []RowError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet: %w", err)
	}
	if len(rows) < 2 {
		return nil, nil, ErrEmptySheet
	}

	idx, err := headerIndex(rows[0])
	if err != nil {
		return nil, nil, err
	}

	var out []Row
	var rowErrs []RowError
	for i := 1; i < len(rows); i++ {
		if blank(rows[i]) {
			continue
		}
		req, err := parseRow(rows[i], idx)
		if err != nil {
			rowErrs = append(rowErrs, RowError{Row: i + 1, Error: err.Error()})
			continue
		}
		out = append(out, Row{Row: i + 1, Request: req})
	}
	return out, rowErrs, nil
}

func headerIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", "_")
		if key != "" {
			idx[key] = i
		}
	}
	var missing []string
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return idx, nil
}

func parseRow(row []string, idx map[string]int) (assessment.Request, error) {
	cell := func(col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	floors, err := toInt(cell(ColFloors))
	if err != nil {
		return assessment.Request{}, fmt.Errorf("%s: %w", ColFloors, err)
	}
	year, err := toInt(cell(ColYear))
	if err != nil {
		return assessment.Request{}, fmt.Errorf("%s: %w", ColYear, err)
	}
	lat, err := toFloat(cell(ColLatitude))
	if err != nil {
		return assessment.Request{}, fmt.Errorf("%s: %w", ColLatitude, err)
	}
	lon, err := toFloat(cell(ColLongitude))
	if err != nil {
		return assessment.Request{}, fmt.Errorf("%s: %w", ColLongitude, err)
	}

	return assessment.Request{
		AssessmentID:      cell(ColID),
		BuildingType:      cell(ColType),
		Floors:            floors,
		Material:          cell(ColMaterial),
		YearBuilt:         year,
		DamageTypes:       splitList(cell(ColDamage)),
		DamageDescription: cell(ColDescription),
		Latitude:          lat,
		Longitude:         lon,
	}, nil
}

func toInt(s string) (int, error) {
	if s == "" {
		return 0, errors.New("value required")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v != float64(int(v)) {
		return 0, fmt.Errorf("%q is not a whole number", s)
	}
	return int(v), nil
}

// toFloat treats an empty cell as 0.
func toFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	return v, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

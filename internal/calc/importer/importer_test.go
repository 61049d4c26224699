package importer

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/devalgupta404/IntegrityInspect/internal/calc/assessment"
	"github.com/devalgupta404/IntegrityInspect/internal/calc/loads"
	"github.com/devalgupta404/IntegrityInspect/internal/calc/material"
	"github.com/devalgupta404/IntegrityInspect/internal/logger"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, rows ...[]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func header() []interface{} {
	return []interface{}{"Building Type", "Floors", "Material", "Year Built", "Damage Types", "Latitude", "Longitude", "Assessment ID"}
}

func TestParse(t *testing.T) {
	buf := workbook(t,
		header(),
		[]interface{}{"residential", 5, "concrete", 1995, "", 52.37, 4.89, "site-1"},
		[]interface{}{"industrial", 10, "steel", 1960, "partial_collapse, column_damage;tilting", "", "", ""},
		[]interface{}{},
		[]interface{}{"commercial", "five", "steel", 2001},
		[]interface{}{"commercial", 4.5, "steel", 2001},
	)

	rows, rowErrs, err := Parse(buf)
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, 2, rows[0].Row)
	assert.Equal(t, assessment.Request{
		AssessmentID: "site-1",
		BuildingType: "residential",
		Floors:       5,
		Material:     "concrete",
		YearBuilt:    1995,
		Latitude:     52.37,
		Longitude:    4.89,
	}, rows[0].Request)
	assert.Equal(t, []string{"partial_collapse", "column_damage", "tilting"}, rows[1].Request.DamageTypes)
	assert.Zero(t, rows[1].Request.Latitude)

	require.Len(t, rowErrs, 2)
	assert.Equal(t, 5, rowErrs[0].Row)
	assert.Contains(t, rowErrs[0].Error, "floors")
	assert.Equal(t, 6, rowErrs[1].Row)
	assert.Contains(t, rowErrs[1].Error, "whole number")
}

func TestParse_Errors(t *testing.T) {
	_, _, err := Parse(workbook(t, header()))
	assert.ErrorIs(t, err, ErrEmptySheet)

	_, _, err = Parse(workbook(t, []interface{}{"building_type", "floors"}, []interface{}{"residential", 2}))
	assert.ErrorIs(t, err, ErrMissingColumns)
	assert.Contains(t, err.Error(), "material, year_built")

	_, _, err = Parse(bytes.NewBufferString("not a workbook"))
	assert.Error(t, err)
}

func upload(t *testing.T, h *Handler, body *bytes.Buffer, query string) *httptest.ResponseRecorder {
	t.Helper()
	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	if body != nil {
		part, err := mw.CreateFormFile("file", "buildings.xlsx")
		require.NoError(t, err)
		_, err = part.Write(body.Bytes())
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/api/user/assessments/import"+query, &form)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	h.Import(w, r)
	return w
}

func newHandler() *Handler {
	engine := assessment.NewEngine(material.NewCatalog(), loads.SimplifiedEstimator{},
		assessment.WithClock(clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))))
	return &Handler{Engine: engine, Log: logger.Nop()}
}

func TestHandler_Import(t *testing.T) {
	buf := workbook(t,
		header(),
		[]interface{}{"residential", 5, "concrete", 1995},
		[]interface{}{"residential", 5, "granite", 1995},
		[]interface{}{"residential", "x", "concrete", 1995},
	)

	w := upload(t, newHandler(), buf, "?stride=1000")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res ImportResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, []int{2, 3}, res.Rows)
	require.Len(t, res.RowErrors, 1)
	assert.Equal(t, 4, res.RowErrors[0].Row)
	assert.Len(t, res.Items[0].Result.CollapseFrames, 2)
}

func TestHandler_ImportRejects(t *testing.T) {
	h := newHandler()

	assert.Equal(t, http.StatusBadRequest, upload(t, h, nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, upload(t, h, workbook(t, header()), "").Code)

	onlyBad := workbook(t, header(), []interface{}{"residential", "x", "concrete", 1995})
	w := upload(t, h, onlyBad, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "row_errors")

	w = upload(t, h, workbook(t, header(), []interface{}{"residential", 2, "wood", 2000}), "?stride=zero")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "stride must be a positive integer")

	tall := []interface{}{"commercial", 200, "concrete", 2000}
	w = upload(t, h, workbook(t, header(), tall, tall), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "larger stride")
}

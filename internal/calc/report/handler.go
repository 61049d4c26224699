package report

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/devalgupta404/IntegrityInspect/internal/apierr"
	"github.com/devalgupta404/IntegrityInspect/internal/calc/assessment"
	"github.com/devalgupta404/IntegrityInspect/internal/logger"
	"github.com/devalgupta404/IntegrityInspect/internal/repo"
	"github.com/phpdave11/gofpdf"
)

const maxCriticalRows = 15

// Finder resolves the {id} assessment of the current request, writing the error
// response itself when it cannot.
type Finder interface {
	Lookup(w http.ResponseWriter, r *http.Request) (repo.AssessmentRecord, bool)
}

type Handler struct {
	Records Finder
	Log     *logger.Logger
}

// Generate serves the engineering report of a completed assessment.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.Records.Lookup(w, r)
	if !ok {
		return
	}
	if rec.Status != repo.StatusCompleted || rec.Result == nil {
		apierr.Conflict(w, r, fmt.Sprintf("Assessment is %s, no report available", rec.Status))
		return
	}

	var buf bytes.Buffer
	if err := Write(&buf, rec.Result); err != nil {
		apierr.InternalServerError(w, r, h.Log, "Report generation error", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"assessment-%s.pdf\"", rec.ID))
	w.Write(buf.Bytes())
}

// Summary is the one line executive summary printed under the title.
func Summary(ra *assessment.RiskAssessment) string {
	return fmt.Sprintf("Assessment of %s structure - Risk Level: %s (%d/100, %s confidence)",
		ra.Building.Type, strings.ToUpper(string(ra.RiskLevel)), ra.RiskScore, ra.Confidence)
}

// Write renders ra as an A4 PDF.
func Write(out io.Writer, ra *assessment.RiskAssessment) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Structural Risk Assessment", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Structural Risk Assessment")
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Assessment: %s    Generated: %s", ra.AssessmentID, ra.GeneratedAt.Format("2006-01-02 15:04 MST")))
	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 11)
	pdf.MultiCell(0, 6, Summary(ra), "", "L", false)
	pdf.Ln(4)

	section(pdf, "Building parameters")
	rows(pdf, [][2]string{
		{"Type", string(ra.Building.Type)},
		{"Floors", fmt.Sprintf("%d", ra.Building.Floors)},
		{"Material", materialLabel(ra)},
		{"Year built", fmt.Sprintf("%d (%d years)", ra.Building.YearBuilt, ra.AgeYears)},
		{"Reported damage", joinDamage(ra)},
		{"Location", fmt.Sprintf("%.5f, %.5f", ra.Building.Latitude, ra.Building.Longitude)},
	})
	if ra.Building.DamageDescription != "" {
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, ra.Building.DamageDescription, "", "L", false)
	}

	section(pdf, "Analysis results")
	rows(pdf, [][2]string{
		{"Analysis", string(ra.AnalysisType)},
		{"Safety factor", ra.SafetyFactor.String()},
		{"Failure probability", fmt.Sprintf("%.1f %%", ra.FailureProbability*100)},
		{"Base load", fmt.Sprintf("%.1f kN", ra.BaseLoad)},
		{"Damage multiplier", fmt.Sprintf("%.2f", ra.DamageMultiplier)},
		{"Nominal stress", fmt.Sprintf("%.1f kPa", ra.NominalStress)},
		{"Score breakdown", fmt.Sprintf("age %d, damage %d, safety factor %d, failure time %d",
			ra.Contributions.Age, ra.Contributions.Damage, ra.Contributions.SafetyFactor, ra.Contributions.FailureTime)},
	})

	section(pdf, "Collapse simulation")
	rows(pdf, [][2]string{
		{"Estimated failure time", fmt.Sprintf("%.2f s", ra.FailureTime)},
		{"Frames", fmt.Sprintf("%d", len(ra.CollapseFrames))},
		{"Debris radius", fmt.Sprintf("%.1f m", ra.DebrisFootprint.Radius)},
	})

	section(pdf, "Safety zones")
	for _, z := range ra.SafetyZones {
		rows(pdf, [][2]string{{string(z.Level), fmt.Sprintf("%.0f m radius", z.Radius)}})
	}

	section(pdf, "Critical points")
	if len(ra.CriticalPoints) == 0 {
		pdf.SetFont("Helvetica", "", 10)
		pdf.Cell(0, 6, "No component exceeds the critical stress threshold.")
		pdf.Ln(6)
	}
	for i, cp := range ra.CriticalPoints {
		if i == maxCriticalRows {
			pdf.SetFont("Helvetica", "I", 10)
			pdf.Cell(0, 6, fmt.Sprintf("... and %d more", len(ra.CriticalPoints)-maxCriticalRows))
			pdf.Ln(6)
			break
		}
		label := cp.Component
		if cp.IssueType != "" {
			label += " (" + string(cp.IssueType) + ")"
		}
		rows(pdf, [][2]string{{label, fmt.Sprintf("%.1f kPa, %s", cp.StressLevel, cp.RiskLevel)}})
	}

	section(pdf, "Recommendations")
	pdf.SetFont("Helvetica", "", 10)
	for _, rec := range ra.Recommendations {
		pdf.MultiCell(0, 5, "- "+rec, "", "L", false)
	}

	return pdf.Output(out)
}

func section(pdf *gofpdf.Fpdf, title string) {
	pdf.Ln(3)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, title)
	pdf.Ln(8)
}

func rows(pdf *gofpdf.Fpdf, kv [][2]string) {
	for _, row := range kv {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.Cell(55, 6, row[0])
		pdf.SetFont("Helvetica", "", 10)
		pdf.Cell(0, 6, row[1])
		pdf.Ln(6)
	}
}

func materialLabel(ra *assessment.RiskAssessment) string {
	s := string(ra.Building.Material)
	if ra.MaterialFallback {
		s += " (substituted)"
	}
	return s
}

func joinDamage(ra *assessment.RiskAssessment) string {
	if len(ra.Building.DamageTypes) == 0 {
		return "none"
	}
	parts := make([]string, len(ra.Building.DamageTypes))
	for i, d := range ra.Building.DamageTypes {
		parts[i] = string(d)
	}
	return strings.Join(parts, ", ")
}

package assessment

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/devalgupta404/IntegrityInspect/internal/apierr"
	"github.com/devalgupta404/IntegrityInspect/internal/calc/building"
	"github.com/devalgupta404/IntegrityInspect/internal/calc/collapse"
	"github.com/devalgupta404/IntegrityInspect/internal/calc/material"
	"github.com/devalgupta404/IntegrityInspect/internal/logger"
	"github.com/devalgupta404/IntegrityInspect/internal/metrics"
	"github.com/devalgupta404/IntegrityInspect/internal/middleware"
)

type Handler struct {
	Engine  *Engine
	Log     *logger.Logger
	Metrics *metrics.Metrics
}

// Analyze runs an assessment synchronously. ?stride=n thins the collapse frames.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.BadRequest(w, r, "Invalid request payload", nil)
		return
	}
	stride, err := Stride(r)
	if err != nil {
		apierr.BadRequest(w, r, err.Error(), nil)
		return
	}

	start := time.Now()
	ra, err := h.Engine.Assess(r.Context(), req)
	if err != nil {
		h.Metrics.AssessmentErrors.WithLabelValues(ErrorKind(err)).Inc()
		WriteError(w, r, h.Log, err)
		return
	}
	h.Metrics.AssessmentDuration.Observe(time.Since(start).Seconds())
	h.Metrics.Assessments.WithLabelValues(string(ra.RiskLevel)).Inc()

	middleware.GetLogger(r.Context(), h.Log).Info("Assessment completed", map[string]interface{}{
		"risk_level":    ra.RiskLevel,
		"risk_score":    ra.RiskScore,
		"analysis_type": ra.AnalysisType,
		"fallback":      ra.MaterialFallback,
	})

	apierr.JSON(w, http.StatusOK, Thinned(ra, stride))
}

// Stride reads the optional stride query parameter, 1 when absent.
func Stride(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("stride")
	if raw == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("stride must be a positive integer")
	}
	return n, nil
}

// Thinned returns a shallow copy of ra with every stride-th collapse frame.
func Thinned(ra *RiskAssessment, stride int) *RiskAssessment {
	if stride <= 1 {
		return ra
	}
	out := *ra
	out.CollapseFrames = collapse.Thin(ra.CollapseFrames, stride)
	return &out
}

// ErrorKind labels err for metrics.
func ErrorKind(err error) string {
	if errors.Is(err, building.ErrInvalidInput) || errors.Is(err, material.ErrUnknownMaterial) {
		return "invalid"
	}
	return "internal"
}

// WriteError maps engine errors to the JSON error envelope.
func WriteError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		apierr.ValidationError(w, r, verr.Fields)
	case errors.Is(err, material.ErrUnknownMaterial):
		apierr.BadRequest(w, r, err.Error(), map[string]interface{}{"field": "primary_material"})
	case errors.Is(err, building.ErrInvalidInput):
		apierr.BadRequest(w, r, err.Error(), nil)
	default:
		apierr.InternalServerError(w, r, log, "Assessment failed", err)
	}
}

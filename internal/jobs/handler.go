package jobs

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/devalgupta404/IntegrityInspect/internal/apierr"
	"github.com/devalgupta404/IntegrityInspect/internal/auth"
	"github.com/devalgupta404/IntegrityInspect/internal/calc/assessment"
	"github.com/devalgupta404/IntegrityInspect/internal/logger"
	"github.com/devalgupta404/IntegrityInspect/internal/repo"
	"github.com/gorilla/mux"
)

type Handler struct {
	Pool  *Pool
	Store repo.AssessmentStore
	Log   *logger.Logger
}

type submitResponse struct {
	AssessmentID string      `json:"assessment_id"`
	Status       repo.Status `json:"status"`
}

// Submit queues an assessment and answers 202 with its id.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req assessment.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.BadRequest(w, r, "Invalid request payload", nil)
		return
	}
	userID, _ := auth.UserID(r.Context())

	id, err := h.Pool.Submit(r.Context(), req, userID)
	switch {
	case err == nil:
		apierr.JSON(w, http.StatusAccepted, submitResponse{AssessmentID: id, Status: repo.StatusProcessing})
	case errors.Is(err, ErrQueueFull), errors.Is(err, ErrStopped):
		apierr.Unavailable(w, r, "Assessment queue is full, retry later")
	default:
		h.Pool.metrics.AssessmentErrors.WithLabelValues(assessment.ErrorKind(err)).Inc()
		assessment.WriteError(w, r, h.Log, err)
	}
}

// Status returns the stored record. Results of other users are reported as
// not found.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.Lookup(w, r)
	if !ok {
		return
	}
	stride, err := assessment.Stride(r)
	if err != nil {
		apierr.BadRequest(w, r, err.Error(), nil)
		return
	}
	if rec.Result != nil {
		rec.Result = assessment.Thinned(rec.Result, stride)
	}
	apierr.JSON(w, http.StatusOK, rec)
}

// Lookup loads the {id} record owned by the caller, writing the error response
// when it cannot.
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) (repo.AssessmentRecord, bool) {
	id := mux.Vars(r)["id"]
	rec, err := h.Store.Get(r.Context(), id)
	if errors.Is(err, repo.ErrAssessmentNotFound) {
		apierr.NotFound(w, r, "Assessment not found")
		return rec, false
	}
	if err != nil {
		apierr.InternalServerError(w, r, h.Log, "Failed to load assessment", err)
		return rec, false
	}
	if userID, _ := auth.UserID(r.Context()); rec.UserID != userID {
		apierr.NotFound(w, r, "Assessment not found")
		return repo.AssessmentRecord{}, false
	}
	return rec, true
}

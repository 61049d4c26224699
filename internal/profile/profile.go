package profile

import (
	"net/http"
	"strconv"

	"github.com/devalgupta404/IntegrityInspect/internal/apierr"
	"github.com/devalgupta404/IntegrityInspect/internal/auth"
	"github.com/devalgupta404/IntegrityInspect/internal/logger"
	"github.com/devalgupta404/IntegrityInspect/internal/repo"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

type ProfileHandler struct {
	Store repo.AssessmentStore
	Log   *logger.Logger
}

type Profile struct {
	UserID      int                      `json:"user_id"`
	Login       string                   `json:"login"`
	Assessments []repo.AssessmentSummary `json:"assessments"`
}

// GetProfile returns the caller and their most recent assessments (?limit=n).
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok || userID == 0 {
		apierr.Unauthorized(w, r, "Authentication required")
		return
	}

	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxLimit {
			apierr.BadRequest(w, r, "limit must be between 1 and 100", nil)
			return
		}
		limit = n
	}

	list, err := h.Store.List(r.Context(), userID, limit)
	if err != nil {
		apierr.InternalServerError(w, r, h.Log, "Failed to list assessments", err)
		return
	}
	apierr.JSON(w, http.StatusOK, Profile{UserID: userID, Login: auth.Login(r.Context()), Assessments: list})
}

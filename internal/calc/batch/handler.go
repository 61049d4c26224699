package batch

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/devalgupta404/IntegrityInspect/internal/apierr"
	"github.com/devalgupta404/IntegrityInspect/internal/calc/assessment"
	"github.com/devalgupta404/IntegrityInspect/internal/logger"
)

type Handler struct {
	Engine *assessment.Engine
	Log    *logger.Logger
}

func (h *Handler) Assess(w http.ResponseWriter, r *http.Request) {
	var input Input
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		apierr.BadRequest(w, r, "Invalid request payload", nil)
		return
	}
	stride, err := assessment.Stride(r)
	if err != nil {
		apierr.BadRequest(w, r, err.Error(), nil)
		return
	}
	res, err := Calculate(r.Context(), h.Engine, input, stride)
	if errors.Is(err, ErrNoItems) || errors.Is(err, ErrTooMany) || errors.Is(err, ErrTooLarge) {
		apierr.BadRequest(w, r, err.Error(), nil)
		return
	}
	if err != nil {
		apierr.InternalServerError(w, r, h.Log, "Batch assessment failed", err)
		return
	}
	apierr.JSON(w, http.StatusOK, res)
}

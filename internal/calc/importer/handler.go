package importer

import (
	"errors"
	"net/http"

	"github.com/devalgupta404/IntegrityInspect/internal/apierr"
	"github.com/devalgupta404/IntegrityInspect/internal/calc/assessment"
	"github.com/devalgupta404/IntegrityInspect/internal/calc/batch"
	"github.com/devalgupta404/IntegrityInspect/internal/logger"
	"github.com/devalgupta404/IntegrityInspect/internal/middleware"
)

const maxUpload = 10 << 20

type Handler struct {
	Engine *assessment.Engine
	Log    *logger.Logger
}

type ImportResult struct {
	batch.Result
	// Rows maps each batch item back to its spreadsheet row.
	Rows      []int      `json:"rows"`
	RowErrors []RowError `json:"row_errors,omitempty"`
}

// Import assesses every building of an uploaded xlsx sheet (form field "file").
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	file, _, err := r.FormFile("file")
	if err != nil {
		apierr.BadRequest(w, r, "File required", nil)
		return
	}
	defer file.Close()

	stride, err := assessment.Stride(r)
	if err != nil {
		apierr.BadRequest(w, r, err.Error(), nil)
		return
	}

	rows, rowErrs, err := Parse(file)
	if err != nil {
		apierr.BadRequest(w, r, err.Error(), nil)
		return
	}
	if len(rows) == 0 {
		apierr.BadRequest(w, r, "No valid rows", map[string]interface{}{"row_errors": rowErrs})
		return
	}

	in := batch.Input{Items: make([]assessment.Request, len(rows))}
	lines := make([]int, len(rows))
	for i, row := range rows {
		in.Items[i] = row.Request
		lines[i] = row.Row
	}
	res, err := batch.Calculate(r.Context(), h.Engine, in, stride)
	if errors.Is(err, batch.ErrTooMany) || errors.Is(err, batch.ErrTooLarge) {
		apierr.BadRequest(w, r, err.Error(), nil)
		return
	}
	if err != nil {
		apierr.InternalServerError(w, r, h.Log, "Import failed", err)
		return
	}

	middleware.GetLogger(r.Context(), h.Log).Info("Workbook imported", map[string]interface{}{
		"rows":     len(rows),
		"failed":   res.Failed,
		"rejected": len(rowErrs),
	})
	apierr.JSON(w, http.StatusOK, ImportResult{Result: res, Rows: lines, RowErrors: rowErrs})
}

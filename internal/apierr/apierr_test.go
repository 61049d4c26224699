package apierr

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/devalgupta404/IntegrityInspect/internal/logger"
	"github.com/devalgupta404/IntegrityInspect/internal/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h http.HandlerFunc) (*httptest.ResponseRecorder, ErrorResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/x", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-1")
	middleware.RequestID(h).ServeHTTP(w, req)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestBadRequest(t *testing.T) {
	w, body := serve(t, func(w http.ResponseWriter, r *http.Request) {
		BadRequest(w, r, "bad payload", map[string]interface{}{"field": "floors"})
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, ErrBadRequest, body.Error.Code)
	assert.Equal(t, "bad payload", body.Error.Message)
	assert.Equal(t, "floors", body.Error.Details["field"])
	assert.Equal(t, "req-1", body.Error.RequestID)
}

func TestStatusHelpers(t *testing.T) {
	tests := []struct {
		name   string
		fn     http.HandlerFunc
		status int
		code   string
	}{
		{"not found", func(w http.ResponseWriter, r *http.Request) { NotFound(w, r, "gone") }, http.StatusNotFound, ErrNotFound},
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) { Unauthorized(w, r, "no") }, http.StatusUnauthorized, ErrUnauthorized},
		{"conflict", func(w http.ResponseWriter, r *http.Request) { Conflict(w, r, "dup") }, http.StatusConflict, ErrConflict},
		{"rate", func(w http.ResponseWriter, r *http.Request) { TooManyRequests(w, r) }, http.StatusTooManyRequests, ErrTooManyRequests},
		{"unavailable", func(w http.ResponseWriter, r *http.Request) { Unavailable(w, r, "full") }, http.StatusServiceUnavailable, ErrUnavailable},
		{"internal", func(w http.ResponseWriter, r *http.Request) {
			InternalServerError(w, r, logger.Nop(), "failed", errors.New("db down"))
		}, http.StatusInternalServerError, ErrInternalServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := serve(t, tt.fn)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
}

func TestInternalServerErrorHidesCause(t *testing.T) {
	w, body := serve(t, func(w http.ResponseWriter, r *http.Request) {
		InternalServerError(w, r, logger.Nop(), "Failed to store assessment", errors.New("pq: connection refused"))
	})
	assert.NotContains(t, w.Body.String(), "connection refused")
	assert.Equal(t, "Failed to store assessment", body.Error.Message)
}

func TestValidationError(t *testing.T) {
	type payload struct {
		Floors int    `validate:"gte=1,lte=200"`
		Type   string `validate:"required"`
	}
	err := validator.New().Struct(payload{Floors: 500})
	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))

	w, body := serve(t, func(w http.ResponseWriter, r *http.Request) {
		ValidationError(w, r, verrs)
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrValidation, body.Error.Code)
	assert.Equal(t, "Must be less than or equal to 200", body.Error.Details["payload.Floors"])
	assert.Equal(t, "This field is required", body.Error.Details["payload.Type"])
}

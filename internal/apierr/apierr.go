package apierr

import (
	"encoding/json"
	"net/http"

	"github.com/devalgupta404/IntegrityInspect/internal/logger"
	"github.com/devalgupta404/IntegrityInspect/internal/middleware"
	"github.com/go-playground/validator/v10"
)

const (
	ErrNotFound        = "NOT_FOUND"
	ErrBadRequest      = "BAD_REQUEST"
	ErrInternalServer  = "INTERNAL_SERVER_ERROR"
	ErrValidation      = "VALIDATION_ERROR"
	ErrUnauthorized    = "UNAUTHORIZED"
	ErrConflict        = "CONFLICT"
	ErrTooManyRequests = "TOO_MANY_REQUESTS"
	ErrUnavailable     = "SERVICE_UNAVAILABLE"
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func write(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]interface{}) {
	JSON(w, status, ErrorResponse{Error: ErrorDetail{
		Code:      code,
		Message:   message,
		Details:   details,
		RequestID: middleware.GetRequestID(r.Context()),
	}})
}

func BadRequest(w http.ResponseWriter, r *http.Request, message string, details map[string]interface{}) {
	write(w, r, http.StatusBadRequest, ErrBadRequest, message, details)
}

func NotFound(w http.ResponseWriter, r *http.Request, message string) {
	write(w, r, http.StatusNotFound, ErrNotFound, message, nil)
}

func Unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	write(w, r, http.StatusUnauthorized, ErrUnauthorized, message, nil)
}

func Conflict(w http.ResponseWriter, r *http.Request, message string) {
	write(w, r, http.StatusConflict, ErrConflict, message, nil)
}

func TooManyRequests(w http.ResponseWriter, r *http.Request) {
	write(w, r, http.StatusTooManyRequests, ErrTooManyRequests, "Too many requests, try again later", nil)
}

func Unavailable(w http.ResponseWriter, r *http.Request, message string) {
	write(w, r, http.StatusServiceUnavailable, ErrUnavailable, message, nil)
}

// InternalServerError logs err and hides it from the client.
func InternalServerError(w http.ResponseWriter, r *http.Request, log *logger.Logger, message string, err error) {
	middleware.GetLogger(r.Context(), log).Error("Internal server error", err, map[string]interface{}{
		"message": message,
		"path":    r.URL.Path,
		"method":  r.Method,
	})
	write(w, r, http.StatusInternalServerError, ErrInternalServer, message, nil)
}

// ValidationError reports each failed field with a readable message.
func ValidationError(w http.ResponseWriter, r *http.Request, errs validator.ValidationErrors) {
	details := make(map[string]interface{}, len(errs))
	for _, fe := range errs {
		details[fe.Namespace()] = FieldMessage(fe)
	}
	write(w, r, http.StatusBadRequest, ErrValidation, "Validation failed for one or more fields", details)
}

func FieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "min", "gte":
		return "Must be greater than or equal to " + fe.Param()
	case "max", "lte":
		return "Must be less than or equal to " + fe.Param()
	case "gt":
		return "Must be greater than " + fe.Param()
	case "lt":
		return "Must be less than " + fe.Param()
	case "oneof":
		return "Must be one of: " + fe.Param()
	case "email":
		return "Must be a valid email address"
	case "uuid":
		return "Must be a valid UUID"
	default:
		return "Validation failed for tag: " + fe.Tag()
	}
}

package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	mw "github.com/lorrc/rx-dashboard-backend/internal/adapters/primary/http/middleware"
	apperrors "github.com/lorrc/rx-dashboard-backend/internal/core/errors"
)

// statusClientClosedRequest is the non-standard status logged when the
// caller hangs up before the chart is ready.
const statusClientClosedRequest = 499

// ErrorResponse is the standard JSON error response format
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// ValidationErrorResponse includes field-level validation errors
type ValidationErrorResponse struct {
	Error     string              `json:"error"`
	Code      string              `json:"code"`
	RequestID string              `json:"request_id,omitempty"`
	Fields    map[string][]string `json:"fields,omitempty"`
}

// errorMapping ties a sentinel error to the response it produces. Entries
// are tried in order, so more specific sentinels come first.
type errorMapping struct {
	target  error
	status  int
	code    string
	message string // empty means the error's own text is safe to show
}

var errorMappings = []errorMapping{
	{apperrors.ErrUnknownChart, http.StatusNotFound, "CHART_NOT_FOUND", "Chart not found"},
	{apperrors.ErrUnknownDataset, http.StatusNotFound, "DATASET_NOT_FOUND", "Dataset not found"},
	{apperrors.ErrNotFound, http.StatusNotFound, "NOT_FOUND", "Resource not found"},
	{apperrors.ErrInvalidGranularity, http.StatusBadRequest, "VALIDATION_ERROR", ""},
	{apperrors.ErrNegativeLimit, http.StatusBadRequest, "VALIDATION_ERROR", ""},
	{apperrors.ErrInvalidDate, http.StatusBadGateway, "UPSTREAM_DATA_INVALID", "The warehouse returned an invalid date"},
	{apperrors.ErrWarehouseUnavailable, http.StatusServiceUnavailable, "WAREHOUSE_UNAVAILABLE", "The data warehouse is currently unavailable"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "WAREHOUSE_TIMEOUT", "The data warehouse did not respond in time"},
	{context.Canceled, statusClientClosedRequest, "REQUEST_CANCELLED", "The request was cancelled"},
}

var internalError = errorMapping{
	status:  http.StatusInternalServerError,
	code:    "INTERNAL_ERROR",
	message: "An unexpected error occurred",
}

// ErrorHandler turns service errors into JSON error responses and logs them.
type ErrorHandler struct {
	logger *slog.Logger
}

// NewErrorHandler creates a new error handler with the given logger
func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle writes the response err maps to. Unrecognised errors become a
// generic 500 so internal detail never reaches the client.
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	requestID := mw.GetRequestID(r.Context())
	w.Header().Set("Cache-Control", "no-store")

	var verrs *apperrors.ValidationErrors
	if errors.As(err, &verrs) {
		h.log(r, http.StatusUnprocessableEntity, err)
		WriteJSON(w, http.StatusUnprocessableEntity, ValidationErrorResponse{
			Error:     "Validation failed",
			Code:      "VALIDATION_ERROR",
			RequestID: requestID,
			Fields:    verrs.Errors,
		})
		return
	}

	m := mapError(err)
	message := m.message
	if message == "" {
		message = err.Error()
	}

	h.log(r, m.status, err)
	WriteJSON(w, m.status, ErrorResponse{
		Error:     message,
		Code:      m.code,
		RequestID: requestID,
	})
}

func mapError(err error) errorMapping {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m
		}
	}
	return internalError
}

func (h *ErrorHandler) log(r *http.Request, status int, err error) {
	level := slog.LevelInfo
	switch {
	case status == statusClientClosedRequest:
		level = slog.LevelDebug
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}

	h.logger.LogAttrs(r.Context(), level, "request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status_code", status),
		slog.String("error", err.Error()),
	)
}

// HandleError reports err through handler and returns true when err is
// non-nil, so handlers can write: if HandleError(w, r, err, h.errorHandler) { return }
func HandleError(w http.ResponseWriter, r *http.Request, err error, handler *ErrorHandler) bool {
	if err != nil {
		handler.Handle(w, r, err)
		return true
	}
	return false
}

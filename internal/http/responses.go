package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"shopledger/internal/core"
	applog "shopledger/internal/log"
)

type successEnvelope struct {
	Data any `json:"data"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// errorMeta maps an error class onto its HTTP rendering. Classes with a
// public message never expose the underlying error text.
type errorMeta struct {
	status        int
	code          string
	publicMessage string
}

var errRateLimited = errors.New("rate limit exceeded, try again later")

var errorMetadata = map[string]errorMeta{
	"validation_error": {http.StatusUnprocessableEntity, "VALIDATION_ERROR", ""},
	"conflict_error":   {http.StatusConflict, "CONFLICT", ""},
	"not_found_error":  {http.StatusNotFound, "NOT_FOUND", ""},
	"not_confirmed":    {http.StatusPreconditionRequired, "NOT_CONFIRMED", ""},
	"state_conflict":   {http.StatusConflict, "STATE_CONFLICT", ""},
	"auth_error":       {http.StatusUnauthorized, "UNAUTHENTICATED", ""},
	"partial_failure":  {http.StatusInternalServerError, "PARTIAL_FAILURE", ""},
	"remote_failure":   {http.StatusBadGateway, "REMOTE_FAILURE", "backend request failed"},
	"rate_limited":     {http.StatusTooManyRequests, "RATE_LIMITED", ""},
	"internal_error":   {http.StatusInternalServerError, "INTERNAL_ERROR", "unexpected error"},
}

// detailedError attaches a payload for the error envelope's details field.
type detailedError struct {
	err     error
	details any
}

func (e *detailedError) Error() string { return e.err.Error() }
func (e *detailedError) Unwrap() error { return e.err }

func withDetails(err error, details any) error {
	if err == nil {
		return nil
	}
	return &detailedError{err: err, details: details}
}

func metaFor(err error) errorMeta {
	if errors.Is(err, errRateLimited) {
		return errorMetadata["rate_limited"]
	}
	if m, ok := errorMetadata[core.Kind(err)]; ok {
		return m
	}
	return errorMetadata["internal_error"]
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, successEnvelope{Data: data})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	meta := metaFor(err)

	payload := errorEnvelope{Error: apiError{Code: meta.code, Message: meta.publicMessage}}
	if payload.Error.Message == "" {
		payload.Error.Message = err.Error()
	}
	var de *detailedError
	if errors.As(err, &de) {
		payload.Error.Details = de.details
	}

	if meta.status >= http.StatusInternalServerError {
		logger := applog.FromContext(r.Context())
		fields := applog.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", "")
		fields["error_code"] = meta.code
		applog.NewStructuredLogger(logger).
			LogError(r.Context(), "Request failed", err, logger.Component(), opFor(r.Method), fields)
	}

	writeJSON(w, meta.status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "component", applog.ComponentHTTP, "error", err)
	}
}

func opFor(method string) string {
	switch method {
	case http.MethodGet:
		return applog.OpRead
	case http.MethodPost:
		return applog.OpCreate
	case http.MethodPut, http.MethodPatch:
		return applog.OpUpdate
	case http.MethodDelete:
		return applog.OpDelete
	}
	return method
}

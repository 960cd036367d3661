// Package handler is the HTTP layer of both services. Handlers decode
// requests, call a service and encode the result; they hold no business
// rules of their own.
//
// Every error response has the same shape:
//
//	{"error": "not_found", "message": "post not found with id 7"}
//	{"error": "validation_error", "message": "Enter a valid email address.", "field": "email"}
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/unitedblog/internal/apperror"
)

// maxBodyBytes caps request bodies. Posts are the largest payload.
const maxBodyBytes = 1 << 20

// ErrorResponse is the error envelope returned by every endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// writeJSON sets headers and status before the body; headers changed after
// the first write are ignored by net/http.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error onto a status code. Errors that carry no
// *apperror.AppError are internal: the client gets a generic 500 and the
// detail goes to the log.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		logger.Error("unhandled error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	status := http.StatusInternalServerError
	errorType := "internal_error"

	switch {
	case errors.Is(err, apperror.ErrValidation):
		status, errorType = http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		status, errorType = http.StatusUnauthorized, "unauthorized"
		w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	case errors.Is(err, apperror.ErrForbidden):
		status, errorType = http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		status, errorType = http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		status, errorType = http.StatusConflict, "conflict"
	}

	writeJSON(w, status, ErrorResponse{
		Error:   errorType,
		Message: appErr.Message,
		Field:   appErr.Field,
	})
}

// decodeJSON reads a single JSON object from the request body into dst.
// Malformed, empty or oversized bodies become validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			return apperror.ValidationFailed("body", "Request body is required.")
		case errors.As(err, &maxErr):
			return apperror.ValidationFailed("body",
				fmt.Sprintf("Request body must not exceed %d bytes.", maxErr.Limit))
		case errors.As(err, &typeErr) && typeErr.Field != "":
			return apperror.ValidationFailed(typeErr.Field,
				fmt.Sprintf("Invalid value for %q: expected %s.", typeErr.Field, typeErr.Type))
		default:
			return apperror.ValidationFailed("body", "Invalid JSON body.")
		}
	}
	if dec.More() {
		return apperror.ValidationFailed("body", "Request body must contain a single JSON object.")
	}
	return nil
}

// pathID parses the {id} URL parameter.
func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperror.ValidationFailed("id", fmt.Sprintf("Invalid id %q: must be an integer.", raw))
	}
	return id, nil
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed(name, fmt.Sprintf("%s must be an integer.", name))
	}
	return v, nil
}

// NotFound is the router fallback for unknown paths.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Not found."})
}

// MethodNotAllowed is the router fallback for a known path with the wrong verb.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{
		Error:   "method_not_allowed",
		Message: "Method \"" + r.Method + "\" not allowed.",
	})
}

// Package httpapi is the ingress & control surface: it translates
// external HTTP/websocket requests into operations on the core
// components (ticket, queue, assignment, events, subscription) and
// never holds business logic of its own beyond that translation.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ticketflow/ticketd/internal/ticket"
)

// ValidationError marks a malformed or unrecognised request body,
// rejected at the boundary with 400 before any core state changes.
type ValidationError struct{ msg string }

func (e *ValidationError) Error() string { return e.msg }

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// NotFoundError marks an unknown ticket id or a ticket absent from an
// expected queue.
type NotFoundError struct{ msg string }

func (e *NotFoundError) Error() string { return e.msg }

func notFoundErrorf(format string, args ...any) *NotFoundError {
	return &NotFoundError{msg: fmt.Sprintf(format, args...)}
}

// ForbiddenError marks an ownership check failure (release/transfer by
// the wrong agent).
type ForbiddenError struct{ msg string }

func (e *ForbiddenError) Error() string { return e.msg }

func forbiddenErrorf(format string, args ...any) *ForbiddenError {
	return &ForbiddenError{msg: fmt.Sprintf(format, args...)}
}

// writeError maps an error to the appropriate HTTP status and a
// uniform {"error": "..."} body. A *ticket.InvalidStateTransition
// always maps to 400.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var ve *ValidationError
	var nf *NotFoundError
	var fb *ForbiddenError
	var ist *ticket.InvalidStateTransition

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &ve):
		status = http.StatusBadRequest
	case errors.As(err, &nf):
		status = http.StatusNotFound
	case errors.As(err, &fb):
		status = http.StatusForbidden
	case errors.As(err, &ist):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		logger.Error("httpapi: unhandled error", slog.Any("err", err))
	}
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return validationErrorf("malformed request body: %v", err)
	}
	return nil
}

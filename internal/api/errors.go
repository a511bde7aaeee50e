// Package api provides the HTTP handlers and standardized error
// handling for the Lodgeline API.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/lodgeline/lodgeline/internal/middleware"
)

// Common error codes used throughout the API.
const (
	// ErrCodeValidation indicates input validation failure.
	ErrCodeValidation = "validation_error"

	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound = "not_found"

	// ErrCodeConflict indicates a conflict with the current state.
	ErrCodeConflict = "conflict"

	// ErrCodeBadRequest indicates a malformed request.
	ErrCodeBadRequest = "bad_request"

	// ErrCodeForbidden indicates the request is forbidden.
	ErrCodeForbidden = "forbidden"

	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal = "internal_error"

	// ErrCodeInvalidTransition indicates the lifecycle event is not
	// valid in the booking's current status.
	ErrCodeInvalidTransition = "invalid_transition"

	// ErrCodeVersionConflict indicates a concurrent writer advanced the
	// booking first; the client should reload and retry.
	ErrCodeVersionConflict = "version_conflict"

	// ErrCodeInvalidStay indicates check-out is not after check-in.
	ErrCodeInvalidStay = "invalid_stay"

	// ErrCodeRefundExceedsPaid indicates the refund exceeds the net paid
	// amount.
	ErrCodeRefundExceedsPaid = "refund_exceeds_paid"

	// ErrCodeInvoiceNotOpen indicates the invoice is already settled or
	// void.
	ErrCodeInvoiceNotOpen = "invoice_not_open"

	// ErrCodeChainTampered indicates audit chain verification found a
	// broken link.
	ErrCodeChainTampered = "chain_tampered"
)

// ErrorResponse is the standard error response format:
// {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes a standardized JSON error response. Set the error
// code on the context first so the logging middleware records it:
//
//	ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
//	api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "booking not found")
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	middleware.UpdateResponseContext(w, ctx)

	errResp := ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	}

	data, err := json.Marshal(errResp)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

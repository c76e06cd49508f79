// Package errors defines the standard error taxonomy for the ArtKey service.
package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode identifies a class of failure surfaced by the ArtKey service.
type ErrorCode string

const (
	// Input errors
	AK_VALIDATION  ErrorCode = "AK_VALIDATION"  // Malformed or schema-rejected document
	AK_BAD_REQUEST ErrorCode = "AK_BAD_REQUEST" // Bad request shape (method, missing params)

	// Authentication/authorization errors
	AK_AUTHN       ErrorCode = "AK_AUTHN"       // Missing or malformed credentials
	AK_AUTHZ       ErrorCode = "AK_AUTHZ"       // Caller lacks privilege for the operation
	AK_JWT_INVALID ErrorCode = "AK_JWT_INVALID" // Admin JWT failed validation
	AK_JWT_EXPIRED ErrorCode = "AK_JWT_EXPIRED" // Admin JWT expired

	// Record and moderation errors
	AK_NOT_FOUND        ErrorCode = "AK_NOT_FOUND"        // Identifier resolves to nothing visible to the caller
	AK_CONFLICT         ErrorCode = "AK_CONFLICT"         // Token collision or concurrent-update mismatch
	AK_STATUS_INVALID   ErrorCode = "AK_STATUS_INVALID"   // Disallowed lifecycle transition
	AK_APPROVAL_INVALID ErrorCode = "AK_APPROVAL_INVALID" // Disallowed approval-state transition
	AK_MEDIA_SIZE       ErrorCode = "AK_MEDIA_SIZE"       // Upload exceeds the size limit
	AK_MEDIA_TYPE       ErrorCode = "AK_MEDIA_TYPE"       // Upload MIME type not allowed

	// Server errors
	AK_INTERNAL    ErrorCode = "AK_INTERNAL"    // Unexpected failure
	AK_UNAVAILABLE ErrorCode = "AK_UNAVAILABLE" // Store or collaborator timed out; never conflated with not-found
)

// Error is the standard error shape returned by every handler.
// Not-found and validation errors are expected, user-facing outcomes;
// unavailable is surfaced distinctly so the UI can offer a retry instead
// of implying the content never existed.
type Error struct {
	Code          ErrorCode   `json:"code"`
	Message       string      `json:"message"`
	CorrelationID string      `json:"correlationId"`
	Details       interface{} `json:"details,omitempty"`
	HTTPStatus    int         `json:"-"`
}

// New creates an Error with the HTTP status implied by its code.
func New(code ErrorCode, message string, correlationID string) *Error {
	return &Error{
		Code:          code,
		Message:       message,
		CorrelationID: correlationID,
		HTTPStatus:    httpStatusForCode(code),
	}
}

// NewWithDetails creates an Error carrying extra machine-readable details.
func NewWithDetails(code ErrorCode, message string, correlationID string, details interface{}) *Error {
	e := New(code, message, correlationID)
	e.Details = details
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Details != nil {
		return fmt.Sprintf("%s: %s (details: %v)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// httpStatusForCode maps error codes to HTTP status codes.
func httpStatusForCode(code ErrorCode) int {
	switch code {
	case AK_VALIDATION, AK_BAD_REQUEST, AK_MEDIA_SIZE, AK_MEDIA_TYPE:
		return http.StatusBadRequest
	case AK_AUTHN, AK_JWT_INVALID, AK_JWT_EXPIRED:
		return http.StatusUnauthorized
	case AK_AUTHZ:
		return http.StatusForbidden
	case AK_NOT_FOUND:
		return http.StatusNotFound
	case AK_CONFLICT, AK_STATUS_INVALID, AK_APPROVAL_INVALID:
		return http.StatusConflict
	case AK_UNAVAILABLE:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	domainerrors "github.com/causeway-service/causeway_service/internal/domain/errors"
)

// Error codes as constants for consistent error responses across handlers
const (
	// Authentication & Authorization errors
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeForbidden    = "FORBIDDEN"
	ErrCodeInvalidToken = "INVALID_TOKEN"

	// Validation errors
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeValidationError = "VALIDATION_ERROR"
	ErrCodeInvalidID       = "INVALID_ID"

	// Resource errors
	ErrCodeNotFound = "NOT_FOUND"
	ErrCodeConflict = "CONFLICT"

	// Operation errors
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"

	// Webhook errors
	ErrCodeInvalidSignature     = "INVALID_SIGNATURE"
	ErrCodeWebhookNotConfigured = "WEBHOOK_NOT_CONFIGURED"
	ErrCodeWebhookFailed        = "WEBHOOK_PROCESSING_ERROR"
)

// Error messages as constants for consistency
const (
	MsgInvalidRequest     = "Invalid request payload"
	MsgUnauthorized       = "Authentication required"
	MsgInternalError      = "Internal server error"
	MsgServiceUnavailable = "Service temporarily unavailable"
)

// statusForError maps domain sentinels onto HTTP status codes. The
// validation taxonomy is client error, lifecycle rejections are
// conflicts, unknown locks are not found.
func statusForError(err error) int {
	switch {
	case errors.Is(err, domainerrors.ErrUnknownLock),
		errors.Is(err, domainerrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainerrors.ErrInvalidTransition),
		errors.Is(err, domainerrors.ErrProofReused),
		errors.Is(err, domainerrors.ErrLockExpired),
		errors.Is(err, domainerrors.ErrConflict),
		errors.Is(err, domainerrors.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domainerrors.ErrProofInvalid),
		errors.Is(err, domainerrors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domainerrors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domainerrors.ErrRateLimit):
		return http.StatusTooManyRequests
	case errors.Is(err, domainerrors.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case domainerrors.IsValidationFailure(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondDomainError translates a domain error into the standard error
// envelope. Internal errors are masked; everything else keeps its
// taxonomy code and message.
func respondDomainError(c *gin.Context, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		respondError(c, status, ErrCodeInternalError, MsgInternalError, nil)
		return
	}
	respondError(c, status, domainerrors.GetErrorCode(err), err.Error(), domainerrors.GetErrorDetails(err))
}


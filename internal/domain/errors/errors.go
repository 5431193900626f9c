// Package errors provides standardized error types for the domain layer.
// These errors provide consistent error handling across all services
// and enable proper error categorization for HTTP responses.
package errors

import (
	"errors"
	"fmt"
)

// Standard error categories
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput indicates invalid input was provided
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates the request is not authorized
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal error")

	// ErrConflict indicates a conflict with the current state
	ErrConflict = errors.New("conflict")

	// ErrRateLimit indicates rate limit exceeded
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrServiceUnavailable indicates the service is temporarily unavailable
	ErrServiceUnavailable = errors.New("service unavailable")
)

// Intent validation errors
var (
	// ErrInvalidStake indicates a stake amount outside the accepted range
	ErrInvalidStake = errors.New("invalid stake amount")

	// ErrInvalidRate indicates a rate outside the 0..10000 basis point range
	ErrInvalidRate = errors.New("invalid rate")

	// ErrNonPositiveBid indicates a bid with a zero or negative amount
	ErrNonPositiveBid = errors.New("non-positive bid amount")

	// ErrBidSumMismatch indicates the bid amounts do not add up to the declared total
	ErrBidSumMismatch = errors.New("bid sum mismatch")

	// ErrMetadataFormat indicates metadata text missing the required marker
	ErrMetadataFormat = errors.New("metadata format invalid")

	// ErrAssetNameTooLong indicates an asset name exceeding the length bound
	ErrAssetNameTooLong = errors.New("asset name too long")

	// ErrSignatureInvalid indicates a signature that does not verify against
	// the canonical metadata bytes
	ErrSignatureInvalid = errors.New("signature invalid")
)

// Bridge lifecycle errors
var (
	// ErrUnknownLock indicates an operation referencing a lock that does not exist
	ErrUnknownLock = errors.New("unknown lock")

	// ErrInvalidTransition indicates a status change the lifecycle does not allow
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrProofInvalid indicates an unlock proof that fails verification
	ErrProofInvalid = errors.New("unlock proof invalid")

	// ErrProofReused indicates an unlock proof that was already consumed
	ErrProofReused = errors.New("unlock proof already consumed")

	// ErrLockExpired indicates an operation against a reverted lock
	ErrLockExpired = errors.New("lock expired")
)

// errorCodes maps domain sentinels to stable machine-readable codes used
// in API responses. Errors without an entry fall back to their DomainError
// code or UNKNOWN_ERROR.
var errorCodes = []struct {
	err  error
	code string
}{
	{ErrInvalidStake, "INVALID_STAKE"},
	{ErrInvalidRate, "INVALID_RATE"},
	{ErrNonPositiveBid, "NON_POSITIVE_BID"},
	{ErrBidSumMismatch, "BID_SUM_MISMATCH"},
	{ErrMetadataFormat, "METADATA_FORMAT_INVALID"},
	{ErrAssetNameTooLong, "ASSET_NAME_TOO_LONG"},
	{ErrSignatureInvalid, "SIGNATURE_INVALID"},
	{ErrUnknownLock, "UNKNOWN_LOCK"},
	{ErrInvalidTransition, "INVALID_TRANSITION"},
	{ErrProofInvalid, "PROOF_INVALID"},
	{ErrProofReused, "PROOF_REUSED"},
	{ErrLockExpired, "LOCK_EXPIRED"},
	{ErrNotFound, "NOT_FOUND"},
	{ErrConflict, "CONFLICT"},
	{ErrUnauthorized, "UNAUTHORIZED"},
	{ErrRateLimit, "RATE_LIMIT_EXCEEDED"},
}

// DomainError represents a domain-specific error with additional context
type DomainError struct {
	Err     error
	Code    string
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Code
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target
func (e *DomainError) Is(target error) bool {
	if e.Err != nil {
		return errors.Is(e.Err, target)
	}
	return false
}

// NewDomainError creates a new domain error
func NewDomainError(err error, code, message string) *DomainError {
	return &DomainError{
		Err:     err,
		Code:    code,
		Message: message,
	}
}

// WithDetails adds details to the error
func (e *DomainError) WithDetails(details map[string]interface{}) *DomainError {
	e.Details = details
	return e
}

// ValidationError creates a validation error carrying the offending field
func ValidationError(field, message string) *DomainError {
	return &DomainError{
		Err:     ErrInvalidInput,
		Code:    "VALIDATION_ERROR",
		Message: message,
		Details: map[string]interface{}{
			"field": field,
		},
	}
}

// InternalError creates an internal error
func InternalError(message string, err error) *DomainError {
	de := &DomainError{
		Err:     ErrInternal,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
	if err != nil {
		de.Details = map[string]interface{}{
			"cause": err.Error(),
		}
	}
	return de
}

// ConflictError creates a conflict error
func ConflictError(resource, reason string) *DomainError {
	return &DomainError{
		Err:     ErrConflict,
		Code:    "CONFLICT",
		Message: fmt.Sprintf("conflict with %s: %s", resource, reason),
	}
}

// IsValidationFailure reports whether the error belongs to the intent
// validation taxonomy.
func IsValidationFailure(err error) bool {
	for _, s := range []error{
		ErrInvalidStake, ErrInvalidRate, ErrNonPositiveBid, ErrBidSumMismatch,
		ErrMetadataFormat, ErrAssetNameTooLong, ErrSignatureInvalid,
	} {
		if errors.Is(err, s) {
			return true
		}
	}
	return errors.Is(err, ErrInvalidInput)
}

// GetErrorCode extracts the stable machine-readable code for an error.
// Sentinel mappings take precedence over DomainError codes so wrapped
// taxonomy errors keep their canonical code.
func GetErrorCode(err error) string {
	for _, m := range errorCodes {
		if errors.Is(err, m.err) {
			return m.code
		}
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return "UNKNOWN_ERROR"
}

// GetErrorDetails extracts details from a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

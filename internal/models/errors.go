package models

import (
	"errors"
	"fmt"
)

// Error codes for the application's failure taxonomy.
const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeValidation      = "VALIDATION_FAILED"
	CodeNotFound        = "NOT_FOUND"
	CodeGateway         = "GATEWAY_FAILURE"
	CodeAggregation     = "AGGREGATION_FAILED"
)

// AppError represents a custom application error.
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewUnauthenticatedError reports an operation attempted without an identity.
func NewUnauthenticatedError(message string) *AppError {
	return &AppError{Code: CodeUnauthenticated, Message: message}
}

// NewValidationError reports input rejected before any write was attempted.
func NewValidationError(message string) *AppError {
	return &AppError{Code: CodeValidation, Message: message}
}

// NewNotFoundError reports a missing entity, e.g. one deleted mid-fetch.
func NewNotFoundError(resource string, id any) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

// NewGatewayError wraps a store or network failure, potentially transient.
func NewGatewayError(err error) *AppError {
	return &AppError{Code: CodeGateway, Message: "Data gateway failure", Err: err}
}

// NewAggregationError reports that one of the parallel joins for a post
// failed, so the whole aggregation for that post is discarded.
func NewAggregationError(postID string, err error) *AppError {
	return &AppError{
		Code:    CodeAggregation,
		Message: fmt.Sprintf("aggregation failed for post %s", postID),
		Err:     err,
	}
}

// ErrorCode extracts the taxonomy code from err, or empty string.
func ErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsNotFound reports whether err carries the NOT_FOUND code.
func IsNotFound(err error) bool {
	return ErrorCode(err) == CodeNotFound
}

// IsUnauthenticated reports whether err carries the UNAUTHENTICATED code.
func IsUnauthenticated(err error) bool {
	return ErrorCode(err) == CodeUnauthenticated
}

// IsValidation reports whether err carries the VALIDATION_FAILED code.
func IsValidation(err error) bool {
	return ErrorCode(err) == CodeValidation
}

// IsGatewayFailure reports whether err carries the GATEWAY_FAILURE code.
func IsGatewayFailure(err error) bool {
	return ErrorCode(err) == CodeGateway
}

package mcp

import (
	"errors"
	"fmt"

	"github.com/ganot/quilt-tracker/internal/domain/activity"
	"github.com/ganot/quilt-tracker/internal/domain/analytics"
	"github.com/ganot/quilt-tracker/internal/domain/quilt"
	"github.com/ganot/quilt-tracker/internal/domain/usage"
	"github.com/ganot/quilt-tracker/internal/repository"
)

// API error codes.
const (
	CodeAlreadyInUse       = "ALREADY_IN_USE"
	CodeInvalidInterval    = "INVALID_INTERVAL"
	CodeQuiltNotFound      = "QUILT_NOT_FOUND"
	CodePeriodNotFound     = "PERIOD_NOT_FOUND"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeMethodNotFound     = "METHOD_NOT_FOUND"
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) CodeValue() string {
	return e.Code
}

func (e *APIError) MessageValue() string {
	return e.Message
}

func (e *APIError) DetailsValue() any {
	return e.Details
}

func (e *APIError) RecoveryHintValue() string {
	return e.RecoveryHint
}

func invalidInput(format string, args ...any) *APIError {
	return &APIError{Code: CodeInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// MapError maps domain errors to API error codes.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	switch {
	case errors.Is(err, usage.ErrAlreadyInUse):
		return &APIError{Code: CodeAlreadyInUse, Message: "quilt is already in use", RecoveryHint: "Nothing to do; the quilt is already tracked as in use"}
	case errors.Is(err, usage.ErrInvalidInterval):
		return &APIError{Code: CodeInvalidInterval, Message: err.Error(), RecoveryHint: "Use a timestamp that is not in the future and not before the usage started"}
	case errors.Is(err, quilt.ErrQuiltNotFound):
		return &APIError{Code: CodeQuiltNotFound, Message: "quilt not found", RecoveryHint: "Check the ID with list_quilts"}
	case errors.Is(err, repository.ErrNotFound):
		return &APIError{Code: CodePeriodNotFound, Message: "usage period not found", RecoveryHint: "List the quilt's periods with list_usage_periods"}
	case errors.Is(err, usage.ErrStorageUnavailable):
		return &APIError{Code: CodeStorageUnavailable, Message: "storage unavailable", RecoveryHint: "Retry the whole request"}
	case errors.Is(err, quilt.ErrInvalidInput),
		errors.Is(err, quilt.ErrInvalidStatus),
		errors.Is(err, usage.ErrInvalidInput),
		errors.Is(err, activity.ErrInvalidInput),
		errors.Is(err, analytics.ErrInvalidDate):
		return &APIError{Code: CodeInvalidInput, Message: err.Error()}
	default:
		return nil
	}
}

// internal/core/errors.go
package core

import (
	"errors"
	"fmt"
)

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Errorf wraps a formatted cause into base.
func Errorf(base *Error, format string, args ...any) *Error {
	return WrapError(base, fmt.Errorf(format, args...))
}

// CodeOf returns the code of the first *Error in err's chain, or fallback.
func CodeOf(err error, fallback string) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return fallback
}

// Predefined errors
var (
	// Computation errors, local to the caller
	ErrInsufficientHistory = &Error{Code: "INSUFFICIENT_HISTORY", Message: "insufficient price history"}
	ErrEmptySeries         = &Error{Code: "EMPTY_SERIES", Message: "price series has fewer than two points"}
	ErrInvalidParams       = &Error{Code: "INVALID_PARAMS", Message: "invalid strategy parameters"}
	ErrNoValidCandidates   = &Error{Code: "NO_VALID_CANDIDATES", Message: "grid yields no evaluable candidates"}

	// Guardrail denials
	ErrToolNotAllowed      = &Error{Code: "TOOL_NOT_ALLOWED", Message: "tool not allowed"}
	ErrStepCapExceeded     = &Error{Code: "STEP_CAP_EXCEEDED", Message: "step cap exceeded"}
	ErrArgumentOutOfBounds = &Error{Code: "ARGUMENT_OUT_OF_BOUNDS", Message: "argument out of bounds"}
	ErrDuplicateCall       = &Error{Code: "DUPLICATE_CALL", Message: "duplicate tool call"}

	// Data errors
	ErrDataUnavailable = &Error{Code: "DATA_UNAVAILABLE", Message: "price data unavailable"}
	ErrInvalidSeries   = &Error{Code: "INVALID_SERIES", Message: "malformed price series"}

	// Dispatch errors
	ErrToolFailed  = &Error{Code: "TOOL_FAILED", Message: "tool execution failed"}
	ErrUnknownTool = &Error{Code: "UNKNOWN_TOOL", Message: "unknown tool"}
	ErrPlanInvalid = &Error{Code: "PLAN_INVALID", Message: "plan is malformed"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}

	// LLM errors
	ErrLLMFailed = &Error{Code: "LLM_FAILED", Message: "LLM request failed"}
)

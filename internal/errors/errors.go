package errors

import (
	"errors"
	"fmt"
)

// BenchError is the structured error type for cranbench.
// It carries enough context to decide whether a failure is local to one
// configuration or fatal to the whole sweep.
type BenchError struct {
	// Code is the unique error code (e.g., "ERR_402_FORMAT").
	Code string

	// Message is the human-readable error message.
	Message string

	Category Category
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	Retryable bool

	// Suggestion is an actionable hint for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *BenchError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *BenchError) Unwrap() error {
	return e.Cause
}

// Is matches by code, so errors.Is(err, FormatError("", nil)) works for any
// format failure.
func (e *BenchError) Is(target error) bool {
	if t, ok := target.(*BenchError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *BenchError) WithDetail(key, value string) *BenchError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *BenchError) WithSuggestion(suggestion string) *BenchError {
	e.Suggestion = suggestion
	return e
}

// New creates a new BenchError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *BenchError {
	return &BenchError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a BenchError from an existing error.
func Wrap(code string, err error) *BenchError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *BenchError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates an I/O-related error.
func IOError(message string, cause error) *BenchError {
	return New(ErrCodeFileNotFound, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *BenchError {
	return New(ErrCodeInvalidInput, message, cause)
}

// FormatError reports input that does not follow the expected record layout.
func FormatError(message string, cause error) *BenchError {
	return New(ErrCodeFormat, message, cause)
}

// IndexBuildError reports an index that could not be created or populated.
func IndexBuildError(message string, cause error) *BenchError {
	return New(ErrCodeIndexBuild, message, cause)
}

// QuerySyntaxError reports query text the engine's grammar rejects.
func QuerySyntaxError(message string, cause error) *BenchError {
	return New(ErrCodeQuerySyntax, message, cause)
}

// SubprocessError reports a failed launch or non-zero exit of an external tool.
func SubprocessError(message string, cause error) *BenchError {
	return New(ErrCodeSubprocess, message, cause)
}

// AggregationError reports a report directory that could not be read.
func AggregationError(message string, cause error) *BenchError {
	return New(ErrCodeReportDir, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *BenchError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var be *BenchError
	if errors.As(err, &be) {
		return be.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors abort the sweep instead of a single configuration.
func IsFatal(err error) bool {
	var be *BenchError
	if errors.As(err, &be) {
		return be.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code, or "" if err is not a BenchError.
func GetCode(err error) string {
	var be *BenchError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// GetCategory extracts the category, or "" if err is not a BenchError.
func GetCategory(err error) Category {
	var be *BenchError
	if errors.As(err, &be) {
		return be.Category
	}
	return ""
}

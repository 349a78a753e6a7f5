package errors

import (
	stderrors "errors"
	"fmt"
)

// Error is the structured error type for ragstore.
// It carries enough context for logging, CLI presentation and MCP responses.
type Error struct {
	// Code is the unique error code (e.g., "ERR_301_DOCUMENT_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is derived from the code range.
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestion = suggestion
	return e
}

// New creates a new Error with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an Error from an existing error, reusing its message.
func Wrap(code string, err error) *Error {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigurationError reports invalid construction parameters.
func ConfigurationError(message string, cause error) *Error {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ProviderError reports a failed embedding call. The cause is kept intact
// so callers can inspect the provider's own error.
func ProviderError(message string, cause error) *Error {
	return New(ErrCodeEmbeddingFailed, message, cause)
}

// NotFoundError reports a get or delete on an unknown id.
func NotFoundError(id string) *Error {
	return New(ErrCodeNotFound, fmt.Sprintf("document not found: %s", id), nil).
		WithDetail("id", id)
}

// StorageError reports disk or database failures.
func StorageError(message string, cause error) *Error {
	return New(ErrCodeStorageIO, message, cause)
}

// ValidationError reports bad caller input.
func ValidationError(message string, cause error) *Error {
	return New(ErrCodeInvalidInput, message, cause)
}

// DimensionError reports a vector whose length differs from the index dimension.
func DimensionError(want, got int) *Error {
	return New(ErrCodeDimensionMismatch,
		fmt.Sprintf("vector dimension mismatch: expected %d, got %d", want, got), nil).
		WithDetail("expected", fmt.Sprint(want)).
		WithDetail("got", fmt.Sprint(got))
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *Error {
	return New(ErrCodeInternal, message, cause)
}

// As finds the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := As(err); ok {
		return e.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	if e, ok := As(err); ok {
		return e.Severity == SeverityFatal
	}
	return false
}

// IsNotFound reports whether err is a NotFoundError anywhere in its chain.
func IsNotFound(err error) bool {
	return GetCategory(err) == CategoryNotFound
}

// GetCode extracts the error code. Returns empty string if err carries none.
func GetCode(err error) string {
	if e, ok := As(err); ok {
		return e.Code
	}
	return ""
}

// GetCategory extracts the category. Returns empty string if err carries none.
func GetCategory(err error) Category {
	if e, ok := As(err); ok {
		return e.Category
	}
	return ""
}

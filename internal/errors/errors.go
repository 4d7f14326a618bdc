package errors

import (
	stderrors "errors"
	"fmt"
)

// GeoError is the structured error type for geoidx.
// It provides rich context for error handling, logging, and user presentation.
type GeoError struct {
	// Code is the unique error code (e.g., "ERR_207_STORAGE_UNAVAILABLE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Storage, Compute, etc.).
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
func (e *GeoError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *GeoError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with GeoError.
func (e *GeoError) Is(target error) bool {
	if t, ok := target.(*GeoError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *GeoError) WithDetail(key, value string) *GeoError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *GeoError) WithSuggestion(suggestion string) *GeoError {
	e.Suggestion = suggestion
	return e
}

// New creates a new GeoError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *GeoError {
	return &GeoError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a GeoError from an existing error.
// The error's message becomes the GeoError message.
func Wrap(code string, err error) *GeoError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// InvalidConfiguration creates a fatal configuration error.
// Nothing has been indexed when one of these is returned.
func InvalidConfiguration(message string, cause error) *GeoError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// StorageUnavailable creates a fatal error for an unreachable completion
// store or record source.
func StorageUnavailable(message string, cause error) *GeoError {
	return New(ErrCodeStorageUnavailable, message, cause).
		WithSuggestion("Check that the database file exists and is writable, then re-run 'geoidx index' to resume")
}

// TransientCompute creates a record-level error that may succeed on a
// later attempt.
func TransientCompute(message string, cause error) *GeoError {
	return New(ErrCodeComputeTransient, message, cause)
}

// PermanentRecord creates a record-level error that will not succeed
// without changing the record.
func PermanentRecord(message string, cause error) *GeoError {
	return New(ErrCodeRecordPermanent, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *GeoError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *GeoError {
	return New(ErrCodeInternal, message, cause)
}

// As finds the first GeoError in err's chain.
func As(err error) (*GeoError, bool) {
	var ge *GeoError
	if err == nil || !stderrors.As(err, &ge) {
		return nil, false
	}
	return ge, true
}

// IsRetryable checks if an error is retryable.
// Returns true if the chain contains a GeoError with Retryable set.
func IsRetryable(err error) bool {
	ge, ok := As(err)
	return ok && ge.Retryable
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	ge, ok := As(err)
	return ok && ge.Severity == SeverityFatal
}

// IsTransient reports whether err is a TransientComputeError.
func IsTransient(err error) bool {
	return GetCode(err) == ErrCodeComputeTransient || GetCode(err) == ErrCodeComputeTimeout
}

// IsPermanent reports whether err is a PermanentRecordError.
func IsPermanent(err error) bool {
	return GetCode(err) == ErrCodeRecordPermanent
}

// IsStorageUnavailable reports whether err is a StorageUnavailable error.
func IsStorageUnavailable(err error) bool {
	return GetCode(err) == ErrCodeStorageUnavailable
}

// IsInvalidConfiguration reports whether err is an InvalidConfiguration error.
func IsInvalidConfiguration(err error) bool {
	return GetCode(err) == ErrCodeConfigInvalid
}

// GetCode extracts the error code from a GeoError.
// Returns empty string if the chain holds no GeoError.
func GetCode(err error) string {
	if ge, ok := As(err); ok {
		return ge.Code
	}
	return ""
}

// GetCategory extracts the category from a GeoError.
// Returns empty string if the chain holds no GeoError.
func GetCategory(err error) Category {
	if ge, ok := As(err); ok {
		return ge.Category
	}
	return ""
}

// Package errors provides structured error handling for geoidx.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Storage errors (database, disk, locks)
//   - 3XX: Compute errors that may succeed on a later attempt
//   - 4XX: Record and input validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStorage indicates database and disk errors.
	CategoryStorage Category = "STORAGE"
	// CategoryCompute indicates failures of the per-record compute call.
	CategoryCompute Category = "COMPUTE"
	// CategoryValidation indicates record or input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Storage errors (200-299)
	ErrCodeDatabaseNotFound   = "ERR_201_DATABASE_NOT_FOUND"
	ErrCodeRunLocked          = "ERR_202_RUN_LOCKED"
	ErrCodeDiskFull           = "ERR_203_DISK_FULL"
	ErrCodeSchemaMissing      = "ERR_205_SCHEMA_MISSING"
	ErrCodeStorageUnavailable = "ERR_207_STORAGE_UNAVAILABLE"

	// Compute errors (300-399)
	ErrCodeComputeTimeout   = "ERR_301_COMPUTE_TIMEOUT"
	ErrCodeComputeTransient = "ERR_306_COMPUTE_TRANSIENT"

	// Validation errors (400-499)
	ErrCodeInvalidInput    = "ERR_401_INVALID_INPUT"
	ErrCodeRecordNotFound  = "ERR_404_RECORD_NOT_FOUND"
	ErrCodeRecordPermanent = "ERR_407_RECORD_PERMANENT"

	// Internal errors (500-599)
	ErrCodeInternal    = "ERR_501_INTERNAL"
	ErrCodeIndexFailed = "ERR_505_INDEX_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "102" from "ERR_102_CONFIG_INVALID")
	numStr := code[4:7]

	switch numStr[0] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStorage
	case '3':
		return CategoryCompute
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeConfigInvalid, ErrCodeConfigNotFound, ErrCodeStorageUnavailable,
		ErrCodeDiskFull, ErrCodeSchemaMissing, ErrCodeRunLocked, ErrCodeDatabaseNotFound:
		return SeverityFatal
	}

	// Retryable compute errors get warning severity
	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeComputeTimeout, ErrCodeComputeTransient:
		return true
	default:
		return false
	}
}

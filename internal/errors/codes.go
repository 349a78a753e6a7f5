// Package errors provides structured error handling for ragstore.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Embedding provider errors
//   - 3XX: Not found errors
//   - 4XX: Storage errors (disk, database, persisted index)
//   - 5XX: Validation errors
//   - 9XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates invalid construction parameters.
	CategoryConfig Category = "CONFIG"
	// CategoryProvider indicates a failed embedding call.
	CategoryProvider Category = "PROVIDER"
	// CategoryNotFound indicates a missing document or index entry.
	CategoryNotFound Category = "NOT_FOUND"
	// CategoryStorage indicates disk or database failures.
	CategoryStorage Category = "STORAGE"
	// CategoryValidation indicates bad caller input.
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
	ErrCodeConfigNotFound   = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    = "ERR_102_CONFIG_INVALID"
	ErrCodeConfigPermission = "ERR_103_CONFIG_PERMISSION"
	ErrCodeUnknownBackend   = "ERR_104_UNKNOWN_BACKEND"

	// Provider errors (200-299)
	ErrCodeEmbeddingFailed     = "ERR_201_EMBEDDING_FAILED"
	ErrCodeProviderUnavailable = "ERR_202_PROVIDER_UNAVAILABLE"
	ErrCodeProviderTimeout     = "ERR_203_PROVIDER_TIMEOUT"

	// Not found errors (300-399)
	ErrCodeNotFound = "ERR_301_DOCUMENT_NOT_FOUND"

	// Storage errors (400-499)
	ErrCodeStorageIO    = "ERR_401_STORAGE_IO"
	ErrCodeCorruptIndex = "ERR_402_CORRUPT_INDEX"
	ErrCodeDiskFull     = "ERR_403_DISK_FULL"
	ErrCodeIndexFull    = "ERR_404_INDEX_FULL"
	ErrCodeStoreLocked  = "ERR_405_STORE_LOCKED"

	// Validation errors (500-599)
	ErrCodeInvalidInput      = "ERR_501_INVALID_INPUT"
	ErrCodeDimensionMismatch = "ERR_502_DIMENSION_MISMATCH"
	ErrCodeInvalidQuery      = "ERR_503_INVALID_QUERY"
	ErrCodeInvalidAlpha      = "ERR_504_INVALID_ALPHA"

	// Internal errors (900-999)
	ErrCodeInternal = "ERR_901_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "101" from "ERR_101_CONFIG_NOT_FOUND"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryProvider
	case '3':
		return CategoryNotFound
	case '4':
		return CategoryStorage
	case '5':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex, ErrCodeDiskFull, ErrCodeConfigInvalid, ErrCodeUnknownBackend:
		return SeverityFatal
	case ErrCodeNotFound:
		return SeverityInfo
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeProviderTimeout, ErrCodeProviderUnavailable, ErrCodeStoreLocked:
		return true
	default:
		return false
	}
}

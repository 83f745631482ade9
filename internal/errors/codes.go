// Package errors provides structured error handling for cranbench.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (file, disk, report directories)
//   - 4XX: Validation errors (input formats, query syntax)
//   - 5XX: Internal errors (index build, subprocess)
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and disk I/O errors.
	CategoryIO Category = "IO"
	// CategoryValidation indicates malformed input.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates engine and subprocess failures.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal aborts the whole run.
	SeverityFatal Severity = "FATAL"
	// SeverityError fails the current unit of work; the run continues.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO errors (200-299)
	ErrCodeFileNotFound   = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission = "ERR_202_FILE_PERMISSION"
	ErrCodeDirCreate      = "ERR_203_DIR_CREATE"
	ErrCodeFileCreate     = "ERR_204_FILE_CREATE"
	ErrCodeCorruptIndex   = "ERR_205_CORRUPT_INDEX"
	ErrCodeReportDir      = "ERR_207_REPORT_DIR"

	// Validation errors (400-499)
	ErrCodeInvalidInput = "ERR_401_INVALID_INPUT"
	ErrCodeFormat       = "ERR_402_FORMAT"
	ErrCodeQuerySyntax  = "ERR_403_QUERY_SYNTAX"

	// Internal errors (500-599)
	ErrCodeInternal          = "ERR_501_INTERNAL"
	ErrCodeSearchFailed      = "ERR_503_SEARCH_FAILED"
	ErrCodeIndexBuild        = "ERR_505_INDEX_BUILD"
	ErrCodeSubprocess        = "ERR_506_SUBPROCESS"
	ErrCodeSubprocessTimeout = "ERR_507_SUBPROCESS_TIMEOUT"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex, ErrCodeDirCreate, ErrCodeFileCreate, ErrCodeReportDir:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode reports whether another attempt may succeed.
func isRetryableCode(code string) bool {
	return code == ErrCodeSubprocessTimeout
}

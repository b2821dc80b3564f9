// Package errors provides structured error types for lakestage runs.
// Every error carries a category, code, message and retryable flag so the
// orchestrator can report one run-level failure that a downstream scheduler
// can classify without parsing strings.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by pipeline stage.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategorySource     ErrorCategory = "SOURCE"
	ErrCategorySchema     ErrorCategory = "SCHEMA"
	ErrCategoryQuality    ErrorCategory = "QUALITY"
	ErrCategoryTransform  ErrorCategory = "TRANSFORM"
	ErrCategoryCatalog    ErrorCategory = "CATALOG"
	ErrCategoryPartition  ErrorCategory = "PARTITION"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeInvalidRunContext = "INVALID_RUN_CONTEXT"
	CodeInvalidSpec       = "INVALID_SPEC"
	CodeInvalidMapping    = "INVALID_MAPPING"
	CodeInvalidRule       = "INVALID_RULE"
	CodeInvalidPolicy     = "INVALID_POLICY"

	// Source codes
	CodeEmptySource       = "EMPTY_SOURCE"
	CodeUnresolvedFormat  = "UNRESOLVED_FORMAT"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeReadFailed        = "READ_FAILED"

	// Schema codes
	CodeIncompatibleSchema = "INCOMPATIBLE_SCHEMA"

	// Quality codes
	CodeQualityHalt        = "QUALITY_HALT"
	CodeAllRowsQuarantined = "ALL_ROWS_QUARANTINED"

	// Transform codes
	CodeTransformFailed = "TRANSFORM_FAILED"

	// Catalog codes
	CodeTableNotFound = "TABLE_NOT_FOUND"
	CodeCatalogWrite  = "CATALOG_WRITE_FAILED"

	// Partition codes
	CodePurgeFailed  = "PURGE_FAILED"
	CodeAppendFailed = "APPEND_FAILED"
	CodeKeyMismatch  = "PARTITION_KEY_MISMATCH"

	// Storage codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// LakeError is the structured error type used throughout the system.
type LakeError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *LakeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *LakeError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *LakeError) Is(target error) bool {
	var t *LakeError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new LakeError.
func New(category ErrorCategory, code, message string) *LakeError {
	return &LakeError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new LakeError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *LakeError {
	return &LakeError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *LakeError) WithDetails(details map[string]interface{}) *LakeError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var le *LakeError
	if errors.As(err, &le) {
		return le.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a LakeError.
func GetCategory(err error) ErrorCategory {
	var le *LakeError
	if errors.As(err, &le) {
		return le.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a LakeError.
func GetCode(err error) string {
	var le *LakeError
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

// isRetryable reports whether rerunning the whole job can clear the error.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeDownloadFailed:
		return true
	case category == ErrCategoryPartition && code == CodeAppendFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewValidationError(code, message string) *LakeError {
	return New(ErrCategoryValidation, code, message)
}

func NewSourceError(code, message string, cause error) *LakeError {
	return Wrap(ErrCategorySource, code, message, cause)
}

func NewSchemaError(code, message string) *LakeError {
	return New(ErrCategorySchema, code, message)
}

func NewQualityError(code, message string) *LakeError {
	return New(ErrCategoryQuality, code, message)
}

func NewTransformError(message string, cause error) *LakeError {
	return Wrap(ErrCategoryTransform, CodeTransformFailed, message, cause)
}

func NewCatalogError(code, message string, cause error) *LakeError {
	return Wrap(ErrCategoryCatalog, code, message, cause)
}

func NewPartitionError(code, message string, cause error) *LakeError {
	return Wrap(ErrCategoryPartition, code, message, cause)
}

func NewStorageError(code, message string, cause error) *LakeError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewInternalError(message string, cause error) *LakeError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}

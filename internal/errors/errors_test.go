package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestLakeError_Error(t *testing.T) {
	err := New(ErrCategorySource, CodeEmptySource, "no rows")
	expected := "[SOURCE:EMPTY_SOURCE] no rows"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestLakeError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrCategoryStorage, CodeUploadFailed, "upload failed", cause)
	expected := "[STORAGE:UPLOAD_FAILED] upload failed: connection refused"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestLakeError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ErrCategoryPartition, CodePurgeFailed, "purge", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestLakeError_Is(t *testing.T) {
	err1 := New(ErrCategorySchema, CodeIncompatibleSchema, "first")
	err2 := New(ErrCategorySchema, CodeIncompatibleSchema, "second")
	err3 := New(ErrCategorySchema, CodeUnexpected, "different code")

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}

	wrapped := fmt.Errorf("run failed: %w", err1)
	if !errors.Is(wrapped, New(ErrCategorySchema, CodeIncompatibleSchema, "")) {
		t.Error("wrapped error should still match by category+code")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		category  ErrorCategory
		code      string
		retryable bool
	}{
		{ErrCategoryStorage, CodeUploadFailed, true},
		{ErrCategoryStorage, CodeDownloadFailed, true},
		{ErrCategoryStorage, CodeObjectNotFound, false},
		{ErrCategoryPartition, CodeAppendFailed, true},
		{ErrCategoryPartition, CodePurgeFailed, false},
		{ErrCategorySchema, CodeIncompatibleSchema, false},
		{ErrCategoryQuality, CodeQualityHalt, false},
		{ErrCategoryInternal, CodeUnexpected, false},
	}

	for _, tt := range tests {
		err := New(tt.category, tt.code, "test")
		if IsRetryable(err) != tt.retryable {
			t.Errorf("%s:%s retryable=%v, want %v", tt.category, tt.code, IsRetryable(err), tt.retryable)
		}
	}
}

func TestGetCategoryAndCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewQualityError(CodeQualityHalt, "halted"))
	if GetCategory(err) != ErrCategoryQuality {
		t.Errorf("got %q, want %q", GetCategory(err), ErrCategoryQuality)
	}
	if GetCode(err) != CodeQualityHalt {
		t.Errorf("got %q, want %q", GetCode(err), CodeQualityHalt)
	}
	if GetCategory(fmt.Errorf("plain error")) != "" {
		t.Error("non-LakeError should return empty category")
	}
	if GetCode(fmt.Errorf("plain error")) != "" {
		t.Error("non-LakeError should return empty code")
	}
}

func TestWithDetails(t *testing.T) {
	err := NewSchemaError(CodeIncompatibleSchema, "drift")
	detailed := err.WithDetails(map[string]interface{}{"removed": []string{"a"}})

	if detailed.Details["removed"] == nil {
		t.Error("WithDetails should set details")
	}
	if err.Details != nil {
		t.Error("WithDetails should not modify original")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	cause := fmt.Errorf("io error")

	if e := NewValidationError(CodeInvalidSpec, "bad"); e.Category != ErrCategoryValidation {
		t.Error("NewValidationError mismatch")
	}
	if e := NewSourceError(CodeReadFailed, "read", cause); e.Category != ErrCategorySource || !errors.Is(e, cause) {
		t.Error("NewSourceError mismatch")
	}
	if e := NewTransformError("hash", cause); e.Code != CodeTransformFailed {
		t.Error("NewTransformError mismatch")
	}
	if e := NewCatalogError(CodeTableNotFound, "missing", nil); e.Category != ErrCategoryCatalog {
		t.Error("NewCatalogError mismatch")
	}
	if e := NewPartitionError(CodeAppendFailed, "append", cause); !e.Retryable {
		t.Error("NewPartitionError append should be retryable")
	}
	if e := NewStorageError(CodeUploadFailed, "s3 down", cause); e.Category != ErrCategoryStorage {
		t.Error("NewStorageError mismatch")
	}
	if e := NewInternalError("unexpected", cause); e.Code != CodeUnexpected {
		t.Error("NewInternalError mismatch")
	}
}

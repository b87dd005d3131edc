package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLumenError_Unwrap_PreservesOriginalError(t *testing.T) {
	originalErr := errors.New("original error")

	lumenErr := New(ErrCodeFileNotFound, "file not found: test.txt", originalErr)

	require.NotNil(t, lumenErr)
	assert.Equal(t, originalErr, errors.Unwrap(lumenErr))
	assert.True(t, errors.Is(lumenErr, originalErr))
}

func TestLumenError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "input error",
			code:     ErrCodeFileNotFound,
			message:  "file not found",
			expected: "[ERR_101_FILE_NOT_FOUND] file not found",
		},
		{
			name:     "embedding error",
			code:     ErrCodeEmbeddingFailed,
			message:  "onnx session failed",
			expected: "[ERR_301_EMBEDDING_FAILED] onnx session failed",
		},
		{
			name:     "index error",
			code:     ErrCodeIndexCorrupt,
			message:  "vectors.bin truncated",
			expected: "[ERR_402_INDEX_CORRUPT] vectors.bin truncated",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestLumenError_Is_MatchesByCode(t *testing.T) {
	err1 := New(ErrCodeFileNotFound, "file A not found", nil)
	err2 := New(ErrCodeFileNotFound, "file B not found", nil)

	assert.True(t, errors.Is(err1, err2))
}

func TestLumenError_Is_DoesNotMatchDifferentCodes(t *testing.T) {
	err1 := New(ErrCodeFileNotFound, "file not found", nil)
	err2 := New(ErrCodeIndexCorrupt, "index corrupt", nil)

	assert.False(t, errors.Is(err1, err2))
}

func TestLumenError_WithDetails_AddsContext(t *testing.T) {
	err := New(ErrCodeFileNotFound, "file not found", nil)

	err = err.WithDetail("path", "/foo/bar.go")
	err = err.WithDetail("size", "1024")

	assert.Equal(t, "/foo/bar.go", err.Details["path"])
	assert.Equal(t, "1024", err.Details["size"])
}

func TestLumenError_WithSuggestion_AddsSuggestion(t *testing.T) {
	err := New(ErrCodeModelUnavailable, "onnx model missing", nil)

	err = err.WithSuggestion("set LUMEN_MODEL_PATH to a valid onnx file")

	assert.Equal(t, "set LUMEN_MODEL_PATH to a valid onnx file", err.Suggestion)
}

func TestLumenError_CategoryFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantCategory Category
	}{
		{ErrCodeFileNotFound, CategoryInput},
		{ErrCodeInvalidMode, CategoryInput},
		{ErrCodeExtractionFailed, CategoryExtraction},
		{ErrCodeUnsupportedType, CategoryExtraction},
		{ErrCodeEmbeddingFailed, CategoryEmbedding},
		{ErrCodeDimensionMismatch, CategoryEmbedding},
		{ErrCodeIndexFailed, CategoryIndex},
		{ErrCodeStorageFailed, CategoryStorage},
		{ErrCodeOutOfMemory, CategoryResource},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantCategory, err.Category)
		})
	}
}

func TestLumenError_SeverityFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantSeverity Severity
	}{
		{ErrCodeIndexCorrupt, SeverityFatal},
		{ErrCodeDiskFull, SeverityFatal},
		{ErrCodeFileNotFound, SeverityError},
		{ErrCodeLockHeld, SeverityWarning},
		{ErrCodeModelUnavailable, SeverityWarning},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantSeverity, err.Severity)
		})
	}
}

func TestLumenError_RetryableFromCode(t *testing.T) {
	tests := []struct {
		code          string
		wantRetryable bool
	}{
		{ErrCodeLockHeld, true},
		{ErrCodeModelUnavailable, true},
		{ErrCodeFileNotFound, false},
		{ErrCodeIndexCorrupt, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantRetryable, err.Retryable)
		})
	}
}

func TestWrap_CreatesLumenErrorFromError(t *testing.T) {
	originalErr := errors.New("something went wrong")

	lumenErr := Wrap(ErrCodeStorageFailed, originalErr)

	require.NotNil(t, lumenErr)
	assert.Equal(t, ErrCodeStorageFailed, lumenErr.Code)
	assert.Equal(t, "something went wrong", lumenErr.Message)
	assert.Equal(t, originalErr, lumenErr.Cause)
}

func TestInputErr_CreatesInputCategoryError(t *testing.T) {
	err := InputErr("cache_dir does not exist", nil)

	assert.Equal(t, CategoryInput, err.Category)
}

func TestExtractionErr_CreatesExtractionCategoryError(t *testing.T) {
	err := ExtractionErr("cannot decode utf-8", nil)

	assert.Equal(t, CategoryExtraction, err.Category)
}

func TestEmbeddingErr_CreatesEmbeddingCategoryError(t *testing.T) {
	err := EmbeddingErr("onnx session init failed", nil)

	assert.Equal(t, CategoryEmbedding, err.Category)
}

func TestStorageErr_CreatesStorageCategoryError(t *testing.T) {
	err := StorageErr("sqlite busy", nil)

	assert.Equal(t, CategoryStorage, err.Category)
}

func TestIsRetryable_ChecksRetryableFlag(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "retryable lumen error",
			err:      New(ErrCodeLockHeld, "lock held by another process", nil),
			expected: true,
		},
		{
			name:     "non-retryable lumen error",
			err:      New(ErrCodeFileNotFound, "not found", nil),
			expected: false,
		},
		{
			name:     "wrapped retryable error",
			err:      Wrap(ErrCodeModelUnavailable, errors.New("wrapped")),
			expected: true,
		},
		{
			name:     "standard error",
			err:      errors.New("standard error"),
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}

func TestIsFatal_ChecksFatalSeverity(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "fatal index corruption",
			err:      New(ErrCodeIndexCorrupt, "index corrupt", nil),
			expected: true,
		},
		{
			name:     "disk full error",
			err:      New(ErrCodeDiskFull, "no space left", nil),
			expected: true,
		},
		{
			name:     "non-fatal error",
			err:      New(ErrCodeFileNotFound, "not found", nil),
			expected: false,
		},
		{
			name:     "standard error",
			err:      errors.New("standard error"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsFatal(tt.err))
		})
	}
}

package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original provider failure
	originalErr := errors.New("connection refused")

	// When: wrapping it as a ProviderError
	err := ProviderError("embedding failed", originalErr)

	// Then: the original is reachable through the chain
	require.NotNil(t, err)
	assert.Equal(t, originalErr, errors.Unwrap(err))
	assert.True(t, errors.Is(err, originalErr))
}

func TestError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeConfigInvalid,
			message:  "overlap must be smaller than size",
			expected: "[ERR_102_CONFIG_INVALID] overlap must be smaller than size",
		},
		{
			name:     "not found",
			code:     ErrCodeNotFound,
			message:  "document not found: abc",
			expected: "[ERR_301_DOCUMENT_NOT_FOUND] document not found: abc",
		},
		{
			name:     "storage",
			code:     ErrCodeStorageIO,
			message:  "write failed",
			expected: "[ERR_401_STORAGE_IO] write failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestError_Is_MatchesByCode(t *testing.T) {
	err1 := NotFoundError("a")
	err2 := NotFoundError("b")

	assert.True(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, StorageError("x", nil)))
}

func TestError_CategoryFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantCategory Category
	}{
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeUnknownBackend, CategoryConfig},
		{ErrCodeEmbeddingFailed, CategoryProvider},
		{ErrCodeProviderTimeout, CategoryProvider},
		{ErrCodeNotFound, CategoryNotFound},
		{ErrCodeStorageIO, CategoryStorage},
		{ErrCodeCorruptIndex, CategoryStorage},
		{ErrCodeDimensionMismatch, CategoryValidation},
		{ErrCodeInvalidAlpha, CategoryValidation},
		{ErrCodeInternal, CategoryInternal},
		{"bad", CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantCategory, err.Category)
		})
	}
}

func TestError_SeverityAndRetryable(t *testing.T) {
	tests := []struct {
		code          string
		wantSeverity  Severity
		wantRetryable bool
	}{
		{ErrCodeCorruptIndex, SeverityFatal, false},
		{ErrCodeConfigInvalid, SeverityFatal, false},
		{ErrCodeNotFound, SeverityInfo, false},
		{ErrCodeProviderTimeout, SeverityWarning, true},
		{ErrCodeStoreLocked, SeverityWarning, true},
		{ErrCodeEmbeddingFailed, SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test", nil)
			assert.Equal(t, tt.wantSeverity, err.Severity)
			assert.Equal(t, tt.wantRetryable, err.Retryable)
		})
	}
}

func TestPredicates_SeeThroughFmtWrapping(t *testing.T) {
	// Given: a NotFoundError wrapped by fmt.Errorf
	err := fmt.Errorf("delete: %w", NotFoundError("abc"))

	// Then: predicates find it in the chain
	assert.True(t, IsNotFound(err))
	assert.Equal(t, ErrCodeNotFound, GetCode(err))
	assert.False(t, IsNotFound(errors.New("plain")))
	assert.False(t, IsNotFound(nil))
	assert.Equal(t, "", GetCode(errors.New("plain")))
}

func TestDimensionError_CarriesDetails(t *testing.T) {
	err := DimensionError(4, 3)

	assert.Equal(t, CategoryValidation, err.Category)
	assert.Equal(t, "4", err.Details["expected"])
	assert.Equal(t, "3", err.Details["got"])
	assert.Contains(t, err.Error(), "expected 4, got 3")
}

func TestFormatForCLI(t *testing.T) {
	err := StorageError("cannot save index", errors.New("disk full")).
		WithSuggestion("Free disk space and retry")

	out := FormatForCLI(err)

	assert.Contains(t, out, "Error: cannot save index")
	assert.Contains(t, out, "Cause: disk full")
	assert.Contains(t, out, "Hint: Free disk space and retry")
	assert.Contains(t, out, "Code: ERR_401_STORAGE_IO")
	assert.Contains(t, FormatForCLI(errors.New("boom")), "ERR_901_INTERNAL")
	assert.Empty(t, FormatForCLI(nil))
}

func TestFormatJSON(t *testing.T) {
	data, err := FormatJSON(NotFoundError("abc"))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ErrCodeNotFound, decoded["code"])
	assert.Equal(t, "NOT_FOUND", decoded["category"])
	assert.Equal(t, "abc", decoded["details"].(map[string]any)["id"])
}

func TestRetryWithResult_SucceedsAfterFailures(t *testing.T) {
	// Given: a function failing twice
	calls := 0
	cfg := RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}

	// When: retrying
	got, err := RetryWithResult(context.Background(), cfg, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})

	// Then: the third attempt wins
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
}

func TestRetryWithResult_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	cfg := RetryConfig{
		MaxRetries:   5,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Multiplier:   2,
		ShouldRetry:  IsRetryable,
	}

	_, err := RetryWithResult(context.Background(), cfg, func() (int, error) {
		calls++
		return 0, ValidationError("bad input", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	cfg := RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}

	err := Retry(context.Background(), cfg, func() error {
		calls++
		return errors.New("always")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 2 retries")
	assert.Equal(t, 3, calls)
}

func TestRetry_HonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, DefaultRetryConfig(), func() error { return nil })

	assert.ErrorIs(t, err, context.Canceled)
}

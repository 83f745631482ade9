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

func TestBenchError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	original := errors.New("disk gone")

	// When: wrapping it
	be := IndexBuildError("cannot create index", original)

	// Then: the chain reaches the original
	assert.Equal(t, original, errors.Unwrap(be))
	assert.True(t, errors.Is(be, original))
}

func TestBenchError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      *BenchError
		expected string
	}{
		{"format", FormatError("unexpected marker", nil), "[ERR_402_FORMAT] unexpected marker"},
		{"subprocess", SubprocessError("trec_eval exited 1", nil), "[ERR_506_SUBPROCESS] trec_eval exited 1"},
		{"aggregation", AggregationError("reports unreadable", nil), "[ERR_207_REPORT_DIR] reports unreadable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestBenchError_Is_MatchesByCode(t *testing.T) {
	// Given: a wrapped query syntax error
	err := fmt.Errorf("query 12: %w", QuerySyntaxError("wildcard", nil))

	// Then: matches any error with the same code
	assert.True(t, errors.Is(err, New(ErrCodeQuerySyntax, "", nil)))
	assert.False(t, errors.Is(err, New(ErrCodeFormat, "", nil)))
}

func TestNew_DerivesCategoryAndSeverity(t *testing.T) {
	tests := []struct {
		code      string
		category  Category
		severity  Severity
		retryable bool
	}{
		{ErrCodeConfigInvalid, CategoryConfig, SeverityError, false},
		{ErrCodeReportDir, CategoryIO, SeverityFatal, false},
		{ErrCodeDirCreate, CategoryIO, SeverityFatal, false},
		{ErrCodeFileCreate, CategoryIO, SeverityFatal, false},
		{ErrCodeFilePermission, CategoryIO, SeverityError, false},
		{ErrCodeFormat, CategoryValidation, SeverityError, false},
		{ErrCodeSubprocess, CategoryInternal, SeverityError, false},
		{ErrCodeSubprocessTimeout, CategoryInternal, SeverityWarning, true},
		{"bad", CategoryInternal, SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			be := New(tt.code, "msg", nil)
			assert.Equal(t, tt.category, be.Category)
			assert.Equal(t, tt.severity, be.Severity)
			assert.Equal(t, tt.retryable, be.Retryable)
		})
	}
}

func TestHelpers_SeeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("sweep: %w", New(ErrCodeDirCreate, "mkdir failed", nil))

	assert.True(t, IsFatal(err))
	assert.False(t, IsRetryable(err))
	assert.Equal(t, ErrCodeDirCreate, GetCode(err))
	assert.Equal(t, CategoryIO, GetCategory(err))

	assert.Equal(t, "", GetCode(errors.New("plain")))
	assert.False(t, IsFatal(nil))
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestWithDetail_Chains(t *testing.T) {
	be := FormatError("bad qrels", nil).
		WithDetail("path", "cranqrel").
		WithSuggestion("expect four whitespace-separated columns")

	assert.Equal(t, "cranqrel", be.Details["path"])
	assert.NotEmpty(t, be.Suggestion)
}

func TestFormatForCLI_IncludesHintAndCode(t *testing.T) {
	err := SubprocessError("trec_eval not found", nil).
		WithSuggestion("install trec_eval or set evaluator.tool")

	out := FormatForCLI(err)

	assert.Contains(t, out, "Error: trec_eval not found")
	assert.Contains(t, out, "Hint: install trec_eval")
	assert.Contains(t, out, "Code: ERR_506_SUBPROCESS")
	assert.Empty(t, FormatForCLI(nil))
}

func TestFormatJSON_StandardErrorBecomesInternal(t *testing.T) {
	data, err := FormatJSON(errors.New("boom"))
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, ErrCodeInternal, result["code"])
	assert.Equal(t, "boom", result["message"])
}

func TestFormatForLog_IncludesDetails(t *testing.T) {
	err := IndexBuildError("empty corpus", errors.New("no records")).WithDetail("config", "EnglishAnalyzer_BM25_t1_c1")

	fields := FormatForLog(err)

	assert.Equal(t, ErrCodeIndexBuild, fields["error_code"])
	assert.Equal(t, "no records", fields["cause"])
	assert.Equal(t, "EnglishAnalyzer_BM25_t1_c1", fields["detail_config"])
	assert.Len(t, LogAttrs(err), len(fields)*2)
}

func TestRetryWithResult_RetriesOnlyRetryable(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}

	t.Run("retryable error is retried until success", func(t *testing.T) {
		calls := 0
		got, err := RetryWithResult(context.Background(), cfg, func() (string, error) {
			calls++
			if calls < 2 {
				return "", New(ErrCodeSubprocessTimeout, "timed out", nil)
			}
			return "ok", nil
		})

		require.NoError(t, err)
		assert.Equal(t, "ok", got)
		assert.Equal(t, 2, calls)
	})

	t.Run("non-retryable error returns immediately", func(t *testing.T) {
		calls := 0
		_, err := RetryWithResult(context.Background(), cfg, func() (int, error) {
			calls++
			return 0, SubprocessError("exit 1", nil)
		})

		require.Error(t, err)
		assert.Equal(t, 1, calls)
		assert.Equal(t, ErrCodeSubprocess, GetCode(err))
	})

	t.Run("exhausted retries wrap the last error", func(t *testing.T) {
		calls := 0
		_, err := RetryWithResult(context.Background(), cfg, func() (int, error) {
			calls++
			return 0, New(ErrCodeSubprocessTimeout, "timed out", nil)
		})

		require.Error(t, err)
		assert.Equal(t, 3, calls)
		assert.Contains(t, err.Error(), "failed after 2 retries")
	})

	t.Run("cancelled context stops early", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := RetryWithResult(ctx, cfg, func() (int, error) { return 1, nil })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

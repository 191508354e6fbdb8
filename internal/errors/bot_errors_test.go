package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBotError_SentinelMatching verifies constructors keep the sentinel
// errors reachable through errors.Is.
func TestBotError_SentinelMatching(t *testing.T) {
	cfgErr := NewConfigurationError("config", "validate", "levels too small")
	assert.True(t, stderrors.Is(cfgErr, ErrInvalidConfiguration))

	subErr := NewOrderSubmissionError("bybit", "place_order", fmt.Errorf("connection refused"))
	assert.True(t, stderrors.Is(subErr, ErrOrderSubmission))

	cancelErr := NewOrderCancellationError("bybit", "cancel_order", fmt.Errorf("boom"))
	assert.True(t, stderrors.Is(cancelErr, ErrOrderCancellation))

	riskErr := NewRiskBreachError("governor", "drawdown limit")
	assert.True(t, stderrors.Is(riskErr, ErrRiskLimitBreach))
}

// TestBotError_FatalCategories verifies which categories stop the bot.
func TestBotError_FatalCategories(t *testing.T) {
	assert.True(t, NewFatalError("bot", "start", "boom").IsFatal())
	assert.True(t, NewConfigurationError("config", "load", "bad").IsFatal())
	assert.False(t, NewValidationError("engine", "place", "bad qty").IsFatal())
	assert.False(t, NewOrderSubmissionError("bybit", "place", fmt.Errorf("x")).IsFatal())
}

// TestBotError_Retryability covers the default retry flags per category.
func TestBotError_Retryability(t *testing.T) {
	assert.True(t, NewBotError(ErrorCategoryNetwork, "c", "o", "m").IsRetryable())
	assert.True(t, NewBotError(ErrorCategoryRateLimit, "c", "o", "m").IsRetryable())
	assert.False(t, NewBotError(ErrorCategoryFatal, "c", "o", "m").IsRetryable())
	assert.False(t, NewBotError(ErrorCategoryRisk, "c", "o", "m").IsRetryable())
	assert.False(t, NewValidationError("c", "o", "m").IsRetryable())
}

// TestCategorizeError_MessageHeuristics verifies plain errors get binned
// by their message content.
func TestCategorizeError_MessageHeuristics(t *testing.T) {
	tests := []struct {
		msg      string
		category ErrorCategory
	}{
		{"context deadline exceeded", ErrorCategoryTimeout},
		{"dial tcp: connection refused", ErrorCategoryNetwork},
		{"invalid api key", ErrorCategoryCredentials},
		{"rate limit exceeded", ErrorCategoryRateLimit},
		{"insufficient balance", ErrorCategoryOrder},
		{"invalid price precision", ErrorCategoryValidation},
		{"something else entirely", ErrorCategoryTemporary},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			botErr := CategorizeError(fmt.Errorf("%s", tt.msg), "exchange", "request")
			require.NotNil(t, botErr)
			assert.Equal(t, tt.category, botErr.Category)
		})
	}
}

// TestCategorizeError_PreservesBotError verifies an already categorized
// error passes through unchanged.
func TestCategorizeError_PreservesBotError(t *testing.T) {
	orig := NewRiskBreachError("governor", "drawdown")
	wrapped := fmt.Errorf("outer: %w", orig)

	got := CategorizeError(wrapped, "other", "op")
	assert.Same(t, orig, got)
}

// TestCategorizeError_Nil verifies nil in, nil out.
func TestCategorizeError_Nil(t *testing.T) {
	assert.Nil(t, CategorizeError(nil, "c", "o"))
	assert.Nil(t, WrapError(nil, ErrorCategoryNetwork, "c", "o"))
}

// TestGetRecoveryAction maps categories to their handling strategy.
func TestGetRecoveryAction(t *testing.T) {
	assert.Equal(t, RecoveryActionStop, NewFatalError("c", "o", "m").GetRecoveryAction())
	assert.Equal(t, RecoveryActionStop, NewRiskBreachError("c", "m").GetRecoveryAction())
	assert.Equal(t, RecoveryActionWait, NewBotError(ErrorCategoryRateLimit, "c", "o", "m").GetRecoveryAction())
	assert.Equal(t, RecoveryActionRetry, NewBotError(ErrorCategoryNetwork, "c", "o", "m").GetRecoveryAction())
	assert.Equal(t, RecoveryActionSkip, NewValidationError("c", "o", "m").GetRecoveryAction())
	assert.Equal(t, RecoveryActionRetry, NewOrderSubmissionError("c", "o", fmt.Errorf("x")).GetRecoveryAction())
}

// TestBotError_WithContext verifies context accumulation and chaining.
func TestBotError_WithContext(t *testing.T) {
	err := NewBotError(ErrorCategoryOrder, "engine", "place", "failed").
		WithContext("symbol", "BTCUSDT").
		WithContext("level", 3)

	assert.Equal(t, "BTCUSDT", err.Context["symbol"])
	assert.Equal(t, 3, err.Context["level"])
}

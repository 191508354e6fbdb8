package bybit

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestIsOrderGone_Codes verifies the error codes that mean the order
// already left the book.
func TestIsOrderGone_Codes(t *testing.T) {
	assert.True(t, IsOrderGone(NewAPIError(ErrCodeOrderNotFound, "order not exists or too late to cancel")))
	assert.True(t, IsOrderGone(NewAPIError(ErrCodeOrderNotModifiable, "order status is not modifiable")))
	assert.False(t, IsOrderGone(NewAPIError(ErrCodeRateLimitExceeded, "rate limit exceeded")))
	assert.False(t, IsOrderGone(nil))
}

// TestIsOrderGone_MessageFallback verifies detection when the SDK
// surfaces a plain error instead of a coded one.
func TestIsOrderGone_MessageFallback(t *testing.T) {
	assert.True(t, IsOrderGone(fmt.Errorf("Order not exists")))
	assert.True(t, IsOrderGone(fmt.Errorf("request failed: order does not exist")))
	assert.True(t, IsOrderGone(fmt.Errorf("too late to cancel")))
	assert.False(t, IsOrderGone(fmt.Errorf("insufficient balance")))
}

// TestIsOrderGone_Wrapped verifies detection through error wrapping.
func TestIsOrderGone_Wrapped(t *testing.T) {
	inner := NewAPIError(ErrCodeOrderNotFound, "order not exists")
	assert.True(t, IsOrderGone(fmt.Errorf("cancel failed: %w", inner)))
}

// TestIsRetryableError covers the transient error codes.
func TestIsRetryableError(t *testing.T) {
	assert.True(t, IsRetryableError(NewAPIError(ErrCodeRateLimitExceeded, "slow down")))
	assert.True(t, IsRetryableError(NewAPIError(500, "internal error")))
	assert.True(t, IsRetryableError(NewAPIError(503, "unavailable")))
	assert.False(t, IsRetryableError(NewAPIError(ErrCodeInvalidAPIKey, "bad key")))
	assert.False(t, IsRetryableError(fmt.Errorf("plain error")))
}

// TestIsAuthenticationError covers the credential error codes.
func TestIsAuthenticationError(t *testing.T) {
	assert.True(t, IsAuthenticationError(NewAPIError(ErrCodeInvalidAPIKey, "bad key")))
	assert.True(t, IsAuthenticationError(NewAPIError(ErrCodeInvalidSignature, "bad signature")))
	assert.False(t, IsAuthenticationError(NewAPIError(ErrCodeOrderNotFound, "gone")))
}

// TestParseAPIError verifies the response envelope mapping.
func TestParseAPIError(t *testing.T) {
	assert.NoError(t, ParseAPIError(0, "OK"))

	err := ParseAPIError(ErrCodeInvalidPrice, "price out of range")
	var apiErr *APIError
	assert.True(t, errors.As(err, &apiErr))
	assert.Equal(t, ErrCodeInvalidPrice, apiErr.Code)
}

// TestWrapAPIError verifies operation context is attached either way.
func TestWrapAPIError(t *testing.T) {
	assert.NoError(t, WrapAPIError("op", nil))

	wrapped := WrapAPIError("cancel_order", fmt.Errorf("timeout"))
	assert.Contains(t, wrapped.Error(), "cancel_order")

	apiWrapped := WrapAPIError("place_order", NewAPIError(ErrCodeInvalidQuantity, "qty too small"))
	assert.Contains(t, apiWrapped.Error(), "place_order")
}

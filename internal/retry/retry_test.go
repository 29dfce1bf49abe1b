package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelayRateLimitHonorsRetryAfter(t *testing.T) {
	d := Delay(CategoryRateLimit, 0, 2*time.Second)
	assert.Equal(t, 2*time.Second, d)
}

func TestDelayRateLimitFallsBackToExponentialFormula(t *testing.T) {
	d := Delay(CategoryRateLimit, 1, 0)
	assert.Equal(t, 8000*time.Millisecond, d)
}

func TestDelayServerErrorExponential(t *testing.T) {
	assert.Equal(t, 1000*time.Millisecond, Delay(CategoryServerError, 0, 0))
	assert.Equal(t, 2000*time.Millisecond, Delay(CategoryServerError, 1, 0))
	assert.Equal(t, 4000*time.Millisecond, Delay(CategoryServerError, 2, 0))
}

func TestDelayNonRetryableIsZero(t *testing.T) {
	assert.Zero(t, Delay(CategoryAuth, 0, 0))
	assert.Zero(t, Delay(CategoryInvalidRequest, 0, 0))
}

func TestCategoryRetryable(t *testing.T) {
	assert.True(t, CategoryRateLimit.Retryable())
	assert.True(t, CategoryServerError.Retryable())
	assert.True(t, CategoryTransport.Retryable())
	assert.False(t, CategoryAuth.Retryable())
	assert.False(t, CategoryInvalidRequest.Retryable())
	assert.False(t, CategoryNotFound.Retryable())
}

func TestDoSucceedsWithoutRetry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(attempt int) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesRetryableThenSucceeds(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(attempt int) error {
		calls++
		if attempt < 2 {
			return &ClassifiedError{Err: errors.New("boom"), Category: CategoryServerError}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsImmediatelyOnNonRetryable(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(attempt int) error {
		calls++
		return &ClassifiedError{Err: errors.New("bad request"), Category: CategoryInvalidRequest}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoExhaustsMaxAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(attempt int) error {
		calls++
		return &ClassifiedError{Err: errors.New("still failing"), Category: CategoryServerError, RetryAfter: 0}
	})
	require.Error(t, err)
	assert.Equal(t, MaxAttempts, calls)
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, func(attempt int) error {
		calls++
		if attempt == 0 {
			cancel()
		}
		return &ClassifiedError{Err: errors.New("rate limited"), Category: CategoryRateLimit, RetryAfter: time.Hour}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

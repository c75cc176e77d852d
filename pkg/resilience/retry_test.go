package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/Adithya-Monish-Kumar-K/catalog/pkg/errors"
)

var fast = RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "publish", fast, func() error {
		calls++
		if calls < 3 {
			return apperrors.IOFailure(errors.New("broker down"), "publishing")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryGivesUp(t *testing.T) {
	calls := 0
	broker := errors.New("broker down")
	err := Retry(context.Background(), "publish", fast, func() error {
		calls++
		return broker
	})
	assert.ErrorIs(t, err, broker)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "load", fast, func() error {
		calls++
		return apperrors.IndexFormat(nil, "truncated")
	})
	assert.ErrorIs(t, err, apperrors.ErrIndexFormat)
	assert.Equal(t, 1, calls)
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, "publish", RetryConfig{MaxAttempts: 5, InitialDelay: time.Second}, func() error {
		return errors.New("fail")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestComputeDelayIsCapped(t *testing.T) {
	cfg := RetryConfig{InitialDelay: time.Second, MaxDelay: 2 * time.Second, Multiplier: 10, JitterFraction: 0.1}
	assert.Equal(t, 2*time.Second, computeDelay(4, cfg))
}

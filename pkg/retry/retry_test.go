package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"xscraper/pkg/config"
	errs "xscraper/pkg/errors"
	"xscraper/pkg/logger"
)

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   1 * time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
		{9, 1 * time.Second},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt %d", tt.attempt), func(t *testing.T) {
			assert.Equal(t, tt.want, backoff.NextDelay(tt.attempt))
		})
	}
}

func TestExponentialBackoffJitterStaysInRange(t *testing.T) {
	backoff := &ExponentialBackoff{BaseDelay: 100 * time.Millisecond, Multiplier: 2, JitterFactor: 0.3}
	for i := 0; i < 50; i++ {
		d := backoff.NextDelay(2)
		assert.GreaterOrEqual(t, d, 140*time.Millisecond)
		assert.LessOrEqual(t, d, 260*time.Millisecond)
	}
}

func TestJitter(t *testing.T) {
	assert.Zero(t, Jitter(0))
	assert.Zero(t, Jitter(-time.Second))
	for i := 0; i < 50; i++ {
		d := JitterBackoff{Max: 50 * time.Millisecond}.NextDelay(i)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.Less(t, d, 50*time.Millisecond)
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	var retried []int
	err := Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return &errs.Error{Type: errs.ErrorTypeNetwork, Message: "reset"}
		}
		return nil
	}, &Config{
		MaxAttempts: 5,
		Backoff:     ConstantBackoff{Delay: time.Millisecond},
		OnRetry:     func(attempt int, _ error, _ time.Duration) { retried = append(retried, attempt) },
		Logger:      logger.NewNopLogger(),
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return errs.NotFound("post", "1")
	}, &Config{MaxAttempts: 5, Backoff: ConstantBackoff{Delay: time.Millisecond}})

	assert.True(t, errors.Is(err, errs.ErrNotFound))
	assert.Equal(t, 1, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	sentinel := errors.New("flaky")
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return sentinel
	}, &Config{MaxAttempts: 3, Backoff: ConstantBackoff{Delay: time.Millisecond}})

	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Contains(t, err.Error(), "max retry attempts (3) exceeded")
	assert.Equal(t, 3, calls)
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return errors.New("boom")
	}, &Config{MaxAttempts: 0, Backoff: ConstantBackoff{Delay: time.Hour}})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDoWithResult(t *testing.T) {
	n := 0
	got, err := DoWithResult(context.Background(), func(context.Context) (string, error) {
		n++
		if n == 1 {
			return "", errors.New("once")
		}
		return "ok", nil
	}, &Config{MaxAttempts: 2, Backoff: ConstantBackoff{}})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestDefaultRetryIf(t *testing.T) {
	assert.False(t, DefaultRetryIf(nil))
	assert.False(t, DefaultRetryIf(context.Canceled))
	assert.False(t, DefaultRetryIf(&errs.RateLimitError{Limit: 1}))
	assert.False(t, DefaultRetryIf(errs.ErrAuthorization))
	assert.True(t, DefaultRetryIf(&errs.Error{Type: errs.ErrorTypeServerError}))
	assert.True(t, DefaultRetryIf(errors.New("connection reset")))
}

func TestFromSettings(t *testing.T) {
	disabled := FromSettings(config.RetryConfig{Enabled: false, MaxAttempts: 9}, logger.NewNopLogger())
	assert.Equal(t, 1, disabled.MaxAttempts)

	enabled := FromSettings(config.DefaultConfig().Retry, logger.NewNopLogger())
	assert.Equal(t, 3, enabled.MaxAttempts)
	require.IsType(t, &ExponentialBackoff{}, enabled.Backoff)
}

func TestWait(t *testing.T) {
	assert.NoError(t, Wait(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Wait(ctx, time.Second), context.Canceled)
	assert.ErrorIs(t, Pause(ctx, 0), context.Canceled)
}

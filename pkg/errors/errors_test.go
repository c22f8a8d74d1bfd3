package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSentinelMatching(t *testing.T) {
	wrapped := fmt.Errorf("lookup 42: %w", NotFound("post", "42"))

	assert.True(t, stderrors.Is(wrapped, ErrNotFound))
	assert.False(t, stderrors.Is(wrapped, ErrAuthorization))
	assert.Contains(t, wrapped.Error(), "no post found with id 42")
}

func TestRateLimitError(t *testing.T) {
	err := fmt.Errorf("rest: %w", &RateLimitError{Limit: 900, Remaining: 0, ResetIn: 90 * time.Second})

	assert.True(t, stderrors.Is(err, ErrRateLimited))
	var rl *RateLimitError
	assert.True(t, stderrors.As(err, &rl))
	assert.Equal(t, 900, rl.Limit)
	assert.Equal(t, ErrorTypeRateLimit, TypeOf(err))
}

func TestJoinedCausesStillMatch(t *testing.T) {
	err := stderrors.Join(ErrTimeout, ErrUnavailable)
	assert.True(t, stderrors.Is(err, ErrTimeout))
	assert.True(t, stderrors.Is(err, ErrUnavailable))
	assert.False(t, stderrors.Is(err, ErrLoginFailed))
}

func TestIsRetryableLater(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{ErrNotFound, true},
		{&RateLimitError{}, true},
		{InvalidIdentifier("abc"), false},
		{ErrLoginFailed, false},
		{stderrors.New("plain"), false},
		{nil, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsRetryableLater(tt.err), "%v", tt.err)
	}
}

func TestIsRetryableStatusCode(t *testing.T) {
	assert.True(t, IsRetryableStatusCode(0))
	assert.True(t, IsRetryableStatusCode(503))
	assert.False(t, IsRetryableStatusCode(429))
	assert.False(t, IsRetryableStatusCode(404))
	assert.False(t, IsRetryableStatusCode(200))
}

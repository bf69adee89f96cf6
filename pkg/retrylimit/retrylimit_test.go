package retrylimit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) RetryConfig {
	nop := zerolog.Nop()
	cfg := DefaultRetryConfig()
	cfg.MaxAttempts = attempts
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = time.Millisecond
	cfg.Jitter = false
	cfg.Logger = &nop
	return cfg
}

func TestRetryUntilSuccess(t *testing.T) {
	calls := 0
	err := WithRetryConfig(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	}, nil, fastConfig(5))
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryReturnsLastError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := WithRetryConfig(context.Background(), func() error {
		calls++
		return boom
	}, nil, fastConfig(2))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestRetryStopsOnWrappedFatal(t *testing.T) {
	miss := errors.New("miss")
	calls := 0
	err := WithRetryConfig(context.Background(), func() error {
		calls++
		return fmt.Errorf("lookup: %w", Fatal(miss))
	}, nil, fastConfig(5))
	assert.ErrorIs(t, err, miss)
	assert.Equal(t, 1, calls)
	assert.NoError(t, Fatal(nil))
}

type statusErr int

func (s statusErr) Error() string   { return fmt.Sprintf("status %d", int(s)) }
func (s statusErr) StatusCode() int { return int(s) }

func TestLimiterBacksOff(t *testing.T) {
	lim := NewAdaptiveLimiter(8, 1, 10, 1, 0.5)
	calls := 0
	_ = WithRetryConfig(context.Background(), func() error {
		calls++
		if calls == 1 {
			return statusErr(503)
		}
		return nil
	}, lim, fastConfig(3))
	assert.Equal(t, 4.0, lim.CurrentLimit())
	assert.True(t, DefaultClassifier(fmt.Errorf("wrapped: %w", statusErr(429))))
	assert.False(t, DefaultClassifier(statusErr(404)))
}

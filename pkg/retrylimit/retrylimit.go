// Package retrylimit retries calls with exponential backoff behind a rate
// limiter that slows down when the remote side pushes back.
//
//	lim := retrylimit.NewAdaptiveLimiter(5, 1, 20, 0.5, 0.5)
//	err := retrylimit.WithRetryConfig(ctx, search, lim, retrylimit.DefaultRetryConfig())
package retrylimit

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// quietPeriod must pass after a push back before the rate climbs again.
const quietPeriod = 10 * time.Second

// AdaptiveLimiter is a token bucket whose rate grows by a fixed step on
// success and is multiplied down on overload, within [min, max].
type AdaptiveLimiter struct {
	mu        sync.Mutex
	limiter   *rate.Limiter
	min, max  rate.Limit
	stepUp    rate.Limit
	stepDown  float64
	lastError time.Time
}

func NewAdaptiveLimiter(initial, min, max rate.Limit, stepUp rate.Limit, stepDown float64) *AdaptiveLimiter {
	initial = maxLimit(initial, 1)
	return &AdaptiveLimiter{
		limiter:  rate.NewLimiter(initial, burst(initial)),
		min:      maxLimit(min, 1),
		max:      max,
		stepUp:   stepUp,
		stepDown: stepDown,
	}
}

func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

func (a *AdaptiveLimiter) Success() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if time.Since(a.lastError) > quietPeriod {
		a.setLocked(a.limiter.Limit() + a.stepUp)
	}
}

func (a *AdaptiveLimiter) RateLimited() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastError = time.Now()
	a.setLocked(rate.Limit(float64(a.limiter.Limit()) * a.stepDown))
}

// CurrentLimit is the rate in requests per second.
func (a *AdaptiveLimiter) CurrentLimit() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return float64(a.limiter.Limit())
}

func (a *AdaptiveLimiter) setLocked(l rate.Limit) {
	l = min(max(l, a.min), a.max)
	if l != a.limiter.Limit() {
		a.limiter.SetLimit(l)
		a.limiter.SetBurst(burst(l))
	}
}

func burst(l rate.Limit) int {
	return max(1, int(l))
}

func maxLimit(a, b rate.Limit) rate.Limit {
	if a < b {
		return b
	}
	return a
}

// HTTPError is implemented by errors that carry a status code.
type HTTPError interface {
	error
	StatusCode() int
}

// FatalError stops retrying at once.
type FatalError struct {
	Err error
}

func (f *FatalError) Error() string { return f.Err.Error() }
func (f *FatalError) Unwrap() error { return f.Err }

// Fatal marks err as not worth retrying. A nil err stays nil.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// DefaultClassifier reports 429 and 5xx responses as overload.
func DefaultClassifier(err error) bool {
	code := statusCode(err)
	return code == http.StatusTooManyRequests || (code >= 500 && code < 600)
}

func statusCode(err error) int {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode()
	}
	return 0
}

type RetryConfig struct {
	MaxAttempts  int // counting the first call; 0 means 100
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool // up to 25% extra on each delay
	// Classifier decides which errors slow the limiter down.
	Classifier func(error) bool
	Logger     *zerolog.Logger
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  100,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2,
		Jitter:       true,
		Classifier:   DefaultClassifier,
	}
}

// WithRetryConfig calls fn until it succeeds, returns a FatalError, ctx
// ends or the attempts run out. The last error is returned as is. lim may
// be nil.
func WithRetryConfig(ctx context.Context, fn func() error, lim *AdaptiveLimiter, cfg RetryConfig) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 100
	}
	if cfg.Classifier == nil {
		cfg.Classifier = DefaultClassifier
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}

	delay := cfg.InitialDelay
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return err
			}
		}

		err := fn()
		if err == nil {
			if lim != nil {
				lim.Success()
			}
			if attempt > 1 {
				log.Debug().Int("attempt", attempt).Msg("retry succeeded")
			}
			return nil
		}

		var fatal *FatalError
		if errors.As(err, &fatal) {
			return err
		}
		if lim != nil && cfg.Classifier(err) {
			lim.RateLimited()
			log.Warn().Err(err).Int("attempt", attempt).Float64("rps", lim.CurrentLimit()).Msg("slowing down")
		}
		if attempt >= cfg.MaxAttempts {
			return err
		}

		sleep := delay
		if cfg.Jitter && sleep >= 4 {
			sleep += time.Duration(rand.Int64N(int64(sleep / 4)))
		}
		log.Debug().Err(err).Int("attempt", attempt).Dur("sleep", sleep).Msg("request failed")

		t := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
}


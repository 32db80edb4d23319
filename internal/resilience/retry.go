package resilience

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	apperrors "github.com/GriffinCanCode/dialogue-overlay/internal/errors"
)

const (
	DefaultMaxRetries   = 2
	DefaultBaseDelay    = 250 * time.Millisecond
	DefaultMaxDelay     = 5 * time.Second
	DefaultJitterFactor = 0.2
)

// RetryConfig holds retry settings.
type RetryConfig struct {
	MaxRetries   int              `mapstructure:"max_retries"`
	BaseDelay    time.Duration    `mapstructure:"base_delay"`
	MaxDelay     time.Duration    `mapstructure:"max_delay"`
	JitterFactor float64          `mapstructure:"jitter"`
	IsRetryable  func(error) bool `mapstructure:"-"`
}

// DefaultRetryConfig returns standard retry settings.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   DefaultMaxRetries,
		BaseDelay:    DefaultBaseDelay,
		MaxDelay:     DefaultMaxDelay,
		JitterFactor: DefaultJitterFactor,
		IsRetryable:  IsTransient,
	}
}

// IsTransient reports whether err is worth retrying: retryable AppErrors and
// the gRPC codes that signal a temporarily unavailable backend.
func IsTransient(err error) bool {
	if err == nil || err == ErrOpen {
		return false
	}
	if apperrors.IsRetryable(err) {
		return true
	}
	s, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch s.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return true
	default:
		return false
	}
}

// Retry runs fn until it succeeds, returns a non-transient error, or runs out
// of attempts.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	cfg = cfg.withDefaults()
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if !cfg.IsRetryable(lastErr) || attempt == cfg.MaxRetries {
			return lastErr
		}

		delay := backoffDelay(cfg, attempt)
		slog.Debug("retrying provider call", "attempt", attempt+1, "max", cfg.MaxRetries, "delay", delay, "error", lastErr)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}

func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	delay := min(cfg.BaseDelay<<min(attempt, 6), cfg.MaxDelay)
	jitter := float64(delay) * cfg.JitterFactor * (rand.Float64() - 0.5)
	return time.Duration(float64(delay) + jitter)
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.JitterFactor <= 0 {
		c.JitterFactor = DefaultJitterFactor
	}
	if c.IsRetryable == nil {
		c.IsRetryable = IsTransient
	}
	return c
}

// Guard pairs a breaker with a retry policy for one provider.
type Guard struct {
	Breaker *Breaker
	Retry   RetryConfig
}

// NewGuard creates a Guard named after the provider it protects.
func NewGuard(name string, cfg Config, retry RetryConfig) *Guard {
	return &Guard{Breaker: NewBreaker(name, cfg), Retry: retry}
}

// Call runs fn with retries inside the breaker. An open breaker fails fast
// without retrying.
func Call[T any](ctx context.Context, g *Guard, fn func(context.Context) (T, error)) (T, error) {
	return Execute(g.Breaker, func() (T, error) {
		var out T
		err := Retry(ctx, g.Retry, func() error {
			v, err := fn(ctx)
			if err != nil {
				return err
			}
			out = v
			return nil
		})
		return out, err
	})
}

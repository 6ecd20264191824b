package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// ErrMaxAttemptsExceeded is returned when the operation keeps failing
// after all configured attempts.
var ErrMaxAttemptsExceeded = errors.New("max retry attempts exceeded")

// Config controls the exponential backoff schedule.
type Config struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int
	// InitialInterval is the first backoff interval.
	InitialInterval time.Duration
	// MaxInterval caps the backoff interval.
	MaxInterval time.Duration
	// Multiplier grows the interval after each attempt.
	Multiplier float64
	// JitterFactor adds random jitter in [-f, +f] of the interval.
	JitterFactor float64
}

// DefaultConfig backs off 1s, 2s, 4s, 8s, 16s capped at 30s.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:      5,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		JitterFactor:    0.1,
	}
}

// Operation is the function to be retried.
type Operation func(ctx context.Context) error

// PermanentError marks an error that must not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so Do returns it immediately without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Do executes op, retrying failures with exponential backoff until it
// succeeds, returns a permanent error, exhausts the attempts, or the
// context is canceled. The last attempt's error is joined into the result.
func Do(ctx context.Context, cfg *Config, op Operation) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		var perm *PermanentError
		if errors.As(err, &perm) {
			return perm.Err
		}

		if attempt == cfg.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval(cfg, attempt)):
		}
	}

	return errors.Join(ErrMaxAttemptsExceeded, lastErr)
}

func interval(cfg *Config, attempt int) time.Duration {
	base := cfg.InitialInterval
	if base <= 0 {
		base = time.Second
	}
	mult := cfg.Multiplier
	if mult <= 0 {
		mult = 2.0
	}

	d := float64(base) * math.Pow(mult, float64(attempt))

	if cfg.JitterFactor > 0 {
		jitter := d * math.Min(cfg.JitterFactor, 1)
		d += (rand.Float64()*2 - 1) * jitter
	}

	if max := float64(cfg.MaxInterval); max > 0 && d > max {
		d = max
	}
	if d < 0 {
		d = float64(base)
	}

	return time.Duration(d)
}

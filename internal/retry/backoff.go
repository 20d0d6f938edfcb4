package retry

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"
	"time"
)

// BackoffConfig contains configuration for exponential backoff
type BackoffConfig struct {
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
	Multiplier   float64       `json:"multiplier"`
	MaxAttempts  int           `json:"max_attempts"`
	Jitter       bool          `json:"jitter"`
}

// DefaultBackoffConfig returns a sensible default configuration
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  8,
		Jitter:       true,
	}
}

// Backoff implements bounded exponential backoff with optional jitter.
// The channel manager steps through attempts one at a time with DelayFor,
// so a caller can interleave its own connection state between waits.
type Backoff struct {
	config BackoffConfig
}

// NewBackoff creates a new exponential backoff instance
func NewBackoff(config BackoffConfig) *Backoff {
	if config.Multiplier < 1.0 {
		config.Multiplier = 2.0
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	return &Backoff{config: config}
}

// MaxAttempts returns the attempt cap.
func (b *Backoff) MaxAttempts() int {
	return b.config.MaxAttempts
}

// DelayFor computes the delay preceding the given 1-based attempt.
func (b *Backoff) DelayFor(attempt int) time.Duration {
	delay := float64(b.config.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= b.config.Multiplier
		if delay >= float64(b.config.MaxDelay) {
			delay = float64(b.config.MaxDelay)
			break
		}
	}

	if b.config.Jitter {
		// +/-25% randomness so a fleet of clients does not reconnect in
		// lockstep after a server restart.
		jitter := delay * 0.25
		delay += (secureFloat64() - 0.5) * 2 * jitter
		if delay < 0 {
			delay = float64(b.config.InitialDelay)
		}
		if delay > float64(b.config.MaxDelay) {
			delay = float64(b.config.MaxDelay)
		}
	}

	return time.Duration(delay)
}

// Wait blocks for the delay of the given attempt or until ctx is done.
func (b *Backoff) Wait(ctx context.Context, attempt int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(b.DelayFor(attempt)):
		return nil
	}
}

// Retry executes the operation with exponential backoff retry logic
func (b *Backoff) Retry(ctx context.Context, operation func() error) error {
	var lastErr error

	for attempt := 1; attempt <= b.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == b.config.MaxAttempts {
			break
		}
		if err := b.Wait(ctx, attempt); err != nil {
			return err
		}
	}

	return lastErr
}

// secureFloat64 generates a cryptographically secure float64 in [0, 1)
func secureFloat64() float64 {
	max := big.NewInt(0).SetUint64(math.MaxUint64)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		// Extremely unlikely; fall back to a time-derived value.
		return float64(time.Now().UnixNano()%1000000) / 1000000.0
	}
	return float64(n.Uint64()) / float64(math.MaxUint64)
}

package ratelimit

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// Delay validation errors, returned by New.
var (
	// ErrNegativeDelay is returned when either bound is negative.
	ErrNegativeDelay = errors.New("invalid delay: bounds must be non-negative")

	// ErrInvalidDelayRange is returned when the minimum exceeds the maximum.
	ErrInvalidDelayRange = errors.New("invalid delay range: min must not exceed max")

	// ErrInvalidMultiplier is returned when the backoff multiplier is below 1.
	ErrInvalidMultiplier = errors.New("invalid backoff multiplier: must be at least 1")
)

const (
	// DefaultMultiplier doubles the delay on every retry.
	DefaultMultiplier = 2.0

	// DefaultMaxBackoff caps a single backoff wait.
	DefaultMaxBackoff = time.Minute
)

// Limiter computes the delay before the next outbound request.
type Limiter struct {
	// minDelay and maxDelay bound every sampled delay (inclusive).
	minDelay time.Duration
	maxDelay time.Duration

	// multiplier grows the backoff per retry attempt.
	multiplier float64

	// maxBackoff caps Backoff. It never lowers a delay below minDelay.
	maxBackoff time.Duration

	rng *rand.Rand
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithRand sets the random source used for sampling.
func WithRand(src rand.Source) Option {
	return func(l *Limiter) {
		l.rng = rand.New(src)
	}
}

// WithMultiplier sets the backoff multiplier applied per retry attempt.
func WithMultiplier(m float64) Option {
	return func(l *Limiter) {
		l.multiplier = m
	}
}

// WithMaxBackoff caps the delay returned by Backoff.
func WithMaxBackoff(d time.Duration) Option {
	return func(l *Limiter) {
		l.maxBackoff = d
	}
}

// New creates a Limiter sampling delays from [minDelay, maxDelay].
// Invalid bounds are rejected here rather than on use.
func New(minDelay, maxDelay time.Duration, opts ...Option) (*Limiter, error) {
	if minDelay < 0 || maxDelay < 0 {
		return nil, ErrNegativeDelay
	}
	if minDelay > maxDelay {
		return nil, ErrInvalidDelayRange
	}

	l := &Limiter{
		minDelay:   minDelay,
		maxDelay:   maxDelay,
		multiplier: DefaultMultiplier,
		maxBackoff: DefaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(l)
	}

	if l.multiplier < 1 {
		return nil, ErrInvalidMultiplier
	}
	if l.rng == nil {
		seed := uint64(time.Now().UnixNano()) //nolint:gosec // jitter only
		l.rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}

	return l, nil
}

// Min returns the lower delay bound.
func (l *Limiter) Min() time.Duration { return l.minDelay }

// Max returns the upper delay bound.
func (l *Limiter) Max() time.Duration { return l.maxDelay }

// NextDelay returns a delay drawn uniformly from [min, max].
func (l *Limiter) NextDelay() time.Duration {
	span := l.maxDelay - l.minDelay
	if span == 0 {
		return l.minDelay
	}
	// span+1 overflows int64 when the range covers every Duration.
	return l.minDelay + time.Duration(l.rng.Uint64N(uint64(span)+1)) //nolint:gosec // bounded by span

}

// Backoff returns the wait before retry number attempt (1-based): a fresh
// NextDelay scaled by multiplier^(attempt-1), capped at the max backoff.
func (l *Limiter) Backoff(attempt int) time.Duration {
	base := l.NextDelay()
	if attempt <= 1 {
		return base
	}

	scaled := float64(base) * math.Pow(l.multiplier, float64(attempt-1))
	limit := l.maxBackoff
	if limit < base {
		limit = base
	}
	if scaled >= float64(limit) {
		return limit
	}
	return time.Duration(scaled)
}

// Wait blocks for d or until ctx is done, whichever comes first.
// It returns ctx.Err() when cancelled.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

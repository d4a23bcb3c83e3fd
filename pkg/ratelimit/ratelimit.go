// Package ratelimit counts requests per client identity and decides whether
// each one may proceed.
//
// Rejection is an ordinary outcome reported through Decision, not an error.
// The HTTP layer decides which status and headers to send.
package ratelimit

import (
	"context"
	"time"
)

const (
	DefaultWindow = 15 * time.Minute
	DefaultMax    = 100
)

// Algorithm names accepted by New.
const (
	AlgorithmFixedWindow = "fixed"
	AlgorithmTokenBucket = "token"
)

// Decision is the outcome of one Allow call plus the window metadata needed
// to build a retry hint.
type Decision struct {
	Allowed    bool
	Count      int
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter decides per client. Implementations are safe for concurrent use.
type Limiter interface {
	Allow(clientID string) Decision
	// Len returns the number of clients currently tracked.
	Len() int
	Close()
}

type options struct {
	now           func() time.Time
	sweepInterval time.Duration
}

// Option configures a limiter.
type Option func(*options)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithSweepInterval sets how often idle clients are forgotten. Values <= 0
// disable the background sweep.
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) { o.sweepInterval = d }
}

func buildOptions(window time.Duration, opts []Option) options {
	o := options{now: time.Now, sweepInterval: window}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New builds the limiter named by algorithm. Unknown names fall back to the
// fixed window.
func New(ctx context.Context, algorithm string, max int, window time.Duration, opts ...Option) Limiter {
	if algorithm == AlgorithmTokenBucket {
		return NewTokenBucket(ctx, max, window, opts...)
	}
	return NewFixedWindow(ctx, max, window, opts...)
}

// sweeper runs fn every interval until ctx ends or stop is closed.
func sweeper(ctx context.Context, interval time.Duration, stop <-chan struct{}, done chan<- struct{}, fn func()) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			fn()
		}
	}
}

package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type window struct {
	count int
	start time.Time
}

// FixedWindow allows at most max requests per client in each window that
// starts with the client's first request after the previous one ended.
//
// Counters reset at window boundaries, so a client can send up to 2*max-1
// requests in a span shorter than one window by straddling a boundary. Use
// TokenBucket when that burst matters.
type FixedWindow struct {
	mu      sync.Mutex
	windows map[string]*window
	max     int
	length  time.Duration
	now     func() time.Time

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewFixedWindow returns a fixed-window limiter. max <= 0 or window <= 0 use
// the package defaults.
func NewFixedWindow(ctx context.Context, max int, length time.Duration, opts ...Option) *FixedWindow {
	if max <= 0 {
		max = DefaultMax
	}
	if length <= 0 {
		length = DefaultWindow
	}
	o := buildOptions(length, opts)

	l := &FixedWindow{
		windows: make(map[string]*window),
		max:     max,
		length:  length,
		now:     o.now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if o.sweepInterval > 0 {
		go sweeper(ctx, o.sweepInterval, l.stop, l.done, func() { l.Sweep() })
	} else {
		close(l.done)
	}
	return l
}

// Allow counts one request for clientID.
func (l *FixedWindow) Allow(clientID string) Decision {
	now := l.now()

	l.mu.Lock()
	w, ok := l.windows[clientID]
	if !ok || !now.Before(w.start.Add(l.length)) {
		w = &window{start: now}
		l.windows[clientID] = w
	}
	// Rejected requests keep counting so Count reflects real traffic, but
	// the stored value is capped to avoid unbounded growth.
	if w.count <= l.max {
		w.count++
	}
	count := w.count
	resetAt := w.start.Add(l.length)
	l.mu.Unlock()

	d := Decision{
		Allowed:   count <= l.max,
		Count:     count,
		Limit:     l.max,
		Remaining: l.max - count,
		ResetAt:   resetAt,
	}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !d.Allowed {
		d.RetryAfter = resetAt.Sub(now)
		logrus.Debugf("[RATE_LIMIT] %s over limit (%d/%d), resets in %s", clientID, count, l.max, d.RetryAfter)
	}
	return d
}

// Sweep forgets clients whose window has ended and returns how many were removed.
func (l *FixedWindow) Sweep() int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for id, w := range l.windows {
		if !now.Before(w.start.Add(l.length)) {
			delete(l.windows, id)
			n++
		}
	}
	return n
}

func (l *FixedWindow) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Close stops the background sweep.
func (l *FixedWindow) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
	<-l.done
}

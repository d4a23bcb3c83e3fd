package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// TokenBucket refills max tokens evenly over window, with a burst of max.
// Unlike FixedWindow it has no boundary where the full allowance comes back
// at once.
type TokenBucket struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	max     int
	window  time.Duration
	every   rate.Limit
	now     func() time.Time

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewTokenBucket(ctx context.Context, max int, window time.Duration, opts ...Option) *TokenBucket {
	if max <= 0 {
		max = DefaultMax
	}
	if window <= 0 {
		window = DefaultWindow
	}
	o := buildOptions(window, opts)

	l := &TokenBucket{
		buckets: make(map[string]*bucket),
		max:     max,
		window:  window,
		every:   rate.Every(window / time.Duration(max)),
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

func (l *TokenBucket) Allow(clientID string) Decision {
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[clientID]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.every, l.max)}
		l.buckets[clientID] = b
	}
	b.lastSeen = now
	allowed := b.lim.AllowN(now, 1)
	tokens := b.lim.TokensAt(now)
	l.mu.Unlock()

	remaining := int(math.Floor(tokens))
	if remaining < 0 {
		remaining = 0
	}
	d := Decision{
		Allowed:   allowed,
		Count:     l.max - remaining,
		Limit:     l.max,
		Remaining: remaining,
		ResetAt:   now.Add(l.refillTime(float64(l.max) - tokens)),
	}
	if !allowed {
		d.RetryAfter = l.refillTime(1 - tokens)
		logrus.Debugf("[RATE_LIMIT] %s bucket empty, retry in %s", clientID, d.RetryAfter)
	}
	return d
}

// refillTime is how long it takes to gain n tokens.
func (l *TokenBucket) refillTime(n float64) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n / float64(l.every) * float64(time.Second))
}

// Sweep forgets clients idle for longer than a full window; their bucket
// would be full again anyway.
func (l *TokenBucket) Sweep() int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for id, b := range l.buckets {
		if now.Sub(b.lastSeen) >= l.window {
			delete(l.buckets, id)
			n++
		}
	}
	return n
}

func (l *TokenBucket) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *TokenBucket) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
	<-l.done
}

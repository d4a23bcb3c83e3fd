// Package lazy builds expensive named resources at most once.
//
// Each key moves through Empty -> Initializing -> Ready. Concurrent callers
// that arrive while a key is Initializing join the in-flight attempt instead
// of starting another one, and all of them are released together when the
// attempt finishes. A failed attempt does not stick: the slot goes back to
// Empty and the next caller tries again.
package lazy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State of a resource slot.
type State string

const (
	StateEmpty        State = "empty"
	StateInitializing State = "initializing"
	StateReady        State = "ready"
)

// ErrFactoryPanic wraps the value recovered from a panicking factory.
var ErrFactoryPanic = errors.New("resource factory panicked")

// Factory constructs the resource for a key. It receives a context that is
// detached from the caller's cancellation.
type Factory[T any] func(ctx context.Context) (T, error)

type attempt[T any] struct {
	done     chan struct{}
	value    T
	err      error
	started  time.Time
	finished time.Time
}

type slot[T any] struct {
	state    State
	inflight *attempt[T]
	value    T
	readyAt  time.Time
	attempts int
	lastErr  error
	// discard marks an in-flight attempt whose result must not be kept.
	discard bool
}

// SlotInfo describes a slot for status endpoints.
type SlotInfo struct {
	Key       string    `json:"key"`
	State     State     `json:"state"`
	Attempts  int       `json:"attempts"`
	ReadyAt   *time.Time `json:"ready_at,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// Registry is safe for concurrent use.
type Registry[T any] struct {
	mu    sync.Mutex
	slots map[string]*slot[T]
}

// NewRegistry returns an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{slots: make(map[string]*slot[T])}
}

// Resolve returns the resource for key, running factory if no resource is
// ready and no construction is in flight.
//
// If ctx ends while waiting, Resolve returns ctx.Err() but the construction
// keeps going and its result is kept for later callers.
func (r *Registry[T]) Resolve(ctx context.Context, key string, factory Factory[T]) (T, error) {
	r.mu.Lock()
	s, ok := r.slots[key]
	if !ok {
		s = &slot[T]{state: StateEmpty}
		r.slots[key] = s
	}

	switch s.state {
	case StateReady:
		v := s.value
		r.mu.Unlock()
		return v, nil
	case StateInitializing:
		a := s.inflight
		r.mu.Unlock()
		logrus.Debugf("[REGISTRY] Joining in-flight construction of %s", key)
		return r.wait(ctx, a)
	}

	a := &attempt[T]{done: make(chan struct{}), started: time.Now()}
	s.state = StateInitializing
	s.inflight = a
	s.attempts++
	r.mu.Unlock()

	logrus.Infof("[REGISTRY] Constructing %s", key)
	go r.construct(context.WithoutCancel(ctx), key, s, a, factory)

	return r.wait(ctx, a)
}

func (r *Registry[T]) construct(ctx context.Context, key string, s *slot[T], a *attempt[T], factory Factory[T]) {
	value, err := runFactory(ctx, factory)

	r.mu.Lock()
	a.value, a.err, a.finished = value, err, time.Now()
	// Tras un Clear el resultado solo llega a los waiters actuales.
	if current, ok := r.slots[key]; ok && current == s && s.inflight == a {
		s.inflight = nil
		if s.discard {
			s.discard = false
			s.state = StateEmpty
			s.lastErr = err
		} else if err != nil {
			s.state = StateEmpty
			s.lastErr = err
		} else {
			s.state = StateReady
			s.value = value
			s.readyAt = a.finished
			s.lastErr = nil
		}
	}
	r.mu.Unlock()
	close(a.done)

	elapsed := a.finished.Sub(a.started)
	if err != nil {
		logrus.WithError(err).Warnf("[REGISTRY] Construction of %s failed after %s", key, elapsed)
		return
	}
	logrus.Infof("[REGISTRY] %s ready in %s", key, elapsed)
}

func runFactory[T any](ctx context.Context, factory Factory[T]) (value T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			var zero T
			value = zero
			err = fmt.Errorf("%w: %v", ErrFactoryPanic, rec)
		}
	}()
	return factory(ctx)
}

func (r *Registry[T]) wait(ctx context.Context, a *attempt[T]) (T, error) {
	select {
	case <-a.done:
		return a.value, a.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// State reports the current state of key.
func (r *Registry[T]) State(key string) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.slots[key]; ok {
		return s.state
	}
	return StateEmpty
}

// Attempts returns how many times a factory was started for key.
func (r *Registry[T]) Attempts(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.slots[key]; ok {
		return s.attempts
	}
	return 0
}

// Get returns the resource for key only if it is already ready.
func (r *Registry[T]) Get(key string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.slots[key]; ok && s.state == StateReady {
		return s.value, true
	}
	var zero T
	return zero, false
}

// Snapshot lists every known slot sorted by key.
func (r *Registry[T]) Snapshot() []SlotInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SlotInfo, 0, len(r.slots))
	for k, s := range r.slots {
		info := SlotInfo{Key: k, State: s.state, Attempts: s.attempts}
		if s.state == StateReady {
			readyAt := s.readyAt
			info.ReadyAt = &readyAt
		}
		if s.lastErr != nil {
			info.LastError = s.lastErr.Error()
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Clear forgets key. A construction already in flight is not restarted:
// callers arriving meanwhile still join it, and its result is handed to
// those waiters but not kept, so the next Resolve after it builds again.
func (r *Registry[T]) Clear(key string) {
	r.mu.Lock()
	r.clearLocked(key)
	r.mu.Unlock()
}

// ClearAll forgets every key, with the same rule for in-flight constructions.
func (r *Registry[T]) ClearAll() {
	r.mu.Lock()
	for key := range r.slots {
		r.clearLocked(key)
	}
	r.mu.Unlock()
}

func (r *Registry[T]) clearLocked(key string) {
	s, ok := r.slots[key]
	if !ok {
		return
	}
	if s.state == StateInitializing {
		s.discard = true
		return
	}
	delete(r.slots, key)
}

// Package respcache memoizes successful JSON responses keyed by request
// fingerprint.
//
// The cache never decides the outcome of a request. Store failures are
// logged and handled as a miss, and the caller sees the same status and body
// whether the response came from the store or from the handler.
package respcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domainCache "github.com/AzielCF/az-infer/domains/cache"
	"github.com/AzielCF/az-infer/pkg/fingerprint"
	"github.com/sirupsen/logrus"
)

// Outcome tells how a request was served.
type Outcome string

const (
	OutcomeBypass Outcome = "BYPASS"
	OutcomeHit    Outcome = "HIT"
	OutcomeMiss   Outcome = "MISS"
	OutcomeStored Outcome = "STORED"
)

// Request is what the middleware needs to know about an inbound request.
type Request struct {
	Method   string
	Path     string // path plus raw query string
	Body     []byte
	ClientID string
}

// Response is the status and JSON body produced by a handler.
type Response struct {
	Status int
	Body   []byte
}

// Handler produces the response on a miss.
type Handler func(ctx context.Context) (Response, error)

type Middleware struct {
	store   domainCache.IStore
	methods []string
	ttl     time.Duration
	enabled bool
}

type Option func(*Middleware)

// WithMethods replaces the cacheable method set.
func WithMethods(methods []string) Option {
	return func(m *Middleware) {
		if len(methods) > 0 {
			m.methods = methods
		}
	}
}

// WithTTL sets the TTL passed to the store. Zero lets the store pick its default.
func WithTTL(ttl time.Duration) Option {
	return func(m *Middleware) { m.ttl = ttl }
}

// WithEnabled turns caching off entirely when false; every request bypasses.
func WithEnabled(enabled bool) Option {
	return func(m *Middleware) { m.enabled = enabled }
}

func New(store domainCache.IStore, opts ...Option) *Middleware {
	m := &Middleware{
		store:   store,
		methods: fingerprint.DefaultCacheableMethods,
		enabled: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Serve answers req from the store or by calling next.
func (m *Middleware) Serve(ctx context.Context, req Request, next Handler) (Response, Outcome, error) {
	if !m.enabled || m.store == nil || !fingerprint.Cacheable(req.Method, m.methods) {
		resp, err := next(ctx)
		return resp, OutcomeBypass, err
	}

	key, err := fingerprint.Compute(req.Method, req.Path, req.Body)
	if err != nil {
		logrus.WithError(err).Warnf("[CACHE] Could not fingerprint %s %s, bypassing", req.Method, req.Path)
		resp, err := next(ctx)
		return resp, OutcomeBypass, err
	}

	if body, ok := m.lookup(ctx, key); ok {
		logrus.Debugf("[CACHE] HIT %s %s key=%s", req.Method, req.Path, key[:12])
		return Response{Status: 200, Body: body}, OutcomeHit, nil
	}

	resp, err := next(ctx)
	if err != nil || resp.Status < 200 || resp.Status > 299 {
		return resp, OutcomeMiss, err
	}
	if !json.Valid(resp.Body) {
		logrus.Debugf("[CACHE] %s %s produced a non-JSON body, not caching", req.Method, req.Path)
		return resp, OutcomeMiss, nil
	}
	if m.save(ctx, key, resp.Body) {
		return resp, OutcomeStored, nil
	}
	return resp, OutcomeMiss, nil
}

func (m *Middleware) lookup(ctx context.Context, key string) (body json.RawMessage, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("[CACHE] Store panic on get %s: %v", key, r)
			body, ok = nil, false
		}
	}()
	body, ok, err := m.store.Get(ctx, key)
	if err != nil {
		logrus.WithError(err).Warnf("[CACHE] Store get failed for %s, treating as miss", key)
		return nil, false
	}
	return body, ok
}

func (m *Middleware) save(ctx context.Context, key string, body []byte) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("[CACHE] Store panic on set %s: %v", key, r)
			ok = false
		}
	}()
	// The handler may reuse its buffer after returning.
	value := make(json.RawMessage, len(body))
	copy(value, body)
	if err := m.store.Set(ctx, key, value, m.ttl); err != nil {
		logrus.WithError(fmt.Errorf("set %s: %w", key, err)).Warn("[CACHE] Store set failed, response not cached")
		return false
	}
	return true
}

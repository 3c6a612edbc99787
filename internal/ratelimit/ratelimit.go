// Package ratelimit implements the per-tier request quotas. Each tier is an
// independently configured limit/window pair keyed by client identity. The
// counter store is injected so multi-instance deployments can swap in a
// shared backend; the default in-process store means each instance enforces
// its own quota independently (effective system-wide limit is
// perInstanceLimit x instanceCount, a documented limitation).
package ratelimit

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// Tier is one quota class: a limit per fixed window.
type Tier struct {
	Name   string
	Limit  int
	Window time.Duration
}

// The standard tiers. Limits may be overridden from configuration before the
// middleware chain is built.
var (
	TierGeneral       = Tier{Name: "general", Limit: 100, Window: 15 * time.Minute}
	TierAuth          = Tier{Name: "auth", Limit: 10, Window: 15 * time.Minute}
	TierAPIKey        = Tier{Name: "api-key", Limit: 1000, Window: time.Minute}
	TierUpload        = Tier{Name: "upload", Limit: 10, Window: time.Hour}
	TierPasswordReset = Tier{Name: "password-reset", Limit: 3, Window: time.Hour}
)

// Store counts requests per (tier, identity) pair. Increment consumes one
// unit of quota and reports the running count and the time left in the
// current window; Peek reports without consuming.
type Store interface {
	Increment(tier Tier, key string) (count int, remaining time.Duration, err error)
	Peek(tier Tier, key string) (count int, remaining time.Duration, err error)
}

type counter struct {
	windowStart time.Time
	count       int
}

// MemoryStore is the process-local fixed-window Store. Counters are created
// lazily and reset exactly at the window boundary, so an identity is always
// guaranteed a fresh quota once its window elapses.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*counter
	now      func() time.Time
}

// NewMemoryStore creates an empty in-process counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]*counter),
		now:      time.Now,
	}
}

func (s *MemoryStore) get(tier Tier, key string, now time.Time) *counter {
	k := tier.Name + "|" + key
	c, ok := s.counters[k]
	if !ok || now.Sub(c.windowStart) >= tier.Window {
		c = &counter{windowStart: now}
		s.counters[k] = c
	}
	return c
}

// Increment implements Store.
func (s *MemoryStore) Increment(tier Tier, key string) (int, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	c := s.get(tier, key, now)
	c.count++
	return c.count, tier.Window - now.Sub(c.windowStart), nil
}

// Peek implements Store.
func (s *MemoryStore) Peek(tier Tier, key string) (int, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	c := s.get(tier, key, now)
	return c.count, tier.Window - now.Sub(c.windowStart), nil
}

// Cleanup drops counters whose window has long elapsed. Call periodically
// from a background goroutine on long-running processes.
func (s *MemoryStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, c := range s.counters {
		if now.Sub(c.windowStart) >= 2*time.Hour {
			delete(s.counters, k)
		}
	}
}

// ClientIP extracts the client identity for IP-keyed tiers. RealIP middleware
// runs earlier in the chain, so RemoteAddr already reflects X-Forwarded-For
// when present.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

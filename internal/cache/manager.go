package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var lookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gridpulse",
	Subsystem: "cache",
	Name:      "lookups_total",
	Help:      "Cache lookups by namespace and outcome (hit, miss, expired, stale_served).",
}, []string{"namespace", "outcome"})

// Source is the capability the orchestrator fetches through: one typed method
// instead of an arbitrary closure capturing ambient state. The returned value
// must be JSON-serializable.
type Source interface {
	Fetch(ctx context.Context) (any, error)
}

// SourceFunc adapts a plain function to the Source interface.
type SourceFunc func(ctx context.Context) (any, error)

func (f SourceFunc) Fetch(ctx context.Context) (any, error) { return f(ctx) }

// Stats are process-lifetime counters for one Manager. They only reset when
// the Manager is reconstructed.
type Stats struct {
	Hits          uint64  `json:"hits"`
	Misses        uint64  `json:"misses"`
	Expirations   uint64  `json:"expirations"`
	TotalRequests uint64  `json:"total_requests"`
	HitRate       float64 `json:"hit_rate"`
}

// Manager mediates between volatile, rate-limited upstream sources and the
// rest of the system: get-or-fetch with TTL, force refresh, stale fallback on
// fetch failure, and hit/miss/expiration accounting.
type Manager struct {
	backend   Backend
	ttl       time.Duration
	namespace string
	now       func() time.Time

	mu          sync.Mutex
	hits        uint64
	misses      uint64
	expirations uint64
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithTTL overrides the default 30 minute TTL.
func WithTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) { m.ttl = ttl }
}

// WithNamespace scopes all keys; at most one entry exists per
// (namespace, key) pair.
func WithNamespace(ns string) ManagerOption {
	return func(m *Manager) { m.namespace = ns }
}

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a cache orchestrator over backend.
func NewManager(backend Backend, opts ...ManagerOption) *Manager {
	m := &Manager{
		backend:   backend,
		ttl:       30 * time.Minute,
		namespace: "default",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	log.Info().Str("namespace", m.namespace).Dur("ttl", m.ttl).Msg("Cache manager initialized")
	return m
}

type fetchOptions struct {
	force bool
	ttl   time.Duration
}

// Option customizes a single GetOrFetch call.
type Option func(*fetchOptions)

// ForceRefresh bypasses the cache and always invokes the source. A failed
// forced fetch propagates; force refresh declines to consult the cache even
// for stale fallback.
func ForceRefresh() Option {
	return func(o *fetchOptions) { o.force = true }
}

// TTLOverride replaces the manager's default TTL for this call only.
func TTLOverride(ttl time.Duration) Option {
	return func(o *fetchOptions) { o.ttl = ttl }
}

// hashKey derives the fixed-width storage key. SHA-256 keeps filenames
// filesystem-safe and collisions negligible.
func (m *Manager) hashKey(key string) string {
	sum := sha256.Sum256([]byte(m.namespace + ":" + key))
	return hex.EncodeToString(sum[:])
}

// GetOrFetch returns the cached payload for key when it is younger than the
// effective TTL, and otherwise fetches through src. A failed fetch serves the
// most recent stored value regardless of staleness; with no stored value the
// failure propagates as a *FetchError. A write failure after a successful
// fetch is logged but the fresh payload is still returned.
func (m *Manager) GetOrFetch(ctx context.Context, key string, src Source, opts ...Option) (json.RawMessage, error) {
	o := fetchOptions{ttl: m.ttl}
	for _, opt := range opts {
		opt(&o)
	}

	hashed := m.hashKey(key)

	if !o.force {
		entry, ok, err := m.backend.Get(hashed)
		if err != nil {
			// A storage read failure is a miss; fall through to fetch.
			log.Warn().Err(err).Str("key", key).Msg("Cache read failed, treating as miss")
		} else if ok {
			age := m.now().Sub(entry.StoredAt)
			if age < o.ttl {
				m.count(&m.hits, "hit")
				log.Debug().Str("key", key).Dur("age", age).Msg("Cache hit")
				return entry.Payload, nil
			}
			m.count(&m.expirations, "expired")
			log.Debug().Str("key", key).Dur("age", age).Msg("Cache expired")
		}
	}

	value, err := src.Fetch(ctx)
	if err != nil {
		if !o.force {
			if entry, ok, gerr := m.backend.Get(hashed); gerr == nil && ok {
				m.countOutcome("stale_served")
				log.Warn().Err(err).Str("key", key).
					Time("stored_at", entry.StoredAt).
					Msg("Fetch failed, serving stale cache")
				return entry.Payload, nil
			}
		}
		return nil, &FetchError{Key: key, Err: err}
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return nil, &FetchError{Key: key, Err: fmt.Errorf("unserializable payload: %w", err)}
	}

	m.count(&m.misses, "miss")
	if err := m.backend.Set(hashed, Entry{Payload: payload, StoredAt: m.now()}); err != nil {
		// The fetch succeeded; not being able to cache it must not fail
		// the call.
		log.Error().Err(err).Str("key", key).Msg("Cache write failed, returning uncached value")
	}
	return payload, nil
}

// Clear removes a single key's entry. It reports storage errors rather than
// panicking past the boundary.
func (m *Manager) Clear(key string) error {
	if err := m.backend.Delete(m.hashKey(key)); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to clear cache entry")
		return err
	}
	log.Info().Str("key", key).Msg("Cleared cache entry")
	return nil
}

// ClearAll removes every entry owned by this manager's backend.
func (m *Manager) ClearAll() error {
	if err := m.backend.Clear(); err != nil {
		log.Error().Err(err).Msg("Failed to clear cache")
		return err
	}
	log.Info().Msg("Cleared all cache entries")
	return nil
}

// Stats returns the lifetime counters with the derived hit rate
// (hits / (hits+misses), 0 before any request).
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := m.hits + m.misses
	rate := 0.0
	if total > 0 {
		rate = float64(m.hits) / float64(total)
	}
	return Stats{
		Hits:          m.hits,
		Misses:        m.misses,
		Expirations:   m.expirations,
		TotalRequests: total,
		HitRate:       rate,
	}
}

func (m *Manager) count(counter *uint64, outcome string) {
	m.mu.Lock()
	*counter++
	m.mu.Unlock()
	m.countOutcome(outcome)
}

func (m *Manager) countOutcome(outcome string) {
	lookups.WithLabelValues(m.namespace, outcome).Inc()
}

// FetchAs runs GetOrFetch and decodes the payload into T.
func FetchAs[T any](ctx context.Context, m *Manager, key string, src Source, opts ...Option) (T, error) {
	var out T
	payload, err := m.GetOrFetch(ctx, key, src, opts...)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, &StorageError{Op: "decode", Key: key, Err: err}
	}
	return out, nil
}

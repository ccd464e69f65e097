package weather

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lox/regionweather/internal/metrics"
	"github.com/lox/regionweather/internal/models"
)

// DefaultTTL is how long a cache entry stays valid.
const DefaultTTL = 30 * time.Minute

// Outcome records how a Fetch was satisfied.
type Outcome string

const (
	OutcomeHit      Outcome = "hit"
	OutcomeFetched  Outcome = "fetched"
	OutcomeFallback Outcome = "fallback"
)

// Event is emitted after every Fetch so observers (the orchestrator, the UI)
// can react to completions and degraded outcomes.
type Event struct {
	Key     string
	Outcome Outcome
	Err     error // provider error when Outcome is fallback
}

// Provider is the external weather data collaborator.
type Provider interface {
	FetchHourly(ctx context.Context, p models.QueryParams) (models.Series, error)
}

// PersistentStore is the durable copy of the cache map. Implemented by
// store.Store; failures are logged and ignored, memory stays authoritative.
type PersistentStore interface {
	Load() (map[string]models.CacheEntry, error)
	Save(map[string]models.CacheEntry) error
	Clear() error
}

// Service resolves spatial+temporal queries to hourly series through an
// expiring fingerprint-keyed cache. Single writer: all mutation of the entry
// map happens through this type.
type Service struct {
	provider Provider
	store    PersistentStore
	ttl      time.Duration
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]models.CacheEntry
	subs    []func(Event)
}

func NewService(provider Provider, store PersistentStore, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Service{
		provider: provider,
		store:    store,
		ttl:      ttl,
		now:      time.Now,
		entries:  map[string]models.CacheEntry{},
	}
	s.rehydrate()
	return s
}

// rehydrate loads the persisted cache, dropping entries already past TTL so
// stale data is never visible.
func (s *Service) rehydrate() {
	if s.store == nil {
		return
	}
	loaded, err := s.store.Load()
	if err != nil {
		log.Printf("weather: load cache: %v", err)
		return
	}

	now := s.now()
	kept := 0
	for key, entry := range loaded {
		if now.Sub(entry.Timestamp) >= s.ttl {
			continue
		}
		s.entries[key] = entry
		kept++
	}
	if dropped := len(loaded) - kept; dropped > 0 {
		log.Printf("weather: dropped %d expired cache entries on load", dropped)
	}
}

// Subscribe registers a synchronous observer for fetch events.
func (s *Service) Subscribe(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *Service) notify(ev Event) {
	s.mu.Lock()
	subs := make([]func(Event), len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}

// Fetch resolves a query: valid cache entry wins, otherwise one provider
// request, otherwise a synthetic fallback. The fallback is never cached and
// its provider error rides along on the emitted event rather than failing
// the call; the dashboard stays functional on degraded data.
func (s *Service) Fetch(ctx context.Context, p models.QueryParams) (models.Series, Outcome, error) {
	if len(p.Fields) == 0 {
		return nil, "", fmt.Errorf("fetch: at least one field required")
	}

	key := Fingerprint(p)

	if series, ok := s.lookup(key); ok {
		metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
		s.notify(Event{Key: key, Outcome: OutcomeHit})
		return series, OutcomeHit, nil
	}

	series, err := s.provider.FetchHourly(ctx, p)
	if err != nil {
		log.Printf("weather: provider failed, using synthetic fallback: %v", err)
		metrics.FallbackSeriesTotal.Inc()
		fallback := Synthetic(p)
		s.notify(Event{Key: key, Outcome: OutcomeFallback, Err: err})
		return fallback, OutcomeFallback, nil
	}

	s.insert(key, models.CacheEntry{Data: series, Timestamp: s.now(), Params: p})
	s.notify(Event{Key: key, Outcome: OutcomeFetched})
	return series, OutcomeFetched, nil
}

// Lookup returns the cached series for params without touching the network.
// Used by recolor passes, which must read cache state as of the call.
func (s *Service) Lookup(p models.QueryParams) (models.Series, bool) {
	return s.lookup(Fingerprint(p))
}

func (s *Service) lookup(key string) (models.Series, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	if s.now().Sub(entry.Timestamp) >= s.ttl {
		// Expired entries are treated as absent and evicted lazily.
		delete(s.entries, key)
		metrics.CacheLookupsTotal.WithLabelValues("expired").Inc()
		return nil, false
	}
	return entry.Data, true
}

func (s *Service) insert(key string, entry models.CacheEntry) {
	s.mu.Lock()
	s.entries[key] = entry
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(snapshot)
}

// Clear empties the cache and its durable copy unconditionally.
func (s *Service) Clear() {
	s.mu.Lock()
	s.entries = map[string]models.CacheEntry{}
	s.mu.Unlock()

	if s.store == nil {
		return
	}
	if err := s.store.Clear(); err != nil {
		log.Printf("weather: clear cache store: %v", err)
	}
}

// Len reports the number of live in-memory entries.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Service) snapshotLocked() map[string]models.CacheEntry {
	snapshot := make(map[string]models.CacheEntry, len(s.entries))
	for k, v := range s.entries {
		snapshot[k] = v
	}
	return snapshot
}

func (s *Service) persist(snapshot map[string]models.CacheEntry) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(snapshot); err != nil {
		log.Printf("weather: persist cache: %v", err)
	}
}

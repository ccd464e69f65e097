package weather

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/lox/regionweather/internal/models"
)

type fakeProvider struct {
	calls  int
	series models.Series
	err    error
}

func (f *fakeProvider) FetchHourly(ctx context.Context, p models.QueryParams) (models.Series, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.series, nil
}

type memStore struct {
	saved   map[string]models.CacheEntry
	cleared bool
}

func (m *memStore) Load() (map[string]models.CacheEntry, error) {
	if m.saved == nil {
		return map[string]models.CacheEntry{}, nil
	}
	return m.saved, nil
}

func (m *memStore) Save(entries map[string]models.CacheEntry) error {
	m.saved = entries
	return nil
}

func (m *memStore) Clear() error {
	m.saved = nil
	m.cleared = true
	return nil
}

func testParams() models.QueryParams {
	return models.QueryParams{
		Latitude:  -36.794,
		Longitude: 146.977,
		StartDate: "2026-08-17",
		EndDate:   "2026-09-16",
		Fields:    []string{"temperature_2m"},
	}
}

func testSeries() models.Series {
	base := time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC)
	series := make(models.Series, 0, 4)
	for i := 0; i < 4; i++ {
		series = append(series, models.Sample{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Values:    map[string]float64{"temperature_2m": 10 + float64(i)},
		})
	}
	return series
}

func TestFetch_CachesAndHits(t *testing.T) {
	provider := &fakeProvider{series: testSeries()}
	store := &memStore{}
	svc := NewService(provider, store, DefaultTTL)

	series, outcome, err := svc.Fetch(context.Background(), testParams())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if outcome != OutcomeFetched {
		t.Errorf("outcome = %q, want fetched", outcome)
	}
	if provider.calls != 1 {
		t.Fatalf("provider calls = %d, want 1", provider.calls)
	}

	again, outcome, err := svc.Fetch(context.Background(), testParams())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if outcome != OutcomeHit {
		t.Errorf("outcome = %q, want hit", outcome)
	}
	if provider.calls != 1 {
		t.Errorf("provider calls = %d after cache hit, want 1", provider.calls)
	}
	if !reflect.DeepEqual(series, again) {
		t.Error("cached series differs from fetched series")
	}
	if len(store.saved) != 1 {
		t.Errorf("persisted entries = %d, want 1", len(store.saved))
	}
}

func TestFetch_FieldOrderIrrelevant(t *testing.T) {
	provider := &fakeProvider{series: testSeries()}
	svc := NewService(provider, &memStore{}, DefaultTTL)

	p := testParams()
	p.Fields = []string{"wind_speed_10m", "temperature_2m"}
	if _, _, err := svc.Fetch(context.Background(), p); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	p.Fields = []string{"temperature_2m", "wind_speed_10m"}
	_, outcome, err := svc.Fetch(context.Background(), p)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if outcome != OutcomeHit {
		t.Errorf("outcome = %q, want hit for reordered fields", outcome)
	}
	if provider.calls != 1 {
		t.Errorf("provider calls = %d, want 1", provider.calls)
	}
}

func TestFetch_Expiry(t *testing.T) {
	provider := &fakeProvider{series: testSeries()}
	svc := NewService(provider, &memStore{}, DefaultTTL)

	base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	now := base
	svc.now = func() time.Time { return now }

	if _, _, err := svc.Fetch(context.Background(), testParams()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	// Just inside TTL: still a hit.
	now = base.Add(DefaultTTL - time.Millisecond)
	_, outcome, _ := svc.Fetch(context.Background(), testParams())
	if outcome != OutcomeHit {
		t.Errorf("outcome = %q just inside TTL, want hit", outcome)
	}

	// Past TTL: entry treated as absent, fresh call performed.
	now = base.Add(DefaultTTL + time.Millisecond)
	_, outcome, _ = svc.Fetch(context.Background(), testParams())
	if outcome != OutcomeFetched {
		t.Errorf("outcome = %q past TTL, want fetched", outcome)
	}
	if provider.calls != 2 {
		t.Errorf("provider calls = %d, want 2", provider.calls)
	}
}

func TestFetch_FallbackOnProviderError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("boom")}
	store := &memStore{}
	svc := NewService(provider, store, DefaultTTL)

	var events []Event
	svc.Subscribe(func(ev Event) { events = append(events, ev) })

	series, outcome, err := svc.Fetch(context.Background(), testParams())
	if err != nil {
		t.Fatalf("Fetch: %v, fallback should not fail the call", err)
	}
	if outcome != OutcomeFallback {
		t.Errorf("outcome = %q, want fallback", outcome)
	}
	if len(series) != 31*24 {
		t.Errorf("fallback length = %d, want %d", len(series), 31*24)
	}

	// The fallback is not cached: a second call hits the provider again
	// and produces identical deterministic data.
	again, _, _ := svc.Fetch(context.Background(), testParams())
	if provider.calls != 2 {
		t.Errorf("provider calls = %d, want 2 (fallback never cached)", provider.calls)
	}
	if !reflect.DeepEqual(series, again) {
		t.Error("fallback series not deterministic across calls")
	}
	if svc.Len() != 0 {
		t.Errorf("cache len = %d, want 0", svc.Len())
	}
	if store.saved != nil {
		t.Error("fallback was persisted, want no save")
	}

	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Outcome != OutcomeFallback || events[0].Err == nil {
		t.Errorf("event = %+v, want fallback with error", events[0])
	}
}

func TestFetch_NoFields(t *testing.T) {
	svc := NewService(&fakeProvider{}, &memStore{}, DefaultTTL)

	p := testParams()
	p.Fields = nil
	if _, _, err := svc.Fetch(context.Background(), p); err == nil {
		t.Error("Fetch with no fields succeeded, want error")
	}
}

func TestNewService_PrunesExpiredOnLoad(t *testing.T) {
	now := time.Now()
	fresh := models.CacheEntry{Data: testSeries(), Timestamp: now.Add(-time.Minute), Params: testParams()}
	stale := models.CacheEntry{Data: testSeries(), Timestamp: now.Add(-DefaultTTL - time.Millisecond), Params: testParams()}

	store := &memStore{saved: map[string]models.CacheEntry{"fresh": fresh, "stale": stale}}
	svc := NewService(&fakeProvider{}, store, DefaultTTL)

	if svc.Len() != 1 {
		t.Errorf("len = %d after rehydrate, want 1 (stale dropped)", svc.Len())
	}
}

func TestClear(t *testing.T) {
	provider := &fakeProvider{series: testSeries()}
	store := &memStore{}
	svc := NewService(provider, store, DefaultTTL)

	if _, _, err := svc.Fetch(context.Background(), testParams()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	svc.Clear()

	if svc.Len() != 0 {
		t.Errorf("len = %d after Clear, want 0", svc.Len())
	}
	if !store.cleared {
		t.Error("durable copy not cleared")
	}

	_, outcome, _ := svc.Fetch(context.Background(), testParams())
	if outcome != OutcomeFetched {
		t.Errorf("outcome = %q after Clear, want fetched", outcome)
	}
}

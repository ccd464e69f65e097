package store

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lox/regionweather/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := New(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func testEntry(ts time.Time) models.CacheEntry {
	return models.CacheEntry{
		Data: models.Series{
			{Timestamp: ts, Values: map[string]float64{"temperature_2m": 18.5}},
			{Timestamp: ts.Add(time.Hour), Values: map[string]float64{"temperature_2m": 19.1}},
		},
		Timestamp: ts,
		Params: models.QueryParams{
			Latitude:  -36.794,
			Longitude: 146.977,
			StartDate: "2026-08-17",
			EndDate:   "2026-09-16",
			Fields:    []string{"temperature_2m"},
		},
	}
}

func TestLoad_Empty(t *testing.T) {
	store := setupTestStore(t)

	entries, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("len(entries) = %d, want 0", len(entries))
	}
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	store := setupTestStore(t)

	ts := time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC)
	in := map[string]models.CacheEntry{"k1": testEntry(ts)}

	if err := store.Save(in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}

	entry, ok := out["k1"]
	if !ok {
		t.Fatal("entry k1 missing after round trip")
	}
	if len(entry.Data) != 2 {
		t.Fatalf("len(entry.Data) = %d, want 2", len(entry.Data))
	}
	if got := entry.Data.FieldAt(1, "temperature_2m"); got != 19.1 {
		t.Errorf("sample[1] = %v, want 19.1", got)
	}
	if entry.Params.StartDate != "2026-08-17" {
		t.Errorf("StartDate = %q, want 2026-08-17", entry.Params.StartDate)
	}
	if !entry.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", entry.Timestamp, ts)
	}
}

func TestSave_Overwrites(t *testing.T) {
	store := setupTestStore(t)

	ts := time.Now().UTC().Truncate(time.Second)
	if err := store.Save(map[string]models.CacheEntry{"a": testEntry(ts), "b": testEntry(ts)}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(map[string]models.CacheEntry{"c": testEntry(ts)}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if _, ok := out["c"]; !ok {
		t.Error("entry c missing, save should replace the whole map")
	}
}

func TestClear(t *testing.T) {
	store := setupTestStore(t)

	ts := time.Now().UTC()
	if err := store.Save(map[string]models.CacheEntry{"a": testEntry(ts)}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	out, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("len(out) = %d after Clear, want 0", len(out))
	}
}

func TestGetStats(t *testing.T) {
	store := setupTestStore(t)

	stats, err := store.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.EntryCount != 0 || stats.SizeBytes != 0 {
		t.Errorf("empty stats = %+v, want zeros", stats)
	}

	ts := time.Now().UTC()
	if err := store.Save(map[string]models.CacheEntry{"a": testEntry(ts), "b": testEntry(ts)}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	stats, err = store.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.EntryCount != 2 {
		t.Errorf("EntryCount = %d, want 2", stats.EntryCount)
	}
	if stats.SizeBytes == 0 {
		t.Error("SizeBytes = 0, want > 0")
	}
	if stats.SavedAt.IsZero() {
		t.Error("SavedAt is zero, want set")
	}
}

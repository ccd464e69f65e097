// Package dashboard wires the engine together: window changes, fetch
// completions and source edits all funnel into recolor passes, and map
// clicks route to drawing or selection.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lox/regionweather/internal/derive"
	"github.com/lox/regionweather/internal/mapview"
	"github.com/lox/regionweather/internal/models"
	"github.com/lox/regionweather/internal/regions"
	"github.com/lox/regionweather/internal/sources"
	"github.com/lox/regionweather/internal/store"
	"github.com/lox/regionweather/internal/timewindow"
	"github.com/lox/regionweather/internal/weather"
)

// ErrInvalidDocument rejects malformed import payloads before any state is
// touched.
var ErrInvalidDocument = errors.New("invalid document")

const fetchTimeout = 30 * time.Second

// StatsProvider is the durable cache store's stats surface; nil when the
// process runs without persistence.
type StatsProvider interface {
	GetStats() (*store.Stats, error)
}

// CacheStats is the settings-surface view of the cache.
type CacheStats struct {
	Entries          int       `json:"entries"`
	PersistedEntries int       `json:"persistedEntries"`
	PersistedBytes   int64     `json:"persistedBytes"`
	SavedAt          time.Time `json:"savedAt,omitzero"`
}

// Dashboard is the orchestrator. It owns no domain state itself; it reacts
// to component events and drives recolor passes and fetches.
type Dashboard struct {
	ctx     context.Context
	window  *timewindow.Controller
	weather *weather.Service
	regions *regions.Store
	sources *sources.Registry
	surface mapview.Surface
	stats   StatsProvider

	// Fallback series are never cached, but the current pass still needs
	// them so degraded regions keep a color. Superseded by a real fetch.
	mu        sync.Mutex
	fallbacks map[string]models.Series
}

// New wires every subscription explicitly. ctx bounds background fetches;
// stats may be nil.
func New(ctx context.Context, window *timewindow.Controller, svc *weather.Service, regionStore *regions.Store, registry *sources.Registry, surface mapview.Surface, stats StatsProvider) *Dashboard {
	d := &Dashboard{
		ctx:       ctx,
		window:    window,
		weather:   svc,
		regions:   regionStore,
		sources:   registry,
		surface:   surface,
		stats:     stats,
		fallbacks: map[string]models.Series{},
	}

	surface.OnRegionClick(d.handleRegionClick)
	surface.OnSurfaceClick(d.handleSurfaceClick)

	// Recolor reads cache state as of the call; the background pass refills
	// anything the TTL evicted so long-running dashboards do not decay to
	// empty series once entries expire.
	window.Subscribe(func(models.TimeWindow) {
		d.Recolor()
		go d.EnsureData()
	})

	// A completed fetch re-triggers a pass; overlapping fetches resolve
	// last-applied-wins.
	svc.Subscribe(func(ev weather.Event) {
		switch ev.Outcome {
		case weather.OutcomeFetched:
			d.mu.Lock()
			delete(d.fallbacks, ev.Key)
			d.mu.Unlock()
			d.Recolor()
		case weather.OutcomeFallback:
			d.Recolor()
		}
	})

	// While a session is active the drawing tool overlays the map: clicks
	// must deliver coordinates even on top of existing regions.
	capturer, _ := surface.(mapview.ClickCapturer)
	regionStore.Subscribe(func(ev regions.Event) {
		switch ev.Kind {
		case regions.EventDrawStarted:
			if capturer != nil {
				capturer.CaptureClicks(true)
			}
		case regions.EventDrawEnded:
			if capturer != nil {
				capturer.CaptureClicks(false)
			}
		case regions.EventCreated:
			if p, ok := regionStore.Get(ev.PolygonID); ok {
				go d.fetchFor(p)
			}
		}
	})

	registry.Subscribe(func(models.DataSourceChangeEvent) { d.Recolor() })

	return d
}

// Window exposes the time window controller.
func (d *Dashboard) Window() *timewindow.Controller { return d.window }

// Regions exposes the polygon store.
func (d *Dashboard) Regions() *regions.Store { return d.regions }

// Sources exposes the data source registry.
func (d *Dashboard) Sources() *sources.Registry { return d.sources }

// FinishDrawing closes the active session, assigning the registry's default
// source to the new region.
func (d *Dashboard) FinishDrawing(name string) (models.Polygon, error) {
	return d.regions.FinishDrawing(name, d.sources.Default().Field)
}

// Recolor runs one synchronous derive pass over the current polygon set and
// applies the result. Reads cache state as of the call.
func (d *Dashboard) Recolor() {
	updated := derive.Recolor(d.regions.Polygons(), d.window.Window(), d.sources.ActiveByField(), d.lookup)
	d.regions.ApplyDerived(updated)
}

// lookup resolves a centroid+field to its full-horizon series: the cache
// first, then any fallback series still standing in for a failed fetch.
func (d *Dashboard) lookup(loc models.LatLng, field string) (models.Series, bool) {
	params := d.queryFor(loc, field)
	if series, ok := d.weather.Lookup(params); ok {
		return series, true
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	series, ok := d.fallbacks[weather.Fingerprint(params)]
	return series, ok
}

func (d *Dashboard) queryFor(loc models.LatLng, field string) models.QueryParams {
	startDate, endDate := d.window.HorizonDates()
	return models.QueryParams{
		Latitude:  loc.Lat,
		Longitude: loc.Lon,
		StartDate: startDate,
		EndDate:   endDate,
		Fields:    []string{field},
	}
}

// fetchFor resolves one polygon's full-horizon series. Fallback series are
// parked locally so the region still colors; the next successful fetch for
// the same key evicts them.
func (d *Dashboard) fetchFor(p models.Polygon) {
	ctx, cancel := context.WithTimeout(d.ctx, fetchTimeout)
	defer cancel()

	params := d.queryFor(derive.Centroid(p.Ring), p.SourceField)
	series, outcome, err := d.weather.Fetch(ctx, params)
	if err != nil {
		log.Printf("dashboard: fetch for polygon %s: %v", p.ID, err)
		return
	}
	if outcome == weather.OutcomeFallback {
		d.mu.Lock()
		d.fallbacks[weather.Fingerprint(params)] = series
		d.mu.Unlock()
		d.Recolor()
	}
}

// EnsureData fetches series for every polygon missing one. Used after
// imports; each completion triggers its own recolor pass.
func (d *Dashboard) EnsureData() {
	for _, p := range d.regions.Polygons() {
		params := d.queryFor(derive.Centroid(p.Ring), p.SourceField)
		if _, ok := d.weather.Lookup(params); ok {
			continue
		}
		d.fetchFor(p)
	}
}

func (d *Dashboard) handleRegionClick(id string) {
	if d.regions.Drawing() {
		return
	}
	d.regions.Select(id)
}

func (d *Dashboard) handleSurfaceClick(lon, lat float64) {
	if d.regions.Drawing() {
		if err := d.regions.AddPoint(lon, lat); err != nil {
			log.Printf("dashboard: add point: %v", err)
		}
		return
	}
	d.regions.ClearSelection()
}

// CacheStats reports live entry count plus the durable copy's size and age.
// Persistence errors degrade to memory-only stats.
func (d *Dashboard) CacheStats() CacheStats {
	cs := CacheStats{Entries: d.weather.Len()}
	if d.stats == nil {
		return cs
	}

	persisted, err := d.stats.GetStats()
	if err != nil {
		log.Printf("dashboard: cache stats: %v", err)
		return cs
	}
	cs.PersistedEntries = persisted.EntryCount
	cs.PersistedBytes = persisted.SizeBytes
	cs.SavedAt = persisted.SavedAt
	return cs
}

// ClearCache empties the weather cache, its durable copy and any parked
// fallback series, then recolors so regions drop to neutral.
func (d *Dashboard) ClearCache() {
	d.weather.Clear()
	d.mu.Lock()
	d.fallbacks = map[string]models.Series{}
	d.mu.Unlock()
	d.Recolor()
}

// Export snapshots polygons, selection and window into a document.
func (d *Dashboard) Export() models.ExportDocument {
	w := d.window.Window()
	doc := models.ExportDocument{
		Polygons:         d.regions.Polygons(),
		SelectedPolygons: []string{},
		TimeRange:        &w,
		Timestamp:        time.Now().UTC(),
	}
	if id := d.regions.Selected(); id != "" {
		doc.SelectedPolygons = append(doc.SelectedPolygons, id)
	}
	return doc
}

// Import validates the document, then applies present fields wholesale and
// leaves absent (nil) fields unchanged. Nothing is touched on a validation
// failure.
func (d *Dashboard) Import(doc models.ExportDocument) error {
	for i := range doc.Polygons {
		if err := validateRing(doc.Polygons[i].Ring); err != nil {
			return fmt.Errorf("%w: polygon %d: %v", ErrInvalidDocument, i, err)
		}
	}
	if doc.TimeRange != nil {
		switch doc.TimeRange.Mode {
		case models.ModeInstant, models.ModeRange:
		default:
			return fmt.Errorf("%w: unknown window mode %q", ErrInvalidDocument, doc.TimeRange.Mode)
		}
	}

	if doc.Polygons != nil {
		imported := make([]models.Polygon, 0, len(doc.Polygons))
		for _, p := range doc.Polygons {
			if p.ID == "" {
				p.ID = uuid.NewString()
			}
			if p.Color == "" {
				p.Color = derive.DefaultColor
			}
			imported = append(imported, p)
		}
		d.regions.Replace(imported)
	}
	if doc.SelectedPolygons != nil {
		d.regions.SetSelected("")
		if len(doc.SelectedPolygons) > 0 {
			d.regions.SetSelected(doc.SelectedPolygons[0])
		}
	}
	if doc.TimeRange != nil {
		if doc.TimeRange.Mode == models.ModeInstant {
			d.window.SetInstant(doc.TimeRange.Start)
		} else {
			d.window.SetRange(doc.TimeRange.Start, doc.TimeRange.End)
		}
	}

	d.Recolor()
	go d.EnsureData()
	return nil
}

// validateRing accepts only closed rings with at least 3 distinct vertices.
func validateRing(ring []models.LatLng) error {
	if len(ring) < 4 {
		return fmt.Errorf("ring has %d vertices, need at least 4", len(ring))
	}
	if ring[0] != ring[len(ring)-1] {
		return fmt.Errorf("ring is not closed")
	}
	return nil
}

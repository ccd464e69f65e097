// Package regions owns the polygon set and the interactive drawing workflow.
// Single writer: only this store mutates polygons; other components receive
// clones or go through its methods.
package regions

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/lox/regionweather/internal/derive"
	"github.com/lox/regionweather/internal/mapview"
	"github.com/lox/regionweather/internal/metrics"
	"github.com/lox/regionweather/internal/models"
)

var (
	ErrDrawingActive = errors.New("a drawing session is already active")
	ErrNotDrawing    = errors.New("no drawing session is active")
	ErrTooFewPoints  = errors.New("a region needs at least 3 points")
)

const (
	// draftRegionID is the surface id for the live drawing preview.
	draftRegionID = "draft"

	previewColor   = "#60a5fa"
	previewOpacity = 0.35
	fillOpacity    = 0.55
)

// Event kinds emitted on state transitions.
const (
	EventCreated     = "created"
	EventDeleted     = "deleted"
	EventRenamed     = "renamed"
	EventSelection   = "selection"
	EventDrawStarted = "draw_started"
	EventDrawEnded   = "draw_ended"
)

type Event struct {
	Kind      string
	PolygonID string
}

// session is the ephemeral drawing state; at most one exists at a time.
type session struct {
	pending   []models.LatLng
	nameDraft string
}

type Store struct {
	surface mapview.Surface

	mu       sync.Mutex
	polygons []models.Polygon
	selected string
	drawing  *session
	subs     []func(Event)
}

func NewStore(surface mapview.Surface) *Store {
	return &Store{surface: surface}
}

// Subscribe registers a synchronous observer for store events.
func (s *Store) Subscribe(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// StartDrawing opens a new drawing session. A second concurrent session is
// refused.
func (s *Store) StartDrawing() error {
	s.mu.Lock()
	if s.drawing != nil {
		s.mu.Unlock()
		return ErrDrawingActive
	}
	s.drawing = &session{}
	s.mu.Unlock()

	s.notify(Event{Kind: EventDrawStarted})
	return nil
}

// Drawing reports whether a session is active.
func (s *Store) Drawing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drawing != nil
}

// PendingPoints returns the session's placed vertices so far.
func (s *Store) PendingPoints() []models.LatLng {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drawing == nil {
		return nil
	}
	out := make([]models.LatLng, len(s.drawing.pending))
	copy(out, s.drawing.pending)
	return out
}

// AddPoint appends a vertex to the active session. From the third point on
// the open ring is previewed on the surface at reduced opacity.
func (s *Store) AddPoint(lon, lat float64) error {
	s.mu.Lock()
	if s.drawing == nil {
		s.mu.Unlock()
		return ErrNotDrawing
	}
	s.drawing.pending = append(s.drawing.pending, models.LatLng{Lon: lon, Lat: lat})
	preview := make([]models.LatLng, len(s.drawing.pending))
	copy(preview, s.drawing.pending)
	s.mu.Unlock()

	if len(preview) >= 3 {
		s.surface.SetRegion(draftRegionID, preview, previewColor, previewOpacity)
	}
	return nil
}

// SetNameDraft stores the in-progress name for the session.
func (s *Store) SetNameDraft(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drawing != nil {
		s.drawing.nameDraft = name
	}
}

// FinishDrawing closes the ring and creates the polygon. With fewer than 3
// points the session stays open so the user can keep placing points or
// cancel. defaultField is the data source assigned to the new region.
func (s *Store) FinishDrawing(name, defaultField string) (models.Polygon, error) {
	s.mu.Lock()
	if s.drawing == nil {
		s.mu.Unlock()
		return models.Polygon{}, ErrNotDrawing
	}
	if len(s.drawing.pending) < 3 {
		s.mu.Unlock()
		return models.Polygon{}, ErrTooFewPoints
	}

	if name == "" {
		name = s.drawing.nameDraft
	}
	if name == "" {
		name = fmt.Sprintf("Region %d", len(s.polygons)+1)
	}

	ring := make([]models.LatLng, 0, len(s.drawing.pending)+1)
	ring = append(ring, s.drawing.pending...)
	ring = append(ring, s.drawing.pending[0])

	polygon := models.Polygon{
		ID:          uuid.NewString(),
		Name:        name,
		Ring:        ring,
		SourceField: defaultField,
		Color:       derive.DefaultColor,
	}
	s.polygons = append(s.polygons, polygon)
	s.drawing = nil
	count := len(s.polygons)
	s.mu.Unlock()

	metrics.PolygonsActive.Set(float64(count))
	s.surface.RemoveRegion(draftRegionID)
	s.surface.SetRegion(polygon.ID, polygon.Ring, polygon.Color, fillOpacity)
	s.notify(Event{Kind: EventDrawEnded})
	s.notify(Event{Kind: EventCreated, PolygonID: polygon.ID})
	return polygon.Clone(), nil
}

// CancelDrawing discards the session unconditionally.
func (s *Store) CancelDrawing() {
	s.mu.Lock()
	active := s.drawing != nil
	s.drawing = nil
	s.mu.Unlock()

	if active {
		s.surface.RemoveRegion(draftRegionID)
		s.notify(Event{Kind: EventDrawEnded})
	}
}

// Delete removes a polygon and drops it from the selection. Absent ids are
// a no-op, so a double delete is harmless.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	s.polygons = append(s.polygons[:idx], s.polygons[idx+1:]...)
	if s.selected == id {
		s.selected = ""
	}
	count := len(s.polygons)
	s.mu.Unlock()

	metrics.PolygonsActive.Set(float64(count))
	s.surface.RemoveRegion(id)
	s.notify(Event{Kind: EventDeleted, PolygonID: id})
}

// Rename updates a polygon's name in place; absent ids are a no-op.
func (s *Store) Rename(id, name string) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	s.polygons[idx].Name = name
	s.mu.Unlock()

	s.notify(Event{Kind: EventRenamed, PolygonID: id})
}

// Select marks a polygon as the single selected region.
func (s *Store) Select(id string) {
	s.mu.Lock()
	if s.indexLocked(id) < 0 {
		s.mu.Unlock()
		return
	}
	s.selected = id
	s.mu.Unlock()

	s.notify(Event{Kind: EventSelection, PolygonID: id})
}

// ClearSelection deselects. Selection is independent of drawing state; the
// orchestrator only routes empty-surface clicks here when not drawing.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	had := s.selected != ""
	s.selected = ""
	s.mu.Unlock()

	if had {
		s.notify(Event{Kind: EventSelection})
	}
}

// Selected returns the selected polygon id, or "".
func (s *Store) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Polygons returns clones of all polygons in creation order.
func (s *Store) Polygons() []models.Polygon {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Polygon, 0, len(s.polygons))
	for _, p := range s.polygons {
		out = append(out, p.Clone())
	}
	return out
}

// Get returns a clone of one polygon.
func (s *Store) Get(id string) (models.Polygon, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexLocked(id); idx >= 0 {
		return s.polygons[idx].Clone(), true
	}
	return models.Polygon{}, false
}

// ApplyDerived stores recomputed values and colors and repaints each region.
// Unknown ids in the input are ignored: the polygon was deleted while the
// pass ran.
func (s *Store) ApplyDerived(updated []models.Polygon) {
	repaint := make([]models.Polygon, 0, len(updated))

	s.mu.Lock()
	for _, u := range updated {
		idx := s.indexLocked(u.ID)
		if idx < 0 {
			continue
		}
		if u.Value != nil {
			v := *u.Value
			s.polygons[idx].Value = &v
		}
		s.polygons[idx].Color = u.Color
		repaint = append(repaint, s.polygons[idx].Clone())
	}
	s.mu.Unlock()

	for _, p := range repaint {
		s.surface.SetRegion(p.ID, p.Ring, p.Color, fillOpacity)
	}
}

// Replace swaps the whole polygon set, used by document import. Selection is
// reset only when the previously selected polygon is gone.
func (s *Store) Replace(polygons []models.Polygon) {
	s.mu.Lock()
	old := s.polygons
	s.polygons = make([]models.Polygon, 0, len(polygons))
	for _, p := range polygons {
		s.polygons = append(s.polygons, p.Clone())
	}
	if s.selected != "" && s.indexLocked(s.selected) < 0 {
		s.selected = ""
	}
	count := len(s.polygons)
	fresh := make([]models.Polygon, len(s.polygons))
	copy(fresh, s.polygons)
	s.mu.Unlock()

	metrics.PolygonsActive.Set(float64(count))
	for _, p := range old {
		s.surface.RemoveRegion(p.ID)
	}
	for _, p := range fresh {
		s.surface.SetRegion(p.ID, p.Ring, p.Color, fillOpacity)
	}
}

// SetSelected restores a selection from an imported document.
func (s *Store) SetSelected(id string) {
	s.mu.Lock()
	if id != "" && s.indexLocked(id) < 0 {
		s.mu.Unlock()
		return
	}
	s.selected = id
	s.mu.Unlock()
}

func (s *Store) indexLocked(id string) int {
	for i := range s.polygons {
		if s.polygons[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) notify(ev Event) {
	s.mu.Lock()
	subs := make([]func(Event), len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}

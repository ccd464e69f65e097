// Package mapview defines the map-rendering collaborator boundary. The real
// rendering surface (tiles, pan/zoom, painting) lives outside this process;
// the engine only pushes filled regions at it and receives click reports.
package mapview

import (
	"sort"
	"sync"

	"github.com/golang/geo/s2"

	"github.com/lox/regionweather/internal/models"
)

// Surface is the narrow contract the engine holds against the renderer.
type Surface interface {
	SetRegion(id string, ring []models.LatLng, fillColor string, opacity float64)
	RemoveRegion(id string)
	OnRegionClick(fn func(id string))
	OnSurfaceClick(fn func(lon, lat float64))
}

// Region is one painted region as the surface sees it.
type Region struct {
	ID        string
	Ring      []models.LatLng
	FillColor string
	Opacity   float64
}

// ClickCapturer is implemented by surfaces that can suppress region hit
// testing, as a drawing tool overlaying the map does.
type ClickCapturer interface {
	CaptureClicks(capture bool)
}

// Memory is an in-process Surface: it records painted regions and dispatches
// clicks by spherical point-in-polygon hit testing.
type Memory struct {
	mu          sync.Mutex
	regions     map[string]Region
	loops       map[string]*s2.Loop
	capture     bool
	regionSubs  []func(id string)
	surfaceSubs []func(lon, lat float64)
}

func NewMemory() *Memory {
	return &Memory{
		regions: map[string]Region{},
		loops:   map[string]*s2.Loop{},
	}
}

func (m *Memory) SetRegion(id string, ring []models.LatLng, fillColor string, opacity float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]models.LatLng, len(ring))
	copy(stored, ring)
	m.regions[id] = Region{ID: id, Ring: stored, FillColor: fillColor, Opacity: opacity}
	m.loops[id] = loopFromRing(ring)
}

func (m *Memory) RemoveRegion(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.regions, id)
	delete(m.loops, id)
}

func (m *Memory) OnRegionClick(fn func(id string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regionSubs = append(m.regionSubs, fn)
}

func (m *Memory) OnSurfaceClick(fn func(lon, lat float64)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.surfaceSubs = append(m.surfaceSubs, fn)
}

// CaptureClicks toggles capture mode: while captured, every click reports
// its coordinate even over a painted region, so vertices can be placed on
// top of existing regions.
func (m *Memory) CaptureClicks(capture bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capture = capture
}

// Click simulates a user click: a hit on a painted region reports the region
// id, anywhere else reports the coordinate. Capture mode bypasses hit
// testing entirely.
func (m *Memory) Click(lon, lat float64) {
	m.mu.Lock()
	capture := m.capture
	m.mu.Unlock()

	if id, ok := m.HitTest(lon, lat); ok && !capture {
		m.mu.Lock()
		subs := make([]func(string), len(m.regionSubs))
		copy(subs, m.regionSubs)
		m.mu.Unlock()
		for _, fn := range subs {
			fn(id)
		}
		return
	}

	m.mu.Lock()
	subs := make([]func(float64, float64), len(m.surfaceSubs))
	copy(subs, m.surfaceSubs)
	m.mu.Unlock()
	for _, fn := range subs {
		fn(lon, lat)
	}
}

// HitTest finds the region containing the coordinate. With overlapping
// regions the lowest id wins, which keeps dispatch deterministic.
func (m *Memory) HitTest(lon, lat float64) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.loops))
	for id := range m.loops {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	pt := s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lon))
	for _, id := range ids {
		loop := m.loops[id]
		if loop != nil && loop.ContainsPoint(pt) {
			return id, true
		}
	}
	return "", false
}

// Regions returns a snapshot of everything currently painted.
func (m *Memory) Regions() []Region {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Region, 0, len(m.regions))
	for _, r := range m.regions {
		ring := make([]models.LatLng, len(r.Ring))
		copy(ring, r.Ring)
		r.Ring = ring
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// loopFromRing builds a normalized s2 loop from a (possibly closed) ring.
// Normalizing inverts loops whose area exceeds a hemisphere, so vertex
// winding order does not matter to containment.
func loopFromRing(ring []models.LatLng) *s2.Loop {
	pts := ring
	if n := len(pts); n > 1 && pts[0] == pts[n-1] {
		pts = pts[:n-1]
	}
	if len(pts) < 3 {
		return nil
	}

	vertices := make([]s2.Point, 0, len(pts))
	for _, p := range pts {
		vertices = append(vertices, s2.PointFromLatLng(s2.LatLngFromDegrees(p.Lat, p.Lon)))
	}
	loop := s2.LoopFromPoints(vertices)
	loop.Normalize()
	return loop
}

package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// HorizonHours is the fixed discrete time axis: 30 days of hourly samples.
// Hour 0 is 15 days before process start.
const HorizonHours = 720

// WindowMode selects between a single-hour sample and an interval average.
type WindowMode string

const (
	ModeInstant WindowMode = "instant"
	ModeRange   WindowMode = "range"
)

// TimeWindow is the current time selection over [0, HorizonHours].
type TimeWindow struct {
	Start int        `json:"start"`
	End   int        `json:"end"`
	Mode  WindowMode `json:"mode"`
}

// LatLng is a single vertex. It marshals as a [longitude, latitude] pair,
// matching the ring format the map surface expects.
type LatLng struct {
	Lon float64
	Lat float64
}

func (p LatLng) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.Lon, p.Lat})
}

func (p *LatLng) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("vertex must be a [lon, lat] pair: %w", err)
	}
	p.Lon = pair[0]
	p.Lat = pair[1]
	return nil
}

// Sample is one hourly reading with a value per requested field.
type Sample struct {
	Timestamp time.Time          `json:"timestamp"`
	Values    map[string]float64 `json:"values"`
}

// Series is an hourly time series. Index i corresponds to hour offset i from
// the start date of the query that produced it. Immutable once built; a new
// fetch for the same key supersedes rather than mutates.
type Series []Sample

// FieldAt returns the value of field at index i, or 0 when the index is out
// of range or the field is absent.
func (s Series) FieldAt(i int, field string) float64 {
	if i < 0 || i >= len(s) {
		return 0
	}
	return s[i].Values[field]
}

// Comparator operators for threshold rules.
const (
	CompLess         = "<"
	CompLessEqual    = "<="
	CompGreater      = ">"
	CompGreaterEqual = ">="
)

// Threshold is one ordered classification rule: first matching rule wins.
type Threshold struct {
	Comparator string  `json:"comparator"`
	Value      float64 `json:"value"`
	Color      string  `json:"color"`
	Label      string  `json:"label"`
}

// Matches reports whether v satisfies the rule's predicate.
func (t Threshold) Matches(v float64) bool {
	switch t.Comparator {
	case CompLess:
		return v < t.Value
	case CompLessEqual:
		return v <= t.Value
	case CompGreater:
		return v > t.Value
	case CompGreaterEqual:
		return v >= t.Value
	default:
		return false
	}
}

// DataSource describes one metric: catalog entries are immutable, active
// entries are mutable working copies held by the registry.
type DataSource struct {
	ID          string      `json:"id"`
	Field       string      `json:"field"`
	Unit        string      `json:"unit"`
	Description string      `json:"description"`
	Thresholds  []Threshold `json:"thresholds"`
}

// Clone returns a deep copy so threshold edits never touch the catalog.
func (d DataSource) Clone() DataSource {
	out := d
	out.Thresholds = make([]Threshold, len(d.Thresholds))
	copy(out.Thresholds, d.Thresholds)
	return out
}

// Polygon is a finalized region. The ring is closed (first vertex repeated
// last), so a triangle has four vertices.
type Polygon struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Ring        []LatLng `json:"ring"`
	SourceField string   `json:"sourceField"`
	Value       *float64 `json:"value,omitempty"`
	Color       string   `json:"color"`
}

// Clone returns a deep copy of the polygon.
func (p Polygon) Clone() Polygon {
	out := p
	out.Ring = make([]LatLng, len(p.Ring))
	copy(out.Ring, p.Ring)
	if p.Value != nil {
		v := *p.Value
		out.Value = &v
	}
	return out
}

// ExportDocument is the import/export wire shape. On import, nil fields are
// treated as absent and the corresponding in-memory state is left unchanged.
type ExportDocument struct {
	Polygons         []Polygon   `json:"polygons"`
	SelectedPolygons []string    `json:"selectedPolygons"`
	TimeRange        *TimeWindow `json:"timeRange"`
	Timestamp        time.Time   `json:"timestamp"`
}

// QueryParams identifies one weather query. The fingerprint is derived from
// these, so they are persisted alongside each cache entry for inspection.
type QueryParams struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	Fields    []string `json:"fields"`
}

// CacheEntry is one persisted cache record: fingerprint -> {data, timestamp,
// params}. Valid iff now - Timestamp < the cache TTL.
type CacheEntry struct {
	Data      Series      `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
	Params    QueryParams `json:"params"`
}

// DataSourceChangeEvent is the tagged payload emitted by the registry.
type DataSourceChangeEvent struct {
	Kind         string   `json:"kind"` // "activated", "deactivated", "threshold"
	SourceID     string   `json:"sourceId"`
	ActiveFields []string `json:"activeFields"`
}

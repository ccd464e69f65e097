// Package sources holds the catalog of available metrics and the bounded set
// of active data sources. Catalog entries are immutable; activating one
// copies it into a working set whose thresholds can be edited freely.
package sources

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/lox/regionweather/internal/models"
)

// MaxActive bounds the number of simultaneously active data sources.
const MaxActive = 3

var (
	ErrLastSource   = errors.New("cannot deactivate the last active data source")
	ErrUnknownID    = errors.New("unknown data source id")
	ErrBadIndex     = errors.New("index out of range")
	ErrBadThreshold = errors.New("unknown threshold field")
)

// catalog is the static set of metrics the dashboard knows about.
var catalog = []models.DataSource{
	{
		ID:          "temperature",
		Field:       "temperature_2m",
		Unit:        "°C",
		Description: "Air temperature at 2 metres",
		Thresholds: []models.Threshold{
			{Comparator: models.CompLess, Value: 10, Color: "#3b82f6", Label: "low"},
			{Comparator: models.CompLess, Value: 25, Color: "#f59e0b", Label: "medium"},
			{Comparator: models.CompGreaterEqual, Value: 25, Color: "#ef4444", Label: "high"},
		},
	},
	{
		ID:          "humidity",
		Field:       "relative_humidity_2m",
		Unit:        "%",
		Description: "Relative humidity at 2 metres",
		Thresholds: []models.Threshold{
			{Comparator: models.CompLess, Value: 40, Color: "#fbbf24", Label: "dry"},
			{Comparator: models.CompLess, Value: 70, Color: "#34d399", Label: "comfortable"},
			{Comparator: models.CompGreaterEqual, Value: 70, Color: "#3b82f6", Label: "humid"},
		},
	},
	{
		ID:          "wind",
		Field:       "wind_speed_10m",
		Unit:        "km/h",
		Description: "Wind speed at 10 metres",
		Thresholds: []models.Threshold{
			{Comparator: models.CompLess, Value: 12, Color: "#34d399", Label: "calm"},
			{Comparator: models.CompLess, Value: 29, Color: "#f59e0b", Label: "breezy"},
			{Comparator: models.CompGreaterEqual, Value: 29, Color: "#ef4444", Label: "windy"},
		},
	},
}

// Registry owns the active working set. Single writer: all mutation goes
// through its methods, readers get deep copies.
type Registry struct {
	mu     sync.Mutex
	active []models.DataSource
	subs   []func(models.DataSourceChangeEvent)
}

// NewRegistry starts with the first catalog entry active; at least one
// source is active at all times.
func NewRegistry() *Registry {
	return &Registry{
		active: []models.DataSource{catalog[0].Clone()},
	}
}

// Catalog returns copies of the static catalog entries.
func Catalog() []models.DataSource {
	out := make([]models.DataSource, 0, len(catalog))
	for _, d := range catalog {
		out = append(out, d.Clone())
	}
	return out
}

// Subscribe registers a synchronous observer for registry changes.
func (r *Registry) Subscribe(fn func(models.DataSourceChangeEvent)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, fn)
}

// Active returns deep copies of the working set, in activation order.
func (r *Registry) Active() []models.DataSource {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.DataSource, 0, len(r.active))
	for _, d := range r.active {
		out = append(out, d.Clone())
	}
	return out
}

// ActiveByField indexes the working set by metric field, for recolor passes.
func (r *Registry) ActiveByField() map[string]models.DataSource {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]models.DataSource, len(r.active))
	for _, d := range r.active {
		out[d.Field] = d.Clone()
	}
	return out
}

// Default returns the source newly drawn polygons are assigned.
func (r *Registry) Default() models.DataSource {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active[0].Clone()
}

// Activate copies a catalog entry into the working set. Already-active ids
// and a full working set are silent no-ops; only an unknown id errors.
func (r *Registry) Activate(id string) error {
	var def *models.DataSource
	for i := range catalog {
		if catalog[i].ID == id {
			def = &catalog[i]
			break
		}
	}
	if def == nil {
		return fmt.Errorf("%w: %q", ErrUnknownID, id)
	}

	r.mu.Lock()
	if len(r.active) >= MaxActive {
		r.mu.Unlock()
		return nil
	}
	for _, d := range r.active {
		if d.ID == id {
			r.mu.Unlock()
			return nil
		}
	}

	r.active = append(r.active, def.Clone())
	ev := models.DataSourceChangeEvent{Kind: "activated", SourceID: id, ActiveFields: r.activeFieldsLocked()}
	r.mu.Unlock()

	r.notify(ev)
	return nil
}

// Deactivate removes the working copy at index. Removing the last active
// source is refused.
func (r *Registry) Deactivate(index int) error {
	r.mu.Lock()
	if index < 0 || index >= len(r.active) {
		r.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrBadIndex, index)
	}
	if len(r.active) == 1 {
		r.mu.Unlock()
		return ErrLastSource
	}

	id := r.active[index].ID
	r.active = append(r.active[:index], r.active[index+1:]...)
	ev := models.DataSourceChangeEvent{Kind: "deactivated", SourceID: id, ActiveFields: r.activeFieldsLocked()}
	r.mu.Unlock()

	r.notify(ev)
	return nil
}

// UpdateThreshold edits one rule of one active source's working copy. The
// static catalog is never touched. Numeric values arrive as strings from the
// API layer and are parsed here.
func (r *Registry) UpdateThreshold(index, level int, field, value string) error {
	r.mu.Lock()

	if index < 0 || index >= len(r.active) {
		r.mu.Unlock()
		return fmt.Errorf("%w: source %d", ErrBadIndex, index)
	}
	src := &r.active[index]
	if level < 0 || level >= len(src.Thresholds) {
		r.mu.Unlock()
		return fmt.Errorf("%w: level %d", ErrBadIndex, level)
	}

	th := &src.Thresholds[level]
	var applyErr error
	switch field {
	case "comparator":
		switch value {
		case models.CompLess, models.CompLessEqual, models.CompGreater, models.CompGreaterEqual:
			th.Comparator = value
		default:
			applyErr = fmt.Errorf("invalid comparator %q", value)
		}
	case "value":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			applyErr = fmt.Errorf("invalid threshold value %q: %w", value, err)
		} else {
			th.Value = v
		}
	case "color":
		th.Color = value
	case "label":
		th.Label = value
	default:
		applyErr = fmt.Errorf("%w: %q", ErrBadThreshold, field)
	}
	if applyErr != nil {
		r.mu.Unlock()
		return applyErr
	}

	ev := models.DataSourceChangeEvent{Kind: "threshold", SourceID: src.ID, ActiveFields: r.activeFieldsLocked()}
	r.mu.Unlock()

	r.notify(ev)
	return nil
}

func (r *Registry) activeFieldsLocked() []string {
	fields := make([]string, 0, len(r.active))
	for _, d := range r.active {
		fields = append(fields, d.Field)
	}
	return fields
}

func (r *Registry) notify(ev models.DataSourceChangeEvent) {
	r.mu.Lock()
	subs := make([]func(models.DataSourceChangeEvent), len(r.subs))
	copy(subs, r.subs)
	r.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}

// Package derive maps a polygon set and a time window to per-polygon scalar
// values and threshold-driven colors. Everything here is pure: series are
// read through a lookup callback and polygons are returned as updated copies.
package derive

import (
	"github.com/lox/regionweather/internal/metrics"
	"github.com/lox/regionweather/internal/models"
)

// DefaultColor is the neutral fill used when no threshold rule matches.
const DefaultColor = "#9ca3af"

// SeriesLookup resolves a representative location and data field to the
// cached series for that query, if one exists. A recolor pass only ever sees
// cache state as of the call; fetches completing later re-trigger a pass.
type SeriesLookup func(loc models.LatLng, field string) (models.Series, bool)

// Centroid approximates a polygon's representative location as the
// arithmetic mean of its ring vertices. The closing vertex is excluded so it
// does not double-count the first. Not an exact areal centroid.
func Centroid(ring []models.LatLng) models.LatLng {
	pts := ring
	if n := len(pts); n > 1 && pts[0] == pts[n-1] {
		pts = pts[:n-1]
	}
	if len(pts) == 0 {
		return models.LatLng{}
	}

	var sumLon, sumLat float64
	for _, p := range pts {
		sumLon += p.Lon
		sumLat += p.Lat
	}
	return models.LatLng{
		Lon: sumLon / float64(len(pts)),
		Lat: sumLat / float64(len(pts)),
	}
}

// Reduce collapses a series to the window's representative scalar: the
// sample at Start in instant mode, the inclusive mean over [Start, End] in
// range mode. Out-of-range indexes and empty series yield 0.
func Reduce(series models.Series, window models.TimeWindow, field string) float64 {
	if len(series) == 0 {
		return 0
	}

	if window.Mode == models.ModeInstant {
		return series.FieldAt(window.Start, field)
	}

	s := clamp(window.Start, 0, len(series)-1)
	e := clamp(window.End, 0, len(series)-1)
	if e < s {
		s, e = e, s
	}

	var sum float64
	for i := s; i <= e; i++ {
		sum += series.FieldAt(i, field)
	}
	return sum / float64(e-s+1)
}

// Classify evaluates ordered threshold rules against a value. The first
// matching rule wins; with none matching the neutral default applies.
func Classify(value float64, thresholds []models.Threshold) (color, label string) {
	for _, t := range thresholds {
		if t.Matches(value) {
			return t.Color, t.Label
		}
	}
	return DefaultColor, ""
}

// Recolor computes each polygon's representative value and color for the
// window. Polygons whose series is not yet cached reduce as empty (value 0).
// Input polygons are never mutated.
func Recolor(polygons []models.Polygon, window models.TimeWindow, sources map[string]models.DataSource, lookup SeriesLookup) []models.Polygon {
	metrics.RecolorPassesTotal.Inc()

	out := make([]models.Polygon, 0, len(polygons))
	for _, p := range polygons {
		updated := p.Clone()

		series, _ := lookup(Centroid(p.Ring), p.SourceField)
		value := Reduce(series, window, p.SourceField)
		updated.Value = &value

		var thresholds []models.Threshold
		if src, ok := sources[p.SourceField]; ok {
			thresholds = src.Thresholds
		}
		updated.Color, _ = Classify(value, thresholds)

		out = append(out, updated)
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

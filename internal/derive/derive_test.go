package derive

import (
	"math"
	"testing"
	"time"

	"github.com/lox/regionweather/internal/models"
)

func seriesOf(values ...float64) models.Series {
	base := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	series := make(models.Series, 0, len(values))
	for i, v := range values {
		series = append(series, models.Sample{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Values:    map[string]float64{"temperature_2m": v},
		})
	}
	return series
}

func TestCentroid(t *testing.T) {
	tests := []struct {
		name string
		ring []models.LatLng
		want models.LatLng
	}{
		{
			"closed square",
			[]models.LatLng{{Lon: 0, Lat: 0}, {Lon: 2, Lat: 0}, {Lon: 2, Lat: 2}, {Lon: 0, Lat: 2}, {Lon: 0, Lat: 0}},
			models.LatLng{Lon: 1, Lat: 1},
		},
		{
			"open triangle",
			[]models.LatLng{{Lon: 0, Lat: 0}, {Lon: 3, Lat: 0}, {Lon: 0, Lat: 3}},
			models.LatLng{Lon: 1, Lat: 1},
		},
		{
			"empty ring",
			nil,
			models.LatLng{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Centroid(tt.ring)
			if got != tt.want {
				t.Errorf("Centroid = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestReduce_Instant(t *testing.T) {
	series := seriesOf(10, 11, 12, 13)

	tests := []struct {
		name  string
		start int
		want  float64
	}{
		{"first sample", 0, 10},
		{"mid sample", 2, 12},
		{"past end", 99, 0},
		{"negative", -1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := models.TimeWindow{Start: tt.start, End: tt.start, Mode: models.ModeInstant}
			if got := Reduce(series, w, "temperature_2m"); got != tt.want {
				t.Errorf("Reduce = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReduce_Range(t *testing.T) {
	series := seriesOf(10, 20, 30, 40)

	tests := []struct {
		name       string
		start, end int
		want       float64
	}{
		{"full span", 0, 3, 25},
		{"subspan", 1, 2, 25},
		{"zero width equals instant", 2, 2, 30},
		{"end clamped", 2, 99, 35},
		{"both clamped", -5, 99, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := models.TimeWindow{Start: tt.start, End: tt.end, Mode: models.ModeRange}
			if got := Reduce(series, w, "temperature_2m"); got != tt.want {
				t.Errorf("Reduce = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReduce_EmptySeries(t *testing.T) {
	for _, mode := range []models.WindowMode{models.ModeInstant, models.ModeRange} {
		w := models.TimeWindow{Start: 0, End: 5, Mode: mode}
		if got := Reduce(nil, w, "temperature_2m"); got != 0 {
			t.Errorf("Reduce(%s, empty) = %v, want 0", mode, got)
		}
	}
}

func TestClassify_OrderDependent(t *testing.T) {
	thresholds := []models.Threshold{
		{Comparator: models.CompLess, Value: 10, Color: "#3b82f6", Label: "low"},
		{Comparator: models.CompLess, Value: 25, Color: "#f59e0b", Label: "medium"},
		{Comparator: models.CompGreaterEqual, Value: 25, Color: "#ef4444", Label: "high"},
	}

	tests := []struct {
		value     float64
		wantLabel string
	}{
		{5, "low"},
		{9.99, "low"},
		{10, "medium"},
		{24.9, "medium"}, // first match wins, never "high"
		{25, "high"},
		{100, "high"},
	}

	for _, tt := range tests {
		_, label := Classify(tt.value, thresholds)
		if label != tt.wantLabel {
			t.Errorf("Classify(%v) = %q, want %q", tt.value, label, tt.wantLabel)
		}
	}
}

func TestClassify_NoMatch(t *testing.T) {
	thresholds := []models.Threshold{
		{Comparator: models.CompLess, Value: 0, Color: "#000", Label: "never"},
	}
	color, label := Classify(5, thresholds)
	if color != DefaultColor || label != "" {
		t.Errorf("Classify = (%q, %q), want neutral default", color, label)
	}
}

func TestRecolor(t *testing.T) {
	sources := map[string]models.DataSource{
		"temperature_2m": {
			Field: "temperature_2m",
			Thresholds: []models.Threshold{
				{Comparator: models.CompLess, Value: 15, Color: "#3b82f6", Label: "low"},
				{Comparator: models.CompGreaterEqual, Value: 15, Color: "#ef4444", Label: "high"},
			},
		},
	}

	ring := []models.LatLng{{Lon: 0, Lat: 0}, {Lon: 1, Lat: 0}, {Lon: 1, Lat: 1}, {Lon: 0, Lat: 1}, {Lon: 0, Lat: 0}}
	polygons := []models.Polygon{
		{ID: "a", Ring: ring, SourceField: "temperature_2m"},
		{ID: "b", Ring: ring, SourceField: "temperature_2m"},
	}

	series := seriesOf(10, 20)
	lookup := func(loc models.LatLng, field string) (models.Series, bool) {
		if loc != (models.LatLng{Lon: 0.5, Lat: 0.5}) {
			t.Errorf("lookup location = %+v, want centroid (0.5, 0.5)", loc)
		}
		return series, true
	}

	window := models.TimeWindow{Start: 1, End: 1, Mode: models.ModeInstant}
	out := Recolor(polygons, window, sources, lookup)

	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}
	for _, p := range out {
		if p.Value == nil || *p.Value != 20 {
			t.Errorf("polygon %s value = %v, want 20", p.ID, p.Value)
		}
		if p.Color != "#ef4444" {
			t.Errorf("polygon %s color = %q, want #ef4444", p.ID, p.Color)
		}
	}

	// Inputs untouched.
	if polygons[0].Value != nil || polygons[0].Color != "" {
		t.Error("Recolor mutated its input")
	}
}

func TestRecolor_MissingSeries(t *testing.T) {
	polygons := []models.Polygon{{
		ID:          "a",
		Ring:        []models.LatLng{{Lon: 0, Lat: 0}, {Lon: 1, Lat: 0}, {Lon: 0, Lat: 1}, {Lon: 0, Lat: 0}},
		SourceField: "temperature_2m",
	}}

	lookup := func(models.LatLng, string) (models.Series, bool) { return nil, false }
	out := Recolor(polygons, models.TimeWindow{Mode: models.ModeInstant}, nil, lookup)

	if out[0].Value == nil || *out[0].Value != 0 {
		t.Errorf("value = %v, want 0 for missing series", out[0].Value)
	}
	if out[0].Color != DefaultColor {
		t.Errorf("color = %q, want default", out[0].Color)
	}
}

func TestReduce_RangeMatchesInstantAtZeroWidth(t *testing.T) {
	series := seriesOf(3, 1, 4, 1, 5, 9, 2, 6)
	for s := 0; s < len(series); s++ {
		instant := Reduce(series, models.TimeWindow{Start: s, End: s, Mode: models.ModeInstant}, "temperature_2m")
		ranged := Reduce(series, models.TimeWindow{Start: s, End: s, Mode: models.ModeRange}, "temperature_2m")
		if math.Abs(instant-ranged) > 1e-9 {
			t.Errorf("s=%d: instant %v != range %v", s, instant, ranged)
		}
	}
}

package weather

import (
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/lox/regionweather/internal/models"
)

const dateLayout = "2006-01-02"

// Synthetic generates a deterministic fallback series covering the requested
// date span at hourly cadence. Temperature follows a seasonal sinusoid
// (365 day period) plus a diurnal sinusoid (24h period) plus bounded noise;
// humidity and wind speed take independent bounded plausible ranges. The
// generator is seeded from the query fingerprint so repeated failures for the
// same query produce identical data.
func Synthetic(p models.QueryParams) models.Series {
	start, err := time.Parse(dateLayout, p.StartDate)
	if err != nil {
		start = time.Now().UTC().Truncate(24 * time.Hour)
	}
	end, err := time.Parse(dateLayout, p.EndDate)
	if err != nil {
		end = start.Add(29 * 24 * time.Hour)
	}

	hours := int(end.Sub(start).Hours()) + 24
	if hours <= 0 {
		hours = 24
	}

	h := fnv.New64a()
	h.Write([]byte(Fingerprint(p)))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	series := make(models.Series, 0, hours)
	for i := 0; i < hours; i++ {
		ts := start.Add(time.Duration(i) * time.Hour)

		values := make(map[string]float64, len(p.Fields))
		for _, field := range p.Fields {
			values[field] = syntheticValue(field, ts, rng)
		}
		series = append(series, models.Sample{Timestamp: ts, Values: values})
	}
	return series
}

func syntheticValue(field string, ts time.Time, rng *rand.Rand) float64 {
	switch {
	case strings.Contains(field, "temperature"):
		seasonal := 8 * math.Sin(2*math.Pi*float64(ts.YearDay())/365)
		diurnal := 6 * math.Sin(2*math.Pi*float64(ts.Hour()-9)/24)
		noise := (rng.Float64()*2 - 1) * 1.5
		return round1(12 + seasonal + diurnal + noise)
	case strings.Contains(field, "humidity"):
		return round1(40 + rng.Float64()*40)
	case strings.Contains(field, "wind"):
		return round1(5 + rng.Float64()*25)
	default:
		return round1(rng.Float64() * 100)
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

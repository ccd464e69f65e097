package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WeatherAPICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regionweather_provider_calls_total",
			Help: "Total weather provider API calls",
		},
		[]string{"status"},
	)

	WeatherAPILatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "regionweather_provider_latency_seconds",
			Help:    "Weather provider call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regionweather_cache_lookups_total",
			Help: "Cache lookups by outcome (hit, miss, expired)",
		},
		[]string{"outcome"},
	)

	FallbackSeriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "regionweather_fallback_series_total",
			Help: "Synthetic fallback series generated after provider failures",
		},
	)

	RecolorPassesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "regionweather_recolor_passes_total",
			Help: "Derived-value recolor passes over the polygon set",
		},
	)

	PolygonsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "regionweather_polygons_active",
			Help: "Number of finalized polygons in the store",
		},
	)
)

// Package metrics exposes Prometheus collectors for the discovery service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DiscoveryRuns counts terminal run outcomes.
	DiscoveryRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discovery_runs_total",
		Help: "Terminal discovery run outcomes.",
	}, []string{"outcome"})

	// ProviderSearches counts provider queries issued across all runs.
	ProviderSearches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "discovery_provider_searches_total",
		Help: "Search provider queries issued.",
	})

	// WinningRadius observes the radius at which runs found a video.
	WinningRadius = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "discovery_winning_radius_miles",
		Help:    "Radius in miles at which a video was found.",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000},
	})

	// RunDuration observes end-to-end run duration, including the
	// perceived-loading gate.
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "discovery_run_duration_seconds",
		Help:    "Discovery run duration from start to visible terminal state.",
		Buckets: prometheus.DefBuckets,
	})
)

// Handler serves the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Package metrics registers the prometheus instruments for the
// collaboration core and exposes the scrape handler mounted at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "giscolab_mutations_total",
		Help: "Accepted area mutations by kind (create|update)",
	}, []string{"kind"})
	VersionConflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "giscolab_version_conflicts_total",
		Help: "Updates rejected by optimistic concurrency",
	})
	GeometryErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "giscolab_geometry_errors_total",
		Help: "Mutations rejected by ring validation",
	})
	RateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "giscolab_rate_limited_total",
		Help: "Mutations rejected by the per-identity rate limiter",
	})
	QueriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "giscolab_queries_total",
		Help: "Bounding-box range queries served",
	})
	MutationDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "giscolab_mutation_duration_ms",
		Help:    "End-to-end mutation duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	ConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "giscolab_connections_active",
		Help: "Live collaborator connections",
	})
	BroadcastsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "giscolab_broadcasts_total",
		Help: "Fan-out broadcast passes (relays and roster updates)",
	})
)

func init() {
	prometheus.MustRegister(MutationsTotal)
	prometheus.MustRegister(VersionConflictsTotal)
	prometheus.MustRegister(GeometryErrorsTotal)
	prometheus.MustRegister(RateLimitedTotal)
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(MutationDurationMs)
	prometheus.MustRegister(ConnectionsActive)
	prometheus.MustRegister(BroadcastsTotal)
}

// Handler returns the prometheus scrape handler
func Handler() http.Handler { return promhttp.Handler() }

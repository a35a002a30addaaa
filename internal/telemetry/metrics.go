// Package telemetry exposes the router's Prometheus metrics, grounded on the
// teacher's internal/infra/telemetry/prometheus.go: promauto-registered
// vectors behind a constructor that defaults to the global registerer.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"mcpd/internal/domain"
)

// PrometheusMetrics implements domain.RouterMetrics.
type PrometheusMetrics struct {
	routeDuration    *prometheus.HistogramVec
	upstreamStatus   *prometheus.GaugeVec
	indexBuildSize   prometheus.Gauge
	indexBuildTime   prometheus.Histogram
	searchDuration   *prometheus.HistogramVec
}

// NewPrometheusMetrics registers the router's metric vectors against
// registerer, defaulting to the global registry when nil.
func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &PrometheusMetrics{
		routeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mcprouter_route_duration_seconds",
				Help:    "Duration of tools/call routing through an upstream session",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"public_name", "upstream_id", "status"},
		),
		upstreamStatus: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mcprouter_upstream_status",
				Help: "Current lifecycle state of an upstream session (1 = current state, else 0)",
			},
			[]string{"upstream_id", "status"},
		),
		indexBuildSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mcprouter_index_size",
			Help: "Number of entries in the most recently built tool index",
		}),
		indexBuildTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mcprouter_index_build_seconds",
			Help:    "Duration of the most recent tool index build",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		searchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mcprouter_search_duration_seconds",
				Help:    "Duration of search_tools requests",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"status"},
		),
	}
}

func (p *PrometheusMetrics) ObserveRoute(publicName, upstreamID, status string, duration time.Duration) {
	p.routeDuration.WithLabelValues(publicName, upstreamID, status).Observe(duration.Seconds())
}

// SetUpstreamStatus sets the gauge for status to 1 and every other known
// status to 0 for upstreamID, so the current state is the only one lit.
func (p *PrometheusMetrics) SetUpstreamStatus(upstreamID string, status domain.UpstreamStatus) {
	all := []domain.UpstreamStatus{
		domain.UpstreamInit, domain.UpstreamConnecting, domain.UpstreamReady,
		domain.UpstreamDegraded, domain.UpstreamClosed,
	}
	for _, s := range all {
		value := 0.0
		if s == status {
			value = 1.0
		}
		p.upstreamStatus.WithLabelValues(upstreamID, string(s)).Set(value)
	}
}

func (p *PrometheusMetrics) ObserveIndexBuild(duration time.Duration, size int) {
	p.indexBuildTime.Observe(duration.Seconds())
	p.indexBuildSize.Set(float64(size))
}

func (p *PrometheusMetrics) ObserveSearch(status string, duration time.Duration) {
	p.searchDuration.WithLabelValues(status).Observe(duration.Seconds())
}

var _ domain.RouterMetrics = (*PrometheusMetrics)(nil)

// Package metrics exposes Prometheus metrics for `pomgen serve`.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/felixgeelhaar/pomgen/internal/errors"
)

// Metrics holds all Prometheus metrics for pomgen
type Metrics struct {
	// HTTP API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	HTTPInFlight prometheus.Gauge

	// Pipeline metrics
	StageInvocations *prometheus.CounterVec
	RegistryVersion  prometheus.Gauge
	DriftedArtifacts prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pomgen_http_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"route", "method", "code"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pomgen_http_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"route", "method"},
		),
		HTTPInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pomgen_http_requests_in_flight",
				Help: "API requests currently being served",
			},
		),
		StageInvocations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pomgen_stage_invocations_total",
				Help: "Stage invocations served, by stage and outcome",
			},
			[]string{"stage", "outcome"},
		),
		RegistryVersion: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pomgen_registry_version",
				Help: "Registry version after the last committed invocation",
			},
		),
		DriftedArtifacts: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pomgen_drifted_artifacts",
				Help: "Generated files that drifted or went missing at the last status check",
			},
		),
	}
}

// ObserveInvocation counts one invocation of stage; err is nil on
// success.
func (m *Metrics) ObserveInvocation(stage string, version uint64, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(errors.KindFrom(err))
	} else {
		m.RegistryVersion.Set(float64(version))
	}
	m.StageInvocations.WithLabelValues(stage, outcome).Inc()
}

type recorder struct {
	http.ResponseWriter
	code int
}

func (r *recorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// Instrument wraps mux. The route label is the matched ServeMux
// pattern, so mux must be the handler that routes r.
func (m *Metrics) Instrument(mux http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.HTTPInFlight.Inc()
		defer m.HTTPInFlight.Dec()

		start := time.Now()
		rec := &recorder{ResponseWriter: w, code: http.StatusOK}
		mux.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.code)).Inc()
		m.HTTPDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

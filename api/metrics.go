package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seenimoa/calcthis/internal/calculator"
)

const (
	namespace = "calcthis"

	calculatorLabel = "calculator"
	outcomeLabel    = "outcome"
)

// Metrics owns the Prometheus collectors exported on /metrics.
type Metrics struct {
	registry     *prometheus.Registry
	calculations *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	requests     *prometheus.CounterVec
	trackOnce    sync.Once
}

// NewMetrics creates the collectors on a dedicated Prometheus registry,
// together with the Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		calculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calculations_total",
			Help:      "Number of calculations partitioned by calculator and outcome.",
		}, []string{calculatorLabel, outcomeLabel}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "calculation_duration_seconds",
			Help:      "Time spent in Registry.Calculate, including validation and cache lookup.",
			Buckets:   []float64{.00001, .0001, .001, .01, .1, 1},
		}, []string{calculatorLabel}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Number of HTTP requests partitioned by status code, method and route.",
		}, []string{"code", "method", "path"}),
	}
	m.registry.MustRegister(
		m.calculations,
		m.duration,
		m.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe matches calculator.Observer; install it with calculator.WithObserver.
func (m *Metrics) Observe(id, outcome string, d time.Duration) {
	m.calculations.With(prometheus.Labels{calculatorLabel: id, outcomeLabel: outcome}).Inc()
	m.duration.With(prometheus.Labels{calculatorLabel: id}).Observe(d.Seconds())
}

// TrackRegistry exports the registry size as calcthis_registered_calculators.
// Only the first call has an effect.
func (m *Metrics) TrackRegistry(reg *calculator.Registry) {
	m.trackOnce.Do(func() {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registered_calculators",
			Help:      "Number of calculators in the registry.",
		}, func() float64 { return float64(reg.Len()) }))
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Middleware counts requests by route pattern so that IDs in the path do not
// explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if rp := rctx.RoutePattern(); rp != "" {
				path = rp
			}
		}
		m.requests.WithLabelValues(strconv.Itoa(ww.Status()), r.Method, path).Inc()
	})
}

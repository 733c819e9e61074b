package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ahmethakanbesel/fxreport/internal/rate"
)

var _ rate.Observer = (*Metrics)(nil)

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	CacheDaysTotal    *prometheus.CounterVec
	FetchesTotal      *prometheus.CounterVec
	ReconcileDuration *prometheus.HistogramVec
	ReportsTotal      *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"path", "method", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),

		CacheDaysTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_cache_days_total",
				Help: "Requested currency days served from the store (hit) or missing from it (miss)",
			},
			[]string{"currency", "result"},
		),

		FetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_fetches_total",
				Help: "Provider fetches by outcome",
			},
			[]string{"currency", "outcome"},
		),

		ReconcileDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rate_reconcile_duration_seconds",
				Help:    "Time spent reconciling a request window",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),

		ReportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reports_generated_total",
				Help: "Reports generated by type and format",
			},
			[]string{"type", "format"},
		),
	}
}

func (m *Metrics) ObserveCache(c rate.Currency, hits, misses int) {
	m.CacheDaysTotal.WithLabelValues(string(c), "hit").Add(float64(hits))
	m.CacheDaysTotal.WithLabelValues(string(c), "miss").Add(float64(misses))
}

func (m *Metrics) ObserveFetch(c rate.Currency, outcome string) {
	m.FetchesTotal.WithLabelValues(string(c), outcome).Inc()
}

func (m *Metrics) ObserveReconcile(outcome string, elapsed time.Duration) {
	m.ReconcileDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveReport(reportType, format string) {
	m.ReportsTotal.WithLabelValues(reportType, format).Inc()
}

// ObserveHTTP records a finished request. status is bucketed into 2xx, 4xx...
func (m *Metrics) ObserveHTTP(path, method string, status int, elapsed time.Duration) {
	m.HTTPRequestDuration.WithLabelValues(path, method).Observe(elapsed.Seconds())
	m.HTTPRequestsTotal.WithLabelValues(path, method, fmt.Sprintf("%dxx", status/100)).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

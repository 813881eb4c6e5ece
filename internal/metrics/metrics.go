// Package metrics exposes Prometheus instrumentation for the watermark API.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request outcomes used as the "outcome" label.
const (
	OutcomeSuccess      = "success"
	OutcomeUnauthorized = "unauthorized"
	OutcomeBadRequest   = "bad_request"
	OutcomeTooLarge     = "too_large"
	OutcomeFailed       = "failed"
)

// Metrics holds the collectors on a private registry, so tests can build as
// many instances as they like without duplicate registration panics.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal       *prometheus.CounterVec
	requestDuration     prometheus.Histogram
	pagesTotal          prometheus.Counter
	usageRecordFailures prometheus.Counter
}

// New creates and registers all collectors under the given namespace.
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "watermark_requests_total",
				Help:      "Total number of watermark requests by outcome.",
			},
			[]string{"outcome"},
		),
		requestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "watermark_request_duration_seconds",
				Help:      "Time spent stamping a PDF and writing the response.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		pagesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "watermark_pages_total",
				Help:      "Total number of pages watermarked.",
			},
		),
		usageRecordFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "usage_record_failures_total",
				Help:      "Usage updates that failed after the PDF was returned.",
			},
		),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.pagesTotal,
		m.usageRecordFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRequest counts a finished watermark request.
func (m *Metrics) ObserveRequest(outcome string, elapsed time.Duration) {
	m.requestsTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeSuccess {
		m.requestDuration.Observe(elapsed.Seconds())
	}
}

// AddPages counts pages stamped.
func (m *Metrics) AddPages(n int) {
	if n > 0 {
		m.pagesTotal.Add(float64(n))
	}
}

func (m *Metrics) UsageRecordFailed() {
	m.usageRecordFailures.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RequestsCounter exposes the per-outcome request counter for assertions.
func (m *Metrics) RequestsCounter(outcome string) prometheus.Counter {
	return m.requestsTotal.WithLabelValues(outcome)
}

func (m *Metrics) UsageFailuresCounter() prometheus.Counter {
	return m.usageRecordFailures
}

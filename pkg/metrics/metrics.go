// Package metrics définit les collecteurs Prometheus du worker et le handler de scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics regroupe les collecteurs Prometheus du service
type Metrics struct {
	registry *prometheus.Registry

	JobsSubmittedTotal   *prometheus.CounterVec
	JobsProcessedTotal   *prometheus.CounterVec
	JobDuration          *prometheus.HistogramVec
	DeliveryAttempts     *prometheus.CounterVec
	RetrievalFallbacks   prometheus.Counter
	GenerationRepairs    *prometheus.CounterVec
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	ArtifactsPurgedTotal prometheus.Counter
}

// New crée et enregistre les collecteurs dans un registre dédié
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		JobsSubmittedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobs_submitted_total",
				Help: "Total jobs accepted by kind.",
			},
			[]string{"kind"},
		),
		JobsProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobs_processed_total",
				Help: "Total jobs processed by kind and final status.",
			},
			[]string{"kind", "status"},
		),
		JobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "job_duration_seconds",
				Help:    "Job processing time in seconds, delivery included.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"kind"},
		),
		DeliveryAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callback_delivery_attempts_total",
				Help: "Callback POST attempts by outcome (success, failure).",
			},
			[]string{"outcome"},
		),
		RetrievalFallbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "retrieval_fallbacks_total",
				Help: "Retrievals served by the keyword fallback ranker.",
			},
		),
		GenerationRepairs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "generation_repairs_total",
				Help: "Repair prompts issued after an invalid model reply, by kind.",
			},
			[]string{"kind"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		ArtifactsPurgedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "artifacts_purged_total",
				Help: "Expired rendered artifacts removed by housekeeping.",
			},
		),
	}

	m.registry.MustRegister(
		m.JobsSubmittedTotal,
		m.JobsProcessedTotal,
		m.JobDuration,
		m.DeliveryAttempts,
		m.RetrievalFallbacks,
		m.GenerationRepairs,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ArtifactsPurgedTotal,
	)

	return m
}

// Handler retourne le handler de scraping pour ce registre
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry expose le registre (tests, collecteurs additionnels)
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Les helpers suivants acceptent un receveur nil pour que les composants
// puissent être construits sans métriques (tests).

func (m *Metrics) JobSubmitted(kind string) {
	if m == nil {
		return
	}
	m.JobsSubmittedTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) JobProcessed(kind, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.JobsProcessedTotal.WithLabelValues(kind, status).Inc()
	m.JobDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (m *Metrics) DeliveryAttempt(success bool) {
	if m == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.DeliveryAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RetrievalFallback() {
	if m == nil {
		return
	}
	m.RetrievalFallbacks.Inc()
}

func (m *Metrics) GenerationRepair(kind string) {
	if m == nil {
		return
	}
	m.GenerationRepairs.WithLabelValues(kind).Inc()
}

func (m *Metrics) ArtifactsPurged(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ArtifactsPurgedTotal.Add(float64(n))
}

func (m *Metrics) HTTPRequest(method, path, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

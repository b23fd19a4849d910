// Package metrics exposes Prometheus counters for checks, probes and moderation.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "riskcheck"

// Metrics holds the collectors registered on a private registry
type Metrics struct {
	registry *prometheus.Registry

	checks        *prometheus.CounterVec
	checkDuration prometheus.Histogram
	subchecks     *prometheus.CounterVec
	reports       *prometheus.CounterVec
	uploads       *prometheus.CounterVec
	requests      *prometheus.CounterVec
	reqDuration   *prometheus.HistogramVec
}

// New creates and registers all collectors, plus Go runtime and process metrics
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_total",
			Help:      "Completed checks by risk level.",
		}, []string{"risk_level", "grade"}),
		checkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "check_duration_seconds",
			Help:      "Wall time of a full check.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}),
		subchecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_subchecks_total",
			Help:      "External sub-check outcomes by check name and tier.",
		}, []string{"check", "status"}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "community_reports_total",
			Help:      "Community report lifecycle events.",
		}, []string{"event"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evidence_uploads_total",
			Help:      "Evidence uploads, split by whether the content was new.",
		}, []string{"created"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		}, []string{"method", "route", "code"}),
		reqDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		m.checks, m.checkDuration, m.subchecks, m.reports, m.uploads, m.requests, m.reqDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCheck records a finished check
func (m *Metrics) ObserveCheck(riskLevel, grade string, d time.Duration) {
	if m == nil {
		return
	}
	m.checks.WithLabelValues(riskLevel, grade).Inc()
	m.checkDuration.Observe(d.Seconds())
}

// ObserveSubcheck records one probe outcome
func (m *Metrics) ObserveSubcheck(check, status string) {
	if m == nil {
		return
	}
	m.subchecks.WithLabelValues(check, status).Inc()
}

// ReportEvent records submitted/approved/rejected
func (m *Metrics) ReportEvent(event string) {
	if m == nil {
		return
	}
	m.reports.WithLabelValues(event).Inc()
}

// ObserveUpload records an evidence upload
func (m *Metrics) ObserveUpload(created bool) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(strconv.FormatBool(created)).Inc()
}

// ObserveRequest records one HTTP request
func (m *Metrics) ObserveRequest(method, route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.reqDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	// SLAScans counts SLA scan passes by outcome (completed, skipped)
	SLAScans = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "compliflow_sla_scans_total",
		Help: "Number of SLA scan passes.",
	}, []string{"outcome"})

	// SLABreaches counts issues flagged as SLA breached
	SLABreaches = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "compliflow_sla_breaches_total",
		Help: "Number of issues flagged as SLA breached.",
	})

	// SLAScanFailures counts per-issue failures during SLA scans
	SLAScanFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "compliflow_sla_scan_failures_total",
		Help: "Number of issues that failed to be flagged during SLA scans.",
	})

	// SLAScanDuration observes the wall time of a scan pass
	SLAScanDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "compliflow_sla_scan_duration_seconds",
		Help:    "SLA scan duration in seconds.",
		Buckets: prometheus.DefBuckets,
	})

	// Transitions counts workflow transition attempts by result
	Transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "compliflow_workflow_transitions_total",
		Help: "Workflow transition attempts by result.",
	}, []string{"result"})

	// AuditAppendFailures counts audit entries that could not be persisted
	AuditAppendFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "compliflow_audit_append_failures_total",
		Help: "Number of audit entries that failed to persist.",
	})

	// NotificationsDropped counts events not delivered to a slow realtime subscriber
	NotificationsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "compliflow_notifications_dropped_total",
		Help: "Number of realtime events dropped for slow subscribers.",
	})

	// HTTPRequests counts HTTP requests by method, route pattern and status
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "compliflow_http_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"method", "route", "status"})

	// HTTPDuration observes HTTP latency by method and route pattern
	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "compliflow_http_request_duration_seconds",
		Help:    "HTTP request latencies in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

func init() {
	registry.MustRegister(
		SLAScans,
		SLABreaches,
		SLAScanFailures,
		SLAScanDuration,
		Transitions,
		AuditAppendFailures,
		NotificationsDropped,
		HTTPRequests,
		HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Registry returns the registry holding every compliflow collector
func Registry() *prometheus.Registry {
	return registry
}

// Handler serves the registry in the Prometheus exposition format
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

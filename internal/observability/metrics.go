package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's prometheus collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	gatherer        prometheus.Gatherer
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errors          *prometheus.CounterVec
	roleChanges     *prometheus.CounterVec
	advisoryFailed  *prometheus.CounterVec
	denials         *prometheus.CounterVec
	principals      prometheus.Counter
}

// NewMetrics registers collectors on a dedicated registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		gatherer: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dinewithus_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dinewithus_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dinewithus_http_errors_total",
			Help: "Error responses by route and error code.",
		}, []string{"route", "method", "code"}),
		roleChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dinewithus_role_changes_total",
			Help: "Completed role selections by role.",
		}, []string{"role"}),
		advisoryFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dinewithus_role_sync_advisory_failures_total",
			Help: "Best-effort backend calls that failed during role changes.",
		}, []string{"step"}),
		denials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dinewithus_access_denials_total",
			Help: "Capability checks that denied access.",
		}, []string{"capability", "role"}),
		principals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dinewithus_principals_created_total",
			Help: "Mirror records created on first sight of an email.",
		}),
	}
	reg.MustRegister(m.requests, m.requestDuration, m.errors, m.roleChanges, m.advisoryFailed, m.denials, m.principals)
	return m
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(route, method, code).Inc()
}

// RecordRoleChange counts a role selection that reached the local mirror.
func (m *Metrics) RecordRoleChange(role string) {
	if m == nil {
		return
	}
	m.roleChanges.WithLabelValues(role).Inc()
}

// RecordAdvisoryFailure counts a swallowed backend failure.
func (m *Metrics) RecordAdvisoryFailure(step string) {
	if m == nil {
		return
	}
	m.advisoryFailed.WithLabelValues(step).Inc()
}

// RecordDenial counts a capability denial. Unknown roles collapse into "none".
func (m *Metrics) RecordDenial(capability, role string) {
	if m == nil {
		return
	}
	switch role {
	case "guest", "host":
	default:
		role = "none"
	}
	m.denials.WithLabelValues(capability, role).Inc()
}

// RecordPrincipalCreated counts lazily created mirror records.
func (m *Metrics) RecordPrincipalCreated() {
	if m == nil {
		return
	}
	m.principals.Inc()
}

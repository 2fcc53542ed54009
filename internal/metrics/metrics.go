package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	groupsdomain "roommates-app-go/internal/domain/groups"
	requestsdomain "roommates-app-go/internal/domain/requests"
)

const namespace = "roommates"

// Metrics owns a private registry so tests and multiple app instances do not
// collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	mergesCompleted   *prometheus.CounterVec
	mergesRejected    *prometheus.CounterVec
	groupsSwept       prometheus.Counter
	requestsResolved  *prometheus.CounterVec
	sideEffectsFailed *prometheus.CounterVec
	notificationsSent *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		mergesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "groups",
			Name:      "merges_completed_total",
			Help:      "Accepted group invites by merge scenario.",
		}, []string{"scenario"}),
		mergesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "groups",
			Name:      "merges_rejected_total",
			Help:      "Group invites that did not produce a merge.",
		}, []string{"reason"}),
		groupsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "groups",
			Name:      "swept_total",
			Help:      "Solo groups removed by the sweeper.",
		}),
		requestsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "requests",
			Name:      "resolved_total",
			Help:      "Requests moved out of PENDING.",
		}, []string{"kind", "status", "partial"}),
		sideEffectsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "requests",
			Name:      "side_effects_failed_total",
			Help:      "Approval side effects that failed after the status write.",
		}, []string{"step"}),
		notificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "sent_total",
			Help:      "Notification sends, split by deduplication.",
		}, []string{"deduplicated"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		m.mergesCompleted,
		m.mergesRejected,
		m.groupsSwept,
		m.requestsResolved,
		m.sideEffectsFailed,
		m.notificationsSent,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) MergeCompleted(scenario groupsdomain.Scenario) {
	m.mergesCompleted.WithLabelValues(string(scenario)).Inc()
}

func (m *Metrics) MergeRejected(reason string) {
	m.mergesRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) GroupsSwept(count int) {
	if count <= 0 {
		return
	}
	m.groupsSwept.Add(float64(count))
}

func (m *Metrics) RequestResolved(kind requestsdomain.Kind, status requestsdomain.Status, partial bool) {
	m.requestsResolved.WithLabelValues(string(kind), string(status), strconv.FormatBool(partial)).Inc()
}

func (m *Metrics) SideEffectFailed(step string) {
	m.sideEffectsFailed.WithLabelValues(step).Inc()
}

func (m *Metrics) NotificationSent(deduplicated bool) {
	m.notificationsSent.WithLabelValues(strconv.FormatBool(deduplicated)).Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, code int, seconds float64) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(seconds)
}

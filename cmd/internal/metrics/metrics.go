// Package metrics owns taskmgr's Prometheus collectors.
//
// Collectors live in a private registry so tests and multiple servers in one
// process do not collide on the global default registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "taskmgr"

// Metrics implements session.Observer and records login and HTTP outcomes.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	sessionsIssued  prometheus.Counter
	sessionsRotated prometheus.Counter
	sessionsRevoked prometheus.Counter
	sessionLookups  *prometheus.CounterVec

	logins *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers every collector (plus Go runtime and process collectors) on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessionsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_issued_total",
			Help:      "Refresh sessions created.",
		}),
		sessionsRotated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_rotated_total",
			Help:      "Refresh sessions revoked in favour of a successor.",
		}),
		sessionsRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_revoked_total",
			Help:      "Refresh sessions revoked without a successor.",
		}),
		sessionLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_lookups_total",
			Help:      "Active-session lookups by result.",
		}, []string{"result"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status class.",
		}, []string{"method", "class"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.sessionsIssued,
		m.sessionsRotated,
		m.sessionsRevoked,
		m.sessionLookups,
		m.logins,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) SessionIssued() {
	if m != nil {
		m.sessionsIssued.Inc()
	}
}

func (m *Metrics) SessionRotated() {
	if m != nil {
		m.sessionsRotated.Inc()
	}
}

func (m *Metrics) SessionRevoked() {
	if m != nil {
		m.sessionsRevoked.Inc()
	}
}

func (m *Metrics) SessionLookup(result string) {
	if m != nil {
		m.sessionLookups.WithLabelValues(result).Inc()
	}
}

// LoginAttempt counts one login outcome.
func (m *Metrics) LoginAttempt(result string) {
	if m != nil {
		m.logins.WithLabelValues(result).Inc()
	}
}

// Middleware records request count by status class and latency by method.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		method := MethodLabel(r.Method)
		m.httpRequests.WithLabelValues(method, StatusClass(sw.status)).Inc()
		m.httpDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	})
}

// MethodLabel keeps the method label bounded: any method outside the standard
// set is reported as "other".
func MethodLabel(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions:
		return method
	default:
		return "other"
	}
}

// StatusClass maps 404 to "4xx"; anything outside 100..599 is "unknown".
func StatusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(p)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

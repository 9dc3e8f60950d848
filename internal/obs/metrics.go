package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Session transition labels.
const (
	TransitionLogin        = "login"
	TransitionLoginFailed  = "login_failed"
	TransitionRestore      = "restore"
	TransitionRestoreFail  = "restore_failed"
	TransitionRefresh      = "refresh"
	TransitionRefreshFail  = "refresh_failed"
	TransitionLogout       = "logout"
	TransitionTeardown     = "teardown"
	TransitionAuthRejected = "auth_rejected"
)

// Metrics groups the console's client-side collectors.
type Metrics struct {
	Transitions     *prometheus.CounterVec
	APIRequests     *prometheus.CounterVec
	APIDuration     *prometheus.HistogramVec
	APIInFlight     prometheus.Gauge
	ServerRequests  *prometheus.CounterVec
	ServerDurations *prometheus.HistogramVec
}

// NewMetrics creates collectors and registers them on reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_session_transitions_total",
			Help: "Session state transitions by kind.",
		}, []string{"transition"}),
		APIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_api_requests_total",
			Help: "Outbound API requests by method and status.",
		}, []string{"method", "status"}),
		APIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "console_api_request_duration_seconds",
			Help:    "Outbound API request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		APIInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "console_api_in_flight_requests",
			Help: "Outbound API requests currently in flight.",
		}),
		ServerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests served.",
		}, []string{"method", "path", "status"}),
		ServerDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
	if reg != nil {
		reg.MustRegister(m.Transitions, m.APIRequests, m.APIDuration, m.APIInFlight, m.ServerRequests, m.ServerDurations)
	}
	return m
}

// Transition counts a session transition. Safe on a nil receiver.
func (m *Metrics) Transition(kind string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(kind).Inc()
}

// ObserveRequest records an outbound call. status 0 means a transport failure.
func (m *Metrics) ObserveRequest(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.APIRequests.WithLabelValues(method, label).Inc()
	m.APIDuration.WithLabelValues(method).Observe(d.Seconds())
}

// Handler exposes the collectors gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Instrument wraps a server handler with request counters and latency.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		path := CanonicalPath(r.URL.Path)
		m.ServerDurations.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		m.ServerRequests.WithLabelValues(r.Method, path, status).Inc()
	})
}

// CanonicalPath collapses numeric ids so label cardinality stays bounded.
func CanonicalPath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	parts := strings.Split(p, "/")
	for i, part := range parts {
		if part == "" {
			continue
		}
		if _, err := strconv.ParseUint(part, 10, 64); err == nil {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

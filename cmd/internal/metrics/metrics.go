// Package metrics holds the prometheus collectors shared by the service components.
//
// All methods are safe on a nil *Metrics, so components built without metrics
// (tests, tools) need no guards.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stl"

// Metrics is the collector set for one process.
type Metrics struct {
	registry *prometheus.Registry

	logins          *prometheus.CounterVec
	sessionsCreated prometheus.Counter
	sessionsRevoked prometheus.Counter
	liveConnections prometheus.Gauge
	livePushes      *prometheus.CounterVec
	codesIssued     *prometheus.CounterVec
	codesConsumed   *prometheus.CounterVec
	upgradeClaims   *prometheus.CounterVec
	mailSent        *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// New builds the collector set on a fresh registry that also carries the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "logins_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "sessions_created_total",
			Help: "Session rows recorded.",
		}),
		sessionsRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "sessions_revoked_total",
			Help: "Session rows deleted by explicit revocation.",
		}),
		liveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "live_connections",
			Help: "Open live channel connections.",
		}),
		livePushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "live_logout_pushes_total",
			Help: "Logout pushes by outcome (delivered, absent).",
		}, []string{"outcome"}),
		codesIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "verification_codes_issued_total",
			Help: "Verification codes issued by purpose.",
		}, []string{"purpose"}),
		codesConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "verification_codes_consumed_total",
			Help: "Verification code consume attempts by purpose and result.",
		}, []string{"purpose", "result"}),
		upgradeClaims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "upgrade_claims_total",
			Help: "Upgrade key claim attempts by result.",
		}, []string{"result"}),
		mailSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "mail_sent_total",
			Help: "Outbound mail by template and result.",
		}, []string{"template", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests by method and status class.",
		}, []string{"method", "class"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}

	reg.MustRegister(
		m.logins,
		m.sessionsCreated,
		m.sessionsRevoked,
		m.liveConnections,
		m.livePushes,
		m.codesIssued,
		m.codesConsumed,
		m.upgradeClaims,
		m.mailSent,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Login counts a login attempt; result is "success", "invalid", "throttled" or "error".
func (m *Metrics) Login(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

// SessionCreated counts a recorded session row.
func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
}

// SessionRevoked counts a revoked session row.
func (m *Metrics) SessionRevoked() {
	if m == nil {
		return
	}
	m.sessionsRevoked.Inc()
}

// LiveConnected adjusts the open-connection gauge by delta.
func (m *Metrics) LiveConnected(delta int) {
	if m == nil {
		return
	}
	m.liveConnections.Add(float64(delta))
}

// LivePush counts a logout push.
func (m *Metrics) LivePush(delivered bool) {
	if m == nil {
		return
	}
	outcome := "absent"
	if delivered {
		outcome = "delivered"
	}
	m.livePushes.WithLabelValues(outcome).Inc()
}

// CodeIssued counts an issued verification code.
func (m *Metrics) CodeIssued(purpose string) {
	if m == nil {
		return
	}
	m.codesIssued.WithLabelValues(purpose).Inc()
}

// CodeConsumed counts a consume attempt.
func (m *Metrics) CodeConsumed(purpose string, ok bool) {
	if m == nil {
		return
	}
	m.codesConsumed.WithLabelValues(purpose, resultLabel(ok)).Inc()
}

// UpgradeClaim counts a claim attempt.
func (m *Metrics) UpgradeClaim(ok bool) {
	if m == nil {
		return
	}
	m.upgradeClaims.WithLabelValues(resultLabel(ok)).Inc()
}

// MailSent counts an outbound message.
func (m *Metrics) MailSent(template string, ok bool) {
	if m == nil {
		return
	}
	m.mailSent.WithLabelValues(template, resultLabel(ok)).Inc()
}

// HTTPRequest records one served request.
func (m *Metrics) HTTPRequest(method, class string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, class).Inc()
	m.httpDuration.WithLabelValues(method).Observe(d.Seconds())
}

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// Package metrics exposes Prometheus instrumentation for the consent gate.
package metrics

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ziadkadry99/privacypilot/internal/policy"
)

// Metrics holds the collectors for the consent gate. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	// Gate checks by category and result ("allowed" / "blocked")
	GateChecks *prometheus.CounterVec

	// Decisions recorded by kind
	Decisions *prometheus.CounterVec

	// Durable write failures by target ("consent_record" / "audit_log")
	WriteFailures *prometheus.CounterVec

	// Current policy, 1 when the category is granted
	CategoryGranted *prometheus.GaugeVec

	PolicyUpdates prometheus.Counter

	BroadcastClients prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New registers all collectors against reg. Tests pass prometheus.NewRegistry().
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		GateChecks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "privacypilot_gate_checks_total",
			Help: "Consent gate checks by category and result",
		}, []string{"category", "result"}),

		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "privacypilot_decisions_total",
			Help: "Consent decisions applied by kind",
		}, []string{"kind"}),

		WriteFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "privacypilot_write_failures_total",
			Help: "Fire-and-forget persistence failures by target",
		}, []string{"target"}),

		CategoryGranted: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "privacypilot_category_granted",
			Help: "1 when the category is currently granted, 0 otherwise",
		}, []string{"category"}),

		PolicyUpdates: f.NewCounter(prometheus.CounterOpts{
			Name: "privacypilot_policy_updates_total",
			Help: "Policy replacements applied to the in-memory store",
		}),

		BroadcastClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "privacypilot_broadcast_clients",
			Help: "Connected policy broadcast clients",
		}),

		gatherer: reg,
	}
}

// IncrementGateCheck records a gate check result.
func (m *Metrics) IncrementGateCheck(category string, allowed bool) {
	if m == nil {
		return
	}
	result := "blocked"
	if allowed {
		result = "allowed"
	}
	m.GateChecks.WithLabelValues(category, result).Inc()
}

// IncrementDecision records an applied decision.
func (m *Metrics) IncrementDecision(kind string) {
	if m != nil {
		m.Decisions.WithLabelValues(kind).Inc()
	}
}

// IncrementWriteFailure records a failed durable write.
func (m *Metrics) IncrementWriteFailure(target string) {
	if m != nil {
		m.WriteFailures.WithLabelValues(target).Inc()
	}
}

// SetBroadcastClients sets the connected client gauge.
func (m *Metrics) SetBroadcastClients(n int) {
	if m != nil {
		m.BroadcastClients.Set(float64(n))
	}
}

// ObservePolicy mirrors a policy state into the per-category gauges.
func (m *Metrics) ObservePolicy(s policy.ConsentState) {
	if m == nil {
		return
	}
	m.PolicyUpdates.Inc()
	for _, c := range policy.Categories() {
		v := 0.0
		if s.Allows(c) {
			v = 1
		}
		m.CategoryGranted.WithLabelValues(string(c)).Set(v)
	}
}

// Track subscribes the gauges to store and seeds them with its snapshot.
// The returned func unsubscribes.
func (m *Metrics) Track(store *policy.Store) func() {
	if m == nil {
		return func() {}
	}
	for _, c := range policy.Categories() {
		v := 0.0
		if store.CheckConsent(c) {
			v = 1
		}
		m.CategoryGranted.WithLabelValues(string(c)).Set(v)
	}
	return store.Subscribe(m.ObservePolicy)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// RegisterRoutes mounts GET /metrics.
func RegisterRoutes(r chi.Router, m *Metrics) {
	r.Method(http.MethodGet, "/metrics", m.Handler())
}

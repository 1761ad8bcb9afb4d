// Package metrics exposes Prometheus instrumentation for the companion
// backend.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the collectors the backend updates at runtime. Register
// against a fresh prometheus.NewRegistry in tests to avoid collisions.
type Metrics struct {
	// ToolInvocations counts tool calls by tool name and outcome.
	ToolInvocations *prometheus.CounterVec

	// EpisodesOpened counts emergency episodes by type.
	EpisodesOpened *prometheus.CounterVec

	// ReportsSent counts emergency reports dispatched by email.
	ReportsSent prometheus.Counter

	// ReportFailures counts report emails that failed to send.
	ReportFailures prometheus.Counter

	// CallsPlaced counts outbound calls by kind (emergency, contact, escalation).
	CallsPlaced *prometheus.CounterVec

	// CallFailures counts outbound calls that failed to dial.
	CallFailures prometheus.Counter

	// CooldownSuppressed counts emergency calls suppressed by the cooldown
	// window.
	CooldownSuppressed prometheus.Counter

	// ConsentHeld counts contact calls held behind the consent gate.
	ConsentHeld prometheus.Counter

	// SessionReconnects counts voice-runtime reconnect attempts.
	SessionReconnects prometheus.Counter
}

// New creates and registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ToolInvocations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "companion",
			Name:      "tool_invocations_total",
			Help:      "Tool calls handled, by tool name and outcome.",
		}, []string{"tool", "outcome"}),

		EpisodesOpened: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "companion",
			Name:      "emergency_episodes_total",
			Help:      "Emergency episodes opened, by emergency type.",
		}, []string{"type"}),

		ReportsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "companion",
			Name:      "emergency_reports_sent_total",
			Help:      "Emergency report emails dispatched.",
		}),

		ReportFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "companion",
			Name:      "emergency_report_failures_total",
			Help:      "Emergency report emails that failed to send.",
		}),

		CallsPlaced: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "companion",
			Name:      "calls_placed_total",
			Help:      "Outbound calls placed, by kind.",
		}, []string{"kind"}),

		CallFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "companion",
			Name:      "call_failures_total",
			Help:      "Outbound calls that failed to dial.",
		}),

		CooldownSuppressed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "companion",
			Name:      "cooldown_suppressed_total",
			Help:      "Emergency calls suppressed by the cooldown window.",
		}),

		ConsentHeld: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "companion",
			Name:      "consent_held_total",
			Help:      "Contact calls held pending resident consent.",
		}),

		SessionReconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "companion",
			Name:      "session_reconnects_total",
			Help:      "Voice-runtime reconnect attempts.",
		}),
	}
}

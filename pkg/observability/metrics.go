/*
Package observability exposes the engine's prometheus metrics. The
metric set subscribes to the engine through domain.LifecycleHooks, so
the runtime stays free of metrics code.
*/
package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/caseflow-io/caseflow/pkg/domain"
)

// Metrics is the engine's prometheus metric set.
type Metrics struct {
	TurnsTotal    *prometheus.CounterVec
	NodeVisits    *prometheus.CounterVec
	RefundsIssued prometheus.Counter
	Handoffs      prometheus.Counter
	Reprompts     prometheus.Counter
	TurnDuration  prometheus.Histogram
}

// NewMetrics creates and registers the metric set.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TurnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "caseflow",
				Name:      "turns_total",
				Help:      "Completed engine turns by outcome type.",
			},
			[]string{"outcome"},
		),
		NodeVisits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "caseflow",
				Name:      "node_visits_total",
				Help:      "Node executions by node ID.",
			},
			[]string{"node"},
		),
		RefundsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "caseflow",
			Name:      "refunds_issued_total",
			Help:      "Refunds actually issued by the backend.",
		}),
		Handoffs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "caseflow",
			Name:      "handoffs_total",
			Help:      "Conversations escalated to a human.",
		}),
		Reprompts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "caseflow",
			Name:      "reprompts_total",
			Help:      "Clarification re-prompts on unrecognized confirmation answers.",
		}),
		TurnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "caseflow",
			Name:      "turn_duration_seconds",
			Help:      "Wall time of one engine turn, including collaborator calls.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.TurnsTotal,
		m.NodeVisits,
		m.RefundsIssued,
		m.Handoffs,
		m.Reprompts,
		m.TurnDuration,
	)
	return m
}

// Hooks returns lifecycle hooks feeding this metric set.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			m.NodeVisits.WithLabelValues(string(e.Node)).Inc()
		},
		OnSuspend: func(_ context.Context, e *domain.InterruptEvent) {
			if e.Reprompt {
				m.Reprompts.Inc()
			}
		},
		OnRefundIssued: func(_ context.Context, _ *domain.RefundEvent) {
			m.RefundsIssued.Inc()
		},
		OnHandoff: func(_ context.Context, _ *domain.NodeEvent) {
			m.Handoffs.Inc()
		},
	}
}

// ObserveTurn records a completed turn.
func (m *Metrics) ObserveTurn(outcome domain.OutcomeType, seconds float64) {
	m.TurnsTotal.WithLabelValues(string(outcome)).Inc()
	m.TurnDuration.Observe(seconds)
}

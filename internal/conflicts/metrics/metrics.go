// Package metrics exposes conflict-review instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	created     *prometheus.CounterVec
	resolved    *prometheus.CounterVec
	escalations prometheus.Counter
	reviewLag   prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		created: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trrcms_conflicts_created_total",
			Help: "Conflicts raised by duplicate detection.",
		}, []string{"type", "priority"}),
		resolved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trrcms_conflicts_resolved_total",
			Help: "Conflicts closed by reviewers.",
		}, []string{"outcome"}),
		escalations: factory.NewCounter(prometheus.CounterOpts{
			Name: "trrcms_conflicts_escalated_total",
			Help: "Conflicts escalated to a supervisor.",
		}),
		reviewLag: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "trrcms_conflict_review_lag_seconds",
			Help:    "Time from conflict creation to terminal decision.",
			Buckets: prometheus.ExponentialBuckets(60, 4, 10),
		}),
	}
}

func (m *Metrics) ConflictCreated(conflictType, priority string) {
	if m == nil {
		return
	}
	m.created.WithLabelValues(conflictType, priority).Inc()
}

func (m *Metrics) ConflictResolved(outcome string, createdAt time.Time) {
	if m == nil {
		return
	}
	m.resolved.WithLabelValues(outcome).Inc()
	m.reviewLag.Observe(time.Since(createdAt).Seconds())
}

func (m *Metrics) ConflictEscalated() {
	if m == nil {
		return
	}
	m.escalations.Inc()
}

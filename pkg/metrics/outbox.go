package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics tracks the drain loop of the outbox worker.
type OutboxMetrics struct {
	delivered *prometheus.CounterVec
	failed    *prometheus.CounterVec
	pending   prometheus.Gauge
}

// NewOutboxMetrics registers outbox drain metrics on the provided registerer.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	delivered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_delivered",
		Help: "Outbox events delivered to their handler.",
	}, []string{"event_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_failed",
		Help: "Outbox delivery attempts that failed.",
	}, []string{"event_type"})
	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "outbox_events_pending",
		Help: "Unpublished outbox events at the last poll.",
	})
	reg.MustRegister(delivered, failed, pending)
	return &OutboxMetrics{delivered: delivered, failed: failed, pending: pending}
}

// IncDelivered counts a successful delivery for the event type.
func (m *OutboxMetrics) IncDelivered(eventType string) {
	if m == nil || m.delivered == nil {
		return
	}
	m.delivered.WithLabelValues(eventType).Inc()
}

// IncFailed counts a failed delivery attempt for the event type.
func (m *OutboxMetrics) IncFailed(eventType string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(eventType).Inc()
}

// SetPending records the current backlog size.
func (m *OutboxMetrics) SetPending(n int) {
	if m == nil || m.pending == nil {
		return
	}
	m.pending.Set(float64(n))
}

package metrics

import "github.com/prometheus/client_golang/prometheus"

// RelayMetrics holds Prometheus metrics for the broadcast relay.
type RelayMetrics struct {
	ActiveConnections prometheus.Gauge
	MessagesReceived  *prometheus.CounterVec
	MessagesRejected  *prometheus.CounterVec
	FramesDelivered   *prometheus.CounterVec
	RecipientsEvicted prometheus.Counter
	StateRevision     prometheus.Gauge
	ExportFailures    prometheus.Counter
}

// NewRelayMetrics creates and registers relay metrics on the given registry.
func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	m := &RelayMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "active_connections",
			Help:      "Number of registered WebSocket connections.",
		}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "messages_received_total",
			Help:      "Accepted inbound messages by type.",
		}, []string{"type"}),
		MessagesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "messages_rejected_total",
			Help:      "Discarded inbound messages by reason.",
		}, []string{"reason"}),
		FramesDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "frames_enqueued_total",
			Help:      "Frames enqueued to recipients by type.",
		}, []string{"type"}),
		RecipientsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "recipients_evicted_total",
			Help:      "Connections dropped because their mailbox was saturated.",
		}),
		StateRevision: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "state_revision",
			Help:      "Revision of the current shared state.",
		}),
		ExportFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "failures_total",
			Help:      "Audit events that could not be exported.",
		}),
	}

	reg.MustRegister(
		m.ActiveConnections,
		m.MessagesReceived,
		m.MessagesRejected,
		m.FramesDelivered,
		m.RecipientsEvicted,
		m.StateRevision,
		m.ExportFailures,
	)
	return m
}

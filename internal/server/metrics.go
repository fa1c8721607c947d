package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instrumentation for the voice server.
type Metrics struct {
	ActiveSessions prometheus.Gauge
	ActiveChannels prometheus.Gauge

	PacketsReceived  prometheus.Counter
	PacketsForwarded prometheus.Counter
	BytesForwarded   prometheus.Counter
	PacketsDropped   *prometheus.CounterVec

	HandshakesTotal   *prometheus.CounterVec
	HandshakeDuration prometheus.Histogram

	ErrorRepliesSent prometheus.Counter
	EventsDropped    prometheus.Counter
}

// NewMetrics creates and registers the metric set on the given registerer.
// Tests pass a fresh registry to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "voice_server_active_sessions",
			Help: "Number of live authenticated sessions",
		}),
		ActiveChannels: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "voice_server_active_channels",
			Help: "Number of channels with at least one connected member",
		}),
		PacketsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voice_server_packets_received_total",
			Help: "Total datagrams received on the UDP socket",
		}),
		PacketsForwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voice_server_packets_forwarded_total",
			Help: "Total audio packets forwarded to channel peers",
		}),
		BytesForwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voice_server_bytes_forwarded_total",
			Help: "Total bytes forwarded to channel peers",
		}),
		PacketsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_server_packets_dropped_total",
			Help: "Total packets dropped, by reason",
		}, []string{"reason"}),
		HandshakesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_server_handshakes_total",
			Help: "Total handshake attempts, by outcome",
		}, []string{"outcome"}),
		HandshakeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "voice_server_handshake_duration_seconds",
			Help:    "Time spent authenticating a handshake",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		ErrorRepliesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voice_server_error_replies_sent_total",
			Help: "Total Error packets sent back to clients",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voice_server_events_dropped_total",
			Help: "Total events dropped by slow event bus subscribers",
		}),
	}

	reg.MustRegister(
		m.ActiveSessions,
		m.ActiveChannels,
		m.PacketsReceived,
		m.PacketsForwarded,
		m.BytesForwarded,
		m.PacketsDropped,
		m.HandshakesTotal,
		m.HandshakeDuration,
		m.ErrorRepliesSent,
		m.EventsDropped,
	)

	return m
}

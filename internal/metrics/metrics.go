package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "zava"

// Reasons a relay drops an inbound or outbound message.
const (
	DropMalformed   = "malformed"
	DropUnknownType = "unknown_type"
	DropStaleTarget = "stale_target"
	DropQueueFull   = "queue_full"
	DropNotHost     = "not_host"
	DropInvalidJoin = "invalid_join"
)

// Relay holds the relay's collectors on a private registry so that several
// relays (or tests) can live in one process.
type Relay struct {
	Connections       prometheus.Gauge
	Rooms             prometheus.Gauge
	Participants      prometheus.Gauge
	MessagesReceived  *prometheus.CounterVec
	MessagesDropped   *prometheus.CounterVec
	SignalsRelayed    prometheus.Counter
	HostActionsDenied prometheus.Counter
	EventsDropped     prometheus.Counter

	registry *prometheus.Registry
}

func NewRelay() *Relay {
	m := &Relay{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Open WebSocket connections.",
		}),
		Rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms",
			Help:      "Rooms currently held by the registry.",
		}),
		Participants: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "participants",
			Help:      "Identities currently joined to a room.",
		}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Messages read from clients, by type.",
		}, []string{"type"}),
		MessagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Messages silently dropped, by reason.",
		}, []string{"reason"}),
		SignalsRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_relayed_total",
			Help:      "Signals delivered to their target.",
		}),
		HostActionsDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "host_actions_denied_total",
			Help:      "Host actions rejected because the sender is not host.",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Room lifecycle events dropped because the publish buffer was full.",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.Connections,
		m.Rooms,
		m.Participants,
		m.MessagesReceived,
		m.MessagesDropped,
		m.SignalsRelayed,
		m.HostActionsDenied,
		m.EventsDropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Drop counts a silently dropped message.
func (m *Relay) Drop(reason string) {
	m.MessagesDropped.WithLabelValues(reason).Inc()
}

// Received counts an inbound message by type.
func (m *Relay) Received(msgType string) {
	m.MessagesReceived.WithLabelValues(msgType).Inc()
}

// SetRegistryStats mirrors the registry's size.
func (m *Relay) SetRegistryStats(rooms, participants int) {
	m.Rooms.Set(float64(rooms))
	m.Participants.Set(float64(participants))
}

func (m *Relay) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

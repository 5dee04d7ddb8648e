// Package server exports Prometheus metrics describing connections, chat
// traffic and broadcast failures.
package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Tyrowin/framechat/internal/protocol"
)

type metrics struct {
	registry          *prometheus.Registry
	clients           prometheus.Gauge
	connections       prometheus.Counter
	messages          prometheus.Counter
	commands          *prometheus.CounterVec
	broadcastFailures prometheus.Counter
	rejected          prometheus.Counter
}

// newMetrics uses its own registry so several servers can coexist in one
// process.
func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "framechat",
			Name:      "clients_connected",
			Help:      "Number of clients currently registered.",
		}),
		connections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "framechat",
			Name:      "connections_accepted_total",
			Help:      "Connections accepted since start.",
		}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "framechat",
			Name:      "chat_messages_total",
			Help:      "Chat messages relayed.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "framechat",
			Name:      "commands_total",
			Help:      "Control commands received, by command.",
		}, []string{"command"}),
		broadcastFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "framechat",
			Name:      "broadcast_failures_total",
			Help:      "Writes to a peer that failed during fan-out.",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "framechat",
			Name:      "connections_rejected_total",
			Help:      "Connections closed because the client cap was reached.",
		}),
	}

	m.registry.MustRegister(
		m.clients,
		m.connections,
		m.messages,
		m.commands,
		m.broadcastFailures,
		m.rejected,
	)
	return m
}

func (m *metrics) clientJoined() {
	if m == nil {
		return
	}
	m.connections.Inc()
	m.clients.Inc()
}

func (m *metrics) clientLeft() {
	if m == nil {
		return
	}
	m.clients.Dec()
}

func (m *metrics) command(c protocol.Command) {
	if m == nil {
		return
	}
	if c == protocol.CommandChat {
		m.messages.Inc()
		return
	}
	m.commands.WithLabelValues(c.String()).Inc()
}

func (m *metrics) broadcastFailed() {
	if m == nil {
		return
	}
	m.broadcastFailures.Inc()
}

func (m *metrics) connectionRejected() {
	if m == nil {
		return
	}
	m.rejected.Inc()
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

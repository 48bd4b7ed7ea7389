package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the server
type Metrics struct {
	// Session metrics
	activeSessions       prometheus.Gauge
	sessionsCreated      prometheus.Counter
	sessionsDisconnected prometheus.Counter
	queueOverflows       prometheus.Counter

	// Handshake metrics
	handshakes *prometheus.CounterVec // by outcome

	// Command metrics
	commandsReceived  *prometheus.CounterVec // by command name
	malformedCommands prometheus.Counter

	// Lobby metrics
	playersOnline prometheus.Gauge
	channelsTotal prometheus.Gauge
	gamesOpen     prometheus.Gauge
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		activeSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "earthnet_active_sessions",
				Help: "Current number of active sessions",
			},
		),
		sessionsCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "earthnet_sessions_created_total",
				Help: "Total number of sessions created",
			},
		),
		sessionsDisconnected: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "earthnet_sessions_disconnected_total",
				Help: "Total number of sessions disconnected",
			},
		),
		queueOverflows: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "earthnet_send_queue_overflows_total",
				Help: "Total number of sessions killed because their send queue filled up",
			},
		),
		handshakes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "earthnet_handshakes_total",
				Help: "Total number of handshake attempts by outcome",
			},
			[]string{"outcome"},
		),
		commandsReceived: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "earthnet_commands_received_total",
				Help: "Total number of client commands received by name",
			},
			[]string{"command"},
		),
		malformedCommands: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "earthnet_malformed_commands_total",
				Help: "Total number of client commands rejected as malformed",
			},
		),
		playersOnline: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "earthnet_players_online",
				Help: "Current number of players in the lobby",
			},
		),
		channelsTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "earthnet_channels",
				Help: "Current number of live channels",
			},
		),
		gamesOpen: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "earthnet_games_open",
				Help: "Current number of open games",
			},
		),
	}
}

// Handshake outcome labels.
const (
	HandshakeOK              = "ok"
	HandshakeRejectedVersion = "rejected_version"
	HandshakeRejectedAuth    = "rejected_auth"
	HandshakeRejectedName    = "rejected_name"
	HandshakeRejectedDup     = "rejected_duplicate"
	HandshakeMalformed       = "malformed"
	HandshakeTimeout         = "timeout"
)

// RecordActiveSessions updates the active session count
func (m *Metrics) RecordActiveSessions(count int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(count))
}

// RecordSessionCreated increments the session creation counter
func (m *Metrics) RecordSessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
}

// RecordSessionDisconnected increments the session disconnection counter
func (m *Metrics) RecordSessionDisconnected() {
	if m == nil {
		return
	}
	m.sessionsDisconnected.Inc()
}

// RecordQueueOverflow increments the send queue overflow counter
func (m *Metrics) RecordQueueOverflow() {
	if m == nil {
		return
	}
	m.queueOverflows.Inc()
}

// RecordHandshake increments the handshake counter for an outcome
func (m *Metrics) RecordHandshake(outcome string) {
	if m == nil {
		return
	}
	m.handshakes.WithLabelValues(outcome).Inc()
}

// RecordCommand increments the received counter for a command name
func (m *Metrics) RecordCommand(name string) {
	if m == nil {
		return
	}
	m.commandsReceived.WithLabelValues(name).Inc()
}

// RecordMalformedCommand increments the malformed command counter
func (m *Metrics) RecordMalformedCommand() {
	if m == nil {
		return
	}
	m.malformedCommands.Inc()
}

// RecordLobbyStats updates the lobby gauges from a stats snapshot
func (m *Metrics) RecordLobbyStats(online, channels, open uint32) {
	if m == nil {
		return
	}
	m.playersOnline.Set(float64(online))
	m.channelsTotal.Set(float64(channels))
	m.gamesOpen.Set(float64(open))
}

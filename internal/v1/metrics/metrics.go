package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the chat server.
//
// Naming convention: namespace_subsystem_name
// - namespace: parley (application-level grouping)
// - subsystem: transport, session, room, bus, rate_limit (feature-level grouping)
//
// Metric Types:
// - Gauge: current state (connections, sessions, members)
// - Counter: cumulative events (messages, drops, errors)
// - Histogram: latency distributions (command processing)

var (
	// ActiveConnections tracks currently open client connections, by
	// transport ("tcp" or "websocket").
	ActiveConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "parley",
		Subsystem: "transport",
		Name:      "connections_active",
		Help:      "Current number of open client connections",
	}, []string{"transport"})

	// ActiveSessions tracks sessions that have completed login and not yet
	// closed.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "parley",
		Subsystem: "session",
		Name:      "sessions_active",
		Help:      "Current number of logged-in chat sessions",
	})

	// Rooms is the size of the boot-seeded room set. Static after boot.
	Rooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "parley",
		Subsystem: "room",
		Name:      "rooms",
		Help:      "Number of rooms in the seed set",
	})

	// RoomMembers tracks the current roster size per room.
	RoomMembers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "parley",
		Subsystem: "room",
		Name:      "members_count",
		Help:      "Current number of members in each room",
	}, []string{"room"})

	// MessagesPublished counts chat messages published per room.
	MessagesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parley",
		Subsystem: "room",
		Name:      "messages_published_total",
		Help:      "Total chat messages published per room",
	}, []string{"room"})

	// EventsDropped counts events a lagged subscriber missed, per room.
	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parley",
		Subsystem: "bus",
		Name:      "events_dropped_total",
		Help:      "Total events skipped by lagged subscribers per room",
	}, []string{"room"})

	// Commands counts processed inbound commands by type and outcome.
	Commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parley",
		Subsystem: "session",
		Name:      "commands_total",
		Help:      "Total inbound commands processed",
	}, []string{"command", "status"})

	// CommandProcessingDuration tracks command handling latency.
	CommandProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "parley",
		Subsystem: "session",
		Name:      "command_processing_seconds",
		Help:      "Time spent processing inbound commands",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25},
	}, []string{"command"})

	// RateLimitExceeded counts requests rejected by the rate limiter.
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parley",
		Subsystem: "rate_limit",
		Name:      "exceeded_total",
		Help:      "Total requests that exceeded a rate limit",
	}, []string{"endpoint", "reason"})

	// RateLimitRequests counts requests checked against the rate limiter.
	RateLimitRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parley",
		Subsystem: "rate_limit",
		Name:      "requests_total",
		Help:      "Total requests checked against the rate limiter",
	}, []string{"endpoint"})
)

func IncConnection(transport string) {
	ActiveConnections.WithLabelValues(transport).Inc()
}

func DecConnection(transport string) {
	ActiveConnections.WithLabelValues(transport).Dec()
}

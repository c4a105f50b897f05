package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons for EventsDropped.
const (
	ReasonFiltered      = "filtered"
	ReasonRetryPending  = "retry_pending"
	ReasonConnectFailed = "connect_failed"
	ReasonSendFailed    = "send_failed"
	ReasonQueueFull     = "queue_full"
)

var (
	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickship_events_received_total",
			Help: "Host events received from the event source",
		},
		[]string{"type"}, // "state_changed", "logbook_entry"
	)

	EventsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tickship_events_published_total",
			Help: "Events written to the tickerplant",
		},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickship_events_dropped_total",
			Help: "Events dropped before reaching the tickerplant",
		},
		[]string{"reason"},
	)

	ConnectAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tickship_connect_attempts_total",
			Help: "Tickerplant connection attempts, including retries",
		},
	)

	Reconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tickship_reconnects_total",
			Help: "Successful reconnections after a lost connection",
		},
	)

	SendErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tickship_send_errors_total",
			Help: "Socket write failures on the tickerplant connection",
		},
	)

	SourceReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tickship_source_reconnects_total",
			Help: "Reconnections to the host event source websocket",
		},
	)
)

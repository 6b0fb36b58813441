package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectedClients tracks the number of currently registered connections
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "presencehub_connected_clients",
			Help: "Number of currently connected clients",
		},
	)

	// EventsSent tracks emitted events by event type
	EventsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presencehub_events_sent_total",
			Help: "Total events emitted by type",
		},
		[]string{"type"},
	)

	// EventsDropped tracks per-recipient delivery skips by reason
	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presencehub_events_dropped_total",
			Help: "Total events dropped instead of delivered, by reason",
		},
		[]string{"reason"},
	)

	// TicksFired tracks time-update broadcasts
	TicksFired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presencehub_ticks_fired_total",
			Help: "Total periodic time broadcasts fired",
		},
	)

	// InboundRateLimited tracks client frames dropped by the rate limiter
	InboundRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presencehub_inbound_rate_limited_total",
			Help: "Total inbound frames dropped by the per-connection rate limiter",
		},
	)
)

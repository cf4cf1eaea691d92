package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionsActive tracks currently registered websocket connections.
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "towhee_connections_active",
		Help: "Number of registered websocket connections.",
	})

	// EventsDispatched counts inbound events by type, including ignored ones.
	EventsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "towhee_events_dispatched_total",
		Help: "Inbound events handled by the dispatcher.",
	}, []string{"type"})

	// Deliveries counts events handed to a connection's send buffer.
	Deliveries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "towhee_deliveries_total",
		Help: "Events delivered to a target connection.",
	})

	// DeliveriesDropped counts best-effort sends that found no room.
	DeliveriesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "towhee_deliveries_dropped_total",
		Help: "Events dropped because a target's send buffer was full or gone.",
	})

	// IdentitiesResolved counts resolver outcomes: verified, degraded, guest.
	IdentitiesResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "towhee_identities_resolved_total",
		Help: "Identity resolution outcomes at connection time.",
	}, []string{"outcome"})
)

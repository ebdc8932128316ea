// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package relay

import "github.com/prometheus/client_golang/prometheus"

// Label values for relay metrics.
const (
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
	ResultError    = "error"

	ResultHandled = "handled"
	ResultIgnored = "ignored"
	ResultInvalid = "invalid"

	ResultSent    = "sent"
	ResultSkipped = "skipped"
	ResultDropped = "dropped"
	ResultFailed  = "failed"
)

// ActiveConnections is the gauge of registered connections.
// Use RegisterMetrics to register this with a Prometheus registry.
var ActiveConnections = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "roomrelay_active_connections",
	Help: "Number of connections currently registered",
})

// ActiveRooms is the gauge of rooms with at least one member.
var ActiveRooms = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "roomrelay_active_rooms",
	Help: "Number of rooms with at least one member",
})

// Admissions counts connection admissions by result.
var Admissions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "roomrelay_admissions_total",
		Help: "Total number of connection admissions by result",
	},
	[]string{"result"},
)

// Supersessions counts admissions that replaced an existing connection for
// the same member key. Each is also counted once as an accepted admission.
var Supersessions = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "roomrelay_supersessions_total",
	Help: "Total number of connections closed because a newer one took their member key",
})

// InboundFrames counts inbound frames by kind and result.
var InboundFrames = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "roomrelay_inbound_frames_total",
		Help: "Total number of inbound frames by kind and result",
	},
	[]string{"kind", "result"},
)

// Broadcasts counts broadcasts by outbound kind.
var Broadcasts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "roomrelay_broadcasts_total",
		Help: "Total number of room broadcasts by message kind",
	},
	[]string{"kind"},
)

// Deliveries counts per-recipient delivery outcomes.
var Deliveries = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "roomrelay_deliveries_total",
		Help: "Total number of per-recipient deliveries by message kind and result",
	},
	[]string{"kind", "result"},
)

// RegisterMetrics registers relay metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(ActiveConnections)
	reg.MustRegister(ActiveRooms)
	reg.MustRegister(Admissions)
	reg.MustRegister(Supersessions)
	reg.MustRegister(InboundFrames)
	reg.MustRegister(Broadcasts)
	reg.MustRegister(Deliveries)
}

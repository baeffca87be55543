package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionsTotal counts websocket connections accepted since start.
	ConnectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ticrelay_connections_total",
		Help: "Total websocket connections accepted.",
	})

	// EventsRelayed counts outbound broadcasts by event name.
	EventsRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticrelay_events_relayed_total",
		Help: "Total events relayed to room members, by event name.",
	}, []string{"event"})

	// ActiveRooms tracks the number of rooms with at least one member.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ticrelay_active_rooms",
		Help: "Rooms with at least one member.",
	})

	// ConnectedUsers tracks users with a live connection mapping.
	ConnectedUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ticrelay_connected_users",
		Help: "Users with a live connection mapping.",
	})
)

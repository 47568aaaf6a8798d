package gateway

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/algolens/algolens/internal/bus"
)

var (
	clientsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "algolens_ws_clients",
			Help: "Number of currently connected WebSocket clients.",
		},
	)

	messagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "algolens_ws_messages_total",
			Help: "Total number of messages written to WebSocket clients, by type.",
		},
		[]string{"type"},
	)

	droppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "algolens_ws_dropped_total",
			Help: "Total number of messages dropped because a client could not keep up.",
		},
	)
)

func init() {
	prometheus.MustRegister(clientsGauge)
	prometheus.MustRegister(messagesTotal)
	prometheus.MustRegister(droppedTotal)

	// Pre-initialize counter label combinations so they appear in /metrics
	// with value 0 from startup, rather than only after first observation.
	for _, typ := range []string{
		MsgConnected,
		MsgAuthenticated,
		MsgExecutionStatus,
		MsgPong,
		MsgError,
		bus.EventExecutionStarted,
		bus.EventExecutionCompleted,
		bus.EventExecutionError,
		bus.EventExecutionCancelled,
		bus.EventExecutionStep,
	} {
		messagesTotal.WithLabelValues(typ)
	}
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	OrdersCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchange_orders_created_total",
			Help: "Accepted limit orders by instrument and side",
		},
		[]string{"instrument", "side"},
	)

	OrdersRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchange_orders_rejected_total",
			Help: "Rejected commands by instrument and reason",
		},
		[]string{"instrument", "reason"},
	)

	OrdersCancelled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchange_orders_cancelled_total",
			Help: "Cancelled orders by instrument",
		},
		[]string{"instrument"},
	)

	TradesExecuted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchange_trades_executed_total",
			Help: "Executed trades by instrument",
		},
		[]string{"instrument"},
	)

	SharesTraded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchange_shares_traded_total",
			Help: "Shares exchanged by instrument",
		},
		[]string{"instrument"},
	)

	MatchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exchange_command_duration_seconds",
			Help:    "Time spent inside the book per command",
			Buckets: []float64{0.000005, 0.00001, 0.000025, 0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.005, 0.01},
		},
		[]string{"instrument", "command"},
	)

	RestingOrders = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "exchange_resting_orders",
			Help: "Fillable orders resting in the book",
		},
		[]string{"instrument", "side"},
	)

	EventsEmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "exchange_events_emitted_total",
		Help: "Lifecycle events accepted by the dispatcher",
	})

	EventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "exchange_events_dropped_total",
		Help: "Lifecycle events dropped because the dispatcher buffer was full",
	})

	EventStoreErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchange_event_store_errors_total",
			Help: "Failures writing events to a store",
		},
		[]string{"store"},
	)

	BroadcastResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchange_broadcast_total",
			Help: "Outbox publish attempts by result",
		},
		[]string{"result"},
	)
)

// MustRegister adds every collector to reg.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		OrdersCreated,
		OrdersRejected,
		OrdersCancelled,
		TradesExecuted,
		SharesTraded,
		MatchLatency,
		RestingOrders,
		EventsEmitted,
		EventsDropped,
		EventStoreErrors,
		BroadcastResults,
	)
}

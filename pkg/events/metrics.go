package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	evaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tradewind",
		Name:      "evaluations_total",
		Help:      "Pipeline passes by symbol and outcome.",
	}, []string{"symbol", "outcome"})

	signalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tradewind",
		Name:      "signals_total",
		Help:      "Promoted signals by symbol and direction.",
	}, []string{"symbol", "direction"})

	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tradewind",
		Name:      "risk_decisions_total",
		Help:      "Risk manager verdicts by symbol and result.",
	}, []string{"symbol", "verdict"})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tradewind",
		Name:      "position_transitions_total",
		Help:      "Position state transitions by target state.",
	}, []string{"state"})

	realizedPnL = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tradewind",
		Name:      "realized_pnl",
		Help:      "Cumulative realized PnL of closed positions.",
	})

	breakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tradewind",
		Name:      "breaker_trips_total",
		Help:      "Circuit breaker trips by reason.",
	}, []string{"reason"})

	breakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tradewind",
		Name:      "breaker_tripped",
		Help:      "Whether the circuit breaker is currently tripped.",
	})
)

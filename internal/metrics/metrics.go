package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Dispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "puzzle_dispatch_total",
			Help: "Dispatch outcomes by game",
		},
		[]string{"game", "outcome"},
	)
	DispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "puzzle_dispatch_duration_seconds",
			Help:    "Time spent inside the per-puzzle critical section",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"game"},
	)
	HouseTurns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "puzzle_house_turns_total",
			Help: "House turns applied",
		},
		[]string{"game"},
	)
	Rotations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "puzzle_rotations_total",
			Help: "Puzzles replaced in place (reset or content rotation)",
		},
		[]string{"game", "reason"},
	)
	SessionsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_created_total",
			Help: "Sessions created",
		},
	)
	SessionsDestroyed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessions_destroyed_total",
			Help: "Sessions destroyed",
		},
		[]string{"reason"},
	)
	Heartbeats = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_heartbeats_total",
			Help: "Heartbeats received",
		},
		[]string{"result"},
	)
	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Sessions known to the store after the last reaper sweep",
		},
	)
)

// Outcome labels for Dispatches.
const (
	OutcomeAccepted = "accepted"
	OutcomeWrong    = "wrong"
	OutcomeIllegal  = "illegal"
	OutcomeGameover = "gameover"
	OutcomeNoop     = "noop"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

func init() {
	prometheus.MustRegister(
		Dispatches,
		DispatchDuration,
		HouseTurns,
		Rotations,
		SessionsCreated,
		SessionsDestroyed,
		Heartbeats,
		SessionsActive,
	)
}

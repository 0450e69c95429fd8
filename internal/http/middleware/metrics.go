package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	limiterMemory = "memory"
	limiterRedis  = "redis"
	limiterGame   = "game"
)

var (
	RLRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limiter_requests_total",
			Help: "Requests let through by a rate limiter",
		},
		[]string{"limiter", "route"},
	)
	RLBlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limiter_blocked_total",
			Help: "Requests rejected with 429 by a rate limiter",
		},
		[]string{"limiter", "route"},
	)
	// RLFailOpen counts requests allowed because Redis could not be reached.
	RLFailOpen = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limiter_fail_open_total",
			Help: "Requests allowed without a check after a Redis error",
		},
		[]string{"limiter"},
	)
)

func init() {
	prometheus.MustRegister(RLRequests, RLBlocked, RLFailOpen)
}

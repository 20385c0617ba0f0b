package router

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "router_request_duration_seconds",
		Help:    "Duration of /v1/router/:agentId requests in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"agent_id", "status"},
)

var callsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "router_calls_total",
		Help: "Total metered calls handled, by call type and outcome",
	},
	[]string{"call_type", "outcome"},
)

// Package metrics holds the prometheus collectors shared across the server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CoalescerCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finpilot_coalescer_calls_total",
		Help: "Coalesced fetches by outcome (exec runs the producer, shared joins an in-flight call).",
	}, []string{"outcome"})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finpilot_query_cache_lookups_total",
		Help: "Query cache lookups by result.",
	}, []string{"result"})

	CacheInvalidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finpilot_query_cache_invalidations_total",
		Help: "Keys dropped from the query cache, by partition.",
	}, []string{"partition"})

	RealtimeClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "finpilot_realtime_clients",
		Help: "Connected realtime websocket clients.",
	})

	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finpilot_provider_requests_total",
		Help: "Outbound third-party API requests by provider and status class.",
	}, []string{"provider", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "finpilot_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern and status code.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

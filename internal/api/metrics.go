package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_console_relay_http_requests_total",
		Help: "Total HTTP requests processed by the event relay",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "game_console_relay_http_request_duration_seconds",
		Help:    "HTTP request duration; stream requests last for the whole connection",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

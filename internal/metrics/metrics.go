// Package metrics holds the Prometheus collectors shared by the engine and the API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "demand_mc_runs_completed_total",
		Help: "Monte Carlo runs that finished simulation, selection, estimation and elasticities.",
	})

	RunsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "demand_mc_runs_failed_total",
		Help: "Monte Carlo runs that returned an error.",
	})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "demand_mc_run_duration_seconds",
		Help:    "Wall time of a single Monte Carlo run.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	ExperimentsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "demand_mc_experiments_in_flight",
		Help: "Experiments currently executing.",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "demand_mc_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "demand_mc_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

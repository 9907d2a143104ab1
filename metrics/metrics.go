// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package metrics holds the Prometheus collectors shared by the reconciler
// and the backend. They register with the default registry on import and
// are served by router.NewRouter at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Client side

	Dispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opinionsync_dispatch_total",
		Help: "Optimistic mutations by opinion kind and outcome",
	}, []string{"kind", "outcome"})

	DispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "opinionsync_dispatch_duration_seconds",
		Help:    "Time from optimistic write to settle or rollback",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"kind"})

	Confirms = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opinionsync_confirm_total",
		Help: "Server confirmations by kind and effect (applied, settled, shadowed)",
	}, []string{"kind", "result"})

	// Server side

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opinionsync_http_requests_total",
		Help: "HTTP requests by method, route pattern and status code",
	}, []string{"method", "route", "status"})

	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "opinionsync_subscribers",
		Help: "Open subscription sockets",
	})

	Pushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opinionsync_push_total",
		Help: "Opinion events written to subscribers by kind",
	}, []string{"kind"})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "opinionsync_rate_limited_total",
		Help: "Mutations rejected by the per-user rate limiter",
	})
)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pokewatch_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pokewatch_http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pokewatch_runs_total",
			Help: "Completed orchestration passes by outcome.",
		},
		[]string{"status"}, // success, failure
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pokewatch_run_duration_seconds",
			Help:    "Duration of orchestration passes.",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)

	ProviderFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pokewatch_provider_fetch_total",
			Help: "Provider attempts by outcome.",
		},
		[]string{"target", "provider", "outcome"}, // links, empty, error
	)

	LinksFound = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pokewatch_links_found",
			Help: "Product links found for a target on the latest pass.",
		},
		[]string{"target"},
	)

	NewLinksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pokewatch_new_links_total",
			Help: "Product links seen for the first time.",
		},
		[]string{"target"},
	)

	NotifyBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pokewatch_notify_batches_total",
			Help: "Notification batches by outcome.",
		},
		[]string{"outcome"}, // sent, failed
	)

	StoreErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pokewatch_store_errors_total",
			Help: "Seen-store failures by operation.",
		},
		[]string{"op"}, // load, save
	)
)

// Package metrics registers the Prometheus instruments exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Inbound event processing
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skurge_events_total",
			Help: "Total number of inbound events processed, by outcome",
		},
		[]string{"event", "status"},
	)

	// Per-rule relay attempts
	RelaysTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skurge_relays_total",
			Help: "Total number of relay attempts, by relay type and outcome",
		},
		[]string{"relay_type", "status"},
	)

	EnrichmentErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "skurge_enrichment_errors_total",
			Help: "Total number of failed enrichment fetches",
		},
	)

	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skurge_dispatch_duration_seconds",
			Help:    "Duration of destination dispatch in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"relay_type"},
	)
)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Rate limiting
	RateLimitWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tgtriage_rate_limit_wait_seconds",
			Help:    "Time spent waiting for a platform call token",
			Buckets: []float64{.001, .01, .05, .1, .2, .5, 1, 2, 5},
		},
	)

	// Platform calls
	PlatformCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tgtriage_platform_calls_total",
			Help: "Outbound platform calls",
		},
		[]string{"op", "result"}, // result: "ok" or "error"
	)

	// AI calls
	AICalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tgtriage_ai_calls_total",
			Help: "AI provider calls",
		},
		[]string{"provider", "result"},
	)

	AICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tgtriage_ai_call_duration_seconds",
			Help:    "AI provider call duration",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 30, 60, 90},
		},
		[]string{"provider"},
	)

	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tgtriage_retry_attempts_total",
			Help: "Retries scheduled after a transient failure",
		},
		[]string{"op"},
	)

	// State sync
	UpdatesApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tgtriage_updates_applied_total",
			Help: "Platform updates applied to the chat state",
		},
		[]string{"kind"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tgtriage_cache_evictions_total",
			Help: "Entries evicted from the bounded caches",
		},
		[]string{"cache"}, // "users" or "chats"
	)

	// Enrichment
	EnrichOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tgtriage_enrich_outcomes_total",
			Help: "Per-candidate enrichment outcomes",
		},
		[]string{"pipeline", "outcome"},
	)
)

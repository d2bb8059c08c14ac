package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shinchan_build_info",
			Help: "Build information of the analytics service",
		},
		[]string{"version", "commit", "date"},
	)

	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shinchan_queries_total",
			Help: "Processed queries by terminal pipeline state",
		},
		[]string{"state"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shinchan_result_cache_lookups_total",
			Help: "Result cache lookups by outcome",
		},
		[]string{"outcome"},
	)

	LLMCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shinchan_llm_calls_total",
			Help: "Text-completion service calls by status",
		},
		[]string{"status"},
	)

	LLMCallDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shinchan_llm_call_duration_seconds",
			Help:    "Latency of text-completion service calls",
			Buckets: prometheus.DefBuckets,
		},
	)

	QueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shinchan_query_duration_seconds",
			Help:    "Latency of SQL execution against the embedded engine",
			Buckets: prometheus.DefBuckets,
		},
	)

	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shinchan_pipeline_duration_seconds",
			Help:    "End-to-end latency of processed queries",
			Buckets: prometheus.DefBuckets,
		},
	)
)

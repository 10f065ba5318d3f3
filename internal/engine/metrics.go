package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kmd",
			Subsystem: "engine",
			Name:      "queries_total",
			Help:      "Delivered query results by backend and outcome",
		},
		[]string{"backend", "outcome"},
	)

	queryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kmd",
			Subsystem: "engine",
			Name:      "query_duration_seconds",
			Help:      "Wall time from dispatch to result delivery",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	togglesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kmd",
			Subsystem: "engine",
			Name:      "toggles_total",
			Help:      "Visibility toggles processed",
		},
	)

	staleResultsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kmd",
			Subsystem: "engine",
			Name:      "stale_results_total",
			Help:      "Results discarded because they were superseded or arrived hidden",
		},
	)

	cacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kmd",
			Subsystem: "engine",
			Name:      "cache_hits_total",
			Help:      "Queries answered from the generation cache",
		},
	)

	clipboardFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kmd",
			Subsystem: "engine",
			Name:      "clipboard_failures_total",
			Help:      "Sink copy failures surfaced as non-fatal notices",
		},
	)
)

func init() {
	prometheus.MustRegister(
		queriesTotal,
		queryDuration,
		togglesTotal,
		staleResultsTotal,
		cacheHitsTotal,
		clipboardFailuresTotal,
	)
}

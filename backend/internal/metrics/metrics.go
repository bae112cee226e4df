// Package metrics declares the Prometheus collectors shared by the ETL,
// cache, community, alias and HTTP layers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ETLRounds counts rounds folded into the accumulator
	ETLRounds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "squadgraph_etl_rounds_total",
		Help: "Total rounds processed by relationship syncs",
	})

	// ETLPairs counts pair upserts sent to the graph
	ETLPairs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "squadgraph_etl_pairs_upserted_total",
		Help: "Total PLAYED_WITH pair upserts committed",
	})

	// ETLFlushes counts flushes by outcome
	ETLFlushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "squadgraph_etl_flushes_total",
		Help: "Total ETL flushes by pass and status",
	}, []string{"pass", "status"}) // pass: coplay|plays_on, status: ok|error

	// ETLFlushDuration tracks graph commit latency per flush
	ETLFlushDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "squadgraph_etl_flush_duration_seconds",
		Help:    "ETL flush duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
	}, []string{"pass"})

	// CacheRequests counts cache lookups by result
	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "squadgraph_cache_requests_total",
		Help: "Total relationship cache lookups by operation and result",
	}, []string{"op", "result"}) // result: hit|miss|error

	// CommunityRuns counts detection runs by outcome
	CommunityRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "squadgraph_community_runs_total",
		Help: "Total community detection runs by status",
	}, []string{"algorithm", "status"})

	// CommunitiesDetected is the community count of the last successful run
	CommunitiesDetected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "squadgraph_communities",
		Help: "Communities produced by the last detection run",
	})

	// AliasChecks counts alias reports by suspicion level
	AliasChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "squadgraph_alias_checks_total",
		Help: "Total alias checks by suspicion level",
	}, []string{"level"})

	// AliasAnalyzerFallbacks counts analyzers that returned a neutral score
	AliasAnalyzerFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "squadgraph_alias_analyzer_fallbacks_total",
		Help: "Alias sub-analyzers that fell back to a neutral score",
	}, []string{"analyzer", "sufficiency"})

	// HTTPRequests counts API requests
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "squadgraph_http_requests_total",
		Help: "Total HTTP requests by route and status",
	}, []string{"method", "route", "status"})

	// HTTPDuration tracks API latency
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "squadgraph_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

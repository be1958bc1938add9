package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the private registry served on /metrics.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		ToolCalls, ToolDuration,
		CacheLookups,
		ReasonerCalls, ReasonerDuration,
		LLMTokensTotal,
		DatasetReloads, DatasetRows,
	)
}

// ToolCalls counts tool invocations by outcome.
var ToolCalls = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "retail_tool_calls_total",
		Help: "Analytical tool invocations.",
	},
	[]string{"tool", "outcome"}, // ok | benign | error
)

// ToolDuration is tool execution time in seconds.
var ToolDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "retail_tool_duration_seconds",
		Help:    "Analytical tool execution time in seconds.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"tool"},
)

// CacheLookups counts response cache lookups.
var CacheLookups = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "retail_cache_lookups_total",
		Help: "Response cache lookups.",
	},
	[]string{"result"}, // hit | miss | shared
)

// ReasonerCalls counts calls into the reasoning model by outcome.
var ReasonerCalls = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "retail_reasoner_calls_total",
		Help: "Reasoner invocations.",
	},
	[]string{"outcome"}, // ok | error | timeout | throttled
)

// ReasonerDuration is the reasoner latency in seconds.
var ReasonerDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "retail_reasoner_duration_seconds",
		Help:    "Reasoner latency in seconds.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	},
)

// LLMTokensTotal counts model tokens.
var LLMTokensTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "retail_llm_tokens_total",
		Help: "LLM tokens consumed.",
	},
	[]string{"model", "direction"}, // input | output
)

// DatasetReloads counts dataset reload attempts.
var DatasetReloads = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "retail_dataset_reloads_total",
		Help: "Dataset reload attempts.",
	},
	[]string{"outcome"},
)

// DatasetRows is the row count of the active dataset snapshot.
var DatasetRows = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "retail_dataset_rows",
		Help: "Rows in the active dataset snapshot.",
	},
)

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

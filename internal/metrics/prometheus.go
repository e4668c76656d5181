package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SearchQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minewatch_search_queries_total",
			Help: "Search queries issued, by outcome",
		},
		[]string{"status"},
	)

	ResultsNormalized = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "minewatch_search_results_normalized_total",
			Help: "Search results normalized into the common schema",
		},
	)

	AnalysisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "minewatch_analysis_duration_seconds",
			Help:    "Full RAG pass duration per case",
			Buckets: []float64{5, 10, 30, 60, 120, 300},
		},
		[]string{"kind"},
	)

	AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minewatch_analyses_total",
			Help: "Case analyses completed, by outcome",
		},
		[]string{"status"},
	)

	FindingsPerCase = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "minewatch_findings_per_case",
			Help:    "Scored findings retained per case",
			Buckets: []float64{0, 1, 2, 3, 4, 5},
		},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minewatch_llm_tokens_used_total",
			Help: "LLM tokens consumed",
		},
		[]string{"model", "type"},
	)
)

func Register() {
	prometheus.MustRegister(
		SearchQueriesTotal,
		ResultsNormalized,
		AnalysisDuration,
		AnalysesTotal,
		FindingsPerCase,
		LLMTokensUsed,
	)
}

func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

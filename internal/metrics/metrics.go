package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TurnsTotal counts resolved chat turns by the tool that answered them.
	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "research_chatbot",
		Name:      "turns_total",
		Help:      "Resolved chat turns by tool.",
	}, []string{"tool"})

	// ToolErrorsTotal counts tool executions that ended in an error.
	ToolErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "research_chatbot",
		Name:      "tool_errors_total",
		Help:      "Tool executions that returned an error.",
	}, []string{"tool"})

	// TurnDuration observes end-to-end chat turn latency per tool.
	TurnDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "research_chatbot",
		Name:      "turn_duration_seconds",
		Help:      "End-to-end chat turn latency.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"tool"})

	// RetrievedChunks observes how many chunks survived the similarity
	// threshold per retrieval.
	RetrievedChunks = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "research_chatbot",
		Name:      "retrieved_chunks",
		Help:      "Chunks returned per retrieval after threshold filtering.",
		Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
	})

	// IndexSize tracks the number of chunks currently searchable.
	IndexSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "research_chatbot",
		Name:      "index_chunks",
		Help:      "Chunks loaded in the in-memory vector index.",
	})

	// TurnsPersisted counts turns flushed to MySQL by the persist worker.
	TurnsPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "research_chatbot",
		Name:      "turns_persisted_total",
		Help:      "Turns written to MySQL by the persist worker.",
	})
)

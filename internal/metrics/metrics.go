package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the understanding pipeline.
type Metrics struct {
	QueriesTotal      *prometheus.CounterVec
	AmbiguousTotal    prometheus.Counter
	SuggestionsUsed   prometheus.Counter
	FeedbackTotal     prometheus.Counter
	PatternsPromoted  prometheus.Counter
	QueryDuration     prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		QueriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "understanding",
			Name:      "queries_total",
			Help:      "Queries processed, partitioned by resolved intent.",
		}, []string{"intent"}),
		AmbiguousTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "understanding",
			Name:      "ambiguous_queries_total",
			Help:      "Queries that raised at least one ambiguity.",
		}),
		SuggestionsUsed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "understanding",
			Name:      "suggestions_used_total",
			Help:      "Follow-up suggestions users actually clicked.",
		}),
		FeedbackTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "understanding",
			Name:      "feedback_submitted_total",
			Help:      "Feedback records accepted.",
		}),
		PatternsPromoted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "understanding",
			Name:      "patterns_promoted_total",
			Help:      "Learned patterns promoted into the live rule tables.",
		}),
		QueryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "understanding",
			Name:      "query_duration_seconds",
			Help:      "End-to-end query understanding latency.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

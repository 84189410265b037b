package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "loan_coach"
	subsystem = "api"
)

var (
	ConversationsStartedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "conversations_started_total",
			Help:      "Total training conversations started",
		},
		[]string{"scenario"},
	)

	// TurnsTotal outcome is one of ok, fallback_unreachable, fallback_error.
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "turns_total",
			Help:      "Total agent turns processed",
		},
		[]string{"outcome"},
	)

	// AnalysesTotal outcome is one of parsed, unparsed, fallback.
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "analyses_total",
			Help:      "Total conversation analyses",
		},
		[]string{"outcome"},
	)

	PrunedConversationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pruned_conversations_total",
			Help:      "Temporary conversations deleted when a newer one ended",
		},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route", "status"},
	)
)

const (
	TurnOK                  = "ok"
	TurnFallbackUnreachable = "fallback_unreachable"
	TurnFallbackError       = "fallback_error"

	AnalysisParsed   = "parsed"
	AnalysisUnparsed = "unparsed"
	AnalysisFallback = "fallback"
)

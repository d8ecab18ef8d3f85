// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewer_commands_total",
			Help: "Total number of map commands handled by the dispatcher",
		},
		[]string{"command", "outcome"},
	)

	HighlightDroppedIDs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewer_highlight_dropped_ids_total",
			Help: "IDs dropped from highlight commands because they are not in the campaign",
		},
		[]string{"kind"},
	)

	StyleTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewer_style_transitions_total",
			Help: "Completed basemap style transitions by outcome",
		},
		[]string{"outcome"},
	)

	HotspotFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewer_hotspot_fetches_total",
			Help: "Projection and nearby-panorama lookups by outcome",
		},
		[]string{"kind", "outcome"},
	)

	AskDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "viewer_ask_duration_seconds",
			Help:    "Round trip of a question to the agent backend",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60},
		},
	)

	AsksActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "viewer_asks_active",
			Help: "Questions currently awaiting an answer",
		},
	)
)

// Command outcomes.
const (
	OutcomeApplied  = "applied"
	OutcomeDeferred = "deferred"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Tuning session counters and histograms, partitioned by strategy and the
// controller being tuned.

var (
	EpisodesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pidtune",
		Subsystem: "episode",
		Name:      "runs_total",
		Help:      "Total episodes run",
	}, []string{"strategy", "target", "reason"})

	EpisodeSteps = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pidtune",
		Subsystem: "episode",
		Name:      "steps",
		Help:      "Ticks per episode",
		Buckets:   []float64{10, 50, 100, 250, 500, 1000, 2000, 5000},
	}, []string{"strategy", "target"})

	TrialError = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pidtune",
		Subsystem: "search",
		Name:      "trial_error",
		Help:      "Normalized error reported to the search per trial",
		Buckets:   prometheus.ExponentialBuckets(1e-4, 10, 10),
	}, []string{"strategy", "target"})

	BestError = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "pidtune",
		Subsystem: "search",
		Name:      "best_error",
		Help:      "Best normalized error seen by the running search",
	}, []string{"strategy", "target"})

	StepSizeNorm = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "pidtune",
		Subsystem: "search",
		Name:      "step_size_norm",
		Help:      "Euclidean norm of the coordinate search step sizes",
	}, []string{"target"})

	BracketWidth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "pidtune",
		Subsystem: "search",
		Name:      "bracket_width",
		Help:      "Width of the golden-section bracket for the gain under search",
	}, []string{"target", "gain"})

	SearchesConverged = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pidtune",
		Subsystem: "search",
		Name:      "converged_total",
		Help:      "Total searches that reached their stopping tolerance",
	}, []string{"strategy", "target"})
)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AnalysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trueframe_analyses_total",
		Help: "Total number of analyses, by outcome (REAL, FAKE, or error kind)",
	}, []string{"outcome"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trueframe_stage_duration_seconds",
		Help:    "Duration of inference pipeline stages",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
	}, []string{"stage"})

	FramesSampledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trueframe_frames_sampled_total",
		Help: "Total number of frames sampled across all analyses",
	})

	ActiveAnalyses = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trueframe_active_analyses",
		Help: "Number of inference pipelines currently running",
	})

	ScorerRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trueframe_scorer_retries_total",
		Help: "Total number of single-batch scoring retries",
	})

	QueueRetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trueframe_queue_retry_total",
		Help: "Total number of queued-analysis retries, by attempt",
	}, []string{"attempt"})
)

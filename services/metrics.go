package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scoringRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prometeo",
			Subsystem: "scoring",
			Name:      "runs_total",
			Help:      "Scoring runs by trigger and final status",
		},
		[]string{"trigger", "status"},
	)

	scoringDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "prometeo",
			Subsystem: "scoring",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a scoring run",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	clientsScored = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "prometeo",
			Subsystem: "scoring",
			Name:      "clients_scored_total",
			Help:      "Predictions written across all runs",
		},
	)

	schemaDrift = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prometeo",
			Subsystem: "features",
			Name:      "schema_drift_total",
			Help:      "Schema drift findings by stage and kind",
		},
		[]string{"stage", "kind"},
	)
)

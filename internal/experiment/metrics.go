package experiment

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StartedTotal counts experiments started.
	StartedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "learnd",
			Subsystem: "experiment",
			Name:      "started_total",
			Help:      "Total number of experiments started",
		},
	)

	// ResultsTotal counts recorded variant results.
	// Labels: outcome (success, failure)
	ResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "learnd",
			Subsystem: "experiment",
			Name:      "results_total",
			Help:      "Total number of experiment variant results recorded",
		},
		[]string{"outcome"},
	)

	// ConcludedTotal counts experiments reaching a terminal status.
	// Labels: status
	ConcludedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "learnd",
			Subsystem: "experiment",
			Name:      "concluded_total",
			Help:      "Total number of experiments concluded by status",
		},
		[]string{"status"},
	)
)

package insight

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransitionsTotal counts insight state transitions.
	// Labels: kind (created, reinforced, contradicted, verified, deactivated), category
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "learnd",
			Subsystem: "insight",
			Name:      "transitions_total",
			Help:      "Total number of insight state transitions",
		},
		[]string{"kind", "category"},
	)

	// DecayedTotal counts confidence decays applied to stale insights.
	DecayedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "learnd",
			Subsystem: "insight",
			Name:      "decayed_total",
			Help:      "Total number of stale-insight confidence decays",
		},
	)
)

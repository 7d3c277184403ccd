package reflection

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// GeneratedTotal counts generated meta-insights.
// Labels: type (knowledge_gap, conflict, growth)
var GeneratedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "learnd",
		Subsystem: "reflection",
		Name:      "meta_insights_total",
		Help:      "Total number of meta-cognitive insights generated",
	},
	[]string{"type"},
)

package preference

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// UpdatesTotal counts preference updates by category.
var UpdatesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "learnd",
		Subsystem: "preference",
		Name:      "updates_total",
		Help:      "Total number of preference strength updates",
	},
	[]string{"category"},
)

package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PublishedTotal counts published events.
// Labels: type, result (success, error)
var PublishedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "learnd",
		Subsystem: "events",
		Name:      "published_total",
		Help:      "Total number of learning events published",
	},
	[]string{"type", "result"},
)

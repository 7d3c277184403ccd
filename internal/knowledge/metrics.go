package knowledge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CategorizedTotal counts categorization attempts.
	// Labels: result (matched, uncategorized, error)
	CategorizedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "learnd",
			Subsystem: "knowledge",
			Name:      "categorized_total",
			Help:      "Total number of memory categorization attempts",
		},
		[]string{"result"},
	)

	// ConnectionsTotal counts recorded connections.
	// Labels: relationship
	ConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "learnd",
			Subsystem: "knowledge",
			Name:      "connections_total",
			Help:      "Total number of knowledge connections recorded",
		},
		[]string{"relationship"},
	)

	// ConceptsTotal counts synthesized concepts.
	ConceptsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "learnd",
			Subsystem: "knowledge",
			Name:      "concepts_total",
			Help:      "Total number of concepts synthesized",
		},
	)

	// DomainsGauge tracks the number of registered domains in the most
	// recently modified index.
	DomainsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "learnd",
			Subsystem: "knowledge",
			Name:      "domains",
			Help:      "Number of registered knowledge domains",
		},
	)
)

package secrets

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedactionsTotal counts redacted spans by rule.
	RedactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "learnd",
		Subsystem: "secrets",
		Name:      "redactions_total",
		Help:      "Text spans redacted before persistence or publishing, by rule",
	}, []string{"rule", "kind"})
)

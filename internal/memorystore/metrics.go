package memorystore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// OperationsTotal counts memory store operations.
// Labels: op (create, get, connect, search), result (success, error)
var OperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "learnd",
		Subsystem: "memorystore",
		Name:      "operations_total",
		Help:      "Total number of memory store operations",
	},
	[]string{"op", "result"},
)

func recordOp(op string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	OperationsTotal.WithLabelValues(op, result).Inc()
}

package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	executionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faas_engine_executions_total",
			Help: "Executions dispatched, by path and terminal status.",
		},
		[]string{"path", "status"},
	)

	poolOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faas_engine_pool_operations_total",
			Help: "Runtime pool operations, by operation and result.",
		},
		[]string{"op", "result"},
	)

	workersScaledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faas_engine_workers_scaled_total",
			Help: "Workers added or removed by scaling.",
		},
		[]string{"direction"},
	)
)

func init() {
	prometheus.MustRegister(executionsTotal)
	prometheus.MustRegister(poolOperationsTotal)
	prometheus.MustRegister(workersScaledTotal)
}

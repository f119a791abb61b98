package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OperationMetrics records outcomes for lot service operations
// (receive, consume, split, ...).
type OperationMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
}

// NewOperationMetrics registers the operation metrics on the provided registerer.
func NewOperationMetrics(reg prometheus.Registerer) *OperationMetrics {
	if reg == nil {
		return &OperationMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lot_operation_duration_seconds",
		Help:    "Duration of lot service operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lot_operation_success",
		Help: "Successful lot service operations.",
	}, []string{"operation"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lot_operation_failure",
		Help: "Failed lot service operations.",
	}, []string{"operation"})
	reg.MustRegister(duration, success, failure)
	return &OperationMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
	}
}

// Observe records the outcome and duration for the named operation.
func (m *OperationMetrics) Observe(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	label := normalizeLabel(operation)
	if m.duration != nil {
		m.duration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if m.failure != nil {
			m.failure.WithLabelValues(label).Inc()
		}
		return
	}
	if m.success != nil {
		m.success.WithLabelValues(label).Inc()
	}
}

func normalizeLabel(operation string) string {
	if operation == "" {
		return "unknown"
	}
	return operation
}

// Package monitoring records per-stage metrics for pipeline runs.
//
// Metrics live in a private Prometheus registry so a batch run can dump them
// to a node_exporter textfile at the end instead of serving them.
package monitoring

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sectorcast"

// OperationMetrics represents the outcome of one recorded stage.
type OperationMetrics struct {
	Operation string        `json:"operation"`
	Duration  time.Duration `json:"duration"`
	Rows      int           `json:"rows"`
	Columns   int           `json:"columns"`
	Failed    bool          `json:"failed"`
}

// Shape is the table size a stage reports after it runs.
type Shape struct {
	Rows    int
	Columns int
}

// MetricsCollector collects stage metrics into a Prometheus registry and keeps
// an in-order record for run summaries.
type MetricsCollector struct {
	mu      sync.RWMutex
	metrics []OperationMetrics

	registry *prometheus.Registry
	duration *prometheus.HistogramVec
	rows     *prometheus.GaugeVec
	columns  *prometheus.GaugeVec
	failures *prometheus.CounterVec
}

// NewMetricsCollector creates a collector with its own registry.
func NewMetricsCollector() *MetricsCollector {
	mc := &MetricsCollector{
		registry: prometheus.NewRegistry(),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Wall time spent in each pipeline stage.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"stage"},
		),
		rows: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stage_rows",
				Help:      "Rows in the table produced by a stage.",
			},
			[]string{"stage"},
		),
		columns: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stage_columns",
				Help:      "Columns in the table produced by a stage.",
			},
			[]string{"stage"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_failures_total",
				Help:      "Stages that returned an error.",
			},
			[]string{"stage"},
		),
	}
	mc.registry.MustRegister(mc.duration, mc.rows, mc.columns, mc.failures)
	return mc
}

// Registry returns the registry the collector writes to.
func (mc *MetricsCollector) Registry() *prometheus.Registry {
	return mc.registry
}

// RecordOperation executes fn and records its duration and resulting shape.
// The error from fn is returned unchanged.
func (mc *MetricsCollector) RecordOperation(operation string, fn func() (Shape, error)) error {
	start := time.Now()
	shape, err := fn()
	elapsed := time.Since(start)

	mc.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
	if err != nil {
		mc.failures.WithLabelValues(operation).Inc()
	} else {
		mc.rows.WithLabelValues(operation).Set(float64(shape.Rows))
		mc.columns.WithLabelValues(operation).Set(float64(shape.Columns))
	}

	mc.mu.Lock()
	mc.metrics = append(mc.metrics, OperationMetrics{
		Operation: operation,
		Duration:  elapsed,
		Rows:      shape.Rows,
		Columns:   shape.Columns,
		Failed:    err != nil,
	})
	mc.mu.Unlock()

	return err
}

// GetMetrics returns a copy of all recorded stages in order.
func (mc *MetricsCollector) GetMetrics() []OperationMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	result := make([]OperationMetrics, len(mc.metrics))
	copy(result, mc.metrics)
	return result
}

// GetSummary returns aggregate statistics for the recorded stages.
func (mc *MetricsCollector) GetSummary() MetricsSummary {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	summary := MetricsSummary{OperationCounts: make(map[string]int)}
	for _, m := range mc.metrics {
		summary.TotalOperations++
		summary.TotalDuration += m.Duration
		summary.OperationCounts[m.Operation]++
		if m.Failed {
			summary.Failures++
		}
	}
	return summary
}

// WriteTextfile writes the registry in the Prometheus text format, atomically.
// Missing parent directories are created.
func (mc *MetricsCollector) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, mc.registry)
}

// MetricsSummary provides aggregate statistics for collected metrics.
type MetricsSummary struct {
	TotalOperations int            `json:"total_operations"`
	TotalDuration   time.Duration  `json:"total_duration"`
	Failures        int            `json:"failures"`
	OperationCounts map[string]int `json:"operation_counts"`
}

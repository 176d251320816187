// Package metrics records per-stage pipeline metrics and writes them in the
// Prometheus text format for a node-exporter textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the pipeline metrics on a private registry, so several
// collectors can coexist in one process.
type Collector struct {
	registry      *prometheus.Registry
	stageDuration *prometheus.HistogramVec
	stageRows     *prometheus.GaugeVec
	stageFailures *prometheus.CounterVec
	runs          *prometheus.CounterVec
}

// NewCollector creates and registers the pipeline metrics.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms to ~4min
		}, []string{"report", "stage"}),
		stageRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ledger_stage_rows",
			Help: "Rows written by the last run of each pipeline stage",
		}, []string{"report", "stage"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_stage_failures_total",
			Help: "Number of failed pipeline stages",
		}, []string{"report", "stage"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_runs_total",
			Help: "Number of pipeline runs by outcome",
		}, []string{"outcome"}),
	}
	c.registry.MustRegister(c.stageDuration, c.stageRows, c.stageFailures, c.runs)
	return c
}

// ObserveStage records one finished stage. rows is ignored when err is set.
func (c *Collector) ObserveStage(report, stage string, d time.Duration, rows int, err error) {
	c.stageDuration.WithLabelValues(report, stage).Observe(d.Seconds())
	if err != nil {
		c.stageFailures.WithLabelValues(report, stage).Inc()
		return
	}
	c.stageRows.WithLabelValues(report, stage).Set(float64(rows))
}

// ObserveRun counts a whole pipeline run.
func (c *Collector) ObserveRun(err error) {
	outcome := "completed"
	if err != nil {
		outcome = "failed"
	}
	c.runs.WithLabelValues(outcome).Inc()
}

// WriteTextfile writes every metric to path atomically.
func (c *Collector) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("metrics: create directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("metrics: write %s: %w", path, err)
	}
	return nil
}

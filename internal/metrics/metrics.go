package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "monfill"

// Collector holds the counters of one run on a private registry.
type Collector struct {
	registry *prometheus.Registry

	SnapshotsLoaded    *prometheus.CounterVec
	SnapshotsFailed    *prometheus.CounterVec
	SupplementsCreated *prometheus.CounterVec
	CellsImputed       *prometheus.CounterVec
	ForcedFills        *prometheus.CounterVec
	Corrections        *prometheus.CounterVec
	RunDuration        prometheus.Histogram
	LastRunTimestamp   prometheus.Gauge
}

// NewCollector creates a collector with a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		SnapshotsLoaded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "snapshots_loaded_total",
				Help:      "Snapshot workbooks loaded by project",
			},
			[]string{"project"},
		),

		SnapshotsFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "snapshots_failed_total",
				Help:      "Snapshot files skipped by reason",
			},
			[]string{"reason"},
		),

		SupplementsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "supplements_created_total",
				Help:      "Supplement snapshots synthesized by project and selection rule",
			},
			[]string{"project", "rule"},
		),

		CellsImputed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "cells_imputed_total",
				Help:      "Blank cells filled by imputation strategy",
			},
			[]string{"project", "strategy"},
		),

		ForcedFills: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "forced_fills_total",
				Help:      "Cells forced to the schema default by the integrity sweep",
			},
			[]string{"project"},
		),

		Corrections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "corrections_total",
				Help:      "Cumulative consistency corrections by kind",
			},
			[]string{"project", "kind"},
		),

		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of a processing run in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
		),

		LastRunTimestamp: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last processing run finished",
			},
		),
	}
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveRun records the run duration and completion time.
func (c *Collector) ObserveRun(start, end time.Time) {
	c.RunDuration.Observe(end.Sub(start).Seconds())
	c.LastRunTimestamp.Set(float64(end.Unix()))
}

// WriteTextfile writes all metrics in Prometheus text format for the node exporter textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

package imports

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	importerRowsExtractedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pglake_importer_rows_extracted_total",
			Help: "Total number of rows extracted from the source, labelled per-table",
		},
		[]string{"table"},
	)
	importerBatchesCommittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pglake_importer_batches_committed_total",
			Help: "Total number of batches committed to the destination, labelled per-table",
		},
		[]string{"table"},
	)
	importerTableFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pglake_importer_table_failures_total",
			Help: "Total number of failed table syncs, by failing step",
		},
		[]string{"step"},
	)
	importerStepDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pglake_importer_step_duration_seconds",
			Help:    "Distribution of time spent in each step of a table sync",
			Buckets: prometheus.ExponentialBuckets(0.125, 2, 12), // 0.125 -> 512s
		},
		[]string{"step"},
	)
	driverLastRunTimestampSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pglake_driver_last_run_timestamp_seconds",
			Help: "Unix time at which the last run finished",
		},
	)
	driverLastRunFailedTables = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pglake_driver_last_run_failed_tables",
			Help: "Number of tables that failed in the last run",
		},
	)
)

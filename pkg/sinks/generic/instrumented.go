package generic

import (
	"context"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/lawrencejones/pglake/pkg/changelog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opencensus.io/trace"
)

var (
	destinationOperationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pglake_destination_operation_duration_seconds",
			Help:    "Distribution of time spent in destination operations, by operation",
			Buckets: prometheus.ExponentialBuckets(0.125, 2, 12), // 0.125 -> 512s
		},
		[]string{"destination", "operation"},
	)
	destinationAppendBatchSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pglake_destination_append_batch_size",
			Help:    "Distribution of appended batch sizes",
			Buckets: prometheus.ExponentialBuckets(1, 2, 20), // 1 -> 524288
		},
		[]string{"destination"},
	)
)

type instrumentedDestination struct {
	Destination
	logger                     kitlog.Logger
	name                       string
	durationSeconds, batchSize prometheus.ObserverVec
}

// NewInstrumentedDestination wraps an existing destination, causing every operation to be
// logged, capture duration in metrics, and create new spans.
func NewInstrumentedDestination(logger kitlog.Logger, name string, d Destination) Destination {
	labels := prometheus.Labels(map[string]string{"destination": name})
	logger = kitlog.With(logger, "destination", name)

	return &instrumentedDestination{
		Destination:     d,
		logger:          logger,
		name:            name,
		durationSeconds: destinationOperationDurationSeconds.MustCurryWith(labels),
		batchSize:       destinationAppendBatchSize.MustCurryWith(labels),
	}
}

func (i *instrumentedDestination) observe(ctx context.Context, operation string, table changelog.Table, keyvals ...interface{}) (context.Context, func(error)) {
	ctx, span := trace.StartSpan(ctx, "pkg/sinks/generic.Destination."+operation)
	span.AddAttributes(
		trace.StringAttribute("destination", i.name),
		trace.StringAttribute("table", table.String()),
	)

	start := time.Now()
	return ctx, func(err error) {
		defer span.End()

		duration := time.Since(start).Seconds()
		i.durationSeconds.WithLabelValues(operation).Observe(duration)
		i.logger.Log(append([]interface{}{
			"event", "destination." + operation, "table", table, "duration", duration, "error", err,
		}, keyvals...)...)
	}
}

func (i *instrumentedDestination) TableExists(ctx context.Context, table changelog.Table) (exists bool, err error) {
	ctx, done := i.observe(ctx, "table_exists", table)
	defer func() { done(err) }()

	return i.Destination.TableExists(ctx, table)
}

func (i *instrumentedDestination) EnsureNamespace(ctx context.Context, namespace string) (err error) {
	ctx, done := i.observe(ctx, "ensure_namespace", changelog.Table{Schema: namespace})
	defer func() { done(err) }()

	return i.Destination.EnsureNamespace(ctx, namespace)
}

func (i *instrumentedDestination) CreateTableIfNotExists(ctx context.Context, table changelog.Table, schema changelog.Schema) (created bool, err error) {
	ctx, done := i.observe(ctx, "create_table", table, "columns", len(schema.Columns))
	defer func() { done(err) }()

	return i.Destination.CreateTableIfNotExists(ctx, table, schema)
}

func (i *instrumentedDestination) Watermark(ctx context.Context, table changelog.Table, ingestionColumn string) (watermark *time.Time, err error) {
	ctx, done := i.observe(ctx, "watermark", table)
	defer func() { done(err) }()

	return i.Destination.Watermark(ctx, table, ingestionColumn)
}

func (i *instrumentedDestination) Append(ctx context.Context, table changelog.Table, batch changelog.Batch) (commit Commit, err error) {
	ctx, done := i.observe(ctx, "append", table, "batch_size", batch.Len())
	defer func() { done(err) }()

	i.batchSize.WithLabelValues().Observe(float64(batch.Len()))
	return i.Destination.Append(ctx, table, batch)
}

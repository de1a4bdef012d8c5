package imports

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	kitlog "github.com/go-kit/kit/log"
	"github.com/lawrencejones/pglake/internal/telem"
	"github.com/lawrencejones/pglake/pkg/changelog"
	"github.com/lawrencejones/pglake/pkg/sinks/generic"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

// Locker prevents runs from overlapping. Lock returns ErrRunInProgress if another run
// holds the lock.
type Locker interface {
	Lock(ctx context.Context) (unlock func(context.Context) error, err error)
}

// Recorder persists the outcome of a run.
type Recorder interface {
	Record(ctx context.Context, destination, namespace string, report *Report) error
}

type DriverOption func(*Driver)

func WithLocker(locker Locker) DriverOption {
	return func(d *Driver) {
		d.locker = locker
	}
}

func WithRecorder(name string, recorder Recorder) DriverOption {
	return func(d *Driver) {
		d.destinationName = name
		d.recorder = recorder
	}
}

func NewDriver(logger kitlog.Logger, source Source, destination generic.Destination, opts Options, options ...DriverOption) *Driver {
	d := &Driver{
		logger:   logger,
		source:   source,
		importer: NewImporter(source, destination),
		opts:     opts,
	}

	for _, option := range options {
		option(d)
	}

	return d
}

// Driver runs a sync over every table in the source namespace. Tables are synced
// sequentially, in name order.
type Driver struct {
	logger          kitlog.Logger
	source          Source
	importer        *Importer
	opts            Options
	locker          Locker
	recorder        Recorder
	destinationName string
}

// Tables enumerates the source tables this driver would sync.
func (d *Driver) Tables(ctx context.Context) ([]TableDescriptor, error) {
	tables, err := d.source.ListTables(ctx, d.opts.SourceNamespace)
	if err != nil {
		return nil, errors.Wrap(err, "failed to enumerate source tables")
	}

	filter := d.opts.Filter()
	descriptors := []TableDescriptor{}
	for _, table := range tables {
		if filter.Match(table.TableName) {
			descriptors = append(descriptors, d.opts.Describe(table))
		}
	}

	return descriptors, nil
}

// Run syncs every table and returns a report. No table failure stops the run, and no
// error escapes: callers should inspect the report.
func (d *Driver) Run(ctx context.Context) *Report {
	ctx, span, logger := telem.Logger(ctx, d.logger)(trace.StartSpan(ctx, "pkg/imports.Driver.Run"))
	defer span.End()

	report := NewReport()
	logger = kitlog.With(logger, "run_id", report.ID)
	logger.Log("event", "run.start", "namespace", d.opts.SourceNamespace)

	defer func() {
		report.FinishedAt = time.Now()
		d.finish(ctx, logger, report)
	}()

	if d.locker != nil {
		unlock, err := d.locker.Lock(ctx)
		if err != nil {
			report.Err = err
			return report
		}

		defer func() {
			// Release even when the run was cancelled, so the next run isn't refused
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				logger.Log("event", "run.unlock_failed", "error", err)
			}
		}()
	}

	tables, err := d.Tables(ctx)
	if err != nil {
		report.Err = err
		return report
	}

	for _, table := range tables {
		if err := ctx.Err(); err != nil {
			report.Err = errors.Wrap(err, "run cancelled")
			break
		}

		result := d.importer.Do(ctx, kitlog.With(logger, "table", table.Source()), table)
		report.Results = append(report.Results, result)
		d.logResult(ctx, logger, result)
	}

	return report
}

func (d *Driver) logResult(ctx context.Context, logger kitlog.Logger, result Result) {
	logger = kitlog.With(logger,
		"table", result.Table.Source(), "destination", result.Table.Destination(),
		"state", result.State, "rows", result.Rows, "duration", result.Duration.Seconds(),
	)

	if result.Failed() {
		logger.Log("event", "table.failed", "step", result.Step, "error", result.Err)
		d.capture(logger, result.Err, map[string]string{
			"table": result.Table.Source().String(),
			"step":  string(result.Step),
		})

		return
	}

	logger.Log("event", "table.synced", "watermark", result.Watermark,
		"created", result.Created, "snapshot", result.Snapshot)
}

func (d *Driver) finish(ctx context.Context, logger kitlog.Logger, report *Report) {
	driverLastRunTimestampSeconds.Set(float64(report.FinishedAt.Unix()))
	driverLastRunFailedTables.Set(float64(len(report.Failed())))

	if report.Err != nil {
		logger.Log("event", "run.failed", "error", report.Err)
		if !errors.Is(report.Err, ErrRunInProgress) {
			d.capture(logger, report.Err, map[string]string{"namespace": d.opts.SourceNamespace})
		}
	}

	logger.Log("event", "run.finish", "tables", len(report.Results), "failed", len(report.Failed()),
		"committed", len(report.Committed()), "rows", report.Rows(), "duration", report.Duration().Seconds())

	// A run that never acquired the lock was never a run, so leave no history
	if d.recorder == nil || errors.Is(report.Err, ErrRunInProgress) {
		return
	}

	if err := d.recorder.Record(ctx, d.destinationName, d.opts.SourceNamespace, report); err != nil {
		logger.Log("event", "run.record_failed", "error", err)
	}
}

// capture reports the error to Sentry, if a client is configured.
func (d *Driver) capture(logger kitlog.Logger, err error, tags map[string]string) {
	hub := sentry.CurrentHub().Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
	})

	if eventID := hub.CaptureException(err); eventID != nil {
		logger.Log("event", "capture_exception", "event_id", *eventID)
	}
}

// Plan describes what a run would do to a table, without writing anything.
type Plan struct {
	Table     TableDescriptor
	Exists    bool
	Watermark *time.Time
	Pending   int64
	Err       error
}

// Counter is implemented by sources that can count pending rows without extracting them.
type Counter interface {
	Count(ctx context.Context, table changelog.Table, changeColumn string, watermark *time.Time) (int64, error)
}

// Plan reads the destination state and pending row count of every table.
func (d *Driver) Plan(ctx context.Context, destination generic.Destination, counter Counter) ([]Plan, error) {
	tables, err := d.Tables(ctx)
	if err != nil {
		return nil, err
	}

	plans := []Plan{}
	for _, table := range tables {
		plan := Plan{Table: table}
		plan.Exists, plan.Err = destination.TableExists(ctx, table.Destination())
		if plan.Err == nil && plan.Exists {
			plan.Watermark, plan.Err = destination.Watermark(ctx, table.Destination(), table.IngestionColumn)
		}
		if plan.Err == nil {
			plan.Pending, plan.Err = counter.Count(ctx, table.Source(), table.ChangeColumn, plan.Watermark)
		}

		plans = append(plans, plan)
	}

	return plans, nil
}

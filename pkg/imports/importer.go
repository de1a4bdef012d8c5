package imports

import (
	"context"
	"errors"
	"fmt"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/lawrencejones/pglake/internal/telem"
	"github.com/lawrencejones/pglake/pkg/changelog"
	"github.com/lawrencejones/pglake/pkg/sinks/generic"
	"github.com/prometheus/client_golang/prometheus"
	"go.opencensus.io/trace"
)

// Source is where we extract rows from. Implemented by pkg/source for Postgres.
type Source interface {
	ListTables(ctx context.Context, namespace string) (changelog.Tables, error)
	Extract(ctx context.Context, table changelog.Table, changeColumn string, watermark *time.Time) (changelog.Batch, error)
}

func NewImporter(source Source, destination generic.Destination) *Importer {
	return &Importer{
		source:      source,
		destination: destination,
	}
}

// Importer syncs a single table, sequencing each step of the pipeline.
type Importer struct {
	source      Source
	destination generic.Destination
}

// Do syncs one table and never fails: any error, or panic, is captured on the result
// along with the step that caused it.
func (i *Importer) Do(ctx context.Context, logger kitlog.Logger, table TableDescriptor) (result Result) {
	ctx, span, logger := telem.Logger(ctx, logger)(trace.StartSpan(ctx, "pkg/imports.Importer.Do"))
	defer span.End()

	span.AddAttributes(
		trace.StringAttribute("source", table.Source().String()),
		trace.StringAttribute("destination", table.Destination().String()),
	)

	start := time.Now()
	result = Result{Table: table, State: StateStart}

	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("panic syncing table: %v", r)
		}

		result.Duration = time.Since(start)
		if result.Err != nil {
			span.SetStatus(trace.Status{Code: trace.StatusCodeUnknown, Message: result.Err.Error()})
			importerTableFailuresTotal.WithLabelValues(string(result.Step)).Inc()
		}
	}()

	var (
		watermark *time.Time
		batch     changelog.Batch
		created   bool
		commit    generic.Commit
		err       error
	)

	result.Step = StepWatermark
	err = i.step(StepWatermark, func() error {
		watermark, err = i.destination.Watermark(ctx, table.Destination(), table.IngestionColumn)
		// A table that does not exist has never been synced, so we extract everything.
		// Any other error must fail the table, or a destination outage would trigger a
		// full resync.
		if errors.Is(err, generic.ErrTableNotFound) {
			logger.Log("event", "watermark.not_found", "msg", "destination table does not exist, extracting all rows")
			watermark, err = nil, nil
		}

		return err
	})
	if err != nil {
		result.Err = err
		return
	}

	result.Watermark = watermark
	result.State = StateWatermarkRead

	result.Step = StepExtract
	err = i.step(StepExtract, func() error {
		batch, err = i.source.Extract(ctx, table.Source(), table.ChangeColumn, watermark)
		return err
	})
	if err != nil {
		result.Err = err
		return
	}

	result.Rows = batch.Len()
	result.State = StateExtracted
	importerRowsExtractedTotal.WithLabelValues(table.Source().String()).Add(float64(batch.Len()))

	if batch.Empty() {
		logger.Log("event", "batch.empty", "watermark", watermark, "msg", "no new rows, nothing to commit")
		result.State = StateEmpty
		return
	}

	result.Step = StepBootstrap
	err = i.step(StepBootstrap, func() error {
		batch, err = batch.Stamp(table.IngestionColumn, batch.ExtractedAt)
		if err != nil {
			return err
		}

		created, err = i.bootstrap(ctx, logger, table, batch.Schema)
		return err
	})
	if err != nil {
		result.Err = err
		return
	}

	result.Created = created
	result.State = StateBootstrapped

	result.Step = StepCommit
	err = i.step(StepCommit, func() error {
		commit, err = i.destination.Append(ctx, table.Destination(), batch)
		return err
	})
	if err != nil {
		result.Err = err
		return
	}

	ingestedAt := batch.IngestedAt
	result.IngestedAt = &ingestedAt
	result.Snapshot = commit.Snapshot
	result.State = StateCommitted
	importerBatchesCommittedTotal.WithLabelValues(table.Source().String()).Inc()

	return
}

// bootstrap ensures the destination table exists, creating it from the stamped batch
// schema if this is the first time we've seen it. This is a pure existence check once the
// table exists, and never modifies the schema of an existing table.
func (i *Importer) bootstrap(ctx context.Context, logger kitlog.Logger, table TableDescriptor, schema changelog.Schema) (bool, error) {
	exists, err := i.destination.TableExists(ctx, table.Destination())
	if err != nil {
		return false, fmt.Errorf("failed to check destination table exists: %w", err)
	}

	if exists {
		return false, nil
	}

	if err := i.destination.EnsureNamespace(ctx, table.DestinationNamespace); err != nil {
		return false, fmt.Errorf("failed to create destination namespace: %w", err)
	}

	created, err := i.destination.CreateTableIfNotExists(ctx, table.Destination(), schema)
	if err != nil {
		return false, fmt.Errorf("failed to create destination table: %w", err)
	}

	logger.Log("event", "table.bootstrapped", "created", created, "columns", len(schema.Columns))
	return created, nil
}

func (i *Importer) step(step Step, do func() error) error {
	defer prometheus.NewTimer(importerStepDurationSeconds.WithLabelValues(string(step))).ObserveDuration()

	return do()
}

package bigquery

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lawrencejones/pglake/internal/telem"
	"github.com/lawrencejones/pglake/pkg/changelog"
	"github.com/lawrencejones/pglake/pkg/sinks/generic"

	bq "cloud.google.com/go/bigquery"
	kitlog "github.com/go-kit/kit/log"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"google.golang.org/api/iterator"
)

// CreateTableIfNotExists creates the table, losing gracefully to anyone who races us.
func (b *BigQuery) CreateTableIfNotExists(ctx context.Context, table changelog.Table, schema changelog.Schema) (bool, error) {
	md, err := buildTable(table.TableName, schema, b.opts.IngestionColumn)
	if err != nil {
		return false, errors.Wrap(err, "failed to build table metadata")
	}

	logger := kitlog.With(b.logger, "table", table)
	if err := b.table(table).Create(ctx, md); err != nil {
		if isStatus(err, http.StatusConflict) {
			return false, nil
		}

		return false, errors.Wrap(err, "failed to create table")
	}

	logger.Log("event", "table.create", "fields", len(md.Schema))
	return true, nil
}

func (b *BigQuery) Watermark(ctx context.Context, table changelog.Table, ingestionColumn string) (*time.Time, error) {
	ctx, span, _ := telem.StartSpan(ctx, "pkg/sinks/bigquery.BigQuery.Watermark")
	defer span.End()

	bqTable := b.table(table)
	if _, err := bqTable.Metadata(ctx); err != nil {
		if allowNotFound(err) == nil {
			return nil, generic.ErrTableNotFound
		}

		return nil, errors.Wrap(err, "failed to get table metadata")
	}

	query, err := buildWatermarkQuery(bqTable.FullyQualifiedName(), ingestionColumn)
	if err != nil {
		return nil, err
	}

	q := b.client.Query(query)
	q.Location = b.opts.Location

	it, err := q.Read(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query watermark")
	}

	var values []bq.Value
	if err := it.Next(&values); err != nil {
		if err == iterator.Done {
			return nil, nil
		}

		return nil, err
	}

	// max() of an empty table is null
	if len(values) == 0 || values[0] == nil {
		return nil, nil
	}

	watermark, ok := values[0].(time.Time)
	if !ok {
		return nil, fmt.Errorf("ingestion column %s is not a timestamp, got %T", ingestionColumn, values[0])
	}

	watermark = watermark.UTC()
	return &watermark, nil
}

// Append loads the batch as newline delimited JSON. The load job is the unit of
// atomicity, so the job ID identifies the version it created.
func (b *BigQuery) Append(ctx context.Context, table changelog.Table, batch changelog.Batch) (generic.Commit, error) {
	ctx, span, logger := telem.StartSpan(ctx, "pkg/sinks/bigquery.BigQuery.Append")
	defer span.End()

	if err := generic.ValidateBatch(batch); err != nil {
		return generic.Commit{}, err
	}

	bqTable := b.table(table)
	md, err := bqTable.Metadata(ctx)
	if err != nil {
		if allowNotFound(err) == nil {
			return generic.Commit{}, generic.ErrTableNotFound
		}

		return generic.Commit{}, errors.Wrap(err, "failed to get table metadata")
	}

	expected, err := buildSchema(batch.Schema, batch.IngestionColumn)
	if err != nil {
		return generic.Commit{}, err
	}

	if !schemaMatches(md.Schema, expected) {
		return generic.Commit{}, errors.Wrapf(generic.ErrSchemaMismatch, "table %s", table)
	}

	content, err := encodeRows(batch)
	if err != nil {
		return generic.Commit{}, err
	}

	source := bq.NewReaderSource(bytes.NewReader(content))
	source.SourceFormat = bq.JSON

	loader := bqTable.LoaderFrom(source)
	loader.WriteDisposition = bq.WriteAppend
	loader.CreateDisposition = bq.CreateNever

	job, err := loader.Run(ctx)
	if err != nil {
		return generic.Commit{}, errors.Wrap(err, "failed to start load job")
	}

	span.AddAttributes(trace.StringAttribute("job_id", job.ID()))
	status, err := job.Wait(ctx)
	if err != nil {
		return generic.Commit{}, errors.Wrap(err, "failed waiting for load job")
	}

	if err := status.Err(); err != nil {
		return generic.Commit{}, errors.Wrapf(err, "load job %s failed", job.ID())
	}

	logger.Log("event", "load_job.complete", "table", table, "job_id", job.ID(), "rows", batch.Len())
	return generic.Commit{
		Table:     table,
		Snapshot:  job.ID(),
		Rows:      batch.Len(),
		Watermark: batch.IngestedAt.UTC(),
	}, nil
}

func encodeRows(batch changelog.Batch) ([]byte, error) {
	var buffer bytes.Buffer
	for idx, row := range batch.Rows {
		line, err := changelog.DefaultSerializer.Marshal(batch.Schema, row)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to serialize row %d", idx)
		}

		buffer.Write(line)
		buffer.WriteByte('\n')
	}

	return buffer.Bytes(), nil
}

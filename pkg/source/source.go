// Reads tables from a Postgres source. Every read happens inside a repeatable read
// transaction, so a batch and the timestamp it is stamped with describe the same view of
// the table.
package source

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/lawrencejones/pglake/internal/telem"
	"github.com/lawrencejones/pglake/pkg/changelog"
	"github.com/lawrencejones/pglake/pkg/decode"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

type txBeginner interface {
	querier
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Source extracts deltas from Postgres tables over a single connection. It is not safe
// for concurrent use.
type Source struct {
	conn    txBeginner
	decoder decode.Decoder
}

func New(conn *pgx.Conn, decoder decode.Decoder) *Source {
	return &Source{conn: conn, decoder: decoder}
}

func (s *Source) ListTables(ctx context.Context, namespace string) (changelog.Tables, error) {
	return ListTables(ctx, s.conn, namespace)
}

// Extract returns every row of the table whose change column is after the watermark, or
// all rows if the watermark is nil. The batch ExtractedAt is the source transaction
// timestamp, which callers should use as the ingestion time.
func (s *Source) Extract(ctx context.Context, table changelog.Table, changeColumn string, watermark *time.Time) (batch changelog.Batch, err error) {
	ctx, span, logger := telem.StartSpan(ctx, "pkg/source.Source.Extract")
	defer span.End()

	err = s.readOnly(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, "select transaction_timestamp();").Scan(&batch.ExtractedAt); err != nil {
			return errors.Wrap(err, "failed to read transaction timestamp")
		}

		schema, err := BuildSchema(ctx, tx, s.decoder, table)
		if err != nil {
			return err
		}

		batch.Schema = schema
		query, err := buildDeltaQuery(s.decoder, schema, changeColumn, watermark)
		if err != nil {
			return err
		}

		span.AddAttributes(trace.StringAttribute("query", query.SQL))
		rows, err := tx.Query(ctx, query.SQL, query.Args...)
		if err != nil {
			return errors.Wrapf(err, "failed to query %s", table)
		}

		defer rows.Close()

		batch.Rows, err = decodeRows(rows, batch.Schema, query.Mappings)
		return err
	})

	if err != nil {
		return batch, err
	}

	batch.ExtractedAt = batch.ExtractedAt.UTC()
	logger.Log("event", "source.extracted", "table", table, "watermark", watermark,
		"extracted_at", batch.ExtractedAt, "rows", batch.Len())

	return batch, nil
}

// Count returns the number of rows Extract would return, without reading them.
func (s *Source) Count(ctx context.Context, table changelog.Table, changeColumn string, watermark *time.Time) (count int64, err error) {
	ctx, span := trace.StartSpan(ctx, "pkg/source.Source.Count")
	defer span.End()

	err = s.readOnly(ctx, func(tx pgx.Tx) error {
		schema, err := BuildSchema(ctx, tx, s.decoder, table)
		if err != nil {
			return err
		}

		// Validate the change column as Extract would, so plans fail the same way
		if _, err := buildDeltaQuery(s.decoder, schema, changeColumn, watermark); err != nil {
			return err
		}

		query, args := buildCountQuery(schema, changeColumn, watermark)
		return tx.QueryRow(ctx, query, args...).Scan(&count)
	})

	return count, err
}

func (s *Source) readOnly(ctx context.Context, do func(pgx.Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Nothing is written, so rolling back is how we always end the transaction
	defer tx.Rollback(ctx)

	return do(tx)
}

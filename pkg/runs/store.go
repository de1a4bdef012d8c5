package runs

import (
	"context"
	"database/sql"
	"time"

	. "github.com/go-jet/jet/v2/postgres"
	"github.com/lawrencejones/pglake/internal/dbschema/pglake/model"
	. "github.com/lawrencejones/pglake/internal/dbschema/pglake/table"
	"github.com/lawrencejones/pglake/pkg/imports"
	"github.com/pkg/errors"
)

var _ imports.Recorder = &Store{}

// Run is a recorded run, with the outcome of each table in the order they were synced.
type Run struct {
	model.Runs

	Tables []model.RunTables
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record saves the run and all table results in a single transaction.
func (s *Store) Record(ctx context.Context, destination, namespace string, report *imports.Report) error {
	run, tables := serialize(destination, namespace, report)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer tx.Rollback()

	insertRun := Runs.
		INSERT(Runs.AllColumns).
		MODEL(run)

	if _, err := insertRun.ExecContext(ctx, tx); err != nil {
		return errors.Wrap(err, "failed to insert run")
	}

	if len(tables) > 0 {
		insertTables := RunTables.
			INSERT(RunTables.MutableColumns).
			MODELS(tables)

		if _, err := insertTables.ExecContext(ctx, tx); err != nil {
			return errors.Wrap(err, "failed to insert run tables")
		}
	}

	return tx.Commit()
}

// List returns the most recent runs, newest first.
func (s *Store) List(ctx context.Context, limit int64) ([]Run, error) {
	var recent []model.Runs
	stmt := Runs.
		SELECT(Runs.AllColumns).
		ORDER_BY(Runs.StartedAt.DESC()).
		LIMIT(limit)

	if err := stmt.QueryContext(ctx, s.db, &recent); err != nil {
		return nil, errors.Wrap(err, "failed to query runs")
	}

	if len(recent) == 0 {
		return []Run{}, nil
	}

	// Reload those runs with their tables, bounded by the oldest run we want
	oldest := recent[len(recent)-1].StartedAt

	var runs []Run
	withTables := SELECT(Runs.AllColumns, RunTables.AllColumns).
		FROM(
			Runs.LEFT_JOIN(RunTables, RunTables.RunID.EQ(Runs.ID)),
		).
		WHERE(Runs.StartedAt.GT_EQ(TimestampzT(oldest))).
		ORDER_BY(Runs.StartedAt.DESC(), RunTables.ID.ASC())

	if err := withTables.QueryContext(ctx, s.db, &runs); err != nil {
		return nil, errors.Wrap(err, "failed to query run tables")
	}

	if int64(len(runs)) > limit {
		runs = runs[:limit]
	}

	return runs, nil
}

func serialize(destination, namespace string, report *imports.Report) (model.Runs, []model.RunTables) {
	finishedAt := report.FinishedAt
	run := model.Runs{
		ID:          report.ID,
		Destination: destination,
		Namespace:   namespace,
		StartedAt:   report.StartedAt,
		CompletedAt: &finishedAt,
		Error:       errorString(report.Err),
		TableCount:  int32(len(report.Results)),
		FailedCount: int32(len(report.Failed())),
	}

	tables := make([]model.RunTables, 0, len(report.Results))
	for _, result := range report.Results {
		table := model.RunTables{
			RunID:           report.ID,
			Schema:          result.Table.SourceNamespace,
			TableName:       result.Table.Name,
			State:           string(result.State),
			Error:           errorString(result.Err),
			RowCount:        int64(result.Rows),
			Created:         result.Created,
			Watermark:       utc(result.Watermark),
			IngestedAt:      utc(result.IngestedAt),
			DurationSeconds: result.Duration.Seconds(),
		}

		if result.Failed() {
			step := string(result.Step)
			table.Step = &step
		}

		if result.Snapshot != "" {
			snapshot := result.Snapshot
			table.Snapshot = &snapshot
		}

		tables = append(tables, table)
	}

	return run, tables
}

func errorString(err error) *string {
	if err == nil {
		return nil
	}

	msg := err.Error()
	return &msg
}

func utc(ts *time.Time) *time.Time {
	if ts == nil {
		return nil
	}

	converted := ts.UTC()
	return &converted
}

package lake

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	. "github.com/go-jet/jet/v2/postgres"
	"github.com/go-jet/jet/v2/qrm"
	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/lawrencejones/pglake/internal/dbschema/pglake/model"
	. "github.com/lawrencejones/pglake/internal/dbschema/pglake/table"
	"github.com/lawrencejones/pglake/pkg/changelog"
	"github.com/lawrencejones/pglake/pkg/sinks/generic"
	"github.com/lawrencejones/pglake/pkg/sinks/lake/codecs"
	pkgerrors "github.com/pkg/errors"
)

const uniqueViolation = "23505"

var _ Catalog = &PostgresCatalog{}

// PostgresCatalog stores the catalog in the pglake schema of a Postgres database, which
// must have been migrated. Branch references are advanced under a row lock, making
// commits to the same branch serialisable across processes.
type PostgresCatalog struct {
	db *sql.DB
}

func NewPostgresCatalog(db *sql.DB) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

func (c *PostgresCatalog) EnsureNamespace(ctx context.Context, namespace string) error {
	var existing []model.Namespaces
	stmt := Namespaces.
		SELECT(Namespaces.AllColumns).
		WHERE(Namespaces.Name.EQ(String(namespace)))

	if err := stmt.QueryContext(ctx, c.db, &existing); err != nil {
		return pkgerrors.Wrap(err, "failed to query namespaces")
	}

	if len(existing) > 0 {
		return nil
	}

	insert := Namespaces.
		INSERT(Namespaces.Name).
		VALUES(namespace)

	// Losing a race to create the namespace still leaves it existing
	if _, err := insert.ExecContext(ctx, c.db); err != nil && !isUniqueViolation(err) {
		return pkgerrors.Wrap(err, "failed to create namespace")
	}

	return nil
}

func (c *PostgresCatalog) GetTable(ctx context.Context, table changelog.Table) (*TableEntry, error) {
	var row model.Tables
	stmt := Tables.
		SELECT(Tables.AllColumns).
		WHERE(
			Tables.Namespace.EQ(String(table.Schema)).
				AND(Tables.Name.EQ(String(table.TableName))),
		)

	if err := stmt.QueryContext(ctx, c.db, &row); err != nil {
		if errors.Is(err, qrm.ErrNoRows) {
			return nil, generic.ErrTableNotFound
		}

		return nil, pkgerrors.Wrap(err, "failed to query tables")
	}

	return deserializeTable(row)
}

func (c *PostgresCatalog) CreateTable(ctx context.Context, entry TableEntry) (*TableEntry, bool, error) {
	schema, err := json.Marshal(entry.Schema)
	if err != nil {
		return nil, false, err
	}

	stmt := Tables.
		INSERT(Tables.Namespace, Tables.Name, Tables.Schema, Tables.Fingerprint, Tables.IngestionColumn, Tables.Location).
		MODEL(model.Tables{
			Namespace:       entry.Namespace,
			Name:            entry.Name,
			Schema:          string(schema),
			Fingerprint:     entry.Schema.GetFingerprint(),
			IngestionColumn: entry.IngestionColumn,
			Location:        entry.Location,
		}).
		RETURNING(Tables.AllColumns)

	var row model.Tables
	if err := stmt.QueryContext(ctx, c.db, &row); err != nil {
		if isUniqueViolation(err) {
			existing, err := c.GetTable(ctx, entry.Table())
			return existing, false, err
		}

		return nil, false, pkgerrors.Wrap(err, "failed to insert table")
	}

	created, err := deserializeTable(row)
	return created, true, err
}

func (c *PostgresCatalog) ListTables(ctx context.Context, namespace string) ([]TableEntry, error) {
	var rows []model.Tables
	stmt := Tables.
		SELECT(Tables.AllColumns).
		WHERE(Tables.Namespace.EQ(String(namespace))).
		ORDER_BY(Tables.Name.ASC())

	if err := stmt.QueryContext(ctx, c.db, &rows); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to query tables")
	}

	entries := make([]TableEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := deserializeTable(row)
		if err != nil {
			return nil, err
		}

		entries = append(entries, *entry)
	}

	return entries, nil
}

func (c *PostgresCatalog) Head(ctx context.Context, tableID int64, branch string) (*Snapshot, error) {
	var row model.Snapshots
	stmt := SELECT(Snapshots.AllColumns).
		FROM(
			Refs.INNER_JOIN(Snapshots, Snapshots.ID.EQ(Refs.SnapshotID)),
		).
		WHERE(
			Refs.TableID.EQ(Int(tableID)).
				AND(Refs.Branch.EQ(String(branch))),
		)

	if err := stmt.QueryContext(ctx, c.db, &row); err != nil {
		if errors.Is(err, qrm.ErrNoRows) {
			return nil, nil
		}

		return nil, pkgerrors.Wrap(err, "failed to query branch head")
	}

	snapshot := deserializeSnapshot(row)
	return &snapshot, nil
}

// Commit locks the branch reference, then compares the locked head with the snapshot's
// parent. A branch with no commits has no row to lock, in which case two first commits
// race to insert the reference and the loser fails on the primary key.
func (c *PostgresCatalog) Commit(ctx context.Context, snapshot Snapshot) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer tx.Rollback()

	var refs []model.Refs
	lockRef := Refs.
		SELECT(Refs.AllColumns).
		WHERE(
			Refs.TableID.EQ(Int(snapshot.TableID)).
				AND(Refs.Branch.EQ(String(snapshot.Branch))),
		).
		FOR(UPDATE())

	if err := lockRef.QueryContext(ctx, tx, &refs); err != nil {
		return pkgerrors.Wrap(err, "failed to lock branch reference")
	}

	var current *uuid.UUID
	if len(refs) > 0 {
		current = &refs[0].SnapshotID
	}

	if !sameSnapshot(current, snapshot.ParentID) {
		return ErrConcurrentCommit
	}

	insertSnapshot := Snapshots.
		INSERT(Snapshots.ID, Snapshots.TableID, Snapshots.ParentID, Snapshots.Branch, Snapshots.Watermark,
			Snapshots.RowCount, Snapshots.DataFile, Snapshots.DataFileBytes, Snapshots.Compression).
		MODEL(model.Snapshots{
			ID:            snapshot.ID,
			TableID:       snapshot.TableID,
			ParentID:      snapshot.ParentID,
			Branch:        snapshot.Branch,
			Watermark:     snapshot.Watermark.UTC(),
			RowCount:      snapshot.Rows,
			DataFile:      snapshot.DataFile,
			DataFileBytes: snapshot.DataFileBytes,
			Compression:   snapshot.Compression.String(),
		})

	if _, err := insertSnapshot.ExecContext(ctx, tx); err != nil {
		return pkgerrors.Wrap(err, "failed to insert snapshot")
	}

	ref := model.Refs{
		TableID:    snapshot.TableID,
		Branch:     snapshot.Branch,
		SnapshotID: snapshot.ID,
		UpdatedAt:  time.Now(),
	}

	if current == nil {
		insertRef := Refs.
			INSERT(Refs.TableID, Refs.Branch, Refs.SnapshotID, Refs.UpdatedAt).
			MODEL(ref)

		if _, err := insertRef.ExecContext(ctx, tx); err != nil {
			if isUniqueViolation(err) {
				return ErrConcurrentCommit
			}

			return pkgerrors.Wrap(err, "failed to create branch reference")
		}
	} else {
		updateRef := Refs.
			UPDATE(Refs.SnapshotID, Refs.UpdatedAt).
			MODEL(ref).
			WHERE(
				Refs.TableID.EQ(Int(snapshot.TableID)).
					AND(Refs.Branch.EQ(String(snapshot.Branch))),
			)

		if _, err := updateRef.ExecContext(ctx, tx); err != nil {
			return pkgerrors.Wrap(err, "failed to advance branch reference")
		}
	}

	return tx.Commit()
}

func (c *PostgresCatalog) History(ctx context.Context, tableID int64, branch string) ([]Snapshot, error) {
	head, err := c.Head(ctx, tableID, branch)
	if err != nil || head == nil {
		return []Snapshot{}, err
	}

	var rows []model.Snapshots
	stmt := Snapshots.
		SELECT(Snapshots.AllColumns).
		WHERE(
			Snapshots.TableID.EQ(Int(tableID)).
				AND(Snapshots.Branch.EQ(String(branch))),
		).
		ORDER_BY(Snapshots.CommittedAt.DESC())

	if err := stmt.QueryContext(ctx, c.db, &rows); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to query snapshots")
	}

	snapshots := make([]Snapshot, 0, len(rows))
	for _, row := range rows {
		snapshots = append(snapshots, deserializeSnapshot(row))
	}

	return walkHistory(&head.ID, snapshots), nil
}

// Close is a no-op, as the database handle is owned by the caller.
func (c *PostgresCatalog) Close() error {
	return nil
}

func deserializeTable(row model.Tables) (*TableEntry, error) {
	var schema changelog.Schema
	if err := json.Unmarshal([]byte(row.Schema), &schema); err != nil {
		return nil, pkgerrors.Wrapf(err, "corrupt schema for table %s.%s", row.Namespace, row.Name)
	}

	return &TableEntry{
		ID:              row.ID,
		Namespace:       row.Namespace,
		Name:            row.Name,
		Schema:          schema,
		IngestionColumn: row.IngestionColumn,
		Location:        row.Location,
		CreatedAt:       row.CreatedAt,
	}, nil
}

func deserializeSnapshot(row model.Snapshots) Snapshot {
	return Snapshot{
		ID:            row.ID,
		TableID:       row.TableID,
		ParentID:      row.ParentID,
		Branch:        row.Branch,
		Watermark:     row.Watermark.UTC(),
		Rows:          row.RowCount,
		DataFile:      row.DataFile,
		DataFileBytes: row.DataFileBytes,
		Compression:   codecs.Codec(row.Compression),
		CommittedAt:   row.CommittedAt,
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

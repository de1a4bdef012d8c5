package lake

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lawrencejones/pglake/pkg/changelog"
	"github.com/lawrencejones/pglake/pkg/sinks/lake/codecs"
)

// ErrConcurrentCommit is returned when another writer advanced the branch between reading
// its head and committing a new snapshot.
var ErrConcurrentCommit = errors.New("branch was advanced by a concurrent commit")

// Catalog tracks lake tables and their snapshot history. Data files live in the
// warehouse, and the catalog is the only record of which files make up each version of a
// table.
type Catalog interface {
	// EnsureNamespace creates the namespace if it does not already exist
	EnsureNamespace(ctx context.Context, namespace string) error

	// GetTable returns generic.ErrTableNotFound if the table was never created
	GetTable(ctx context.Context, table changelog.Table) (*TableEntry, error)

	// CreateTable registers a table, or returns the existing entry with created false
	CreateTable(ctx context.Context, entry TableEntry) (_ *TableEntry, created bool, err error)

	// ListTables returns every table in the namespace, ordered by name
	ListTables(ctx context.Context, namespace string) ([]TableEntry, error)

	// Head returns the snapshot the branch points at, or nil for a branch that has no
	// commits
	Head(ctx context.Context, tableID int64, branch string) (*Snapshot, error)

	// Commit inserts the snapshot and moves its branch to point at it, provided the
	// branch still points at the snapshot's parent. Otherwise nothing is written and
	// ErrConcurrentCommit is returned.
	Commit(ctx context.Context, snapshot Snapshot) error

	// History walks the branch from its head, returning snapshots newest first
	History(ctx context.Context, tableID int64, branch string) ([]Snapshot, error)

	Close() error
}

// TableEntry is a table registered in the catalog. The schema is frozen at creation.
type TableEntry struct {
	ID              int64
	Namespace       string
	Name            string
	Schema          changelog.Schema
	IngestionColumn string
	Location        string // warehouse path prefix for data files
	CreatedAt       time.Time
}

func (e TableEntry) Table() changelog.Table {
	return changelog.Table{Schema: e.Namespace, TableName: e.Name}
}

// Snapshot is one immutable version of a table on a branch, adding exactly the rows of
// its data file to the version of its parent.
type Snapshot struct {
	ID            uuid.UUID
	TableID       int64
	ParentID      *uuid.UUID // nil for the first snapshot on a branch
	Branch        string
	Watermark     time.Time // ingestion time of every row in the data file
	Rows          int64
	DataFile      string // warehouse path
	DataFileBytes int64
	Compression   codecs.Codec
	CommittedAt   time.Time
}

// walkHistory orders snapshots by following parent links from the head, ignoring any
// snapshot not reachable from it.
func walkHistory(head *uuid.UUID, snapshots []Snapshot) []Snapshot {
	byID := make(map[uuid.UUID]Snapshot, len(snapshots))
	for _, snapshot := range snapshots {
		byID[snapshot.ID] = snapshot
	}

	history := []Snapshot{}
	for cursor := head; cursor != nil; {
		snapshot, ok := byID[*cursor]
		if !ok {
			break
		}

		history = append(history, snapshot)
		cursor = snapshot.ParentID
	}

	return history
}

func sameSnapshot(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	return *a == *b
}

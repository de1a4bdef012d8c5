package generic

import (
	"context"
	"errors"
	"time"

	"github.com/lawrencejones/pglake/pkg/changelog"
)

var (
	// ErrTableNotFound is returned when reading from a destination table that has never
	// been created. Callers use this to distinguish a table that was never synced from a
	// destination that cannot be read.
	ErrTableNotFound = errors.New("destination table not found")

	// ErrSchemaMismatch is returned when appending a batch whose columns differ from the
	// schema the destination table was created with.
	ErrSchemaMismatch = errors.New("batch schema does not match destination table")
)

// Destination is a versioned, append-only table store. Each successful Append creates a
// new immutable version of the table containing exactly the rows of the batch.
type Destination interface {
	// TableExists is a pure existence check, and never creates anything
	TableExists(ctx context.Context, table changelog.Table) (bool, error)

	// EnsureNamespace creates the namespace if it does not exist, and is safe to call
	// repeatedly
	EnsureNamespace(ctx context.Context, namespace string) error

	// CreateTableIfNotExists creates a table with the given schema, freezing it. Returns
	// whether a table was created, which is false when the table already existed.
	CreateTableIfNotExists(ctx context.Context, table changelog.Table, schema changelog.Schema) (created bool, err error)

	// Watermark returns the maximum ingestion time committed to the table, or nil if
	// nothing has been committed. Returns ErrTableNotFound if the table does not exist.
	Watermark(ctx context.Context, table changelog.Table, ingestionColumn string) (*time.Time, error)

	// Append commits the stamped batch as one new version of the table. Either the whole
	// batch becomes visible or none of it does.
	Append(ctx context.Context, table changelog.Table, batch changelog.Batch) (Commit, error)

	// Close releases any connections held by the destination
	Close() error
}

// Commit describes a successful append.
type Commit struct {
	Table     changelog.Table
	Snapshot  string    // destination specific version identifier
	Rows      int       // number of rows appended
	Watermark time.Time // ingestion time of the appended batch
}

// ValidateBatch checks a batch is safe to append. Destinations call this before doing any
// work, as appending an unstamped or empty batch would corrupt the watermark.
func ValidateBatch(batch changelog.Batch) error {
	if batch.Empty() {
		return errors.New("refusing to append empty batch")
	}

	if !batch.Stamped() {
		return errors.New("refusing to append batch without ingestion timestamp")
	}

	return nil
}

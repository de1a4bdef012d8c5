package changelog

import (
	"fmt"
	"time"

	"github.com/jackc/pgtype"
	"github.com/lawrencejones/pglake/pkg/decode"
)

// Row is a single source row, keyed by column name, with values in Golang native types.
type Row map[string]interface{}

// Batch is the set of rows extracted from one table in one sync cycle, ordered by the
// change column. It lives only for the duration of the cycle.
type Batch struct {
	Schema          Schema    // shape of every row
	Rows            []Row     // rows, ordered by change column
	ExtractedAt     time.Time // source transaction time of the extraction query
	IngestedAt      time.Time // zero until stamped
	IngestionColumn string    // set when stamped
}

func (b Batch) Len() int {
	return len(b.Rows)
}

func (b Batch) Empty() bool {
	return len(b.Rows) == 0
}

func (b Batch) Stamped() bool {
	return !b.IngestedAt.IsZero()
}

// Stamp returns a copy of the batch with the ingestion column set to the same timestamp
// on every row, and added to the schema. A batch can only be stamped once, and the source
// table must not already have a column of the same name.
func (b Batch) Stamp(column string, at time.Time) (Batch, error) {
	if b.Stamped() {
		return b, fmt.Errorf("batch for %s already stamped at %s", b.Schema, b.IngestedAt)
	}

	if _, exists := b.Schema.Column(column); exists {
		return b, fmt.Errorf("table %s already has a column named %q", b.Schema, column)
	}

	if at.IsZero() {
		return b, fmt.Errorf("cannot stamp batch for %s with zero timestamp", b.Schema)
	}

	at = at.UTC()
	rows := make([]Row, len(b.Rows))
	for idx, row := range b.Rows {
		stamped := make(Row, len(row)+1)
		for key, value := range row {
			stamped[key] = value
		}
		stamped[column] = at
		rows[idx] = stamped
	}

	b.Rows = rows
	b.IngestedAt = at
	b.IngestionColumn = column
	b.Schema = b.Schema.WithColumn(Column{
		Name: column,
		Type: pgtype.TimestamptzOID,
		Kind: decode.KindTimestamp,
	})

	return b, nil
}

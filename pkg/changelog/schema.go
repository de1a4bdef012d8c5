package changelog

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/lawrencejones/pglake/pkg/decode"
)

// Schema defines the structure of data pulled from Postgres. It is built from the Postgres
// catalog when extracting a batch, and frozen by destinations when they first create a
// table.
type Schema struct {
	Namespace string   `json:"namespace"` // Postgres schema
	Name      string   `json:"name"`      // Postgres table name
	Columns   []Column `json:"columns"`   // ordered as they appear in the table
}

// Column describes a single field of every row in a batch.
type Column struct {
	Name string      `json:"name"`
	Type uint32      `json:"type"` // Postgres type OID in the source table
	Kind decode.Kind `json:"kind"` // type family of values in the batch
}

func (s Schema) Table() Table {
	return Table{Schema: s.Namespace, TableName: s.Name}
}

func (s Schema) String() string {
	return s.Table().String()
}

// Column finds a column by name.
func (s Schema) Column(name string) (Column, bool) {
	for _, column := range s.Columns {
		if column.Name == name {
			return column, true
		}
	}

	return Column{}, false
}

func (s Schema) ColumnNames() []string {
	names := make([]string, 0, len(s.Columns))
	for _, column := range s.Columns {
		names = append(names, column.Name)
	}

	return names
}

// WithColumn returns a copy of the schema with the column appended. The receiver is left
// untouched, as schemas are shared between batches and destinations.
func (s Schema) WithColumn(column Column) Schema {
	columns := make([]Column, 0, len(s.Columns)+1)
	columns = append(columns, s.Columns...)
	s.Columns = append(columns, column)

	return s
}

// GetFingerprint returns a unique idenfier for the shape of the schema. Two schemas with
// the same fingerprint produce rows that can be appended to the same destination table.
func (s Schema) GetFingerprint() string {
	h := md5.New()
	for _, column := range s.Columns {
		fmt.Fprintf(h, "%v|%v\n", column.Name, column.Kind)
	}
	return hex.EncodeToString(h.Sum(nil))
}

package source

import (
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/lawrencejones/pglake/pkg/changelog"
	"github.com/lawrencejones/pglake/pkg/decode"
)

// deltaQuery is a prepared extraction, binding each selected column to the mapping used
// to decode it.
type deltaQuery struct {
	SQL      string
	Args     []interface{}
	Mappings []decode.TypeMapping
}

// buildDeltaQuery selects every column of the schema, restricted to rows whose change
// column is strictly after the watermark, ordered by the change column. Without a
// watermark, every row is selected. Columns with no decoder mapping are cast to text.
func buildDeltaQuery(decoder decode.Decoder, schema changelog.Schema, changeColumn string, watermark *time.Time) (*deltaQuery, error) {
	change, ok := schema.Column(changeColumn)
	if !ok {
		return nil, fmt.Errorf("table %s has no change column %q", schema, changeColumn)
	}

	if !change.Kind.Temporal() {
		return nil, fmt.Errorf("change column %q of %s has type %s, which is not a timestamp or date",
			changeColumn, schema, decode.GetTypeName(change.Type))
	}

	query := &deltaQuery{}
	selects := make([]string, 0, len(schema.Columns))
	for _, column := range schema.Columns {
		identifier := pgx.Identifier{column.Name}.Sanitize()

		mapping, err := decoder.MappingFor(column.Type)
		if err != nil {
			mapping = decode.TextMapping
			identifier = fmt.Sprintf("%s::text as %s", identifier, identifier)
		}

		selects = append(selects, identifier)
		query.Mappings = append(query.Mappings, mapping)
	}

	changeIdentifier := pgx.Identifier{changeColumn}.Sanitize()
	query.SQL = fmt.Sprintf("select %s from %s",
		strings.Join(selects, ", "), pgx.Identifier{schema.Namespace, schema.Name}.Sanitize())

	if watermark != nil {
		query.SQL = fmt.Sprintf("%s where %s > $1::timestamptz", query.SQL, changeIdentifier)
		query.Args = []interface{}{*watermark}
	}

	query.SQL = fmt.Sprintf("%s order by %s;", query.SQL, changeIdentifier)

	return query, nil
}

// countQuery converts a delta query into one that counts the rows it would return.
func buildCountQuery(schema changelog.Schema, changeColumn string, watermark *time.Time) (string, []interface{}) {
	query := fmt.Sprintf("select count(*) from %s", pgx.Identifier{schema.Namespace, schema.Name}.Sanitize())
	if watermark == nil {
		return query + ";", nil
	}

	return fmt.Sprintf("%s where %s > $1::timestamptz;", query, pgx.Identifier{changeColumn}.Sanitize()),
		[]interface{}{*watermark}
}

// decodeRows scans every row of the result into Golang native types.
func decodeRows(rows pgx.Rows, schema changelog.Schema, mappings []decode.TypeMapping) ([]changelog.Row, error) {
	result := []changelog.Row{}
	for rows.Next() {
		scanners := make([]interface{}, len(mappings))
		for idx, mapping := range mappings {
			scanners[idx] = mapping.NewScanner()
		}

		if err := rows.Scan(scanners...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(changelog.Row, len(mappings))
		for idx, mapping := range mappings {
			value, err := mapping.Decode(scanners[idx].(decode.Scanner))
			if err != nil {
				return nil, fmt.Errorf("failed to decode column %s: %w", schema.Columns[idx].Name, err)
			}

			row[schema.Columns[idx].Name] = value
		}

		result = append(result, row)
	}

	return result, rows.Err()
}

package source

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/lawrencejones/pglake/pkg/changelog"
	"github.com/lawrencejones/pglake/pkg/decode"
	"go.opencensus.io/trace"
)

// querier allows each helper to accept either transaction or connection objects
type querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// ListTables returns every ordinary table in the namespace, ordered by name. Views and
// foreign tables are ignored, as we can't rely on them having a change column.
func ListTables(ctx context.Context, conn querier, namespace string) (changelog.Tables, error) {
	ctx, span := trace.StartSpan(ctx, "pkg/source.ListTables")
	defer span.End()

	query := `
	select table_schema, table_name
	  from information_schema.tables
	 where table_schema = $1
	   and table_type = 'BASE TABLE'
	 order by table_name;
	`

	rows, err := conn.Query(ctx, query, namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables in %s: %w", namespace, err)
	}

	defer rows.Close()

	tables := changelog.Tables{}
	for rows.Next() {
		var table changelog.Table
		if err := rows.Scan(&table.Schema, &table.TableName); err != nil {
			return nil, err
		}

		tables = append(tables, table)
	}

	return tables, rows.Err()
}

// BuildSchema generates a Schema by querying the Postgres catalog. Columns whose type has
// no decoder mapping are given the string kind, as the extractor reads them as text.
func BuildSchema(ctx context.Context, conn querier, decoder decode.Decoder, table changelog.Table) (changelog.Schema, error) {
	ctx, span := trace.StartSpan(ctx, "pkg/source.BuildSchema")
	defer span.End()

	schema := changelog.Schema{Namespace: table.Schema, Name: table.TableName}

	// Eg. name = id, type = 20
	query := `
	select attname as name
	     , atttypid as type
	  from pg_attribute
	 where attrelid = $1::text::regclass and attnum > 0 and not attisdropped
	 order by attnum;
	`

	rows, err := conn.Query(ctx, query, pgx.Identifier{table.Schema, table.TableName}.Sanitize())
	if err != nil {
		return schema, fmt.Errorf("failed to query pg_attribute for %s columns: %w", table, err)
	}

	defer rows.Close()

	for rows.Next() {
		column := changelog.Column{}
		if err := rows.Scan(&column.Name, &column.Type); err != nil {
			return schema, err
		}

		column.Kind = decode.TextMapping.Kind
		if mapping, err := decoder.MappingFor(column.Type); err == nil {
			column.Kind = mapping.Kind
		}

		schema.Columns = append(schema.Columns, column)
	}

	if err := rows.Err(); err != nil {
		return schema, err
	}

	if len(schema.Columns) == 0 {
		return schema, fmt.Errorf("table %s has no columns", table)
	}

	return schema, nil
}

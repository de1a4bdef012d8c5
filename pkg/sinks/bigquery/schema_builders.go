package bigquery

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/lawrencejones/pglake/pkg/changelog"

	bq "cloud.google.com/go/bigquery"
	"github.com/alecthomas/template"
)

// buildTable generates BigQuery table metadata from a stamped batch schema. Tables are
// partitioned by the ingestion column, which is the only required field.
//
// {
//    id: 1,
//    ...,
//    ingestion_timestamp: "2021-03-01 09:15:00+00:00",
// }
func buildTable(tableName string, schema changelog.Schema, ingestionColumn string) (*bq.TableMetadata, error) {
	if _, ok := schema.Column(ingestionColumn); !ok {
		return nil, fmt.Errorf("schema for %s is missing ingestion column %s", tableName, ingestionColumn)
	}

	fields, err := buildSchema(schema, ingestionColumn)
	if err != nil {
		return nil, err
	}

	md := &bq.TableMetadata{
		Name:        tableName,
		Description: fmt.Sprintf("Synced from Postgres table %s", schema),
		Schema:      fields,
		TimePartitioning: &bq.TimePartitioning{
			Field: ingestionColumn,
		},
	}

	return md, nil
}

func buildSchema(schema changelog.Schema, ingestionColumn string) (bq.Schema, error) {
	fields := bq.Schema{}
	for _, column := range schema.Columns {
		externalType, repeated, err := fieldTypeFor(column.Kind)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", column.Name, err)
		}

		fieldSchema := &bq.FieldSchema{
			Name:     column.Name,
			Type:     externalType,
			Repeated: repeated,
			Required: column.Name == ingestionColumn,
		}

		if fieldSchema.Required {
			fieldSchema.Description = "Time at which the row was ingested"
		}

		fields = append(fields, fieldSchema)
	}

	// Sort the schema columns just in case BigQuery is sensitive to column order
	sort.Slice(fields, func(i, j int) bool {
		return fields[i].Name < fields[j].Name
	})

	return fields, nil
}

// schemaMatches compares field names and types, ignoring order and descriptions. Tables
// are never altered after creation, so any difference means the source has changed shape.
func schemaMatches(existing, expected bq.Schema) bool {
	if len(existing) != len(expected) {
		return false
	}

	byName := map[string]*bq.FieldSchema{}
	for _, field := range existing {
		byName[field.Name] = field
	}

	for _, field := range expected {
		match, ok := byName[field.Name]
		if !ok || match.Type != field.Type || match.Repeated != field.Repeated {
			return false
		}
	}

	return true
}

// buildWatermarkQuery selects the most recent ingestion time from a table. We expect
// tableName to be in projectID:datasetID.tableID form.
func buildWatermarkQuery(tableName, ingestionColumn string) (string, error) {
	var buffer bytes.Buffer
	err := watermarkQueryTemplate.Execute(
		&buffer, struct {
			EscapedTableIdentifier string
			EscapedIngestionColumn string
		}{
			fmt.Sprintf("`%s`", strings.Replace(tableName, ":", ".", 1)),
			fmt.Sprintf("`%s`", ingestionColumn),
		},
	)

	return buffer.String(), err
}

var watermarkQueryTemplate = template.Must(template.New("watermark_query_template").Parse(
	`select max({{ .EscapedIngestionColumn }}) as watermark
from {{ .EscapedTableIdentifier }}
`))

package bigquery

import (
	"fmt"

	"github.com/lawrencejones/pglake/pkg/decode"

	bq "cloud.google.com/go/bigquery"
)

// fieldTypeFor maps the kind of decoded values to BigQuery types, allowing us to build
// BigQuery schemas from Postgres type information.
func fieldTypeFor(kind decode.Kind) (fieldType bq.FieldType, repeated bool, err error) {
	switch kind {
	case decode.KindBoolean:
		return bq.BooleanFieldType, false, nil
	case decode.KindInteger:
		return bq.IntegerFieldType, false, nil
	case decode.KindFloat:
		return bq.FloatFieldType, false, nil
	case decode.KindTimestamp:
		return bq.TimestampFieldType, false, nil
	case decode.KindDate:
		return bq.DateFieldType, false, nil
	case decode.KindString, decode.KindJSON:
		return bq.StringFieldType, false, nil
	case decode.KindBytes:
		return bq.BytesFieldType, false, nil
	}

	// All types that follow must be repeated
	repeated = true

	switch kind {
	case decode.KindStringArray:
		return bq.StringFieldType, repeated, nil
	case decode.KindIntegerArray:
		return bq.IntegerFieldType, repeated, nil
	}

	return "", false, fmt.Errorf("no BigQuery field for kind %q", kind)
}

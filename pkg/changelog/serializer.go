package changelog

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/lawrencejones/pglake/pkg/decode"
)

const DateFormat = "2006-01-02"

// Serializer converts rows to and from the bytes stored in destination data files. Rows
// are serialized against a schema so values can be restored to their Golang types.
type Serializer interface {
	Marshal(Schema, Row) ([]byte, error)
	Unmarshal(Schema, []byte) (Row, error)
}

// DefaultSerializer is used for data files unless otherwise configured.
var DefaultSerializer Serializer = JSONSerializer{}

// JSONSerializer encodes each row as a single JSON object, suitable for newline delimited
// JSON files. Timestamps are written in RFC3339 UTC, and dates without a time component.
// Non-finite floats have no JSON number form, so they are written as the strings NaN,
// Infinity and -Infinity, which BigQuery also accepts for FLOAT64.
type JSONSerializer struct{}

func (s JSONSerializer) Marshal(schema Schema, row Row) ([]byte, error) {
	output := make(map[string]interface{}, len(row))
	for _, column := range schema.Columns {
		value, ok := row[column.Name]
		if !ok || value == nil {
			output[column.Name] = nil
			continue
		}

		switch column.Kind {
		case decode.KindTimestamp:
			ts, ok := value.(time.Time)
			if !ok {
				return nil, fmt.Errorf("column %s: expected time.Time, got %T", column.Name, value)
			}
			output[column.Name] = ts.UTC().Format(time.RFC3339Nano)
		case decode.KindDate:
			ts, ok := value.(time.Time)
			if !ok {
				return nil, fmt.Errorf("column %s: expected time.Time, got %T", column.Name, value)
			}
			output[column.Name] = ts.Format(DateFormat)
		case decode.KindFloat:
			output[column.Name] = marshalFloat(value)
		default:
			output[column.Name] = value
		}
	}

	return json.Marshal(output)
}

func (s JSONSerializer) Unmarshal(schema Schema, data []byte) (Row, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var raw map[string]interface{}
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode row: %w", err)
	}

	row := Row{}
	for _, column := range schema.Columns {
		value, ok := raw[column.Name]
		if !ok || value == nil {
			row[column.Name] = nil
			continue
		}

		parsed, err := parseKind(column.Kind, value)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", column.Name, err)
		}

		row[column.Name] = parsed
	}

	return row, nil
}

func parseKind(kind decode.Kind, value interface{}) (interface{}, error) {
	switch kind {
	case decode.KindInteger:
		number, ok := value.(json.Number)
		if !ok {
			return nil, fmt.Errorf("expected number, got %T", value)
		}
		return number.Int64()
	case decode.KindFloat:
		switch value {
		case "NaN":
			return math.NaN(), nil
		case "Infinity":
			return math.Inf(1), nil
		case "-Infinity":
			return math.Inf(-1), nil
		}
		number, ok := value.(json.Number)
		if !ok {
			return nil, fmt.Errorf("expected number, got %T", value)
		}
		return number.Float64()
	case decode.KindTimestamp:
		return parseTime(time.RFC3339Nano, value)
	case decode.KindDate:
		return parseTime(DateFormat, value)
	case decode.KindBytes:
		str, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected base64 string, got %T", value)
		}
		return base64.StdEncoding.DecodeString(str)
	case decode.KindStringArray:
		elements, ok := value.([]interface{})
		if !ok {
			return nil, fmt.Errorf("expected array, got %T", value)
		}
		result := make([]string, 0, len(elements))
		for _, element := range elements {
			str, ok := element.(string)
			if !ok {
				return nil, fmt.Errorf("expected string element, got %T", element)
			}
			result = append(result, str)
		}
		return result, nil
	case decode.KindIntegerArray:
		elements, ok := value.([]interface{})
		if !ok {
			return nil, fmt.Errorf("expected array, got %T", value)
		}
		result := make([]int64, 0, len(elements))
		for _, element := range elements {
			number, ok := element.(json.Number)
			if !ok {
				return nil, fmt.Errorf("expected number element, got %T", element)
			}
			integer, err := number.Int64()
			if err != nil {
				return nil, err
			}
			result = append(result, integer)
		}
		return result, nil
	}

	// Booleans, strings and JSON text decode to the right type already
	return value, nil
}

func marshalFloat(value interface{}) interface{} {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	default:
		return value
	}

	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}

	return value
}

func parseTime(layout string, value interface{}) (time.Time, error) {
	str, ok := value.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("expected string, got %T", value)
	}

	return time.Parse(layout, str)
}

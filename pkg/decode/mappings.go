package decode

import (
	"time"

	"github.com/jackc/pgtype"
)

// Cached connection info, used to lookup Postgres OID type names
var ci *pgtype.ConnInfo

func init() {
	ci = pgtype.NewConnInfo()
}

// GetTypeName attempts to find the type name given the Postgres OID. Very inefficient,
// and intended to be used for debugging only.
func GetTypeName(oid uint32) string {
	dt, found := ci.DataTypeForOID(oid)
	if !found {
		return "unrecognised"
	}

	return dt.Name
}

// MaxTime and MinTime stand in for Postgres infinity and -infinity. They are the bounds
// of a BigQuery TIMESTAMP, so every destination accepts them.
var (
	MaxTime = time.Date(9999, 12, 31, 23, 59, 59, 999999000, time.UTC)
	MinTime = time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
)

// TextMapping is used for any column whose type has no mapping. The extractor casts such
// columns to text in the delta query, so they always arrive as strings.
var TextMapping = TypeMapping{pgtype.TextOID, &pgtype.Text{}, "", KindString}

// Mappings are set on each of the decoders, and exposed to allow tests to run against the
// mapping configuration.
var Mappings = []TypeMapping{
	// Primitive types
	{pgtype.BoolOID, &pgtype.Bool{}, true, KindBoolean},
	{pgtype.Int8OID, &pgtype.Int8{}, int64(0), KindInteger},
	{pgtype.Int2OID, &pgtype.Int2{}, int16(0), KindInteger},
	{pgtype.Int4OID, &pgtype.Int4{}, int32(0), KindInteger},
	{pgtype.Float4OID, &pgtype.Float4{}, float32(0.0), KindFloat},
	{pgtype.Float8OID, &pgtype.Float8{}, float64(0.0), KindFloat},
	// Numerics lose precision beyond float64, which is fine for the analytical copy
	{pgtype.NumericOID, &pgtype.Numeric{}, float64(0.0), KindFloat},
	{pgtype.TimestampOID, &pgtype.Timestamp{}, time.Time{}, KindTimestamp},
	{pgtype.TimestamptzOID, &pgtype.Timestamptz{}, time.Time{}, KindTimestamp},
	{pgtype.DateOID, &pgtype.Date{}, time.Time{}, KindDate},
	// Text types
	{pgtype.VarcharOID, &pgtype.Varchar{}, "", KindString},
	{pgtype.TextOID, &pgtype.Text{}, "", KindString},
	{pgtype.BPCharOID, &pgtype.BPChar{}, "", KindString},
	{pgtype.UUIDOID, &pgtype.UUID{}, "", KindString},
	{pgtype.ByteaOID, &pgtype.Bytea{}, []byte{}, KindBytes},
	{pgtype.JSONOID, &pgtype.JSON{}, "", KindJSON},
	{pgtype.JSONBOID, &pgtype.JSONB{}, "", KindJSON},
	// Complex types
	{pgtype.TextArrayOID, &pgtype.TextArray{}, []string{}, KindStringArray},
	{pgtype.VarcharArrayOID, &pgtype.VarcharArray{}, []string{}, KindStringArray},
	{pgtype.Int8ArrayOID, &pgtype.Int8Array{}, []int64{}, KindIntegerArray},
}

func EachMapping(do func(name string, mapping TypeMapping)) {
	for _, mapping := range Mappings {
		do(GetTypeName(mapping.OID), mapping)
	}
}

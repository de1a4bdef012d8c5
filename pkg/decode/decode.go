// Implements decoding of Postgres types into Golang, using mappings built on pgtype.
//
// The Decoder provides consistent scanners across pglake components, ensuring the delta
// extractor decodes Postgres values into the same types that destinations serialize.
package decode

import (
	"fmt"
	"reflect"

	"github.com/jackc/pgtype"
)

type Decoder interface {
	MappingFor(oid uint32) (TypeMapping, error)
	ScannerFor(oid uint32) (scanner Scanner, dest interface{}, err error)
}

// UnregisteredType is returned whenever we see a Postgres OID that has no associated type
// mapping. How we handle this depends on the caller.
type UnregisteredType struct {
	OID uint32
}

func (e *UnregisteredType) Error() string {
	return fmt.Sprintf("decoder has no type mapping for Postgres OID '%v'", e.OID)
}

func NewDecoder(mappings []TypeMapping) Decoder {
	return &decoder{
		mappings: mappings,
	}
}

type decoder struct {
	mappings []TypeMapping
}

func (d *decoder) MappingFor(oid uint32) (TypeMapping, error) {
	for _, mapping := range d.mappings {
		if oid == mapping.OID {
			return mapping, nil
		}
	}

	return TypeMapping{}, &UnregisteredType{oid}
}

func (d *decoder) ScannerFor(oid uint32) (scanner Scanner, dest interface{}, err error) {
	mapping, err := d.MappingFor(oid)
	if err != nil {
		return nil, nil, err
	}

	return mapping.NewScanner(), mapping.NewEmpty(), nil
}

// Kind is the destination-facing family of a Postgres type. Destinations build their
// column types from the kind, never from the Postgres OID, so that any type we fall back
// to reading as text is typed as a string downstream.
type Kind string

const (
	KindBoolean      Kind = "boolean"
	KindInteger      Kind = "integer"
	KindFloat        Kind = "float"
	KindTimestamp    Kind = "timestamp"
	KindDate         Kind = "date"
	KindString       Kind = "string"
	KindBytes        Kind = "bytes"
	KindJSON         Kind = "json"
	KindStringArray  Kind = "string_array"
	KindIntegerArray Kind = "integer_array"
)

// Temporal is true for kinds that can act as a change column.
func (k Kind) Temporal() bool {
	return k == KindTimestamp || k == KindDate
}

// Repeated is true for array kinds.
func (k Kind) Repeated() bool {
	return k == KindStringArray || k == KindIntegerArray
}

// TypeMapping binds a Postgres type, denoted by the oid, to a Golang type. It is used as
// a database scanner, but with a restricted interface that ensures Get()ing the scanned
// value can return only the type allowed by this mapping.
type TypeMapping struct {
	OID     uint32      // Postgres type OID
	Scanner Scanner     // scanner for parsing type from database
	Empty   interface{} // Golang empty type produced by the scanner
	Kind    Kind        // destination type family
}

// NewScanner initialises a new scanner, using the mapping Scanner as a template
func (t TypeMapping) NewScanner() Scanner {
	return reflect.New(reflect.TypeOf(t.Scanner).Elem()).Interface().(Scanner)
}

// NewEmpty allocates a new destination for a given type-mapping. This can be used with
// the scanner's AssignTo method to construct results of the correct type.
//
// It will return a handle to the exact type of Empty. This means something like a string
// will be given as a *string, likewise with *[]string, etc.
func (t TypeMapping) NewEmpty() interface{} {
	return reflect.New(reflect.TypeOf(t.Empty)).Interface()
}

// Decode pulls the Golang native value out of a scanner that has been populated by a
// database scan. NULLs are returned as nil.
//
// Infinite timestamps and dates have no time.Time equivalent, so they decode to MaxTime
// and MinTime.
func (t TypeMapping) Decode(scanner Scanner) (interface{}, error) {
	value := scanner.Get()
	if value == nil {
		return nil, nil
	}

	if modifier, ok := value.(pgtype.InfinityModifier); ok && (t.Kind == KindTimestamp || t.Kind == KindDate) {
		if modifier == pgtype.NegativeInfinity {
			return MinTime, nil
		}

		return MaxTime, nil
	}

	dest := t.NewEmpty()
	if err := scanner.AssignTo(dest); err != nil {
		return nil, fmt.Errorf("failed to assign %T to %T: %w", scanner, dest, err)
	}

	return reflect.ValueOf(dest).Elem().Interface(), nil
}

// Scanner defines what pgtypes must support to be included in the decoder. It is used to
// filter available types in the generation of mappings.
type Scanner interface {
	// Scan satisfies the sql.Scanner interface, allowing us to pass instances to sql.DB
	// method calls
	Scan(src interface{}) error

	// Value is the common interface to all the pgtype constructs
	pgtype.Value
}

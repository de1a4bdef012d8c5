package changelog

import (
	"fmt"
	"strings"
)

// Table uniquely identifies a table, by both schema and table name. The same type is used
// for Postgres tables and destination tables, where schema is the destination namespace.
type Table struct {
	Schema    string `json:"schema"`
	TableName string `json:"table_name"`
}

// ParseTable splits a <schema>.<table> reference. References without a schema are
// rejected, as we never want to guess which namespace a table lives in.
func ParseTable(reference string) (Table, error) {
	elements := strings.SplitN(reference, ".", 2)
	if len(elements) != 2 || elements[0] == "" || elements[1] == "" {
		return Table{}, fmt.Errorf("invalid <schema>.<table> reference: %q", reference)
	}

	return Table{Schema: elements[0], TableName: elements[1]}, nil
}

func (t Table) String() string {
	return fmt.Sprintf("%s.%s", t.Schema, t.TableName)
}

type Tables []Table

func (s1 Tables) Diff(s2 Tables) Tables {
	result := make([]Table, 0)
	for _, s := range s1 {
		if !s2.Includes(s) {
			result = append(result, s)
		}
	}

	return result
}

func (ss Tables) Includes(s Table) bool {
	for _, existing := range ss {
		if existing.Schema == s.Schema && existing.TableName == s.TableName {
			return true
		}
	}

	return false
}

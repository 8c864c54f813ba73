// Package ddl defines a small, backend-agnostic model for the relations the
// ingestion pipeline creates. Backends render it to their own dialect; this
// package never emits SQL.
package ddl

import (
	"fmt"
	"strings"
)

// Type is a logical column type. Backends map it to a concrete SQL type.
type Type int

const (
	// Text is the uniform representation of staged and materialized fields.
	Text Type = iota
	// Integer is used by the persisted dictionary relation.
	Integer
)

func (t Type) String() string {
	switch t {
	case Integer:
		return "integer"
	default:
		return "text"
	}
}

// ColumnDef describes a single column.
//
// Name is the logical, unquoted name; quoting happens at render time inside
// each backend.
type ColumnDef struct {
	Name     string
	Type     Type
	Nullable bool
}

// TableDef holds the relation name (optionally schema-qualified, e.g.
// "public.pnad_dict") and its ordered columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// ColumnNames returns the column names in declaration order.
func (t TableDef) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Validate checks the definition can be rendered by any backend: a non-empty
// name, at least one column, and unique non-empty column names.
func (t TableDef) Validate() error {
	if strings.TrimSpace(t.FQN) == "" {
		return fmt.Errorf("ddl: table name must not be empty")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("ddl: table %s: at least one column is required", t.FQN)
	}
	seen := make(map[string]struct{}, len(t.Columns))
	for i, c := range t.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("ddl: table %s: column %d has an empty name", t.FQN, i+1)
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("ddl: table %s: duplicate column %q", t.FQN, c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	return nil
}

// TextTable builds a relation whose columns are all nullable text, in the
// given order. It is the second half of the two-phase schema contract: the
// caller computes the ordered names first, then hands them here.
func TextTable(fqn string, columns []string) TableDef {
	cols := make([]ColumnDef, len(columns))
	for i, name := range columns {
		cols[i] = ColumnDef{Name: name, Type: Text, Nullable: true}
	}
	return TableDef{FQN: fqn, Columns: cols}
}

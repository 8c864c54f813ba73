// Package storage contains the storage-agnostic contracts used by every
// ingestion stage, a kind-keyed factory for the concrete backends, and the
// batched staging loader.
package storage

import (
	"context"
	"fmt"

	"fwingest/internal/ddl"
	"fwingest/internal/dictionary"
	"fwingest/internal/etlerr"
)

// ErrTableNotFound is returned (wrapped) when a relation the caller expects
// to read does not exist.
var ErrTableNotFound = fmt.Errorf("relation %w", etlerr.ErrNotFound)

// Config selects and configures a backend.
type Config struct {
	Kind string // "postgres", "sqlite", "mssql"
	DSN  string
}

// Repository is the persistence surface shared by all backends. Every
// mutating method is transactional: on error the relation is left as it was
// before the call.
type Repository interface {
	// ReplaceTable drops def.FQN if present, creates it from def and inserts
	// rows (aligned to def's column order), all in one transaction.
	ReplaceTable(ctx context.Context, def ddl.TableDef, rows [][]any) (int64, error)

	// CopyFrom appends rows to an existing table.
	CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// Columns returns the column names of table in declaration order.
	Columns(ctx context.Context, table string) ([]string, error)

	// ReadDictionary returns the persisted dictionary ordered by column index.
	ReadDictionary(ctx context.Context, table string) ([]dictionary.Entry, error)

	// ReadLayout returns the layout recorded in a staging layout relation.
	// ok is false when the relation exists but holds no row.
	ReadLayout(ctx context.Context, table string) (layout StagingLayout, ok bool, err error)

	// Project empties p.Target and fills it from p.Staging in one transaction.
	Project(ctx context.Context, p Projection) (ProjectResult, error)

	Close()
}

// ColumnPair copies staging column Source into target column Target.
type ColumnPair struct {
	Source string
	Target string
}

// Projection describes one INSERT ... SELECT from the staging relation into
// the materialized target.
type Projection struct {
	Staging string
	Target  string
	Pairs   []ColumnPair
}

// Sources returns the staging column names in pair order.
func (p Projection) Sources() []string {
	out := make([]string, len(p.Pairs))
	for i, cp := range p.Pairs {
		out[i] = cp.Source
	}
	return out
}

// Targets returns the target column names in pair order.
func (p Projection) Targets() []string {
	out := make([]string, len(p.Pairs))
	for i, cp := range p.Pairs {
		out[i] = cp.Target
	}
	return out
}

// ProjectResult reports what Project executed.
type ProjectResult struct {
	Rows      int64
	Statement string // empty when there was nothing to copy
}

// Dictionary relation columns.
const (
	DictColumnIndex = "col_index"
	DictWidth       = "width"
	DictVarCode     = "var_code"
)

// DictionaryTable is the layout of the persisted dictionary relation.
func DictionaryTable(fqn string) ddl.TableDef {
	return ddl.TableDef{
		FQN: fqn,
		Columns: []ddl.ColumnDef{
			{Name: DictColumnIndex, Type: ddl.Integer},
			{Name: DictWidth, Type: ddl.Integer},
			{Name: DictVarCode, Type: ddl.Text},
		},
	}
}

// DictionaryRows converts entries to rows aligned with DictionaryTable.
func DictionaryRows(entries []dictionary.Entry) [][]any {
	rows := make([][]any, len(entries))
	for i, e := range entries {
		rows[i] = []any{e.ColumnIndex, e.Width, e.VariableCode}
	}
	return rows
}

// StagingLayout identifies the column layout a staging relation was decoded
// with.
type StagingLayout struct {
	Fingerprint string
	Columns     int
}

// Staging layout relation columns.
const (
	LayoutFingerprint = "fingerprint"
	LayoutColumns     = "columns"
)

// LayoutTable names the relation recording the layout of staging.
func LayoutTable(staging string) string { return staging + "_layout" }

// LayoutTableDef is the layout of a staging layout relation. It holds at
// most one row, written once staging completes.
func LayoutTableDef(fqn string) ddl.TableDef {
	return ddl.TableDef{
		FQN: fqn,
		Columns: []ddl.ColumnDef{
			{Name: LayoutFingerprint, Type: ddl.Text},
			{Name: LayoutColumns, Type: ddl.Integer},
		},
	}
}

// LayoutRows converts l to rows aligned with LayoutTableDef.
func LayoutRows(l StagingLayout) [][]any {
	return [][]any{{l.Fingerprint, l.Columns}}
}

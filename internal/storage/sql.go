package storage

import (
	"fmt"
	"strings"
)

// Quoter renders identifiers in one SQL dialect.
type Quoter interface {
	Ident(name string) string
	FQN(name string) string
}

// ANSI quotes with double quotes, as Postgres and SQLite expect.
var ANSI Quoter = ansi{}

type ansi struct{}

func (ansi) Ident(name string) string { return `"` + strings.ReplaceAll(name, `"`, `""`) + `"` }

func (a ansi) FQN(name string) string { return QualifiedName(a, name) }

// QualifiedName quotes each dot-separated segment of name with q.Ident.
// Empty segments are dropped.
func QualifiedName(q Quoter, name string) string {
	parts := strings.Split(name, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, q.Ident(p))
		}
	}
	return strings.Join(out, ".")
}

// InsertSelectSQL renders the statement that copies p's staging columns into
// its target columns:
//
//	INSERT INTO "target" ("UF", "SEXO") SELECT "col1", "col2" FROM "staging"
func InsertSelectSQL(q Quoter, p Projection) string {
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
		q.FQN(p.Target),
		identList(q, p.Targets()),
		identList(q, p.Sources()),
		q.FQN(p.Staging),
	)
}

func identList(q Quoter, names []string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = q.Ident(n)
	}
	return strings.Join(out, ", ")
}

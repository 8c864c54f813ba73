package ddl

import (
	"fmt"
	"strings"

	gddl "fwingest/internal/ddl"
)

// BuildCreateTableSQL returns a deterministic CREATE TABLE statement for t.
// The caller drops any previous relation first, so the statement carries no
// IF NOT EXISTS guard.
//
//	CREATE TABLE "public"."pnad_staging_raw" (
//	  "col1" TEXT,
//	  "col2" TEXT
//	);
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("postgres %w", err)
	}

	cols := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		col := quoteIdent(c.Name) + " " + MapType(c.Type)
		if !c.Nullable {
			col += " NOT NULL"
		}
		cols = append(cols, col)
	}
	return fmt.Sprintf(
		"CREATE TABLE %s (\n  %s\n);",
		QuoteFQN(t.FQN),
		strings.Join(cols, ",\n  "),
	), nil
}

// BuildDropTableSQL drops fqn if it exists.
func BuildDropTableSQL(fqn string) string {
	return "DROP TABLE IF EXISTS " + QuoteFQN(fqn)
}

// BuildTruncateSQL empties fqn.
func BuildTruncateSQL(fqn string) string {
	return "TRUNCATE TABLE " + QuoteFQN(fqn)
}

// BuildProbeSQL selects no rows but returns fqn's full column list.
func BuildProbeSQL(fqn string) string {
	return "SELECT * FROM " + QuoteFQN(fqn) + " LIMIT 0"
}

// BuildSelectSQL reads columns from fqn ordered by orderBy.
func BuildSelectSQL(fqn string, columns []string, orderBy string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
	}
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(quoted, ", "), QuoteFQN(fqn), quoteIdent(orderBy))
}

// quoteIdent quotes a single identifier segment for Postgres, e.g.:
//
//	quoteIdent(`UF`)         => `"UF"`
//	quoteIdent(`weird"name`) => `"weird""name"`
func quoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// QuoteFQN quotes a possibly schema-qualified name like "public.pnad_dict" to
// `"public"."pnad_dict"`. Empty segments are ignored.
func QuoteFQN(f string) string {
	parts := strings.Split(f, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, quoteIdent(p))
	}
	return strings.Join(out, ".")
}

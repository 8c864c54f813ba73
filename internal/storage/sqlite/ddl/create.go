package ddl

import (
	"fmt"
	"strings"

	gddl "fwingest/internal/ddl"
)

// BuildCreateTableSQL returns a SQLite CREATE TABLE statement for t:
//
//	CREATE TABLE "pnad_staging_raw" (
//	  "col1" TEXT,
//	  "col2" TEXT
//	);
//
// TableDef.FQN may carry a schema prefix ("main.events"); each segment is
// quoted on its own.
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("sqlite %w", err)
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

// BuildTruncateSQL empties fqn. SQLite has no TRUNCATE; an unqualified
// DELETE takes the truncate optimization.
func BuildTruncateSQL(fqn string) string {
	return "DELETE FROM " + QuoteFQN(fqn)
}

// BuildProbeSQL selects no rows but returns fqn's full column list.
func BuildProbeSQL(fqn string) string {
	return "SELECT * FROM " + QuoteFQN(fqn) + " LIMIT 0"
}

// BuildInsertSQL returns a single-row INSERT with one placeholder per column.
func BuildInsertSQL(fqn string, columns []string) string {
	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteFQN(fqn), strings.Join(quoted, ", "), strings.Join(marks, ", "))
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

func quoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// QuoteFQN quotes each dot-separated segment of fqn.
func QuoteFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
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

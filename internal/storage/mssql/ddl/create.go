package ddl

import (
	"fmt"
	"strings"

	gddl "fwingest/internal/ddl"
)

// Brackets quotes identifiers the SQL Server way. It satisfies
// storage.Quoter.
type Brackets struct{}

// Ident quotes a single identifier, escaping ].
func (Brackets) Ident(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }

// FQN quotes a possibly schema-qualified name like "dbo.pnad_dict" to
// "[dbo].[pnad_dict]". Empty segments are ignored.
func (b Brackets) FQN(name string) string {
	parts := strings.Split(name, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, b.Ident(p))
	}
	return strings.Join(out, ".")
}

var q Brackets

// BuildCreateTableSQL returns a T-SQL CREATE TABLE statement:
//
//	CREATE TABLE [dbo].[pnad_staging_raw] (
//	  [col1] NVARCHAR(MAX) NULL,
//	  [col2] NVARCHAR(MAX) NULL
//	);
//
// Nullability is always spelled out since the server default depends on
// session settings.
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("mssql %w", err)
	}

	cols := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		null := " NOT NULL"
		if c.Nullable {
			null = " NULL"
		}
		cols = append(cols, q.Ident(c.Name)+" "+MapType(c.Type)+null)
	}
	return fmt.Sprintf(
		"CREATE TABLE %s (\n  %s\n);",
		q.FQN(t.FQN),
		strings.Join(cols, ",\n  "),
	), nil
}

// BuildDropTableSQL drops fqn if it exists (SQL Server 2016 and later).
func BuildDropTableSQL(fqn string) string {
	return "DROP TABLE IF EXISTS " + q.FQN(fqn)
}

// BuildTruncateSQL empties fqn.
func BuildTruncateSQL(fqn string) string {
	return "TRUNCATE TABLE " + q.FQN(fqn)
}

// BuildProbeSQL selects no rows but returns fqn's full column list.
func BuildProbeSQL(fqn string) string {
	return "SELECT TOP 0 * FROM " + q.FQN(fqn)
}

// BuildSelectSQL reads columns from fqn ordered by orderBy.
func BuildSelectSQL(fqn string, columns []string, orderBy string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = q.Ident(c)
	}
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(quoted, ", "), q.FQN(fqn), q.Ident(orderBy))
}

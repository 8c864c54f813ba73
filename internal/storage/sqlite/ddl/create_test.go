package ddl

import (
	"strings"
	"testing"

	gddl "fwingest/internal/ddl"
)

func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	got, err := BuildCreateTableSQL(gddl.TableDef{FQN: "main.pnad_dict", Columns: []gddl.ColumnDef{
		{Name: "col_index", Type: gddl.Integer},
		{Name: "var_code", Type: gddl.Text, Nullable: true},
	}})
	if err != nil {
		t.Fatalf("BuildCreateTableSQL: %v", err)
	}
	want := "CREATE TABLE \"main\".\"pnad_dict\" (\n  \"col_index\" INTEGER NOT NULL,\n  \"var_code\" TEXT\n);"
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}

	if _, err := BuildCreateTableSQL(gddl.TableDef{FQN: "t"}); err == nil || !strings.HasPrefix(err.Error(), "sqlite ddl:") {
		t.Fatalf("err = %v, want sqlite ddl validation error", err)
	}
}

func TestStatementBuilders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		got, want string
	}{
		{BuildDropTableSQL("pnad_dict"), `DROP TABLE IF EXISTS "pnad_dict"`},
		{BuildTruncateSQL("pnad_educacao"), `DELETE FROM "pnad_educacao"`},
		{BuildProbeSQL("pnad_staging_raw"), `SELECT * FROM "pnad_staging_raw" LIMIT 0`},
		{BuildInsertSQL("t", []string{"col1", "col2"}), `INSERT INTO "t" ("col1", "col2") VALUES (?, ?)`},
		{BuildSelectSQL("d", []string{"a", "b"}, "a"), `SELECT "a", "b" FROM "d" ORDER BY "a"`},
		{QuoteFQN(`we"ird`), `"we""ird"`},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %s, want %s", tt.got, tt.want)
		}
	}
}

func TestMapType(t *testing.T) {
	t.Parallel()

	if MapType(gddl.Text) != "TEXT" || MapType(gddl.Integer) != "INTEGER" {
		t.Fatalf("MapType mismatch: %s %s", MapType(gddl.Text), MapType(gddl.Integer))
	}
}

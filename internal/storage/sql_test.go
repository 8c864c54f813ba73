package storage

import "testing"

func TestInsertSelectSQL(t *testing.T) {
	t.Parallel()

	p := Projection{
		Staging: "public.pnad_staging_raw",
		Target:  "pnad_educacao",
		Pairs:   []ColumnPair{{Source: "col1", Target: "UF"}, {Source: "col2", Target: `we"ird`}},
	}
	got := InsertSelectSQL(ANSI, p)
	want := `INSERT INTO "pnad_educacao" ("UF", "we""ird") SELECT "col1", "col2" FROM "public"."pnad_staging_raw"`
	if got != want {
		t.Fatalf("InsertSelectSQL =\n%s\nwant\n%s", got, want)
	}
}

func TestQualifiedName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"t":        `"t"`,
		"public.t": `"public"."t"`,
		"a..b":     `"a"."b"`,
		" s . t ":  `"s"."t"`,
		`x"y.z`:    `"x""y"."z"`,
	}
	for in, want := range cases {
		if got := ANSI.FQN(in); got != want {
			t.Errorf("FQN(%q) = %s, want %s", in, got, want)
		}
	}
}

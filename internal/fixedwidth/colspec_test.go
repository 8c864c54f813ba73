package fixedwidth

import (
	"reflect"
	"testing"

	"fwingest/internal/dictionary"
)

func TestBuildColspecs(t *testing.T) {
	t.Parallel()

	entries := []dictionary.Entry{
		{ColumnIndex: 1, Width: 4, VariableCode: "Ano"},
		{ColumnIndex: 5, Width: 1, VariableCode: "Trimestre"},
		{ColumnIndex: 6, Width: 2, VariableCode: "UF"},
		{ColumnIndex: 30, Width: 15, VariableCode: "V1028"},
	}
	got := BuildColspecs(entries)
	want := []Range{{0, 4}, {4, 5}, {5, 7}, {29, 44}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("BuildColspecs = %v, want %v", got, want)
	}
	for i, r := range got {
		if r.Width() != entries[i].Width {
			t.Errorf("range %d width = %d, want %d", i, r.Width(), entries[i].Width)
		}
		if r.Start != entries[i].ColumnIndex-1 {
			t.Errorf("range %d start = %d, want %d", i, r.Start, entries[i].ColumnIndex-1)
		}
	}
}

func TestBuildColspecsKeepsCallerOrder(t *testing.T) {
	t.Parallel()

	got := BuildColspecs([]dictionary.Entry{{ColumnIndex: 3, Width: 1}, {ColumnIndex: 1, Width: 2}})
	want := []Range{{2, 3}, {0, 2}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("BuildColspecs = %v, want %v", got, want)
	}
	if len(BuildColspecs(nil)) != 0 {
		t.Fatal("nil entries must yield no ranges")
	}
}

func TestColumnNames(t *testing.T) {
	t.Parallel()

	if got, want := ColumnNames(3), []string{"col1", "col2", "col3"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("ColumnNames = %v, want %v", got, want)
	}

	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"col1", 1, true},
		{"col250", 250, true},
		{"col", 0, false},
		{"col0", 0, false},
		{"col01", 0, false},
		{"col-1", 0, false},
		{"colx", 0, false},
		{"UF", 0, false},
	}
	for _, c := range cases {
		got, ok := OrdinalPosition(c.in)
		if got != c.want || ok != c.ok {
			t.Errorf("OrdinalPosition(%q) = (%d, %v), want (%d, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	a := Fingerprint([]Range{{0, 2}, {2, 3}})
	if len(a) != 16 {
		t.Fatalf("fingerprint %q: want 16 hex chars", a)
	}
	if a != Fingerprint([]Range{{0, 2}, {2, 3}}) {
		t.Fatal("fingerprint must be deterministic")
	}
	if a == Fingerprint([]Range{{0, 2}, {2, 4}}) {
		t.Fatal("different layouts must not share a fingerprint")
	}
}

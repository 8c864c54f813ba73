// Package fixedwidth turns dictionary entries into byte ranges and streams a
// positionally-encoded text file through them in bounded batches.
package fixedwidth

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"

	"fwingest/internal/dictionary"
)

// Range is a zero-based, half-open byte interval [Start, End) within a line.
type Range struct {
	Start int
	End   int
}

// Width returns the number of bytes the range covers.
func (r Range) Width() int { return r.End - r.Start }

func (r Range) String() string { return fmt.Sprintf("[%d,%d)", r.Start, r.End) }

// BuildColspecs maps each entry to Range{ColumnIndex-1, ColumnIndex-1+Width},
// keeping the caller's order. Entries are trusted: overlap and gaps are not
// checked.
func BuildColspecs(entries []dictionary.Entry) []Range {
	out := make([]Range, len(entries))
	for i, e := range entries {
		start := e.ColumnIndex - 1
		out[i] = Range{Start: start, End: start + e.Width}
	}
	return out
}

const ordinalPrefix = "col"

// ColumnName returns the ordinal staging name for a 1-based position.
func ColumnName(pos int) string { return ordinalPrefix + strconv.Itoa(pos) }

// ColumnNames returns col1..colN.
func ColumnNames(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = ColumnName(i + 1)
	}
	return out
}

// OrdinalPosition parses an ordinal staging name ("col12" -> 12).
func OrdinalPosition(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, ordinalPrefix)
	if !ok || rest == "" || rest[0] == '0' {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Fingerprint hashes the layout so runs decoded with the same ranges can be
// matched in logs.
func Fingerprint(ranges []Range) string {
	buf := make([]byte, 0, 16*len(ranges))
	for _, r := range ranges {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(r.Start))
		buf = binary.LittleEndian.AppendUint64(buf, uint64(r.Width()))
	}
	return fmt.Sprintf("%016x", xxh3.Hash(buf))
}

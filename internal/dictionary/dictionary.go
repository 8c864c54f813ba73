// Package dictionary loads the survey data dictionary: the external table of
// (column index, width, variable code) triples that describes both the byte
// layout of the fixed-width extract and the final column names.
//
// Sources are tabular files. Comma-separated text (.csv, .txt) is read with
// encoding/csv; Excel workbooks (.xlsx, .xlsm) are streamed row by row with
// excelize. Only the first three positional fields of each row are used.
//
// Rows that fail coercion are not fatal. They are returned in
// Result.Rejected with a reason so callers can report exactly what was
// discarded. A source with no valid rows at all is fatal
// (etlerr.ErrEmptyDictionary).
package dictionary

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"fwingest/internal/etlerr"
)

// Entry is one validated dictionary row.
type Entry struct {
	// ColumnIndex is the 1-based byte position where the field starts.
	ColumnIndex int
	// Width is the field width in bytes.
	Width int
	// VariableCode names the field in the materialized relation.
	VariableCode string
}

// Rejection records a source row that was discarded and why.
type Rejection struct {
	Line   int      // 1-based row number in the source
	Fields []string // the raw positional fields as read
	Reason string
}

// Result is the outcome of Load: entries sorted by ColumnIndex, and the rows
// that were dropped.
type Result struct {
	Entries  []Entry
	Rejected []Rejection
}

// Options controls how a source is read.
type Options struct {
	// Sheet selects the workbook sheet; empty means the first sheet.
	Sheet string
	// SkipRows is the number of leading rows (titles, header) ignored.
	SkipRows int
	// Comma is the CSV field delimiter; zero means ','.
	Comma rune
}

// rowReader yields raw rows from a source. Implementations return io.EOF
// when exhausted.
type rowReader interface {
	Next() ([]string, error)
	Close() error
}

// openRows is a test seam selecting a reader by file extension.
var openRows = func(ctx context.Context, path string, opts Options) (rowReader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return openWorkbook(path, opts.Sheet)
	case ".csv", ".txt", ".tsv":
		return openCSV(ctx, path, opts.Comma)
	default:
		return nil, etlerr.Configuration("dictionary %s: unsupported format %q (want .csv or .xlsx)", path, filepath.Ext(path))
	}
}

// Load reads the dictionary at path.
//
// Errors:
//   - etlerr.ErrDictionaryNotFound when path does not exist;
//   - etlerr.ErrEmptyDictionary when no row survives coercion (the returned
//     Result still lists the rejections);
//   - any other read failure, wrapped with its cause.
func Load(ctx context.Context, path string, opts Options) (Result, error) {
	const op = "load dictionary"

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{}, etlerr.New(op, path, etlerr.ErrDictionaryNotFound, err)
		}
		return Result{}, fmt.Errorf("%s %s: %w", op, path, err)
	}

	rr, err := openRows(ctx, path, opts)
	if err != nil {
		return Result{}, err
	}
	defer rr.Close()

	var (
		res       Result
		codes     = map[string]int{} // case-folded variable code -> line of first occurrence
		positions = map[int]int{}    // column index -> line of first occurrence
	)
	for line := 1; ; line++ {
		if line%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
		}
		fields, err := rr.Next()
		if err != nil {
			if isEOF(err) {
				break
			}
			return Result{}, fmt.Errorf("%s %s: row %d: %w", op, path, line, err)
		}
		if line <= opts.SkipRows {
			continue
		}
		if isBlank(fields) {
			continue
		}

		e, reason := coerce(fields)
		if reason == "" {
			if first, dup := codes[strings.ToLower(e.VariableCode)]; dup {
				reason = fmt.Sprintf("duplicate variable code %q (first seen on row %d)", e.VariableCode, first)
			} else if first, dup := positions[e.ColumnIndex]; dup {
				reason = fmt.Sprintf("duplicate column index %d (first seen on row %d)", e.ColumnIndex, first)
			}
		}
		if reason != "" {
			res.Rejected = append(res.Rejected, Rejection{Line: line, Fields: slices.Clone(fields), Reason: reason})
			continue
		}
		codes[strings.ToLower(e.VariableCode)] = line
		positions[e.ColumnIndex] = line
		res.Entries = append(res.Entries, e)
	}

	if len(res.Entries) == 0 {
		return res, etlerr.New(op, path, etlerr.ErrEmptyDictionary, nil)
	}
	SortByColumn(res.Entries)
	return res, nil
}

// SortByColumn orders entries by ColumnIndex, keeping source order for ties.
func SortByColumn(entries []Entry) {
	slices.SortStableFunc(entries, func(a, b Entry) int {
		return a.ColumnIndex - b.ColumnIndex
	})
}

// coerce turns the first three positional fields into an Entry, or returns
// the reason the row is rejected.
func coerce(fields []string) (Entry, string) {
	if len(fields) < 3 {
		return Entry{}, fmt.Sprintf("expected at least 3 fields, got %d", len(fields))
	}
	idx, err := parsePositive(fields[0])
	if err != nil {
		return Entry{}, "column index: " + err.Error()
	}
	width, err := parsePositive(fields[1])
	if err != nil {
		return Entry{}, "width: " + err.Error()
	}
	code := strings.TrimSpace(fields[2])
	if code == "" {
		return Entry{}, "variable code is empty"
	}
	return Entry{ColumnIndex: idx, Width: width, VariableCode: code}, ""
}

// parsePositive accepts integers and integral decimals ("12", " 12 ",
// "12.0"); spreadsheets often export whole numbers in the latter form.
func parsePositive(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty value")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("not a number: %q", s)
		}
		if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
			return 0, fmt.Errorf("not an integer: %q", s)
		}
		n = int(f)
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive, got %d", n)
	}
	if n > math.MaxInt32 {
		return 0, fmt.Errorf("out of range: %q", s)
	}
	return n, nil
}

func isBlank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

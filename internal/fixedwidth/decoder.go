package fixedwidth

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"fwingest/internal/datasource"
	"fwingest/internal/datasource/file"
	"fwingest/internal/etlerr"
)

// DefaultBatchSize matches the chunk size the survey loads were tuned for.
const DefaultBatchSize = 50_000

// maxLineBytes bounds a single record. Longer lines are a fatal parse error.
const maxLineBytes = 16 << 20

// Options configures a Decoder.
type Options struct {
	// BatchSize is the maximum number of rows per Batch.
	BatchSize int
	// TrimSpace strips blank padding around each field.
	TrimSpace bool
}

// Batch is one chunk of decoded records. Columns holds the ordinal names
// (col1, col2, ...) shared by every row; each row has exactly one field per
// range.
type Batch struct {
	Seq       int // 1-based batch number
	FirstLine int // 1-based source line of Rows[0]
	Columns   []string
	Rows      [][]string
}

// Len returns the number of rows.
func (b Batch) Len() int { return len(b.Rows) }

// Values converts the rows for a bulk insert. With nullEmpty, empty fields
// become nil (SQL NULL).
func (b Batch) Values(nullEmpty bool) [][]any {
	out := make([][]any, len(b.Rows))
	for i, row := range b.Rows {
		vals := make([]any, len(row))
		for j, f := range row {
			if nullEmpty && f == "" {
				continue
			}
			vals[j] = f
		}
		out[i] = vals
	}
	return out
}

// Decoder streams a fixed-width file as batches of positional string fields.
// It is forward-only and not safe for concurrent use; decoding again requires
// a new Decoder.
type Decoder struct {
	rc      io.Closer
	sc      *bufio.Scanner
	ranges  []Range
	columns []string
	opts    Options
	latin1  *encoding.Decoder

	seq  int
	line int
	done bool
}

// OpenFile opens path and returns a Decoder over it. A missing path yields
// etlerr.ErrSourceNotFound before any batch is produced.
func OpenFile(ctx context.Context, path string, ranges []Range, opts Options) (*Decoder, error) {
	d, err := Open(ctx, file.NewLocal(path), ranges, opts)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil, etlerr.New("open fixed-width source", path, etlerr.ErrSourceNotFound, err)
	}
	return d, err
}

// Open returns a Decoder reading from src.
func Open(ctx context.Context, src datasource.Source, ranges []Range, opts Options) (*Decoder, error) {
	if len(ranges) == 0 {
		return nil, etlerr.New("open decoder", "", etlerr.ErrEmptyData, errors.New("no column ranges"))
	}
	if opts.BatchSize <= 0 {
		return nil, etlerr.Configuration("batch size must be > 0, got %d", opts.BatchSize)
	}
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	d := NewDecoder(rc, ranges, opts)
	d.rc = rc
	return d, nil
}

// NewDecoder wraps r. The caller owns r; Close is then a no-op.
func NewDecoder(r io.Reader, ranges []Range, opts Options) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Decoder{
		sc:      sc,
		ranges:  ranges,
		columns: ColumnNames(len(ranges)),
		opts:    opts,
		latin1:  charmap.ISO8859_1.NewDecoder(),
	}
}

// Columns returns the ordinal column names every batch carries.
func (d *Decoder) Columns() []string { return d.columns }

// Lines returns how many source lines have been decoded so far.
func (d *Decoder) Lines() int { return d.line }

// Next returns the next batch of at most BatchSize rows, in source order. It
// returns io.EOF once the source is exhausted. A canceled ctx is honored
// between batches, never in the middle of one.
func (d *Decoder) Next(ctx context.Context) (Batch, error) {
	if err := ctx.Err(); err != nil {
		return Batch{}, err
	}
	if d.done {
		return Batch{}, io.EOF
	}

	rows := make([][]string, 0, d.opts.BatchSize)
	first := d.line + 1
	for len(rows) < d.opts.BatchSize {
		if !d.sc.Scan() {
			d.done = true
			if err := d.sc.Err(); err != nil {
				return Batch{}, fmt.Errorf("fixedwidth: line %d: %w", d.line+1, err)
			}
			break
		}
		d.line++
		rows = append(rows, d.slice(d.sc.Bytes()))
	}
	if len(rows) == 0 {
		return Batch{}, io.EOF
	}
	d.seq++
	return Batch{Seq: d.seq, FirstLine: first, Columns: d.columns, Rows: rows}, nil
}

// All yields the remaining batches. Iteration stops after the first error.
func (d *Decoder) All(ctx context.Context) iter.Seq2[Batch, error] {
	return func(yield func(Batch, error) bool) {
		for {
			b, err := d.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(b, err) || err != nil {
				return
			}
		}
	}
}

// Close releases the underlying source when the Decoder opened it.
func (d *Decoder) Close() error {
	if d.rc == nil {
		return nil
	}
	err := d.rc.Close()
	d.rc = nil
	return err
}

// slice cuts one line into fields. Ranges past the end of a short line give
// short or empty fields.
func (d *Decoder) slice(line []byte) []string {
	fields := make([]string, len(d.ranges))
	for i, r := range d.ranges {
		start, end := r.Start, r.End
		if start < 0 {
			start = 0
		}
		if end > len(line) {
			end = len(line)
		}
		if start >= end {
			continue
		}
		fields[i] = d.decode(line[start:end])
	}
	return fields
}

// decode converts ISO-8859-1 bytes to a Go string.
func (d *Decoder) decode(b []byte) string {
	if d.opts.TrimSpace {
		b = bytes.Trim(b, " \t")
	}
	if isASCII(b) {
		return string(b)
	}
	// ISO-8859-1 maps every byte, so decoding cannot fail.
	out, _ := d.latin1.Bytes(b)
	return string(out)
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

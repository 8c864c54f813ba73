package dictionary

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"fwingest/internal/datasource/file"
)

const utf8BOM = "\uFEFF"

type csvRows struct {
	rc    io.ReadCloser
	r     *csv.Reader
	first bool
}

func openCSV(ctx context.Context, path string, comma rune) (*csvRows, error) {
	rc, err := file.NewLocal(path).Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open dictionary: %w", err)
	}
	r := csv.NewReader(rc)
	if comma != 0 {
		r.Comma = comma
	}
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return &csvRows{rc: rc, r: r, first: true}, nil
}

func (c *csvRows) Next() ([]string, error) {
	rec, err := c.r.Read()
	if err != nil {
		return nil, err
	}
	if c.first {
		c.first = false
		if len(rec) > 0 {
			rec[0] = strings.TrimPrefix(rec[0], utf8BOM)
		}
	}
	return rec, nil
}

func (c *csvRows) Close() error { return c.rc.Close() }

func isEOF(err error) bool { return errors.Is(err, io.EOF) }

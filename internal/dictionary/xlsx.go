package dictionary

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// workbookRows streams a single sheet; excelize keeps only the current row
// in memory when iterating with Rows.
type workbookRows struct {
	f    *excelize.File
	rows *excelize.Rows
}

func openWorkbook(path, sheet string) (*workbookRows, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		_ = f.Close()
		return nil, fmt.Errorf("open workbook %s: sheet %q not found", path, sheet)
	}
	rows, err := f.Rows(sheet)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return &workbookRows{f: f, rows: rows}, nil
}

func (w *workbookRows) Next() ([]string, error) {
	if !w.rows.Next() {
		if err := w.rows.Error(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	return w.rows.Columns()
}

func (w *workbookRows) Close() error {
	rerr := w.rows.Close()
	ferr := w.f.Close()
	if rerr != nil {
		return rerr
	}
	return ferr
}

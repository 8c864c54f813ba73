package storage

import (
	"context"
	"sync"

	"fwingest/internal/ddl"
	"fwingest/internal/dictionary"
)

// call records one mutating Repository call made against fakeRepo.
type call struct {
	Op      string // "replace" or "copy"
	Table   string
	Columns []string
	Rows    int
}

// fakeRepo is an in-memory Repository that records what it was asked to do.
type fakeRepo struct {
	mu     sync.Mutex
	calls  []call
	failOn int // 1-based call number that returns failErr
	fail   error
	closed bool
}

func (f *fakeRepo) record(c call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	if f.failOn == len(f.calls) {
		return f.fail
	}
	return nil
}

func (f *fakeRepo) ReplaceTable(_ context.Context, def ddl.TableDef, rows [][]any) (int64, error) {
	if err := f.record(call{Op: "replace", Table: def.FQN, Columns: def.ColumnNames(), Rows: len(rows)}); err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

func (f *fakeRepo) CopyFrom(_ context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if err := f.record(call{Op: "copy", Table: table, Columns: columns, Rows: len(rows)}); err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

func (f *fakeRepo) Columns(context.Context, string) ([]string, error) { return nil, nil }

func (f *fakeRepo) ReadDictionary(context.Context, string) ([]dictionary.Entry, error) {
	return nil, nil
}

func (f *fakeRepo) ReadLayout(context.Context, string) (StagingLayout, bool, error) {
	return StagingLayout{}, false, nil
}

func (f *fakeRepo) Project(context.Context, Projection) (ProjectResult, error) {
	return ProjectResult{}, nil
}

func (f *fakeRepo) Close() { f.closed = true }

package pipeline

import (
	"context"
	"unicode/utf8"

	"fwingest/internal/dictionary"
	"fwingest/internal/etlerr"
	"fwingest/internal/metrics"
	"fwingest/internal/storage"
)

// DictionaryReport describes a LoadDictionary call.
type DictionaryReport struct {
	Source   string
	Table    string
	Entries  []dictionary.Entry
	Rejected []dictionary.Rejection
}

// LoadDictionary parses the dictionary at path (config dictionary.path when
// empty) and replaces the dictionary relation with its valid entries.
// Rejected rows are logged and reported, not fatal.
func (r *Runner) LoadDictionary(ctx context.Context, path string) (rep DictionaryReport, err error) {
	defer r.step(StepLoadDictionary, &err)()

	if path == "" {
		path = r.cfg.Dictionary.Path
	}
	if path == "" {
		return rep, etlerr.Configuration("dictionary.path is not set")
	}
	rep.Source = path
	rep.Table = r.cfg.DictionaryTable()

	opts := dictionary.Options{Sheet: r.cfg.Dictionary.Sheet, SkipRows: r.cfg.Dictionary.SkipRows}
	if d := r.cfg.Dictionary.Delimiter; d != "" {
		opts.Comma, _ = utf8.DecodeRuneInString(d)
	}

	res, err := dictionary.Load(ctx, path, opts)
	rep.Rejected = res.Rejected
	for _, rj := range res.Rejected {
		r.log.Warn("dictionary row rejected", "source", path, "line", rj.Line, "reason", rj.Reason)
	}
	metrics.RecordRows(r.cfg.Job, metrics.RowsDictionaryRejected, int64(len(res.Rejected)))
	if err != nil {
		return rep, err
	}

	n, err := r.repo.ReplaceTable(ctx, storage.DictionaryTable(rep.Table), storage.DictionaryRows(res.Entries))
	if err != nil {
		return rep, etlerr.Persistence("replace dictionary", rep.Table, err)
	}
	rep.Entries = res.Entries
	metrics.RecordRows(r.cfg.Job, metrics.RowsDictionaryValid, n)

	r.log.Info("dictionary loaded",
		"source", path,
		"table", rep.Table,
		"entries", len(res.Entries),
		"rejected", len(res.Rejected),
	)
	return rep, nil
}

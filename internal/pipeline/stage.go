package pipeline

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"fwingest/internal/datasource/file"
	"fwingest/internal/ddl"
	"fwingest/internal/etlerr"
	"fwingest/internal/fixedwidth"
	"fwingest/internal/metrics"
	"fwingest/internal/storage"
)

// StageReport describes a Stage call.
type StageReport struct {
	Source      string
	Table       string
	Columns     int
	Lines       int
	Batches     int
	Rows        int64
	Fingerprint string
	Elapsed     time.Duration
}

// Stage decodes the fixed-width file at path with the persisted dictionary's
// layout and replaces the staging relation with its rows, batchSize lines at
// a time. Empty path and non-positive batchSize fall back to the config;
// with no source path configured, the file is first extracted from
// source.archive.
//
// Decoding and loading run concurrently with at most one batch in flight
// between them. The first batch replaces the staging relation and later
// batches append, so a failure leaves an earlier prefix of this run staged.
// The layout fingerprint is recorded in the staging layout relation only
// after the last batch commits.
func (r *Runner) Stage(ctx context.Context, path string, batchSize int) (rep StageReport, err error) {
	defer r.step(StepStage, &err)()

	if batchSize <= 0 {
		batchSize = r.cfg.Staging.BatchSize
	}
	rep.Table = r.cfg.StagingTable()

	entries, err := r.storedEntries(ctx, "stage")
	if err != nil {
		return rep, err
	}

	if path, err = r.sourcePath(ctx, path); err != nil {
		return rep, err
	}
	rep.Source = path

	ranges := fixedwidth.BuildColspecs(entries)
	rep.Fingerprint = fixedwidth.Fingerprint(ranges)
	rep.Columns = len(ranges)

	dec, err := fixedwidth.OpenFile(ctx, path, ranges, fixedwidth.Options{
		BatchSize: batchSize,
		TrimSpace: r.cfg.Source.TrimSpace,
	})
	if err != nil {
		return rep, err
	}
	defer dec.Close()

	r.log.Info("staging",
		"source", path,
		"table", rep.Table,
		"columns", rep.Columns,
		"batch_size", humanize.Comma(int64(batchSize)),
		"layout", rep.Fingerprint,
	)

	// The layout marker is cleared up front and written back only once every
	// batch is in, so Project can tell a complete staging run from a partial
	// or foreign one.
	layoutTable := storage.LayoutTable(rep.Table)
	if _, err := r.repo.ReplaceTable(ctx, storage.LayoutTableDef(layoutTable), nil); err != nil {
		return rep, etlerr.Persistence("stage: clear layout", layoutTable, err)
	}

	def := ddl.TextTable(rep.Table, dec.Columns())
	nullEmpty := r.cfg.Source.NullEmpty
	batches := make(chan [][]any, 1)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for b, err := range dec.All(gctx) {
			if err != nil {
				return err
			}
			r.log.Debug("batch decoded", "batch", b.Seq, "first_line", b.FirstLine, "rows", b.Len())
			select {
			case batches <- b.Values(nullEmpty):
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		// Closed only on success: a closed channel tells the loader the
		// source is complete.
		close(batches)
		return nil
	})

	var stats storage.LoadStats
	g.Go(func() error {
		var err error
		stats, err = storage.LoadBatches(gctx, r.log, r.clock, r.repo, def, batches)
		return err
	})

	err = g.Wait()
	rep.Lines = dec.Lines()
	rep.Batches = stats.Batches
	rep.Rows = stats.Rows
	rep.Elapsed = stats.Elapsed
	metrics.RecordRows(r.cfg.Job, metrics.RowsStaged, stats.Rows)
	metrics.RecordBatches(r.cfg.Job, int64(stats.Batches))
	if err != nil {
		return rep, err
	}

	layout := storage.StagingLayout{Fingerprint: rep.Fingerprint, Columns: rep.Columns}
	if _, err := r.repo.ReplaceTable(ctx, storage.LayoutTableDef(layoutTable), storage.LayoutRows(layout)); err != nil {
		return rep, etlerr.Persistence("stage: record layout", layoutTable, err)
	}

	r.log.Info("staged",
		"table", rep.Table,
		"rows", humanize.Comma(rep.Rows),
		"batches", rep.Batches,
		"layout", rep.Fingerprint,
	)
	return rep, nil
}

// sourcePath resolves the fixed-width file to decode. An explicit path wins,
// then source.path; otherwise the member is extracted from source.archive
// into the archive's directory.
func (r *Runner) sourcePath(ctx context.Context, path string) (string, error) {
	if path != "" {
		return path, nil
	}
	src := r.cfg.Source
	if src.Path != "" && src.Archive == "" {
		return src.Path, nil
	}
	if src.Archive == "" {
		return "", etlerr.Configuration("neither source.path nor source.archive is set")
	}

	member := src.Member
	if member == "" {
		member = file.DefaultMember(src.Archive)
	}
	dest := filepath.Dir(src.Archive)
	if src.Path != "" {
		dest = filepath.Dir(src.Path)
	}

	out, err := file.Extract(ctx, src.Archive, member, dest)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", etlerr.New("extract", src.Archive, etlerr.ErrSourceNotFound, err)
		}
		return "", err
	}
	r.log.Info("extracted source", "archive", src.Archive, "member", member, "path", out)
	return out, nil
}

package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jonboulle/clockwork"

	"fwingest/internal/ddl"
	"fwingest/internal/etlerr"
)

// LoadStats summarizes a LoadBatches run.
type LoadStats struct {
	Batches int
	Rows    int64
	Elapsed time.Duration
}

// LoadBatches drains row batches from in into the relation described by def.
// The first batch replaces the relation (drop, create, insert); later batches
// are appended. When in closes without delivering a batch, the relation is
// still replaced, leaving it empty.
//
// It returns the running totals and the first error. A failed batch leaves
// every previously committed batch in place.
func LoadBatches(
	ctx context.Context,
	log *slog.Logger,
	clock clockwork.Clock,
	repo Repository,
	def ddl.TableDef,
	in <-chan [][]any,
) (LoadStats, error) {
	if err := def.Validate(); err != nil {
		return LoadStats{}, etlerr.New("load batches", def.FQN, etlerr.ErrConfiguration, err)
	}
	if repo == nil {
		return LoadStats{}, etlerr.Configuration("load batches: repository must not be nil")
	}

	var (
		stats     LoadStats
		columns   = def.ColumnNames()
		start     = clock.Now()
		lastFlush = start
	)

	flush := func(rows [][]any) error {
		var (
			n   int64
			err error
		)
		if stats.Batches == 0 {
			n, err = repo.ReplaceTable(ctx, def, rows)
		} else {
			n, err = repo.CopyFrom(ctx, def.FQN, columns, rows)
		}
		if err != nil {
			log.Error("batch failed",
				"table", def.FQN,
				"batch", stats.Batches+1,
				"total_rows", stats.Rows,
				"err", err,
			)
			return etlerr.Persistence(fmt.Sprintf("load batch %d into", stats.Batches+1), def.FQN, err)
		}
		stats.Batches++
		stats.Rows += n

		now := clock.Now()
		since := now.Sub(lastFlush)
		rps := float64(0)
		if since > 0 {
			rps = float64(n) / since.Seconds()
		}
		log.Info("batch loaded",
			"table", def.FQN,
			"batch", stats.Batches,
			"rows", humanize.Comma(n),
			"total_rows", humanize.Comma(stats.Rows),
			"rps", humanize.Comma(int64(rps)),
			"elapsed", now.Sub(start).Truncate(time.Millisecond),
		)
		lastFlush = now
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			stats.Elapsed = clock.Since(start)
			return stats, ctx.Err()

		case rows, ok := <-in:
			if !ok {
				if stats.Batches == 0 {
					log.Warn("no rows to load; replacing with an empty relation", "table", def.FQN)
					if _, err := repo.ReplaceTable(ctx, def, nil); err != nil {
						stats.Elapsed = clock.Since(start)
						return stats, etlerr.Persistence("replace", def.FQN, err)
					}
				}
				stats.Elapsed = clock.Since(start)
				return stats, nil
			}
			if err := flush(rows); err != nil {
				stats.Elapsed = clock.Since(start)
				return stats, err
			}
		}
	}
}

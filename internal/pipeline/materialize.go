package pipeline

import (
	"context"
	"errors"

	"fwingest/internal/ddl"
	"fwingest/internal/etlerr"
	"fwingest/internal/storage"
)

// MaterializeReport describes a MaterializeSchema call.
type MaterializeReport struct {
	Table    string
	Columns  []string
	Excluded []string
}

// MaterializeSchema drops and recreates the target relation with one text
// column per dictionary variable code, in column order. When a staging
// relation already exists, variable codes it has no column for are left out
// (and reported), so the target matches what Project can fill. A staging
// relation with a different layout is ignored with a warning.
func (r *Runner) MaterializeSchema(ctx context.Context) (rep MaterializeReport, err error) {
	defer r.step(StepMaterialize, &err)()

	rep.Table = r.cfg.TargetTable()
	entries, err := r.storedEntries(ctx, "materialize")
	if err != nil {
		return rep, err
	}

	staging := r.cfg.StagingTable()
	rep.Columns = variableCodes(entries)
	cols, err := r.repo.Columns(ctx, staging)
	switch {
	case errors.Is(err, storage.ErrTableNotFound):
		r.log.Info("no staging relation yet; materializing every dictionary entry", "staging", staging)
	case err != nil:
		return rep, etlerr.Persistence("materialize: columns", staging, err)
	default:
		plan, perr := PlanProjection(entries, cols)
		if perr != nil {
			// Project reports the mismatch; the schema still follows the
			// dictionary.
			r.log.Warn("staging layout does not match the dictionary", "staging", staging, "err", perr)
			break
		}
		rep.Columns = plan.Targets()
		rep.Excluded = variableCodes(plan.Excluded)
		r.warnExcluded(staging, len(cols), plan.Excluded)
	}

	if _, err := r.repo.ReplaceTable(ctx, ddl.TextTable(rep.Table, rep.Columns), nil); err != nil {
		return rep, etlerr.Persistence("materialize", rep.Table, err)
	}
	r.log.Info("schema materialized", "table", rep.Table, "columns", len(rep.Columns))
	return rep, nil
}

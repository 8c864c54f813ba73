package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"fwingest/internal/dictionary"
	"fwingest/internal/etlerr"
	"fwingest/internal/fixedwidth"
	"fwingest/internal/metrics"
	"fwingest/internal/storage"
)

// Plan pairs staging columns with target columns.
type Plan struct {
	Pairs []storage.ColumnPair
	// Excluded are dictionary entries past the last staging column.
	Excluded []dictionary.Entry
}

// Targets returns the target column names of p, in order.
func (p Plan) Targets() []string {
	out := make([]string, len(p.Pairs))
	for i, cp := range p.Pairs {
		out[i] = cp.Target
	}
	return out
}

// PlanProjection pairs the i-th entry (entries sorted by column index) with
// staging column col<i>. Staging columns are named by their ordinal in the
// layout, not by byte position: entry (3,1,"SEXO") after (1,2,"UF") is read
// from col2. So an entry is in range when its ordinal, not its ColumnIndex,
// is at most the staging width. Entries beyond the staging width are
// excluded, not fatal. A staging relation that is not exactly col1..colN, or that is wider
// than the dictionary, was staged with a different layout and yields
// etlerr.ErrLayoutMismatch.
func PlanProjection(entries []dictionary.Entry, staging []string) (Plan, error) {
	const op = "plan projection"
	if len(entries) == 0 {
		return Plan{}, etlerr.New(op, "", etlerr.ErrEmptyDictionary, nil)
	}
	if len(staging) == 0 {
		return Plan{}, etlerr.New(op, "", etlerr.ErrEmptyStaging, nil)
	}
	for i, name := range staging {
		if pos, ok := fixedwidth.OrdinalPosition(name); !ok || pos != i+1 {
			return Plan{}, etlerr.New(op, "", etlerr.ErrLayoutMismatch,
				fmt.Errorf("staging column %d is %q, want %q", i+1, name, fixedwidth.ColumnName(i+1)))
		}
	}
	if len(staging) > len(entries) {
		return Plan{}, etlerr.New(op, "", etlerr.ErrLayoutMismatch,
			fmt.Errorf("staging has %d columns but the dictionary only %d entries; stage again", len(staging), len(entries)))
	}

	var p Plan
	for i, e := range entries {
		if i >= len(staging) {
			p.Excluded = append(p.Excluded, e)
			continue
		}
		p.Pairs = append(p.Pairs, storage.ColumnPair{Source: staging[i], Target: e.VariableCode})
	}
	return p, nil
}

// ProjectReport describes a Project call.
type ProjectReport struct {
	Staging  string
	Target   string
	Rows     int64
	Columns  int
	Excluded []string
}

// Project empties the target relation and fills it from staging in one
// transaction. Dictionary entries with no staging column are logged and
// skipped. The layout is checked before anything is written, so a mismatch
// leaves the target untouched.
func (r *Runner) Project(ctx context.Context) (rep ProjectReport, err error) {
	defer r.step(StepProject, &err)()

	rep.Staging, rep.Target = r.cfg.StagingTable(), r.cfg.TargetTable()

	entries, err := r.storedEntries(ctx, "project")
	if err != nil {
		return rep, err
	}
	cols, err := r.repo.Columns(ctx, rep.Staging)
	switch {
	case errors.Is(err, storage.ErrTableNotFound):
		return rep, etlerr.New("project", rep.Staging, etlerr.ErrEmptyStaging, err)
	case err != nil:
		return rep, etlerr.Persistence("project: columns", rep.Staging, err)
	}

	plan, err := PlanProjection(entries, cols)
	if err != nil {
		return rep, err
	}
	rep.Excluded = variableCodes(plan.Excluded)
	r.warnExcluded(rep.Staging, len(cols), plan.Excluded)

	if err := r.checkLayout(ctx, rep.Staging, entries[:len(plan.Pairs)]); err != nil {
		return rep, err
	}
	if err := r.checkTarget(ctx, rep.Target, plan); err != nil {
		return rep, err
	}

	res, err := r.repo.Project(ctx, storage.Projection{
		Staging: rep.Staging,
		Target:  rep.Target,
		Pairs:   plan.Pairs,
	})
	if res.Statement != "" {
		r.log.Debug("projection statement", "sql", res.Statement)
	}
	if err != nil {
		return rep, etlerr.Persistence("project", rep.Target, err)
	}
	rep.Rows = res.Rows
	rep.Columns = len(plan.Pairs)

	metrics.RecordRows(r.cfg.Job, metrics.RowsProjected, res.Rows)
	metrics.RecordColumns(r.cfg.Job, metrics.ColumnsProjected, rep.Columns)
	metrics.RecordColumns(r.cfg.Job, metrics.ColumnsExcluded, len(rep.Excluded))

	r.log.Info("projected",
		"staging", rep.Staging,
		"target", rep.Target,
		"rows", humanize.Comma(rep.Rows),
		"columns", rep.Columns,
		"excluded", len(rep.Excluded),
	)
	return rep, nil
}

// checkLayout compares the layout recorded by the last staging run with the
// layout the paired entries give now. Staging written without a layout
// relation is accepted with a warning.
func (r *Runner) checkLayout(ctx context.Context, staging string, paired []dictionary.Entry) error {
	table := storage.LayoutTable(staging)
	got, ok, err := r.repo.ReadLayout(ctx, table)
	switch {
	case errors.Is(err, storage.ErrTableNotFound):
		r.log.Warn("staging layout not recorded; widths cannot be checked", "staging", staging)
		return nil
	case err != nil:
		return etlerr.Persistence("project: read layout", table, err)
	case !ok:
		return etlerr.New("project", staging, etlerr.ErrLayoutMismatch,
			errors.New("the last staging run did not complete; stage again"))
	}

	want := storage.StagingLayout{
		Fingerprint: fixedwidth.Fingerprint(fixedwidth.BuildColspecs(paired)),
		Columns:     len(paired),
	}
	if got != want {
		return etlerr.New("project", staging, etlerr.ErrLayoutMismatch,
			fmt.Errorf("staged with layout %s (%d columns), dictionary gives %s (%d columns); stage again",
				got.Fingerprint, got.Columns, want.Fingerprint, want.Columns))
	}
	r.log.Debug("staging layout verified", "staging", staging, "layout", got.Fingerprint)
	return nil
}

// checkTarget fails when the target relation is missing or lacks a column
// the plan writes to.
func (r *Runner) checkTarget(ctx context.Context, target string, plan Plan) error {
	cols, err := r.repo.Columns(ctx, target)
	if err != nil {
		if errors.Is(err, storage.ErrTableNotFound) {
			return fmt.Errorf("project: target %s is not materialized: %w", target, err)
		}
		return etlerr.Persistence("project: columns", target, err)
	}
	have := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		have[c] = struct{}{}
	}
	var missing []string
	for _, t := range plan.Targets() {
		if _, ok := have[t]; !ok {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		return etlerr.New("project", target, etlerr.ErrLayoutMismatch,
			fmt.Errorf("target lacks columns %s; materialize again", strings.Join(missing, ", ")))
	}
	return nil
}

func (r *Runner) warnExcluded(staging string, width int, excluded []dictionary.Entry) {
	if len(excluded) == 0 {
		return
	}
	r.log.Warn("dictionary entries outside the staging layout were excluded",
		"staging", staging,
		"staging_columns", width,
		"excluded", strings.Join(variableCodes(excluded), ","),
	)
}

func variableCodes(entries []dictionary.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.VariableCode
	}
	return out
}

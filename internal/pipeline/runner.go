// Package pipeline runs the ingestion operations against one storage
// backend: load the dictionary, stage the fixed-width extract, materialize
// the named schema and project staged rows into it.
//
// Each operation is independently invocable and idempotent for the relation
// it owns. Run chains all four in order. Callers are responsible for
// serializing runs that share relation names.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"fwingest/internal/config"
	"fwingest/internal/dictionary"
	"fwingest/internal/etlerr"
	"fwingest/internal/metrics"
	"fwingest/internal/storage"
)

// Step names used in logs and metrics.
const (
	StepLoadDictionary = "load_dictionary"
	StepStage          = "stage"
	StepMaterialize    = "materialize"
	StepProject        = "project"
)

// Runner executes pipeline operations with a fixed configuration and
// repository.
type Runner struct {
	cfg   config.Config
	repo  storage.Repository
	log   *slog.Logger
	clock clockwork.Clock
	runID string
}

// Option customizes a Runner.
type Option func(*Runner)

// WithLogger sets the logger; the default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// WithClock sets the clock used for step timing.
func WithClock(c clockwork.Clock) Option {
	return func(r *Runner) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithRunID overrides the generated run id.
func WithRunID(id string) Option {
	return func(r *Runner) {
		if id != "" {
			r.runID = id
		}
	}
}

// New returns a Runner. cfg is not validated here; use config.Validate.
func New(cfg config.Config, repo storage.Repository, opts ...Option) (*Runner, error) {
	if repo == nil {
		return nil, etlerr.Configuration("pipeline: repository must not be nil")
	}
	r := &Runner{
		cfg:   cfg,
		repo:  repo,
		log:   slog.New(slog.DiscardHandler),
		clock: clockwork.NewRealClock(),
		runID: uuid.NewString(),
	}
	for _, o := range opts {
		o(r)
	}
	r.log = r.log.With("run_id", r.runID, "job", cfg.Job)
	return r, nil
}

// RunID identifies this Runner's executions in logs.
func (r *Runner) RunID() string { return r.runID }

// RunReport aggregates the reports of a full run.
type RunReport struct {
	Dictionary  DictionaryReport
	Stage       StageReport
	Materialize MaterializeReport
	Project     ProjectReport
	Elapsed     time.Duration
}

// Run executes load-dictionary, stage, materialize and project in order. A
// canceled ctx stops the run before the next step starts.
func (r *Runner) Run(ctx context.Context) (rep RunReport, err error) {
	start := r.clock.Now()
	defer func() { rep.Elapsed = r.clock.Since(start) }()

	if rep.Dictionary, err = r.LoadDictionary(ctx, ""); err != nil {
		return rep, err
	}
	if err = ctx.Err(); err != nil {
		return rep, err
	}
	if rep.Stage, err = r.Stage(ctx, "", 0); err != nil {
		return rep, err
	}
	if err = ctx.Err(); err != nil {
		return rep, err
	}
	if rep.Materialize, err = r.MaterializeSchema(ctx); err != nil {
		return rep, err
	}
	if err = ctx.Err(); err != nil {
		return rep, err
	}
	if rep.Project, err = r.Project(ctx); err != nil {
		return rep, err
	}

	metrics.RecordSuccess(r.cfg.Job, r.clock.Now())
	r.log.Info("run finished", "elapsed", r.clock.Since(start).Truncate(time.Millisecond))
	return rep, nil
}

// step logs the start of name and returns a func that records its outcome.
// The returned func reads *errp, so it must be deferred.
func (r *Runner) step(name string, errp *error) func() {
	start := r.clock.Now()
	log := r.log.With("step", name)
	log.Info("step started")
	return func() {
		d := r.clock.Since(start)
		metrics.RecordStep(r.cfg.Job, name, *errp, d)
		if *errp != nil {
			log.Error("step failed", "elapsed", d.Truncate(time.Millisecond), "err", *errp)
			return
		}
		log.Info("step finished", "elapsed", d.Truncate(time.Millisecond))
	}
}

// storedEntries reads the persisted dictionary in column order. A missing or
// empty dictionary relation is etlerr.ErrEmptyDictionary.
func (r *Runner) storedEntries(ctx context.Context, op string) ([]dictionary.Entry, error) {
	table := r.cfg.DictionaryTable()
	entries, err := r.repo.ReadDictionary(ctx, table)
	switch {
	case errors.Is(err, storage.ErrTableNotFound):
		return nil, etlerr.New(op, table, etlerr.ErrEmptyDictionary, err)
	case err != nil:
		return nil, etlerr.Persistence(op+": read dictionary", table, err)
	case len(entries) == 0:
		return nil, etlerr.New(op, table, etlerr.ErrEmptyDictionary, nil)
	}
	dictionary.SortByColumn(entries)
	return entries, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"fwingest/internal/config"
	"fwingest/internal/logging"
	"fwingest/internal/pipeline"
	"fwingest/internal/storage"
)

// options holds the persistent flags.
type options struct {
	configPath     string
	envFiles       []string
	verbose        bool
	dsn            string
	storageKind    string
	batchSize      int
	metricsBackend string
}

// app carries what every subcommand needs.
type app struct {
	opts   options
	stdout io.Writer
	stderr io.Writer
	lookup config.LookupFunc
}

func newRootCmd(stdout, stderr io.Writer, lookup config.LookupFunc) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr, lookup: lookup}

	root := &cobra.Command{
		Use:   "fwingest",
		Short: "Schema-driven fixed-width ingestion",
		Long: `fwingest ingests a positional survey extract into a relational store.

A data dictionary of (column index, width, variable code) rows describes the
byte layout. Rows are staged under ordinal names (col1..colN) and then
projected into a relation whose columns are the variable codes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	a.bindFlags(root.PersistentFlags())
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(
		&cobra.Command{
			Use:   "load-dictionary [path]",
			Short: "Parse the dictionary and replace the dictionary relation",
			Args:  cobra.MaximumNArgs(1),
			RunE: a.withRunner(func(ctx context.Context, r *pipeline.Runner, args []string) error {
				_, err := r.LoadDictionary(ctx, firstArg(args))
				return err
			}),
		},
		&cobra.Command{
			Use:   "stage [path]",
			Short: "Decode the fixed-width file into the staging relation",
			Args:  cobra.MaximumNArgs(1),
			RunE: a.withRunner(func(ctx context.Context, r *pipeline.Runner, args []string) error {
				_, err := r.Stage(ctx, firstArg(args), 0)
				return err
			}),
		},
		&cobra.Command{
			Use:   "materialize",
			Short: "Drop and recreate the target relation from the dictionary",
			Args:  cobra.NoArgs,
			RunE: a.withRunner(func(ctx context.Context, r *pipeline.Runner, _ []string) error {
				_, err := r.MaterializeSchema(ctx)
				return err
			}),
		},
		&cobra.Command{
			Use:   "project",
			Short: "Copy staged columns into the target relation",
			Args:  cobra.NoArgs,
			RunE: a.withRunner(func(ctx context.Context, r *pipeline.Runner, _ []string) error {
				_, err := r.Project(ctx)
				return err
			}),
		},
		&cobra.Command{
			Use:   "run",
			Short: "Load the dictionary, stage, materialize and project",
			Args:  cobra.NoArgs,
			RunE: a.withRunner(func(ctx context.Context, r *pipeline.Runner, _ []string) error {
				_, err := r.Run(ctx)
				return err
			}),
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Validate the configuration and exit",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := a.loadConfig(cmd.Flags())
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "configuration is valid (job=%s, storage=%s)\n", cfg.Job, cfg.Storage.Kind)
				return nil
			},
		},
	)
	return root
}

func (a *app) bindFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&a.opts.configPath, "config", "c", "", "config file (.json, .yaml or .yml)")
	flags.StringSliceVar(&a.opts.envFiles, "env-file", nil, "dotenv files to read (default .env when present)")
	flags.BoolVarP(&a.opts.verbose, "verbose", "v", false, "enable debug logs")
	flags.StringVar(&a.opts.dsn, "dsn", "", "storage DSN (overrides config and environment)")
	flags.StringVar(&a.opts.storageKind, "storage-kind", "", "storage backend: "+fmt.Sprint(storage.ListKinds()))
	flags.IntVar(&a.opts.batchSize, "batch-size", 0, "lines per staging batch")
	flags.StringVar(&a.opts.metricsBackend, "metrics-backend", "", "metrics backend (none, prometheus, datadog)")
}

// loadConfig resolves the configuration: file, then environment (process
// first, dotenv files second), then flags that were set explicitly. Issues
// are printed; error-level issues fail the command.
func (a *app) loadConfig(flags *pflag.FlagSet) (config.Config, error) {
	cfg, err := config.Load(a.opts.configPath)
	if err != nil {
		return config.Config{}, err
	}

	dotenv, err := a.readEnvFiles()
	if err != nil {
		return config.Config{}, err
	}
	cfg.ApplyEnv(func(k string) (string, bool) {
		if a.lookup != nil {
			if v, ok := a.lookup(k); ok {
				return v, true
			}
		}
		v, ok := dotenv[k]
		return v, ok
	})

	if flags.Changed("dsn") {
		cfg.Storage.DSN = a.opts.dsn
	}
	if flags.Changed("storage-kind") {
		cfg.Storage.Kind = a.opts.storageKind
	}
	if flags.Changed("batch-size") {
		cfg.Staging.BatchSize = a.opts.batchSize
	}
	if flags.Changed("metrics-backend") {
		cfg.Metrics.Backend = a.opts.metricsBackend
	}

	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintf(a.stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if err := config.Check(issues); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// readEnvFiles reads the --env-file files, or ./.env when none are named and
// it exists.
func (a *app) readEnvFiles() (map[string]string, error) {
	if len(a.opts.envFiles) > 0 {
		m, err := godotenv.Read(a.opts.envFiles...)
		if err != nil {
			return nil, fmt.Errorf("read env files: %w", err)
		}
		return m, nil
	}
	m, err := godotenv.Read()
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read .env: %w", err)
	}
	return m, nil
}

type runnerFunc func(ctx context.Context, r *pipeline.Runner, args []string) error

// withRunner wraps fn with configuration, logging, metrics and storage
// setup and teardown.
func (a *app) withRunner(fn runnerFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := a.loadConfig(cmd.Flags())
		if err != nil {
			return err
		}
		log := logging.New(a.stderr, a.opts.verbose)
		ctx := cmd.Context()

		flush := setupMetrics(log, cfg)
		defer flush()

		repo, err := storage.New(ctx, storage.Config{Kind: cfg.Storage.Kind, DSN: cfg.Storage.DSN})
		if err != nil {
			log.Error("open storage", "kind", cfg.Storage.Kind, "err", err)
			return fmt.Errorf("open storage %s: %w", cfg.Storage.Kind, err)
		}
		defer repo.Close()

		r, err := pipeline.New(cfg, repo, pipeline.WithLogger(log))
		if err != nil {
			return err
		}
		log.Debug("configuration loaded",
			slog.String("config", a.opts.configPath),
			slog.String("storage", cfg.Storage.Kind),
			slog.String("run_id", r.RunID()),
		)
		return fn(ctx, r, args)
	}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

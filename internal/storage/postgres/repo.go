// Package postgres implements storage.Repository on Postgres using pgx v5.
// Relations are replaced with DROP/CREATE and loaded with COPY inside a
// single transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	gddl "fwingest/internal/ddl"
	"fwingest/internal/dictionary"
	"fwingest/internal/storage"
	pgddl "fwingest/internal/storage/postgres/ddl"
)

// undefinedTable is the SQLSTATE for a missing relation.
const undefinedTable = "42P01"

// Config holds Postgres repository configuration.
type Config struct {
	DSN string // connection string for pgxpool
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository connects and pings, then returns a Repository and a Close
// function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	return &Repository{pool: pool}, pool.Close, nil
}

// ReplaceTable implements storage.Repository.
func (r *Repository) ReplaceTable(ctx context.Context, def gddl.TableDef, rows [][]any) (int64, error) {
	create, err := pgddl.BuildCreateTableSQL(def)
	if err != nil {
		return 0, err
	}

	var n int64
	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, pgddl.BuildDropTableSQL(def.FQN)); err != nil {
			return fmt.Errorf("drop %s: %w", def.FQN, err)
		}
		if _, err := tx.Exec(ctx, create); err != nil {
			return fmt.Errorf("create %s: %w", def.FQN, err)
		}
		if len(rows) == 0 {
			return nil
		}
		copied, err := tx.CopyFrom(ctx, splitFQN(def.FQN), def.ColumnNames(), pgx.CopyFromRows(rows))
		if err != nil {
			return copyErr(def.FQN, err)
		}
		n = copied
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// CopyFrom implements storage.Repository.
func (r *Repository) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := r.pool.CopyFrom(ctx, splitFQN(table), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return n, copyErr(table, err)
	}
	return n, nil
}

// Columns implements storage.Repository by reading the row description of
// an empty SELECT *.
func (r *Repository) Columns(ctx context.Context, table string) ([]string, error) {
	rows, err := r.pool.Query(ctx, pgddl.BuildProbeSQL(table))
	if err != nil {
		return nil, classify(table, err)
	}
	fds := rows.FieldDescriptions()
	names := make([]string, len(fds))
	for i, fd := range fds {
		names[i] = fd.Name
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, classify(table, err)
	}
	return names, nil
}

// ReadDictionary implements storage.Repository.
func (r *Repository) ReadDictionary(ctx context.Context, table string) ([]dictionary.Entry, error) {
	q := pgddl.BuildSelectSQL(table,
		[]string{storage.DictColumnIndex, storage.DictWidth, storage.DictVarCode},
		storage.DictColumnIndex)
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, classify(table, err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (dictionary.Entry, error) {
		var e dictionary.Entry
		err := row.Scan(&e.ColumnIndex, &e.Width, &e.VariableCode)
		return e, err
	})
	if err != nil {
		return nil, classify(table, err)
	}
	return entries, nil
}

// ReadLayout implements storage.Repository.
func (r *Repository) ReadLayout(ctx context.Context, table string) (storage.StagingLayout, bool, error) {
	q := pgddl.BuildSelectSQL(table,
		[]string{storage.LayoutFingerprint, storage.LayoutColumns},
		storage.LayoutFingerprint)
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return storage.StagingLayout{}, false, classify(table, err)
	}
	layouts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (storage.StagingLayout, error) {
		var l storage.StagingLayout
		err := row.Scan(&l.Fingerprint, &l.Columns)
		return l, err
	})
	if err != nil {
		return storage.StagingLayout{}, false, classify(table, err)
	}
	if len(layouts) == 0 {
		return storage.StagingLayout{}, false, nil
	}
	return layouts[0], true, nil
}

// Project implements storage.Repository: TRUNCATE then INSERT ... SELECT in
// one transaction.
func (r *Repository) Project(ctx context.Context, p storage.Projection) (storage.ProjectResult, error) {
	var res storage.ProjectResult
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, pgddl.BuildTruncateSQL(p.Target)); err != nil {
			return classify(p.Target, err)
		}
		if len(p.Pairs) == 0 {
			return nil
		}
		res.Statement = storage.InsertSelectSQL(storage.ANSI, p)
		tag, err := tx.Exec(ctx, res.Statement)
		if err != nil {
			return classify(p.Staging, err)
		}
		res.Rows = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return storage.ProjectResult{Statement: res.Statement}, err
	}
	return res, nil
}

// classify marks a missing relation with storage.ErrTableNotFound.
func classify(table string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
		return fmt.Errorf("%s: %w: %w", table, storage.ErrTableNotFound, err)
	}
	return fmt.Errorf("%s: %w", table, err)
}

// copyErr surfaces the server's detail line, which names the offending row.
func copyErr(table string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("copy into %s: %s (%s): %w", table, pgErr.Detail, pgErr.SQLState(), err)
	}
	return fmt.Errorf("copy into %s: %w", table, err)
}

// splitFQN converts "schema.table" into a pgx.Identifier {"schema","table"}.
// If no dot is present, returns {"table"}.
func splitFQN(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			id = append(id, p)
		}
	}
	return id
}

// Package sqlite implements storage.Repository on SQLite using database/sql
// and the pure-Go modernc driver. SQLite has no bulk-load API like Postgres
// COPY; rows go through a prepared INSERT inside one transaction per call.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	gddl "fwingest/internal/ddl"
	"fwingest/internal/dictionary"
	"fwingest/internal/storage"
	sqliteddl "fwingest/internal/storage/sqlite/ddl"
)

// Repository is a SQLite-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository opens a SQLite database using the provided DSN and returns
// a Repository plus a Close function for cleanup.
//
// DSN is passed directly to database/sql; for example:
//
//	"file:fwingest.db?cache=shared"
//	"fwingest.db"
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = defaultBusyTimeout
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" databases
	// alive for the Repository's lifetime.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.BusyTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	_, _ = db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d;", cfg.BusyTimeout.Milliseconds()))

	closeFn := func() { db.Close() }
	return &Repository{db: db, cfg: cfg}, closeFn, nil
}

// ReplaceTable implements storage.Repository.
func (r *Repository) ReplaceTable(ctx context.Context, def gddl.TableDef, rows [][]any) (int64, error) {
	create, err := sqliteddl.BuildCreateTableSQL(def)
	if err != nil {
		return 0, err
	}

	var n int64
	err = r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, sqliteddl.BuildDropTableSQL(def.FQN)); err != nil {
			return fmt.Errorf("sqlite: drop %s: %w", def.FQN, err)
		}
		if _, err := tx.ExecContext(ctx, create); err != nil {
			return fmt.Errorf("sqlite: create %s: %w", def.FQN, err)
		}
		inserted, err := insertRows(ctx, tx, def.FQN, def.ColumnNames(), rows)
		n = inserted
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// CopyFrom implements storage.Repository. It returns the number of rows
// inserted; on error nothing from this call is kept.
func (r *Repository) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("sqlite: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}
	var n int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		inserted, err := insertRows(ctx, tx, table, columns, rows)
		n = inserted
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Columns implements storage.Repository.
func (r *Repository) Columns(ctx context.Context, table string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, sqliteddl.BuildProbeSQL(table))
	if err != nil {
		return nil, classify(table, err)
	}
	defer rows.Close()
	names, err := rows.Columns()
	if err != nil {
		return nil, classify(table, err)
	}
	return names, nil
}

// ReadDictionary implements storage.Repository.
func (r *Repository) ReadDictionary(ctx context.Context, table string) ([]dictionary.Entry, error) {
	q := sqliteddl.BuildSelectSQL(table,
		[]string{storage.DictColumnIndex, storage.DictWidth, storage.DictVarCode},
		storage.DictColumnIndex)
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, classify(table, err)
	}
	defer rows.Close()

	var out []dictionary.Entry
	for rows.Next() {
		var e dictionary.Entry
		if err := rows.Scan(&e.ColumnIndex, &e.Width, &e.VariableCode); err != nil {
			return nil, fmt.Errorf("sqlite: scan %s: %w", table, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(table, err)
	}
	return out, nil
}

// ReadLayout implements storage.Repository.
func (r *Repository) ReadLayout(ctx context.Context, table string) (storage.StagingLayout, bool, error) {
	q := sqliteddl.BuildSelectSQL(table,
		[]string{storage.LayoutFingerprint, storage.LayoutColumns},
		storage.LayoutFingerprint)
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return storage.StagingLayout{}, false, classify(table, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return storage.StagingLayout{}, false, classify(table, err)
		}
		return storage.StagingLayout{}, false, nil
	}
	var l storage.StagingLayout
	if err := rows.Scan(&l.Fingerprint, &l.Columns); err != nil {
		return storage.StagingLayout{}, false, fmt.Errorf("sqlite: scan %s: %w", table, err)
	}
	return l, true, nil
}

// Project implements storage.Repository.
func (r *Repository) Project(ctx context.Context, p storage.Projection) (storage.ProjectResult, error) {
	var res storage.ProjectResult
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, sqliteddl.BuildTruncateSQL(p.Target)); err != nil {
			return classify(p.Target, err)
		}
		if len(p.Pairs) == 0 {
			return nil
		}
		res.Statement = storage.InsertSelectSQL(storage.ANSI, p)
		out, err := tx.ExecContext(ctx, res.Statement)
		if err != nil {
			return classify(p.Staging, err)
		}
		res.Rows, err = out.RowsAffected()
		return err
	})
	if err != nil {
		return storage.ProjectResult{Statement: res.Statement}, err
	}
	return res, nil
}

// withTx runs fn in a transaction, committing on success.
func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// insertRows runs a prepared INSERT per row. Every row must have exactly
// len(columns) values.
func insertRows(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	stmt, err := tx.PrepareContext(ctx, sqliteddl.BuildInsertSQL(table, columns))
	if err != nil {
		return 0, fmt.Errorf("sqlite: prepare insert: %w", classify(table, err))
	}
	defer stmt.Close()

	var inserted int64
	for i, row := range rows {
		if len(row) != len(columns) {
			return inserted, fmt.Errorf("sqlite: row %d: length %d != columns length %d", i+1, len(row), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return inserted, fmt.Errorf("sqlite: insert row %d: %w", i+1, err)
		}
		inserted++
	}
	return inserted, nil
}

// classify marks a missing relation with storage.ErrTableNotFound. The
// driver reports it only through the message text.
func classify(table string, err error) error {
	if strings.Contains(err.Error(), "no such table") {
		return fmt.Errorf("sqlite: %s: %w: %w", table, storage.ErrTableNotFound, err)
	}
	return fmt.Errorf("sqlite: %s: %w", table, err)
}

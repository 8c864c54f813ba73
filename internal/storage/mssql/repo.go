// Package mssql implements storage.Repository on Microsoft SQL Server using
// database/sql and the go-mssqldb bulk copy API. SQL Server DDL is
// transactional, so a relation is dropped, recreated and bulk loaded inside
// one transaction.
package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	gddl "fwingest/internal/ddl"
	"fwingest/internal/dictionary"
	"fwingest/internal/storage"
	msddl "fwingest/internal/storage/mssql/ddl"
)

// invalidObjectName is the server error number for a missing relation.
const invalidObjectName = 208

// Config holds MSSQL repository configuration.
type Config struct {
	DSN string
}

// Repository is an MSSQL-backed implementation of storage.Repository.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	closeFn := func() { _ = db.Close() }
	return &Repository{db: db}, closeFn, nil
}

// ReplaceTable implements storage.Repository.
func (r *Repository) ReplaceTable(ctx context.Context, def gddl.TableDef, rows [][]any) (int64, error) {
	create, err := msddl.BuildCreateTableSQL(def)
	if err != nil {
		return 0, err
	}
	var n int64
	err = r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, msddl.BuildDropTableSQL(def.FQN)); err != nil {
			return fmt.Errorf("drop %s: %w", def.FQN, err)
		}
		if _, err := tx.ExecContext(ctx, create); err != nil {
			return fmt.Errorf("create %s: %w", def.FQN, err)
		}
		copied, err := bulkCopy(ctx, tx, def.FQN, def.ColumnNames(), rows)
		n = copied
		return err
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
	var n int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		copied, err := bulkCopy(ctx, tx, table, columns, rows)
		n = copied
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Columns implements storage.Repository.
func (r *Repository) Columns(ctx context.Context, table string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, msddl.BuildProbeSQL(table))
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
	q := msddl.BuildSelectSQL(table,
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
			return nil, fmt.Errorf("scan %s: %w", table, err)
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
	q := msddl.BuildSelectSQL(table,
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
		return storage.StagingLayout{}, false, fmt.Errorf("scan %s: %w", table, err)
	}
	return l, true, nil
}

// Project implements storage.Repository.
func (r *Repository) Project(ctx context.Context, p storage.Projection) (storage.ProjectResult, error) {
	var res storage.ProjectResult
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, msddl.BuildTruncateSQL(p.Target)); err != nil {
			return classify(p.Target, err)
		}
		if len(p.Pairs) == 0 {
			return nil
		}
		res.Statement = storage.InsertSelectSQL(msddl.Brackets{}, p)
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

func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// bulkCopy streams rows through a CopyIn statement bound to tx.
func bulkCopy(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(msddl.Brackets{}.FQN(table), mssql.BulkOptions{}, columns...))
	if err != nil {
		return 0, fmt.Errorf("prepare bulk: %w", classify(table, err))
	}
	for i := range rows {
		if _, err := stmt.ExecContext(ctx, rows[i]...); err != nil {
			_ = stmt.Close()
			return 0, fmt.Errorf("bulk row %d: %w", i+1, err)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("bulk finalize: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// classify marks a missing relation with storage.ErrTableNotFound.
func classify(table string, err error) error {
	if isMissingTable(err) {
		return fmt.Errorf("%s: %w: %w", table, storage.ErrTableNotFound, err)
	}
	return fmt.Errorf("%s: %w", table, err)
}

func isMissingTable(err error) bool {
	var numbered interface{ SQLErrorNumber() int32 }
	return errors.As(err, &numbered) && numbered.SQLErrorNumber() == invalidObjectName
}

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	gddl "fwingest/internal/ddl"
	"fwingest/internal/dictionary"
	"fwingest/internal/storage"
)

// startPostgres runs a throwaway Postgres container and returns a connected
// Repository. It skips under -short and when no container runtime is usable.
func startPostgres(t *testing.T) *Repository {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("fwingest"),
		tcpostgres.WithUsername("fwingest"),
		tcpostgres.WithPassword("fwingest"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = container.Terminate(ctx)
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	repo, closeFn, err := NewRepository(ctx, Config{DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(closeFn)
	return repo
}

func TestRepositoryLifecycle(t *testing.T) {
	repo := startPostgres(t)
	ctx := context.Background()

	// Dictionary round trip.
	entries := []dictionary.Entry{
		{ColumnIndex: 3, Width: 1, VariableCode: "SEXO"},
		{ColumnIndex: 1, Width: 2, VariableCode: "UF"},
	}
	n, err := repo.ReplaceTable(ctx, storage.DictionaryTable("public.pnad_dict"), storage.DictionaryRows(entries))
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	got, err := repo.ReadDictionary(ctx, "public.pnad_dict")
	require.NoError(t, err)
	require.Equal(t, []dictionary.Entry{
		{ColumnIndex: 1, Width: 2, VariableCode: "UF"},
		{ColumnIndex: 3, Width: 1, VariableCode: "SEXO"},
	}, got)

	// Staging: replace then append.
	staging := gddl.TextTable("pnad_staging_raw", []string{"col1", "col2"})
	_, err = repo.ReplaceTable(ctx, staging, [][]any{{"35", "1"}})
	require.NoError(t, err)
	_, err = repo.CopyFrom(ctx, "pnad_staging_raw", staging.ColumnNames(), [][]any{{"33", "2"}, {"11", nil}})
	require.NoError(t, err)

	cols, err := repo.Columns(ctx, "pnad_staging_raw")
	require.NoError(t, err)
	require.Equal(t, []string{"col1", "col2"}, cols)

	// Target and projection, run twice to show it is idempotent.
	_, err = repo.ReplaceTable(ctx, gddl.TextTable("pnad_educacao", []string{"UF", "SEXO"}), nil)
	require.NoError(t, err)

	p := storage.Projection{
		Staging: "pnad_staging_raw",
		Target:  "pnad_educacao",
		Pairs:   []storage.ColumnPair{{Source: "col1", Target: "UF"}, {Source: "col2", Target: "SEXO"}},
	}
	for i := 0; i < 2; i++ {
		res, err := repo.Project(ctx, p)
		require.NoError(t, err)
		require.EqualValues(t, 3, res.Rows)
		require.Contains(t, res.Statement, `INSERT INTO "pnad_educacao"`)
	}

	var uf, sexo string
	err = repo.pool.QueryRow(ctx, `SELECT "UF", "SEXO" FROM pnad_educacao WHERE "UF" = '35'`).Scan(&uf, &sexo)
	require.NoError(t, err)
	require.Equal(t, "35", uf)
	require.Equal(t, "1", sexo)

	// Replacing again drops the old relation.
	_, err = repo.ReplaceTable(ctx, gddl.TextTable("pnad_staging_raw", []string{"col1"}), nil)
	require.NoError(t, err)
	cols, err = repo.Columns(ctx, "pnad_staging_raw")
	require.NoError(t, err)
	require.Equal(t, []string{"col1"}, cols)
}

func TestRepositoryMissingTable(t *testing.T) {
	repo := startPostgres(t)
	ctx := context.Background()

	_, err := repo.Columns(ctx, "does_not_exist")
	require.True(t, errors.Is(err, storage.ErrTableNotFound), "Columns err = %v", err)

	_, err = repo.ReadDictionary(ctx, "does_not_exist")
	require.True(t, errors.Is(err, storage.ErrTableNotFound), "ReadDictionary err = %v", err)
}

//go:build integration

package mssql

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	gddl "fwingest/internal/ddl"
	"fwingest/internal/dictionary"
	"fwingest/internal/storage"
)

// getTestDSN reads the MSSQL_TEST_DSN environment variable.
// If it is empty, the caller should skip the test.
func getTestDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("MSSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("MSSQL_TEST_DSN not set; skipping MSSQL integration tests")
	}
	return dsn
}

func TestRepositoryIntegration(t *testing.T) {
	dsn := getTestDSN(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo, closeFn, err := NewRepository(ctx, Config{DSN: dsn})
	require.NoError(t, err)
	defer closeFn()

	_, err = repo.ReplaceTable(ctx, storage.DictionaryTable("dbo.fw_dict_it"), storage.DictionaryRows([]dictionary.Entry{
		{ColumnIndex: 3, Width: 1, VariableCode: "SEXO"},
		{ColumnIndex: 1, Width: 2, VariableCode: "UF"},
	}))
	require.NoError(t, err)

	entries, err := repo.ReadDictionary(ctx, "dbo.fw_dict_it")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "UF", entries[0].VariableCode)

	staging := gddl.TextTable("dbo.fw_staging_it", []string{"col1", "col2"})
	n, err := repo.ReplaceTable(ctx, staging, [][]any{{"35", "1"}, {"33", "2"}})
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	cols, err := repo.Columns(ctx, "dbo.fw_staging_it")
	require.NoError(t, err)
	require.Equal(t, []string{"col1", "col2"}, cols)

	_, err = repo.ReplaceTable(ctx, gddl.TextTable("dbo.fw_target_it", []string{"UF", "SEXO"}), nil)
	require.NoError(t, err)

	res, err := repo.Project(ctx, storage.Projection{
		Staging: "dbo.fw_staging_it",
		Target:  "dbo.fw_target_it",
		Pairs:   []storage.ColumnPair{{Source: "col1", Target: "UF"}, {Source: "col2", Target: "SEXO"}},
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, res.Rows)

	_, err = repo.Columns(ctx, "dbo.fw_missing_it")
	require.ErrorIs(t, err, storage.ErrTableNotFound)
}

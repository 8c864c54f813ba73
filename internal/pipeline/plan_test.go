package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"fwingest/internal/dictionary"
	"fwingest/internal/etlerr"
	"fwingest/internal/storage"
)

func entries(codes ...string) []dictionary.Entry {
	out := make([]dictionary.Entry, len(codes))
	pos := 1
	for i, c := range codes {
		out[i] = dictionary.Entry{ColumnIndex: pos, Width: 2, VariableCode: c}
		pos += 2
	}
	return out
}

func TestPlanProjection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		entries      []dictionary.Entry
		staging      []string
		wantPairs    []storage.ColumnPair
		wantExcluded []string
		wantErr      error
	}{
		{
			name:    "exact",
			entries: entries("UF", "SEXO"),
			staging: []string{"col1", "col2"},
			wantPairs: []storage.ColumnPair{
				{Source: "col1", Target: "UF"},
				{Source: "col2", Target: "SEXO"},
			},
		},
		{
			name:         "dictionary wider than staging",
			entries:      entries("UF", "SEXO", "V2009"),
			staging:      []string{"col1", "col2"},
			wantPairs:    []storage.ColumnPair{{Source: "col1", Target: "UF"}, {Source: "col2", Target: "SEXO"}},
			wantExcluded: []string{"V2009"},
		},
		{
			name:    "staging wider than dictionary",
			entries: entries("UF"),
			staging: []string{"col1", "col2"},
			wantErr: etlerr.ErrLayoutMismatch,
		},
		{
			name:    "gap in ordinals",
			entries: entries("UF", "SEXO"),
			staging: []string{"col1", "col3"},
			wantErr: etlerr.ErrLayoutMismatch,
		},
		{
			name:    "named staging column",
			entries: entries("UF"),
			staging: []string{"UF"},
			wantErr: etlerr.ErrLayoutMismatch,
		},
		{
			name:    "no entries",
			staging: []string{"col1"},
			wantErr: etlerr.ErrEmptyDictionary,
		},
		{
			name:    "no staging columns",
			entries: entries("UF"),
			wantErr: etlerr.ErrEmptyStaging,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			plan, err := PlanProjection(tt.entries, tt.staging)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantPairs, plan.Pairs)
			require.Equal(t, len(tt.wantExcluded), len(plan.Excluded))
			for i, code := range tt.wantExcluded {
				require.Equal(t, code, plan.Excluded[i].VariableCode)
			}
		})
	}
}

func TestPlanTargets(t *testing.T) {
	t.Parallel()

	plan, err := PlanProjection(entries("UF", "SEXO"), []string{"col1", "col2"})
	require.NoError(t, err)
	require.Equal(t, []string{"UF", "SEXO"}, plan.Targets())
}

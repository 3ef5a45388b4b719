package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ozihaynes/hps-dealengine-sub010/internal/canon"
	"github.com/ozihaynes/hps-dealengine-sub010/internal/policy"
	"github.com/ozihaynes/hps-dealengine-sub010/internal/runrec"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func buildTestRun(t *testing.T, orgID, dealID string, posture policy.Posture, dealJSON string) *runrec.Run {
	t.Helper()
	deal, err := canon.Decode([]byte(dealJSON))
	require.NoError(t, err)

	run, err := runrec.BuildRun(runrec.Args{
		OrgID:   orgID,
		DealID:  dealID,
		Posture: posture,
		Deal:    deal,
		Outputs: map[string]any{"mao_final": 220000.0},
		Trace:   []map[string]any{{"rule": "MAO_CLAMP"}},
		PolicySnapshot: map[string]any{
			"aivSafetyCapPercentage": 0.96,
		},
	})
	require.NoError(t, err)
	return run
}

func TestSQLite_SaveAndGetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run := buildTestRun(t, "org-1", "deal-9", policy.PostureBase, `{"market":{"arv":300000}}`)

	saved, err := st.SaveRun(ctx, run)
	require.NoError(t, err)
	assert.Equal(t, run.ID, saved.ID)

	got, err := st.GetRun(ctx, run.ID.String())
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "org-1", got.OrgID)
	assert.Equal(t, "deal-9", got.DealID)
	assert.Equal(t, policy.PostureBase, got.Posture)
	assert.Equal(t, run.InputHash, got.InputHash)
	assert.Equal(t, run.OutputHash, got.OutputHash)
	assert.Equal(t, run.PolicyHash, got.PolicyHash)
	assert.Equal(t, map[string]any{"mao_final": 220000.0}, got.Output["outputs"])
	require.NoError(t, runrec.Verify(got))
}

func TestSQLite_SaveRun_DedupeReturnsExisting(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first := buildTestRun(t, "org-1", "deal-9", policy.PostureBase, `{"market":{"arv":300000}}`)
	second := buildTestRun(t, "org-1", "deal-9", policy.PostureBase, `{"market":{"arv":300000}}`)
	require.NotEqual(t, first.ID, second.ID)
	require.Equal(t, first.InputHash, second.InputHash)

	saved1, err := st.SaveRun(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, first.ID, saved1.ID)

	// The identical calculation resolves to the row already stored.
	saved2, err := st.SaveRun(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, first.ID, saved2.ID)

	runs, err := st.ListRuns(ctx, RunFilter{OrgID: "org-1"})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestSQLite_SaveRun_DifferentPostureIsNewRow(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	base := buildTestRun(t, "org-1", "deal-9", policy.PostureBase, `{"market":{"arv":300000}}`)
	aggressive := buildTestRun(t, "org-1", "deal-9", policy.PostureAggressive, `{"market":{"arv":300000}}`)

	_, err := st.SaveRun(ctx, base)
	require.NoError(t, err)
	_, err = st.SaveRun(ctx, aggressive)
	require.NoError(t, err)

	runs, err := st.ListRuns(ctx, RunFilter{OrgID: "org-1"})
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetRun(context.Background(), "11111111-2222-3333-4444-555555555555")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_ListRuns_Filters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	runA := buildTestRun(t, "org-1", "deal-a", policy.PostureBase, `{"market":{"arv":300000}}`)
	runB := buildTestRun(t, "org-1", "deal-b", policy.PostureConservative, `{"market":{"arv":410000}}`)
	runC := buildTestRun(t, "org-2", "deal-a", policy.PostureBase, `{"market":{"arv":550000}}`)
	for _, r := range []*runrec.Run{runA, runB, runC} {
		_, err := st.SaveRun(ctx, r)
		require.NoError(t, err)
	}

	byOrg, err := st.ListRuns(ctx, RunFilter{OrgID: "org-1"})
	require.NoError(t, err)
	assert.Len(t, byOrg, 2)

	byDeal, err := st.ListRuns(ctx, RunFilter{DealID: "deal-a"})
	require.NoError(t, err)
	assert.Len(t, byDeal, 2)

	byPosture, err := st.ListRuns(ctx, RunFilter{OrgID: "org-1", Posture: policy.PostureConservative})
	require.NoError(t, err)
	require.Len(t, byPosture, 1)
	assert.Equal(t, runB.ID, byPosture[0].ID)

	limited, err := st.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLite_SaveRun_NullDealID(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run := buildTestRun(t, "org-1", "", policy.PostureBase, `{"market":{"arv":300000}}`)
	_, err := st.SaveRun(ctx, run)
	require.NoError(t, err)

	got, err := st.GetRun(ctx, run.ID.String())
	require.NoError(t, err)
	assert.Empty(t, got.DealID)
}

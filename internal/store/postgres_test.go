package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ozihaynes/hps-dealengine-sub010/internal/policy"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func runRow(id, orgID, posture, inputHash, outputHash, policyHash string) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "org_id", "deal_id", "posture",
		"input", "output", "trace", "policy_snapshot",
		"input_hash", "output_hash", "policy_hash", "created_at",
	}).AddRow(
		id, orgID, (*string)(nil), posture,
		[]byte(`{"posture":"base"}`), []byte(`{"outputs":{}}`), []byte(`[]`), []byte(`{}`),
		inputHash, outputHash, policyHash, time.Now().UTC(),
	)
}

func TestPostgresStore_SaveRun_Insert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	run := buildTestRun(t, "org-1", "deal-9", policy.PostureBase, `{"market":{"arv":300000}}`)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(run.ID.String(), "org-1", pgxmock.AnyArg(), "base",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			run.InputHash, run.OutputHash, run.PolicyHash, run.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	saved, err := s.SaveRun(context.Background(), run)
	require.NoError(t, err)
	assert.Equal(t, run.ID, saved.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun_ConflictReturnsExisting(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	run := buildTestRun(t, "org-1", "deal-9", policy.PostureBase, `{"market":{"arv":300000}}`)
	existingID := "9f2b8c04-31a7-4a57-9d2e-6f1d3c5a7b90"

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(run.ID.String(), "org-1", pgxmock.AnyArg(), "base",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			run.InputHash, run.OutputHash, run.PolicyHash, run.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	mock.ExpectQuery(`SELECT .+ FROM runs\s+WHERE org_id = \$1 AND posture = \$2 AND input_hash = \$3 AND policy_hash = \$4`).
		WithArgs("org-1", "base", run.InputHash, run.PolicyHash).
		WillReturnRows(runRow(existingID, "org-1", "base", run.InputHash, run.OutputHash, run.PolicyHash))

	saved, err := s.SaveRun(context.Background(), run)
	require.NoError(t, err)
	assert.Equal(t, existingID, saved.ID.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_Filters(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM runs WHERE true AND org_id = \$1 AND posture = \$2 ORDER BY created_at DESC LIMIT \$3`).
		WithArgs("org-1", "aggressive", 100).
		WillReturnRows(runRow("9f2b8c04-31a7-4a57-9d2e-6f1d3c5a7b90", "org-1", "aggressive", "h1", "h2", "h3"))

	runs, err := s.ListRuns(context.Background(), RunFilter{
		OrgID:   "org-1",
		Posture: policy.PostureAggressive,
	})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "org-1", runs[0].OrgID)
	assert.Equal(t, policy.PostureAggressive, runs[0].Posture)
	assert.NoError(t, mock.ExpectationsWereMet())
}

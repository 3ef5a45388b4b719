package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/ozihaynes/hps-dealengine-sub010/internal/db"
	"github.com/ozihaynes/hps-dealengine-sub010/internal/policy"
	"github.com/ozihaynes/hps-dealengine-sub010/internal/runrec"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const runColumns = `id, org_id, deal_id, posture, input, output, trace, policy_snapshot, input_hash, output_hash, policy_hash, created_at`

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run": `INSERT INTO runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (org_id, posture, input_hash, policy_hash) DO NOTHING`,
	"get_run": `SELECT ` + runColumns + ` FROM runs WHERE id = $1`,
	"find_run_by_dedupe_key": `SELECT ` + runColumns + ` FROM runs
		WHERE org_id = $1 AND posture = $2 AND input_hash = $3 AND policy_hash = $4`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	org_id          TEXT NOT NULL,
	deal_id         TEXT,
	posture         TEXT NOT NULL,
	input           JSONB NOT NULL,
	output          JSONB NOT NULL,
	trace           JSONB NOT NULL,
	policy_snapshot JSONB NOT NULL,
	input_hash      TEXT NOT NULL,
	output_hash     TEXT NOT NULL,
	policy_hash     TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_runs_dedupe_key
	ON runs(org_id, posture, input_hash, policy_hash);
CREATE INDEX IF NOT EXISTS idx_runs_org_created ON runs(org_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_deal_id ON runs(deal_id) WHERE deal_id IS NOT NULL;
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, run *runrec.Run) (*runrec.Run, error) {
	enc, err := encodeRun(run)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: encode run")
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO runs (`+runColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (org_id, posture, input_hash, policy_hash) DO NOTHING`,
		run.ID.String(), run.OrgID, enc.dealID, string(run.Posture),
		enc.input, enc.output, enc.trace, enc.snapshot,
		run.InputHash, run.OutputHash, run.PolicyHash, run.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	if tag.RowsAffected() > 0 {
		return run, nil
	}

	// Conflict on the dedupe key: the identical calculation is already
	// stored, so return that row.
	existing, err := s.findByDedupeKey(ctx, run)
	if err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *PostgresStore) findByDedupeKey(ctx context.Context, run *runrec.Run) (*runrec.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM runs
		 WHERE org_id = $1 AND posture = $2 AND input_hash = $3 AND policy_hash = $4`,
		run.OrgID, string(run.Posture), run.InputHash, run.PolicyHash,
	)
	r, err := scanRun(row)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find run by dedupe key")
	}
	return r, nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*runrec.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = $1`,
		runID,
	)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(err, "postgres: get run %s: not found", runID)
		}
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]runrec.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.OrgID != "" {
		query += fmt.Sprintf(` AND org_id = $%d`, argIdx)
		args = append(args, filter.OrgID)
		argIdx++
	}
	if filter.DealID != "" {
		query += fmt.Sprintf(` AND deal_id = $%d`, argIdx)
		args = append(args, filter.DealID)
		argIdx++
	}
	if filter.Posture != "" {
		query += fmt.Sprintf(` AND posture = $%d`, argIdx)
		args = append(args, string(filter.Posture))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []runrec.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// encodedRun holds the JSON-serialized columns of a run ready for insertion.
type encodedRun struct {
	dealID   *string
	input    []byte
	output   []byte
	trace    []byte
	snapshot []byte
}

func encodeRun(run *runrec.Run) (*encodedRun, error) {
	enc := &encodedRun{}
	if run.DealID != "" {
		dealID := run.DealID
		enc.dealID = &dealID
	}

	var err error
	if enc.input, err = json.Marshal(run.Input); err != nil {
		return nil, eris.Wrap(err, "marshal input")
	}
	if enc.output, err = json.Marshal(run.Output); err != nil {
		return nil, eris.Wrap(err, "marshal output")
	}
	if enc.trace, err = json.Marshal(run.Trace); err != nil {
		return nil, eris.Wrap(err, "marshal trace")
	}
	if enc.snapshot, err = json.Marshal(run.PolicySnapshot); err != nil {
		return nil, eris.Wrap(err, "marshal policy snapshot")
	}
	return enc, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*runrec.Run, error) {
	var (
		r            runrec.Run
		id           string
		dealID       *string
		posture      string
		inputJSON    []byte
		outputJSON   []byte
		traceJSON    []byte
		snapshotJSON []byte
	)

	err := row.Scan(&id, &r.OrgID, &dealID, &posture,
		&inputJSON, &outputJSON, &traceJSON, &snapshotJSON,
		&r.InputHash, &r.OutputHash, &r.PolicyHash, &r.CreatedAt)
	if err != nil {
		return nil, err
	}

	if r.ID, err = uuid.Parse(id); err != nil {
		return nil, eris.Wrapf(err, "parse run id %s", id)
	}
	if dealID != nil {
		r.DealID = *dealID
	}
	r.Posture = policy.Posture(posture)

	if err := json.Unmarshal(inputJSON, &r.Input); err != nil {
		return nil, eris.Wrap(err, "unmarshal input")
	}
	if err := json.Unmarshal(outputJSON, &r.Output); err != nil {
		return nil, eris.Wrap(err, "unmarshal output")
	}
	if err := json.Unmarshal(traceJSON, &r.Trace); err != nil {
		return nil, eris.Wrap(err, "unmarshal trace")
	}
	if err := json.Unmarshal(snapshotJSON, &r.PolicySnapshot); err != nil {
		return nil, eris.Wrap(err, "unmarshal policy snapshot")
	}
	return &r, nil
}

package store

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/ozihaynes/hps-dealengine-sub010/internal/runrec"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sdb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := sdb.Exec(pragma); err != nil {
			sdb.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sdb}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	org_id          TEXT NOT NULL,
	deal_id         TEXT,
	posture         TEXT NOT NULL,
	input           TEXT NOT NULL,
	output          TEXT NOT NULL,
	trace           TEXT NOT NULL,
	policy_snapshot TEXT NOT NULL,
	input_hash      TEXT NOT NULL,
	output_hash     TEXT NOT NULL,
	policy_hash     TEXT NOT NULL,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_runs_dedupe_key
	ON runs(org_id, posture, input_hash, policy_hash);
CREATE INDEX IF NOT EXISTS idx_runs_org_created ON runs(org_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_deal_id ON runs(deal_id) WHERE deal_id IS NOT NULL;
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *runrec.Run) (*runrec.Run, error) {
	enc, err := encodeRun(run)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: encode run")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (org_id, posture, input_hash, policy_hash) DO NOTHING`,
		run.ID.String(), run.OrgID, enc.dealID, string(run.Posture),
		string(enc.input), string(enc.output), string(enc.trace), string(enc.snapshot),
		run.InputHash, run.OutputHash, run.PolicyHash, run.CreatedAt.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: rows affected")
	}
	if n > 0 {
		return run, nil
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs
		 WHERE org_id = ? AND posture = ? AND input_hash = ? AND policy_hash = ?`,
		run.OrgID, string(run.Posture), run.InputHash, run.PolicyHash,
	)
	existing, err := scanRun(row)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find run by dedupe key")
	}
	return existing, nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*runrec.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("sqlite: run not found: %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]runrec.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	var args []any

	if filter.OrgID != "" {
		query += ` AND org_id = ?`
		args = append(args, filter.OrgID)
	}
	if filter.DealID != "" {
		query += ` AND deal_id = ?`
		args = append(args, filter.DealID)
	}
	if filter.Posture != "" {
		query += ` AND posture = ?`
		args = append(args, string(filter.Posture))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []runrec.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

// Package store persists calculation runs. Runs are immutable: a saved row
// is never updated, and re-submitting an identical calculation (same org,
// posture, input hash, and policy hash) returns the previously stored run
// instead of writing a duplicate.
package store

import (
	"context"

	"github.com/ozihaynes/hps-dealengine-sub010/internal/policy"
	"github.com/ozihaynes/hps-dealengine-sub010/internal/runrec"
)

// RunFilter specifies criteria for listing runs. Zero-value fields are
// ignored.
type RunFilter struct {
	OrgID   string         `json:"org_id,omitempty"`
	DealID  string         `json:"deal_id,omitempty"`
	Posture policy.Posture `json:"posture,omitempty"`
	Limit   int            `json:"limit,omitempty"`
	Offset  int            `json:"offset,omitempty"`
}

// Store defines the persistence interface for run records.
type Store interface {
	// SaveRun inserts the run, or returns the already-stored run when one
	// with the same dedupe key exists. The returned run is always the row
	// that is actually in the database.
	SaveRun(ctx context.Context, run *runrec.Run) (*runrec.Run, error)
	GetRun(ctx context.Context, runID string) (*runrec.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]runrec.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

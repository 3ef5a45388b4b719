// Package engine assembles one full calculation: resolve the effective
// policy, run the underwrite computation, build the immutable run record,
// and optionally persist it. The CLI and the HTTP server both drive this
// package rather than wiring the pieces themselves.
package engine

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ozihaynes/hps-dealengine-sub010/internal/doubleclose"
	"github.com/ozihaynes/hps-dealengine-sub010/internal/policy"
	"github.com/ozihaynes/hps-dealengine-sub010/internal/runrec"
	"github.com/ozihaynes/hps-dealengine-sub010/internal/store"
	"github.com/ozihaynes/hps-dealengine-sub010/internal/underwrite"
)

// Config wires an Engine. Store may be nil when persistence is not wanted;
// saving then becomes a no-op error.
type Config struct {
	Store          store.Store
	OrgID          string
	DefaultPosture policy.Posture
	OrgTokens      map[string]any
	RateTable      doubleclose.RateTable
	MaxConcurrent  int
}

// Engine runs calculations against a fixed org configuration.
type Engine struct {
	store          store.Store
	orgID          string
	defaultPosture policy.Posture
	orgTokens      map[string]any
	rateTable      doubleclose.RateTable
	maxConcurrent  int
}

// New builds an Engine from config, applying defaults for unset fields.
func New(cfg Config) *Engine {
	posture := cfg.DefaultPosture
	if posture == "" {
		posture = policy.PostureBase
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	rateTable := cfg.RateTable
	if len(rateTable.TitlePremiumBands) == 0 {
		rateTable = doubleclose.DefaultRateTable()
	}
	return &Engine{
		store:          cfg.Store,
		orgID:          cfg.OrgID,
		defaultPosture: posture,
		orgTokens:      cfg.OrgTokens,
		rateTable:      rateTable,
		maxConcurrent:  maxConcurrent,
	}
}

// AnalyzeRequest is one deal to calculate. Posture and OrgID fall back to
// the engine defaults when empty.
type AnalyzeRequest struct {
	OrgID   string                 `json:"org_id,omitempty"`
	DealID  string                 `json:"deal_id,omitempty"`
	Posture string                 `json:"posture,omitempty"`
	Deal    []byte                 `json:"deal"`
	Sandbox *policy.SandboxOptions `json:"sandbox,omitempty"`
	Save    bool                   `json:"save,omitempty"`
}

// AnalyzeResult pairs the computed result with its run record. Deduped is
// true when saving resolved to a previously stored identical run.
type AnalyzeResult struct {
	Run     *runrec.Run        `json:"run"`
	Result  *underwrite.Result `json:"result"`
	Deduped bool               `json:"deduped,omitempty"`
}

// AnalyzeDeal runs one calculation end to end.
func (e *Engine) AnalyzeDeal(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error) {
	orgID := req.OrgID
	if orgID == "" {
		orgID = e.orgID
	}
	postureStr := req.Posture
	if postureStr == "" {
		postureStr = string(e.defaultPosture)
	}
	posture, err := policy.ParsePosture(postureStr)
	if err != nil {
		return nil, err
	}

	deal, err := underwrite.ParseDeal(req.Deal)
	if err != nil {
		return nil, err
	}

	base := policy.BasePolicy{Posture: posture, Tokens: e.orgTokens}
	pol, err := policy.Resolve(base, posture, req.Sandbox)
	if err != nil {
		return nil, err
	}

	result, err := underwrite.Compute(deal, pol)
	if err != nil {
		return nil, err
	}

	run, err := runrec.BuildRun(runrec.Args{
		OrgID:          orgID,
		DealID:         req.DealID,
		Posture:        posture,
		Deal:           deal.Value(),
		Sandbox:        req.Sandbox,
		Outputs:        result.Outputs,
		Trace:          result.Trace,
		PolicySnapshot: pol.Snapshot(),
	})
	if err != nil {
		return nil, err
	}

	out := &AnalyzeResult{Run: run, Result: result}
	if req.Save {
		if e.store == nil {
			return nil, eris.New("engine: no store configured for saving runs")
		}
		saved, err := e.store.SaveRun(ctx, run)
		if err != nil {
			return nil, err
		}
		out.Deduped = saved.ID != run.ID
		out.Run = saved
	}

	zap.L().Info("deal analyzed",
		zap.String("org_id", orgID),
		zap.String("deal_id", req.DealID),
		zap.String("posture", string(posture)),
		zap.String("workflow_state", string(result.Outputs.WorkflowState)),
		zap.Int("info_needed", len(result.InfoNeeded)),
		zap.Bool("deduped", out.Deduped),
	)
	return out, nil
}

// BatchItem is one entry of a batch calculation. Err is set per item; one
// bad deal does not abort the batch.
type BatchItem struct {
	Request AnalyzeRequest `json:"-"`
	Label   string         `json:"label"`
	Result  *AnalyzeResult `json:"result,omitempty"`
	Err     error          `json:"-"`
}

// AnalyzeBatch runs requests concurrently, bounded by the configured limit.
func (e *Engine) AnalyzeBatch(ctx context.Context, items []BatchItem) []BatchItem {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrent)

	out := make([]BatchItem, len(items))
	copy(out, items)
	for i := range out {
		g.Go(func() error {
			res, err := e.AnalyzeDeal(ctx, out[i].Request)
			out[i].Result = res
			out[i].Err = err
			if err != nil {
				zap.L().Error("batch item failed",
					zap.String("label", out[i].Label),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// DoubleClose computes closing costs for both sides using the engine's rate
// table.
func (e *Engine) DoubleClose(in doubleclose.Input) (*doubleclose.Result, error) {
	return doubleclose.Compute(in, e.rateTable)
}

// RateTable exposes the configured rate table.
func (e *Engine) RateTable() doubleclose.RateTable {
	return e.rateTable
}

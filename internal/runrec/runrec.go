// Package runrec assembles persistable run records: the input and output
// envelopes of one calculation, canonically hashed for idempotent persistence
// and tamper evidence. Building a run performs no I/O; persistence is the
// store's job.
package runrec

import (
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/ozihaynes/hps-dealengine-sub010/internal/canon"
	"github.com/ozihaynes/hps-dealengine-sub010/internal/policy"
)

// Run is one immutable unit of work. Superseding calculations create new
// runs; nothing mutates an existing one. The hashes are derived from the
// envelopes at build time, never supplied by the caller.
type Run struct {
	ID             uuid.UUID      `json:"id"`
	OrgID          string         `json:"org_id"`
	DealID         string         `json:"deal_id,omitempty"`
	Posture        policy.Posture `json:"posture"`
	Input          map[string]any `json:"input"`
	Output         map[string]any `json:"output"`
	Trace          any            `json:"trace"`
	PolicySnapshot map[string]any `json:"policy_snapshot"`
	InputHash      string         `json:"input_hash"`
	OutputHash     string         `json:"output_hash"`
	PolicyHash     string         `json:"policy_hash"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Args bundles everything a run records. Deal is the raw fact tree; Outputs
// and Trace are whatever the calculator produced, hashed through their JSON
// shape.
type Args struct {
	OrgID          string
	DealID         string
	Posture        policy.Posture
	Deal           canon.Value
	Sandbox        *policy.SandboxOptions
	RepairProfile  any
	Outputs        any
	Trace          any
	PolicySnapshot map[string]any
}

// BuildRun assembles the input envelope {posture, deal, sandbox, dealId,
// repairProfile} and output envelope {outputs, trace}, canonically hashes
// both plus the policy snapshot, and returns the immutable run. Values that
// cannot be canonically encoded (cycles, unsupported types) fail the build.
func BuildRun(args Args) (*Run, error) {
	if args.OrgID == "" {
		return nil, eris.New("runrec: org id is required")
	}
	if _, err := policy.ParsePosture(string(args.Posture)); err != nil {
		return nil, err
	}

	input := map[string]any{
		"posture":       string(args.Posture),
		"deal":          args.Deal.Interface(),
		"sandbox":       args.Sandbox,
		"dealId":        args.DealID,
		"repairProfile": args.RepairProfile,
	}
	output := map[string]any{
		"outputs": args.Outputs,
		"trace":   args.Trace,
	}

	inputHash, err := canon.HashAny(input)
	if err != nil {
		return nil, eris.Wrap(err, "runrec: hash input envelope")
	}
	outputHash, err := canon.HashAny(output)
	if err != nil {
		return nil, eris.Wrap(err, "runrec: hash output envelope")
	}
	policyHash, err := canon.HashAny(args.PolicySnapshot)
	if err != nil {
		return nil, eris.Wrap(err, "runrec: hash policy snapshot")
	}

	return &Run{
		ID:             uuid.New(),
		OrgID:          args.OrgID,
		DealID:         args.DealID,
		Posture:        args.Posture,
		Input:          input,
		Output:         output,
		Trace:          args.Trace,
		PolicySnapshot: args.PolicySnapshot,
		InputHash:      inputHash,
		OutputHash:     outputHash,
		PolicyHash:     policyHash,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// Verify recomputes the envelope hashes and reports the first mismatch, the
// tamper-evidence check for a run read back from storage.
func Verify(run *Run) error {
	inputHash, err := canon.HashAny(run.Input)
	if err != nil {
		return eris.Wrap(err, "runrec: rehash input envelope")
	}
	if inputHash != run.InputHash {
		return eris.Errorf("runrec: input hash mismatch for run %s", run.ID)
	}
	outputHash, err := canon.HashAny(run.Output)
	if err != nil {
		return eris.Wrap(err, "runrec: rehash output envelope")
	}
	if outputHash != run.OutputHash {
		return eris.Errorf("runrec: output hash mismatch for run %s", run.ID)
	}
	return nil
}

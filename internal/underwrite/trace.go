// Package underwrite implements the deterministic underwriting calculators:
// AIV safety cap, carry months, fee preview, floors, buyer ceiling, spread
// ladder, cash gate, and the full analyze pass that composes them. Every
// function is a pure transformation of deal facts plus a resolved policy.
// Missing inputs never default silently: the output is withheld and an
// InfoNeeded marker records what was absent and where it should come from.
package underwrite

// Source-of-truth labels for InfoNeeded markers.
const (
	SourceInvestorSet   = "investor_set"
	SourceTeamPolicySet = "team_policy_set"
	SourceExternalFeed  = "external_feed"
	SourceUnknown       = "unknown"
)

// InfoNeeded marks a required deal or policy field that was absent at the
// point of use. Emitted alongside a nil output, never instead of an error for
// malformed input.
type InfoNeeded struct {
	Path          string `json:"path"`
	Token         string `json:"token,omitempty"`
	Reason        string `json:"reason"`
	SourceOfTruth string `json:"source_of_truth,omitempty"`
}

// TraceEntry records one rule application: which rule ran, the dotted paths
// of the raw inputs it consumed, and the intermediate values it produced.
// Trace order is computation order and is part of the audit record.
type TraceEntry struct {
	Rule    string         `json:"rule"`
	Used    []string       `json:"used"`
	Details map[string]any `json:"details,omitempty"`
}

// Trace rule names.
const (
	RuleAIVSafetyCap   = "AIV_SAFETY_CAP"
	RuleCarryMonths    = "CARRY_MONTHS"
	RuleFeesPreview    = "FEES_PREVIEW"
	RuleBuyerCeiling   = "BUYER_CEILING"
	RuleHoldCostPolicy = "HOLD_COST_POLICY"
	RuleRespectFloor   = "RESPECT_FLOOR"
	RuleMAOClamp       = "MAO_CLAMP"
	RuleSpreadLadder   = "SPREAD_LADDER"
	RuleCashGate       = "CASH_GATE"
	RuleBorderline     = "BORDERLINE"
)

// Recorder accumulates the ordered trace and InfoNeeded list for one
// calculation pass. Zero value is ready to use. Not safe for concurrent use;
// each calculation owns its own Recorder.
type Recorder struct {
	trace  []TraceEntry
	needed []InfoNeeded
}

// Trace appends a rule application to the audit trace.
func (r *Recorder) Trace(rule string, used []string, details map[string]any) {
	r.trace = append(r.trace, TraceEntry{Rule: rule, Used: used, Details: details})
}

// Need records an absent required input.
func (r *Recorder) Need(path, token, reason, source string) {
	r.needed = append(r.needed, InfoNeeded{
		Path:          path,
		Token:         token,
		Reason:        reason,
		SourceOfTruth: source,
	})
}

// Entries returns the ordered trace.
func (r *Recorder) Entries() []TraceEntry { return r.trace }

// Needed returns the accumulated InfoNeeded markers.
func (r *Recorder) Needed() []InfoNeeded { return r.needed }

// HasNeeds reports whether any required input was missing.
func (r *Recorder) HasNeeds() bool { return len(r.needed) > 0 }

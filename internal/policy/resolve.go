package policy

import (
	"sort"

	"github.com/rotisserie/eris"
)

// BasePolicy is the org-level policy document from the external policy source:
// a posture, a flat token map, and opaque metadata. The resolver treats it as
// data, not as a database client.
type BasePolicy struct {
	Posture  Posture        `json:"posture" yaml:"posture"`
	Tokens   map[string]any `json:"tokens,omitempty" yaml:"tokens,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// resolverReach maps every knob key the resolver can consume to the structured
// group serving it, or GroupFlat for keys served only by the flat map. This
// table is maintained by hand alongside the registry on purpose: the coverage
// test compares it against the registry so a newly declared knob that nobody
// wired here fails the build, not a production calculation.
var resolverReach = map[string]Group{
	KeyAIVSafetyCapPct:                        GroupValuation,
	KeyAIVHardMax:                             GroupValuation,
	KeyAIVHardMin:                             GroupValuation,
	KeyAIVSoftMaxVsARVMultiplier:              GroupValuation,
	KeyARVHardMax:                             GroupValuation,
	KeyARVHardMin:                             GroupValuation,
	KeyARVSoftMaxVsAIVMultiplier:              GroupValuation,
	KeyARVMinComps:                            GroupValuation,
	KeyARVSoftMaxCompsAgeDays:                 GroupValuation,
	KeyARVCompsSetSizeForMedian:               GroupValuation,
	KeyAIVCapOverrideApprovalRole:             GroupValuation,
	KeyAIVCapOverrideRequireBindableInsurance: GroupValuation,
	KeyAIVCapOverrideRequireClearTitle:        GroupValuation,
	KeyAIVCapOverrideRequireFastZip:           GroupValuation,
	KeyAIVCapOverrideRequireLoggedReason:      GroupValuation,

	KeyFloorInvestorDiscountP20Zip:      GroupFlat,
	KeyFloorInvestorDiscountTypicalZip:  GroupFlat,
	KeyFloorPayoffMinRetainedEquityPct:  GroupFlat,
	KeyFloorPayoffMoveOutCashDefault:    GroupFlat,
	KeyFloorPayoffMoveOutCashMin:        GroupFlat,
	KeyFloorPayoffMoveOutCashMax:        GroupFlat,
	KeyMinSpreadByARVBand:               GroupFlat,
	KeyWholesaleTargetMarginPct:         GroupFlat,
	KeyInitialOfferSpreadMultiplier:     GroupFlat,
	KeyAssignmentFeeTarget:              GroupFlat,
	KeyAssignmentFeeMaxPublicizedARVPct: GroupFlat,
	KeyListCommissionPct:                GroupFlat,
	KeyConcessionsPct:                   GroupFlat,
	KeySellClosePct:                     GroupFlat,

	KeyCarryMonthsCap:                    GroupCarryTimeline,
	KeyCarryMonthsFormula:                GroupCarryTimeline,
	KeyDaysToMoneySelectionMethod:        GroupCarryTimeline,
	KeyDaysToMoneyDefaultCashCloseDays:   GroupCarryTimeline,
	KeyDefaultDaysToWholesaleClose:       GroupCarryTimeline,
	KeyDaysToMoneyMaxDays:                GroupCarryTimeline,
	KeyHoldCostsFlipFastZip:              GroupCarryTimeline,
	KeyHoldCostsFlipNeutralZip:           GroupCarryTimeline,
	KeyHoldCostsFlipSlowZip:              GroupCarryTimeline,
	KeyHoldCostsWholetailFastZip:         GroupCarryTimeline,
	KeyHoldCostsWholetailNeutralZip:      GroupCarryTimeline,
	KeyHoldCostsWholetailSlowZip:         GroupCarryTimeline,
	KeyHoldCostsWholesaleMonthlyPctOfARV: GroupCarryTimeline,
	KeyHoldingCostsMonthlyTaxes:          GroupCarryTimeline,
	KeyHoldingCostsMonthlyInsurance:      GroupCarryTimeline,
	KeyHoldingCostsMonthlyHOA:            GroupCarryTimeline,
	KeyHoldingCostsMonthlyUtilities:      GroupCarryTimeline,

	KeyRepairsSoftMaxVsARVPct:       GroupRepairs,
	KeyRepairsHardMax:               GroupRepairs,
	KeyRepairsContingencyDefaultPct: GroupRepairs,

	KeyGateBankruptcyStay:       GroupComplianceRisk,
	KeyGateFHA90DayResale:       GroupComplianceRisk,
	KeyGateFIRPTAWithholding:    GroupComplianceRisk,
	KeyGateFlood50Rule:          GroupComplianceRisk,
	KeyGateSCRAVerification:     GroupComplianceRisk,
	KeyGateStateProgramOverlays: GroupComplianceRisk,
	KeyGateCondoWarrantability:  GroupComplianceRisk,

	KeyDoubleCloseMinSpreadThreshold: GroupDisposition,
	KeyDoubleClosePerDiemCarry:       GroupDisposition,
	KeyDeedDocStampRate:              GroupDisposition,
	KeyTitlePremiumRateSource:        GroupDisposition,
	KeyDispositionTrackEnablement:    GroupDisposition,

	KeyCashGateMinSpreadOverPayoff:  GroupWorkflow,
	KeyBorderlineBandThreshold:      GroupWorkflow,
	KeyAllowAdvisorWorkflowOverride: GroupWorkflow,
	KeyOfferValidityPeriodDays:      GroupWorkflow,
}

// CoverageGaps returns every non-UI-only registry key the resolver cannot
// reach through a structured group or the flat map. A non-empty result means
// a declared knob would be silently unused by the calculators; the policy
// tests require it to be empty.
func CoverageGaps() []string {
	var gaps []string
	for _, def := range Registry() {
		if def.UIOnly {
			continue
		}
		if _, ok := resolverReach[def.Key]; !ok {
			gaps = append(gaps, def.Key)
		}
	}
	sort.Strings(gaps)
	return gaps
}

// coverageGapsAgainst is the comparison CoverageGaps performs, parameterized
// for tests that need to prove removing a mapping is caught.
func coverageGapsAgainst(reach map[string]Group) []string {
	var gaps []string
	for _, def := range Registry() {
		if def.UIOnly {
			continue
		}
		if _, ok := reach[def.Key]; !ok {
			gaps = append(gaps, def.Key)
		}
	}
	sort.Strings(gaps)
	return gaps
}

// EffectivePolicy is the result of layering registry defaults, org tokens, the
// posture overlay, and sandbox overrides. Immutable once built: accessors
// return copies, and absent tokens report ok=false rather than a guessed
// value.
type EffectivePolicy struct {
	posture Posture
	flat    map[string]any
}

// Resolve layers the policy sources, later wins: (1) compiled registry
// defaults, (2) org-level base tokens, (3) the posture overlay for
// posture-aware knobs, (4) sandbox structured groups, (5) the sandbox flat
// map. Tokens with no default and no override stay absent; the calculators
// surface them as InfoNeeded at the point of use.
func Resolve(base BasePolicy, posture Posture, sandbox *SandboxOptions) (*EffectivePolicy, error) {
	if _, err := ParsePosture(string(posture)); err != nil {
		return nil, err
	}

	idx := knobIndex()
	flat := make(map[string]any, len(idx))

	for _, def := range Registry() {
		if def.Default != nil {
			flat[def.Key] = def.Default
		}
	}

	for key, raw := range base.Tokens {
		def, declared := idx[key]
		if !declared {
			continue
		}
		if v, ok := coerce(def, raw); ok {
			flat[key] = v
		}
	}

	for key, v := range PostureOverlay(posture) {
		flat[key] = v
	}

	applySandbox(flat, sandbox, idx)

	return &EffectivePolicy{posture: posture, flat: flat}, nil
}

// Posture returns the posture the policy was resolved under.
func (p *EffectivePolicy) Posture() Posture { return p.posture }

// Number returns the numeric token for key. ok is false when the token is
// absent or non-numeric.
func (p *EffectivePolicy) Number(key string) (float64, bool) {
	v, ok := p.flat[key]
	if !ok {
		return 0, false
	}
	return toNumber(v)
}

// Bool returns the boolean token for key.
func (p *EffectivePolicy) Bool(key string) (bool, bool) {
	v, ok := p.flat[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// String returns the string token for key.
func (p *EffectivePolicy) String(key string) (string, bool) {
	v, ok := p.flat[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// StringList returns the string-list token for key.
func (p *EffectivePolicy) StringList(key string) ([]string, bool) {
	v, ok := p.flat[key]
	if !ok {
		return nil, false
	}
	return toStringList(v)
}

// Bands returns the spread-band token for key.
func (p *EffectivePolicy) Bands(key string) ([]SpreadBand, bool) {
	v, ok := p.flat[key]
	if !ok {
		return nil, false
	}
	bands, ok := v.([]SpreadBand)
	return bands, ok
}

// Pct returns the numeric token normalized to a decimal fraction: values
// above 1 are read as percent points (12 means 12%).
func (p *EffectivePolicy) Pct(key string) (float64, bool) {
	n, ok := p.Number(key)
	if !ok {
		return 0, false
	}
	return pctToDecimal(n), true
}

// Flat returns a copy of the raw key-to-value view.
func (p *EffectivePolicy) Flat() map[string]any {
	out := make(map[string]any, len(p.flat))
	for k, v := range p.flat {
		out[k] = v
	}
	return out
}

// Grouped returns the structured view: resolved values grouped by domain,
// with flat-only keys under GroupFlat.
func (p *EffectivePolicy) Grouped() map[Group]map[string]any {
	out := make(map[Group]map[string]any)
	for key, v := range p.flat {
		g := resolverReach[key]
		if out[g] == nil {
			out[g] = make(map[string]any)
		}
		out[g][key] = v
	}
	return out
}

// Snapshot returns a plain-data image of the effective policy for embedding
// in a Run's policy snapshot.
func (p *EffectivePolicy) Snapshot() map[string]any {
	snap := map[string]any{
		"posture": string(p.posture),
		"tokens":  p.Flat(),
	}
	return snap
}

// MustResolve is Resolve for compiled-in callers that pass a known posture.
func MustResolve(base BasePolicy, posture Posture, sandbox *SandboxOptions) *EffectivePolicy {
	p, err := Resolve(base, posture, sandbox)
	if err != nil {
		panic(eris.ToString(err, true))
	}
	return p
}

package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_LayeringOrder(t *testing.T) {
	base := BasePolicy{
		Tokens: map[string]any{
			KeyListCommissionPct: 0.055,
			KeyCarryMonthsCap:    5.0, // posture overlay must win over org tokens
		},
	}
	sandbox := &SandboxOptions{
		Valuation: map[string]any{
			KeyAIVSafetyCapPct: 0.91,
		},
	}

	p, err := Resolve(base, PostureBase, sandbox)
	require.NoError(t, err)

	// Sandbox wins over the posture overlay.
	cap, ok := p.Number(KeyAIVSafetyCapPct)
	require.True(t, ok)
	assert.Equal(t, 0.91, cap)

	// Posture overlay wins over org tokens.
	months, ok := p.Number(KeyCarryMonthsCap)
	require.True(t, ok)
	assert.Equal(t, 4.0, months)

	// Org tokens win over registry defaults (no default for this key).
	list, ok := p.Number(KeyListCommissionPct)
	require.True(t, ok)
	assert.Equal(t, 0.055, list)

	// Registry defaults survive untouched layers.
	hardMax, ok := p.Number(KeyAIVHardMax)
	require.True(t, ok)
	assert.Equal(t, 2_000_000.0, hardMax)
}

func TestResolve_PostureShiftsThresholds(t *testing.T) {
	for _, tc := range []struct {
		posture Posture
		capPct  float64
		months  float64
	}{
		{PostureConservative, 0.93, 3},
		{PostureBase, 0.96, 4},
		{PostureAggressive, 0.98, 6},
	} {
		p, err := Resolve(BasePolicy{}, tc.posture, nil)
		require.NoError(t, err)

		cap, ok := p.Number(KeyAIVSafetyCapPct)
		require.True(t, ok, tc.posture)
		assert.Equal(t, tc.capPct, cap, tc.posture)

		months, ok := p.Number(KeyCarryMonthsCap)
		require.True(t, ok, tc.posture)
		assert.Equal(t, tc.months, months, tc.posture)
	}
}

func TestResolve_UnknownPostureRejected(t *testing.T) {
	_, err := Resolve(BasePolicy{}, Posture("yolo"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown posture")
}

func TestResolve_AbsentTokenStaysAbsent(t *testing.T) {
	p, err := Resolve(BasePolicy{}, PostureBase, nil)
	require.NoError(t, err)

	// Fee tokens have no compiled default and no override here.
	_, ok := p.Number(KeyConcessionsPct)
	assert.False(t, ok)
	_, ok = p.String(KeyCarryMonthsFormula)
	assert.False(t, ok)
}

func TestResolve_RawMapReachesFlatOnlyKeys(t *testing.T) {
	sandbox := &SandboxOptions{
		Raw: map[string]any{
			KeyFloorInvestorDiscountTypicalZip: 12.0,
			KeyMinSpreadByARVBand: []any{
				map[string]any{"maxArv": 250000.0, "minSpread": 18000.0},
				map[string]any{"minSpread": 28000.0, "minSpreadPct": 4.0},
			},
		},
	}
	p, err := Resolve(BasePolicy{}, PostureBase, sandbox)
	require.NoError(t, err)

	disc, ok := p.Pct(KeyFloorInvestorDiscountTypicalZip)
	require.True(t, ok)
	assert.Equal(t, 0.12, disc)

	bands, ok := p.Bands(KeyMinSpreadByARVBand)
	require.True(t, ok)
	require.Len(t, bands, 2)
	assert.Equal(t, 0.0, bands[0].MinARV)
	assert.Equal(t, 250_000.0, bands[1].MinARV)
	assert.Nil(t, bands[1].MaxARV)
	require.NotNil(t, bands[1].MinSpreadPct)
	assert.Equal(t, 0.04, *bands[1].MinSpreadPct)
}

func TestResolve_GroupOverrideInWrongGroupIgnored(t *testing.T) {
	sandbox := &SandboxOptions{
		// Carry cap offered under valuation: the resolver maps it to
		// carryTimeline, so this must not take effect.
		Valuation: map[string]any{KeyCarryMonthsCap: 12.0},
	}
	p, err := Resolve(BasePolicy{}, PostureBase, sandbox)
	require.NoError(t, err)

	months, ok := p.Number(KeyCarryMonthsCap)
	require.True(t, ok)
	assert.Equal(t, 4.0, months)
}

func TestResolve_CoercionFailureKeepsEarlierLayer(t *testing.T) {
	sandbox := &SandboxOptions{
		CarryTimeline: map[string]any{KeyCarryMonthsCap: "not-a-number"},
	}
	p, err := Resolve(BasePolicy{}, PostureBase, sandbox)
	require.NoError(t, err)

	months, ok := p.Number(KeyCarryMonthsCap)
	require.True(t, ok)
	assert.Equal(t, 4.0, months)
}

func TestResolve_UndeclaredKeyIgnored(t *testing.T) {
	sandbox := &SandboxOptions{
		Raw: map[string]any{"definitelyNotAKnob": 1.0},
	}
	p, err := Resolve(BasePolicy{}, PostureBase, sandbox)
	require.NoError(t, err)
	_, ok := p.flat["definitelyNotAKnob"]
	assert.False(t, ok)
}

func TestEffectivePolicy_Views(t *testing.T) {
	p, err := Resolve(BasePolicy{}, PostureBase, nil)
	require.NoError(t, err)

	flat := p.Flat()
	assert.Contains(t, flat, KeyAIVHardMax)

	// Mutating the returned view must not affect the policy.
	flat[KeyAIVHardMax] = 1.0
	hardMax, ok := p.Number(KeyAIVHardMax)
	require.True(t, ok)
	assert.Equal(t, 2_000_000.0, hardMax)

	grouped := p.Grouped()
	assert.Contains(t, grouped[GroupValuation], KeyAIVSafetyCapPct)
	assert.Contains(t, grouped[GroupWorkflow], KeyCashGateMinSpreadOverPayoff)
	assert.Contains(t, grouped[GroupFlat], KeyFloorPayoffMoveOutCashDefault)
}

func TestCoverage_NoGaps(t *testing.T) {
	assert.Empty(t, CoverageGaps(),
		"every non-UI-only knob must be reachable via a structured group or the flat map")
}

func TestCoverage_RemovedMappingIsCaught(t *testing.T) {
	reach := make(map[string]Group, len(resolverReach))
	for k, v := range resolverReach {
		reach[k] = v
	}
	delete(reach, KeyCashGateMinSpreadOverPayoff)

	gaps := coverageGapsAgainst(reach)
	assert.Equal(t, []string{KeyCashGateMinSpreadOverPayoff}, gaps)
}

func TestCoverage_UIOnlyKeysExcluded(t *testing.T) {
	for _, def := range Registry() {
		if !def.UIOnly {
			continue
		}
		_, reachable := resolverReach[def.Key]
		assert.False(t, reachable, "UI-only knob %s must not be wired into the resolver", def.Key)
	}
}

func TestRegistry_KeysUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, def := range Registry() {
		assert.False(t, seen[def.Key], "duplicate knob key %s", def.Key)
		seen[def.Key] = true
	}
}

func TestSelectBand(t *testing.T) {
	bands := DefaultSpreadBands()

	b := SelectBand(bands, 150_000)
	require.NotNil(t, b)
	assert.Equal(t, 15_000.0, b.MinSpread)

	b = SelectBand(bands, 700_000)
	require.NotNil(t, b)
	assert.Equal(t, 30_000.0, b.MinSpread)
	require.NotNil(t, b.MinSpreadPct)
}

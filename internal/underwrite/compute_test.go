package underwrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ozihaynes/hps-dealengine-sub010/internal/policy"
)

func fullTokens() map[string]any {
	return map[string]any{
		policy.KeyListCommissionPct:               0.06,
		policy.KeyConcessionsPct:                  0.01,
		policy.KeySellClosePct:                    0.01,
		policy.KeyCarryMonthsFormula:              "(DOM+35)/30",
		policy.KeyFloorInvestorDiscountP20Zip:     20.0,
		policy.KeyFloorInvestorDiscountTypicalZip: 12.0,
		policy.KeyFloorPayoffMinRetainedEquityPct: 5.0,
	}
}

func testDeal(t *testing.T, raw string) Deal {
	t.Helper()
	d, err := ParseDeal([]byte(raw))
	require.NoError(t, err)
	return d
}

const baseDealJSON = `{
	"market": {"arv": 300000, "aiv": 250000, "dom_zip": 40, "moi_zip": 5, "zip_percentile": 50},
	"debt": {"payoff": 150000},
	"costs": {"repairs_base": 0},
	"status": {"insurability": "bindable"}
}`

func TestCompute_ReadyForOffer(t *testing.T) {
	pol, err := policy.Resolve(policy.BasePolicy{Tokens: fullTokens()}, policy.PostureBase, nil)
	require.NoError(t, err)

	res, err := Compute(testDeal(t, baseDealJSON), pol)
	require.NoError(t, err)
	out := res.Outputs

	assert.Empty(t, res.InfoNeeded)

	// Cap: 250000 * 0.96, binding. Clear-title evidence is missing so the
	// override percentage is not applied.
	require.NotNil(t, out.Caps.AIVCapValue)
	assert.Equal(t, 240_000.0, *out.Caps.AIVCapValue)
	assert.True(t, out.Caps.AIVCapApplied)

	// Carry: (40+35)/30 = 2.5, under the base-posture cap of 4.
	require.NotNil(t, out.Carry.CarryMonths)
	assert.Equal(t, 2.5, *out.Carry.CarryMonths)
	assert.Equal(t, "(DOM+35)/30", out.Carry.MonthsRule)

	// Fees on the capped base price.
	require.NotNil(t, out.Fees.Preview)
	assert.Equal(t, 240_000.0, out.Fees.Preview.BasePrice)
	assert.Equal(t, 19_200.0, *out.Fees.Preview.TotalSellerSideCosts)

	// Ceiling: 300000*0.88 - 0 repairs - 24000 resale costs - 9000 carry
	// (2.5 months at 1% of ARV + 600 monthly bills).
	require.NotNil(t, out.BuyerCeiling)
	assert.Equal(t, 231_000.0, *out.BuyerCeiling)

	// Floors: typical-zip discount 12% of AIV vs payoff+equity+move-out.
	require.NotNil(t, out.FloorInvestor)
	assert.Equal(t, 220_000.0, *out.FloorInvestor)
	require.NotNil(t, out.PayoffPlusEssentials)
	assert.Equal(t, 165_500.0, *out.PayoffPlusEssentials)
	require.NotNil(t, out.RespectFloor)
	assert.Equal(t, 220_000.0, *out.RespectFloor)

	// MAO = min(floor 220000, cap 240000, ceiling 231000).
	require.NotNil(t, out.PrimaryOffer)
	assert.Equal(t, 220_000.0, *out.PrimaryOffer)
	assert.Equal(t, "wholesale", out.PrimaryOfferTrack)

	require.NotNil(t, out.SpreadCash)
	assert.Equal(t, 70_000.0, *out.SpreadCash)
	assert.Equal(t, GatePass, out.CashGateStatus)
	assert.Equal(t, 0.0, *out.CashDeficit)

	// ARV 300000 lands in the 200k-400k band.
	require.NotNil(t, out.MinSpreadRequired)
	assert.Equal(t, 20_000.0, *out.MinSpreadRequired)
	assert.False(t, out.BorderlineFlag)

	assert.Equal(t, StateReadyForOffer, out.WorkflowState)
	assert.Equal(t, GradeB, out.ConfidenceGrade)
	assert.Equal(t, "fair", out.SellerOfferBand)
	assert.Equal(t, "narrow_gap", out.GapFlag)
	assert.True(t, out.SweetSpotFlag)

	require.NotNil(t, out.TimelineSummary)
	assert.Equal(t, SpeedBalanced, out.TimelineSummary.SpeedBand)
	assert.Equal(t, "elevated", out.TimelineSummary.Urgency)
	require.NotNil(t, out.TimelineSummary.DaysToMoney)
	assert.Equal(t, 40.0, *out.TimelineSummary.DaysToMoney)

	require.NotNil(t, out.RiskSummary)
	assert.Equal(t, "pass", out.RiskSummary.Overall)
}

func TestCompute_NeedsReviewWhenOfferBelowFloor(t *testing.T) {
	pol, err := policy.Resolve(policy.BasePolicy{Tokens: fullTokens()}, policy.PostureBase, nil)
	require.NoError(t, err)

	deal := testDeal(t, `{
		"market": {"arv": 300000, "aiv": 250000, "dom_zip": 40, "moi_zip": 5, "zip_percentile": 50},
		"debt": {"payoff": 150000},
		"costs": {"repairs_base": 20000},
		"status": {"insurability": "bindable"}
	}`)
	res, err := Compute(deal, pol)
	require.NoError(t, err)
	out := res.Outputs

	// Repairs pull the ceiling to 211000, below the 220000 respect floor, so
	// the clamp anchors the offer under the floor.
	require.NotNil(t, out.BuyerCeiling)
	assert.Equal(t, 211_000.0, *out.BuyerCeiling)
	require.NotNil(t, out.PrimaryOffer)
	assert.Equal(t, 211_000.0, *out.PrimaryOffer)
	require.NotNil(t, out.WindowFloorToOffer)
	assert.Equal(t, -9_000.0, *out.WindowFloorToOffer)
	assert.Equal(t, StateNeedsReview, out.WorkflowState)
	assert.Equal(t, "low", out.SellerOfferBand)
	assert.Equal(t, "wide_gap", out.GapFlag)
}

func TestCompute_NeedsInfoWhenARVMissing(t *testing.T) {
	pol, err := policy.Resolve(policy.BasePolicy{Tokens: fullTokens()}, policy.PostureBase, nil)
	require.NoError(t, err)

	deal := testDeal(t, `{
		"market": {"aiv": 250000, "dom_zip": 40},
		"debt": {"payoff": 150000}
	}`)
	res, err := Compute(deal, pol)
	require.NoError(t, err)
	out := res.Outputs

	assert.Nil(t, out.BuyerCeiling)
	assert.Equal(t, StateNeedsInfo, out.WorkflowState)
	assert.Equal(t, GradeC, out.ConfidenceGrade)
	assert.True(t, out.BorderlineFlag)

	paths := make([]string, 0, len(res.InfoNeeded))
	for _, n := range res.InfoNeeded {
		paths = append(paths, n.Path)
	}
	assert.Contains(t, paths, "deal.market.arv")
}

func TestCompute_MissingPolicyTokensSurfaceAsInfoNeeded(t *testing.T) {
	// No org tokens: the fee, carry-formula, discount, and equity tokens have
	// no compiled default and must surface as InfoNeeded, never as zero.
	pol, err := policy.Resolve(policy.BasePolicy{}, policy.PostureBase, nil)
	require.NoError(t, err)

	res, err := Compute(testDeal(t, baseDealJSON), pol)
	require.NoError(t, err)
	out := res.Outputs

	assert.Nil(t, out.Carry.CarryMonths)
	require.NotNil(t, out.Fees.Preview)
	assert.Nil(t, out.Fees.Preview.TotalSellerSideCosts)
	assert.Nil(t, out.FloorInvestor)
	assert.Equal(t, GradeC, out.ConfidenceGrade)

	tokens := make([]string, 0, len(res.InfoNeeded))
	for _, n := range res.InfoNeeded {
		tokens = append(tokens, n.Token)
	}
	assert.Contains(t, tokens, "<DOM_TO_MONTHS_RULE>")
	assert.Contains(t, tokens, "<LIST_COMM_PCT>")
	assert.Contains(t, tokens, "<CONCESSIONS_PCT>")
	assert.Contains(t, tokens, "<SELL_CLOSE_PCT>")
	assert.Contains(t, tokens, "<INVESTOR_FLOOR_DISCOUNT>")
	assert.Contains(t, tokens, "<RETAINED_EQUITY_PCT>")
}

func TestCompute_UnparseableCarryFormulaIsHardError(t *testing.T) {
	tokens := fullTokens()
	tokens[policy.KeyCarryMonthsFormula] = "every thirty days"
	pol, err := policy.Resolve(policy.BasePolicy{Tokens: tokens}, policy.PostureBase, nil)
	require.NoError(t, err)

	_, err = Compute(testDeal(t, baseDealJSON), pol)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carry months rule")
}

func TestCompute_TraceOrderIsStable(t *testing.T) {
	pol, err := policy.Resolve(policy.BasePolicy{Tokens: fullTokens()}, policy.PostureBase, nil)
	require.NoError(t, err)

	res, err := Compute(testDeal(t, baseDealJSON), pol)
	require.NoError(t, err)

	var rules []string
	for _, e := range res.Trace {
		rules = append(rules, e.Rule)
	}
	assert.Equal(t, []string{
		RuleAIVSafetyCap,
		RuleCarryMonths,
		RuleFeesPreview,
		RuleBuyerCeiling,
		RuleHoldCostPolicy,
		RuleRespectFloor,
		RuleMAOClamp,
		RuleSpreadLadder,
		RuleCashGate,
		RuleBorderline,
	}, rules)
}

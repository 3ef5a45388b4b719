package underwrite

import (
	"fmt"
	"math"
	"strings"

	"github.com/ozihaynes/hps-dealengine-sub010/internal/policy"
)

// WorkflowState is the deal's advisory state after a compute pass.
type WorkflowState string

const (
	StateNeedsInfo     WorkflowState = "NeedsInfo"
	StateNeedsReview   WorkflowState = "NeedsReview"
	StateReadyForOffer WorkflowState = "ReadyForOffer"
)

// CashGateStatus is the outcome of the cash presentation gate.
type CashGateStatus string

const (
	GatePass      CashGateStatus = "pass"
	GateShortfall CashGateStatus = "shortfall"
	GateUnknown   CashGateStatus = "unknown"
)

// ConfidenceGrade is the A/B/C evidence rubric grade.
type ConfidenceGrade string

const (
	GradeA ConfidenceGrade = "A"
	GradeB ConfidenceGrade = "B"
	GradeC ConfidenceGrade = "C"
)

// CapsOut reports whether the AIV safety cap bound and at what value.
type CapsOut struct {
	AIVCapApplied bool     `json:"aivCapApplied"`
	AIVCapValue   *float64 `json:"aivCapValue"`
}

// CarryOut reports the carry months derivation.
type CarryOut struct {
	MonthsRule  string   `json:"monthsRule,omitempty"`
	MonthsCap   *float64 `json:"monthsCap"`
	RawMonths   *float64 `json:"rawMonths"`
	CarryMonths *float64 `json:"carryMonths"`
}

// FeesOut bundles the resolved seller-side rates and the preview amounts.
type FeesOut struct {
	Rates   FeeRatesOut `json:"rates"`
	Preview *FeePreview `json:"preview"`
}

// FeeRatesOut is the resolved-rate view; nil marks an unresolved token.
type FeeRatesOut struct {
	ListCommissionPct *float64 `json:"list_commission_pct"`
	ConcessionsPct    *float64 `json:"concessions_pct"`
	SellClosePct      *float64 `json:"sell_close_pct"`
}

// TimelineSummary condenses the deal's timing posture.
type TimelineSummary struct {
	DaysToMoney    *float64  `json:"days_to_money"`
	CarryMonths    *float64  `json:"carry_months"`
	SpeedBand      SpeedBand `json:"speed_band,omitempty"`
	Urgency        string    `json:"urgency,omitempty"`
	AuctionDateISO string    `json:"auction_date_iso,omitempty"`
}

// RiskSummary rolls up the per-domain risk screens.
type RiskSummary struct {
	Overall      string   `json:"overall"`
	Insurability string   `json:"insurability,omitempty"`
	Title        string   `json:"title,omitempty"`
	Payoff       string   `json:"payoff,omitempty"`
	Reasons      []string `json:"reasons"`
}

// EvidenceSummary reports evidence freshness per kind.
type EvidenceSummary struct {
	ConfidenceGrade   ConfidenceGrade   `json:"confidence_grade,omitempty"`
	ConfidenceReasons []string          `json:"confidence_reasons"`
	FreshnessByKind   map[string]string `json:"freshness_by_kind"`
}

// Outputs is the full underwriting output bundle. Pointer fields are nil when
// the inputs to compute them were absent; the companion InfoNeeded list says
// which ones and why.
type Outputs struct {
	Caps         CapsOut  `json:"caps"`
	Carry        CarryOut `json:"carry"`
	Fees         FeesOut  `json:"fees"`
	SummaryNotes []string `json:"summaryNotes"`

	BuyerCeiling           *float64 `json:"buyer_ceiling"`
	RespectFloor           *float64 `json:"respect_floor"`
	FloorInvestor          *float64 `json:"floor_investor"`
	PayoffPlusEssentials   *float64 `json:"payoff_plus_essentials"`
	PayoffProjected        *float64 `json:"payoff_projected"`
	ShortfallVsPayoff      *float64 `json:"shortfall_vs_payoff"`
	WindowFloorToOffer     *float64 `json:"window_floor_to_offer"`
	HeadroomOfferToCeiling *float64 `json:"headroom_offer_to_ceiling"`
	CushionVsPayoff        *float64 `json:"cushion_vs_payoff"`
	MAOWholesale           *float64 `json:"mao_wholesale"`
	MAOCapWholesale        *float64 `json:"mao_cap_wholesale"`
	MAOAsIsCap             *float64 `json:"mao_as_is_cap"`
	PrimaryOffer           *float64 `json:"primary_offer"`
	PrimaryOfferTrack      string   `json:"primary_offer_track,omitempty"`

	SpreadCash        *float64       `json:"spread_cash"`
	MinSpreadRequired *float64       `json:"min_spread_required"`
	CashGateStatus    CashGateStatus `json:"cash_gate_status,omitempty"`
	CashDeficit       *float64       `json:"cash_deficit"`
	BorderlineFlag    bool           `json:"borderline_flag"`

	SellerOfferBand        string `json:"seller_offer_band,omitempty"`
	BuyerAskBand           string `json:"buyer_ask_band,omitempty"`
	SweetSpotFlag          bool   `json:"sweet_spot_flag"`
	GapFlag                string `json:"gap_flag,omitempty"`
	StrategyRecommendation string `json:"strategy_recommendation,omitempty"`

	WorkflowState     WorkflowState   `json:"workflow_state,omitempty"`
	ConfidenceGrade   ConfidenceGrade `json:"confidence_grade,omitempty"`
	ConfidenceReasons []string        `json:"confidence_reasons,omitempty"`

	TimelineSummary *TimelineSummary `json:"timeline_summary,omitempty"`
	RiskSummary     *RiskSummary     `json:"risk_summary,omitempty"`
	EvidenceSummary *EvidenceSummary `json:"evidence_summary,omitempty"`
}

// Result is one compute pass: the outputs, the ordered audit trace, and the
// list of absent inputs.
type Result struct {
	Outputs    Outputs      `json:"outputs"`
	Trace      []TraceEntry `json:"trace"`
	InfoNeeded []InfoNeeded `json:"infoNeeded"`
}

// resolvedTokens is the calculator-facing view of the effective policy. nil
// pointer means the token did not resolve.
type resolvedTokens struct {
	capPct         *float64
	capOverridePct *float64
	overrideRules  capOverrideRules

	carryRule *CarryRule
	carryCap  *float64

	fees FeeRates

	marginWholesalePct  *float64
	investorDiscP20Pct  *float64
	investorDiscTypical *float64
	retainedEquityPct   *float64
	moveOutCashDefault  *float64
	moveOutCashMin      *float64
	moveOutCashMax      *float64

	holdFlip      map[SpeedBand]*float64
	holdWholetail map[SpeedBand]*float64
	holdWholesale *float64
	monthlyBills  float64

	bands               []policy.SpreadBand
	cashGateMin         float64
	borderlineBandWidth float64
}

type capOverrideRules struct {
	minRole                  string
	requireBindableInsurance bool
	requireClearTitle        bool
	requireFastZip           bool
	requireLoggedReason      bool
}

func polNum(pol *policy.EffectivePolicy, key string) *float64 {
	if n, ok := pol.Number(key); ok {
		return f64(n)
	}
	return nil
}

func polPct(pol *policy.EffectivePolicy, key string) *float64 {
	if n, ok := pol.Pct(key); ok {
		return f64(n)
	}
	return nil
}

// normalizeCapPct reads cap tokens above 1 as a percent reduction
// (3 means a 0.97 cap).
func normalizeCapPct(n *float64) *float64 {
	if n == nil {
		return nil
	}
	if *n > 1 {
		return f64(1 - *n/100)
	}
	return n
}

// holdPct reads monthly hold-cost knobs as percent points of ARV: anything
// above 0.5 is percent points (1.1 means 1.1%/mo), smaller values are already
// decimal fractions.
func holdPct(n *float64) *float64 {
	if n == nil || *n < 0 {
		return nil
	}
	if *n > 0.5 {
		return f64(*n / 100)
	}
	return n
}

// resolveTokens translates the effective policy into calculator inputs.
// The carry formula token, when present but unparseable, is invalid input
// and returns a hard error; an absent token is an InfoNeeded at compute time.
func resolveTokens(pol *policy.EffectivePolicy) (*resolvedTokens, error) {
	rt := &resolvedTokens{}

	rt.capPct = normalizeCapPct(polNum(pol, policy.KeyAIVSafetyCapPct))
	if rt.capPct != nil {
		rt.capOverridePct = f64(math.Min(1, *rt.capPct+0.02))
	} else {
		rt.capOverridePct = f64(0.99)
	}
	role, _ := pol.String(policy.KeyAIVCapOverrideApprovalRole)
	bind, _ := pol.Bool(policy.KeyAIVCapOverrideRequireBindableInsurance)
	title, _ := pol.Bool(policy.KeyAIVCapOverrideRequireClearTitle)
	fast, _ := pol.Bool(policy.KeyAIVCapOverrideRequireFastZip)
	logged, _ := pol.Bool(policy.KeyAIVCapOverrideRequireLoggedReason)
	rt.overrideRules = capOverrideRules{
		minRole:                  role,
		requireBindableInsurance: bind,
		requireClearTitle:        title,
		requireFastZip:           fast,
		requireLoggedReason:      logged,
	}

	if formula, ok := pol.String(policy.KeyCarryMonthsFormula); ok {
		rule, err := ParseCarryRule(formula)
		if err != nil {
			return nil, err
		}
		rt.carryRule = &rule
	}
	rt.carryCap = polNum(pol, policy.KeyCarryMonthsCap)

	rt.fees = FeeRates{
		ListCommissionPct: polPct(pol, policy.KeyListCommissionPct),
		ConcessionsPct:    polPct(pol, policy.KeyConcessionsPct),
		SellClosePct:      polPct(pol, policy.KeySellClosePct),
	}

	rt.marginWholesalePct = polPct(pol, policy.KeyWholesaleTargetMarginPct)
	rt.investorDiscP20Pct = polPct(pol, policy.KeyFloorInvestorDiscountP20Zip)
	rt.investorDiscTypical = polPct(pol, policy.KeyFloorInvestorDiscountTypicalZip)
	rt.retainedEquityPct = polPct(pol, policy.KeyFloorPayoffMinRetainedEquityPct)
	rt.moveOutCashDefault = polNum(pol, policy.KeyFloorPayoffMoveOutCashDefault)
	rt.moveOutCashMin = polNum(pol, policy.KeyFloorPayoffMoveOutCashMin)
	rt.moveOutCashMax = polNum(pol, policy.KeyFloorPayoffMoveOutCashMax)

	rt.holdFlip = map[SpeedBand]*float64{
		SpeedFast:     holdPct(polNum(pol, policy.KeyHoldCostsFlipFastZip)),
		SpeedBalanced: holdPct(polNum(pol, policy.KeyHoldCostsFlipNeutralZip)),
		SpeedSlow:     holdPct(polNum(pol, policy.KeyHoldCostsFlipSlowZip)),
	}
	rt.holdWholetail = map[SpeedBand]*float64{
		SpeedFast:     holdPct(polNum(pol, policy.KeyHoldCostsWholetailFastZip)),
		SpeedBalanced: holdPct(polNum(pol, policy.KeyHoldCostsWholetailNeutralZip)),
		SpeedSlow:     holdPct(polNum(pol, policy.KeyHoldCostsWholetailSlowZip)),
	}
	rt.holdWholesale = holdPct(polNum(pol, policy.KeyHoldCostsWholesaleMonthlyPctOfARV))
	for _, key := range []string{
		policy.KeyHoldingCostsMonthlyTaxes,
		policy.KeyHoldingCostsMonthlyInsurance,
		policy.KeyHoldingCostsMonthlyHOA,
		policy.KeyHoldingCostsMonthlyUtilities,
	} {
		if n := polNum(pol, key); n != nil {
			rt.monthlyBills += *n
		}
	}

	if bands, ok := pol.Bands(policy.KeyMinSpreadByARVBand); ok {
		rt.bands = bands
	} else {
		rt.bands = policy.DefaultSpreadBands()
	}

	rt.cashGateMin = 10_000
	if n := polNum(pol, policy.KeyCashGateMinSpreadOverPayoff); n != nil {
		rt.cashGateMin = *n
	}
	rt.borderlineBandWidth = 5_000
	if n := polNum(pol, policy.KeyBorderlineBandThreshold); n != nil {
		rt.borderlineBandWidth = *n
	}

	return rt, nil
}

// roleRank orders approval roles from junior to senior. Unknown roles rank
// below every known role.
func roleRank(role string) int {
	order := []string{"Analyst", "Underwriter", "Manager", "VP", "Admin", "Owner"}
	for i, r := range order {
		if strings.EqualFold(r, role) {
			return i
		}
	}
	return -1
}

func roleMeetsMinimum(role, minRole string) bool {
	if minRole == "" {
		return true
	}
	return roleRank(role) >= roleRank(minRole)
}

// computeCap applies the AIV safety cap with the override-evidence rules: a
// higher override percentage is allowed only when every configured evidence
// requirement is satisfied and the approver outranks the minimum role.
func computeCap(aiv *float64, rt *resolvedTokens, ev CapOverrideEvidence, rec *Recorder) (capped, capPctApplied *float64, applied bool) {
	if rt.capPct == nil {
		rec.Need(pathAIVCapToken, "<AIV_CAP_PCT>", "Missing AIV safety cap percentage.", SourceTeamPolicySet)
	}
	if !finite(aiv) || rt.capPct == nil {
		return aiv, rt.capPct, false
	}

	rules := rt.overrideRules
	var blocked []string
	hasAnyRule := rules.minRole != "" || rules.requireBindableInsurance ||
		rules.requireClearTitle || rules.requireFastZip || rules.requireLoggedReason
	overrideAllowed := hasAnyRule
	if hasAnyRule {
		if rules.requireBindableInsurance && !ev.BindableInsurance {
			overrideAllowed = false
			blocked = append(blocked, "bindable_insurance_missing")
		}
		if rules.requireClearTitle && !ev.ClearTitleQuote {
			overrideAllowed = false
			blocked = append(blocked, "clear_title_missing")
		}
		if rules.requireFastZip && !ev.FastZipLiquidity {
			overrideAllowed = false
			blocked = append(blocked, "fast_zip_required")
		}
		if rules.requireLoggedReason && !ev.HasLoggedReason {
			overrideAllowed = false
			blocked = append(blocked, "override_reason_missing")
		}
		if !roleMeetsMinimum(ev.ApproverRole, rules.minRole) {
			overrideAllowed = false
			blocked = append(blocked, "approver_role_insufficient")
		}
	}

	capPct := rt.capPct
	if overrideAllowed && rt.capOverridePct != nil {
		capPct = rt.capOverridePct
	}
	cap := RoundCents(*aiv * *capPct)
	applied = cap < *aiv

	rec.Trace(RuleAIVSafetyCap,
		[]string{pathAIV, pathAIVCapToken},
		map[string]any{
			"aiv":                      *aiv,
			"default_pct":              *rt.capPct,
			"override_pct":             *rt.capOverridePct,
			"cap_pct_used":             *capPct,
			"cap_value":                cap,
			"applied":                  applied,
			"override_allowed":         overrideAllowed,
			"override_reasons_blocked": blocked,
			"evidence": map[string]any{
				"bindable_insurance": ev.BindableInsurance,
				"clear_title_quote":  ev.ClearTitleQuote,
				"fast_zip_liquidity": ev.FastZipLiquidity,
				"approver_role":      ev.ApproverRole,
				"has_logged_reason":  ev.HasLoggedReason,
			},
		})
	return f64(cap), capPct, applied
}

// Compute runs the full underwriting pass over one deal under one effective
// policy. Missing deal or policy inputs withhold the dependent outputs and
// accumulate as InfoNeeded; only malformed tokens (an unparseable carry
// formula) return an error.
func Compute(deal Deal, pol *policy.EffectivePolicy) (*Result, error) {
	rt, err := resolveTokens(pol)
	if err != nil {
		return nil, err
	}

	rec := &Recorder{}
	var notes []string

	arv := deal.ARV()
	aiv := deal.AIV()
	domZip := deal.DOMZip()
	moiZip := deal.MOIZip()
	zipPercentile := deal.ZipPercentile()
	band := SpeedBandFromMarket(domZip, moiZip)

	if !finite(arv) {
		rec.Need(pathARV, "", "ARV required to compute Buyer Ceiling.", SourceInvestorSet)
	}
	if !finite(aiv) {
		rec.Need(pathAIV, "", "AIV (as-is value) required to compute caps and fee preview.", SourceInvestorSet)
	}

	// AIV safety cap.
	aivCapped, capPctApplied, capApplied := computeCap(aiv, rt, deal.capOverrideEvidence(band), rec)
	if aivCapped != nil && capPctApplied != nil {
		if capApplied {
			notes = append(notes, fmt.Sprintf("AIV safety cap applied at %.2f; capped AIV = $%.0f.", *capPctApplied, *aivCapped))
		} else {
			notes = append(notes, fmt.Sprintf("AIV safety cap not binding; cap = %.0f%% of AIV.", *capPctApplied*100))
		}
	}

	basePrice := aivCapped
	if basePrice == nil {
		basePrice = aiv
	}

	// Carry months.
	var rawMonths, carryMonths *float64
	ruleName := ""
	if rt.carryRule == nil {
		rec.Need(pathCarryRule, "<DOM_TO_MONTHS_RULE>", "Missing DOM-to-months rule.", SourceTeamPolicySet)
	} else {
		ruleName = rt.carryRule.String()
	}
	if rt.carryCap == nil {
		rec.Need(pathCarryCap, "<CARRY_MONTHS_CAP>", "Missing hard cap on carry months.", SourceTeamPolicySet)
	}
	if rt.carryRule != nil {
		if finite(domZip) {
			rawMonths = f64(Round4(rt.carryRule.Months(*domZip)))
		}
		carryMonths = CarryMonths(domZip, *rt.carryRule, rt.carryCap, rec)
	}
	if finite(domZip) {
		if carryMonths != nil {
			notes = append(notes, fmt.Sprintf("Carry months = %.2f (rule %s, raw %.2f).", *carryMonths, ruleName, *rawMonths))
		} else {
			notes = append(notes, fmt.Sprintf("DOM provided (%.0f) but carry months not computed due to missing rule/cap.", *domZip))
		}
	}

	// Seller-side fee preview on the capped base price.
	preview := PreviewFees(basePrice, rt.fees, rec)

	// Buyer ceiling with the hold-cost policy.
	buyerCeiling := computeBuyerCeiling(arv, rt, deal.RepairsBase(), carryMonths, "wholesale", band, rec)

	// Floors.
	payoff := deal.Payoff()
	floorInvestor := computeFloorInvestor(aiv, zipPercentile, rt, rec)
	payoffPlusEssentials := computePayoffPlusEssentials(payoff, aiv, rt, rec)
	respectFloor := computeRespectFloor(floorInvestor, payoffPlusEssentials, rec)

	// MAO clamp: min of presentation floor, cap, and ceiling.
	maoCap := aivCapped
	if maoCap == nil {
		maoCap = aiv
	}
	maoFinal := minNonNil(respectFloor, maoCap, buyerCeiling)
	rec.Trace(RuleMAOClamp,
		[]string{RuleBuyerCeiling, RuleAIVSafetyCap},
		map[string]any{
			"mao_presentation_wholesale": ptrOrNil(respectFloor),
			"mao_cap_wholesale":          ptrOrNil(maoCap),
			"buyer_ceiling":              ptrOrNil(buyerCeiling),
			"mao_final_wholesale":        ptrOrNil(maoFinal),
		})

	primaryOffer := maoFinal
	primaryTrack := ""
	if primaryOffer != nil {
		primaryTrack = "wholesale"
	}

	windowFloorToOffer := diff(primaryOffer, respectFloor)
	headroomOfferToCeiling := diff(buyerCeiling, primaryOffer)
	cushionVsPayoff := diff(primaryOffer, payoff)
	shortfallVsPayoff := diff(payoff, primaryOffer)
	spreadCash := diff(primaryOffer, payoff)
	if spreadCash == nil {
		rec.Need(pathSpreadCash, "", "Missing inputs to compute cash spread (offer or payoff).", SourceInvestorSet)
	}

	workflowState := StateReadyForOffer
	switch {
	case primaryOffer == nil || respectFloor == nil || buyerCeiling == nil:
		workflowState = StateNeedsInfo
	case windowFloorToOffer != nil && *windowFloorToOffer < 0:
		workflowState = StateNeedsReview
	}

	confidenceGrade := GradeB
	var confidenceReasons []string
	if rec.HasNeeds() || primaryOffer == nil {
		confidenceGrade = GradeC
		confidenceReasons = []string{"Missing inputs or outstanding infoNeeded items."}
	}

	// Spread ladder, cash gate, borderline.
	minSpreadRequired, selectedBand := computeMinSpread(arv, rt, rec)
	gateStatus, cashDeficit := computeCashGate(spreadCash, rt.cashGateMin)

	var spreadDelta *float64
	if spreadCash != nil && minSpreadRequired != nil {
		spreadDelta = f64(*spreadCash - *minSpreadRequired)
	}
	borderlineDueToSpread := spreadDelta != nil && math.Abs(*spreadDelta) <= rt.borderlineBandWidth
	borderlineFlag := borderlineDueToSpread || confidenceGrade == GradeC

	ladderDetails := map[string]any{
		"arv":                 ptrOrNil(arv),
		"min_spread_required": ptrOrNil(minSpreadRequired),
		"cash_gate_min":       rt.cashGateMin,
	}
	if selectedBand != nil {
		ladderDetails["band_min_arv"] = selectedBand.MinARV
		if selectedBand.MaxARV != nil {
			ladderDetails["band_max_arv"] = *selectedBand.MaxARV
		}
		if selectedBand.MinSpreadPct != nil {
			ladderDetails["min_spread_pct_of_arv"] = *selectedBand.MinSpreadPct
		}
	}
	rec.Trace(RuleSpreadLadder, []string{pathARV}, ladderDetails)

	rec.Trace(RuleCashGate,
		[]string{"primary_offer", pathPayoff},
		map[string]any{
			"spread_cash":      ptrOrNil(spreadCash),
			"cash_gate_status": string(gateStatus),
			"cash_deficit":     ptrOrNil(cashDeficit),
			"cash_gate_min":    rt.cashGateMin,
		})

	borderlineReason := "none"
	switch {
	case borderlineDueToSpread && confidenceGrade == GradeC:
		borderlineReason = "both"
	case borderlineDueToSpread:
		borderlineReason = "spread"
	case confidenceGrade == GradeC:
		borderlineReason = "confidence"
	}
	rec.Trace(RuleBorderline,
		[]string{RuleSpreadLadder, RuleCashGate, "confidence_grade"},
		map[string]any{
			"borderline_flag":       borderlineFlag,
			"reason":                borderlineReason,
			"confidence_grade":      string(confidenceGrade),
			"borderline_band_width": rt.borderlineBandWidth,
		})

	// Presentation bands.
	sellerOfferBand := ""
	if primaryOffer != nil && respectFloor != nil && buyerCeiling != nil {
		switch {
		case *primaryOffer < *respectFloor:
			sellerOfferBand = "low"
		case *primaryOffer > *buyerCeiling:
			sellerOfferBand = "high"
		default:
			sellerOfferBand = "fair"
		}
	}
	buyerAskBand := ""
	if headroomOfferToCeiling != nil {
		switch {
		case *headroomOfferToCeiling < 0:
			buyerAskBand = "aggressive"
		case *headroomOfferToCeiling <= 5_000:
			buyerAskBand = "balanced"
		default:
			buyerAskBand = "generous"
		}
	}
	sweetSpot := windowFloorToOffer != nil && *windowFloorToOffer >= 0 &&
		headroomOfferToCeiling != nil && *headroomOfferToCeiling >= 0
	gapFlag := ""
	if windowFloorToOffer != nil && headroomOfferToCeiling != nil {
		switch {
		case *windowFloorToOffer < 0 || *headroomOfferToCeiling < 0:
			gapFlag = "wide_gap"
		case math.Min(*windowFloorToOffer, *headroomOfferToCeiling) <= 5_000:
			gapFlag = "narrow_gap"
		default:
			gapFlag = "no_gap"
		}
	}
	strategy := ""
	if primaryTrack == "wholesale" {
		strategy = "Recommend Wholesale - offer anchored at Respect Floor."
	}

	// Timeline.
	var daysToMoney *float64
	if finite(domZip) {
		daysToMoney = f64(math.Max(0, math.Round(*domZip)))
	}
	timeline := &TimelineSummary{
		DaysToMoney:    daysToMoney,
		CarryMonths:    carryMonths,
		SpeedBand:      band,
		Urgency:        urgencyFromDays(daysToMoney),
		AuctionDateISO: deal.AuctionDate(),
	}

	risk := computeRiskSummary(deal, payoff)
	evidence := &EvidenceSummary{
		ConfidenceGrade:   confidenceGrade,
		ConfidenceReasons: append([]string{}, confidenceReasons...),
		FreshnessByKind:   freshnessByKind(deal, payoff),
	}

	outputs := Outputs{
		Caps:  CapsOut{AIVCapApplied: capApplied, AIVCapValue: aivCapped},
		Carry: CarryOut{MonthsRule: ruleName, MonthsCap: rt.carryCap, RawMonths: rawMonths, CarryMonths: carryMonths},
		Fees: FeesOut{
			Rates: FeeRatesOut{
				ListCommissionPct: rt.fees.ListCommissionPct,
				ConcessionsPct:    rt.fees.ConcessionsPct,
				SellClosePct:      rt.fees.SellClosePct,
			},
			Preview: preview,
		},
		SummaryNotes: notes,

		BuyerCeiling:           buyerCeiling,
		RespectFloor:           respectFloor,
		FloorInvestor:          floorInvestor,
		PayoffPlusEssentials:   payoffPlusEssentials,
		PayoffProjected:        payoff,
		ShortfallVsPayoff:      shortfallVsPayoff,
		WindowFloorToOffer:     windowFloorToOffer,
		HeadroomOfferToCeiling: headroomOfferToCeiling,
		CushionVsPayoff:        cushionVsPayoff,
		MAOWholesale:           maoFinal,
		MAOCapWholesale:        maoCap,
		MAOAsIsCap:             maoCap,
		PrimaryOffer:           primaryOffer,
		PrimaryOfferTrack:      primaryTrack,

		SpreadCash:        spreadCash,
		MinSpreadRequired: minSpreadRequired,
		CashGateStatus:    gateStatus,
		CashDeficit:       cashDeficit,
		BorderlineFlag:    borderlineFlag,

		SellerOfferBand:        sellerOfferBand,
		BuyerAskBand:           buyerAskBand,
		SweetSpotFlag:          sweetSpot,
		GapFlag:                gapFlag,
		StrategyRecommendation: strategy,

		WorkflowState:     workflowState,
		ConfidenceGrade:   confidenceGrade,
		ConfidenceReasons: confidenceReasons,

		TimelineSummary: timeline,
		RiskSummary:     risk,
		EvidenceSummary: evidence,
	}

	return &Result{Outputs: outputs, Trace: rec.Entries(), InfoNeeded: rec.Needed()}, nil
}

// computeBuyerCeiling derives the ceiling: ARV scaled down by the target
// margin for the track, less repairs, seller-side costs at resale, and the
// carry cost from the hold-cost policy tables.
func computeBuyerCeiling(arv *float64, rt *resolvedTokens, repairs, carryMonths *float64, track string, band SpeedBand, rec *Recorder) *float64 {
	if !finite(arv) {
		rec.Need(pathARV, "", "ARV required to compute Buyer Ceiling.", SourceInvestorSet)
		return nil
	}
	if rt.marginWholesalePct == nil {
		rec.Need(pathMargin, "<WHOLESALE_TARGET_MARGIN_PCT>", "Missing wholesale target margin percentage for Buyer Ceiling.", SourceTeamPolicySet)
	}

	repairsTotal := 0.0
	if finite(repairs) {
		repairsTotal = *repairs
	}

	// Resale costs at ARV. Unresolved rate tokens are already surfaced by the
	// fee preview; here they contribute zero.
	buyerCosts := 0.0
	for _, pct := range []*float64{rt.fees.ListCommissionPct, rt.fees.ConcessionsPct, rt.fees.SellClosePct} {
		if finite(pct) {
			buyerCosts += RoundCents(*arv * *pct)
		}
	}

	// Flip and wholetail hold costs are speed-banded; wholesale uses the
	// flat monthly default. A missing band entry falls back to the default.
	var pct *float64
	speed := band
	if speed == SpeedUnknown {
		speed = SpeedBalanced
	}
	switch track {
	case "flip":
		pct = rt.holdFlip[speed]
	case "wholetail":
		pct = rt.holdWholetail[speed]
	}
	if pct == nil {
		pct = rt.holdWholesale
	}
	pctHoldCost := 0.0
	if pct != nil {
		pctHoldCost = *pct * *arv
	}
	holdPerMonth := 0.0
	if pctHoldCost > 0 || rt.monthlyBills > 0 {
		holdPerMonth = RoundCents(pctHoldCost + rt.monthlyBills)
	}
	carryCost := 0.0
	if finite(carryMonths) {
		carryCost = RoundCents(*carryMonths * holdPerMonth)
	}

	margin := 0.0
	if rt.marginWholesalePct != nil {
		margin = *rt.marginWholesalePct
	}
	value := RoundCents(*arv*(1-margin) - repairsTotal - buyerCosts - carryCost)

	rec.Trace(RuleBuyerCeiling,
		[]string{pathARV, pathMargin, "deal.costs.repairs_base", "policy.fees.*", "carry_months"},
		map[string]any{
			"arv":                 *arv,
			"margin_pct":          margin,
			"repairs_total":       repairsTotal,
			"buyer_costs_total":   RoundCents(buyerCosts),
			"carry_months":        ptrOrNil(carryMonths),
			"hold_cost_per_month": holdPerMonth,
			"buyer_ceiling":       value,
		})
	rec.Trace(RuleHoldCostPolicy,
		[]string{"policy.carryTimeline.holdCosts", "carry_months"},
		map[string]any{
			"track":               track,
			"speed_band":          string(band),
			"pct_of_arv":          ptrOrNil(pct),
			"default_bills_sum":   rt.monthlyBills,
			"hold_cost_per_month": holdPerMonth,
			"carry_cost_total":    carryCost,
		})

	return f64(value)
}

// computeFloorInvestor discounts AIV by the investor floor discount, using
// the deeper P20 discount for bottom-quintile zips.
func computeFloorInvestor(aiv, zipPercentile *float64, rt *resolvedTokens, rec *Recorder) *float64 {
	if !finite(aiv) {
		rec.Need(pathAIV, "", "AIV required to compute Floor_Investor.", SourceInvestorSet)
		return nil
	}
	if rt.investorDiscP20Pct == nil || rt.investorDiscTypical == nil {
		rec.Need(pathInvestorDisc, "<INVESTOR_FLOOR_DISCOUNT>", "Missing investor floor discount percentages (P20/Typical).", SourceTeamPolicySet)
	}

	var applied *float64
	if finite(zipPercentile) && *zipPercentile <= 20 {
		applied = rt.investorDiscP20Pct
		if applied == nil {
			applied = rt.investorDiscTypical
		}
	} else {
		applied = rt.investorDiscTypical
		if applied == nil {
			applied = rt.investorDiscP20Pct
		}
	}
	if applied == nil {
		return nil
	}
	return f64(RoundCents(*aiv * (1 - *applied)))
}

// computePayoffPlusEssentials is the payoff floor: payoff plus the seller's
// retained equity plus move-out cash clamped to its min/max.
func computePayoffPlusEssentials(payoff, aiv *float64, rt *resolvedTokens, rec *Recorder) *float64 {
	if !finite(payoff) {
		rec.Need(pathPayoff, "", "Payoff required to compute payoff + essentials floor.", SourceInvestorSet)
		return nil
	}
	if rt.retainedEquityPct == nil {
		rec.Need(pathRetainedEq, "<RETAINED_EQUITY_PCT>", "Missing retained equity percentage for payoff floor.", SourceTeamPolicySet)
	}

	retainedEquity := 0.0
	if finite(aiv) && rt.retainedEquityPct != nil {
		retainedEquity = RoundCents(*aiv * *rt.retainedEquityPct)
	}

	moveOutCash := 0.0
	if rt.moveOutCashDefault != nil {
		moveOutCash = *rt.moveOutCashDefault
	}
	if rt.moveOutCashMin != nil {
		moveOutCash = math.Max(moveOutCash, *rt.moveOutCashMin)
	}
	if rt.moveOutCashMax != nil {
		moveOutCash = math.Min(moveOutCash, *rt.moveOutCashMax)
	}

	return f64(RoundCents(*payoff + retainedEquity + moveOutCash))
}

// computeRespectFloor composes the presentation floor as the max of the
// investor floor and the payoff floor; one missing side falls back to the
// other, both missing withholds the floor.
func computeRespectFloor(floorInvestor, payoffPlusEssentials *float64, rec *Recorder) *float64 {
	if floorInvestor == nil && payoffPlusEssentials == nil {
		rec.Need(pathRespectFloor, "", "Respect Floor could not be computed (missing investor floor and payoff+essentials).", SourceTeamPolicySet)
		return nil
	}
	var floor *float64
	switch {
	case floorInvestor == nil:
		floor = payoffPlusEssentials
	case payoffPlusEssentials == nil:
		floor = floorInvestor
	default:
		floor = f64(math.Max(*floorInvestor, *payoffPlusEssentials))
	}
	rec.Trace(RuleRespectFloor,
		[]string{pathAIV, pathPayoff, pathInvestorDisc, pathRetainedEq},
		map[string]any{
			"floor_investor":         ptrOrNil(floorInvestor),
			"payoff_plus_essentials": ptrOrNil(payoffPlusEssentials),
			"respect_floor":          ptrOrNil(floor),
			"composition_mode":       "max",
		})
	return floor
}

// computeMinSpread selects the ARV band and takes the larger of the dollar
// floor and the percentage-of-ARV floor.
func computeMinSpread(arv *float64, rt *resolvedTokens, rec *Recorder) (*float64, *policy.SpreadBand) {
	if !finite(arv) {
		rec.Need(pathARV, "", "ARV required to compute min spread ladder.", SourceInvestorSet)
		return nil, nil
	}
	selected := policy.SelectBand(rt.bands, *arv)
	if selected == nil {
		return nil, nil
	}
	minSpread := selected.MinSpread
	if selected.MinSpreadPct != nil {
		fromPct := RoundCents(*arv * *selected.MinSpreadPct)
		minSpread = math.Max(minSpread, fromPct)
	}
	return f64(minSpread), selected
}

// computeCashGate checks the cash spread against the presentation gate.
func computeCashGate(spreadCash *float64, gateMin float64) (CashGateStatus, *float64) {
	if spreadCash == nil {
		return GateUnknown, nil
	}
	if *spreadCash >= gateMin {
		return GatePass, f64(0)
	}
	return GateShortfall, f64(RoundCents(gateMin - *spreadCash))
}

func urgencyFromDays(days *float64) string {
	if days == nil {
		return ""
	}
	switch {
	case *days <= 14:
		return "critical"
	case *days <= 45:
		return "elevated"
	default:
		return "normal"
	}
}

// computeRiskSummary runs the lightweight per-domain risk screens.
func computeRiskSummary(deal Deal, payoff *float64) *RiskSummary {
	risk := &RiskSummary{Reasons: []string{}}

	switch status := deal.InsurabilityStatus(); {
	case status == "bindable":
		risk.Insurability = "pass"
	case status != "":
		risk.Insurability = "watch"
		risk.Reasons = append(risk.Reasons, "insurability: watch")
	default:
		risk.Insurability = "info_needed"
		risk.Reasons = append(risk.Reasons, "insurability: info_needed")
	}

	if finite(payoff) {
		risk.Payoff = "pass"
	} else {
		risk.Payoff = "info_needed"
		risk.Reasons = append(risk.Reasons, "payoff: info_needed")
	}

	if titleRisk := deal.number("title", "risk_pct"); finite(titleRisk) && *titleRisk > 0.2 {
		risk.Title = "watch"
		risk.Reasons = append(risk.Reasons, "title: watch")
	}

	switch {
	case risk.Insurability == "fail" || risk.Payoff == "fail" || risk.Title == "fail":
		risk.Overall = "fail"
	case len(risk.Reasons) > 0:
		risk.Overall = "watch"
	default:
		risk.Overall = "pass"
	}
	return risk
}

func freshnessByKind(deal Deal, payoff *float64) map[string]string {
	fresh := map[string]string{
		"comps":         "missing",
		"title_quote":   "missing",
		"repairs":       "missing",
		"payoff_letter": "missing",
		"insurance":     "missing",
	}
	if finite(payoff) {
		fresh["payoff_letter"] = "fresh"
	}
	if deal.InsurabilityStatus() != "" {
		fresh["insurance"] = "fresh"
	}
	return fresh
}

func diff(a, b *float64) *float64 {
	if !finite(a) || !finite(b) {
		return nil
	}
	return f64(RoundCents(*a - *b))
}

func ptrOrNil(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

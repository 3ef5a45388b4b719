package underwrite

// Deal and policy paths referenced by InfoNeeded markers and trace entries.
const (
	pathAIV          = "deal.market.aiv"
	pathARV          = "deal.market.arv"
	pathDOMZip       = "deal.market.dom_zip"
	pathPayoff       = "deal.debt.payoff"
	pathAIVCapToken  = "policy.valuation.aivSafetyCapPercentage"
	pathCarryRule    = "policy.carryTimeline.carryMonthsFormulaDefinition"
	pathCarryCap     = "policy.carryTimeline.carryMonthsMaximumCap"
	pathListPct      = "policy.fees.listCommissionPct"
	pathConcessions  = "policy.fees.concessionsPct"
	pathSellClose    = "policy.fees.sellClosePct"
	pathMargin       = "policy.floorsSpreads.wholesaleTargetMarginPct"
	pathInvestorDisc = "policy.floorsSpreads.investorFloorDiscount"
	pathRetainedEq   = "policy.floorsSpreads.retainedEquityPct"
	pathRespectFloor = "respect_floor"
	pathSpreadCash   = "spread_cash"
)

// SafetyCap computes the capped as-is value, cap = aiv × capPct, when both
// inputs are present and finite. Otherwise the output is withheld and an
// InfoNeeded marker names the absent side.
func SafetyCap(aiv, capPct *float64, rec *Recorder) *float64 {
	if !finite(aiv) {
		rec.Need(pathAIV, "", "AIV (as-is value) required to compute the safety cap.", SourceInvestorSet)
	}
	if !finite(capPct) {
		rec.Need(pathAIVCapToken, "<AIV_CAP_PCT>", "Missing AIV safety cap percentage.", SourceTeamPolicySet)
	}
	if !finite(aiv) || !finite(capPct) {
		return nil
	}
	cap := RoundCents(*aiv * *capPct)
	rec.Trace(RuleAIVSafetyCap,
		[]string{pathAIV, pathAIVCapToken},
		map[string]any{
			"aiv":       *aiv,
			"cap_pct":   *capPct,
			"cap_value": cap,
			"applied":   cap < *aiv,
		})
	return f64(cap)
}

// CarryMonths converts days-on-market into carry months under rule, clamped
// to capMonths when a cap token resolved (capMonths nil means no cap, not a
// zero cap). The result is rounded to four decimal places.
func CarryMonths(domDays *float64, rule CarryRule, capMonths *float64, rec *Recorder) *float64 {
	if !finite(domDays) {
		rec.Need(pathDOMZip, "", "Days-on-market required to compute carry months.", SourceInvestorSet)
		return nil
	}
	raw := rule.Months(*domDays)
	months := raw
	if finite(capMonths) && *capMonths < months {
		months = *capMonths
	}
	months = Round4(months)
	details := map[string]any{
		"dom_zip":      *domDays,
		"rule":         rule.String(),
		"raw_months":   Round4(raw),
		"carry_months": months,
	}
	if capMonths != nil {
		details["months_cap"] = *capMonths
	}
	rec.Trace(RuleCarryMonths, []string{pathDOMZip, pathCarryRule, pathCarryCap}, details)
	return f64(months)
}

// FeeRates are the seller-side percentage tokens, each a decimal fraction.
// A nil rate is an unresolved token.
type FeeRates struct {
	ListCommissionPct *float64
	ConcessionsPct    *float64
	SellClosePct      *float64
}

// FeePreview is the seller-side fee breakdown for a base price. Component
// amounts are rounded to cents with round-half-to-even; the total is present
// only when every component resolved.
type FeePreview struct {
	BasePrice            float64  `json:"base_price"`
	ListCommissionAmount *float64 `json:"list_commission_amount"`
	ConcessionsAmount    *float64 `json:"concessions_amount"`
	SellCloseAmount      *float64 `json:"sell_close_amount"`
	TotalSellerSideCosts *float64 `json:"total_seller_side_costs"`
}

// PreviewFees multiplies the base price by each seller-side rate token.
// Unresolved tokens withhold their component and surface as InfoNeeded while
// the remaining components still compute.
func PreviewFees(basePrice *float64, rates FeeRates, rec *Recorder) *FeePreview {
	if !finite(basePrice) {
		rec.Need(pathAIV, "", "Base price (capped AIV) required for the fee preview.", SourceInvestorSet)
		return nil
	}
	preview := &FeePreview{BasePrice: *basePrice}

	if finite(rates.ListCommissionPct) {
		preview.ListCommissionAmount = f64(RoundCents(*basePrice * *rates.ListCommissionPct))
	} else {
		rec.Need(pathListPct, "<LIST_COMM_PCT>", "Missing list commission percentage.", SourceTeamPolicySet)
	}
	if finite(rates.ConcessionsPct) {
		preview.ConcessionsAmount = f64(RoundCents(*basePrice * *rates.ConcessionsPct))
	} else {
		rec.Need(pathConcessions, "<CONCESSIONS_PCT>", "Missing concessions percentage.", SourceTeamPolicySet)
	}
	if finite(rates.SellClosePct) {
		preview.SellCloseAmount = f64(RoundCents(*basePrice * *rates.SellClosePct))
	} else {
		rec.Need(pathSellClose, "<SELL_CLOSE_PCT>", "Missing seller-side closing cost percentage.", SourceTeamPolicySet)
	}

	if preview.ListCommissionAmount != nil && preview.ConcessionsAmount != nil && preview.SellCloseAmount != nil {
		preview.TotalSellerSideCosts = f64(RoundCents(
			*preview.ListCommissionAmount + *preview.ConcessionsAmount + *preview.SellCloseAmount))
	}

	details := map[string]any{"base_price": *basePrice}
	if finite(rates.ListCommissionPct) {
		details["list_commission_pct"] = *rates.ListCommissionPct
		details["list_commission_amount"] = *preview.ListCommissionAmount
	}
	if finite(rates.ConcessionsPct) {
		details["concessions_pct"] = *rates.ConcessionsPct
		details["concessions_amount"] = *preview.ConcessionsAmount
	}
	if finite(rates.SellClosePct) {
		details["sell_close_pct"] = *rates.SellClosePct
		details["sell_close_amount"] = *preview.SellCloseAmount
	}
	if preview.TotalSellerSideCosts != nil {
		details["total_seller_side_costs"] = *preview.TotalSellerSideCosts
	}
	rec.Trace(RuleFeesPreview, []string{pathListPct, pathConcessions, pathSellClose, "base_price"}, details)
	return preview
}

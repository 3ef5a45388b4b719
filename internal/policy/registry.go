// Package policy implements the layered risk-policy model: a declared knob
// registry with compiled-in defaults, posture-scoped overrides, and per-deal
// sandbox overrides, resolved into one immutable effective policy that the
// calculators consume. The registry is the single source of truth for every
// configurable business rule; a coverage test guarantees no declared knob can
// silently fall out of reach of the resolver.
package policy

// Group identifies a structured sandbox domain. Knobs outside every group are
// reachable only through the flat override map.
type Group string

const (
	GroupValuation      Group = "valuation"
	GroupRepairs        Group = "repairs"
	GroupCarryTimeline  Group = "carryTimeline"
	GroupComplianceRisk Group = "complianceRisk"
	GroupDisposition    Group = "disposition"
	GroupWorkflow       Group = "workflow"
	// GroupFlat marks knobs with no structured home; the flat map carries them.
	GroupFlat Group = ""
)

// Groups lists the structured domains in a fixed order.
var Groups = []Group{
	GroupValuation,
	GroupRepairs,
	GroupCarryTimeline,
	GroupComplianceRisk,
	GroupDisposition,
	GroupWorkflow,
}

// ValueType describes how a knob value is coerced from loosely-typed override
// documents.
type ValueType string

const (
	TypeNumber     ValueType = "number"
	TypeBool       ValueType = "boolean"
	TypeString     ValueType = "string"
	TypeStringList ValueType = "string[]"
	TypeBands      ValueType = "bands[]"
)

// KnobDef declares a configurable knob: its key, domain group, value type,
// compiled-in default (nil means the knob has no default and its absence
// surfaces as InfoNeeded at the point of use), whether posture overlays shift
// it, and whether it is display-only.
type KnobDef struct {
	Key          string
	Group        Group
	Label        string
	Type         ValueType
	Default      any
	PostureAware bool
	// UIOnly knobs are never consumed by a calculation and are excluded from
	// the resolver coverage invariant.
	UIOnly bool
}

// Registry returns the full declared knob registry. Order is stable.
func Registry() []KnobDef {
	return []KnobDef{
		// Core valuation models.
		{Key: KeyAIVSafetyCapPct, Group: GroupValuation, Label: "AIV Safety Cap Percentage", Type: TypeNumber, Default: nil, PostureAware: true},
		{Key: KeyAIVHardMax, Group: GroupValuation, Label: "AIV (Hard Max)", Type: TypeNumber, Default: 2_000_000.0},
		{Key: KeyAIVHardMin, Group: GroupValuation, Label: "AIV (Hard Min)", Type: TypeNumber, Default: 10_000.0},
		{Key: KeyAIVSoftMaxVsARVMultiplier, Group: GroupValuation, Label: "AIV (Soft Max vs ARV Multiplier)", Type: TypeNumber, Default: 0.95},
		{Key: KeyARVHardMax, Group: GroupValuation, Label: "ARV (Hard Max)", Type: TypeNumber, Default: 3_000_000.0},
		{Key: KeyARVHardMin, Group: GroupValuation, Label: "ARV (Hard Min)", Type: TypeNumber, Default: 10_000.0},
		{Key: KeyARVSoftMaxVsAIVMultiplier, Group: GroupValuation, Label: "ARV (Soft Max vs AIV Multiplier)", Type: TypeNumber, Default: 2.0},
		{Key: KeyARVMinComps, Group: GroupValuation, Label: "ARV (Min Comps)", Type: TypeNumber, Default: 3.0},
		{Key: KeyARVSoftMaxCompsAgeDays, Group: GroupValuation, Label: "ARV (Soft Max Comps Age, Days)", Type: TypeNumber, Default: 180.0},
		{Key: KeyARVCompsSetSizeForMedian, Group: GroupValuation, Label: "ARV (Comps Set Size for Median)", Type: TypeNumber, Default: 5.0},
		{Key: KeyAIVCapOverrideApprovalRole, Group: GroupValuation, Label: "AIV Cap Override Approval Role", Type: TypeString, Default: "VP"},
		{Key: KeyAIVCapOverrideRequireBindableInsurance, Group: GroupValuation, Label: "AIV Cap Override (Bindable Insurance Required)", Type: TypeBool, Default: true},
		{Key: KeyAIVCapOverrideRequireClearTitle, Group: GroupValuation, Label: "AIV Cap Override (Clear Title Quote Required)", Type: TypeBool, Default: true},
		{Key: KeyAIVCapOverrideRequireFastZip, Group: GroupValuation, Label: "AIV Cap Override (Fast ZIP Liquidity Required)", Type: TypeBool, Default: false},
		{Key: KeyAIVCapOverrideRequireLoggedReason, Group: GroupValuation, Label: "AIV Cap Evidence (Approval Logging Requirement)", Type: TypeBool, Default: true},

		// Floors and spreads: flat-only, no structured group models them.
		{Key: KeyFloorInvestorDiscountP20Zip, Group: GroupFlat, Label: "Floor, Investor (AIV Discount, P20 ZIP)", Type: TypeNumber, Default: nil},
		{Key: KeyFloorInvestorDiscountTypicalZip, Group: GroupFlat, Label: "Floor, Investor (AIV Discount, Typical ZIP)", Type: TypeNumber, Default: nil},
		{Key: KeyFloorPayoffMinRetainedEquityPct, Group: GroupFlat, Label: "Floor, Payoff (Min Retained Equity Percentage)", Type: TypeNumber, Default: nil},
		{Key: KeyFloorPayoffMoveOutCashDefault, Group: GroupFlat, Label: "Floor, Payoff (Move-Out Cash Default)", Type: TypeNumber, Default: 3_000.0},
		{Key: KeyFloorPayoffMoveOutCashMin, Group: GroupFlat, Label: "Floor, Payoff (Move-Out Cash Min)", Type: TypeNumber, Default: 1_000.0},
		{Key: KeyFloorPayoffMoveOutCashMax, Group: GroupFlat, Label: "Floor, Payoff (Move-Out Cash Max)", Type: TypeNumber, Default: 10_000.0},
		{Key: KeyMinSpreadByARVBand, Group: GroupFlat, Label: "Spread Minimum by ARV Band Policy", Type: TypeBands, Default: nil},
		{Key: KeyWholesaleTargetMarginPct, Group: GroupFlat, Label: "Buyer Target Margin (Wholesale)", Type: TypeNumber, Default: nil, PostureAware: true},
		{Key: KeyInitialOfferSpreadMultiplier, Group: GroupFlat, Label: "Initial Offer Spread Multiplier", Type: TypeNumber, Default: 1.0, PostureAware: true},
		{Key: KeyAssignmentFeeTarget, Group: GroupFlat, Label: "Assignment Fee Target", Type: TypeNumber, Default: 15_000.0},
		{Key: KeyAssignmentFeeMaxPublicizedARVPct, Group: GroupFlat, Label: "Assignment Fee Max (Publicized, % of ARV)", Type: TypeNumber, Default: 3.0},

		// Seller-side fee tokens: flat-only.
		{Key: KeyListCommissionPct, Group: GroupFlat, Label: "Fees (List Commission %)", Type: TypeNumber, Default: nil},
		{Key: KeyConcessionsPct, Group: GroupFlat, Label: "Fees (Concessions %)", Type: TypeNumber, Default: nil},
		{Key: KeySellClosePct, Group: GroupFlat, Label: "Fees (Sell-Side Closing %)", Type: TypeNumber, Default: nil},

		// Carry and timeline.
		{Key: KeyCarryMonthsCap, Group: GroupCarryTimeline, Label: "Carry Months (Maximum Cap)", Type: TypeNumber, Default: nil, PostureAware: true},
		{Key: KeyCarryMonthsFormula, Group: GroupCarryTimeline, Label: "Carry Months Formula Definition", Type: TypeString, Default: nil},
		{Key: KeyDaysToMoneySelectionMethod, Group: GroupCarryTimeline, Label: "Days-to-Money Selection Method", Type: TypeString, Default: "min_of_paths"},
		{Key: KeyDaysToMoneyDefaultCashCloseDays, Group: GroupCarryTimeline, Label: "Days-to-Money Default Cash Close Days", Type: TypeNumber, Default: 14.0},
		{Key: KeyDefaultDaysToWholesaleClose, Group: GroupCarryTimeline, Label: "Default Days to Wholesale Close", Type: TypeNumber, Default: 21.0},
		{Key: KeyDaysToMoneyMaxDays, Group: GroupCarryTimeline, Label: "Days-to-Money Max Days", Type: TypeNumber, Default: 120.0},
		{Key: KeyHoldCostsFlipFastZip, Group: GroupCarryTimeline, Label: "Hold Costs (Flip, Fast ZIP, % ARV/mo)", Type: TypeNumber, Default: 0.9},
		{Key: KeyHoldCostsFlipNeutralZip, Group: GroupCarryTimeline, Label: "Hold Costs (Flip, Neutral ZIP, % ARV/mo)", Type: TypeNumber, Default: 1.1},
		{Key: KeyHoldCostsFlipSlowZip, Group: GroupCarryTimeline, Label: "Hold Costs (Flip, Slow ZIP, % ARV/mo)", Type: TypeNumber, Default: 1.3},
		{Key: KeyHoldCostsWholetailFastZip, Group: GroupCarryTimeline, Label: "Hold Costs (Wholetail, Fast ZIP, % ARV/mo)", Type: TypeNumber, Default: 0.8},
		{Key: KeyHoldCostsWholetailNeutralZip, Group: GroupCarryTimeline, Label: "Hold Costs (Wholetail, Neutral ZIP, % ARV/mo)", Type: TypeNumber, Default: 1.0},
		{Key: KeyHoldCostsWholetailSlowZip, Group: GroupCarryTimeline, Label: "Hold Costs (Wholetail, Slow ZIP, % ARV/mo)", Type: TypeNumber, Default: 1.2},
		{Key: KeyHoldCostsWholesaleMonthlyPctOfARV, Group: GroupCarryTimeline, Label: "Hold Costs (Wholesale Default, % ARV/mo)", Type: TypeNumber, Default: 1.0},
		{Key: KeyHoldingCostsMonthlyTaxes, Group: GroupCarryTimeline, Label: "Holding Costs (Monthly Default Taxes)", Type: TypeNumber, Default: 250.0},
		{Key: KeyHoldingCostsMonthlyInsurance, Group: GroupCarryTimeline, Label: "Holding Costs (Monthly Default Insurance)", Type: TypeNumber, Default: 150.0},
		{Key: KeyHoldingCostsMonthlyHOA, Group: GroupCarryTimeline, Label: "Holding Costs (Monthly Default HOA)", Type: TypeNumber, Default: 0.0},
		{Key: KeyHoldingCostsMonthlyUtilities, Group: GroupCarryTimeline, Label: "Holding Costs (Monthly Default Utilities)", Type: TypeNumber, Default: 200.0},

		// Repairs.
		{Key: KeyRepairsSoftMaxVsARVPct, Group: GroupRepairs, Label: "Repairs (Soft Max vs ARV %)", Type: TypeNumber, Default: 35.0},
		{Key: KeyRepairsHardMax, Group: GroupRepairs, Label: "Repairs (Hard Max)", Type: TypeNumber, Default: 250_000.0},
		{Key: KeyRepairsContingencyDefaultPct, Group: GroupRepairs, Label: "Repairs Contingency (Default %)", Type: TypeNumber, Default: 10.0},

		// Compliance and risk gates.
		{Key: KeyGateBankruptcyStay, Group: GroupComplianceRisk, Label: "Bankruptcy Stay Gate (Legal Block)", Type: TypeBool, Default: true},
		{Key: KeyGateFHA90DayResale, Group: GroupComplianceRisk, Label: "FHA 90-Day Resale Rule Gate", Type: TypeBool, Default: true},
		{Key: KeyGateFIRPTAWithholding, Group: GroupComplianceRisk, Label: "FIRPTA Withholding Gate", Type: TypeBool, Default: true},
		{Key: KeyGateFlood50Rule, Group: GroupComplianceRisk, Label: "Flood 50% Rule Gate", Type: TypeBool, Default: true},
		{Key: KeyGateSCRAVerification, Group: GroupComplianceRisk, Label: "SCRA Verification Gate", Type: TypeBool, Default: true},
		{Key: KeyGateStateProgramOverlays, Group: GroupComplianceRisk, Label: "State Program Gate (FHA/VA Overlays)", Type: TypeBool, Default: false},
		{Key: KeyGateCondoWarrantability, Group: GroupComplianceRisk, Label: "Warrantability Review (Condo Screens)", Type: TypeBool, Default: true},

		// Disposition and double close.
		{Key: KeyDoubleCloseMinSpreadThreshold, Group: GroupDisposition, Label: "Double Close Min Spread Threshold", Type: TypeNumber, Default: 25_000.0},
		{Key: KeyDoubleClosePerDiemCarry, Group: GroupDisposition, Label: "Double Close Per-Diem Carry Modeling", Type: TypeBool, Default: true},
		{Key: KeyDeedDocStampRate, Group: GroupDisposition, Label: "Deed Documentary Stamp Rate Policy", Type: TypeNumber, Default: 0.007},
		{Key: KeyTitlePremiumRateSource, Group: GroupDisposition, Label: "Title Premium Rate Source", Type: TypeString, Default: "promulgated_fl"},
		{Key: KeyDispositionTrackEnablement, Group: GroupDisposition, Label: "Disposition Track Enablement", Type: TypeStringList, Default: []string{"wholesale", "flip", "wholetail"}},

		// Workflow and guardrails.
		{Key: KeyCashGateMinSpreadOverPayoff, Group: GroupWorkflow, Label: "Cash Presentation Gate (Min Spread over Payoff)", Type: TypeNumber, Default: 10_000.0},
		{Key: KeyBorderlineBandThreshold, Group: GroupWorkflow, Label: "Analyst Review Trigger (Borderline Band)", Type: TypeNumber, Default: 5_000.0},
		{Key: KeyAllowAdvisorWorkflowOverride, Group: GroupWorkflow, Label: "Allow Advisor Override of Workflow State", Type: TypeBool, Default: false},
		{Key: KeyOfferValidityPeriodDays, Group: GroupWorkflow, Label: "Offer Validity Period (Days)", Type: TypeNumber, Default: 7.0},

		// Display-only knobs: rendered by the UI, never consumed by a
		// calculation, excluded from the coverage invariant.
		{Key: KeyUIBankersRoundingMode, Group: GroupFlat, Label: "Banker's Rounding Mode (Display)", Type: TypeString, Default: "half_even", UIOnly: true},
		{Key: KeyUIAssumptionsPlaceholders, Group: GroupFlat, Label: "Assumptions Protocol Placeholders", Type: TypeBool, Default: true, UIOnly: true},
		{Key: KeyUIBuyerCostsDualScenario, Group: GroupFlat, Label: "Buyer Costs Dual-Scenario Rendering", Type: TypeBool, Default: false, UIOnly: true},
		{Key: KeyUIConfidenceGradeRubric, Group: GroupFlat, Label: "A/B/C Confidence Grade Rubric", Type: TypeString, Default: "standard", UIOnly: true},
	}
}

// Knob keys. Calculators reference these constants rather than raw strings.
const (
	KeyAIVSafetyCapPct                        = "aivSafetyCapPercentage"
	KeyAIVHardMax                             = "aivHardMax"
	KeyAIVHardMin                             = "aivHardMin"
	KeyAIVSoftMaxVsARVMultiplier              = "aivSoftMaxVsArvMultiplier"
	KeyARVHardMax                             = "arvHardMax"
	KeyARVHardMin                             = "arvHardMin"
	KeyARVSoftMaxVsAIVMultiplier              = "arvSoftMaxVsAivMultiplier"
	KeyARVMinComps                            = "arvMinComps"
	KeyARVSoftMaxCompsAgeDays                 = "arvSoftMaxCompsAgeDays"
	KeyARVCompsSetSizeForMedian               = "arvCompsSetSizeForMedian"
	KeyAIVCapOverrideApprovalRole             = "aivCapOverrideApprovalRole"
	KeyAIVCapOverrideRequireBindableInsurance = "aivCapOverrideConditionBindableInsuranceRequired"
	KeyAIVCapOverrideRequireClearTitle        = "aivCapOverrideConditionClearTitleQuoteRequired"
	KeyAIVCapOverrideRequireFastZip           = "aivCapOverrideConditionFastZipLiquidityRequired"
	KeyAIVCapOverrideRequireLoggedReason      = "aivCapEvidenceVpApprovalLoggingRequirement"

	KeyFloorInvestorDiscountP20Zip      = "floorInvestorAivDiscountP20Zip"
	KeyFloorInvestorDiscountTypicalZip  = "floorInvestorAivDiscountTypicalZip"
	KeyFloorPayoffMinRetainedEquityPct  = "floorPayoffMinRetainedEquityPercentage"
	KeyFloorPayoffMoveOutCashDefault    = "floorPayoffMoveOutCashDefault"
	KeyFloorPayoffMoveOutCashMin        = "floorPayoffMoveOutCashMin"
	KeyFloorPayoffMoveOutCashMax        = "floorPayoffMoveOutCashMax"
	KeyMinSpreadByARVBand               = "minSpreadByArvBand"
	KeyWholesaleTargetMarginPct         = "wholesaleTargetMarginPct"
	KeyInitialOfferSpreadMultiplier     = "initialOfferSpreadMultiplier"
	KeyAssignmentFeeTarget              = "assignmentFeeTarget"
	KeyAssignmentFeeMaxPublicizedARVPct = "assignmentFeeMaxPublicizedArvPercentage"

	KeyListCommissionPct = "listCommissionPct"
	KeyConcessionsPct    = "concessionsPct"
	KeySellClosePct      = "sellClosePct"

	KeyCarryMonthsCap                    = "carryMonthsMaximumCap"
	KeyCarryMonthsFormula                = "carryMonthsFormulaDefinition"
	KeyDaysToMoneySelectionMethod        = "daysToMoneySelectionMethod"
	KeyDaysToMoneyDefaultCashCloseDays   = "daysToMoneyDefaultCashCloseDays"
	KeyDefaultDaysToWholesaleClose       = "defaultDaysToWholesaleClose"
	KeyDaysToMoneyMaxDays                = "daysToMoneyMaxDays"
	KeyHoldCostsFlipFastZip              = "holdCostsFlipFastZip"
	KeyHoldCostsFlipNeutralZip           = "holdCostsFlipNeutralZip"
	KeyHoldCostsFlipSlowZip              = "holdCostsFlipSlowZip"
	KeyHoldCostsWholetailFastZip         = "holdCostsWholetailFastZip"
	KeyHoldCostsWholetailNeutralZip      = "holdCostsWholetailNeutralZip"
	KeyHoldCostsWholetailSlowZip         = "holdCostsWholetailSlowZip"
	KeyHoldCostsWholesaleMonthlyPctOfARV = "holdCostsWholesaleMonthlyPctOfArvDefault"
	KeyHoldingCostsMonthlyTaxes          = "holdingCostsMonthlyDefaultTaxes"
	KeyHoldingCostsMonthlyInsurance      = "holdingCostsMonthlyDefaultInsurance"
	KeyHoldingCostsMonthlyHOA            = "holdingCostsMonthlyDefaultHoa"
	KeyHoldingCostsMonthlyUtilities      = "holdingCostsMonthlyDefaultUtilities"

	KeyRepairsSoftMaxVsARVPct       = "repairsSoftMaxVsArvPercentage"
	KeyRepairsHardMax               = "repairsHardMax"
	KeyRepairsContingencyDefaultPct = "repairsContingencyDefaultPercentage"

	KeyGateBankruptcyStay       = "bankruptcyStayGateLegalBlock"
	KeyGateFHA90DayResale       = "fha90DayResaleRuleGate"
	KeyGateFIRPTAWithholding    = "firptaWithholdingGate"
	KeyGateFlood50Rule          = "flood50RuleGate"
	KeyGateSCRAVerification     = "scraVerificationGate"
	KeyGateStateProgramOverlays = "stateProgramGateFhaVaOverlays"
	KeyGateCondoWarrantability  = "warrantabilityReviewRequirementCondoEligibilityScreens"

	KeyDoubleCloseMinSpreadThreshold = "doubleCloseMinSpreadThreshold"
	KeyDoubleClosePerDiemCarry       = "doubleClosePerDiemCarryModeling"
	KeyDeedDocStampRate              = "deedDocumentaryStampRatePolicy"
	KeyTitlePremiumRateSource        = "titlePremiumRateSource"
	KeyDispositionTrackEnablement    = "dispositionTrackEnablement"

	KeyCashGateMinSpreadOverPayoff  = "cashPresentationGateMinimumSpreadOverPayoff"
	KeyBorderlineBandThreshold      = "analystReviewTriggerBorderlineBandThreshold"
	KeyAllowAdvisorWorkflowOverride = "allowAdvisorOverrideWorkflowState"
	KeyOfferValidityPeriodDays      = "offerValidityPeriodDaysPolicy"

	KeyUIBankersRoundingMode     = "bankersRoundingModeNumericSafety"
	KeyUIAssumptionsPlaceholders = "assumptionsProtocolPlaceholdersWhenEvidenceMissing"
	KeyUIBuyerCostsDualScenario  = "buyerCostsAllocationDualScenarioRenderingWhenUnknown"
	KeyUIConfidenceGradeRubric   = "abcConfidenceGradeRubric"
)

// knobIndex returns the registry keyed by knob key.
func knobIndex() map[string]KnobDef {
	defs := Registry()
	idx := make(map[string]KnobDef, len(defs))
	for _, d := range defs {
		idx[d.Key] = d
	}
	return idx
}

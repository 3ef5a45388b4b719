package underwrite

import (
	"github.com/rotisserie/eris"

	"github.com/ozihaynes/hps-dealengine-sub010/internal/canon"
)

// Deal is the loosely-typed bag of deal facts. Any leaf may be absent;
// accessors return nil rather than a default so absence propagates to the
// calculators instead of vanishing into a guessed number.
type Deal struct {
	v canon.Value
}

// NewDeal wraps an already-decoded value tree.
func NewDeal(v canon.Value) Deal { return Deal{v: v} }

// ParseDeal decodes raw deal JSON. The top level must be an object.
func ParseDeal(data []byte) (Deal, error) {
	v, err := canon.Decode(data)
	if err != nil {
		return Deal{}, eris.Wrap(err, "underwrite: parse deal")
	}
	if v.Kind() != canon.KindObject {
		return Deal{}, eris.New("underwrite: deal facts must be a JSON object")
	}
	return Deal{v: v}, nil
}

// Value returns the underlying fact tree, for hashing into a run record.
func (d Deal) Value() canon.Value { return d.v }

func (d Deal) number(path ...string) *float64 {
	if n, ok := d.v.NumberAt(path...); ok {
		return f64(n)
	}
	return nil
}

func (d Deal) str(path ...string) string {
	s, _ := d.v.StringAt(path...)
	return s
}

func (d Deal) boolean(path ...string) (bool, bool) {
	return d.v.BoolAt(path...)
}

// Market valuation and liquidity facts.
func (d Deal) ARV() *float64           { return d.number("market", "arv") }
func (d Deal) AIV() *float64           { return d.number("market", "aiv") }
func (d Deal) DOMZip() *float64        { return d.number("market", "dom_zip") }
func (d Deal) MOIZip() *float64        { return d.number("market", "moi_zip") }
func (d Deal) ZipPercentile() *float64 { return d.number("market", "zip_percentile") }

// Payoff returns the senior debt payoff figure, falling back to the senior
// principal when no payoff letter amount is present.
func (d Deal) Payoff() *float64 {
	if p := d.number("debt", "payoff"); p != nil {
		return p
	}
	return d.number("debt", "senior_principal")
}

// RepairsBase returns the repair estimate leaf.
func (d Deal) RepairsBase() *float64 {
	if r := d.number("costs", "repairs_base"); r != nil {
		return r
	}
	return d.number("costs", "repairs")
}

// AuctionDate returns the auction date string, empty when absent.
func (d Deal) AuctionDate() string { return d.str("timeline", "auction_date") }

// InsurabilityStatus returns the raw insurability status string.
func (d Deal) InsurabilityStatus() string { return d.str("status", "insurability") }

// CapOverrideEvidence is the documentary evidence the AIV cap override rules
// check: insurance, title, liquidity, approver role, and the logged reason.
type CapOverrideEvidence struct {
	BindableInsurance bool
	ClearTitleQuote   bool
	FastZipLiquidity  bool
	ApproverRole      string
	HasLoggedReason   bool
}

// capOverrideEvidence gathers the override evidence leaves from the deal.
func (d Deal) capOverrideEvidence(band SpeedBand) CapOverrideEvidence {
	bindable := d.InsurabilityStatus() == "bindable"
	if b, ok := d.boolean("status", "insurance_bindable"); ok && b {
		bindable = true
	}

	clear := d.str("title", "status") == "clear"
	if b, ok := d.boolean("title", "clear"); ok && b {
		clear = true
	}
	if b, ok := d.boolean("title", "quote_present"); ok && b {
		clear = true
	}

	role := d.str("approvals", "aiv_cap_override_role")
	if role == "" {
		role = d.str("user", "role")
	}

	logged := d.str("approvals", "aiv_cap_override_reason") != ""
	if b, ok := d.boolean("approvals", "aiv_cap_override_reason_logged"); ok && b {
		logged = true
	}

	return CapOverrideEvidence{
		BindableInsurance: bindable,
		ClearTitleQuote:   clear,
		FastZipLiquidity:  band == SpeedFast || band == SpeedBalanced,
		ApproverRole:      role,
		HasLoggedReason:   logged,
	}
}

// SpeedBand classifies market liquidity from DOM and months-of-inventory.
// Empty means neither fact was present.
type SpeedBand string

const (
	SpeedFast     SpeedBand = "fast"
	SpeedBalanced SpeedBand = "balanced"
	SpeedSlow     SpeedBand = "slow"
	SpeedUnknown  SpeedBand = ""
)

// SpeedBandFromMarket derives the liquidity band: fast when DOM <= 30 days or
// MOI <= 3 months, balanced up to 90 days / 6 months, slow beyond.
func SpeedBandFromMarket(dom, moi *float64) SpeedBand {
	if dom == nil && moi == nil {
		return SpeedUnknown
	}
	if (dom != nil && *dom <= 30) || (moi != nil && *moi <= 3) {
		return SpeedFast
	}
	if (dom != nil && *dom <= 90) || (moi != nil && *moi <= 6) {
		return SpeedBalanced
	}
	return SpeedSlow
}

package doubleclose

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
)

// County is the transfer-tax jurisdiction. Miami-Dade carries its own stamp
// rates; everything else uses the state default.
type County string

const (
	CountyMiamiDade County = "MIAMI-DADE"
	CountyOther     County = "OTHER"
)

// PropertyType distinguishes single-family residences, which Miami-Dade
// exempts from the surtax.
type PropertyType string

const (
	PropertySFR   PropertyType = "SFR"
	PropertyOther PropertyType = "OTHER"
)

// ParseCounty validates a county code. Unrecognized codes are rejected, not
// defaulted to OTHER.
func ParseCounty(s string) (County, error) {
	switch County(strings.ToUpper(strings.TrimSpace(s))) {
	case CountyMiamiDade:
		return CountyMiamiDade, nil
	case CountyOther:
		return CountyOther, nil
	}
	return "", eris.Errorf("doubleclose: unrecognized county %q", s)
}

// ParsePropertyType validates a property type code.
func ParsePropertyType(s string) (PropertyType, error) {
	switch PropertyType(strings.ToUpper(strings.TrimSpace(s))) {
	case PropertySFR:
		return PropertySFR, nil
	case PropertyOther:
		return PropertyOther, nil
	}
	return "", eris.Errorf("doubleclose: unrecognized property type %q", s)
}

// Side identifies a closing leg.
type Side string

const (
	SideAB Side = "AB"
	SideBC Side = "BC"
)

// Input describes the double-close transaction: both contract prices, the
// jurisdiction, optional financed notes and page counts per side, and the
// carry between closings.
type Input struct {
	ABPrice      float64      `json:"ab_price"`
	BCPrice      float64      `json:"bc_price"`
	County       County       `json:"county"`
	PropertyType PropertyType `json:"property_type"`
	ABNoteAmount float64      `json:"ab_note_amount,omitempty"`
	BCNoteAmount float64      `json:"bc_note_amount,omitempty"`
	ABPages      int          `json:"ab_pages,omitempty"`
	BCPages      int          `json:"bc_pages,omitempty"`
	HoldDays     int          `json:"hold_days,omitempty"`
	DailyCarry   float64      `json:"daily_carry,omitempty"`
	MonthlyCarry float64      `json:"monthly_carry,omitempty"`
}

// Validate rejects out-of-domain input: unknown enums and negative amounts
// are hard errors, never coerced.
func (in Input) Validate() error {
	if _, err := ParseCounty(string(in.County)); err != nil {
		return err
	}
	if _, err := ParsePropertyType(string(in.PropertyType)); err != nil {
		return err
	}
	for name, n := range map[string]float64{
		"ab_price":       in.ABPrice,
		"bc_price":       in.BCPrice,
		"ab_note_amount": in.ABNoteAmount,
		"bc_note_amount": in.BCNoteAmount,
		"daily_carry":    in.DailyCarry,
		"monthly_carry":  in.MonthlyCarry,
	} {
		if n < 0 || math.IsNaN(n) || math.IsInf(n, 0) {
			return eris.Errorf("doubleclose: %s must be a non-negative finite number", name)
		}
	}
	if in.ABPages < 0 || in.BCPages < 0 || in.HoldDays < 0 {
		return eris.New("doubleclose: page and day counts must be non-negative")
	}
	return nil
}

// SideCosts is the cost breakdown for one closing leg.
type SideCosts struct {
	DeedStamps    float64 `json:"deed_stamps"`
	NoteStamps    float64 `json:"note_stamps"`
	IntangibleTax float64 `json:"intangible_tax"`
	TitlePremium  float64 `json:"title_premium"`
	RecordingFees float64 `json:"recording_fees"`
	Total         float64 `json:"total"`
}

// Comparison says which strategy nets more.
type Comparison string

const (
	AssignmentBetter  Comparison = "AssignmentBetter"
	DoubleCloseBetter Comparison = "DoubleCloseBetter"
	Tie               Comparison = "Tie"
)

// Result is the full double-close cost picture.
type Result struct {
	SideAB        SideCosts  `json:"side_ab"`
	SideBC        SideCosts  `json:"side_bc"`
	AssignmentFee float64    `json:"assignment_fee"`
	DCTotalCosts  float64    `json:"dc_total_costs"`
	DCCarryCost   float64    `json:"dc_carry_cost"`
	DCNetSpread   float64    `json:"dc_net_spread"`
	Comparison    Comparison `json:"comparison"`
}

// money rounds to cents half-to-even.
func money(n float64) float64 {
	return math.RoundToEven(n*100) / 100
}

// DeedStamps computes the deed documentary stamp tax for a transfer amount.
func DeedStamps(amount float64, county County, propertyType PropertyType, table RateTable) float64 {
	rate := table.DeedStampDefault
	if county == CountyMiamiDade {
		if propertyType == PropertySFR {
			rate = table.DeedStampMiamiDadeSFR
		} else {
			rate = table.DeedStampMiamiDadeOther
		}
	}
	return money(rate * math.Max(0, amount))
}

// NoteStamps computes the note documentary stamp tax; zero without a note.
func NoteStamps(noteAmount float64, table RateTable) float64 {
	return money(table.NoteStampRate * math.Max(0, noteAmount))
}

// IntangibleTax computes the nonrecurring intangible tax on a financed note.
func IntangibleTax(noteAmount float64, table RateTable) float64 {
	return money(table.IntangibleTaxRate * math.Max(0, noteAmount))
}

// TitlePremium computes the owner's title premium over the banded schedule.
// The schedule is marginal: each band's rate applies only to the slice of
// coverage inside that band and the slices stack, so $150,000 at the Florida
// rates is 100 x $5.75 plus 50 x $5.00, not 150 x $5.00.
func TitlePremium(price float64, table RateTable) float64 {
	remaining := math.Max(0, price)
	premium := 0.0
	lower := 0.0
	for _, band := range table.TitlePremiumBands {
		upper := lower + remaining
		if band.UpTo != nil {
			upper = *band.UpTo
		}
		span := math.Min(remaining, upper-lower)
		if span <= 0 {
			break
		}
		premium += (span / 1000) * band.RatePerThousand
		remaining -= span
		lower = upper
	}
	return money(premium)
}

// RecordingFees computes base plus per-page fees beyond the first page.
func RecordingFees(pages int, table RateTable) float64 {
	if pages < 1 {
		pages = 1
	}
	extra := float64(pages - 1)
	return money(table.RecordingFeeBase + extra*table.RecordingFeePerPage)
}

// SideCostsFor computes the five cost components for one leg.
func SideCostsFor(side Side, in Input, table RateTable) SideCosts {
	price, note, pages := in.ABPrice, in.ABNoteAmount, in.ABPages
	if side == SideBC {
		price, note, pages = in.BCPrice, in.BCNoteAmount, in.BCPages
	}
	costs := SideCosts{
		DeedStamps:    DeedStamps(price, in.County, in.PropertyType, table),
		NoteStamps:    NoteStamps(note, table),
		IntangibleTax: IntangibleTax(note, table),
		TitlePremium:  TitlePremium(price, table),
		RecordingFees: RecordingFees(pages, table),
	}
	costs.Total = money(costs.DeedStamps + costs.NoteStamps + costs.IntangibleTax + costs.TitlePremium + costs.RecordingFees)
	return costs
}

// CompareStrategies nets the double-close spread against the pure assignment
// fee: netSpread = fee - totalCosts - carryCost, AssignmentBetter when the
// assignment keeps more.
func CompareStrategies(assignmentFee, totalCosts, carryCost float64) (netSpread float64, c Comparison) {
	netSpread = money(assignmentFee - totalCosts - carryCost)
	switch {
	case netSpread > assignmentFee:
		c = DoubleCloseBetter
	case netSpread < assignmentFee:
		c = AssignmentBetter
	default:
		c = Tie
	}
	return netSpread, c
}

// Compute validates the input and produces the full double-close result.
// Daily carry wins over a monthly figure; a monthly figure derives a daily
// rate over a 30-day month.
func Compute(in Input, table RateTable) (*Result, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}

	sideAB := SideCostsFor(SideAB, in, table)
	sideBC := SideCostsFor(SideBC, in, table)

	fee := money(in.BCPrice - in.ABPrice)
	totalCosts := money(sideAB.Total + sideBC.Total)

	daily := in.DailyCarry
	if daily == 0 && in.MonthlyCarry > 0 {
		daily = in.MonthlyCarry / 30
	}
	carry := money(daily * float64(in.HoldDays))

	net, comparison := CompareStrategies(fee, totalCosts, carry)

	return &Result{
		SideAB:        sideAB,
		SideBC:        sideBC,
		AssignmentFee: fee,
		DCTotalCosts:  totalCosts,
		DCCarryCost:   carry,
		DCNetSpread:   net,
		Comparison:    comparison,
	}, nil
}

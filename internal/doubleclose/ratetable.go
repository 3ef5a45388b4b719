// Package doubleclose computes two-sided (A-to-B, B-to-C) transfer costs for
// a simultaneous double closing: documentary stamps, note stamps, intangible
// tax, title premium, and recording fees, under jurisdiction-conditional rate
// tables, and compares the net proceeds of assigning the contract against
// double closing it.
package doubleclose

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// TitleBand is one rung of the title premium schedule: a rate per $1,000 of
// coverage applied to the slice of value up to UpTo. UpTo nil marks the
// open-ended top band.
type TitleBand struct {
	UpTo            *float64 `yaml:"up_to" json:"up_to"`
	RatePerThousand float64  `yaml:"rate_per_thousand" json:"rate_per_thousand"`
}

// RateTable is the jurisdiction rate data the calculator consumes. Supplied
// as configuration; DefaultRateTable ships the Florida promulgated rates.
type RateTable struct {
	DeedStampDefault        float64     `yaml:"deed_stamp_default" json:"deed_stamp_default"`
	DeedStampMiamiDadeSFR   float64     `yaml:"deed_stamp_miami_dade_sfr" json:"deed_stamp_miami_dade_sfr"`
	DeedStampMiamiDadeOther float64     `yaml:"deed_stamp_miami_dade_other" json:"deed_stamp_miami_dade_other"`
	NoteStampRate           float64     `yaml:"note_stamp_rate" json:"note_stamp_rate"`
	IntangibleTaxRate       float64     `yaml:"intangible_tax_rate" json:"intangible_tax_rate"`
	TitlePremiumBands       []TitleBand `yaml:"title_premium_bands" json:"title_premium_bands"`
	RecordingFeeBase        float64     `yaml:"recording_fee_base" json:"recording_fee_base"`
	RecordingFeePerPage     float64     `yaml:"recording_fee_per_additional_page" json:"recording_fee_per_additional_page"`
}

// DefaultRateTable returns the Florida rates: deed stamps $0.70 per $100
// ($0.60 in Miami-Dade for single-family, plus the $0.45 surtax otherwise),
// note stamps $0.35 per $100, intangible tax 2 mills, the promulgated title
// premium schedule, and standard recording fees.
func DefaultRateTable() RateTable {
	f := func(n float64) *float64 { return &n }
	return RateTable{
		DeedStampDefault:        0.007,
		DeedStampMiamiDadeSFR:   0.006,
		DeedStampMiamiDadeOther: 0.0105,
		NoteStampRate:           0.0035,
		IntangibleTaxRate:       0.002,
		TitlePremiumBands: []TitleBand{
			{UpTo: f(100_000), RatePerThousand: 5.75},
			{UpTo: f(1_000_000), RatePerThousand: 5.00},
			{UpTo: f(5_000_000), RatePerThousand: 2.50},
			{UpTo: f(10_000_000), RatePerThousand: 2.25},
			{UpTo: nil, RatePerThousand: 2.00},
		},
		RecordingFeeBase:    10.00,
		RecordingFeePerPage: 8.50,
	}
}

// LoadRateTable reads a rate table from a YAML file.
func LoadRateTable(path string) (RateTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RateTable{}, eris.Wrapf(err, "doubleclose: read rate table %s", path)
	}
	var table RateTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return RateTable{}, eris.Wrapf(err, "doubleclose: parse rate table %s", path)
	}
	if err := table.Validate(); err != nil {
		return RateTable{}, err
	}
	return table, nil
}

// Validate checks the table for usable rates: non-negative rates and a title
// schedule whose bands ascend with an open top band last.
func (t RateTable) Validate() error {
	for name, rate := range map[string]float64{
		"deed_stamp_default":                t.DeedStampDefault,
		"deed_stamp_miami_dade_sfr":         t.DeedStampMiamiDadeSFR,
		"deed_stamp_miami_dade_other":       t.DeedStampMiamiDadeOther,
		"note_stamp_rate":                   t.NoteStampRate,
		"intangible_tax_rate":               t.IntangibleTaxRate,
		"recording_fee_base":                t.RecordingFeeBase,
		"recording_fee_per_additional_page": t.RecordingFeePerPage,
	} {
		if rate < 0 {
			return eris.Errorf("doubleclose: negative rate %s", name)
		}
	}
	if len(t.TitlePremiumBands) == 0 {
		return eris.New("doubleclose: title premium schedule is empty")
	}
	prev := 0.0
	for i, band := range t.TitlePremiumBands {
		if band.RatePerThousand < 0 {
			return eris.Errorf("doubleclose: negative title rate in band %d", i)
		}
		if band.UpTo == nil {
			if i != len(t.TitlePremiumBands)-1 {
				return eris.Errorf("doubleclose: open-ended title band %d must be last", i)
			}
			continue
		}
		if *band.UpTo <= prev {
			return eris.Errorf("doubleclose: title band %d upper bound %.2f does not ascend", i, *band.UpTo)
		}
		prev = *band.UpTo
	}
	return nil
}

package doubleclose

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeedStamps(t *testing.T) {
	table := DefaultRateTable()
	assert.Equal(t, 1_400.0, DeedStamps(200_000, CountyOther, PropertySFR, table))
	assert.Equal(t, 1_200.0, DeedStamps(200_000, CountyMiamiDade, PropertySFR, table))
	// Miami-Dade non-SFR carries the surtax.
	assert.Equal(t, 2_100.0, DeedStamps(200_000, CountyMiamiDade, PropertyOther, table))
	assert.Equal(t, 0.0, DeedStamps(-500, CountyOther, PropertySFR, table))
}

func TestNoteStampsAndIntangibleTax(t *testing.T) {
	table := DefaultRateTable()
	assert.Equal(t, 560.0, NoteStamps(160_000, table))
	assert.Equal(t, 320.0, IntangibleTax(160_000, table))
	assert.Equal(t, 0.0, NoteStamps(0, table))
	assert.Equal(t, 0.0, IntangibleTax(0, table))
}

func TestTitlePremium_MarginalBandsStack(t *testing.T) {
	table := DefaultRateTable()
	// 100 x 5.75 within the first band.
	assert.Equal(t, 575.0, TitlePremium(100_000, table))
	// 100 x 5.75 + 50 x 5.00: the second band rates only its own slice.
	assert.Equal(t, 825.0, TitlePremium(150_000, table))
	// 575 + 900 x 5.00 = 5075 at the first million.
	assert.Equal(t, 5_075.0, TitlePremium(1_000_000, table))
	// Open-ended top band catches everything above 10M.
	assert.Equal(t, 575.0+4_500.0+10_000.0+11_250.0+2_000.0, TitlePremium(11_000_000, table))
	assert.Equal(t, 0.0, TitlePremium(0, table))
}

func TestRecordingFees(t *testing.T) {
	table := DefaultRateTable()
	assert.Equal(t, 10.0, RecordingFees(1, table))
	assert.Equal(t, 10.0, RecordingFees(0, table))
	assert.Equal(t, 27.0, RecordingFees(3, table))
}

func TestCompareStrategies_ExplicitCosts(t *testing.T) {
	// 230000 - 200000 gross, 4500 + 5500 closing costs, 21 days at 38/day.
	net, comparison := CompareStrategies(230_000-200_000, 4_500+5_500, 21*38)
	assert.Equal(t, 19_202.0, net)
	assert.Equal(t, AssignmentBetter, comparison)
}

func TestCompareStrategies_Tie(t *testing.T) {
	net, comparison := CompareStrategies(30_000, 0, 0)
	assert.Equal(t, 30_000.0, net)
	assert.Equal(t, Tie, comparison)
}

func TestCompute(t *testing.T) {
	res, err := Compute(Input{
		ABPrice:      200_000,
		BCPrice:      230_000,
		County:       CountyOther,
		PropertyType: PropertySFR,
		HoldDays:     21,
		DailyCarry:   38,
	}, DefaultRateTable())
	require.NoError(t, err)

	assert.Equal(t, 1_400.0, res.SideAB.DeedStamps)
	assert.Equal(t, 1_075.0, res.SideAB.TitlePremium)
	assert.Equal(t, 10.0, res.SideAB.RecordingFees)
	assert.Equal(t, 2_485.0, res.SideAB.Total)

	assert.Equal(t, 1_610.0, res.SideBC.DeedStamps)
	assert.Equal(t, 1_225.0, res.SideBC.TitlePremium)
	assert.Equal(t, 2_845.0, res.SideBC.Total)

	assert.Equal(t, 30_000.0, res.AssignmentFee)
	assert.Equal(t, 5_330.0, res.DCTotalCosts)
	assert.Equal(t, 798.0, res.DCCarryCost)
	assert.Equal(t, 23_872.0, res.DCNetSpread)
	assert.Equal(t, AssignmentBetter, res.Comparison)
}

func TestCompute_MonthlyCarryDerivesDaily(t *testing.T) {
	res, err := Compute(Input{
		ABPrice:      100_000,
		BCPrice:      120_000,
		County:       CountyOther,
		PropertyType: PropertyOther,
		HoldDays:     30,
		MonthlyCarry: 1_140,
	}, DefaultRateTable())
	require.NoError(t, err)
	assert.Equal(t, 1_140.0, res.DCCarryCost)
}

func TestCompute_InvalidInput(t *testing.T) {
	table := DefaultRateTable()

	_, err := Compute(Input{ABPrice: 1, BCPrice: 2, County: "BROWARD", PropertyType: PropertySFR}, table)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecognized county")

	_, err = Compute(Input{ABPrice: 1, BCPrice: 2, County: CountyOther, PropertyType: "CONDO"}, table)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecognized property type")

	_, err = Compute(Input{ABPrice: -1, BCPrice: 2, County: CountyOther, PropertyType: PropertySFR}, table)
	require.Error(t, err)
}

func TestParseCounty(t *testing.T) {
	c, err := ParseCounty(" miami-dade ")
	require.NoError(t, err)
	assert.Equal(t, CountyMiamiDade, c)

	_, err = ParseCounty("DUVAL")
	assert.Error(t, err)
}

func TestLoadRateTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
deed_stamp_default: 0.007
deed_stamp_miami_dade_sfr: 0.006
deed_stamp_miami_dade_other: 0.0105
note_stamp_rate: 0.0035
intangible_tax_rate: 0.002
title_premium_bands:
  - up_to: 100000
    rate_per_thousand: 5.75
  - rate_per_thousand: 5.00
recording_fee_base: 10
recording_fee_per_additional_page: 8.5
`), 0o644))

	table, err := LoadRateTable(path)
	require.NoError(t, err)
	assert.Equal(t, 0.007, table.DeedStampDefault)
	require.Len(t, table.TitlePremiumBands, 2)
	assert.Nil(t, table.TitlePremiumBands[1].UpTo)
	assert.Equal(t, 825.0, TitlePremium(150_000, table))
}

func TestRateTable_Validate(t *testing.T) {
	table := DefaultRateTable()
	require.NoError(t, table.Validate())

	bad := DefaultRateTable()
	bad.TitlePremiumBands = nil
	assert.Error(t, bad.Validate())

	open := DefaultRateTable()
	open.TitlePremiumBands = []TitleBand{
		{UpTo: nil, RatePerThousand: 5},
		{UpTo: f64p(100_000), RatePerThousand: 5.75},
	}
	assert.Error(t, open.Validate())
}

func f64p(n float64) *float64 { return &n }

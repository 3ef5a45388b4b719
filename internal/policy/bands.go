package policy

import "sort"

// SpreadBand is one rung of the minimum-spread-by-ARV ladder. MaxARV nil marks
// the open-ended top band. MinSpreadPct, when present, is a decimal fraction
// of ARV; the effective minimum is the larger of the dollar floor and the
// percentage floor.
type SpreadBand struct {
	MinARV       float64  `json:"minArv" yaml:"minArv"`
	MaxARV       *float64 `json:"maxArv" yaml:"maxArv"`
	MinSpread    float64  `json:"minSpread" yaml:"minSpread"`
	MinSpreadPct *float64 `json:"minSpreadPct,omitempty" yaml:"minSpreadPct,omitempty"`
}

// DefaultSpreadBands returns the compiled ladder used when no band policy is
// configured.
func DefaultSpreadBands() []SpreadBand {
	f := func(n float64) *float64 { return &n }
	return []SpreadBand{
		{MinARV: 0, MaxARV: f(200_000), MinSpread: 15_000},
		{MinARV: 200_000, MaxARV: f(400_000), MinSpread: 20_000},
		{MinARV: 400_000, MaxARV: f(650_000), MinSpread: 25_000},
		{MinARV: 650_000, MaxARV: nil, MinSpread: 30_000, MinSpreadPct: f(0.04)},
	}
}

// SanitizeBands normalizes a loosely-typed band list: entries are sorted by
// upper bound, lower bounds are rebuilt cumulatively, and percentage values
// above 1 are read as percent points. Returns nil when nothing usable remains.
func SanitizeBands(raw any) []SpreadBand {
	entries, ok := raw.([]any)
	if !ok {
		if typed, isTyped := raw.([]SpreadBand); isTyped {
			return rebuildBounds(typed)
		}
		return nil
	}

	var bands []SpreadBand
	for _, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		var band SpreadBand
		if v, ok := toNumber(firstOf(m, "maxArv", "max_arv")); ok {
			band.MaxARV = &v
		}
		if v, ok := toNumber(firstOf(m, "minSpread", "min_spread", "min_spread_dollars")); ok {
			band.MinSpread = v
		} else {
			continue
		}
		if v, ok := toNumber(firstOf(m, "minSpreadPct", "min_spread_pct", "min_spread_pct_of_arv")); ok {
			pct := pctToDecimal(v)
			band.MinSpreadPct = &pct
		}
		bands = append(bands, band)
	}
	if len(bands) == 0 {
		return nil
	}
	return rebuildBounds(bands)
}

func rebuildBounds(bands []SpreadBand) []SpreadBand {
	sorted := make([]SpreadBand, len(bands))
	copy(sorted, bands)
	sort.SliceStable(sorted, func(i, j int) bool {
		iMax, jMax := upperOf(sorted[i]), upperOf(sorted[j])
		return iMax < jMax
	})
	currentMin := 0.0
	for i := range sorted {
		sorted[i].MinARV = currentMin
		if sorted[i].MaxARV != nil {
			currentMin = *sorted[i].MaxARV
		}
	}
	return sorted
}

func upperOf(b SpreadBand) float64 {
	if b.MaxARV == nil {
		return maxFloat
	}
	return *b.MaxARV
}

const maxFloat = 1.7976931348623157e308

// SelectBand returns the first band covering arv, or nil if no band matches.
func SelectBand(bands []SpreadBand, arv float64) *SpreadBand {
	for i := range bands {
		b := bands[i]
		if arv >= b.MinARV && (b.MaxARV == nil || arv <= *b.MaxARV) {
			return &b
		}
	}
	return nil
}

// pctToDecimal reads values above 1 as percent points (4 means 4%).
func pctToDecimal(n float64) float64 {
	if n > 1 {
		return n / 100
	}
	return n
}

func firstOf(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

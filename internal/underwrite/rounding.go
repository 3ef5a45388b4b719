package underwrite

import "math"

// RoundCents rounds a dollar amount to cents using round-half-to-even so
// repeated fee calculations carry no systematic upward bias.
func RoundCents(n float64) float64 {
	return math.RoundToEven(n*100) / 100
}

// Round4 rounds to four decimal places for stable trace display. Applied
// consistently so recomputing the same input is bit-identical.
func Round4(n float64) float64 {
	return math.Round(n*10000) / 10000
}

func f64(n float64) *float64 { return &n }

func finite(p *float64) bool {
	return p != nil && !math.IsNaN(*p) && !math.IsInf(*p, 0)
}

// minNonNil returns the smallest finite value among the arguments, or nil
// when none is present.
func minNonNil(values ...*float64) *float64 {
	var out *float64
	for _, v := range values {
		if !finite(v) {
			continue
		}
		if out == nil || *v < *out {
			out = f64(*v)
		}
	}
	return out
}

package policy

import "github.com/rotisserie/eris"

// Posture selects which tier of default policy tokens applies before per-deal
// overrides.
type Posture string

const (
	PostureConservative Posture = "conservative"
	PostureBase         Posture = "base"
	PostureAggressive   Posture = "aggressive"
)

// Postures lists the valid postures.
var Postures = []Posture{PostureConservative, PostureBase, PostureAggressive}

// ParsePosture validates a posture string. Unknown postures are rejected, not
// defaulted.
func ParsePosture(s string) (Posture, error) {
	switch Posture(s) {
	case PostureConservative, PostureBase, PostureAggressive:
		return Posture(s), nil
	}
	return "", eris.Errorf("policy: unknown posture %q", s)
}

// postureOverlays holds the compiled posture-scoped token overrides, applied
// on top of registry defaults and org tokens. Conservative tightens caps and
// shrinks margins of error; aggressive loosens them. Only posture-aware knobs
// appear here.
var postureOverlays = map[Posture]map[string]any{
	PostureConservative: {
		KeyAIVSafetyCapPct:              0.93,
		KeyCarryMonthsCap:               3.0,
		KeyWholesaleTargetMarginPct:     0.15,
		KeyInitialOfferSpreadMultiplier: 1.15,
	},
	PostureBase: {
		KeyAIVSafetyCapPct:              0.96,
		KeyCarryMonthsCap:               4.0,
		KeyWholesaleTargetMarginPct:     0.12,
		KeyInitialOfferSpreadMultiplier: 1.0,
	},
	PostureAggressive: {
		KeyAIVSafetyCapPct:              0.98,
		KeyCarryMonthsCap:               6.0,
		KeyWholesaleTargetMarginPct:     0.10,
		KeyInitialOfferSpreadMultiplier: 0.9,
	},
}

// PostureOverlay returns the token overrides for a posture.
func PostureOverlay(p Posture) map[string]any {
	overlay := make(map[string]any, len(postureOverlays[p]))
	for k, v := range postureOverlays[p] {
		overlay[k] = v
	}
	return overlay
}

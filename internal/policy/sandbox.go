package policy

import (
	"go.uber.org/zap"
)

// SandboxOptions is the per-deal override document, grouped by domain with a
// flat fallback map for any declared knob not modeled by a structured group.
// Group maps are loosely typed; values are coerced against the registry's
// declared value types during resolution, and values that fail coercion are
// ignored so the earlier layer's value survives (never a silent zero).
type SandboxOptions struct {
	Valuation      map[string]any `json:"valuation,omitempty" yaml:"valuation,omitempty"`
	Repairs        map[string]any `json:"repairs,omitempty" yaml:"repairs,omitempty"`
	CarryTimeline  map[string]any `json:"carryTimeline,omitempty" yaml:"carryTimeline,omitempty"`
	ComplianceRisk map[string]any `json:"complianceRisk,omitempty" yaml:"complianceRisk,omitempty"`
	Disposition    map[string]any `json:"disposition,omitempty" yaml:"disposition,omitempty"`
	Workflow       map[string]any `json:"workflow,omitempty" yaml:"workflow,omitempty"`
	Raw            map[string]any `json:"raw,omitempty" yaml:"raw,omitempty"`
}

// group returns the override map for a structured group.
func (s *SandboxOptions) group(g Group) map[string]any {
	if s == nil {
		return nil
	}
	switch g {
	case GroupValuation:
		return s.Valuation
	case GroupRepairs:
		return s.Repairs
	case GroupCarryTimeline:
		return s.CarryTimeline
	case GroupComplianceRisk:
		return s.ComplianceRisk
	case GroupDisposition:
		return s.Disposition
	case GroupWorkflow:
		return s.Workflow
	}
	return nil
}

// coerce converts a raw override value to the knob's declared type. ok is
// false when the value does not conform; the caller skips it.
func coerce(def KnobDef, raw any) (any, bool) {
	switch def.Type {
	case TypeNumber:
		return toNumber(raw)
	case TypeBool:
		b, ok := raw.(bool)
		return b, ok
	case TypeString:
		s, ok := raw.(string)
		if !ok || s == "" {
			return "", false
		}
		return s, true
	case TypeStringList:
		return toStringList(raw)
	case TypeBands:
		bands := SanitizeBands(raw)
		if bands == nil {
			return nil, false
		}
		return bands, true
	}
	return nil, false
}

func toNumber(raw any) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func toStringList(raw any) ([]string, bool) {
	switch list := raw.(type) {
	case []string:
		return list, true
	case []any:
		out := make([]string, 0, len(list))
		for _, e := range list {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

// applySandbox layers sandbox overrides onto flat, structured groups first and
// the raw map last (later wins). Placement follows the resolver's reach table,
// not the override document: a key is honored in a structured group only when
// the resolver maps it there, and the raw map reaches every mapped key.
// Undeclared or unmapped keys are logged and dropped so typos and unmapped
// knobs surface in operator logs instead of silently configuring nothing.
func applySandbox(flat map[string]any, sandbox *SandboxOptions, idx map[string]KnobDef) {
	if sandbox == nil {
		return
	}
	for _, g := range Groups {
		for key, raw := range sandbox.group(g) {
			def, declared := idx[key]
			mapped, reachable := resolverReach[key]
			if !declared || !reachable || mapped != g {
				zap.L().Warn("policy: sandbox override ignored",
					zap.String("group", string(g)),
					zap.String("key", key),
				)
				continue
			}
			if v, ok := coerce(def, raw); ok {
				flat[key] = v
			}
		}
	}
	for key, raw := range sandbox.Raw {
		def, declared := idx[key]
		if _, reachable := resolverReach[key]; !declared || !reachable {
			zap.L().Warn("policy: sandbox override ignored",
				zap.String("group", "raw"),
				zap.String("key", key),
			)
			continue
		}
		if v, ok := coerce(def, raw); ok {
			flat[key] = v
		}
	}
}

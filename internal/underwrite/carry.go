package underwrite

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// CarryRule converts days-on-market into carry months:
// months = (dom + Offset) / Divisor.
type CarryRule struct {
	Offset  float64
	Divisor float64
}

// carryRulePattern accepts "(DOM+35)/30" and the offset-less "DOM/30" form.
// Whitespace is insignificant, matching is case-insensitive.
var carryRulePattern = regexp.MustCompile(`^\(?\s*DOM\s*(?:\+\s*(\d+(?:\.\d+)?))?\s*\)?\s*/\s*(\d+(?:\.\d+)?)$`)

// ParseCarryRule parses a DOM-to-months rule token. A token that is present
// but unparseable is invalid input and rejected; absence of the token is the
// caller's InfoNeeded case, not a parse error.
func ParseCarryRule(s string) (CarryRule, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	m := carryRulePattern.FindStringSubmatch(normalized)
	if m == nil {
		return CarryRule{}, eris.Errorf("underwrite: unparseable carry months rule %q", s)
	}
	rule := CarryRule{Divisor: 30}
	if m[1] != "" {
		offset, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return CarryRule{}, eris.Wrapf(err, "underwrite: carry rule offset in %q", s)
		}
		rule.Offset = offset
	}
	divisor, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return CarryRule{}, eris.Wrapf(err, "underwrite: carry rule divisor in %q", s)
	}
	if divisor <= 0 {
		return CarryRule{}, eris.Errorf("underwrite: carry rule divisor must be positive in %q", s)
	}
	rule.Divisor = divisor
	return rule, nil
}

// String renders the rule in its canonical token form.
func (r CarryRule) String() string {
	div := strconv.FormatFloat(r.Divisor, 'f', -1, 64)
	if r.Offset == 0 {
		return "DOM/" + div
	}
	return "(DOM+" + strconv.FormatFloat(r.Offset, 'f', -1, 64) + ")/" + div
}

// Months applies the rule to a DOM figure.
func (r CarryRule) Months(dom float64) float64 {
	return (dom + r.Offset) / r.Divisor
}

package rules

import "bytes"

// Result is the outcome of evaluating a rule set in Go.
type Result struct {
	Allowed bool
	Reason  string
	RuleID  string
}

// Evaluate applies the rule set to input with the same semantics as the
// compiled program.
func (rs *RuleSet) Evaluate(input []byte) Result {
	if len(input) == 0 || len(input) > rs.Limit() {
		return Result{Reason: ReasonInvalidInput}
	}
	for _, r := range rs.Rules {
		if !bytes.Contains(input, []byte(r.Pattern)) {
			continue
		}
		for _, ref := range r.Refinements {
			if bytes.Contains(input, []byte(ref.Pattern)) {
				return Result{Allowed: ref.Decision == Allow, Reason: ref.Reason, RuleID: ref.ID}
			}
		}
		return Result{Allowed: r.Decision == Allow, Reason: r.Reason, RuleID: r.ID}
	}
	return Result{Allowed: rs.Default.Decision == Allow, Reason: rs.Default.Reason}
}

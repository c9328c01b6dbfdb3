package rules

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Decision is the verdict of a rule.
type Decision string

const (
	Allow Decision = "allow"
	Deny  Decision = "deny"
)

// DefaultMaxInput is the largest request accepted by compiled programs when a
// rule set does not set max_input.
const DefaultMaxInput = 8192

// ReasonInvalidInput is logged by compiled programs for empty, oversized or
// misplaced input.
const ReasonInvalidInput = "invalid input bounds"

// Rule matches when Pattern occurs in the input.
type Rule struct {
	ID       string   `yaml:"id"`
	Pattern  string   `yaml:"when"`
	Decision Decision `yaml:"decision"`
	Reason   string   `yaml:"reason"`

	// Refinements are tried in order once the rule matches; the first
	// matching refinement overrides the rule's own decision.
	Refinements []Rule `yaml:"unless,omitempty"`
}

// Fallback is the decision taken when no rule matches.
type Fallback struct {
	Decision Decision `yaml:"decision"`
	Reason   string   `yaml:"reason"`
}

// Case is an expected outcome for one input, used by policy tests.
type Case struct {
	Name    string `yaml:"name"`
	Input   string `yaml:"input"`
	Allowed bool   `yaml:"allowed"`
	Reason  string `yaml:"reason,omitempty"`
}

// RuleSet is an ordered, first-match-wins rule list.
type RuleSet struct {
	Version  string   `yaml:"version"`
	MaxInput int      `yaml:"max_input,omitempty"`
	Rules    []Rule   `yaml:"rules"`
	Default  Fallback `yaml:"default"`
	Tests    []Case   `yaml:"tests,omitempty"`
}

// Load reads and validates a rule set file.
func Load(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule set: %w", err)
	}
	rs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

// Parse decodes and validates a YAML rule set.
func Parse(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to parse rule set: %w", err)
	}
	if rs.MaxInput == 0 {
		rs.MaxInput = DefaultMaxInput
	}
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return &rs, nil
}

// Marshal encodes the rule set as YAML.
func (rs *RuleSet) Marshal() ([]byte, error) {
	return yaml.Marshal(rs)
}

// Limit returns the effective maximum input length.
func (rs *RuleSet) Limit() int {
	if rs.MaxInput <= 0 {
		return DefaultMaxInput
	}
	return rs.MaxInput
}

// FieldError describes one invalid field of a rule set.
type FieldError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every problem found in a rule set.
type ValidationError struct {
	Errors []FieldError
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fe.Error())
	}
	return "invalid rule set: " + strings.Join(msgs, "; ")
}

// Validate checks the rule set and that its compiled form fits one page of
// guest memory.
func (rs *RuleSet) Validate() error {
	var errs []FieldError
	add := func(field, format string, args ...any) {
		errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if rs.MaxInput < 0 {
		add("max_input", "must not be negative, got %d", rs.MaxInput)
	}
	if !rs.Default.Decision.valid() {
		add("default.decision", "must be allow or deny, got %q", rs.Default.Decision)
	}

	seen := make(map[string]bool)
	for i, r := range rs.Rules {
		field := fmt.Sprintf("rules[%d]", i)
		if r.ID != "" {
			if seen[r.ID] {
				add(field+".id", "duplicate id %q", r.ID)
			}
			seen[r.ID] = true
		}
		validateRule(field, r, add)
		for j, ref := range r.Refinements {
			sub := fmt.Sprintf("%s.unless[%d]", field, j)
			validateRule(sub, ref, add)
			if len(ref.Refinements) > 0 {
				add(sub+".unless", "refinements cannot be nested")
			}
		}
	}

	if len(errs) == 0 {
		if l := layoutFor(rs); l.inputOffset+uint32(rs.Limit()) > pageSize {
			add("max_input", "input region [%d, %d) exceeds guest memory of %d bytes",
				l.inputOffset, l.inputOffset+uint32(rs.Limit()), pageSize)
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func validateRule(field string, r Rule, add func(field, format string, args ...any)) {
	if r.Pattern == "" {
		add(field+".when", "pattern is required")
	}
	if !r.Decision.valid() {
		add(field+".decision", "must be allow or deny, got %q", r.Decision)
	}
}

func (d Decision) valid() bool {
	return d == Allow || d == Deny
}

// Default returns the rule set shipped with the connector.
func Default() *RuleSet {
	return &RuleSet{
		Version:  "1.0.0",
		MaxInput: DefaultMaxInput,
		Rules: []Rule{
			{ID: "blocked", Pattern: `"blocked":true`, Decision: Deny, Reason: "explicitly blocked"},
			{ID: "admin", Pattern: `"admin"`, Decision: Allow, Reason: "admin role"},
			{
				ID: "operator", Pattern: `"operator"`, Decision: Allow, Reason: "operator role",
				Refinements: []Rule{
					{ID: "operator-secret", Pattern: `"secret"`, Decision: Deny, Reason: "operator restricted"},
				},
			},
			{
				ID: "viewer", Pattern: `"viewer"`, Decision: Allow, Reason: "viewer role",
				Refinements: []Rule{
					{ID: "viewer-write", Pattern: `"write"`, Decision: Deny, Reason: "viewer write restricted"},
				},
			},
		},
		Default: Fallback{Decision: Allow, Reason: "default permissive policy"},
		Tests: []Case{
			{Name: "admin", Input: `{"role":"admin"}`, Allowed: true, Reason: "admin role"},
			{Name: "blocked", Input: `{"blocked":true}`, Allowed: false, Reason: "explicitly blocked"},
			{Name: "operator secret", Input: `{"role":"operator","resource":"secret"}`, Allowed: false, Reason: "operator restricted"},
			{Name: "operator data", Input: `{"role":"operator","resource":"data"}`, Allowed: true, Reason: "operator role"},
			{Name: "viewer write", Input: `{"role":"viewer","action":"write"}`, Allowed: false, Reason: "viewer write restricted"},
			{Name: "empty object", Input: `{}`, Allowed: true, Reason: "default permissive policy"},
		},
	}
}

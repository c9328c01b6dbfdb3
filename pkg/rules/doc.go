// Package rules defines the byte-pattern rule sets evaluated by the edge
// connector and compiles them into policy artifacts.
//
// A rule set is an ordered list of substring rules. The first rule whose
// pattern occurs in the request bytes decides; a rule may carry refinements
// that are checked before its own decision. When nothing matches, the
// default applies. Matching is exact and case-sensitive with no
// normalisation, so `"blocked": true` does not match `"blocked":true`.
//
// Rule sets are written in YAML:
//
//	version: "1.0.0"
//	max_input: 8192
//	rules:
//	  - id: admin
//	    when: '"admin"'
//	    decision: allow
//	    reason: admin role
//	default:
//	  decision: allow
//	  reason: default permissive policy
//
// Compile turns a rule set into a WebAssembly module exporting memory,
// get_input_buffer and evaluate_access and importing host.log. Evaluate is a
// pure Go evaluator with the same semantics, used to cross-check artifacts.
package rules

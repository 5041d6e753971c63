// Package builtins holds the Built-in Requirement Library (spec.md §4.5):
// a fixed, hand-authored, per-version catalog of closed formulas over the
// Encoding's elem_class/attr/assoc predicates. Unlike the DOMLR Compiler's
// output, these bodies are written directly as Mangle rule text — they
// never change shape across a run, so there is no lexer/parser/resolver
// pipeline to route them through, only the version-dependent question of
// which classes and associations exist to reference.
//
// Every catalog entry is "flipped": its RuleText captures the violation
// condition itself (spec.md §4.4, §4.5 — "the solver is asked to find a
// witness of violation"), matching requirement.Requirement's contract
// directly without any extra polarity bookkeeping.
package builtins

import (
	"github.com/doml-verifier/mc/internal/metamodel"
	"github.com/doml-verifier/mc/internal/requirement"
)

// For returns the built-in catalog for one DOML version. Per spec.md §9's
// explicit design note, later-version catalogs are never back-ported:
// each version's list is written against that version's own schema, even
// where the wording of an invariant is shared across versions.
func For(v metamodel.Version) []requirement.Requirement {
	switch v {
	case metamodel.V1_0:
		return v1Catalog()
	case metamodel.V2_0:
		return v2_0Catalog()
	case metamodel.V2_1:
		return v2_1Catalog()
	case metamodel.V2_1_1:
		return v2_1_1Catalog()
	default:
		return nil
	}
}

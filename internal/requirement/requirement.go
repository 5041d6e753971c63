// Package requirement defines the shape shared by the Built-in
// Requirement Library and the DOMLR Compiler's output: a compiled,
// checkable unit the Verification Driver can run without caring whether
// it came from a catalog or from user source (spec.md §3, "Requirement").
package requirement

// Source distinguishes where a Requirement came from, for diagnostic
// grouping (spec.md §4.7).
type Source string

const (
	SourceBuiltin     Source = "builtin"
	SourceConsistency Source = "consistency"
	SourceUser        Source = "user"
)

// Requirement is a single compiled, checkable unit. RuleText and
// QueryText are ready to hand to encoding.Engine.Check verbatim:
// RuleText declares and defines a predicate capturing exactly the
// models on which this requirement's effective formula holds (after
// polarity has already been applied — see compiler.go/builtins for how
// Flipped folds into RuleText), and QueryText asks for it.
type Requirement struct {
	ID          string
	Description string
	Source      Source
	Flipped     bool

	RuleText  string
	QueryText string

	// Template is the diagnostic message, with `{name}` placeholders
	// substituted from the witness binding of the same variable name
	// found in QueryText (spec.md §4.4 stage 5).
	Template string
}

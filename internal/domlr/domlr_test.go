package domlr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doml-verifier/mc/internal/metamodel"
)

// s4Source and its `-`-prefixed twin mirror spec.md §8's S4/S5 scenario
// seeds (adjusted to name cpu_count on its actual declaring class in the
// embedded schema, VirtualMachine rather than ComputingNode): the same
// quantified body compiled once unflipped, once flipped, to demonstrate
// polarity.
const s4Source = `"every VM has enough cores" {
  forall v. v is infrastructure.VirtualMachine implies v has infrastructure.VirtualMachine::cpu_count >= 2
} error "{v} underprovisioned"
`

const s5Source = `- "every VM has enough cores" {
  forall v. v is infrastructure.VirtualMachine implies v has infrastructure.VirtualMachine::cpu_count >= 2
} error "{v} underprovisioned"
`

func testRegistry(t *testing.T) *metamodel.Registry {
	t.Helper()
	return metamodel.NewRegistry()
}

func TestCompileS4Unflipped(t *testing.T) {
	reg := testRegistry(t)
	res, err := Compile(s4Source, reg, metamodel.V2_1)
	require.NoError(t, err)
	require.Empty(t, res.Failures)
	require.Len(t, res.Requirements, 1)

	req := res.Requirements[0]
	assert.False(t, req.Flipped)
	assert.Equal(t, "{v} underprovisioned", req.Template)
	// Unflipped: effective body is the negation of the forall, i.e. an
	// existential counterexample search — the query predicate must expose
	// the witness variable v so the diagnostic can name the offending VM.
	assert.Contains(t, req.QueryText, "(")
	assert.NotEmpty(t, req.RuleText)
	assert.Contains(t, req.RuleText, "elem_class")
	assert.Contains(t, req.RuleText, "infrastructure_VirtualMachine")
	// Unflipped search looks for a counterexample VM with cpu_count < 2,
	// the De Morgan dual of the written ">= 2" bound.
	assert.Contains(t, req.RuleText, ":lt")
}

func TestCompileS5Flipped(t *testing.T) {
	reg := testRegistry(t)
	res, err := Compile(s5Source, reg, metamodel.V2_1)
	require.NoError(t, err)
	require.Empty(t, res.Failures)
	require.Len(t, res.Requirements, 1)

	req := res.Requirements[0]
	assert.True(t, req.Flipped)
	// Flipped: effective body is the forall exactly as written, so no
	// counterexample variable survives to the query head — RuleText still
	// compiles, just without a witness binding.
	assert.NotEmpty(t, req.RuleText)
}

func TestCompileUnknownClassFailsOnlyThatRequirement(t *testing.T) {
	reg := testRegistry(t)
	src := `"bogus" {
  forall v. v is infrastructure.Frobnicator implies v is infrastructure.VirtualMachine
} error "n/a"

"good" {
  exists v. v is infrastructure.VirtualMachine
} error "found one"
`
	res, err := Compile(src, reg, metamodel.V2_1)
	require.NoError(t, err)
	require.Len(t, res.Failures, 1)
	require.Len(t, res.Requirements, 1)
	assert.Equal(t, "good", res.Requirements[0].ID)
	assert.Contains(t, res.Failures[0].Error(), "Frobnicator")
}

func TestCompileUnboundVariable(t *testing.T) {
	reg := testRegistry(t)
	src := `"unbound" {
  exists v. w is infrastructure.VirtualMachine
} error "n/a"
`
	res, err := Compile(src, reg, metamodel.V2_1)
	require.NoError(t, err)
	require.Empty(t, res.Requirements)
	require.Len(t, res.Failures, 1)
	assert.Contains(t, res.Failures[0].Error(), "variable")
}

func TestCompileDirectives(t *testing.T) {
	reg := testRegistry(t)
	src := `check consistency
ignore builtin
skip vm_has_interface

"trivial" {
  exists v. v is infrastructure.VirtualMachine
} error "n/a"
`
	res, err := Compile(src, reg, metamodel.V2_1)
	require.NoError(t, err)
	require.Len(t, res.Directives, 3)
	assert.Equal(t, DirectiveCheckConsistency, res.Directives[0].Kind)
	assert.Equal(t, DirectiveIgnoreBuiltin, res.Directives[1].Kind)
	assert.Equal(t, DirectiveSkip, res.Directives[2].Kind)
	assert.Equal(t, "vm_has_interface", res.Directives[2].Arg)
}

func TestCompileCrossElementAttrComparison(t *testing.T) {
	reg := testRegistry(t)
	src := `"relative sizing" {
  forall a. forall b. (a is infrastructure.VirtualMachine and b is infrastructure.VirtualMachine) implies a has infrastructure.VirtualMachine::cpu_count <= b has infrastructure.VirtualMachine::cpu_count
} error "n/a"
`
	res, err := Compile(src, reg, metamodel.V2_1)
	require.NoError(t, err)
	require.Empty(t, res.Failures)
	require.Len(t, res.Requirements, 1)
	// Unflipped compilation searches for a counterexample pair, the De
	// Morgan dual of the written "<=" bound.
	assert.Contains(t, res.Requirements[0].RuleText, ":gt")
}

func TestRenderDiagnosticFallsBackWhenWitnessMissing(t *testing.T) {
	out := RenderDiagnostic("{v} underprovisioned", nil, nil)
	assert.True(t, strings.Contains(out, "{v} underprovisioned"))
	assert.True(t, strings.Contains(out, "no witness"))
}

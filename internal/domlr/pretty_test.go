package domlr

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roundTrip asserts parse(Pretty(f)) is structurally equal to f (spec.md
// §8 property 5), positions aside, and that Pretty is a fixpoint on its
// own output.
func roundTrip(t *testing.T, src string) {
	t.Helper()
	f1, err := ParseFile(src)
	require.NoError(t, err)

	printed := Pretty(f1)
	f2, err := ParseFile(printed)
	require.NoError(t, err, "canonical output must reparse:\n%s", printed)

	if diff := cmp.Diff(f1, f2, cmpopts.IgnoreTypes(Position{})); diff != "" {
		t.Errorf("parse(Pretty(f)) != f (-first +reparsed):\n%s\ncanonical form was:\n%s", diff, printed)
	}
	assert.Equal(t, printed, Pretty(f2), "Pretty must be a fixpoint on its own output")
}

func TestPrettyRoundTripSimpleRequirement(t *testing.T) {
	roundTrip(t, `"every VM has enough cores" {
  forall v. v is infrastructure.VirtualMachine implies v has infrastructure.VirtualMachine::cpu_count >= 2
} error "{v} underprovisioned"
`)
}

func TestPrettyRoundTripFlippedRequirement(t *testing.T) {
	roundTrip(t, `- "overprovisioned VM exists" {
  exists v. v is infrastructure.VirtualMachine and v has infrastructure.VirtualMachine::cpu_count > 64
} error "{v} is overprovisioned"
`)
}

func TestPrettyRoundTripDirectives(t *testing.T) {
	roundTrip(t, `check consistency
ignore builtin
skip vm-has-interface
csp

"trivial" {
  exists v. v is infrastructure.VirtualMachine
} error "n/a"
`)
}

func TestPrettyRoundTripConnectivesAndLiterals(t *testing.T) {
	roundTrip(t, `"kitchen sink" {
  forall a. forall b. (a is infrastructure.VirtualMachine or b is infrastructure.Container) and not a is b
    implies (a has infrastructure.ComputingNode::ifaces b iff b has infrastructure.NetworkInterface::endPoint == 167772161)
} error "a={a} b={b}"

"string and bool literals" {
  exists s. s is application.SoftwareInterface and s has application.SoftwareInterface::isSaaS == !True
    and s has application.SoftwareInterface::name != "internal"
} error "{s}"
`)
}

func TestPrettyRoundTripCrossElementComparison(t *testing.T) {
	roundTrip(t, `"relative sizing" {
  forall a. forall b. a has infrastructure.VirtualMachine::cpu_count <= b has infrastructure.VirtualMachine::cpu_count
} error "n/a"
`)
}

func TestPrettyNormalizesSymbolicSpellings(t *testing.T) {
	symbolic := `"sym" {
  ∀ v. v is infrastructure.VirtualMachine → (∃ w. v has infrastructure.ComputingNode::ifaces w) ∧ ¬ v is infrastructure.Container
} error "n/a"
`
	keyword := `"sym" {
  forall v. v is infrastructure.VirtualMachine implies (exists w. v has infrastructure.ComputingNode::ifaces w) and not v is infrastructure.Container
} error "n/a"
`
	fs, err := ParseFile(symbolic)
	require.NoError(t, err)
	fk, err := ParseFile(keyword)
	require.NoError(t, err)
	assert.Equal(t, Pretty(fk), Pretty(fs))
	roundTrip(t, symbolic)
}

func TestPrettyEscapesStrings(t *testing.T) {
	f := &File{Requirements: []Requirement{{
		Name:  `quo"ted`,
		Body:  &Exists{Var: "v", Body: &IsClass{Var: "v", Class: QualifiedRef{ClassPart: "infrastructure_VirtualMachine"}}},
		Error: "line\nbreak\tand \\slash",
	}}}
	printed := Pretty(f)
	reparsed, err := ParseFile(printed)
	require.NoError(t, err)
	require.Len(t, reparsed.Requirements, 1)
	assert.Equal(t, f.Requirements[0].Name, reparsed.Requirements[0].Name)
	assert.Equal(t, f.Requirements[0].Error, reparsed.Requirements[0].Error)
}

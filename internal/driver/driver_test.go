package driver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/doml-verifier/mc/internal/config"
	"github.com/doml-verifier/mc/internal/domlr"
	"github.com/doml-verifier/mc/internal/encoding"
	"github.com/doml-verifier/mc/internal/external"
	"github.com/doml-verifier/mc/internal/im"
	"github.com/doml-verifier/mc/internal/metamodel"
	"github.com/doml-verifier/mc/internal/requirement"
	"github.com/doml-verifier/mc/internal/result"
)

// TestMain guards the parallel worker pool this package spawns against
// goroutine leaks, matching the teacher's internal/mangle test style.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func buildEncoding(t *testing.T, cpuCount string) (*metamodel.Metamodel, *metamodel.Registry, *encoding.Encoding) {
	t.Helper()
	reg := metamodel.NewRegistry()
	mm, err := reg.Metamodel(metamodel.V2_1)
	require.NoError(t, err)

	iface := &external.Node{
		Identity:   "iface-1",
		Class:      "infrastructure_NetworkInterface",
		Attributes: map[string][]string{"endPoint": {"10.0.0.1:80"}},
		References: map[string][]*external.Node{},
	}
	root := &external.Node{
		Identity:   "vm-1",
		Name:       "web-vm",
		Class:      "infrastructure_VirtualMachine",
		Attributes: map[string][]string{"cpu_count": {cpuCount}},
		References: map[string][]*external.Node{"ifaces": {iface}},
	}
	model, err := im.Build(root, reg, metamodel.V2_1)
	require.NoError(t, err)

	enc, err := encoding.Build(mm, model)
	require.NoError(t, err)
	return mm, reg, enc
}

func TestBuildPlanSuppressesBuiltinsOnIgnoreDirective(t *testing.T) {
	mm, reg, _ := buildEncoding(t, "2")
	compiled, err := domlr.Compile(`ignore builtin
"trivial" {
  exists v. v is infrastructure.VirtualMachine
} error "n/a"
`, reg, metamodel.V2_1)
	require.NoError(t, err)

	plan := BuildPlan(mm, reg, metamodel.V2_1, compiled, config.VerifyConfig{Threads: 2})
	for _, r := range plan.Requirements {
		assert.NotEqual(t, requirement.SourceBuiltin, r.Source)
	}
	require.Len(t, plan.Requirements, 1)
}

func TestBuildPlanSkipDirectiveOmitsRequirement(t *testing.T) {
	mm, reg, _ := buildEncoding(t, "2")
	compiled, err := domlr.Compile(`skip vm-has-interface
`, reg, metamodel.V2_1)
	require.NoError(t, err)

	plan := BuildPlan(mm, reg, metamodel.V2_1, compiled, config.VerifyConfig{Threads: 2})
	for _, r := range plan.Requirements {
		assert.NotEqual(t, "vm-has-interface", r.ID)
	}
}

func TestRunDetectsViolatedBuiltin(t *testing.T) {
	// No NetworkInterface present at all: vm-has-interface must fire.
	reg := metamodel.NewRegistry()
	mm, err := reg.Metamodel(metamodel.V2_1)
	require.NoError(t, err)
	root := &external.Node{
		Identity:   "vm-1",
		Name:       "lonely-vm",
		Class:      "infrastructure_VirtualMachine",
		Attributes: map[string][]string{"cpu_count": {"2"}},
		References: map[string][]*external.Node{},
	}
	model, err := im.Build(root, reg, metamodel.V2_1)
	require.NoError(t, err)
	enc, err := encoding.Build(mm, model)
	require.NoError(t, err)

	compiled := &domlr.CompileResult{}
	plan := BuildPlan(mm, reg, metamodel.V2_1, compiled, config.VerifyConfig{Threads: 2})
	summary, err := Run(context.Background(), enc, plan, config.VerifyConfig{Threads: 2, QueryTimeout: 2 * time.Second})
	require.NoError(t, err)

	assert.Equal(t, result.Violated, summary.Overall)
	var found bool
	for _, f := range summary.Findings {
		if f.Requirement.ID == "vm-has-interface" {
			found = true
			assert.Equal(t, result.Violated, f.Verdict)
			assert.Contains(t, f.Diagnostic, "lonely-vm")
		}
	}
	assert.True(t, found)
}

func TestRunSatisfiedWhenModelConforms(t *testing.T) {
	_, _, enc := buildEncoding(t, "4")
	reg := metamodel.NewRegistry()
	mm, err := reg.Metamodel(metamodel.V2_1)
	require.NoError(t, err)

	compiled := &domlr.CompileResult{}
	plan := BuildPlan(mm, reg, metamodel.V2_1, compiled, config.VerifyConfig{Threads: 2})
	summary, err := Run(context.Background(), enc, plan, config.VerifyConfig{Threads: 2, QueryTimeout: 2 * time.Second})
	require.NoError(t, err)

	// Only vm-has-interface is asserted: the other built-ins' verdicts on
	// this minimal model are not checked here, but vm-has-interface must
	// be satisfied since the VM has an interface.
	for _, f := range summary.Findings {
		if f.Requirement.ID == "vm-has-interface" {
			assert.Equal(t, result.Satisfied, f.Verdict)
		}
	}
}

func TestRunPreservesOrderAcrossThreadCounts(t *testing.T) {
	_, _, enc := buildEncoding(t, "4")
	reg := metamodel.NewRegistry()
	mm, err := reg.Metamodel(metamodel.V2_1)
	require.NoError(t, err)
	compiled := &domlr.CompileResult{}

	var orders [][]string
	for _, threads := range []int{1, 2, 4} {
		plan := BuildPlan(mm, reg, metamodel.V2_1, compiled, config.VerifyConfig{Threads: threads})
		summary, err := Run(context.Background(), enc, plan, config.VerifyConfig{Threads: threads, QueryTimeout: 2 * time.Second})
		require.NoError(t, err)
		var ids []string
		for _, f := range summary.Findings {
			ids = append(ids, f.Requirement.ID)
		}
		orders = append(orders, ids)
	}
	for i := 1; i < len(orders); i++ {
		assert.Equal(t, orders[0], orders[i], "spec.md §8 property 7: partitioning invariance")
	}
}

// TestRunNonFlippedUserRequirement is the end-to-end regression for
// spec.md §8 S4/S5: a non-flipped, user-authored DOMLR requirement must
// report Violated against a model that breaks it and Satisfied against
// one that doesn't. lower() already compiles the effective (polarity-
// adjusted) query, so checkOne must treat "witness found" as Violated
// for every requirement regardless of Flipped — re-negating a second
// time for the non-flipped case would invert this verdict.
func TestRunNonFlippedUserRequirement(t *testing.T) {
	const s4Source = `ignore builtin
"every VM has enough cores" {
  forall v. v is infrastructure.VirtualMachine implies v has infrastructure.VirtualMachine::cpu_count >= 2
} error "{v} underprovisioned"
`
	reg := metamodel.NewRegistry()
	mm, err := reg.Metamodel(metamodel.V2_1)
	require.NoError(t, err)
	compiled, err := domlr.Compile(s4Source, reg, metamodel.V2_1)
	require.NoError(t, err)
	require.Empty(t, compiled.Failures)
	require.Len(t, compiled.Requirements, 1)
	require.False(t, compiled.Requirements[0].Flipped)

	underprovisioned := &external.Node{
		Identity:   "vm-1",
		Name:       "underprovisioned-vm",
		Class:      "infrastructure_VirtualMachine",
		Attributes: map[string][]string{"cpu_count": {"1"}},
		References: map[string][]*external.Node{},
	}
	model, err := im.Build(underprovisioned, reg, metamodel.V2_1)
	require.NoError(t, err)
	enc, err := encoding.Build(mm, model)
	require.NoError(t, err)

	plan := BuildPlan(mm, reg, metamodel.V2_1, compiled, config.VerifyConfig{Threads: 2})
	summary, err := Run(context.Background(), enc, plan, config.VerifyConfig{Threads: 2, QueryTimeout: 2 * time.Second})
	require.NoError(t, err)
	require.Len(t, summary.Findings, 1)
	assert.Equal(t, result.Violated, summary.Findings[0].Verdict)
	assert.Contains(t, summary.Findings[0].Diagnostic, "underprovisioned-vm")

	conforming := &external.Node{
		Identity:   "vm-1",
		Name:       "well-provisioned-vm",
		Class:      "infrastructure_VirtualMachine",
		Attributes: map[string][]string{"cpu_count": {"4"}},
		References: map[string][]*external.Node{},
	}
	model2, err := im.Build(conforming, reg, metamodel.V2_1)
	require.NoError(t, err)
	enc2, err := encoding.Build(mm, model2)
	require.NoError(t, err)

	plan2 := BuildPlan(mm, reg, metamodel.V2_1, compiled, config.VerifyConfig{Threads: 2})
	summary2, err := Run(context.Background(), enc2, plan2, config.VerifyConfig{Threads: 2, QueryTimeout: 2 * time.Second})
	require.NoError(t, err)
	require.Len(t, summary2.Findings, 1)
	assert.Equal(t, result.Satisfied, summary2.Findings[0].Verdict)
}

// TestRunDuplicateEndpoint is spec.md §8 scenario S2: two interfaces
// whose endPoint attributes normalize to the same integer address must
// trip iface-unique-endpoint, and the diagnostic must name both.
func TestRunDuplicateEndpoint(t *testing.T) {
	reg := metamodel.NewRegistry()
	mm, err := reg.Metamodel(metamodel.V2_1)
	require.NoError(t, err)

	ifaceA := &external.Node{
		Identity:   "iface-a",
		Name:       "eth0",
		Class:      "infrastructure_NetworkInterface",
		Attributes: map[string][]string{"endPoint": {"10.0.0.1:80"}},
		References: map[string][]*external.Node{},
	}
	ifaceB := &external.Node{
		Identity:   "iface-b",
		Name:       "eth1",
		Class:      "infrastructure_NetworkInterface",
		Attributes: map[string][]string{"endPoint": {"10.0.0.1:443"}}, // same address, different port
		References: map[string][]*external.Node{},
	}
	root := &external.Node{
		Identity:   "vm-1",
		Name:       "web-vm",
		Class:      "infrastructure_VirtualMachine",
		Attributes: map[string][]string{"cpu_count": {"2"}},
		References: map[string][]*external.Node{"ifaces": {ifaceA, ifaceB}},
	}
	model, err := im.Build(root, reg, metamodel.V2_1)
	require.NoError(t, err)
	enc, err := encoding.Build(mm, model)
	require.NoError(t, err)

	plan := BuildPlan(mm, reg, metamodel.V2_1, &domlr.CompileResult{}, config.VerifyConfig{})
	summary, err := Run(context.Background(), enc, plan, config.VerifyConfig{Threads: 2, QueryTimeout: 2 * time.Second})
	require.NoError(t, err)

	var found bool
	for _, f := range summary.Findings {
		if f.Requirement.ID == "iface-unique-endpoint" {
			found = true
			assert.Equal(t, result.Violated, f.Verdict)
			assert.Contains(t, f.Diagnostic, "eth0")
			assert.Contains(t, f.Diagnostic, "eth1")
		}
	}
	assert.True(t, found)
}

// TestRunUndeployedComponent is spec.md §8 scenario S3: a
// SoftwareComponent targeted by no Deployment trips
// all-components-deployed.
func TestRunUndeployedComponent(t *testing.T) {
	reg := metamodel.NewRegistry()
	mm, err := reg.Metamodel(metamodel.V2_1)
	require.NoError(t, err)

	root := &external.Node{
		Identity:   "comp-1",
		Name:       "orphan-service",
		Class:      "application_SoftwareComponent",
		Attributes: map[string][]string{"name": {"orphan-service"}},
		References: map[string][]*external.Node{},
	}
	model, err := im.Build(root, reg, metamodel.V2_1)
	require.NoError(t, err)
	enc, err := encoding.Build(mm, model)
	require.NoError(t, err)

	plan := BuildPlan(mm, reg, metamodel.V2_1, &domlr.CompileResult{}, config.VerifyConfig{})
	summary, err := Run(context.Background(), enc, plan, config.VerifyConfig{Threads: 2, QueryTimeout: 2 * time.Second})
	require.NoError(t, err)

	assert.Equal(t, result.Violated, summary.Overall)
	var found bool
	for _, f := range summary.Findings {
		if f.Requirement.ID == "all-components-deployed" {
			found = true
			assert.Equal(t, result.Violated, f.Verdict)
			assert.Contains(t, f.Diagnostic, "orphan-service")
		}
	}
	assert.True(t, found)
}

// TestRunSaaSOverHTTP is spec.md §8 scenario S6: a component consuming a
// SaaS interface, deployed on a node whose only security group opens port
// 80 instead of 443, must trip external-saas-over-https.
func TestRunSaaSOverHTTP(t *testing.T) {
	reg := metamodel.NewRegistry()
	mm, err := reg.Metamodel(metamodel.V2_1)
	require.NoError(t, err)

	rule80 := &external.Node{
		Identity: "rule-80",
		Class:    "infrastructure_SecurityGroupRule",
		Attributes: map[string][]string{
			"fromPort": {"80"},
			"toPort":   {"80"},
			"kind":     {"INGRESS"},
		},
		References: map[string][]*external.Node{},
	}
	sg := &external.Node{
		Identity:   "sg-1",
		Name:       "web-sg",
		Class:      "infrastructure_SecurityGroup",
		Attributes: map[string][]string{},
		References: map[string][]*external.Node{"rules": {rule80}},
	}
	iface := &external.Node{
		Identity:   "iface-1",
		Name:       "eth0",
		Class:      "infrastructure_NetworkInterface",
		Attributes: map[string][]string{"endPoint": {"10.0.0.1:443"}},
		References: map[string][]*external.Node{"securedBy": {sg}},
	}
	vm := &external.Node{
		Identity:   "vm-1",
		Name:       "app-vm",
		Class:      "infrastructure_VirtualMachine",
		Attributes: map[string][]string{"cpu_count": {"2"}},
		References: map[string][]*external.Node{"ifaces": {iface}},
	}
	saas := &external.Node{
		Identity:   "saas-1",
		Name:       "payments-api",
		Class:      "application_SoftwareInterface",
		Attributes: map[string][]string{"name": {"payments-api"}, "isSaaS": {"true"}},
		References: map[string][]*external.Node{},
	}
	comp := &external.Node{
		Identity:   "comp-1",
		Name:       "storefront",
		Class:      "application_SoftwareComponent",
		Attributes: map[string][]string{"name": {"storefront"}},
		References: map[string][]*external.Node{"consumedInterfaces": {saas}},
	}
	root := &external.Node{
		Identity:   "dep-1",
		Class:      "commons_Deployment",
		Attributes: map[string][]string{},
		References: map[string][]*external.Node{"component": {comp}, "node": {vm}},
	}

	model, err := im.Build(root, reg, metamodel.V2_1)
	require.NoError(t, err)
	enc, err := encoding.Build(mm, model)
	require.NoError(t, err)

	plan := BuildPlan(mm, reg, metamodel.V2_1, &domlr.CompileResult{}, config.VerifyConfig{})
	summary, err := Run(context.Background(), enc, plan, config.VerifyConfig{Threads: 2, QueryTimeout: 2 * time.Second})
	require.NoError(t, err)

	var found bool
	for _, f := range summary.Findings {
		if f.Requirement.ID == "external-saas-over-https" {
			found = true
			assert.Equal(t, result.Violated, f.Verdict)
			assert.Contains(t, f.Diagnostic, "storefront")
		}
	}
	assert.True(t, found)
}

// TestRunConsistencyDetectsMissingRequiredAssociation exercises the
// optional consistency axioms end to end: a Deployment with neither
// component nor node trips the required-association checks once
// CheckConsistency is on.
func TestRunConsistencyDetectsMissingRequiredAssociation(t *testing.T) {
	reg := metamodel.NewRegistry()
	mm, err := reg.Metamodel(metamodel.V2_1)
	require.NoError(t, err)

	root := &external.Node{
		Identity:   "dep-1",
		Name:       "dangling-deployment",
		Class:      "commons_Deployment",
		Attributes: map[string][]string{},
		References: map[string][]*external.Node{},
	}
	model, err := im.Build(root, reg, metamodel.V2_1)
	require.NoError(t, err)
	enc, err := encoding.Build(mm, model)
	require.NoError(t, err)

	cfg := config.VerifyConfig{Threads: 2, QueryTimeout: 2 * time.Second, CheckConsistency: true, IgnoreBuiltin: true}
	plan := BuildPlan(mm, reg, metamodel.V2_1, &domlr.CompileResult{}, cfg)
	summary, err := Run(context.Background(), enc, plan, cfg)
	require.NoError(t, err)

	byID := make(map[string]result.Finding, len(summary.Findings))
	for _, f := range summary.Findings {
		byID[f.Requirement.ID] = f
	}

	missingComponent, ok := byID["consistency-assoc-required-commons_Deployment__component"]
	require.True(t, ok)
	assert.Equal(t, result.Violated, missingComponent.Verdict)
	assert.Contains(t, missingComponent.Diagnostic, "dangling-deployment")

	missingNode, ok := byID["consistency-assoc-required-commons_Deployment__node"]
	require.True(t, ok)
	assert.Equal(t, result.Violated, missingNode.Verdict)
}

func TestRunTimeoutYieldsUndetermined(t *testing.T) {
	_, _, enc := buildEncoding(t, "4")
	reg := metamodel.NewRegistry()
	mm, err := reg.Metamodel(metamodel.V2_1)
	require.NoError(t, err)
	compiled := &domlr.CompileResult{}
	plan := BuildPlan(mm, reg, metamodel.V2_1, compiled, config.VerifyConfig{Threads: 2})

	// An already-canceled context must leave every requirement
	// Undetermined rather than blocking.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := Run(ctx, enc, plan, config.VerifyConfig{Threads: 2})
	require.NoError(t, err)
	assert.Equal(t, result.Undetermined, summary.Overall)
	for _, f := range summary.Findings {
		assert.Equal(t, result.Undetermined, f.Verdict)
	}
}

package encoding

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doml-verifier/mc/internal/external"
	"github.com/doml-verifier/mc/internal/im"
	"github.com/doml-verifier/mc/internal/metamodel"
	"github.com/doml-verifier/mc/internal/requirement"
)

func consistencyIDs(t *testing.T) []string {
	t.Helper()
	reg := metamodel.NewRegistry()
	mm, err := reg.Metamodel(metamodel.V2_1)
	require.NoError(t, err)
	reqs := BuildConsistencyRequirements(mm, reg.InversePairs(metamodel.V2_1))
	ids := make([]string, 0, len(reqs))
	for _, r := range reqs {
		assert.True(t, r.Flipped)
		assert.Equal(t, requirement.SourceConsistency, r.Source)
		ids = append(ids, r.ID)
	}
	return ids
}

func TestBuildConsistencyRequirementsIsDeterministic(t *testing.T) {
	first := consistencyIDs(t)
	require.NotEmpty(t, first)
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, consistencyIDs(t))
	}
}

func TestConsistencyCoversAllFiveFamilies(t *testing.T) {
	ids := map[string]bool{}
	for _, id := range consistencyIDs(t) {
		ids[id] = true
	}
	assert.True(t, ids["consistency-attr-shape-infrastructure_SecurityGroupRule__kind"])
	assert.True(t, ids["consistency-attr-required-infrastructure_SecurityGroupRule__fromPort"])
	assert.True(t, ids["consistency-attr-single-infrastructure_VirtualMachine__cpu_count"])
	assert.True(t, ids["consistency-assoc-target-commons_Deployment__node"])
	assert.True(t, ids["consistency-assoc-required-commons_Deployment__component"])
	assert.True(t, ids["consistency-assoc-single-infrastructure_Container__hosts"])
	assert.True(t, ids["consistency-inverse-infrastructure_Network__ifaces-infrastructure_NetworkInterface__belongsTo"])
}

func TestConsistencySkipsCompositeAttributeShapeAndUpperBound(t *testing.T) {
	for _, id := range consistencyIDs(t) {
		assert.NotEqual(t, "consistency-attr-shape-infrastructure_Network__cidr", id)
		assert.NotEqual(t, "consistency-attr-single-infrastructure_Network__cidr", id)
		assert.NotEqual(t, "consistency-attr-single-infrastructure_NetworkInterface__endPoint", id)
	}
}

// TestConsistencyEnumShapeViolation checks the enum-membership axiom end
// to end: a SecurityGroupRule whose kind is outside {INGRESS, EGRESS}
// yields a witness.
func TestConsistencyEnumShapeViolation(t *testing.T) {
	reg := metamodel.NewRegistry()
	mm, err := reg.Metamodel(metamodel.V2_1)
	require.NoError(t, err)

	root := &external.Node{
		Identity: "rule-1",
		Name:     "bad-rule",
		Class:    "infrastructure_SecurityGroupRule",
		Attributes: map[string][]string{
			"fromPort": {"443"},
			"toPort":   {"443"},
			"kind":     {"SIDEWAYS"},
		},
		References: map[string][]*external.Node{},
	}
	model, err := im.Build(root, reg, metamodel.V2_1)
	require.NoError(t, err)
	enc, err := Build(mm, model)
	require.NoError(t, err)
	engine, err := enc.NewWorkerEngine(Config{QueryTimeout: 2 * time.Second})
	require.NoError(t, err)

	var shape *requirement.Requirement
	for _, r := range BuildConsistencyRequirements(mm, reg.InversePairs(metamodel.V2_1)) {
		if r.ID == "consistency-attr-shape-infrastructure_SecurityGroupRule__kind" {
			r := r
			shape = &r
		}
	}
	require.NotNil(t, shape)

	res, err := engine.Check(context.Background(), shape.RuleText, shape.QueryText)
	require.NoError(t, err)
	assert.True(t, res.Found)
}

// TestConsistencyUpperBoundViolation checks the single-value axiom: a VM
// carrying two distinct cpu_count values yields a witness.
func TestConsistencyUpperBoundViolation(t *testing.T) {
	reg := metamodel.NewRegistry()
	mm, err := reg.Metamodel(metamodel.V2_1)
	require.NoError(t, err)

	root := &external.Node{
		Identity:   "vm-1",
		Name:       "twin-core",
		Class:      "infrastructure_VirtualMachine",
		Attributes: map[string][]string{"cpu_count": {"2", "4"}},
		References: map[string][]*external.Node{},
	}
	model, err := im.Build(root, reg, metamodel.V2_1)
	require.NoError(t, err)
	enc, err := Build(mm, model)
	require.NoError(t, err)
	engine, err := enc.NewWorkerEngine(Config{QueryTimeout: 2 * time.Second})
	require.NoError(t, err)

	var single *requirement.Requirement
	for _, r := range BuildConsistencyRequirements(mm, reg.InversePairs(metamodel.V2_1)) {
		if r.ID == "consistency-attr-single-infrastructure_VirtualMachine__cpu_count" {
			r := r
			single = &r
		}
	}
	require.NotNil(t, single)

	res, err := engine.Check(context.Background(), single.RuleText, single.QueryText)
	require.NoError(t, err)
	assert.True(t, res.Found)
}

package result

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/doml-verifier/mc/internal/requirement"
)

func finding(v Verdict) Finding {
	return Finding{Requirement: requirement.Requirement{ID: "r"}, Verdict: v}
}

func TestAggregateAllSatisfied(t *testing.T) {
	findings := []Finding{finding(Satisfied), finding(Satisfied)}
	assert.Equal(t, Satisfied, Aggregate(findings))
}

func TestAggregateViolatedDominates(t *testing.T) {
	findings := []Finding{finding(Satisfied), finding(Undetermined), finding(Violated)}
	assert.Equal(t, Violated, Aggregate(findings))
}

func TestAggregateUndeterminedWithoutViolation(t *testing.T) {
	findings := []Finding{finding(Satisfied), finding(Undetermined)}
	assert.Equal(t, Undetermined, Aggregate(findings))
}

func TestAggregateEmptyIsSatisfied(t *testing.T) {
	assert.Equal(t, Satisfied, Aggregate(nil))
}

// TestAggregateMonotonicity is spec.md §8 property 8: adding a Violated
// finding to any set can only move the aggregate toward Violated, never
// away from it.
func TestAggregateMonotonicity(t *testing.T) {
	bases := [][]Finding{
		nil,
		{finding(Satisfied)},
		{finding(Undetermined)},
		{finding(Satisfied), finding(Undetermined)},
	}
	for _, base := range bases {
		after := Aggregate(append(append([]Finding{}, base...), finding(Violated)))
		assert.Equal(t, Violated, after)
	}
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "sat", Satisfied.String())
	assert.Equal(t, "unsat", Violated.String())
	assert.Equal(t, "dontknow", Undetermined.String())
}

func TestSummaryBySourceAndUndetermined(t *testing.T) {
	s := Summary{Findings: []Finding{
		{Requirement: requirement.Requirement{ID: "b1", Source: requirement.SourceBuiltin}, Verdict: Satisfied},
		{Requirement: requirement.Requirement{ID: "u1", Source: requirement.SourceUser}, Verdict: Violated},
		{Requirement: requirement.Requirement{ID: "u2", Source: requirement.SourceUser}, Verdict: Undetermined},
	}}

	builtinFindings := s.BySource(requirement.SourceBuiltin)
	assert.Len(t, builtinFindings, 1)
	assert.Equal(t, "b1", builtinFindings[0].Requirement.ID)

	userFindings := s.BySource(requirement.SourceUser)
	assert.Len(t, userFindings, 2)

	undetermined := s.Undetermined()
	assert.Len(t, undetermined, 1)
	assert.Equal(t, "u2", undetermined[0].Requirement.ID)
}

func TestSummaryBySourcePreservesOrder(t *testing.T) {
	want := []Finding{
		{Requirement: requirement.Requirement{ID: "u1", Source: requirement.SourceUser}, Verdict: Violated},
		{Requirement: requirement.Requirement{ID: "u2", Source: requirement.SourceUser}, Verdict: Undetermined},
	}
	s := Summary{Findings: []Finding{
		{Requirement: requirement.Requirement{ID: "b1", Source: requirement.SourceBuiltin}, Verdict: Satisfied},
		want[0],
		want[1],
	}}

	got := s.BySource(requirement.SourceUser)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("BySource(user) mismatch (-want +got):\n%s", diff)
	}
}

func TestStatsRecord(t *testing.T) {
	var stats Stats
	stats.Record(finding(Satisfied))
	stats.Record(finding(Violated))
	stats.Record(finding(Undetermined))
	stats.Record(finding(Undetermined))

	assert.Equal(t, 4, stats.Checked)
	assert.Equal(t, 1, stats.SatisfiedCount)
	assert.Equal(t, 1, stats.ViolatedCount)
	assert.Equal(t, 2, stats.UndeterminedCount)
}

// Package result implements the three-valued Verdict algebra and the
// per-run aggregation/diagnostic-grouping rules that sit downstream of
// the Verification Driver.
package result

import "github.com/doml-verifier/mc/internal/requirement"

// Verdict is the outcome of discharging one requirement (or a whole run)
// to the solver. It is never coerced to or from a plain bool: a missing
// or inconclusive check is its own state, not a fallback "false".
type Verdict int

const (
	Satisfied Verdict = iota
	Violated
	Undetermined
)

func (v Verdict) String() string {
	switch v {
	case Satisfied:
		return "sat"
	case Violated:
		return "unsat"
	default:
		return "dontknow"
	}
}

// Finding is one requirement's outcome: its verdict, where it came from,
// and — for a Violated requirement with a witness binding — its rendered
// diagnostic message.
type Finding struct {
	Requirement requirement.Requirement
	Verdict     Verdict
	Diagnostic  string // only meaningful when Verdict == Violated
	Err         error  // resolution/type/solver error that forced Undetermined
}

// Aggregate folds a list of per-requirement Findings into one overall
// Verdict: Violated dominates, then Undetermined, else Satisfied. Adding
// a Violated finding to any set can only ever move the aggregate toward
// Violated, never away from it — the monotonicity property the
// Verification Driver's cancellation path depends on to report a
// conservative result when a run is cut short.
func Aggregate(findings []Finding) Verdict {
	sawUndetermined := false
	for _, f := range findings {
		switch f.Verdict {
		case Violated:
			return Violated
		case Undetermined:
			sawUndetermined = true
		}
	}
	if sawUndetermined {
		return Undetermined
	}
	return Satisfied
}

// Summary is the full output of one verification run: the overall
// verdict, every finding in input order, and run-level statistics.
type Summary struct {
	Overall  Verdict
	Findings []Finding
	Stats    Stats
}

// BySource partitions findings by where the requirement came from,
// preserving each group's relative order — the "grouped by source,
// followed by an Undetermined notice" presentation the result model
// specifies.
func (s Summary) BySource(src requirement.Source) []Finding {
	var out []Finding
	for _, f := range s.Findings {
		if f.Requirement.Source == src {
			out = append(out, f)
		}
	}
	return out
}

// Undetermined reports every finding whose verdict could not be decided
// within budget, regardless of source.
func (s Summary) Undetermined() []Finding {
	var out []Finding
	for _, f := range s.Findings {
		if f.Verdict == Undetermined {
			out = append(out, f)
		}
	}
	return out
}

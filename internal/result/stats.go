package result

import "time"

// Stats accumulates solver-call counters and timings across a run, the
// ambient telemetry the driver returns alongside the verdict summary.
// Nothing in this package reads Stats to compute a Verdict; it exists
// purely so a caller (the CLI, a future HTTP facade) can report on run
// cost without re-instrumenting the driver.
type Stats struct {
	TotalRequirements int
	Checked           int
	SatisfiedCount    int
	ViolatedCount     int
	UndeterminedCount int

	Elapsed time.Duration

	// SlicesTimedOut counts worker slices that hit the whole-run
	// wall-clock deadline before finishing their assigned requirements.
	SlicesTimedOut int
}

// Record folds one Finding's verdict into the running counters.
func (s *Stats) Record(f Finding) {
	s.Checked++
	switch f.Verdict {
	case Satisfied:
		s.SatisfiedCount++
	case Violated:
		s.ViolatedCount++
	case Undetermined:
		s.UndeterminedCount++
	}
}

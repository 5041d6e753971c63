// Package driver implements the Verification Driver: it assembles the
// effective requirement list for one run (built-ins unless suppressed,
// optional consistency axioms, user requirements, minus skips), fans the
// list out across a bounded worker pool, and folds the per-requirement
// outcomes back into a result.Summary in original order.
package driver

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/doml-verifier/mc/internal/builtins"
	"github.com/doml-verifier/mc/internal/config"
	"github.com/doml-verifier/mc/internal/domlr"
	"github.com/doml-verifier/mc/internal/encoding"
	"github.com/doml-verifier/mc/internal/metamodel"
	"github.com/doml-verifier/mc/internal/obslog"
	"github.com/doml-verifier/mc/internal/requirement"
	"github.com/doml-verifier/mc/internal/result"
)

// Plan is the effective, ordered requirement list for one run, already
// filtered by the skip list and the ignore-builtin/check-consistency
// directives. Building it is separated from running it so a caller can
// inspect what would be checked without paying for any solver call.
type Plan struct {
	Requirements []requirement.Requirement
}

// BuildPlan assembles the effective requirement list: the per-version
// built-in catalog (unless suppressed by config or an `ignore builtin`
// directive), the consistency axioms (if requested by either), and the
// compiled user requirements — minus any ID named by a `skip` directive
// or VerifyConfig.Skip.
func BuildPlan(mm *metamodel.Metamodel, reg *metamodel.Registry, version metamodel.Version, compiled *domlr.CompileResult, cfg config.VerifyConfig) Plan {
	ignoreBuiltin := cfg.IgnoreBuiltin
	checkConsistency := cfg.CheckConsistency
	skip := make(map[string]bool, len(cfg.Skip))
	for _, id := range cfg.Skip {
		skip[id] = true
	}
	for _, d := range compiled.Directives {
		switch d.Kind {
		case "ignore-builtin":
			ignoreBuiltin = true
		case "check-consistency":
			checkConsistency = true
		case "skip":
			skip[d.Arg] = true
		}
	}

	var reqs []requirement.Requirement
	if !ignoreBuiltin {
		reqs = append(reqs, builtins.For(version)...)
	}
	if checkConsistency {
		reqs = append(reqs, encoding.BuildConsistencyRequirements(mm, reg.InversePairs(version))...)
	}
	reqs = append(reqs, compiled.Requirements...)

	out := make([]requirement.Requirement, 0, len(reqs))
	for _, r := range reqs {
		if skip[r.ID] {
			continue
		}
		out = append(out, r)
	}
	return Plan{Requirements: out}
}

// Run partitions plan.Requirements into contiguous slices of
// ceil(N/threads) requirements (at most threads slices) and checks each slice on its own goroutine against its own
// encoding.Engine (via enc.NewWorkerEngine), so that no solver context is
// ever touched by more than one goroutine even though every worker loads
// the same background facts. A RunTimeout, if set, bounds the whole call:
// requirements in a slice that has not finished when the deadline fires
// resolve to Undetermined rather than blocking the caller indefinitely.
func Run(ctx context.Context, enc *encoding.Encoding, plan Plan, cfg config.VerifyConfig) (result.Summary, error) {
	runStart := time.Now()
	n := len(plan.Requirements)
	findings := make([]result.Finding, n)

	threads := cfg.Threads
	if threads <= 0 {
		threads = 1
	}
	if threads > n {
		threads = n
	}

	var cancel context.CancelFunc
	if cfg.RunTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, cfg.RunTimeout)
		defer cancel()
	}

	// sem bounds how many requirement checks may have their own
	// Mangle query goroutine in flight at once, independent of how many
	// worker slices cfg.Threads asked for — a caller requesting a large
	// thread count on a small machine should not spawn an unbounded
	// number of concurrent solver evaluations.
	sem := semaphore.NewWeighted(int64(min(threads, runtime.GOMAXPROCS(0))))

	var timedOutSlices int32
	if n > 0 {
		sliceSize := (n + threads - 1) / threads
		eg, egCtx := errgroup.WithContext(ctx)

		for sliceStart := 0; sliceStart < n; sliceStart += sliceSize {
			sliceEnd := sliceStart + sliceSize
			if sliceEnd > n {
				sliceEnd = n
			}
			sliceStart, sliceEnd := sliceStart, sliceEnd

			eg.Go(func() error {
				engine, err := enc.NewWorkerEngine(encoding.Config{QueryTimeout: cfg.QueryTimeout})
				if err != nil {
					return fmt.Errorf("driver: worker engine: %w", err)
				}

				sliceTimedOut := false
				for i := sliceStart; i < sliceEnd; i++ {
					req := plan.Requirements[i]

					if egCtx.Err() != nil {
						findings[i] = result.Finding{Requirement: req, Verdict: result.Undetermined, Err: egCtx.Err()}
						sliceTimedOut = true
						continue
					}

					findings[i] = checkOne(egCtx, engine, sem, req, enc.WitnessLabel)
				}
				if sliceTimedOut {
					atomic.AddInt32(&timedOutSlices, 1)
				}
				return nil
			})
		}

		if err := eg.Wait(); err != nil {
			return result.Summary{}, err
		}
	}

	var stats result.Stats
	stats.TotalRequirements = n
	stats.SlicesTimedOut = int(atomic.LoadInt32(&timedOutSlices))
	for _, f := range findings {
		stats.Record(f)
	}
	stats.Elapsed = time.Since(runStart)

	return result.Summary{
		Overall:  result.Aggregate(findings),
		Findings: findings,
		Stats:    stats,
	}, nil
}

// checkOne discharges a single requirement against engine and, when a
// witness is found (which means Violated for either polarity), renders
// its diagnostic message. It acquires one unit of sem for the
// duration of the solver call, bounding concurrent query evaluation
// across every worker slice.
func checkOne(ctx context.Context, engine *encoding.Engine, sem *semaphore.Weighted, req requirement.Requirement, label domlr.Labeler) result.Finding {
	t := obslog.StartTimer(obslog.CategoryVerify, "driver.checkOne:"+req.ID)
	defer t.Stop()

	if err := sem.Acquire(ctx, 1); err != nil {
		return result.Finding{Requirement: req, Verdict: result.Undetermined, Err: err}
	}
	defer sem.Release(1)

	res, err := engine.Check(ctx, req.RuleText, req.QueryText)
	if err != nil {
		return result.Finding{Requirement: req, Verdict: result.Undetermined, Err: err}
	}

	// req.RuleText/QueryText already encode the polarity (domlr.lower
	// compiles compileTopWitness(req.Body, !req.Flipped), and the
	// built-in catalog's own rules are written directly in "find a
	// witness of violation" form): a witness found always means
	// Violated, for both polarities.
	violated := res.Found
	if !violated {
		return result.Finding{Requirement: req, Verdict: result.Satisfied}
	}

	return result.Finding{
		Requirement: req,
		Verdict:     result.Violated,
		Diagnostic:  domlr.RenderDiagnostic(req.Template, res.Witness, label),
	}
}

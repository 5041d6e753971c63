package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/doml-verifier/mc/internal/config"
	"github.com/doml-verifier/mc/internal/domlr"
	"github.com/doml-verifier/mc/internal/driver"
	"github.com/doml-verifier/mc/internal/encoding"
	"github.com/doml-verifier/mc/internal/external"
	"github.com/doml-verifier/mc/internal/im"
	"github.com/doml-verifier/mc/internal/metamodel"
	"github.com/doml-verifier/mc/internal/obslog"
	"github.com/doml-verifier/mc/internal/requirement"
	"github.com/doml-verifier/mc/internal/result"
)

type verifyOptions struct {
	requirementsPath string
	version          string
	threads          int
	queryTimeout     time.Duration
	runTimeout       time.Duration
	checkConsistency bool
	ignoreBuiltin    bool
	skip             []string
	csp              bool
	configPath       string
}

var verifyOpts verifyOptions

var verifyCmd = &cobra.Command{
	Use:   "verify <model-file>",
	Short: "Verify a DOML model document",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	modelPath := args[0]
	logger.Debug("verify starting", zap.String("model", modelPath))

	cfg, err := config.Load(verifyOpts.configPath)
	if err != nil {
		return fmt.Errorf("domlmc: %w", err)
	}
	applyFlagOverrides(cmd, cfg)
	obslog.Configure(cfg.Logging.Debug, cfg.LevelFromString(), cfg.Logging.Categories)

	data, err := os.ReadFile(modelPath)
	if err != nil {
		return fmt.Errorf("domlmc: read model file: %w", err)
	}

	var explicit *metamodel.Version
	if verifyOpts.version != "" {
		v := metamodel.Version(verifyOpts.version)
		explicit = &v
	} else if cfg.Version != "" {
		v := metamodel.Version(cfg.Version)
		explicit = &v
	}

	root, version, err := (external.JSONAdapter{}).Parse(data, explicit)
	if err != nil {
		return fmt.Errorf("domlmc: parse model: %w", err)
	}

	reg := metamodel.NewRegistry()
	mm, err := reg.Metamodel(version)
	if err != nil {
		return fmt.Errorf("domlmc: %w", err)
	}

	model, err := im.Build(root, reg, version)
	if err != nil {
		return fmt.Errorf("domlmc: build intermediate model: %w", err)
	}

	enc, err := encoding.Build(mm, model)
	if err != nil {
		return fmt.Errorf("domlmc: build encoding: %w", err)
	}

	compiled := &domlr.CompileResult{}
	if verifyOpts.requirementsPath != "" {
		src, err := os.ReadFile(verifyOpts.requirementsPath)
		if err != nil {
			return fmt.Errorf("domlmc: read requirements file: %w", err)
		}
		compiled, err = domlr.Compile(string(src), reg, version)
		if err != nil {
			return fmt.Errorf("domlmc: compile requirements: %w", err)
		}
	}

	if verifyOpts.csp {
		fmt.Fprintln(os.Stderr, "domlmc: CSP compatibility checks are not implemented by this build; no CSP diagnostics will be emitted")
	}

	plan := driver.BuildPlan(mm, reg, version, compiled, cfg.Verify)

	ctx := context.Background()
	summary, err := driver.Run(ctx, enc, plan, cfg.Verify)
	if err != nil {
		return fmt.Errorf("domlmc: verification run: %w", err)
	}

	logger.Info("verify finished",
		zap.String("verdict", summary.Overall.String()),
		zap.Int("checked", summary.Stats.Checked),
		zap.Duration("elapsed", summary.Stats.Elapsed),
	)
	printSummary(summary, compiled.Failures)
	return nil
}

func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("threads") {
		cfg.Verify.Threads = verifyOpts.threads
	}
	if f.Changed("query-timeout") {
		cfg.Verify.QueryTimeout = verifyOpts.queryTimeout
	}
	if f.Changed("timeout") {
		cfg.Verify.RunTimeout = verifyOpts.runTimeout
	}
	if f.Changed("check-consistency") {
		cfg.Verify.CheckConsistency = verifyOpts.checkConsistency
	}
	if f.Changed("ignore-builtin") {
		cfg.Verify.IgnoreBuiltin = verifyOpts.ignoreBuiltin
	}
	if len(verifyOpts.skip) > 0 {
		cfg.Verify.Skip = append(cfg.Verify.Skip, verifyOpts.skip...)
	}
}

// printSummary writes the diagnostic blocks grouped by source (built-in,
// consistency, then user sections), reports requirements that failed to
// compile on stderr, and ends with the overall sat/unsat/dontknow line.
func printSummary(summary result.Summary, compileFailures []error) {
	for _, src := range []requirement.Source{requirement.SourceBuiltin, requirement.SourceConsistency, requirement.SourceUser} {
		findings := summary.BySource(src)
		if len(findings) == 0 {
			continue
		}
		fmt.Printf("-- %s --\n", src)
		for _, f := range findings {
			switch f.Verdict {
			case result.Violated:
				fmt.Printf("[unsat] %s: %s\n", f.Requirement.ID, f.Diagnostic)
			case result.Undetermined:
				fmt.Printf("[dontknow] %s: undetermined", f.Requirement.ID)
				if f.Err != nil {
					fmt.Printf(" (%v)", f.Err)
				}
				fmt.Println()
			case result.Satisfied:
				fmt.Printf("[sat] %s\n", f.Requirement.ID)
			}
		}
	}

	for _, cerr := range compileFailures {
		fmt.Fprintf(os.Stderr, "domlmc: requirement not checked: %v\n", cerr)
	}

	fmt.Println(summary.Overall)
}

// Command domlmc is the CLI surface for the DOML requirement verifier:
// given a model document and an optional DOMLR requirements file, it
// prints the overall verdict plus diagnostic blocks grouped by source.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	verbose bool
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "domlmc",
	Short: "Verify DOML infrastructure models against built-in and user requirements",
	Long: `domlmc checks a DOML model document against the built-in requirement
library for its metamodel version, plus any user requirements written in
DOMLR, and reports sat, unsat, or dontknow.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncoderConfig.TimeKey = ""
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		} else {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		}
		built, err := cfg.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		logger = built
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	verifyCmd.Flags().StringVar(&verifyOpts.requirementsPath, "requirements", "", "path to a DOMLR requirements file")
	verifyCmd.Flags().StringVar(&verifyOpts.version, "version", "", "explicit DOML version (default: infer from document)")
	verifyCmd.Flags().IntVar(&verifyOpts.threads, "threads", 2, "worker thread count")
	verifyCmd.Flags().DurationVar(&verifyOpts.queryTimeout, "query-timeout", 5*time.Second, "per-requirement solver timeout")
	verifyCmd.Flags().DurationVar(&verifyOpts.runTimeout, "timeout", 0, "whole-run wall-clock timeout (0 = none)")
	verifyCmd.Flags().BoolVar(&verifyOpts.checkConsistency, "check-consistency", false, "also check consistency axioms")
	verifyCmd.Flags().BoolVar(&verifyOpts.ignoreBuiltin, "ignore-builtin", false, "skip the built-in requirement library")
	verifyCmd.Flags().StringSliceVar(&verifyOpts.skip, "skip", nil, "requirement IDs to omit")
	verifyCmd.Flags().BoolVar(&verifyOpts.csp, "csp", false, "run CSP compatibility checks (unsupported: reports a notice)")
	verifyCmd.Flags().StringVar(&verifyOpts.configPath, "config", "", "path to a YAML config file")

	rootCmd.AddCommand(verifyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

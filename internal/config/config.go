// Package config holds the driver-facing configuration for a verification
// run: thread budget, timeouts, the default DOML version, flag overrides,
// and logging. Loaded from an optional YAML file merged over defaults,
// mirroring the teacher's config layer.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/doml-verifier/mc/internal/obslog"
)

// Config is the top-level configuration for a verification run.
type Config struct {
	// Version, when set and no --version flag is given, is passed to the
	// adapter as the explicit DOML version, so it takes precedence over
	// any version the document itself declares.
	Version string `yaml:"version"`

	Verify  VerifyConfig  `yaml:"verify"`
	Logging LoggingConfig `yaml:"logging"`
}

// VerifyConfig configures the Verification Driver.
type VerifyConfig struct {
	// Threads is the worker count for partitioning the requirement list.
	// Spec §4.6 defaults this to 2.
	Threads int `yaml:"threads"`

	// QueryTimeout bounds a single requirement's solver check. Zero leaves
	// the solver's own 5s default in force.
	QueryTimeout time.Duration `yaml:"query_timeout"`

	// RunTimeout is the whole-run wall-clock deadline. Unfinished slices
	// resolve to Undetermined. Zero means no deadline.
	RunTimeout time.Duration `yaml:"run_timeout"`

	// CheckConsistency forces the Encoding Builder to also emit the
	// optional consistency axioms, independent of any `check-consistency`
	// directive in the DOMLR source.
	CheckConsistency bool `yaml:"check_consistency"`

	// IgnoreBuiltin suppresses the built-in requirement library.
	IgnoreBuiltin bool `yaml:"ignore_builtin"`

	// Skip lists requirement identifiers (built-in or user) to omit from
	// the effective requirement list.
	Skip []string `yaml:"skip"`
}

// LoggingConfig configures obslog.
type LoggingConfig struct {
	Debug      bool                     `yaml:"debug"`
	Level      string                   `yaml:"level"`
	Categories map[obslog.Category]bool `yaml:"categories"`
}

// DefaultConfig returns production defaults: two worker threads, no
// timeouts, built-ins enabled, consistency checks off, info logging.
func DefaultConfig() *Config {
	return &Config{
		Version: "",
		Verify: VerifyConfig{
			Threads:          2,
			QueryTimeout:     0,
			RunTimeout:       0,
			CheckConsistency: false,
			IgnoreBuiltin:    false,
		},
		Logging: LoggingConfig{
			Debug: false,
			Level: "info",
		},
	}
}

// Load reads a YAML configuration file, merging it over DefaultConfig.
// A missing file is not an error: defaults (plus environment overrides)
// are returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides allows a small set of CI-friendly overrides without a
// config file, mirroring the teacher's env-override pass.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DOMLMC_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Verify.Threads = n
		}
	}
	if v := os.Getenv("DOMLMC_VERSION"); v != "" {
		c.Version = v
	}
	if v := os.Getenv("DOMLMC_DEBUG"); v != "" {
		c.Logging.Debug = v == "1" || v == "true"
	}
}

// LevelFromString maps the Logging.Level string to an obslog.Level.
func (c *Config) LevelFromString() obslog.Level {
	switch c.Logging.Level {
	case "debug":
		return obslog.LevelDebug
	case "warn", "warning":
		return obslog.LevelWarn
	case "error":
		return obslog.LevelError
	default:
		return obslog.LevelInfo
	}
}

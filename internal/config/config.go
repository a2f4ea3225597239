// Package config loads verifier settings from kanso-verify.yaml, the
// environment and command-line flags, in that order of precedence from
// lowest to highest.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "kanso-verify.yaml"

type Config struct {
	Solver      SolverConfig  `yaml:"solver"`
	Arithmetic  string        `yaml:"arithmetic" validate:"oneof=checked wrapping unbounded"`
	MaxPaths    int           `yaml:"max_paths" validate:"gte=1"`
	InlineDepth int           `yaml:"inline_depth" validate:"gte=1"`
	Jobs        int           `yaml:"jobs" validate:"gte=1,lte=256"`
	Cache       CacheConfig   `yaml:"cache"`
	Metrics     MetricsConfig `yaml:"metrics"`
	Trace       TraceConfig   `yaml:"trace"`
	Log         LogConfig     `yaml:"log"`
}

type SolverConfig struct {
	// Command is the SMT-LIB2 solver executable; "sample" selects the
	// built-in sampling refuter instead.
	Command string        `yaml:"command" validate:"required"`
	Args    []string      `yaml:"args"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir" validate:"required_if=Enabled true"`
}

type MetricsConfig struct {
	// File receives Prometheus text-format metrics after each run, for a
	// node exporter textfile collector. Empty disables it.
	File string `yaml:"file"`
}

type TraceConfig struct {
	// File receives the run's OpenTelemetry spans as JSON lines. Empty
	// disables tracing.
	File string `yaml:"file"`
}

type LogConfig struct {
	// Verbosity follows commonlog: 0 is errors only, 2 is info, 4 is debug.
	Verbosity int    `yaml:"verbosity" validate:"gte=0,lte=5"`
	File      string `yaml:"file"`
}

func Default() *Config {
	jobs := runtime.NumCPU()
	if jobs > 8 {
		jobs = 8
	}
	return &Config{
		Solver: SolverConfig{
			Command: "z3",
			Args:    []string{"-in", "-smt2"},
			Timeout: 10 * time.Second,
		},
		Arithmetic:  "checked",
		MaxPaths:    1024,
		InlineDepth: 16,
		Jobs:        jobs,
		Cache:       CacheConfig{Enabled: false, Dir: ".kanso-verify-cache"},
		Log:         LogConfig{Verbosity: 1},
	}
}

var validate = validator.New()

func (c *Config) Validate() error {
	return validate.Struct(c)
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing DefaultFile is not an error; a missing
// explicit path is.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := cfg.fromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) fromEnv() error {
	if v := os.Getenv("KANSO_VERIFY_SOLVER"); v != "" {
		c.Solver.Command = v
	}
	if v := os.Getenv("KANSO_VERIFY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("KANSO_VERIFY_TIMEOUT: %w", err)
		}
		c.Solver.Timeout = d
	}
	if v := os.Getenv("KANSO_VERIFY_JOBS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("KANSO_VERIFY_JOBS: %w", err)
		}
		c.Jobs = n
	}
	if v := os.Getenv("KANSO_VERIFY_CACHE_DIR"); v != "" {
		c.Cache.Enabled = true
		c.Cache.Dir = v
	}
	return nil
}

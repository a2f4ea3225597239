package config

import (
	"io"
	"strings"

	"kanso-verify/internal/compose"
	"kanso-verify/internal/ir"
	"kanso-verify/internal/solver"
)

// SampleSolver selects the built-in sampling refuter, which can falsify
// but never prove.
const SampleSolver = "sample"

// NewSolver builds the configured backend. Identical queries in flight at
// the same time are sent to it once.
func (c *Config) NewSolver() solver.Solver {
	if c.Solver.Command == SampleSolver {
		return solver.Deduplicate(solver.NewSampler())
	}
	return solver.Deduplicate(&solver.Process{
		Command: c.Solver.Command,
		Args:    c.Solver.Args,
		Timeout: c.Solver.Timeout,
	})
}

// SolverID names the backend setup for verdict fingerprints.
func (c *Config) SolverID() string {
	return strings.Join(append([]string{c.Solver.Command}, c.Solver.Args...), " ")
}

func (c *Config) ComposeOptions() compose.Options {
	return compose.Options{
		Arithmetic:  ir.Arithmetic(c.Arithmetic),
		MaxPaths:    c.MaxPaths,
		InlineDepth: c.InlineDepth,
		Jobs:        c.Jobs,
		Timeout:     c.Solver.Timeout,
		SolverID:    c.SolverID(),
	}
}

// NewComposer wires the solver and, when enabled, the verdict cache. The
// returned close function releases the cache. dumpSMT may be nil.
func (c *Config) NewComposer(dumpSMT io.Writer) (*compose.Composer, func() error, error) {
	opts := c.ComposeOptions()
	opts.DumpSMT = dumpSMT
	composer := compose.New(c.NewSolver(), opts)
	if !c.Cache.Enabled {
		return composer, func() error { return nil }, nil
	}
	cache, err := compose.OpenCache(c.Cache.Dir)
	if err != nil {
		return nil, nil, err
	}
	return composer.WithCache(cache), cache.Close, nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kanso-verify/internal/ir"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kanso-verify.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "checked", cfg.Arithmetic)
	assert.Equal(t, "z3", cfg.Solver.Command)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
solver:
  command: cvc5
  args: ["--lang", "smt2", "--incremental"]
  timeout: 30s
arithmetic: wrapping
max_paths: 64
jobs: 2
cache:
  enabled: true
  dir: /tmp/kv-cache
metrics:
  file: /tmp/kanso.prom
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "cvc5", cfg.Solver.Command)
	assert.Equal(t, []string{"--lang", "smt2", "--incremental"}, cfg.Solver.Args)
	assert.Equal(t, 30*time.Second, cfg.Solver.Timeout)
	assert.Equal(t, "wrapping", cfg.Arithmetic)
	assert.Equal(t, 64, cfg.MaxPaths)
	assert.Equal(t, 2, cfg.Jobs)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "/tmp/kanso.prom", cfg.Metrics.File)
	// untouched keys keep their defaults
	assert.Equal(t, 16, cfg.InlineDepth)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"arithmetic", "arithmetic: saturating\n"},
		{"jobs", "jobs: 0\n"},
		{"timeout", "solver:\n  timeout: 0s\n"},
		{"syntax", "solver: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("KANSO_VERIFY_SOLVER", "sample")
	t.Setenv("KANSO_VERIFY_JOBS", "3")
	t.Setenv("KANSO_VERIFY_TIMEOUT", "2s")

	cfg, err := Load(writeFile(t, "jobs: 5\n"))
	require.NoError(t, err)
	assert.Equal(t, "sample", cfg.Solver.Command)
	assert.Equal(t, 3, cfg.Jobs)
	assert.Equal(t, 2*time.Second, cfg.Solver.Timeout)

	t.Setenv("KANSO_VERIFY_JOBS", "many")
	_, err = Load(writeFile(t, ""))
	assert.Error(t, err)
}

func TestComposeOptions(t *testing.T) {
	cfg := Default()
	cfg.Arithmetic = "wrapping"
	cfg.Jobs = 3

	opts := cfg.ComposeOptions()
	assert.Equal(t, ir.Wrapping, opts.Arithmetic)
	assert.Equal(t, 3, opts.Jobs)
	assert.Equal(t, 10*time.Second, opts.Timeout)
	assert.Equal(t, "z3 -in -smt2", opts.SolverID)
}

func TestNewComposerWithCache(t *testing.T) {
	cfg := Default()
	cfg.Solver.Command = SampleSolver
	cfg.Cache.Enabled = true
	cfg.Cache.Dir = filepath.Join(t.TempDir(), "cache")

	composer, closeCache, err := cfg.NewComposer(nil)
	require.NoError(t, err)
	require.NotNil(t, composer)
	assert.NoError(t, closeCache())
	assert.DirExists(t, cfg.Cache.Dir)
}

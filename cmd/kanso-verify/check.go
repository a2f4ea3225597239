package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"kanso-verify/internal/compose"
	"kanso-verify/internal/config"
	kerrors "kanso-verify/internal/errors"
	"kanso-verify/internal/parser"
	"kanso-verify/internal/report"
	"kanso-verify/internal/telemetry"
)

type checkFlags struct {
	config      string
	details     bool
	dumpSMT     string
	jobs        int
	solver      string
	timeout     time.Duration
	arithmetic  string
	cacheDir    string
	metricsFile string
	traceFile   string
	verbose     int
}

func newCheckCmd() *cobra.Command {
	var flags checkFlags
	cmd := &cobra.Command{
		Use:   "check FILE",
		Short: "Verify every function of a contract",
		Long: `Verify every function of a contract against its @requires, @ensures
and @update annotations. Each function is reported as Verified, Falsified
or Error. The exit status is 2 if any function is Error, 1 if any is
Falsified and 0 otherwise.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args[0], &flags)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.config, "config", "c", "", "config file (default ./"+config.DefaultFile+" if present)")
	f.BoolVarP(&flags.details, "details", "d", false, "explain every verdict that is not Verified")
	f.StringVar(&flags.dumpSMT, "dump-smt", "", "write each function's SMT-LIB2 query to this file (- for stdout)")
	f.IntVarP(&flags.jobs, "jobs", "j", 0, "parallel verification tasks")
	f.StringVar(&flags.solver, "solver", "", "solver executable, or \""+config.SampleSolver+"\" for the built-in refuter")
	f.DurationVar(&flags.timeout, "timeout", 0, "per-query solver timeout")
	f.StringVar(&flags.arithmetic, "arithmetic", "", "arithmetic semantics: checked, wrapping or unbounded")
	f.StringVar(&flags.cacheDir, "cache-dir", "", "reuse verdicts stored in this directory")
	f.StringVar(&flags.metricsFile, "metrics-file", "", "write Prometheus metrics to this file")
	f.StringVar(&flags.traceFile, "trace-file", "", "write OpenTelemetry spans to this file")
	f.CountVarP(&flags.verbose, "verbose", "v", "more logging; repeat for debug")
	return cmd
}

// settings merges the flags the user set over the loaded configuration.
func (flags *checkFlags) settings(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(flags.config)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("jobs") {
		cfg.Jobs = flags.jobs
	}
	if changed("solver") {
		cfg.Solver.Command = flags.solver
	}
	if changed("timeout") {
		cfg.Solver.Timeout = flags.timeout
	}
	if changed("arithmetic") {
		cfg.Arithmetic = flags.arithmetic
	}
	if changed("cache-dir") {
		cfg.Cache.Enabled = true
		cfg.Cache.Dir = flags.cacheDir
	}
	if changed("metrics-file") {
		cfg.Metrics.File = flags.metricsFile
	}
	if changed("trace-file") {
		cfg.Trace.File = flags.traceFile
	}
	cfg.Log.Verbosity += flags.verbose

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return cfg, nil
}

func runCheck(cmd *cobra.Command, path string, flags *checkFlags) (err error) {
	startTime := time.Now()
	stdout := cmd.OutOrStdout()

	cfg, err := flags.settings(cmd)
	if err != nil {
		return err
	}
	configureLogging(cfg.Log.Verbosity, cfg.Log.File)

	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	contract, parseErrors, scanErrors := parser.ParseSource(path, string(source))
	if syntax := syntaxDiagnostics(path, scanErrors, parseErrors); len(syntax) > 0 {
		fmt.Fprint(stdout, kerrors.NewErrorReporter(path, string(source)).FormatAll(syntax))
	}
	if contract == nil || len(scanErrors) > 0 || len(parseErrors) > 0 {
		fmt.Fprintln(stdout, color.RedString("Parsing failed after %s", formatDuration(time.Since(startTime))))
		return exitCode(exitError)
	}

	shutdown, err := telemetry.SetupFile(cfg.Trace.File, version)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, shutdown(context.Background()))
	}()

	var dump io.Writer
	switch flags.dumpSMT {
	case "":
	case "-":
		dump = stdout
	default:
		f, err := os.Create(flags.dumpSMT)
		if err != nil {
			return fmt.Errorf("create SMT dump: %w", err)
		}
		defer f.Close()
		dump = f
	}

	composer, closeCache, err := cfg.NewComposer(dump)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, closeCache())
	}()

	var metrics *compose.Metrics
	if cfg.Metrics.File != "" {
		metrics = compose.NewMetrics()
		composer.WithMetrics(metrics)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	rep := composer.Verify(ctx, contract)
	if err := rep.Write(stdout, flags.details); err != nil {
		return err
	}
	if flags.details {
		var diags []kerrors.CompilerError
		for _, res := range rep.Results() {
			diags = append(diags, res.Diagnostics...)
		}
		fmt.Fprint(stdout, kerrors.NewErrorReporter(path, string(source)).FormatAll(diags))
	}

	if metrics != nil {
		if err := metrics.WriteTextfile(cfg.Metrics.File); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	counts := rep.Counts()
	fmt.Fprintf(stdout, "\n%d verified, %d falsified, %d errors in %s\n",
		counts[report.Verified], counts[report.Falsified], counts[report.Error], formatDuration(time.Since(startTime)))

	if code := rep.ExitCode(); code != exitVerified {
		return exitCode(code)
	}
	return nil
}

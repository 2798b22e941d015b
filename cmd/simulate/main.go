// Package main is a command-line front end for the simulation engine.
package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/aristath/montecarlo/internal/modules/simulation"
	"github.com/aristath/montecarlo/pkg/logger"
	"github.com/spf13/cobra"
)

const (
	defaultHistogramBins = 20
	progressInterval     = 100 * time.Millisecond
)

type options struct {
	scenarioPath string
	trials       int
	horizon      int
	seed         uint64
	workers      int
	bins         int
	thresholds   []float64
	live         bool
	jsonOutput   bool
	logLevel     string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a Monte Carlo portfolio simulation",
		Long: `Simulate a stocks/bonds/cash portfolio over a multi-period horizon and report
the distribution of final balances.

Examples:
  simulate                                    # reference scenario, 100 trials
  simulate --trials 10000 --seed 42           # reproducible run
  simulate --scenario retirement.yaml --live  # scenario file, progress on stderr
  simulate --json > result.json               # machine-readable output

Interrupting a run (Ctrl-C) stops it between trials and reports on the
trials completed so far.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd, opts, stdout, stderr)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.scenarioPath, "scenario", "", "YAML scenario file")
	flags.IntVar(&opts.trials, "trials", 0, "Number of trials (overrides the scenario)")
	flags.IntVar(&opts.horizon, "horizon", 0, "Number of periods (overrides the scenario)")
	flags.Uint64Var(&opts.seed, "seed", 0, "Batch seed for a reproducible run (overrides the scenario)")
	flags.IntVar(&opts.workers, "workers", 0, "Parallel workers (0 = one per CPU)")
	flags.IntVar(&opts.bins, "bins", 0, "Histogram bins")
	flags.Float64SliceVar(&opts.thresholds, "thresholds", nil, "Final balance thresholds (default 500k to 3.75M in 250k steps)")
	flags.BoolVar(&opts.live, "live", false, "Print running progress to stderr")
	flags.BoolVar(&opts.jsonOutput, "json", false, "Write the report as JSON")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	return cmd
}

// resolveScenario applies command-line overrides on top of the scenario file.
func resolveScenario(cmd *cobra.Command, opts *options) (Scenario, error) {
	scenario, err := loadScenario(opts.scenarioPath)
	if err != nil {
		return scenario, err
	}

	flags := cmd.Flags()
	if flags.Changed("trials") {
		scenario.Trials = opts.trials
	}
	if flags.Changed("horizon") {
		scenario.Horizon = opts.horizon
	}
	if flags.Changed("seed") {
		seed := opts.seed
		scenario.Seed = &seed
	}
	if flags.Changed("thresholds") {
		scenario.Thresholds = opts.thresholds
	}
	if flags.Changed("bins") {
		scenario.HistogramBins = opts.bins
	}

	if scenario.Thresholds == nil {
		scenario.Thresholds = simulation.DefaultThresholds()
	}
	if scenario.HistogramBins <= 0 {
		scenario.HistogramBins = defaultHistogramBins
	}

	return scenario, nil
}

func runSimulate(cmd *cobra.Command, opts *options, stdout, stderr io.Writer) error {
	log := logger.New(logger.Config{
		Level:  opts.logLevel,
		Pretty: true,
		Output: stderr,
	})

	scenario, err := resolveScenario(cmd, opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runOpts := simulation.RunOptions{
		Mode:       simulation.ModeBatch,
		Thresholds: scenario.Thresholds,
	}
	var printer *progressPrinter
	if opts.live {
		printer = newProgressPrinter(stderr)
		runOpts.Mode = simulation.ModeStreaming
		runOpts.RecentPaths = -1
		runOpts.OnProgress = printer.print
	}

	service := simulation.NewService(simulation.NewBatchRunner(opts.workers, log), nil, nil, nil, log)

	run, err := service.Simulate(ctx, simulation.Request{
		Config:  scenario.SimulationConfig,
		Options: runOpts,
	})
	if printer != nil {
		printer.finish()
	}
	if err != nil {
		return err
	}

	report := newReport(run, scenario.HistogramBins)
	if opts.jsonOutput {
		return writeJSONReport(stdout, report)
	}
	return writeTextReport(stdout, report)
}

// progressPrinter rewrites a single status line, at most every progressInterval.
type progressPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	last    time.Time
	printed bool
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w}
}

func (p *progressPrinter) print(progress simulation.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if progress.Completed != progress.Total && now.Sub(p.last) < progressInterval {
		return
	}
	p.last = now
	p.printed = true

	fmt.Fprintf(p.w, "\r%d/%d trials  mean %s  std %s",
		progress.Completed,
		progress.Total,
		money(progress.Final.Mean),
		money(progress.Final.StdDev),
	)
}

func (p *progressPrinter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.printed {
		fmt.Fprintln(p.w)
	}
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

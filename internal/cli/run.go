package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/topo/internal/harness"
	"github.com/roach88/topo/internal/journal"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Label    string

	// IDGenerator allows overriding the run ID generator (for testing).
	// If nil, the journal uses UUIDv7.
	IDGenerator journal.IDGenerator
}

// RunSummary describes one recorded run.
type RunSummary struct {
	RunID    string   `json:"run_id"`
	Scenario string   `json:"scenario"`
	Pass     bool     `json:"pass"`
	Ticks    int      `json:"ticks"`
	Failures int      `json:"failures"`
	Errors   []string `json:"errors,omitempty"`
}

func (s RunSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s: %s\n", s.RunID, s.Scenario)
	fmt.Fprintf(&b, "  Ticks: %d, failures: %d", s.Ticks, s.Failures)
	for _, e := range s.Errors {
		fmt.Fprintf(&b, "\n  %s", e)
	}
	return b.String()
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario and record it in a journal",
		Long: `Run one scenario file and record every tick, per-system sample and
failure in a SQLite journal (created if it doesn't exist).

Use "topo trace" to read the journal back.

Examples:
  topo run --db ./topo.db ./scenarios/hot_swap.yaml
  topo run --db ./topo.db --label nightly ./scenarios/hot_swap.yaml --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Label, "label", "", "run label (defaults to the scenario name)")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: opts.logLevel(),
	}))

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenario file not found: %s", path))
	}
	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	logger.Debug("opening journal", "path", opts.Database)
	jopts := []journal.Option{journal.WithLogger(logger)}
	if opts.IDGenerator != nil {
		jopts = append(jopts, journal.WithIDGenerator(opts.IDGenerator))
	}
	j, err := journal.Open(opts.Database, jopts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer func() {
		if closeErr := j.Close(); closeErr != nil {
			logger.Error("error closing journal", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	label := opts.Label
	if label == "" {
		label = scenario.Name
	}
	runID, err := j.BeginRun(ctx, label, time.Now())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to begin run", err)
	}
	logger.Info("run started", "run", runID, "scenario", scenario.Name)

	result, err := harness.Run(scenario, harness.WithObserver(j), harness.WithLogger(logger))
	j.EndRun()
	if err != nil {
		return WrapExitError(ExitFailure, "scenario failed to start", err)
	}
	if err := j.Err(); err != nil {
		return WrapExitError(ExitCommandError, "failed to record run", err)
	}

	ticks, err := j.Ticks(ctx, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read ticks", err)
	}
	failures, err := j.Failures(ctx, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read failures", err)
	}
	logger.Info("run finished", "run", runID, "ticks", len(ticks), "failures", len(failures))

	summary := RunSummary{
		RunID:    runID,
		Scenario: scenario.Name,
		Pass:     result.Pass,
		Ticks:    len(ticks),
		Failures: len(failures),
		Errors:   result.Errors,
	}
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if err := formatter.SuccessWithRun(summary, runID); err != nil {
		return err
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

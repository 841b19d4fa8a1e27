package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/topo/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string // defaults to the latest run
	System   string // optional - filter to one system
	List     bool   // list runs instead of tracing one
}

// TraceTick is one tick in the trace timeline.
type TraceTick struct {
	Seq       int64         `json:"seq"`
	Event     string        `json:"event"`
	DeltaTime float64       `json:"delta_time"`
	Samples   []TraceSample `json:"samples"`
	Skipped   []string      `json:"skipped,omitempty"`
}

// TraceSample is one system run within a tick.
type TraceSample struct {
	System     string `json:"system"`
	DurationNS int64  `json:"duration_ns"`
	Failed     bool   `json:"failed,omitempty"`
}

// TraceFailure is one recorded system failure.
type TraceFailure struct {
	Seq     int64  `json:"seq"`
	Event   string `json:"event,omitempty"`
	System  string `json:"system"`
	Phase   string `json:"phase"`
	Message string `json:"message"`
}

// TraceResult holds the complete trace output for one run.
type TraceResult struct {
	RunID    string         `json:"run_id"`
	Timeline []TraceTick    `json:"timeline"`
	Failures []TraceFailure `json:"failures"`
	Stats    TraceStats     `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Ticks    int `json:"ticks"`
	Samples  int `json:"samples"`
	Failures int `json:"failures"`
	Skipped  int `json:"skipped"`
}

// RunInfo is one row of the run listing.
type RunInfo struct {
	ID        string    `json:"id"`
	Ordinal   int64     `json:"ordinal"`
	Label     string    `json:"label"`
	StartedAt time.Time `json:"started_at"`
	Ticks     int       `json:"ticks"`
	Failures  int       `json:"failures"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show a recorded run",
		Long: `Show what a recorded run did, tick by tick.

The output includes:
- Timeline: every tick with the systems it ran, in order, and their timings
- Failures: every system failure with its phase (run, release, evict)
- Stats: summary counts for the run

Without --run the most recent run is shown. --list prints every run.

Examples:
  topo trace --db ./topo.db
  topo trace --db ./topo.db --list
  topo trace --db ./topo.db --run 0190... --system physics
  topo trace --db ./topo.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID to trace (defaults to the latest run)")
	cmd.Flags().StringVar(&opts.System, "system", "", "filter to one system")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list recorded runs")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Opening would create an empty journal.
	if _, err := os.Stat(opts.Database); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("journal not found: %s", opts.Database))
	}

	j, err := journal.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	if opts.List {
		return listRuns(ctx, j, opts, cmd)
	}

	runID := opts.RunID
	if runID == "" {
		if runID, err = j.LatestRun(ctx); err != nil {
			return WrapExitError(ExitCommandError, "failed to find latest run", err)
		}
		if runID == "" {
			if opts.Format == "json" {
				return outputTraceJSON(cmd, TraceResult{Timeline: []TraceTick{}, Failures: []TraceFailure{}})
			}
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
			return nil
		}
	}

	ticks, err := j.Ticks(ctx, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read ticks", err)
	}
	samples, err := j.Samples(ctx, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read samples", err)
	}
	failures, err := j.Failures(ctx, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read failures", err)
	}

	if len(ticks) == 0 && len(failures) == 0 {
		if opts.Format == "json" {
			return outputTraceJSON(cmd, TraceResult{RunID: runID, Timeline: []TraceTick{}, Failures: []TraceFailure{}})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "No events found for run: %s\n", runID)
		return nil
	}

	result := buildTrace(runID, ticks, samples, failures, opts.System)

	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}
	return outputTraceText(cmd, result, opts.Verbose)
}

// buildTrace joins samples onto their ticks. When systemFilter is set only
// that system's samples and failures are kept, along with the ticks that
// ran or skipped it.
func buildTrace(runID string, ticks []journal.Tick, samples []journal.Sample, failures []journal.Failure, systemFilter string) TraceResult {
	bySeq := make(map[int64][]TraceSample, len(ticks))
	for _, s := range samples {
		if systemFilter != "" && s.System != systemFilter {
			continue
		}
		bySeq[s.Seq] = append(bySeq[s.Seq], TraceSample{
			System:     s.System,
			DurationNS: s.Duration.Nanoseconds(),
			Failed:     s.Failed,
		})
	}

	result := TraceResult{
		RunID:    runID,
		Timeline: []TraceTick{},
		Failures: []TraceFailure{},
	}

	for _, t := range ticks {
		skipped := t.Skipped
		if systemFilter != "" {
			skipped = nil
			for _, name := range t.Skipped {
				if name == systemFilter {
					skipped = append(skipped, name)
				}
			}
		}
		ran := bySeq[t.Seq]
		if systemFilter != "" && len(ran) == 0 && len(skipped) == 0 {
			continue
		}
		if ran == nil {
			ran = []TraceSample{}
		}
		result.Timeline = append(result.Timeline, TraceTick{
			Seq:       t.Seq,
			Event:     t.Event,
			DeltaTime: t.DeltaTime,
			Samples:   ran,
			Skipped:   skipped,
		})
		result.Stats.Samples += len(ran)
		result.Stats.Skipped += len(skipped)
	}
	result.Stats.Ticks = len(result.Timeline)

	for _, f := range failures {
		if systemFilter != "" && f.System != systemFilter {
			continue
		}
		result.Failures = append(result.Failures, TraceFailure{
			Seq:     f.Seq,
			Event:   f.Event,
			System:  f.System,
			Phase:   f.Phase,
			Message: f.Message,
		})
	}
	result.Stats.Failures = len(result.Failures)

	return result
}

func listRuns(ctx context.Context, j *journal.Journal, opts *TraceOptions, cmd *cobra.Command) error {
	runs, err := j.Runs(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	infos := make([]RunInfo, 0, len(runs))
	for _, r := range runs {
		infos = append(infos, RunInfo{
			ID:        r.ID,
			Ordinal:   r.Ordinal,
			Label:     r.Label,
			StartedAt: r.StartedAt,
			Ticks:     r.Ticks,
			Failures:  r.Failures,
		})
	}

	if opts.Format == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(CLIResponse{Status: "ok", Data: infos})
	}

	w := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, r := range infos {
		fmt.Fprintf(w, "#%d %s %s (%d ticks, %d failures) %s\n",
			r.Ordinal, r.ID, r.Label, r.Ticks, r.Failures, r.StartedAt.Format(time.RFC3339))
	}
	return nil
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(cmd *cobra.Command, result TraceResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
		RunID:  result.RunID,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputTraceText outputs the trace result as text.
func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Trace for Run: %s\n", result.RunID)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no ticks)")
	} else {
		for _, tick := range result.Timeline {
			formatTick(w, tick, verbose)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Failures ===")
	if len(result.Failures) == 0 {
		fmt.Fprintln(w, "  (no failures)")
	} else {
		for _, f := range result.Failures {
			fmt.Fprintf(w, "  [%d] %s %s: %s\n", f.Seq, f.System, f.Phase, f.Message)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Ticks:    %d\n", result.Stats.Ticks)
	fmt.Fprintf(w, "  Samples:  %d\n", result.Stats.Samples)
	fmt.Fprintf(w, "  Skipped:  %d\n", result.Stats.Skipped)
	fmt.Fprintf(w, "  Failures: %d\n", result.Stats.Failures)

	return nil
}

// formatTick formats a single timeline tick for text output.
func formatTick(w io.Writer, tick TraceTick, verbose bool) {
	names := make([]string, 0, len(tick.Samples))
	for _, s := range tick.Samples {
		name := s.System
		if s.Failed {
			name += "!"
		}
		names = append(names, name)
	}
	fmt.Fprintf(w, "  [%d] %s: %s\n", tick.Seq, tick.Event, strings.Join(names, ", "))
	if len(tick.Skipped) > 0 {
		fmt.Fprintf(w, "       skipped: %s\n", strings.Join(tick.Skipped, ", "))
	}
	if verbose {
		fmt.Fprintf(w, "       dt: %.4fs\n", tick.DeltaTime)
		for _, s := range tick.Samples {
			fmt.Fprintf(w, "       %s: %s\n", s.System, time.Duration(s.DurationNS))
		}
	}
}

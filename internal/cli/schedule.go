package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/topo/internal/manifest"
)

// EventOrder is the resolved run order of one event group.
type EventOrder struct {
	Event   string   `json:"event"`
	Systems []string `json:"systems"`
}

// ScheduleResult holds the resolved plan of a manifest.
type ScheduleResult struct {
	Files  int          `json:"files"`
	Events []EventOrder `json:"events"`
}

func (r ScheduleResult) String() string {
	var b strings.Builder
	for i, e := range r.Events {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", e.Event, strings.Join(e.Systems, ", "))
	}
	return b.String()
}

// NewScheduleCommand creates the schedule command.
func NewScheduleCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule <manifest-dir>",
		Short: "Resolve a system manifest into a run order",
		Long: `Load the CUE or HCL system manifest in a directory and print the run order of
every event group.

Exit codes:
  0 - The manifest schedules
  1 - Scheduling failed (cycle, priority conflict, unknown dependency, ...)
  2 - Command error (missing directory, invalid CUE or HCL, ...)

Examples:
  topo schedule ./systems
  topo schedule ./systems --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchedule(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runSchedule(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	m, err := manifest.Load(dir)
	if err != nil {
		_ = formatter.Fail(err)
		return WrapExitError(ExitCommandError, "failed to load manifest", err)
	}
	formatter.VerboseLog("Loaded %d system(s) from %d file(s) in %s", len(m.Systems), m.FileCount, dir)

	plan, err := m.Plan()
	if err != nil {
		_ = formatter.Fail(err)
		return WrapExitError(ExitFailure, "manifest does not schedule", err)
	}

	result := ScheduleResult{Files: m.FileCount, Events: make([]EventOrder, 0, len(plan.Events()))}
	for _, event := range plan.Events() {
		result.Events = append(result.Events, EventOrder{Event: event, Systems: plan.Order(event)})
	}
	return formatter.Success(result)
}

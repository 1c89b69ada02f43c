package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/bonfire/internal/harness"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Trace bool
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <scenario.yaml|dir>",
		Short: "Replay board scenarios against the detection engine",
		Long: `Replay scripted board scenarios against the detection engine and check
their expectations.

A directory runs every *.yaml scenario in it. A single file may be replayed
with --trace to print the step and trigger trace.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (missing or malformed scenario files)

Examples:
  bonfire replay ./scenarios
  bonfire replay ./scenarios/done_column.yaml --trace`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "print the trace of a single scenario")

	return cmd
}

func runReplay(opts *ReplayOptions, path string, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)

	info, err := os.Stat(path)
	if err != nil {
		return out.Fail(ExitCommandError, CodeScenario, "scenario path not found", err)
	}

	if !info.IsDir() {
		return replayOne(opts, out, path)
	}

	scenarios, err := harness.LoadDir(path)
	if err != nil {
		return out.Fail(ExitCommandError, CodeScenario, "failed to load scenarios", err)
	}
	if len(scenarios) == 0 {
		return out.Fail(ExitCommandError, CodeScenario, "no scenarios in "+path, nil)
	}

	res := harness.RunSuite(scenarios)

	lines := make([]string, 0, len(res.Failures)+1)
	for _, f := range res.Failures {
		lines = append(lines, "FAIL "+f.Scenario)
		for _, e := range f.Errors {
			lines = append(lines, "  "+e)
		}
	}
	lines = append(lines, fmt.Sprintf("%d scenarios: %d passed, %d failed", res.Total, res.Passed, res.Failed))

	if err := out.Success(res, lines...); err != nil {
		return err
	}
	if res.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", res.Failed, res.Total))
	}
	return nil
}

func replayOne(opts *ReplayOptions, out *OutputFormatter, path string) error {
	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return out.Fail(ExitCommandError, CodeScenario, "failed to load scenario", err)
	}

	result, err := harness.Run(scenario)
	if err != nil {
		return out.Fail(ExitCommandError, CodeScenario, "failed to run scenario", err)
	}

	status := "PASS"
	if !result.Pass {
		status = "FAIL"
	}
	lines := []string{fmt.Sprintf("%s %s (%d triggers)", status, scenario.Name, len(result.Triggers()))}
	for _, e := range result.Errors {
		lines = append(lines, "  "+e)
	}
	if opts.Trace {
		trace, err := harness.MarshalTrace(scenario.Name, result.Trace)
		if err != nil {
			return err
		}
		lines = append(lines, string(trace))
	}

	if err := out.Success(result, lines...); err != nil {
		return err
	}
	if !result.Pass {
		return NewExitError(ExitFailure, "scenario failed: "+scenario.Name)
	}
	return nil
}

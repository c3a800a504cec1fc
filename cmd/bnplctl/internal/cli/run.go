package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a ledger scenario",
		Long: `Run executes a scenario's steps against a fresh in-memory ledger and
reports each step's outcome. Steps with an expect field pass only when they
fail with a matching error.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(cmd.Context(), cmd, rootOpts, args[0])
		},
	}
	return cmd
}

func runScenario(ctx context.Context, cmd *cobra.Command, rootOpts *RootOptions, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := LoadConfig(rootOpts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	sc, err := LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	runner, err := NewRunner(ctx, cfg, sc.Start, newLogger(rootOpts, cmd.ErrOrStderr()))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start ledger", err)
	}
	rep := runner.Run(ctx, sc)
	if err := runner.Close(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to stop ledger", err)
	}

	out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
	text := func(w io.Writer) { writeReport(w, rep, rootOpts.Verbose) }
	if rep.Failed > 0 {
		err := NewExitError(ExitFailure, fmt.Sprintf("%d of %d steps failed", rep.Failed, len(rep.Steps)))
		if ferr := out.Failure(rep, err, text); ferr != nil {
			return ferr
		}
		return err
	}
	return out.Success(rep, text)
}

func writeReport(w io.Writer, rep *Report, verbose bool) {
	fmt.Fprintf(w, "scenario %s\n", rep.Scenario)
	for _, s := range rep.Steps {
		mark := "ok  "
		if !s.OK {
			mark = "FAIL"
		}
		line := fmt.Sprintf("  %s %3d %s", mark, s.Step, s.Op)
		if s.Error != "" {
			line += ": " + s.Error
		}
		fmt.Fprintln(w, line)
	}
	if verbose {
		for _, t := range rep.Transfers {
			fmt.Fprintf(w, "  transfer %s -> %s %s (%s)\n", t.From, t.To, t.Amount, t.Memo)
		}
		for _, ev := range rep.Audit {
			fmt.Fprintf(w, "  audit %s %s %s\n", ev.Action, ev.ResourceID, ev.Outcome)
		}
	}
	fmt.Fprintf(w, "%d steps, %d failed\n", len(rep.Steps), rep.Failed)
}

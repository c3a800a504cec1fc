package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/xraph/bnpl/keeper"
)

// KeeperOptions holds flags for keeper subcommands.
type KeeperOptions struct {
	Scenario string
}

// NewKeeperCommand creates the keeper command group.
func NewKeeperCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KeeperOptions{}
	cmd := &cobra.Command{
		Use:   "keeper",
		Short: "Run ledger maintenance jobs",
	}
	cmd.PersistentFlags().StringVarP(&opts.Scenario, "scenario", "s", "", "scenario that seeds the ledger first")

	cmd.AddCommand(newKeeperRunCommand(rootOpts, opts))
	cmd.AddCommand(newKeeperServeCommand(rootOpts, opts))
	return cmd
}

func newKeeperRunCommand(rootOpts *RootOptions, opts *KeeperOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "run <billing|aging|risk|liquidation>...",
		Short:         "Run jobs once, in the order given",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			runner, err := seededRunner(ctx, cmd, rootOpts, opts)
			if err != nil {
				return err
			}
			defer runner.Close(context.Background()) //nolint:errcheck // best-effort shutdown

			var reports []keeper.Report
			for _, job := range args {
				r, err := runner.Keeper().Run(ctx, job)
				if err != nil {
					return WrapExitError(ExitCommandError, "keeper job failed", err)
				}
				reports = append(reports, r)
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return out.Success(reports, func(w io.Writer) {
				for _, r := range reports {
					fmt.Fprintf(w, "%-11s seen=%d changed=%d skipped=%d failed=%d\n",
						r.Job, r.Seen, r.Changed, r.Skipped, r.Failed)
				}
			})
		},
	}
}

func newKeeperServeCommand(rootOpts *RootOptions, opts *KeeperOptions) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:           "serve",
		Short:         "Schedule jobs on the configured cron schedules until interrupted",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			runner, err := seededRunner(ctx, cmd, rootOpts, opts)
			if err != nil {
				return err
			}
			defer runner.Close(context.Background()) //nolint:errcheck // best-effort shutdown

			if err := runner.Keeper().Start(ctx); err != nil {
				return WrapExitError(ExitCommandError, "failed to start keeper", err)
			}
			<-ctx.Done()

			stopCtx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			return runner.Keeper().Stop(stopCtx)
		},
	}
	cmd.Flags().DurationVar(&timeout, "shutdown-timeout", 30*time.Second, "time to wait for running jobs on shutdown")
	return cmd
}

// seededRunner starts a runner and replays the --scenario file, if any.
func seededRunner(ctx context.Context, cmd *cobra.Command, rootOpts *RootOptions, opts *KeeperOptions) (*Runner, error) {
	cfg, err := LoadConfig(rootOpts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	var sc *Scenario
	if opts.Scenario != "" {
		if sc, err = LoadScenario(opts.Scenario); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load scenario", err)
		}
	}

	var start time.Time
	if sc != nil {
		start = sc.Start
	}
	runner, err := NewRunner(ctx, cfg, start, newLogger(rootOpts, cmd.ErrOrStderr()))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to start ledger", err)
	}
	if sc == nil {
		return runner, nil
	}

	if rep := runner.Run(ctx, sc); rep.Failed > 0 {
		_ = runner.Close(context.Background())
		return nil, NewExitError(ExitFailure, fmt.Sprintf("seed scenario %s: %d steps failed", sc.Name, rep.Failed))
	}
	return runner, nil
}

// Package keeper runs the ledger's scheduled maintenance: closing billing
// cycles, aging notes as their due dates pass, monitoring account health
// factors and liquidating collateral of accounts in default. Jobs run on cron
// schedules and can also be invoked directly.
package keeper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/xraph/bnpl/types"
)

// Job names.
const (
	JobBilling     = "billing"
	JobAging       = "aging"
	JobRisk        = "risk"
	JobLiquidation = "liquidation"
)

// DefaultLiquidationThreshold is the health factor below which an account's
// collateral is liquidated.
const DefaultLiquidationThreshold types.BPS = 11000

// Config holds the cron schedule of each job. An empty schedule disables
// the job. A zero LiquidationThreshold disables health-factor liquidation;
// overdue statements still trigger it.
type Config struct {
	Billing              string    `json:"billing" yaml:"billing" mapstructure:"billing"`
	Aging                string    `json:"aging" yaml:"aging" mapstructure:"aging"`
	Risk                 string    `json:"risk" yaml:"risk" mapstructure:"risk"`
	Liquidation          string    `json:"liquidation" yaml:"liquidation" mapstructure:"liquidation"`
	LiquidationThreshold types.BPS `json:"liquidation_threshold" yaml:"liquidation_threshold" mapstructure:"liquidation_threshold"`
}

// DefaultConfig closes statements daily at midnight, ages notes hourly,
// checks risk every five minutes and runs liquidation hourly at half past.
func DefaultConfig() Config {
	return Config{
		Billing:              "0 0 * * *",
		Aging:                "0 * * * *",
		Risk:                 "*/5 * * * *",
		Liquidation:          "30 * * * *",
		LiquidationThreshold: DefaultLiquidationThreshold,
	}
}

// Keeper schedules the maintenance jobs against a ledger. signer must hold
// the risk configuration's admin capability, and the vault's for
// liquidation.
type Keeper struct {
	ledger Ledger
	signer types.Principal
	config Config
	logger *slog.Logger
	cron   *cron.Cron
}

// Option configures a Keeper.
type Option func(*Keeper)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(k *Keeper) { k.logger = logger }
}

// WithConfig sets the job schedules.
func WithConfig(cfg Config) Option {
	return func(k *Keeper) { k.config = cfg }
}

// New returns a keeper for ledger acting as signer.
func New(ledger Ledger, signer types.Principal, opts ...Option) *Keeper {
	k := &Keeper{
		ledger: ledger,
		signer: signer,
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Run executes the named job once.
func (k *Keeper) Run(ctx context.Context, job string) (Report, error) {
	switch job {
	case JobBilling:
		return k.CloseStatements(ctx)
	case JobAging:
		return k.AgeNotes(ctx)
	case JobRisk:
		return k.MonitorRisk(ctx)
	case JobLiquidation:
		return k.Liquidate(ctx)
	default:
		return Report{Job: job}, fmt.Errorf("keeper: unknown job %q", job)
	}
}

// Start schedules every job with a non-empty schedule. Runs of a job never
// overlap; a run still in progress when the next is due is skipped.
func (k *Keeper) Start(ctx context.Context) error {
	if k.cron != nil {
		return fmt.Errorf("keeper: already started")
	}

	log := cronLogger{k.logger}
	c := cron.New(
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)

	jobs := []struct {
		name     string
		schedule string
	}{
		{JobBilling, k.config.Billing},
		{JobAging, k.config.Aging},
		{JobRisk, k.config.Risk},
		{JobLiquidation, k.config.Liquidation},
	}
	for _, j := range jobs {
		if j.schedule == "" {
			continue
		}
		name := j.name
		if _, err := c.AddFunc(j.schedule, func() { k.runLogged(ctx, name) }); err != nil {
			return fmt.Errorf("keeper: schedule %s %q: %w", name, j.schedule, err)
		}
		k.logger.Info("keeper job scheduled", "job", name, "schedule", j.schedule)
	}

	k.cron = c
	c.Start()
	return nil
}

// Stop stops scheduling and waits for running jobs, or for ctx to end.
func (k *Keeper) Stop(ctx context.Context) error {
	if k.cron == nil {
		return nil
	}
	done := k.cron.Stop()
	k.cron = nil

	select {
	case <-done.Done():
		k.logger.Info("keeper stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("keeper: stop: %w", ctx.Err())
	}
}

func (k *Keeper) runLogged(ctx context.Context, job string) {
	r, err := k.Run(ctx, job)
	if err != nil {
		k.logger.Error("keeper job failed", "job", job, "error", err)
		return
	}
	k.logger.Info("keeper job completed",
		"job", job,
		"seen", r.Seen,
		"changed", r.Changed,
		"skipped", r.Skipped,
		"failed", r.Failed,
	)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

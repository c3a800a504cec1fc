package bnpl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/bnpl/custody"
	"github.com/xraph/bnpl/id"
	"github.com/xraph/bnpl/oracle"
	"github.com/xraph/bnpl/plugin"
	"github.com/xraph/bnpl/pool"
	"github.com/xraph/bnpl/store"
	"github.com/xraph/bnpl/types"
)

// DefaultVaultCustody is the custody account holding deposited collateral.
const DefaultVaultCustody types.Principal = "vault"

// Engine hosts the four ledger components. Every entry point runs as one
// step: it locks the records it writes, checks every precondition, persists,
// and only then emits its events.
type Engine struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	locks   *recordLocks

	transfers    custody.Transferer
	prices       oracle.PriceSource
	swapper      oracle.Swapper
	discount     pool.DiscountPolicy
	vaultCustody types.Principal
	now          func() time.Time
	skipMigrate  bool
}

// New creates a new Engine over s.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:        s,
		plugins:      plugin.NewRegistry(),
		logger:       slog.Default(),
		locks:        newRecordLocks(),
		transfers:    custody.Noop{},
		discount:     pool.NoDiscount,
		vaultCustody: DefaultVaultCustody,
		now:          func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithHookTimeout bounds each plugin hook call.
func WithHookTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.plugins.WithTimeout(d)
	}
}

// WithCustody sets the value-transfer collaborator.
func WithCustody(t custody.Transferer) Option {
	return func(e *Engine) {
		e.transfers = t
	}
}

// WithVaultCustody sets the custody account that holds collateral.
func WithVaultCustody(account types.Principal) Option {
	return func(e *Engine) {
		e.vaultCustody = account
	}
}

// WithOracle sets the price source used by liquidation.
func WithOracle(src oracle.PriceSource) Option {
	return func(e *Engine) {
		e.prices = src
	}
}

// WithSwapper sets the collaborator that sells liquidated collateral.
func WithSwapper(s oracle.Swapper) Option {
	return func(e *Engine) {
		e.swapper = s
	}
}

// WithDiscountPolicy sets how advances are priced.
func WithDiscountPolicy(p pool.DiscountPolicy) Option {
	return func(e *Engine) {
		e.discount = p
	}
}

// WithoutMigrate stops Start from migrating the store.
func WithoutMigrate() Option {
	return func(e *Engine) {
		e.skipMigrate = true
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = func() time.Time { return now().UTC() }
	}
}

// Start migrates the store and initializes plugins.
func (e *Engine) Start(ctx context.Context) error {
	if !e.skipMigrate {
		if err := e.store.Migrate(ctx); err != nil {
			return err
		}
	}

	e.plugins.EmitInit(ctx, e)

	e.logger.Info("bnpl engine started",
		"plugins", e.plugins.Count(),
		"vault_custody", e.vaultCustody,
	)

	return nil
}

// Stop shuts down plugins and closes the store.
func (e *Engine) Stop() error {
	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time { return e.now() }

// locked runs fn while holding the write lock of every record in ids.
func (e *Engine) locked(fn func() error, ids ...id.ID) error {
	unlock := e.locks.lock(ids...)
	defer unlock()
	return fn()
}

// transfer moves value through the custody collaborator. Zero amounts are
// skipped.
func (e *Engine) transfer(ctx context.Context, from, to types.Principal, amount types.Amount, memo string) error {
	if amount == 0 {
		return nil
	}
	if err := e.transfers.Transfer(ctx, from, to, amount, memo); err != nil {
		return fmt.Errorf("bnpl: custody transfer %s: %w", memo, err)
	}
	return nil
}

// reverse undoes a transfer made earlier in a step that then failed to
// persist. A failed reversal is logged; the step still returns its own error.
func (e *Engine) reverse(ctx context.Context, from, to types.Principal, amount types.Amount, memo string) {
	if err := e.transfer(ctx, to, from, amount, "reverse:"+memo); err != nil {
		e.logger.Error("failed to reverse custody transfer",
			"memo", memo,
			"from", from,
			"to", to,
			"amount", amount,
			"error", err,
		)
	}
}

func required(field string, empty bool) error {
	if empty {
		return ValidationError{Field: field, Message: "required"}
	}
	return nil
}

package extension

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/bnpl"
	"github.com/xraph/bnpl/indexer"
	"github.com/xraph/bnpl/plugin"
	"github.com/xraph/bnpl/store"
)

// Option configures the bnpl Forge extension.
type Option func(*Extension)

// WithStore sets the store for the bnpl engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithEngineOption passes a bnpl.Option through to the underlying engine.
func WithEngineOption(opt bnpl.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a bnpl plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, bnpl.WithPlugin(p))
	}
}

// WithOrders enables the indexer, resolving order merchants through orders.
func WithOrders(orders indexer.Orders) Option {
	return func(e *Extension) { e.orders = orders }
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithDisableKeeper turns off the scheduled maintenance jobs.
func WithDisableKeeper() Option {
	return func(e *Extension) { e.config.DisableKeeper = true }
}

// WithKeeperSigner sets the admin principal the keeper acts as.
func WithKeeperSigner(signer string) Option {
	return func(e *Extension) { e.config.KeeperSigner = signer }
}

// WithHookTimeout bounds each plugin hook call.
func WithHookTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.HookTimeout = d }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithGroveDatabase backs the engine with db, using the store for driver
// ("postgres", "sqlite" or "mongo").
func WithGroveDatabase(driver string, db *grove.DB) Option {
	return func(e *Extension) {
		e.config.Driver = driver
		e.groveDB = db
	}
}

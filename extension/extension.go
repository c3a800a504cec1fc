// Package extension provides the Forge extension adapter for bnpl.
//
// It implements the forge.Extension interface to integrate the bnpl engine
// into a Forge application with DI registration and lifecycle management.
// Besides the engine it can run the reference indexer and the maintenance
// keeper.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.bnpl" or "bnpl" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	"github.com/xraph/bnpl"
	"github.com/xraph/bnpl/indexer"
	"github.com/xraph/bnpl/keeper"
	"github.com/xraph/bnpl/store"
	"github.com/xraph/bnpl/store/memory"
	"github.com/xraph/bnpl/store/mongo"
	"github.com/xraph/bnpl/store/postgres"
	"github.com/xraph/bnpl/store/sqlite"
	"github.com/xraph/bnpl/types"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "bnpl"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Buy-now-pay-later credit and receivables ledger"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts bnpl as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *bnpl.Engine
	indexer    *indexer.Indexer
	keeper     *keeper.Keeper
	store      store.Store
	groveDB    *grove.DB
	orders     indexer.Orders
	engineOpts []bnpl.Option
}

// New creates a new bnpl Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying engine.
// This is nil until Register is called.
func (e *Extension) Engine() *bnpl.Engine { return e.engine }

// Keeper returns the maintenance keeper, or nil when it is disabled.
func (e *Extension) Keeper() *keeper.Keeper { return e.keeper }

// Indexer returns the event indexer, or nil when no order book was given.
func (e *Extension) Indexer() *indexer.Indexer { return e.indexer }

// Register implements [forge.Extension]. It loads configuration,
// initializes the engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if err := e.build(); err != nil {
		return err
	}

	if err := vessel.Provide(fapp.Container(), func() (*bnpl.Engine, error) {
		return e.engine, nil
	}); err != nil {
		return err
	}
	if e.keeper == nil {
		return nil
	}
	return vessel.Provide(fapp.Container(), func() (*keeper.Keeper, error) {
		return e.keeper, nil
	})
}

// build wires the store, engine, indexer and keeper from the resolved config.
func (e *Extension) build() error {
	if e.store == nil {
		s, err := e.openStore()
		if err != nil {
			return err
		}
		e.store = s
	}

	opts := e.buildEngineOpts()
	if e.orders != nil {
		e.indexer = indexer.New(e.orders, indexer.WithInterval(e.config.InstallmentInterval))
		opts = append(opts, bnpl.WithPlugin(e.indexer))
	}

	e.engine = bnpl.New(e.store, opts...)

	if !e.config.DisableKeeper && e.config.KeeperSigner != "" {
		e.keeper = keeper.New(e.engine, types.Principal(e.config.KeeperSigner),
			keeper.WithConfig(e.config.Keeper),
			keeper.WithLogger(e.engine.Logger()),
		)
	}
	return nil
}

// openStore builds the store for the configured driver.
func (e *Extension) openStore() (store.Store, error) {
	if e.groveDB == nil {
		if e.config.Driver != "" && e.config.Driver != DriverMemory {
			return nil, fmt.Errorf("bnpl: driver %q needs a grove database", e.config.Driver)
		}
		return memory.New(), nil
	}

	switch e.config.Driver {
	case DriverPostgres:
		return postgres.New(e.groveDB), nil
	case DriverSQLite:
		return sqlite.New(e.groveDB), nil
	case DriverMongo:
		return mongo.New(e.groveDB), nil
	default:
		return nil, fmt.Errorf("bnpl: unsupported grove driver %q", e.config.Driver)
	}
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("bnpl: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	if e.keeper != nil {
		if err := e.keeper.Start(context.WithoutCancel(ctx)); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension]. The keeper stops first so no job runs
// against a closed store.
func (e *Extension) Stop(ctx context.Context) error {
	var errs []error
	if e.keeper != nil {
		if err := e.keeper.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	e.MarkStopped()
	return errors.Join(errs...)
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("bnpl: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs bnpl.Option values from the resolved config.
func (e *Extension) buildEngineOpts() []bnpl.Option {
	opts := make([]bnpl.Option, 0, len(e.engineOpts)+3)

	if e.config.DisableMigrate {
		opts = append(opts, bnpl.WithoutMigrate())
	}
	if e.config.HookTimeout > 0 {
		opts = append(opts, bnpl.WithHookTimeout(e.config.HookTimeout))
	}
	if e.config.VaultCustody != "" {
		opts = append(opts, bnpl.WithVaultCustody(types.Principal(e.config.VaultCustody)))
	}

	// Append any pass-through engine options.
	opts = append(opts, e.engineOpts...)

	return opts
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("bnpl: configuration is required but not found in config files; " +
				"ensure 'extensions.bnpl' or 'bnpl' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("bnpl: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("driver", e.config.Driver),
		forge.F("hook_timeout", e.config.HookTimeout),
		forge.F("vault_custody", e.config.VaultCustody),
		forge.F("installment_interval", e.config.InstallmentInterval),
		forge.F("disable_keeper", e.config.DisableKeeper),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.bnpl", "bnpl"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("bnpl: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("bnpl: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Driver == "" {
		cfg.Driver = defaults.Driver
	}
	if cfg.HookTimeout == 0 {
		cfg.HookTimeout = defaults.HookTimeout
	}
	if cfg.VaultCustody == "" {
		cfg.VaultCustody = defaults.VaultCustody
	}
	if cfg.InstallmentInterval == 0 {
		cfg.InstallmentInterval = defaults.InstallmentInterval
	}
	if cfg.Keeper == (keeper.Config{}) {
		cfg.Keeper = defaults.Keeper
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.DisableKeeper {
		yamlConfig.DisableKeeper = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.Driver == "" {
		yamlConfig.Driver = programmaticConfig.Driver
	}
	if yamlConfig.VaultCustody == "" {
		yamlConfig.VaultCustody = programmaticConfig.VaultCustody
	}
	if yamlConfig.KeeperSigner == "" {
		yamlConfig.KeeperSigner = programmaticConfig.KeeperSigner
	}

	// Duration fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.HookTimeout == 0 {
		yamlConfig.HookTimeout = programmaticConfig.HookTimeout
	}
	if yamlConfig.InstallmentInterval == 0 {
		yamlConfig.InstallmentInterval = programmaticConfig.InstallmentInterval
	}
	if yamlConfig.Keeper == (keeper.Config{}) {
		yamlConfig.Keeper = programmaticConfig.Keeper
	}

	// Fill remaining zeros with defaults.
	return mergeWithDefaults(yamlConfig)
}

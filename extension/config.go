package extension

import (
	"time"

	"github.com/xraph/bnpl/keeper"
)

// Store driver names accepted in Config.Driver.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
)

// Config holds the bnpl extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.bnpl" or "bnpl" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// Driver selects the store backend built over the grove database:
	// "postgres", "sqlite" or "mongo". Without a grove database the memory
	// store is used.
	Driver string `json:"driver" mapstructure:"driver" yaml:"driver"`

	// HookTimeout bounds each plugin hook call (default: 5s).
	HookTimeout time.Duration `json:"hook_timeout" mapstructure:"hook_timeout" yaml:"hook_timeout"`

	// VaultCustody is the custody account holding collateral (default: "vault").
	VaultCustody string `json:"vault_custody" mapstructure:"vault_custody" yaml:"vault_custody"`

	// InstallmentInterval spaces the due dates of an order's notes
	// (default: 30 days).
	InstallmentInterval time.Duration `json:"installment_interval" mapstructure:"installment_interval" yaml:"installment_interval"`

	// DisableKeeper turns off the scheduled maintenance jobs.
	DisableKeeper bool `json:"disable_keeper" mapstructure:"disable_keeper" yaml:"disable_keeper"`

	// KeeperSigner is the admin principal the keeper acts as.
	KeeperSigner string `json:"keeper_signer" mapstructure:"keeper_signer" yaml:"keeper_signer"`

	// Keeper holds the cron schedules of the maintenance jobs.
	Keeper keeper.Config `json:"keeper" mapstructure:"keeper" yaml:"keeper"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Driver:              DriverMemory,
		HookTimeout:         5 * time.Second,
		VaultCustody:        "vault",
		InstallmentInterval: 30 * 24 * time.Hour,
		Keeper:              keeper.DefaultConfig(),
	}
}

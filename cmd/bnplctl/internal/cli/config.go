package cli

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/xraph/bnpl/credit"
	"github.com/xraph/bnpl/keeper"
	"github.com/xraph/bnpl/types"
)

// Config describes the ledger a scenario runs against.
type Config struct {
	Admin               types.Principal `mapstructure:"admin"`
	VaultCustody        types.Principal `mapstructure:"vault_custody"`
	InstallmentInterval time.Duration   `mapstructure:"installment_interval"`
	Risk                RiskConfig      `mapstructure:"risk"`
	Oracle              OracleConfig    `mapstructure:"oracle"`
	Pool                PoolConfig      `mapstructure:"pool"`
	Keeper              keeper.Config   `mapstructure:"keeper"`
}

// RiskConfig mirrors credit.RiskParams.
type RiskConfig struct {
	MinHFForCharges     types.BPS `mapstructure:"min_hf_for_charges"`
	MinHFForWithdraw    types.BPS `mapstructure:"min_hf_for_withdraw"`
	PenaltyRateDailyBps types.BPS `mapstructure:"penalty_rate_daily_bps"`
	LateFeeBps          types.BPS `mapstructure:"late_fee_bps"`
	GraceVolatileDays   uint8     `mapstructure:"grace_volatile_days"`
	GraceAnyDays        uint8     `mapstructure:"grace_any_days"`
	MinPaymentBps       types.BPS `mapstructure:"min_payment_bps"`
}

// Params converts c to the engine's parameter set.
func (c RiskConfig) Params() credit.RiskParams {
	return credit.RiskParams{
		MinHFForCharges:     c.MinHFForCharges,
		MinHFForWithdraw:    c.MinHFForWithdraw,
		PenaltyRateDailyBps: c.PenaltyRateDailyBps,
		LateFeeBps:          c.LateFeeBps,
		GraceVolatileDays:   c.GraceVolatileDays,
		GraceAnyDays:        c.GraceAnyDays,
		MinPaymentBps:       c.MinPaymentBps,
	}
}

// OracleConfig names the price sources liquidation consults.
type OracleConfig struct {
	Primary     string        `mapstructure:"primary"`
	Fallback    string        `mapstructure:"fallback"`
	MaxAge      time.Duration `mapstructure:"max_age"`
	SlippageMax types.BPS     `mapstructure:"slippage_max"`
	Haircut     types.BPS     `mapstructure:"haircut"`
}

// PoolConfig configures the advance pool.
type PoolConfig struct {
	Custody     string    `mapstructure:"custody"`
	DiscountBps types.BPS `mapstructure:"discount_bps"`
}

// DefaultConfig returns the config used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Admin:               "issuer",
		VaultCustody:        "vault",
		InstallmentInterval: 30 * 24 * time.Hour,
		Risk: RiskConfig{
			MinHFForCharges:  12000,
			MinHFForWithdraw: 12000,
			GraceAnyDays:     30,
			MinPaymentBps:    1000,
		},
		Oracle: OracleConfig{
			Primary:     "primary",
			Fallback:    "fallback",
			MaxAge:      5 * time.Minute,
			SlippageMax: 100,
		},
		Pool: PoolConfig{
			Custody: "pool",
		},
		Keeper: keeper.DefaultConfig(),
	}
}

// LoadConfig reads path over the defaults. An empty path returns the
// defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("BNPL")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if cfg.Admin == "" {
		return nil, fmt.Errorf("config %s: admin is required", path)
	}
	return cfg, nil
}

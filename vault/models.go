// Package vault defines collateral positions and the health factor they
// back.
package vault

import (
	"math"
	"time"

	"github.com/xraph/bnpl/id"
	"github.com/xraph/bnpl/types"
)

// Defaults for a new vault configuration.
const (
	DefaultSlippageMax  types.BPS = 100
	DefaultOracleMaxAge           = 60 * time.Second
)

// Position is the collateral an owner holds in one asset. Valuation is the
// position's value in stable units; LTV is the share of it that counts
// toward the owner's credit.
type Position struct {
	types.Entity
	ID        id.PositionID   `json:"id"`
	Owner     types.Principal `json:"owner"`
	Asset     string          `json:"asset"`
	Amount    types.Amount    `json:"amount"`
	LTV       types.BPS       `json:"ltv"`
	Valuation types.Amount    `json:"valuation"`
}

// NewPosition returns an empty position.
func NewPosition(owner types.Principal, asset string, ltv types.BPS, valuation types.Amount, now time.Time) *Position {
	return &Position{
		Entity:    types.NewEntity(now),
		ID:        id.PositionFor(string(owner), asset),
		Owner:     owner,
		Asset:     asset,
		LTV:       ltv,
		Valuation: valuation,
	}
}

// BorrowingPower is Valuation × LTV.
func (p *Position) BorrowingPower() types.Amount {
	return p.Valuation.MulBps(p.LTV)
}

// ValuationAt returns the valuation scaled pro rata to remaining units.
func (p *Position) ValuationAt(remaining types.Amount) types.Amount {
	if p.Amount == 0 || remaining >= p.Amount {
		return p.Valuation
	}
	v, err := p.Valuation.MulDiv(uint64(remaining), uint64(p.Amount))
	if err != nil {
		return p.Valuation
	}
	return v
}

// HealthFactor computes Σ(valuation × ltv) × 10000 / used across positions.
// With nothing used the factor is unbounded and reported as BPSMax.
func HealthFactor(positions []*Position, used types.Amount) types.BPS {
	if used == 0 {
		return types.BPSMax
	}
	var power types.Amount
	for _, p := range positions {
		next, err := power.Add(p.BorrowingPower())
		if err != nil {
			return types.BPSMax
		}
		power = next
	}
	hf, err := power.MulDiv(types.BPSDenominator, uint64(used))
	if err != nil || hf > math.MaxUint32 {
		return types.BPSMax
	}
	return types.BPS(hf)
}

// Config is the vault-wide price and slippage configuration.
type Config struct {
	types.Entity
	ID             id.VaultConfigID `json:"id"`
	OraclePrimary  string           `json:"oracle_primary"`
	OracleFallback string           `json:"oracle_fallback"`
	SlippageMax    types.BPS        `json:"slippage_max"`
	OracleMaxAge   time.Duration    `json:"oracle_max_age"`
	Admin          types.Principal  `json:"admin"`
}

// NewConfig returns a configuration with default slippage and oracle age.
func NewConfig(admin types.Principal, primary, fallback string, now time.Time) *Config {
	return &Config{
		Entity:         types.NewEntity(now),
		ID:             id.VaultConfigFor(),
		OraclePrimary:  primary,
		OracleFallback: fallback,
		SlippageMax:    DefaultSlippageMax,
		OracleMaxAge:   DefaultOracleMaxAge,
		Admin:          admin,
	}
}

// IsAdmin reports whether signer holds the admin capability.
func (c *Config) IsAdmin(signer types.Principal) bool {
	return !signer.IsZero() && signer == c.Admin
}

// MinProceeds is the lowest acceptable swap output for an expected value.
func (c *Config) MinProceeds(expected types.Amount) types.Amount {
	return expected.MulBps(types.BPSDenominator - c.SlippageMax)
}

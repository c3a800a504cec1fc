package bnpl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/bnpl/id"
	"github.com/xraph/bnpl/oracle"
	"github.com/xraph/bnpl/types"
	"github.com/xraph/bnpl/vault"
)

// VaultParams changes the vault configuration. Nil fields are left as is.
type VaultParams struct {
	OraclePrimary  *string
	OracleFallback *string
	SlippageMax    *types.BPS
	OracleMaxAge   *time.Duration
}

// InitVaultConfig creates the vault configuration with admin as its
// authority.
func (e *Engine) InitVaultConfig(ctx context.Context, admin types.Principal, primary, fallback string) (*vault.Config, error) {
	var errs MultiError
	errs.Add(required("admin", admin.IsZero()))
	errs.Add(required("oracle_primary", primary == ""))
	if err := errs.ErrOrNil(); err != nil {
		return nil, err
	}

	cfg := vault.NewConfig(admin, primary, fallback, e.now())
	if err := e.locked(func() error {
		return e.store.CreateVaultConfig(ctx, cfg)
	}, cfg.ID); err != nil {
		return nil, err
	}

	e.logger.Info("vault config initialized", "admin", admin, "oracle_primary", primary, "oracle_fallback", fallback)
	return cfg, nil
}

// UpdateVaultConfig applies p. Admin only.
func (e *Engine) UpdateVaultConfig(ctx context.Context, signer types.Principal, p VaultParams) (*vault.Config, error) {
	if p.SlippageMax != nil && !p.SlippageMax.Valid() {
		return nil, ValidationError{Field: "slippage_max", Message: "must be at most 10000"}
	}
	if p.OracleMaxAge != nil && *p.OracleMaxAge <= 0 {
		return nil, ValidationError{Field: "oracle_max_age", Message: "must be positive"}
	}

	var cfg *vault.Config
	err := e.locked(func() error {
		var err error
		cfg, err = e.store.GetVaultConfig(ctx, id.VaultConfigFor())
		if err != nil {
			return err
		}
		if !cfg.IsAdmin(signer) {
			return ErrUnauthorized
		}
		if p.OraclePrimary != nil {
			cfg.OraclePrimary = *p.OraclePrimary
		}
		if p.OracleFallback != nil {
			cfg.OracleFallback = *p.OracleFallback
		}
		if p.SlippageMax != nil {
			cfg.SlippageMax = *p.SlippageMax
		}
		if p.OracleMaxAge != nil {
			cfg.OracleMaxAge = *p.OracleMaxAge
		}
		cfg.Touch(e.now())
		return e.store.UpdateVaultConfig(ctx, cfg)
	}, id.VaultConfigFor())
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetVaultConfig returns the vault configuration.
func (e *Engine) GetVaultConfig(ctx context.Context) (*vault.Config, error) {
	return e.store.GetVaultConfig(ctx, id.VaultConfigFor())
}

// OpenPosition creates an empty (owner, asset) position.
func (e *Engine) OpenPosition(ctx context.Context, owner types.Principal, asset string, ltv types.BPS, valuation types.Amount) (*vault.Position, error) {
	var errs MultiError
	errs.Add(required("owner", owner.IsZero()))
	errs.Add(required("asset", asset == ""))
	if !ltv.Valid() {
		errs.Add(ValidationError{Field: "ltv", Message: "must be at most 10000"})
	}
	if err := errs.ErrOrNil(); err != nil {
		return nil, err
	}

	pos := vault.NewPosition(owner, asset, ltv, valuation, e.now())
	if err := e.locked(func() error {
		return e.store.CreatePosition(ctx, pos)
	}, pos.ID); err != nil {
		return nil, err
	}

	e.plugins.EmitPositionOpened(ctx, vault.PositionOpened{
		Owner:     owner,
		Asset:     asset,
		LTV:       ltv,
		Valuation: valuation,
		At:        pos.CreatedAt,
	})
	return pos, nil
}

// GetPosition returns owner's position in asset.
func (e *Engine) GetPosition(ctx context.Context, owner types.Principal, asset string) (*vault.Position, error) {
	return e.store.GetPosition(ctx, id.PositionFor(string(owner), asset))
}

// ListPositions returns owner's positions.
func (e *Engine) ListPositions(ctx context.Context, owner types.Principal) ([]*vault.Position, error) {
	return e.store.ListPositions(ctx, owner)
}

// HealthFactor computes owner's current health factor from collateral and
// outstanding credit.
func (e *Engine) HealthFactor(ctx context.Context, owner types.Principal) (types.BPS, error) {
	used, err := e.usedBy(ctx, owner)
	if err != nil {
		return 0, err
	}
	positions, err := e.store.ListPositions(ctx, owner)
	if err != nil {
		return 0, err
	}
	return vault.HealthFactor(positions, used), nil
}

// Deposit adds collateral to the owner's position, optionally revaluing it.
// Only the owner may deposit.
func (e *Engine) Deposit(ctx context.Context, signer, owner types.Principal, asset string, amount types.Amount, valuation *types.Amount, ltv *types.BPS) (*vault.Position, error) {
	if signer.IsZero() || signer != owner {
		return nil, ErrUnauthorized
	}
	if ltv != nil && !ltv.Valid() {
		return nil, ValidationError{Field: "ltv", Message: "must be at most 10000"}
	}

	posID := id.PositionFor(string(owner), asset)
	var (
		pos *vault.Position
		ev  vault.Deposited
	)
	err := e.locked(func() error {
		var err error
		pos, err = e.store.GetPosition(ctx, posID)
		if err != nil {
			return err
		}
		total, err := pos.Amount.Add(amount)
		if err != nil {
			return err
		}
		if err := e.transfer(ctx, owner, e.vaultCustody, amount, "deposit:"+asset); err != nil {
			return err
		}

		now := e.now()
		pos.Amount = total
		if valuation != nil {
			pos.Valuation = *valuation
		}
		if ltv != nil {
			pos.LTV = *ltv
		}
		pos.Touch(now)
		if err := e.store.UpdatePosition(ctx, pos); err != nil {
			e.reverse(ctx, owner, e.vaultCustody, amount, "deposit:"+asset)
			return err
		}
		ev = vault.Deposited{Owner: owner, Asset: asset, Amount: amount, Total: total, At: now}
		return nil
	}, posID)
	if err != nil {
		return nil, err
	}

	e.plugins.EmitCollateralDeposited(ctx, ev)
	return pos, nil
}

// Withdraw removes collateral from the owner's position. Only the owner may
// withdraw, never more than the position holds, and only while the owner's
// health factor after the withdrawal stays at or above the configured
// minimum. The owner's credit account is locked for the step so used cannot
// move under the gate.
func (e *Engine) Withdraw(ctx context.Context, signer, owner types.Principal, asset string, amount types.Amount) (*vault.Position, error) {
	if signer.IsZero() || signer != owner {
		return nil, ErrUnauthorized
	}

	posID := id.PositionFor(string(owner), asset)
	var (
		pos *vault.Position
		ev  vault.Withdrawn
	)
	err := e.locked(func() error {
		var err error
		pos, err = e.store.GetPosition(ctx, posID)
		if err != nil {
			return err
		}
		if pos.Amount < amount {
			return ErrInsufficientAmount
		}

		remaining := pos.Amount - amount
		projected := *pos
		projected.Amount = remaining
		projected.Valuation = pos.ValuationAt(remaining)

		if err := e.checkWithdrawGate(ctx, owner, &projected); err != nil {
			return err
		}
		if err := e.transfer(ctx, e.vaultCustody, owner, amount, "withdraw:"+asset); err != nil {
			return err
		}

		now := e.now()
		projected.Touch(now)
		if err := e.store.UpdatePosition(ctx, &projected); err != nil {
			e.reverse(ctx, e.vaultCustody, owner, amount, "withdraw:"+asset)
			return err
		}
		pos = &projected
		ev = vault.Withdrawn{Owner: owner, Asset: asset, Amount: amount, Total: remaining, At: now}
		return nil
	}, posID, id.AccountFor(string(owner)))
	if err != nil {
		return nil, err
	}

	e.plugins.EmitCollateralWithdrawn(ctx, ev)
	return pos, nil
}

// checkWithdrawGate fails when replacing the owner's position with projected
// would leave their health factor below MinHFForWithdraw.
func (e *Engine) checkWithdrawGate(ctx context.Context, owner types.Principal, projected *vault.Position) error {
	used, err := e.usedBy(ctx, owner)
	if err != nil {
		return err
	}
	if used == 0 {
		return nil
	}
	cfg, err := e.store.GetRiskConfig(ctx, id.RiskConfigFor())
	if err != nil {
		return err
	}

	positions, err := e.store.ListPositions(ctx, owner)
	if err != nil {
		return err
	}
	for i, p := range positions {
		if p.ID == projected.ID {
			positions[i] = projected
		}
	}

	if vault.HealthFactor(positions, used) < cfg.MinHFForWithdraw {
		return ErrHfTooLowForWithdraw
	}
	return nil
}

// LiquidatePartial sells enough of the owner's collateral to raise target
// stable units. Admin only. The price comes from the primary oracle, or the
// fallback when the primary is stale. The slippage bound is handed to the
// swapper as the minimum output, so a fill below it is refused before any
// collateral is sold. The emitted Liquidated event carries the proceeds owed
// against the owner's credit account.
func (e *Engine) LiquidatePartial(ctx context.Context, signer, owner types.Principal, asset string, target types.Amount) (*vault.Position, error) {
	if target == 0 {
		return nil, ValidationError{Field: "target", Message: "must be positive"}
	}

	posID := id.PositionFor(string(owner), asset)
	var (
		pos *vault.Position
		ev  vault.Liquidated
	)
	err := e.locked(func() error {
		cfg, err := e.store.GetVaultConfig(ctx, id.VaultConfigFor())
		if err != nil {
			return err
		}
		if !cfg.IsAdmin(signer) {
			return ErrUnauthorized
		}
		pos, err = e.store.GetPosition(ctx, posID)
		if err != nil {
			return err
		}
		if pos.Amount == 0 {
			return ErrInsufficientAmount
		}

		price, err := e.freshPrice(ctx, cfg, asset)
		if err != nil {
			return err
		}
		units, err := price.UnitsFor(target)
		if err != nil {
			return err
		}
		units = units.Min(pos.Amount)
		expected, err := price.ValueOf(units)
		if err != nil {
			return err
		}

		if e.swapper == nil {
			return fmt.Errorf("%w: no swapper configured", ErrInvalidInput)
		}
		minOut := cfg.MinProceeds(expected)
		proceeds, err := e.swapper.Sell(ctx, owner, asset, units, minOut)
		if errors.Is(err, oracle.ErrBelowMinimum) {
			return fmt.Errorf("%w: %w", ErrSlippageExceeded, err)
		}
		if err != nil {
			return fmt.Errorf("bnpl: swap %s: %w", asset, err)
		}
		if proceeds < minOut {
			return ErrSlippageExceeded
		}

		now := e.now()
		remaining := pos.Amount - units
		valuation, err := price.ValueOf(remaining)
		if err != nil {
			return err
		}
		pos.Amount = remaining
		pos.Valuation = valuation
		pos.Touch(now)
		if err := e.store.UpdatePosition(ctx, pos); err != nil {
			return err
		}

		ev = vault.Liquidated{Owner: owner, Asset: asset, Sold: units, Proceeds: proceeds, Source: price.Source, At: now}
		return nil
	}, posID)
	if err != nil {
		return nil, err
	}

	e.plugins.EmitCollateralLiquidated(ctx, ev)
	e.logger.Info("collateral liquidated",
		"owner", owner,
		"asset", asset,
		"sold", ev.Sold,
		"proceeds", ev.Proceeds,
		"source", ev.Source,
	)
	return pos, nil
}

// freshPrice returns the primary price, falling back when it is missing or
// older than the configured maximum age.
func (e *Engine) freshPrice(ctx context.Context, cfg *vault.Config, asset string) (oracle.Price, error) {
	if e.prices == nil {
		return oracle.Price{}, fmt.Errorf("%w: no price source configured", ErrOracleStale)
	}

	now := e.now()
	for _, source := range []string{cfg.OraclePrimary, cfg.OracleFallback} {
		if source == "" {
			continue
		}
		p, err := e.prices.Price(ctx, source, asset)
		if err != nil {
			e.logger.Warn("oracle price unavailable", "source", source, "asset", asset, "error", err)
			continue
		}
		if p.Fresh(now, cfg.OracleMaxAge) {
			return p, nil
		}
		e.logger.Warn("oracle price stale", "source", source, "asset", asset, "published_at", p.PublishedAt)
	}
	return oracle.Price{}, ErrOracleStale
}

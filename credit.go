package bnpl

import (
	"context"
	"errors"

	"github.com/xraph/bnpl/credit"
	"github.com/xraph/bnpl/id"
	"github.com/xraph/bnpl/types"
	"github.com/xraph/bnpl/vault"
)

// ──────────────────────────────────────────────────
// Risk configuration
// ──────────────────────────────────────────────────

// InitRiskConfig creates the issuer-wide risk configuration with admin as its
// authority. It can only be created once.
func (e *Engine) InitRiskConfig(ctx context.Context, admin types.Principal, params credit.RiskParams) (*credit.RiskConfig, error) {
	if err := required("admin", admin.IsZero()); err != nil {
		return nil, err
	}
	if err := validateRiskParams(params); err != nil {
		return nil, err
	}

	cfg := &credit.RiskConfig{
		Entity: types.NewEntity(e.now()),
		ID:     id.RiskConfigFor(),
		Admin:  admin,
	}
	cfg.Apply(params)

	if err := e.locked(func() error {
		return e.store.CreateRiskConfig(ctx, cfg)
	}, cfg.ID); err != nil {
		return nil, err
	}

	e.logger.Info("risk config initialized", "admin", admin, "min_hf_for_charges", cfg.MinHFForCharges)
	return cfg, nil
}

// UpdateRiskConfig replaces the risk parameters. Admin only.
func (e *Engine) UpdateRiskConfig(ctx context.Context, signer types.Principal, params credit.RiskParams) (*credit.RiskConfig, error) {
	if err := validateRiskParams(params); err != nil {
		return nil, err
	}

	var cfg *credit.RiskConfig
	err := e.locked(func() error {
		var err error
		cfg, err = e.store.GetRiskConfig(ctx, id.RiskConfigFor())
		if err != nil {
			return err
		}
		if !cfg.IsAdmin(signer) {
			return ErrUnauthorized
		}
		cfg.Apply(params)
		cfg.Touch(e.now())
		return e.store.UpdateRiskConfig(ctx, cfg)
	}, id.RiskConfigFor())
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetRiskConfig returns the risk configuration.
func (e *Engine) GetRiskConfig(ctx context.Context) (*credit.RiskConfig, error) {
	return e.store.GetRiskConfig(ctx, id.RiskConfigFor())
}

func validateRiskParams(p credit.RiskParams) error {
	var errs MultiError
	if !p.MinPaymentBps.Valid() {
		errs.Add(ValidationError{Field: "min_payment_bps", Message: "must be at most 10000"})
	}
	if !p.LateFeeBps.Valid() {
		errs.Add(ValidationError{Field: "late_fee_bps", Message: "must be at most 10000"})
	}
	if !p.PenaltyRateDailyBps.Valid() {
		errs.Add(ValidationError{Field: "penalty_rate_daily_bps", Message: "must be at most 10000"})
	}
	return errs.ErrOrNil()
}

// ──────────────────────────────────────────────────
// Accounts
// ──────────────────────────────────────────────────

// OpenAccount creates owner's credit account with a zero limit.
func (e *Engine) OpenAccount(ctx context.Context, owner types.Principal) (*credit.Account, error) {
	if err := required("owner", owner.IsZero()); err != nil {
		return nil, err
	}

	acct := credit.NewAccount(owner, e.now())
	if err := e.locked(func() error {
		return e.store.CreateAccount(ctx, acct)
	}, acct.ID); err != nil {
		return nil, err
	}

	e.logger.Debug("credit account opened", "owner", owner, "account_id", acct.ID.String())
	return acct, nil
}

// GetAccount returns owner's credit account.
func (e *Engine) GetAccount(ctx context.Context, owner types.Principal) (*credit.Account, error) {
	return e.store.GetAccount(ctx, id.AccountFor(string(owner)))
}

// ListAccounts lists credit accounts.
func (e *Engine) ListAccounts(ctx context.Context, opts credit.ListOpts) ([]*credit.Account, error) {
	return e.store.ListAccounts(ctx, opts)
}

// SetLimit replaces owner's credit limit. Admin only; the new limit may not
// be below the used balance.
func (e *Engine) SetLimit(ctx context.Context, signer, owner types.Principal, newLimit types.Amount) (*credit.Account, error) {
	acctID := id.AccountFor(string(owner))

	var acct *credit.Account
	err := e.locked(func() error {
		cfg, err := e.store.GetRiskConfig(ctx, id.RiskConfigFor())
		if err != nil {
			return err
		}
		if !cfg.IsAdmin(signer) {
			return ErrUnauthorized
		}
		acct, err = e.store.GetAccount(ctx, acctID)
		if err != nil {
			return err
		}
		if acct.Used > newLimit {
			return ErrUsedExceedsNewLimit
		}
		acct.Limit = newLimit
		acct.Touch(e.now())
		return e.store.UpdateAccount(ctx, acct)
	}, acctID)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("credit limit set", "owner", owner, "limit", newLimit)
	return acct, nil
}

// Charge draws amount against owner's limit for an order paid in
// installments. The owner must sign. On success the ChargeAuthorized event
// authorizes minting the order's notes.
func (e *Engine) Charge(ctx context.Context, signer, owner types.Principal, amount types.Amount, installments uint8, orderID types.OrderID) (*credit.Account, error) {
	if signer != owner || signer.IsZero() {
		return nil, ErrUnauthorized
	}
	if amount == 0 {
		return nil, ValidationError{Field: "amount", Message: "must be positive"}
	}
	if orderID.IsZero() {
		return nil, ValidationError{Field: "order_id", Message: "required"}
	}

	acctID := id.AccountFor(string(owner))
	var (
		acct *credit.Account
		ev   credit.ChargeAuthorized
	)
	err := e.locked(func() error {
		var err error
		acct, err = e.store.GetAccount(ctx, acctID)
		if err != nil {
			return err
		}
		cfg, err := e.store.GetRiskConfig(ctx, id.RiskConfigFor())
		if err != nil {
			return err
		}

		if acct.Status != credit.StatusActive {
			return ErrAccountFrozen
		}
		if acct.Available() < amount {
			return ErrInsufficientLimit
		}
		if acct.HealthFactor < cfg.MinHFForCharges {
			return ErrHfTooLow
		}
		if installments == 0 || types.Amount(installments) > amount {
			return ErrInstallmentsNotAllowed
		}

		used, err := acct.Used.Add(amount)
		if err != nil {
			return err
		}
		acct.Used = used
		acct.Touch(e.now())
		if err := e.store.UpdateAccount(ctx, acct); err != nil {
			return err
		}

		ev = credit.ChargeAuthorized{
			Owner:        owner,
			Amount:       amount,
			Installments: installments,
			OrderID:      orderID,
			At:           e.now(),
		}
		return nil
	}, acctID)
	if err != nil {
		return nil, err
	}

	e.plugins.EmitChargeAuthorized(ctx, ev)
	e.logger.Debug("charge authorized",
		"owner", owner,
		"amount", amount,
		"installments", installments,
		"order_id", orderID.String(),
	)
	return acct, nil
}

// Repay reduces owner's used balance by amount, flooring at zero. Anyone may
// repay on an owner's behalf. A soft-frozen account whose balance reaches
// zero becomes active again.
func (e *Engine) Repay(ctx context.Context, signer, owner types.Principal, amount types.Amount) (*credit.Account, error) {
	if err := required("signer", signer.IsZero()); err != nil {
		return nil, err
	}

	acctID := id.AccountFor(string(owner))
	var (
		acct    *credit.Account
		posted  credit.PaymentPosted
		changed *credit.StatusChanged
	)
	err := e.locked(func() error {
		var err error
		acct, err = e.store.GetAccount(ctx, acctID)
		if err != nil {
			return err
		}

		now := e.now()
		applied := amount.Min(acct.Used)
		acct.Used = acct.Used.SubFloor(amount)
		if acct.Status == credit.StatusSoftFrozen && applied > 0 && acct.Used == 0 {
			changed = &credit.StatusChanged{Owner: owner, From: acct.Status, To: credit.StatusActive, At: now}
			acct.Status = credit.StatusActive
		}
		acct.Touch(now)
		if err := e.store.UpdateAccount(ctx, acct); err != nil {
			return err
		}

		posted = credit.PaymentPosted{Owner: owner, Amount: amount, Applied: applied, Used: acct.Used, At: now}
		return nil
	}, acctID)
	if err != nil {
		return nil, err
	}

	e.plugins.EmitPaymentPosted(ctx, posted)
	if changed != nil {
		e.plugins.EmitAccountStatusChanged(ctx, *changed)
	}
	return acct, nil
}

// StatementClose closes owner's billing cycle, recording total due, minimum
// payment and due date. Admin only; each cycle closes once.
func (e *Engine) StatementClose(ctx context.Context, signer, owner types.Principal, cycle types.CycleID) (*credit.Statement, error) {
	acctID := id.AccountFor(string(owner))
	stmtID := id.StatementFor(string(owner), cycle)

	var st *credit.Statement
	err := e.locked(func() error {
		cfg, err := e.store.GetRiskConfig(ctx, id.RiskConfigFor())
		if err != nil {
			return err
		}
		if !cfg.IsAdmin(signer) {
			return ErrUnauthorized
		}
		acct, err := e.store.GetAccount(ctx, acctID)
		if err != nil {
			return err
		}
		st = credit.Close(acct, cfg, cycle, e.now())
		return e.store.CreateStatement(ctx, st)
	}, acctID, stmtID)
	if err != nil {
		return nil, err
	}

	e.plugins.EmitStatementClosed(ctx, credit.StatementClosed{
		Owner:      owner,
		CycleID:    cycle,
		TotalDue:   st.TotalDue,
		MinPayment: st.MinPayment,
		DueDate:    st.DueDate,
		At:         st.ClosedAt,
	})
	return st, nil
}

// GetStatement returns owner's statement for cycle.
func (e *Engine) GetStatement(ctx context.Context, owner types.Principal, cycle types.CycleID) (*credit.Statement, error) {
	return e.store.GetStatement(ctx, id.StatementFor(string(owner), cycle))
}

// ListStatements lists owner's statements, newest first.
func (e *Engine) ListStatements(ctx context.Context, owner types.Principal, opts credit.ListOpts) ([]*credit.Statement, error) {
	return e.store.ListStatements(ctx, owner, opts)
}

// SoftFreeze blocks new charges on owner's account. Admin only.
func (e *Engine) SoftFreeze(ctx context.Context, signer, owner types.Principal) (*credit.Account, error) {
	return e.setStatus(ctx, signer, owner, credit.StatusSoftFrozen)
}

// HardFreeze permanently freezes owner's account. Admin only.
func (e *Engine) HardFreeze(ctx context.Context, signer, owner types.Principal) (*credit.Account, error) {
	return e.setStatus(ctx, signer, owner, credit.StatusHardFrozen)
}

// Unfreeze reactivates a soft-frozen account. Admin only.
func (e *Engine) Unfreeze(ctx context.Context, signer, owner types.Principal) (*credit.Account, error) {
	return e.setStatus(ctx, signer, owner, credit.StatusActive)
}

func (e *Engine) setStatus(ctx context.Context, signer, owner types.Principal, next credit.Status) (*credit.Account, error) {
	acctID := id.AccountFor(string(owner))

	var (
		acct    *credit.Account
		changed *credit.StatusChanged
	)
	err := e.locked(func() error {
		cfg, err := e.store.GetRiskConfig(ctx, id.RiskConfigFor())
		if err != nil {
			return err
		}
		if !cfg.IsAdmin(signer) {
			return ErrUnauthorized
		}
		acct, err = e.store.GetAccount(ctx, acctID)
		if err != nil {
			return err
		}
		if !acct.Status.CanTransition(next) {
			return ErrInvalidTransition
		}
		if acct.Status == next {
			return nil
		}

		now := e.now()
		changed = &credit.StatusChanged{Owner: owner, From: acct.Status, To: next, At: now}
		acct.Status = next
		acct.Touch(now)
		return e.store.UpdateAccount(ctx, acct)
	}, acctID)
	if err != nil {
		return nil, err
	}

	if changed != nil {
		e.plugins.EmitAccountStatusChanged(ctx, *changed)
		e.logger.Info("credit account status changed",
			"owner", owner,
			"from", changed.From,
			"to", changed.To,
		)
	}
	return acct, nil
}

// RefreshHealthFactor recomputes owner's health factor from their collateral
// and stores it on the account.
func (e *Engine) RefreshHealthFactor(ctx context.Context, owner types.Principal) (*credit.Account, error) {
	acctID := id.AccountFor(string(owner))

	var acct *credit.Account
	err := e.locked(func() error {
		var err error
		acct, err = e.store.GetAccount(ctx, acctID)
		if err != nil {
			return err
		}
		positions, err := e.store.ListPositions(ctx, owner)
		if err != nil {
			return err
		}
		hf := vault.HealthFactor(positions, acct.Used)
		if hf == acct.HealthFactor {
			return nil
		}
		acct.HealthFactor = hf
		acct.Touch(e.now())
		return e.store.UpdateAccount(ctx, acct)
	}, acctID)
	if err != nil {
		return nil, err
	}
	return acct, nil
}

// usedBy returns owner's outstanding credit, or zero when they have no
// account.
func (e *Engine) usedBy(ctx context.Context, owner types.Principal) (types.Amount, error) {
	acct, err := e.store.GetAccount(ctx, id.AccountFor(string(owner)))
	if errors.Is(err, ErrAccountNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return acct.Used, nil
}

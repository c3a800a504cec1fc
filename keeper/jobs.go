package keeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/bnpl"
	"github.com/xraph/bnpl/credit"
	"github.com/xraph/bnpl/note"
	"github.com/xraph/bnpl/types"
	"github.com/xraph/bnpl/vault"
)

// Ledger is the part of the engine the keeper drives.
type Ledger interface {
	Now() time.Time
	GetRiskConfig(ctx context.Context) (*credit.RiskConfig, error)
	ListAccounts(ctx context.Context, opts credit.ListOpts) ([]*credit.Account, error)
	StatementClose(ctx context.Context, signer, owner types.Principal, cycle types.CycleID) (*credit.Statement, error)
	RefreshHealthFactor(ctx context.Context, owner types.Principal) (*credit.Account, error)
	SoftFreeze(ctx context.Context, signer, owner types.Principal) (*credit.Account, error)
	Unfreeze(ctx context.Context, signer, owner types.Principal) (*credit.Account, error)
	ListStatements(ctx context.Context, owner types.Principal, opts credit.ListOpts) ([]*credit.Statement, error)
	ListNotes(ctx context.Context, opts note.ListOpts) ([]*note.Note, error)
	AgeNote(ctx context.Context, noteID bnpl.ID) (*note.Note, error)
	HealthFactor(ctx context.Context, owner types.Principal) (types.BPS, error)
	ListPositions(ctx context.Context, owner types.Principal) ([]*vault.Position, error)
	LiquidatePartial(ctx context.Context, signer, owner types.Principal, asset string, target types.Amount) (*vault.Position, error)
}

// Report summarizes one job run.
type Report struct {
	Job     string `json:"job"`
	Seen    int    `json:"seen"`
	Changed int    `json:"changed"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
}

// pageSize bounds each listing a job reads.
const pageSize = 100

// openNoteStatuses are the statuses time can still move a note out of.
var openNoteStatuses = []note.Status{
	note.StatusIssued,
	note.StatusAdvanced,
	note.StatusDueUpcoming,
	note.StatusDueToday,
	note.StatusPastDue,
}

// BillingCycle returns the cycle a statement closed at t belongs to: the
// first day of t's month.
func BillingCycle(t time.Time) types.CycleID {
	t = t.UTC()
	return types.CycleIDFor(time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC))
}

// CloseStatements closes the current billing cycle of every active account
// with an outstanding balance. Accounts already closed for the cycle are
// skipped.
func (k *Keeper) CloseStatements(ctx context.Context) (Report, error) {
	r := Report{Job: JobBilling}
	cycle := BillingCycle(k.ledger.Now())

	err := k.eachAccount(ctx, credit.ListOpts{Status: credit.StatusActive, OnlyOutstanding: true}, func(a *credit.Account) {
		r.Seen++
		_, err := k.ledger.StatementClose(ctx, k.signer, a.Owner, cycle)
		switch {
		case errors.Is(err, bnpl.ErrAlreadyExists):
			r.Skipped++
		case err != nil:
			r.Failed++
			k.logger.Error("statement close failed", "owner", a.Owner, "cycle", cycle.String(), "error", err)
		default:
			r.Changed++
		}
	})
	return r, err
}

// AgeNotes moves every open note forward by the passage of time.
func (k *Keeper) AgeNotes(ctx context.Context) (Report, error) {
	r := Report{Job: JobAging}

	var open []*note.Note
	for offset := 0; ; offset += pageSize {
		page, err := k.ledger.ListNotes(ctx, note.ListOpts{Statuses: openNoteStatuses, Limit: pageSize, Offset: offset})
		if err != nil {
			return r, fmt.Errorf("keeper: list notes: %w", err)
		}
		open = append(open, page...)
		if len(page) < pageSize {
			break
		}
	}

	for _, n := range open {
		if ctx.Err() != nil {
			return r, ctx.Err()
		}
		r.Seen++
		aged, err := k.ledger.AgeNote(ctx, n.ID)
		switch {
		case err != nil:
			r.Failed++
			k.logger.Error("note aging failed", "note_id", n.ID.String(), "error", err)
		case aged.Status != n.Status:
			r.Changed++
		}
	}
	return r, nil
}

// MonitorRisk recomputes every account's health factor, soft-freezing active
// accounts that fall below the charge threshold and unfreezing soft-frozen
// accounts that recover.
func (k *Keeper) MonitorRisk(ctx context.Context) (Report, error) {
	r := Report{Job: JobRisk}

	cfg, err := k.ledger.GetRiskConfig(ctx)
	if err != nil {
		return r, fmt.Errorf("keeper: risk config: %w", err)
	}

	var watched []*credit.Account
	for _, status := range []credit.Status{credit.StatusActive, credit.StatusSoftFrozen} {
		accts, err := k.listAccounts(ctx, credit.ListOpts{Status: status})
		if err != nil {
			return r, err
		}
		watched = append(watched, accts...)
	}

	for _, a := range watched {
		if ctx.Err() != nil {
			return r, ctx.Err()
		}
		r.Seen++
		acct, err := k.ledger.RefreshHealthFactor(ctx, a.Owner)
		if err != nil {
			r.Failed++
			k.logger.Error("health factor refresh failed", "owner", a.Owner, "error", err)
			continue
		}

		healthy := acct.HealthFactor >= cfg.MinHFForCharges
		switch {
		case acct.Status == credit.StatusActive && !healthy:
			_, err = k.ledger.SoftFreeze(ctx, k.signer, a.Owner)
			k.logger.Warn("account soft-frozen", "owner", a.Owner, "health_factor", acct.HealthFactor.String())
		case acct.Status == credit.StatusSoftFrozen && healthy:
			_, err = k.ledger.Unfreeze(ctx, k.signer, a.Owner)
			k.logger.Info("account unfrozen", "owner", a.Owner, "health_factor", acct.HealthFactor.String())
		default:
			continue
		}
		if err != nil {
			r.Failed++
			k.logger.Error("account status change failed", "owner", a.Owner, "error", err)
			continue
		}
		r.Changed++
	}
	return r, nil
}

// Liquidate sells collateral of every account in default: its latest
// statement is still owed GraceAnyDays past the due date, or its health
// factor is below the liquidation threshold. Each is liquidated for its
// outstanding balance, position by position. Defaulted accounts with nothing
// left to sell are skipped.
func (k *Keeper) Liquidate(ctx context.Context) (Report, error) {
	r := Report{Job: JobLiquidation}

	cfg, err := k.ledger.GetRiskConfig(ctx)
	if err != nil {
		return r, fmt.Errorf("keeper: risk config: %w", err)
	}
	now := k.ledger.Now()

	err = k.eachAccount(ctx, credit.ListOpts{OnlyOutstanding: true}, func(a *credit.Account) {
		r.Seen++
		reason, err := k.defaulted(ctx, a, cfg, now)
		if err != nil {
			r.Failed++
			k.logger.Error("default check failed", "owner", a.Owner, "error", err)
			return
		}
		if reason == "" {
			return
		}

		sold, err := k.liquidateAccount(ctx, a)
		switch {
		case err != nil:
			r.Failed++
			k.logger.Error("liquidation failed", "owner", a.Owner, "reason", reason, "error", err)
		case !sold:
			r.Skipped++
			k.logger.Warn("account in default has no collateral", "owner", a.Owner, "reason", reason)
		default:
			r.Changed++
			k.logger.Warn("account liquidated", "owner", a.Owner, "reason", reason, "used", a.Used)
		}
	})
	return r, err
}

// defaulted reports why a is in default, or "" when it is not.
func (k *Keeper) defaulted(ctx context.Context, a *credit.Account, cfg *credit.RiskConfig, now time.Time) (string, error) {
	stmts, err := k.ledger.ListStatements(ctx, a.Owner, credit.ListOpts{Limit: 1})
	if err != nil {
		return "", fmt.Errorf("keeper: list statements: %w", err)
	}
	if len(stmts) > 0 {
		st := stmts[0]
		if st.TotalDue > 0 && now.After(st.DueDate.AddDate(0, 0, int(cfg.GraceAnyDays))) {
			return "overdue", nil
		}
	}

	if k.config.LiquidationThreshold == 0 {
		return "", nil
	}
	hf, err := k.ledger.HealthFactor(ctx, a.Owner)
	if err != nil {
		return "", err
	}
	if hf < k.config.LiquidationThreshold {
		return "health_factor", nil
	}
	return "", nil
}

// liquidateAccount sells a's positions in listing order until its used
// balance is covered. A position left non-empty raised the whole remaining
// target; an exhausted one is credited at its recorded valuation. It reports
// whether anything was sold.
func (k *Keeper) liquidateAccount(ctx context.Context, a *credit.Account) (bool, error) {
	positions, err := k.ledger.ListPositions(ctx, a.Owner)
	if err != nil {
		return false, fmt.Errorf("keeper: list positions: %w", err)
	}

	remaining := a.Used
	sold := false
	for _, p := range positions {
		if remaining == 0 {
			break
		}
		if p.Amount == 0 {
			continue
		}
		after, err := k.ledger.LiquidatePartial(ctx, k.signer, a.Owner, p.Asset, remaining)
		if err != nil {
			return sold, fmt.Errorf("keeper: liquidate %s: %w", p.Asset, err)
		}
		sold = true
		if after.Amount > 0 {
			break
		}
		remaining = remaining.SubFloor(p.Valuation)
	}
	return sold, nil
}

// eachAccount calls fn for every account matching opts. All pages are read
// before fn runs, so fn may change the fields opts filters on.
func (k *Keeper) eachAccount(ctx context.Context, opts credit.ListOpts, fn func(*credit.Account)) error {
	all, err := k.listAccounts(ctx, opts)
	if err != nil {
		return err
	}
	for _, a := range all {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fn(a)
	}
	return nil
}

func (k *Keeper) listAccounts(ctx context.Context, opts credit.ListOpts) ([]*credit.Account, error) {
	var all []*credit.Account
	for offset := 0; ; offset += pageSize {
		opts.Limit, opts.Offset = pageSize, offset
		page, err := k.ledger.ListAccounts(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("keeper: list accounts: %w", err)
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

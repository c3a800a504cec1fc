// Package credit defines the revolving credit line records: per-owner
// accounts, the issuer-wide risk configuration, and closed statements.
package credit

import (
	"time"

	"github.com/xraph/bnpl/id"
	"github.com/xraph/bnpl/types"
)

// Defaults applied when an account is opened.
const (
	DefaultHealthFactor    types.BPS = 12_000
	DefaultBillingCycleDay uint8     = 5
	DefaultMinPaymentBps   types.BPS = 1_000
)

// Account is a revolving credit line owned by a single principal.
// Used never exceeds Limit after a successful charge or limit change.
type Account struct {
	types.Entity
	ID              id.AccountID    `json:"id"`
	Owner           types.Principal `json:"owner"`
	Limit           types.Amount    `json:"limit"`
	Used            types.Amount    `json:"used"`
	HealthFactor    types.BPS       `json:"health_factor"`
	Score           uint32          `json:"score"`
	BillingCycleDay uint8           `json:"billing_cycle_day"`
	Status          Status          `json:"status"`
}

// NewAccount returns a fresh account for owner with zero limit.
func NewAccount(owner types.Principal, now time.Time) *Account {
	return &Account{
		Entity:          types.NewEntity(now),
		ID:              id.AccountFor(string(owner)),
		Owner:           owner,
		HealthFactor:    DefaultHealthFactor,
		BillingCycleDay: DefaultBillingCycleDay,
		Status:          StatusActive,
	}
}

// Available returns the unused portion of the limit.
func (a *Account) Available() types.Amount {
	return a.Limit.SubFloor(a.Used)
}

// Status is the lifecycle state of an account.
type Status string

const (
	StatusActive     Status = "active"
	StatusSoftFrozen Status = "soft_frozen"
	StatusHardFrozen Status = "hard_frozen"
)

// CanTransition reports whether an account may move from s to next.
// HardFrozen is terminal; a move to the current status is always allowed.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusActive:
		return next == StatusSoftFrozen || next == StatusHardFrozen
	case StatusSoftFrozen:
		return next == StatusActive || next == StatusHardFrozen
	default:
		return false
	}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusSoftFrozen, StatusHardFrozen:
		return true
	}
	return false
}

// RiskConfig holds the issuer-wide risk parameters. Only Admin may change it.
type RiskConfig struct {
	types.Entity
	ID                  id.RiskConfigID `json:"id"`
	MinHFForCharges     types.BPS       `json:"min_hf_for_charges"`
	MinHFForWithdraw    types.BPS       `json:"min_hf_for_withdraw"`
	PenaltyRateDailyBps types.BPS       `json:"penalty_rate_daily_bps"`
	LateFeeBps          types.BPS       `json:"late_fee_bps"`
	GraceVolatileDays   uint8           `json:"grace_volatile_days"`
	GraceAnyDays        uint8           `json:"grace_any_days"`
	MinPaymentBps       types.BPS       `json:"min_payment_bps"`
	Admin               types.Principal `json:"admin"`
}

// RiskParams are the admin-supplied values of a RiskConfig.
type RiskParams struct {
	MinHFForCharges     types.BPS `json:"min_hf_for_charges" yaml:"min_hf_for_charges"`
	MinHFForWithdraw    types.BPS `json:"min_hf_for_withdraw" yaml:"min_hf_for_withdraw"`
	PenaltyRateDailyBps types.BPS `json:"penalty_rate_daily_bps" yaml:"penalty_rate_daily_bps"`
	LateFeeBps          types.BPS `json:"late_fee_bps" yaml:"late_fee_bps"`
	GraceVolatileDays   uint8     `json:"grace_volatile_days" yaml:"grace_volatile_days"`
	GraceAnyDays        uint8     `json:"grace_any_days" yaml:"grace_any_days"`
	MinPaymentBps       types.BPS `json:"min_payment_bps" yaml:"min_payment_bps"`
}

// Apply copies p onto c. A zero MinPaymentBps keeps the default.
func (c *RiskConfig) Apply(p RiskParams) {
	c.MinHFForCharges = p.MinHFForCharges
	c.MinHFForWithdraw = p.MinHFForWithdraw
	c.PenaltyRateDailyBps = p.PenaltyRateDailyBps
	c.LateFeeBps = p.LateFeeBps
	c.GraceVolatileDays = p.GraceVolatileDays
	c.GraceAnyDays = p.GraceAnyDays
	c.MinPaymentBps = p.MinPaymentBps
	if c.MinPaymentBps == 0 {
		c.MinPaymentBps = DefaultMinPaymentBps
	}
}

// IsAdmin reports whether signer holds the admin capability.
func (c *RiskConfig) IsAdmin(signer types.Principal) bool {
	return !signer.IsZero() && signer == c.Admin
}

// Statement is the result of closing one billing cycle for an owner.
type Statement struct {
	types.Entity
	ID         id.StatementID  `json:"id"`
	Owner      types.Principal `json:"owner"`
	CycleID    types.CycleID   `json:"cycle_id"`
	TotalDue   types.Amount    `json:"total_due"`
	MinPayment types.Amount    `json:"min_payment"`
	DueDate    time.Time       `json:"due_date"`
	ClosedAt   time.Time       `json:"closed_at"`
}

// NextBillingDate returns the first calendar date strictly after t whose day
// of month equals day. Months too short for day roll to their last day.
func NextBillingDate(t time.Time, day uint8) time.Time {
	t = t.UTC()
	y, m, _ := t.Date()
	if candidate := billingDay(y, m, day); candidate.After(t) {
		return candidate
	}
	return billingDay(y, m+1, day)
}

func billingDay(y int, m time.Month, day uint8) time.Time {
	first := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	d := int(day)
	if d < 1 {
		d = 1
	}
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}

// Close computes the statement for acct at time now under cfg.
// MinPayment is rounded up and never exceeds TotalDue.
func Close(acct *Account, cfg *RiskConfig, cycle types.CycleID, now time.Time) *Statement {
	total := acct.Used
	minPay := total.MulBpsCeil(cfg.MinPaymentBps).Min(total)
	due := NextBillingDate(now, acct.BillingCycleDay).AddDate(0, 0, int(cfg.GraceAnyDays))

	return &Statement{
		Entity:     types.NewEntity(now),
		ID:         id.StatementFor(string(acct.Owner), cycle),
		Owner:      acct.Owner,
		CycleID:    cycle,
		TotalDue:   total,
		MinPayment: minPay,
		DueDate:    due,
		ClosedAt:   now.UTC(),
	}
}

// Package plugin provides an extensible plugin system for bnpl.
// Plugins hook into lifecycle and domain events to drive follow-up work
// (indexing, metrics, audit) without ever blocking or failing a step.
package plugin

import (
	"context"

	"github.com/xraph/bnpl/credit"
	"github.com/xraph/bnpl/note"
	"github.com/xraph/bnpl/pool"
	"github.com/xraph/bnpl/vault"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts. engine is the *bnpl.Engine.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Credit ledger hooks
// ──────────────────────────────────────────────────

// OnChargeAuthorized is called after a successful charge.
type OnChargeAuthorized interface {
	Plugin
	OnChargeAuthorized(ctx context.Context, ev credit.ChargeAuthorized) error
}

// OnPaymentPosted is called after a repayment.
type OnPaymentPosted interface {
	Plugin
	OnPaymentPosted(ctx context.Context, ev credit.PaymentPosted) error
}

// OnStatementClosed is called after a billing cycle is closed.
type OnStatementClosed interface {
	Plugin
	OnStatementClosed(ctx context.Context, ev credit.StatementClosed) error
}

// OnAccountStatusChanged is called when an account is frozen or unfrozen.
type OnAccountStatusChanged interface {
	Plugin
	OnAccountStatusChanged(ctx context.Context, ev credit.StatusChanged) error
}

// ──────────────────────────────────────────────────
// Note registry hooks
// ──────────────────────────────────────────────────

// OnNoteIssued is called after a note is minted.
type OnNoteIssued interface {
	Plugin
	OnNoteIssued(ctx context.Context, ev note.Issued) error
}

// OnNoteStatusChanged is called on every note transition.
type OnNoteStatusChanged interface {
	Plugin
	OnNoteStatusChanged(ctx context.Context, ev note.StatusChanged) error
}

// OnBeneficiaryAssigned is called when a note's beneficiary changes.
type OnBeneficiaryAssigned interface {
	Plugin
	OnBeneficiaryAssigned(ctx context.Context, ev note.BeneficiaryAssigned) error
}

// ──────────────────────────────────────────────────
// Collateral vault hooks
// ──────────────────────────────────────────────────

// OnPositionOpened is called after a position is opened.
type OnPositionOpened interface {
	Plugin
	OnPositionOpened(ctx context.Context, ev vault.PositionOpened) error
}

// OnCollateralDeposited is called after a deposit.
type OnCollateralDeposited interface {
	Plugin
	OnCollateralDeposited(ctx context.Context, ev vault.Deposited) error
}

// OnCollateralWithdrawn is called after a withdrawal.
type OnCollateralWithdrawn interface {
	Plugin
	OnCollateralWithdrawn(ctx context.Context, ev vault.Withdrawn) error
}

// OnCollateralLiquidated is called after a partial liquidation.
type OnCollateralLiquidated interface {
	Plugin
	OnCollateralLiquidated(ctx context.Context, ev vault.Liquidated) error
}

// ──────────────────────────────────────────────────
// Advance pool hooks
// ──────────────────────────────────────────────────

// OnAdvanced is called after the pool advances a note.
type OnAdvanced interface {
	Plugin
	OnAdvanced(ctx context.Context, ev pool.Advanced) error
}

// OnGuaranteeSettled is called after the reserve settles a note.
type OnGuaranteeSettled interface {
	Plugin
	OnGuaranteeSettled(ctx context.Context, ev pool.GuaranteeSettled) error
}

// OnReserveReplenished is called after the reserve is topped up.
type OnReserveReplenished interface {
	Plugin
	OnReserveReplenished(ctx context.Context, ev pool.ReserveReplenished) error
}

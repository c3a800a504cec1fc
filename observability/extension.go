// Package observability provides a metrics plugin for bnpl that records
// domain event counts and amounts through a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/bnpl/credit"
	"github.com/xraph/bnpl/note"
	"github.com/xraph/bnpl/plugin"
	"github.com/xraph/bnpl/pool"
	"github.com/xraph/bnpl/vault"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                 = (*MetricsExtension)(nil)
	_ plugin.OnChargeAuthorized     = (*MetricsExtension)(nil)
	_ plugin.OnPaymentPosted        = (*MetricsExtension)(nil)
	_ plugin.OnStatementClosed      = (*MetricsExtension)(nil)
	_ plugin.OnAccountStatusChanged = (*MetricsExtension)(nil)
	_ plugin.OnNoteIssued           = (*MetricsExtension)(nil)
	_ plugin.OnNoteStatusChanged    = (*MetricsExtension)(nil)
	_ plugin.OnBeneficiaryAssigned  = (*MetricsExtension)(nil)
	_ plugin.OnPositionOpened       = (*MetricsExtension)(nil)
	_ plugin.OnCollateralDeposited  = (*MetricsExtension)(nil)
	_ plugin.OnCollateralWithdrawn  = (*MetricsExtension)(nil)
	_ plugin.OnCollateralLiquidated = (*MetricsExtension)(nil)
	_ plugin.OnAdvanced             = (*MetricsExtension)(nil)
	_ plugin.OnGuaranteeSettled     = (*MetricsExtension)(nil)
	_ plugin.OnReserveReplenished   = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide domain metrics.
// Register it as a bnpl plugin to track credit and receivables activity.
type MetricsExtension struct {
	factory MetricFactory

	// Credit metrics
	ChargesAuthorized Counter
	ChargeAmount      Histogram
	PaymentsPosted    Counter
	PaymentApplied    Histogram
	StatementsClosed  Counter
	AccountsFrozen    Counter
	AccountsUnfrozen  Counter

	// Note metrics
	NotesIssued         Counter
	NotesPaid           Counter
	NotesDefaulted      Counter
	NoteTransitions     Counter
	BeneficiaryAssigned Counter
	NoteIssuedAmount    Histogram

	// Vault metrics
	PositionsOpened     Counter
	CollateralDeposited Counter
	CollateralWithdrawn Counter
	Liquidations        Counter
	LiquidationProceeds Histogram

	// Pool metrics
	NotesAdvanced        Counter
	AdvanceNet           Histogram
	GuaranteesSettled    Counter
	GuaranteePayout      Histogram
	ReserveReplenishment Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		ChargesAuthorized: factory.Counter("bnpl.credit.charges"),
		ChargeAmount:      factory.Histogram("bnpl.credit.charge.amount"),
		PaymentsPosted:    factory.Counter("bnpl.credit.payments"),
		PaymentApplied:    factory.Histogram("bnpl.credit.payment.applied"),
		StatementsClosed:  factory.Counter("bnpl.credit.statements.closed"),
		AccountsFrozen:    factory.Counter("bnpl.credit.accounts.frozen"),
		AccountsUnfrozen:  factory.Counter("bnpl.credit.accounts.unfrozen"),

		NotesIssued:         factory.Counter("bnpl.note.issued"),
		NotesPaid:           factory.Counter("bnpl.note.paid"),
		NotesDefaulted:      factory.Counter("bnpl.note.defaulted"),
		NoteTransitions:     factory.Counter("bnpl.note.transitions"),
		BeneficiaryAssigned: factory.Counter("bnpl.note.beneficiary.assigned"),
		NoteIssuedAmount:    factory.Histogram("bnpl.note.issued.amount"),

		PositionsOpened:     factory.Counter("bnpl.vault.positions.opened"),
		CollateralDeposited: factory.Counter("bnpl.vault.deposits"),
		CollateralWithdrawn: factory.Counter("bnpl.vault.withdrawals"),
		Liquidations:        factory.Counter("bnpl.vault.liquidations"),
		LiquidationProceeds: factory.Histogram("bnpl.vault.liquidation.proceeds"),

		NotesAdvanced:        factory.Counter("bnpl.pool.advances"),
		AdvanceNet:           factory.Histogram("bnpl.pool.advance.net"),
		GuaranteesSettled:    factory.Counter("bnpl.pool.guarantees.settled"),
		GuaranteePayout:      factory.Histogram("bnpl.pool.guarantee.payout"),
		ReserveReplenishment: factory.Counter("bnpl.pool.reserve.replenished"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ──────────────────────────────────────────────────
// Credit hooks
// ──────────────────────────────────────────────────

// OnChargeAuthorized implements plugin.OnChargeAuthorized.
func (m *MetricsExtension) OnChargeAuthorized(_ context.Context, ev credit.ChargeAuthorized) error {
	m.ChargesAuthorized.Inc()
	m.ChargeAmount.Observe(float64(ev.Amount))
	return nil
}

// OnPaymentPosted implements plugin.OnPaymentPosted.
func (m *MetricsExtension) OnPaymentPosted(_ context.Context, ev credit.PaymentPosted) error {
	m.PaymentsPosted.Inc()
	m.PaymentApplied.Observe(float64(ev.Applied))
	return nil
}

// OnStatementClosed implements plugin.OnStatementClosed.
func (m *MetricsExtension) OnStatementClosed(_ context.Context, _ credit.StatementClosed) error {
	m.StatementsClosed.Inc()
	return nil
}

// OnAccountStatusChanged implements plugin.OnAccountStatusChanged.
func (m *MetricsExtension) OnAccountStatusChanged(_ context.Context, ev credit.StatusChanged) error {
	if ev.To == credit.StatusActive {
		m.AccountsUnfrozen.Inc()
	} else {
		m.AccountsFrozen.Inc()
	}
	return nil
}

// ──────────────────────────────────────────────────
// Note hooks
// ──────────────────────────────────────────────────

// OnNoteIssued implements plugin.OnNoteIssued.
func (m *MetricsExtension) OnNoteIssued(_ context.Context, ev note.Issued) error {
	m.NotesIssued.Inc()
	m.NoteIssuedAmount.Observe(float64(ev.Amount))
	return nil
}

// OnNoteStatusChanged implements plugin.OnNoteStatusChanged.
func (m *MetricsExtension) OnNoteStatusChanged(_ context.Context, ev note.StatusChanged) error {
	m.NoteTransitions.Inc()
	switch ev.To {
	case note.StatusPaid:
		m.NotesPaid.Inc()
	case note.StatusDefaulted:
		m.NotesDefaulted.Inc()
	}
	return nil
}

// OnBeneficiaryAssigned implements plugin.OnBeneficiaryAssigned.
func (m *MetricsExtension) OnBeneficiaryAssigned(_ context.Context, _ note.BeneficiaryAssigned) error {
	m.BeneficiaryAssigned.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Vault hooks
// ──────────────────────────────────────────────────

// OnPositionOpened implements plugin.OnPositionOpened.
func (m *MetricsExtension) OnPositionOpened(_ context.Context, _ vault.PositionOpened) error {
	m.PositionsOpened.Inc()
	return nil
}

// OnCollateralDeposited implements plugin.OnCollateralDeposited.
func (m *MetricsExtension) OnCollateralDeposited(_ context.Context, _ vault.Deposited) error {
	m.CollateralDeposited.Inc()
	return nil
}

// OnCollateralWithdrawn implements plugin.OnCollateralWithdrawn.
func (m *MetricsExtension) OnCollateralWithdrawn(_ context.Context, _ vault.Withdrawn) error {
	m.CollateralWithdrawn.Inc()
	return nil
}

// OnCollateralLiquidated implements plugin.OnCollateralLiquidated.
func (m *MetricsExtension) OnCollateralLiquidated(_ context.Context, ev vault.Liquidated) error {
	m.Liquidations.Inc()
	m.LiquidationProceeds.Observe(float64(ev.Proceeds))
	return nil
}

// ──────────────────────────────────────────────────
// Pool hooks
// ──────────────────────────────────────────────────

// OnAdvanced implements plugin.OnAdvanced.
func (m *MetricsExtension) OnAdvanced(_ context.Context, ev pool.Advanced) error {
	m.NotesAdvanced.Inc()
	m.AdvanceNet.Observe(float64(ev.Net))
	return nil
}

// OnGuaranteeSettled implements plugin.OnGuaranteeSettled.
func (m *MetricsExtension) OnGuaranteeSettled(_ context.Context, ev pool.GuaranteeSettled) error {
	m.GuaranteesSettled.Inc()
	m.GuaranteePayout.Observe(float64(ev.Amount))
	return nil
}

// OnReserveReplenished implements plugin.OnReserveReplenished.
func (m *MetricsExtension) OnReserveReplenished(_ context.Context, ev pool.ReserveReplenished) error {
	m.ReserveReplenishment.Add(float64(ev.Amount))
	return nil
}

// Package audithook records every credit, note, collateral and pool event
// as an audit entry. The backend is any Recorder; RecorderFunc adapts a
// plain function, which is how a trail store or a test collects entries.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/bnpl/credit"
	"github.com/xraph/bnpl/note"
	"github.com/xraph/bnpl/plugin"
	"github.com/xraph/bnpl/pool"
	"github.com/xraph/bnpl/vault"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                 = (*Extension)(nil)
	_ plugin.OnChargeAuthorized     = (*Extension)(nil)
	_ plugin.OnPaymentPosted        = (*Extension)(nil)
	_ plugin.OnStatementClosed      = (*Extension)(nil)
	_ plugin.OnAccountStatusChanged = (*Extension)(nil)
	_ plugin.OnNoteIssued           = (*Extension)(nil)
	_ plugin.OnNoteStatusChanged    = (*Extension)(nil)
	_ plugin.OnBeneficiaryAssigned  = (*Extension)(nil)
	_ plugin.OnPositionOpened       = (*Extension)(nil)
	_ plugin.OnCollateralDeposited  = (*Extension)(nil)
	_ plugin.OnCollateralWithdrawn  = (*Extension)(nil)
	_ plugin.OnCollateralLiquidated = (*Extension)(nil)
	_ plugin.OnAdvanced             = (*Extension)(nil)
	_ plugin.OnGuaranteeSettled     = (*Extension)(nil)
	_ plugin.OnReserveReplenished   = (*Extension)(nil)
)

// Recorder persists audit entries.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one audit entry. ResourceID is the record's TypeID, or
// owner/asset for collateral positions.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges bnpl domain events to an audit trail backend.
type Extension struct {
	recorder    Recorder
	enabled     map[string]bool // nil = all enabled
	categories  map[string]bool // nil = all categories
	minSeverity int
	logger      *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Credit hooks
// ──────────────────────────────────────────────────

// OnChargeAuthorized implements plugin.OnChargeAuthorized.
func (e *Extension) OnChargeAuthorized(ctx context.Context, ev credit.ChargeAuthorized) error {
	return e.record(ctx, ActionChargeAuthorized, SeverityInfo, OutcomeSuccess,
		ResourceAccount, string(ev.Owner), CategoryCredit, nil,
		"order_id", ev.OrderID.String(),
		"amount", uint64(ev.Amount),
		"installments", ev.Installments,
	)
}

// OnPaymentPosted implements plugin.OnPaymentPosted.
func (e *Extension) OnPaymentPosted(ctx context.Context, ev credit.PaymentPosted) error {
	outcome := OutcomeSuccess
	if ev.Applied < ev.Amount {
		outcome = OutcomePartial
	}
	return e.record(ctx, ActionPaymentPosted, SeverityInfo, outcome,
		ResourceAccount, string(ev.Owner), CategoryCredit, nil,
		"amount", uint64(ev.Amount),
		"applied", uint64(ev.Applied),
		"used", uint64(ev.Used),
	)
}

// OnStatementClosed implements plugin.OnStatementClosed.
func (e *Extension) OnStatementClosed(ctx context.Context, ev credit.StatementClosed) error {
	return e.record(ctx, ActionStatementClosed, SeverityInfo, OutcomeSuccess,
		ResourceStatement, string(ev.Owner)+"/"+ev.CycleID.String(), CategoryCredit, nil,
		"total_due", uint64(ev.TotalDue),
		"min_payment", uint64(ev.MinPayment),
		"due_date", ev.DueDate,
	)
}

// OnAccountStatusChanged implements plugin.OnAccountStatusChanged.
func (e *Extension) OnAccountStatusChanged(ctx context.Context, ev credit.StatusChanged) error {
	action, severity := ActionAccountFrozen, SeverityWarning
	switch ev.To {
	case credit.StatusActive:
		action, severity = ActionAccountUnfrozen, SeverityInfo
	case credit.StatusHardFrozen:
		severity = SeverityCritical
	}
	return e.record(ctx, action, severity, OutcomeSuccess,
		ResourceAccount, string(ev.Owner), CategoryRisk, nil,
		"from", string(ev.From),
		"to", string(ev.To),
	)
}

// ──────────────────────────────────────────────────
// Note hooks
// ──────────────────────────────────────────────────

// OnNoteIssued implements plugin.OnNoteIssued.
func (e *Extension) OnNoteIssued(ctx context.Context, ev note.Issued) error {
	return e.record(ctx, ActionNoteIssued, SeverityInfo, OutcomeSuccess,
		ResourceNote, ev.NoteID.String(), CategoryReceivables, nil,
		"order_id", ev.OrderID.String(),
		"index", ev.Index,
		"buyer", string(ev.Buyer),
		"merchant", string(ev.Merchant),
		"amount", uint64(ev.Amount),
	)
}

// OnNoteStatusChanged implements plugin.OnNoteStatusChanged. Defaults are
// recorded under their own action.
func (e *Extension) OnNoteStatusChanged(ctx context.Context, ev note.StatusChanged) error {
	action, severity := ActionNoteStatusChanged, SeverityInfo
	if ev.To == note.StatusDefaulted {
		action, severity = ActionNoteDefaulted, SeverityWarning
	}
	return e.record(ctx, action, severity, OutcomeSuccess,
		ResourceNote, ev.NoteID.String(), CategoryReceivables, nil,
		"from", ev.From.String(),
		"to", ev.To.String(),
	)
}

// OnBeneficiaryAssigned implements plugin.OnBeneficiaryAssigned.
func (e *Extension) OnBeneficiaryAssigned(ctx context.Context, ev note.BeneficiaryAssigned) error {
	return e.record(ctx, ActionBeneficiaryAssigned, SeverityInfo, OutcomeSuccess,
		ResourceNote, ev.NoteID.String(), CategoryReceivables, nil,
		"from", string(ev.From),
		"to", string(ev.To),
	)
}

// ──────────────────────────────────────────────────
// Vault hooks
// ──────────────────────────────────────────────────

// OnPositionOpened implements plugin.OnPositionOpened.
func (e *Extension) OnPositionOpened(ctx context.Context, ev vault.PositionOpened) error {
	return e.record(ctx, ActionPositionOpened, SeverityInfo, OutcomeSuccess,
		ResourcePosition, positionKey(string(ev.Owner), ev.Asset), CategoryCollateral, nil,
		"ltv", uint32(ev.LTV),
		"valuation", uint64(ev.Valuation),
	)
}

// OnCollateralDeposited implements plugin.OnCollateralDeposited.
func (e *Extension) OnCollateralDeposited(ctx context.Context, ev vault.Deposited) error {
	return e.record(ctx, ActionCollateralDeposited, SeverityInfo, OutcomeSuccess,
		ResourcePosition, positionKey(string(ev.Owner), ev.Asset), CategoryCollateral, nil,
		"amount", uint64(ev.Amount),
		"total", uint64(ev.Total),
	)
}

// OnCollateralWithdrawn implements plugin.OnCollateralWithdrawn.
func (e *Extension) OnCollateralWithdrawn(ctx context.Context, ev vault.Withdrawn) error {
	return e.record(ctx, ActionCollateralWithdrawn, SeverityInfo, OutcomeSuccess,
		ResourcePosition, positionKey(string(ev.Owner), ev.Asset), CategoryCollateral, nil,
		"amount", uint64(ev.Amount),
		"total", uint64(ev.Total),
	)
}

// OnCollateralLiquidated implements plugin.OnCollateralLiquidated.
func (e *Extension) OnCollateralLiquidated(ctx context.Context, ev vault.Liquidated) error {
	return e.record(ctx, ActionCollateralLiquidated, SeverityWarning, OutcomeSuccess,
		ResourcePosition, positionKey(string(ev.Owner), ev.Asset), CategoryRisk, nil,
		"sold", uint64(ev.Sold),
		"proceeds", uint64(ev.Proceeds),
		"source", ev.Source,
	)
}

// ──────────────────────────────────────────────────
// Pool hooks
// ──────────────────────────────────────────────────

// OnAdvanced implements plugin.OnAdvanced.
func (e *Extension) OnAdvanced(ctx context.Context, ev pool.Advanced) error {
	return e.record(ctx, ActionNoteAdvanced, SeverityInfo, OutcomeSuccess,
		ResourceNote, ev.NoteID.String(), CategoryFunding, nil,
		"pool_id", ev.PoolID.String(),
		"payee", string(ev.Payee),
		"gross", uint64(ev.Gross),
		"discount", uint64(ev.Discount),
		"net", uint64(ev.Net),
	)
}

// OnGuaranteeSettled implements plugin.OnGuaranteeSettled.
func (e *Extension) OnGuaranteeSettled(ctx context.Context, ev pool.GuaranteeSettled) error {
	return e.record(ctx, ActionGuaranteeSettled, SeverityWarning, OutcomeSuccess,
		ResourceNote, ev.NoteID.String(), CategoryFunding, nil,
		"pool_id", ev.PoolID.String(),
		"payee", string(ev.Payee),
		"amount", uint64(ev.Amount),
		"reserve", uint64(ev.Reserve),
	)
}

// OnReserveReplenished implements plugin.OnReserveReplenished.
func (e *Extension) OnReserveReplenished(ctx context.Context, ev pool.ReserveReplenished) error {
	return e.record(ctx, ActionReserveReplenished, SeverityInfo, OutcomeSuccess,
		ResourcePool, ev.PoolID.String(), CategoryFunding, nil,
		"amount", uint64(ev.Amount),
		"reserve", uint64(ev.Reserve),
	)
}

func positionKey(owner, asset string) string { return owner + "/" + asset }

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}
	if e.categories != nil && !e.categories[category] {
		return nil
	}
	if severityRank(severity) < e.minSeverity {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}

package audithook

// Action constants for audit events.
const (
	// Credit actions
	ActionChargeAuthorized = "credit.charge_authorized"
	ActionPaymentPosted    = "credit.payment_posted"
	ActionStatementClosed  = "credit.statement_closed"
	ActionAccountFrozen    = "credit.account_frozen"
	ActionAccountUnfrozen  = "credit.account_unfrozen"

	// Note actions
	ActionNoteIssued          = "note.issued"
	ActionNoteStatusChanged   = "note.status_changed"
	ActionNoteDefaulted       = "note.defaulted"
	ActionBeneficiaryAssigned = "note.beneficiary_assigned"

	// Vault actions
	ActionPositionOpened       = "vault.position_opened"
	ActionCollateralDeposited  = "vault.deposited"
	ActionCollateralWithdrawn  = "vault.withdrawn"
	ActionCollateralLiquidated = "vault.liquidated"

	// Pool actions
	ActionNoteAdvanced       = "pool.advanced"
	ActionGuaranteeSettled   = "pool.guarantee_settled"
	ActionReserveReplenished = "pool.reserve_replenished"
)

// Resource constants for audit events.
const (
	ResourceAccount   = "account"
	ResourceStatement = "statement"
	ResourceNote      = "note"
	ResourcePosition  = "position"
	ResourcePool      = "pool"
)

// Category constants for audit events.
const (
	CategoryCredit      = "credit"
	CategoryRisk        = "risk"
	CategoryReceivables = "receivables"
	CategoryCollateral  = "collateral"
	CategoryFunding     = "funding"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)

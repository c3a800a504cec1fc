package credit

import (
	"time"

	"github.com/xraph/bnpl/types"
)

// ChargeAuthorized is emitted after a successful charge. It is the only
// authorization for minting the installment notes of the order.
type ChargeAuthorized struct {
	Owner        types.Principal `json:"owner"`
	Amount       types.Amount    `json:"amount"`
	Installments uint8           `json:"installments"`
	OrderID      types.OrderID   `json:"order_id"`
	At           time.Time       `json:"at"`
}

// PaymentPosted is emitted after a repayment.
type PaymentPosted struct {
	Owner   types.Principal `json:"owner"`
	Amount  types.Amount    `json:"amount"`
	Applied types.Amount    `json:"applied"`
	Used    types.Amount    `json:"used"`
	At      time.Time       `json:"at"`
}

// StatementClosed is emitted when a billing cycle is closed.
type StatementClosed struct {
	Owner      types.Principal `json:"owner"`
	CycleID    types.CycleID   `json:"cycle_id"`
	TotalDue   types.Amount    `json:"total_due"`
	MinPayment types.Amount    `json:"min_payment"`
	DueDate    time.Time       `json:"due_date"`
	At         time.Time       `json:"at"`
}

// StatusChanged is emitted when an account's status changes.
type StatusChanged struct {
	Owner types.Principal `json:"owner"`
	From  Status          `json:"from"`
	To    Status          `json:"to"`
	At    time.Time       `json:"at"`
}

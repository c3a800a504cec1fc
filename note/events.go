package note

import (
	"time"

	"github.com/xraph/bnpl/id"
	"github.com/xraph/bnpl/types"
)

// Issued is emitted when a note is minted.
type Issued struct {
	NoteID   id.NoteID       `json:"note_id"`
	OrderID  types.OrderID   `json:"order_id"`
	Index    uint8           `json:"index"`
	Buyer    types.Principal `json:"buyer"`
	Merchant types.Principal `json:"merchant"`
	Amount   types.Amount    `json:"amount"`
	DueAt    time.Time       `json:"due_at"`
}

// StatusChanged is emitted on every note status transition.
type StatusChanged struct {
	NoteID id.NoteID `json:"note_id"`
	From   Status    `json:"from"`
	To     Status    `json:"to"`
	At     time.Time `json:"at"`
}

// BeneficiaryAssigned is emitted when the right to a note's proceeds moves.
type BeneficiaryAssigned struct {
	NoteID id.NoteID       `json:"note_id"`
	From   types.Principal `json:"from"`
	To     types.Principal `json:"to"`
	At     time.Time       `json:"at"`
}

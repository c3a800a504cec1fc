package pool

import (
	"time"

	"github.com/xraph/bnpl/id"
	"github.com/xraph/bnpl/types"
)

// Advanced is emitted when the pool buys a note before maturity.
type Advanced struct {
	PoolID   id.PoolID       `json:"pool_id"`
	NoteID   id.NoteID       `json:"note_id"`
	Payee    types.Principal `json:"payee"`
	Gross    types.Amount    `json:"gross"`
	Discount types.Amount    `json:"discount"`
	Net      types.Amount    `json:"net"`
	At       time.Time       `json:"at"`
}

// GuaranteeSettled is emitted when the reserve pays out a guaranteed note.
type GuaranteeSettled struct {
	PoolID   id.PoolID       `json:"pool_id"`
	NoteID   id.NoteID       `json:"note_id"`
	Payee    types.Principal `json:"payee"`
	Amount   types.Amount    `json:"amount"`
	Reserve  types.Amount    `json:"reserve"`
	At       time.Time       `json:"at"`
}

// ReserveReplenished is emitted when the admin tops up the reserve.
type ReserveReplenished struct {
	PoolID  id.PoolID    `json:"pool_id"`
	Amount  types.Amount `json:"amount"`
	Reserve types.Amount `json:"reserve"`
	At      time.Time    `json:"at"`
}

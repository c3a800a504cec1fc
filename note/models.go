// Package note defines installment notes: one receivable per installment of
// an order, with a forward-only lifecycle.
package note

import (
	"fmt"
	"time"

	"github.com/xraph/bnpl/id"
	"github.com/xraph/bnpl/types"
)

// DueSoonWindow is how far ahead of its due time a note becomes due_upcoming.
const DueSoonWindow = 3 * 24 * time.Hour

// Note is a single installment obligation. Amount, OrderID and Index never
// change after issuance.
type Note struct {
	types.Entity
	ID          id.NoteID       `json:"id"`
	OrderID     types.OrderID   `json:"order_id"`
	Index       uint8           `json:"index"`
	Merchant    types.Principal `json:"merchant"`
	Beneficiary types.Principal `json:"beneficiary"`
	Buyer       types.Principal `json:"buyer"`
	Amount      types.Amount    `json:"amount"`
	DueAt       time.Time       `json:"due_at"`
	Status      Status          `json:"status"`
}

// New returns an issued note whose beneficiary is the merchant.
func New(orderID types.OrderID, index uint8, buyer, merchant types.Principal, amount types.Amount, dueAt, now time.Time) *Note {
	return &Note{
		Entity:      types.NewEntity(now),
		ID:          id.NoteFor(orderID, index),
		OrderID:     orderID,
		Index:       index,
		Merchant:    merchant,
		Beneficiary: merchant,
		Buyer:       buyer,
		Amount:      amount,
		DueAt:       dueAt.UTC(),
		Status:      StatusIssued,
	}
}

// Status is the lifecycle state of a note. Values are stable ordinals.
type Status uint8

const (
	StatusIssued Status = iota
	StatusAdvanced
	StatusDueUpcoming
	StatusDueToday
	StatusPaid
	StatusPastDue
	StatusDefaulted
	StatusSettled
)

var statusNames = [...]string{
	StatusIssued:      "issued",
	StatusAdvanced:    "advanced",
	StatusDueUpcoming: "due_upcoming",
	StatusDueToday:    "due_today",
	StatusPaid:        "paid",
	StatusPastDue:     "past_due",
	StatusDefaulted:   "defaulted",
	StatusSettled:     "settled",
}

// transitions lists the statuses reachable from each status.
var transitions = map[Status][]Status{
	StatusIssued:      {StatusAdvanced, StatusDueUpcoming, StatusDueToday, StatusPaid, StatusPastDue, StatusSettled},
	StatusAdvanced:    {StatusDueUpcoming, StatusDueToday, StatusPaid, StatusPastDue, StatusSettled},
	StatusDueUpcoming: {StatusDueToday, StatusPaid, StatusPastDue, StatusSettled},
	StatusDueToday:    {StatusPaid, StatusPastDue, StatusSettled},
	StatusPastDue:     {StatusPaid, StatusDefaulted, StatusSettled},
	StatusDefaulted:   {StatusSettled},
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// ParseStatus resolves a status name.
func ParseStatus(name string) (Status, error) {
	for i, n := range statusNames {
		if n == name {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("note: unknown status %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(data []byte) error {
	parsed, err := ParseStatus(string(data))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether a note may move from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// NextAged returns the next status a note reaches by the passage of time at
// now, and false when time alone does not move it. A note defaults once it
// has been past due for more than grace.
func (n *Note) NextAged(now time.Time, grace time.Duration) (Status, bool) {
	now = now.UTC()
	var target Status
	switch {
	case now.After(n.DueAt.Add(grace)) && n.Status == StatusPastDue:
		target = StatusDefaulted
	case now.After(n.DueAt):
		target = StatusPastDue
	case sameDay(now, n.DueAt):
		target = StatusDueToday
	case n.DueAt.Sub(now) <= DueSoonWindow:
		target = StatusDueUpcoming
	default:
		return n.Status, false
	}
	if target == n.Status || !n.Status.CanTransition(target) {
		return n.Status, false
	}
	return target, true
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Split divides total into n installment amounts that sum to total. The
// remainder of the even split goes to the last installment.
func Split(total types.Amount, n uint8) []types.Amount {
	if n == 0 {
		return nil
	}
	each := total / types.Amount(n)
	out := make([]types.Amount, n)
	for i := range out {
		out[i] = each
	}
	out[n-1] += total - each*types.Amount(n)
	return out
}

// Package custody defines the value-transfer collaborator that moves stable
// balances between custody accounts.
package custody

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/bnpl/types"
)

// Transferer moves amount from one custody account to another. A returned
// error aborts the step that requested the transfer.
type Transferer interface {
	Transfer(ctx context.Context, from, to types.Principal, amount types.Amount, memo string) error
}

// Noop accepts every transfer without moving anything.
type Noop struct{}

// Transfer implements Transferer.
func (Noop) Transfer(context.Context, types.Principal, types.Principal, types.Amount, string) error {
	return nil
}

// Entry is one recorded transfer.
type Entry struct {
	From   types.Principal `json:"from"`
	To     types.Principal `json:"to"`
	Amount types.Amount    `json:"amount"`
	Memo   string          `json:"memo"`
	At     time.Time       `json:"at"`
}

// Journal records transfers in memory.
type Journal struct {
	mu      sync.Mutex
	entries []Entry
}

// NewJournal returns an empty journal.
func NewJournal() *Journal { return &Journal{} }

// Transfer implements Transferer.
func (j *Journal) Transfer(_ context.Context, from, to types.Principal, amount types.Amount, memo string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, Entry{From: from, To: to, Amount: amount, Memo: memo, At: time.Now().UTC()})
	return nil
}

// Entries returns a copy of the recorded transfers.
func (j *Journal) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Entry, len(j.entries))
	copy(out, j.entries)
	return out
}

// Balance returns the net amount received by account. It is negative when the
// account sent more than it received.
func (j *Journal) Balance(account types.Principal) int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	var bal int64
	for _, e := range j.entries {
		if e.To == account {
			bal += int64(e.Amount)
		}
		if e.From == account {
			bal -= int64(e.Amount)
		}
	}
	return bal
}

package note

import (
	"context"

	"github.com/xraph/bnpl/id"
	"github.com/xraph/bnpl/types"
)

// Store persists notes.
type Store interface {
	CreateNote(ctx context.Context, n *Note) error
	GetNote(ctx context.Context, noteID id.NoteID) (*Note, error)
	UpdateNote(ctx context.Context, n *Note) error
	ListNotes(ctx context.Context, opts ListOpts) ([]*Note, error)
}

// ListOpts filters note listings. Zero values match everything.
type ListOpts struct {
	OrderID     *types.OrderID
	Buyer       types.Principal
	Beneficiary types.Principal
	Statuses    []Status
	Limit       int
	Offset      int
}

// Matches reports whether n passes the filter.
func (o ListOpts) Matches(n *Note) bool {
	if o.OrderID != nil && n.OrderID != *o.OrderID {
		return false
	}
	if o.Buyer != "" && n.Buyer != o.Buyer {
		return false
	}
	if o.Beneficiary != "" && n.Beneficiary != o.Beneficiary {
		return false
	}
	if len(o.Statuses) == 0 {
		return true
	}
	for _, s := range o.Statuses {
		if n.Status == s {
			return true
		}
	}
	return false
}

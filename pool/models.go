// Package pool defines the advance pool: a custody account that buys notes
// early at a discount and guarantees settlement from a reserve.
package pool

import (
	"time"

	"github.com/xraph/bnpl/id"
	"github.com/xraph/bnpl/note"
	"github.com/xraph/bnpl/types"
)

// Pool holds the guarantee reserve. Its own identity is the principal that
// becomes a note's beneficiary after an advance or settlement.
type Pool struct {
	types.Entity
	ID               id.PoolID       `json:"id"`
	Custody          string          `json:"custody"`
	GuaranteeReserve types.Amount    `json:"guarantee_reserve"`
	Admin            types.Principal `json:"admin"`
}

// New returns a pool with an empty reserve.
func New(admin types.Principal, custody string, now time.Time) *Pool {
	return &Pool{
		Entity:  types.NewEntity(now),
		ID:      id.PoolFor(string(admin)),
		Custody: custody,
		Admin:   admin,
	}
}

// Principal is the identity the pool holds notes under.
func (p *Pool) Principal() types.Principal {
	return types.Principal(p.ID.String())
}

// IsAdmin reports whether signer administers the pool.
func (p *Pool) IsAdmin(signer types.Principal) bool {
	return !signer.IsZero() && signer == p.Admin
}

// DiscountPolicy prices an advance: the discount withheld from the merchant
// when the pool buys n at time now.
type DiscountPolicy interface {
	Discount(n *note.Note, now time.Time) types.Amount
}

// DiscountFunc adapts a function to DiscountPolicy.
type DiscountFunc func(n *note.Note, now time.Time) types.Amount

// Discount implements DiscountPolicy.
func (f DiscountFunc) Discount(n *note.Note, now time.Time) types.Amount { return f(n, now) }

// NoDiscount advances notes at face value.
var NoDiscount DiscountPolicy = DiscountFunc(func(*note.Note, time.Time) types.Amount { return 0 })

// FlatDiscount withholds a fixed share of the note amount.
func FlatDiscount(rate types.BPS) DiscountPolicy {
	return DiscountFunc(func(n *note.Note, _ time.Time) types.Amount {
		return n.Amount.MulBps(rate)
	})
}

// DailyDiscount withholds rate per day remaining until the note is due, so
// notes closer to maturity are bought nearer face value.
func DailyDiscount(rate types.BPS) DiscountPolicy {
	return DiscountFunc(func(n *note.Note, now time.Time) types.Amount {
		days := int64(n.DueAt.Sub(now) / (24 * time.Hour))
		if days <= 0 {
			return 0
		}
		d, err := n.Amount.MulBps(rate).MulDiv(uint64(days), 1)
		if err != nil || d > n.Amount {
			return n.Amount
		}
		return d
	})
}

package pool_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/xraph/bnpl/id"
	"github.com/xraph/bnpl/note"
	"github.com/xraph/bnpl/pool"
	"github.com/xraph/bnpl/types"
)

func TestNewPool(t *testing.T) {
	p := pool.New("treasury", "custody-1", time.Now())
	assert.Equal(t, id.PoolFor("treasury"), p.ID)
	assert.True(t, p.GuaranteeReserve.IsZero())
	assert.Equal(t, types.Principal(p.ID.String()), p.Principal())
	assert.True(t, p.IsAdmin("treasury"))
	assert.False(t, p.IsAdmin("merchant"))
}

func TestDiscountPolicies(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	n := &note.Note{Amount: 10_000, DueAt: now.AddDate(0, 0, 30)}

	assert.Equal(t, types.Amount(0), pool.NoDiscount.Discount(n, now))
	assert.Equal(t, types.Amount(200), pool.FlatDiscount(200).Discount(n, now))
	// 10000 × 5bps = 5 per day, 30 days
	assert.Equal(t, types.Amount(150), pool.DailyDiscount(5).Discount(n, now))
	assert.Equal(t, types.Amount(0), pool.DailyDiscount(5).Discount(n, n.DueAt.Add(time.Hour)))
	assert.Equal(t, n.Amount, pool.DailyDiscount(10000).Discount(n, now))
}

package bnpl_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/bnpl"
	"github.com/xraph/bnpl/note"
	"github.com/xraph/bnpl/pool"
	"github.com/xraph/bnpl/store/memory"
	"github.com/xraph/bnpl/types"
)

const poolCustody = "pool-custody"

func (f *fixture) initPool(t *testing.T) *pool.Pool {
	t.Helper()
	p, err := f.engine.InitPool(context.Background(), treasury, poolCustody)
	require.NoError(t, err)
	return p
}

func TestAdvanceWithDiscount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, bnpl.WithDiscountPolicy(pool.FlatDiscount(200)))
	p := f.initPool(t)
	n := f.mint(t, "ADV", 0, 1000, 30*24*time.Hour)

	_, err := f.engine.Advance(ctx, merchant, p.ID, n.ID)
	assert.ErrorIs(t, err, bnpl.ErrUnauthorized)

	got, err := f.engine.Advance(ctx, treasury, p.ID, n.ID)
	require.NoError(t, err)
	assert.Equal(t, note.StatusAdvanced, got.Status)
	assert.Equal(t, p.Principal(), got.Beneficiary)

	assert.Equal(t, int64(980), f.journal.Balance(merchant))
	assert.Equal(t, int64(-980), f.journal.Balance(poolCustody))

	require.Len(t, f.events.advanced, 1)
	ev := f.events.advanced[0]
	assert.Equal(t, merchant, ev.Payee)
	assert.Equal(t, types.Amount(1000), ev.Gross)
	assert.Equal(t, types.Amount(20), ev.Discount)
	assert.Equal(t, types.Amount(980), ev.Net)

	_, err = f.engine.Advance(ctx, treasury, p.ID, n.ID)
	assert.ErrorIs(t, err, bnpl.ErrInvalidTransition)

	// The pool collects: it marks the advanced note paid.
	paid, err := f.engine.MarkPaid(ctx, p.Principal(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, note.StatusPaid, paid.Status)
}

func TestAdvancePaysCurrentBeneficiary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.initPool(t)
	n := f.mint(t, "ADV", 0, 500, 30*24*time.Hour)

	_, err := f.engine.AssignBeneficiary(ctx, merchant, n.ID, bob)
	require.NoError(t, err)

	_, err = f.engine.Advance(ctx, treasury, p.ID, n.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), f.journal.Balance(bob))
	assert.Equal(t, int64(0), f.journal.Balance(merchant))
}

func TestReplenishReserve(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.initPool(t)

	_, err := f.engine.ReplenishReserve(ctx, bob, p.ID, 100)
	assert.ErrorIs(t, err, bnpl.ErrUnauthorized)

	var last types.Amount
	for _, amt := range []types.Amount{100, 0, 250} {
		got, err := f.engine.ReplenishReserve(ctx, treasury, p.ID, amt)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got.GuaranteeReserve, last)
		last = got.GuaranteeReserve
	}
	assert.Equal(t, types.Amount(350), last)
	assert.Equal(t, int64(350), f.journal.Balance(poolCustody))
	assert.Len(t, f.events.replenished, 3)
}

func TestGuaranteeSettle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.initPool(t)
	n := f.mint(t, "GS", 0, 400, 24*time.Hour)

	_, err := f.engine.GuaranteeSettle(ctx, treasury, p.ID, n.ID)
	assert.ErrorIs(t, err, bnpl.ErrInsufficientReserve)
	assert.True(t, bnpl.IsCapacity(err))

	_, err = f.engine.ReplenishReserve(ctx, treasury, p.ID, 1000)
	require.NoError(t, err)

	f.clock.Advance(40 * 24 * time.Hour)
	_, err = f.engine.AgeNote(ctx, n.ID)
	require.NoError(t, err)

	got, err := f.engine.GuaranteeSettle(ctx, treasury, p.ID, n.ID)
	require.NoError(t, err)
	assert.Equal(t, note.StatusSettled, got.Status)
	assert.Equal(t, p.Principal(), got.Beneficiary)

	after, err := f.engine.GetPool(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(600), after.GuaranteeReserve)
	assert.Equal(t, int64(400), f.journal.Balance(merchant))

	require.Len(t, f.events.settled, 1)
	assert.Equal(t, merchant, f.events.settled[0].Payee)
	assert.Equal(t, types.Amount(600), f.events.settled[0].Reserve)

	_, err = f.engine.GuaranteeSettle(ctx, treasury, p.ID, n.ID)
	assert.ErrorIs(t, err, bnpl.ErrInvalidTransition)
}

func TestGuaranteeSettleAdvancedNote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.initPool(t)
	n := f.mint(t, "GA", 0, 300, 24*time.Hour)

	_, err := f.engine.ReplenishReserve(ctx, treasury, p.ID, 300)
	require.NoError(t, err)
	_, err = f.engine.Advance(ctx, treasury, p.ID, n.ID)
	require.NoError(t, err)

	before := len(f.journal.Entries())
	_, err = f.engine.GuaranteeSettle(ctx, treasury, p.ID, n.ID)
	require.NoError(t, err)

	// The pool already holds the note, so nothing is paid out.
	assert.Len(t, f.journal.Entries(), before)
	assert.Len(t, f.events.assigned, 1)
}

func TestPoolNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	n := f.mint(t, "NF", 0, 100, time.Hour)

	_, err := f.engine.Advance(ctx, treasury, pool.New(treasury, poolCustody, f.clock.Now()).ID, n.ID)
	assert.ErrorIs(t, err, bnpl.ErrPoolNotFound)
	assert.True(t, bnpl.IsNotFound(err))
}

func TestPoolStoreFailureReversesTransfers(t *testing.T) {
	ctx := context.Background()
	fs := &flakyStore{Store: memory.New()}
	f := newFixtureOn(t, fs)
	p := f.initPool(t)
	n := f.mint(t, "FS", 0, 300, 24*time.Hour)

	_, err := f.engine.ReplenishReserve(ctx, treasury, p.ID, 1000)
	require.NoError(t, err)

	fs.down.Store(true)
	_, err = f.engine.ReplenishReserve(ctx, treasury, p.ID, 500)
	assert.ErrorIs(t, err, errStoreDown)
	_, err = f.engine.Advance(ctx, treasury, p.ID, n.ID)
	assert.ErrorIs(t, err, errStoreDown)
	_, err = f.engine.GuaranteeSettle(ctx, treasury, p.ID, n.ID)
	assert.ErrorIs(t, err, errStoreDown)
	fs.down.Store(false)

	assert.Equal(t, int64(1000), f.journal.Balance(poolCustody))
	assert.Equal(t, int64(-1000), f.journal.Balance(treasury))
	assert.Equal(t, int64(0), f.journal.Balance(merchant))

	after, err := f.engine.GetPool(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(1000), after.GuaranteeReserve)
	got, err := f.engine.GetNote(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, note.StatusIssued, got.Status)
	assert.Equal(t, merchant, got.Beneficiary)
	assert.Empty(t, f.events.advanced)
	assert.Empty(t, f.events.settled)
}

package oracle_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/bnpl/oracle"
	"github.com/xraph/bnpl/types"
)

func TestPriceFresh(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := oracle.Price{Value: decimal.NewFromInt(2), PublishedAt: now.Add(-30 * time.Second)}

	assert.True(t, p.Fresh(now, time.Minute))
	assert.False(t, p.Fresh(now, 10*time.Second))
	assert.False(t, oracle.Price{PublishedAt: now}.Fresh(now, time.Minute))
}

func TestUnitsFor(t *testing.T) {
	p := oracle.Price{Asset: "sol", Value: decimal.NewFromInt(3)}

	units, err := p.UnitsFor(10)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(4), units)

	value, err := p.ValueOf(units)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(12), value)

	_, err = oracle.Price{}.UnitsFor(10)
	assert.Error(t, err)
}

func TestBoardAndSwapper(t *testing.T) {
	ctx := context.Background()
	b := oracle.NewBoard()

	_, err := b.Price(ctx, "pyth", "sol")
	assert.ErrorIs(t, err, oracle.ErrNoPrice)

	b.Publish(oracle.Price{Source: "pyth", Asset: "sol", Value: decimal.NewFromInt(5), PublishedAt: time.Now()})
	p, err := b.Price(ctx, "pyth", "sol")
	require.NoError(t, err)
	assert.True(t, p.Value.Equal(decimal.NewFromInt(5)))

	s := &oracle.BoardSwapper{Board: b, Source: "pyth", Haircut: 100}
	proceeds, err := s.Sell(ctx, "alice", "sol", 100, 495)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(495), proceeds)

	proceeds, err = s.Sell(ctx, "alice", "sol", 100, 496)
	assert.ErrorIs(t, err, oracle.ErrBelowMinimum)
	assert.Zero(t, proceeds)
}

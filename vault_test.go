package bnpl_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/bnpl"
	"github.com/xraph/bnpl/oracle"
	"github.com/xraph/bnpl/store"
	"github.com/xraph/bnpl/store/memory"
	"github.com/xraph/bnpl/types"
	"github.com/xraph/bnpl/vault"
)

func TestScenarioC_DepositWithdraw(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.engine.OpenPosition(ctx, alice, "sol", 5000, 1000)
	require.NoError(t, err)

	pos, err := f.engine.Deposit(ctx, alice, alice, "sol", 200, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(200), pos.Amount)

	_, err = f.engine.Withdraw(ctx, alice, alice, "sol", 300)
	assert.ErrorIs(t, err, bnpl.ErrInsufficientAmount)

	pos, err = f.engine.Withdraw(ctx, alice, alice, "sol", 200)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(0), pos.Amount)

	assert.Equal(t, int64(0), f.journal.Balance(alice))
	assert.Equal(t, int64(0), f.journal.Balance(bnpl.DefaultVaultCustody))
	require.Len(t, f.events.deposits, 1)
	require.Len(t, f.events.withdrawals, 1)
	assert.Equal(t, types.Amount(0), f.events.withdrawals[0].Total)
}

func TestDepositRequiresOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.engine.OpenPosition(ctx, alice, "sol", 5000, 1000)
	require.NoError(t, err)

	_, err = f.engine.Deposit(ctx, bob, alice, "sol", 200, nil, nil)
	assert.ErrorIs(t, err, bnpl.ErrUnauthorized)
	_, err = f.engine.Withdraw(ctx, bob, alice, "sol", 0)
	assert.ErrorIs(t, err, bnpl.ErrUnauthorized)
	assert.Empty(t, f.journal.Entries())
}

func TestDepositRevalues(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.engine.OpenPosition(ctx, alice, "sol", 5000, 1000)
	require.NoError(t, err)

	valuation := types.Amount(3000)
	ltv := types.BPS(6000)
	pos, err := f.engine.Deposit(ctx, alice, alice, "sol", 100, &valuation, &ltv)
	require.NoError(t, err)
	assert.Equal(t, valuation, pos.Valuation)
	assert.Equal(t, ltv, pos.LTV)
	assert.Equal(t, types.Amount(1800), pos.BorrowingPower())

	bad := types.BPS(10001)
	_, err = f.engine.Deposit(ctx, alice, alice, "sol", 100, nil, &bad)
	assert.ErrorIs(t, err, bnpl.ErrInvalidInput)
}

func TestWithdrawHealthFactorGate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.openWithLimit(t, alice, 1000)

	_, err := f.engine.OpenPosition(ctx, alice, "sol", 5000, 2000)
	require.NoError(t, err)
	_, err = f.engine.Deposit(ctx, alice, alice, "sol", 1000, nil, nil)
	require.NoError(t, err)
	_, err = f.engine.Charge(ctx, alice, alice, 400, 2, bnpl.NewOrderID("W"))
	require.NoError(t, err)

	// Withdrawing half halves the valuation: power 500 against 400 used.
	_, err = f.engine.Withdraw(ctx, alice, alice, "sol", 500)
	assert.ErrorIs(t, err, bnpl.ErrHfTooLowForWithdraw)
	assert.True(t, bnpl.IsRiskGate(err))

	pos, err := f.engine.GetPosition(ctx, alice, "sol")
	require.NoError(t, err)
	assert.Equal(t, types.Amount(1000), pos.Amount)

	pos, err = f.engine.Withdraw(ctx, alice, alice, "sol", 200)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(800), pos.Amount)
	assert.Equal(t, types.Amount(1600), pos.Valuation)

	hf, err := f.engine.HealthFactor(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, types.BPS(20000), hf)
}

func TestVaultStoreFailureReversesTransfers(t *testing.T) {
	ctx := context.Background()
	fs := &flakyStore{Store: memory.New()}
	f := newFixtureOn(t, fs)

	_, err := f.engine.OpenPosition(ctx, alice, "sol", 5000, 1000)
	require.NoError(t, err)
	_, err = f.engine.Deposit(ctx, alice, alice, "sol", 200, nil, nil)
	require.NoError(t, err)

	fs.down.Store(true)
	_, err = f.engine.Deposit(ctx, alice, alice, "sol", 100, nil, nil)
	assert.ErrorIs(t, err, errStoreDown)
	_, err = f.engine.Withdraw(ctx, alice, alice, "sol", 50)
	assert.ErrorIs(t, err, errStoreDown)
	fs.down.Store(false)

	assert.Equal(t, int64(-200), f.journal.Balance(alice))
	assert.Equal(t, int64(200), f.journal.Balance(bnpl.DefaultVaultCustody))
	pos, err := f.engine.GetPosition(ctx, alice, "sol")
	require.NoError(t, err)
	assert.Equal(t, types.Amount(200), pos.Amount)
	assert.Len(t, f.events.deposits, 1)
	assert.Empty(t, f.events.withdrawals)
}

// gatedStore parks the first ListPositions call made after arm until release
// is closed.
type gatedStore struct {
	store.Store
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (s *gatedStore) arm() {
	s.entered = make(chan struct{})
	s.release = make(chan struct{})
	s.armed.Store(true)
}

func (s *gatedStore) ListPositions(ctx context.Context, owner types.Principal) ([]*vault.Position, error) {
	if s.armed.CompareAndSwap(true, false) {
		close(s.entered)
		<-s.release
	}
	return s.Store.ListPositions(ctx, owner)
}

func TestWithdrawHoldsAccountAgainstCharge(t *testing.T) {
	ctx := context.Background()
	gs := &gatedStore{Store: memory.New()}
	f := newFixtureOn(t, gs)
	f.openWithLimit(t, alice, 1000)

	_, err := f.engine.OpenPosition(ctx, alice, "sol", 5000, 2000)
	require.NoError(t, err)
	_, err = f.engine.Deposit(ctx, alice, alice, "sol", 1000, nil, nil)
	require.NoError(t, err)
	_, err = f.engine.Charge(ctx, alice, alice, 100, 1, bnpl.NewOrderID("G1"))
	require.NoError(t, err)

	gs.arm()
	withdrawn := make(chan error, 1)
	go func() {
		_, err := f.engine.Withdraw(ctx, alice, alice, "sol", 100)
		withdrawn <- err
	}()
	<-gs.entered

	charged := make(chan error, 1)
	go func() {
		_, err := f.engine.Charge(ctx, alice, alice, 100, 1, bnpl.NewOrderID("G2"))
		charged <- err
	}()

	select {
	case <-charged:
		t.Fatal("charge completed while the withdraw gate was evaluating")
	case <-time.After(50 * time.Millisecond):
	}

	close(gs.release)
	require.NoError(t, <-withdrawn)
	require.NoError(t, <-charged)

	acct, err := f.engine.GetAccount(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(200), acct.Used)
}

// liquidationFixture sets up alice with 10 SOL of collateral priced at 20
// by both oracles and the swap venue.
func liquidationFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.engine.InitVaultConfig(ctx, issuer, "pyth", "switchboard")
	require.NoError(t, err)
	_, err = f.engine.OpenPosition(ctx, alice, "sol", 5000, types.Units(200))
	require.NoError(t, err)
	_, err = f.engine.Deposit(ctx, alice, alice, "sol", types.Units(10), nil, nil)
	require.NoError(t, err)

	for _, source := range []string{"pyth", "switchboard", "dex"} {
		f.publish(source, 20, f.clock.Now())
	}
	return f
}

func (f *fixture) publish(source string, price int64, at time.Time) {
	f.board.Publish(oracle.Price{
		Source:      source,
		Asset:       "sol",
		Value:       decimal.NewFromInt(price),
		PublishedAt: at,
	})
}

func TestLiquidatePartial(t *testing.T) {
	ctx := context.Background()
	f := liquidationFixture(t)

	_, err := f.engine.LiquidatePartial(ctx, alice, alice, "sol", types.Units(50))
	assert.ErrorIs(t, err, bnpl.ErrUnauthorized)

	pos, err := f.engine.LiquidatePartial(ctx, issuer, alice, "sol", types.Units(50))
	require.NoError(t, err)
	assert.Equal(t, types.Amount(7_500_000), pos.Amount)
	assert.Equal(t, types.Units(150), pos.Valuation)

	require.Len(t, f.events.liquidated, 1)
	ev := f.events.liquidated[0]
	assert.Equal(t, types.Amount(2_500_000), ev.Sold)
	assert.Equal(t, types.Units(50), ev.Proceeds)
	assert.Equal(t, "pyth", ev.Source)
}

func TestLiquidateCapsAtPosition(t *testing.T) {
	ctx := context.Background()
	f := liquidationFixture(t)

	pos, err := f.engine.LiquidatePartial(ctx, issuer, alice, "sol", types.Units(1000))
	require.NoError(t, err)
	assert.Equal(t, types.Amount(0), pos.Amount)
	assert.Equal(t, types.Units(200), f.events.liquidated[0].Proceeds)

	_, err = f.engine.LiquidatePartial(ctx, issuer, alice, "sol", types.Units(1))
	assert.ErrorIs(t, err, bnpl.ErrInsufficientAmount)
}

func TestLiquidateFallsBackOnStalePrimary(t *testing.T) {
	ctx := context.Background()
	f := liquidationFixture(t)

	f.clock.Advance(2 * vault.DefaultOracleMaxAge)
	f.publish("switchboard", 20, f.clock.Now())
	f.publish("dex", 20, f.clock.Now())

	_, err := f.engine.LiquidatePartial(ctx, issuer, alice, "sol", types.Units(50))
	require.NoError(t, err)
	assert.Equal(t, "switchboard", f.events.liquidated[0].Source)
}

func TestLiquidateStaleOracle(t *testing.T) {
	ctx := context.Background()
	f := liquidationFixture(t)

	f.clock.Advance(2 * vault.DefaultOracleMaxAge)

	_, err := f.engine.LiquidatePartial(ctx, issuer, alice, "sol", types.Units(50))
	assert.ErrorIs(t, err, bnpl.ErrOracleStale)
	assert.True(t, bnpl.IsRetryable(err))

	pos, err := f.engine.GetPosition(ctx, alice, "sol")
	require.NoError(t, err)
	assert.Equal(t, types.Units(10), pos.Amount)
	assert.Empty(t, f.events.liquidated)
}

func TestLiquidateSlippage(t *testing.T) {
	ctx := context.Background()
	f := liquidationFixture(t)
	f.swapper.Haircut = 200

	_, err := f.engine.LiquidatePartial(ctx, issuer, alice, "sol", types.Units(50))
	assert.ErrorIs(t, err, bnpl.ErrSlippageExceeded)

	slippage := types.BPS(300)
	_, err = f.engine.UpdateVaultConfig(ctx, issuer, bnpl.VaultParams{SlippageMax: &slippage})
	require.NoError(t, err)

	_, err = f.engine.LiquidatePartial(ctx, issuer, alice, "sol", types.Units(50))
	require.NoError(t, err)
	assert.Equal(t, types.Units(49), f.events.liquidated[0].Proceeds)
}

// recordingSwapper counts the units its venue actually filled.
type recordingSwapper struct {
	venue *oracle.BoardSwapper
	sold  types.Amount
}

func (r *recordingSwapper) Sell(ctx context.Context, owner types.Principal, asset string, units, minOut types.Amount) (types.Amount, error) {
	proceeds, err := r.venue.Sell(ctx, owner, asset, units, minOut)
	if err != nil {
		return 0, err
	}
	r.sold += units
	return proceeds, nil
}

func TestLiquidateSlippageSellsNothing(t *testing.T) {
	ctx := context.Background()
	rec := &recordingSwapper{}
	f := newFixture(t, bnpl.WithSwapper(rec))
	rec.venue = &oracle.BoardSwapper{Board: f.board, Source: "dex", Haircut: 200}

	_, err := f.engine.InitVaultConfig(ctx, issuer, "pyth", "switchboard")
	require.NoError(t, err)
	_, err = f.engine.OpenPosition(ctx, alice, "sol", 5000, types.Units(200))
	require.NoError(t, err)
	_, err = f.engine.Deposit(ctx, alice, alice, "sol", types.Units(10), nil, nil)
	require.NoError(t, err)
	for _, source := range []string{"pyth", "switchboard", "dex"} {
		f.publish(source, 20, f.clock.Now())
	}

	_, err = f.engine.LiquidatePartial(ctx, issuer, alice, "sol", types.Units(50))
	assert.ErrorIs(t, err, bnpl.ErrSlippageExceeded)
	assert.ErrorIs(t, err, oracle.ErrBelowMinimum)

	assert.Zero(t, rec.sold)
	pos, err := f.engine.GetPosition(ctx, alice, "sol")
	require.NoError(t, err)
	assert.Equal(t, types.Units(10), pos.Amount)
	assert.Empty(t, f.events.liquidated)
}

func TestUpdateVaultConfig(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.engine.InitVaultConfig(ctx, issuer, "pyth", "")
	require.NoError(t, err)

	fallback := "switchboard"
	_, err = f.engine.UpdateVaultConfig(ctx, bob, bnpl.VaultParams{OracleFallback: &fallback})
	assert.ErrorIs(t, err, bnpl.ErrUnauthorized)

	age := 30 * time.Second
	cfg, err := f.engine.UpdateVaultConfig(ctx, issuer, bnpl.VaultParams{OracleFallback: &fallback, OracleMaxAge: &age})
	require.NoError(t, err)
	assert.Equal(t, "pyth", cfg.OraclePrimary)
	assert.Equal(t, fallback, cfg.OracleFallback)
	assert.Equal(t, age, cfg.OracleMaxAge)
	assert.Equal(t, vault.DefaultSlippageMax, cfg.SlippageMax)

	zero := time.Duration(0)
	_, err = f.engine.UpdateVaultConfig(ctx, issuer, bnpl.VaultParams{OracleMaxAge: &zero})
	assert.ErrorIs(t, err, bnpl.ErrInvalidInput)
}

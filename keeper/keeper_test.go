package keeper_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/bnpl"
	"github.com/xraph/bnpl/credit"
	"github.com/xraph/bnpl/keeper"
	"github.com/xraph/bnpl/note"
	"github.com/xraph/bnpl/oracle"
	"github.com/xraph/bnpl/store/memory"
	"github.com/xraph/bnpl/types"
)

const issuer types.Principal = "issuer"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setup(t *testing.T) (*bnpl.Engine, *keeper.Keeper, *clock) {
	t.Helper()
	ctx := context.Background()
	clk := &clock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}

	eng := bnpl.New(memory.New(), bnpl.WithClock(clk.Now))
	require.NoError(t, eng.Start(ctx))
	t.Cleanup(func() { _ = eng.Stop() })

	_, err := eng.InitRiskConfig(ctx, issuer, credit.RiskParams{
		MinHFForCharges: 12000,
		GraceAnyDays:    30,
	})
	require.NoError(t, err)

	return eng, keeper.New(eng, issuer), clk
}

func open(t *testing.T, eng *bnpl.Engine, owner types.Principal, used types.Amount) {
	t.Helper()
	ctx := context.Background()
	_, err := eng.OpenAccount(ctx, owner)
	require.NoError(t, err)
	_, err = eng.SetLimit(ctx, issuer, owner, 10_000)
	require.NoError(t, err)
	if used > 0 {
		_, err = eng.Charge(ctx, owner, owner, used, 1, bnpl.NewOrderID(string(owner)))
		require.NoError(t, err)
	}
}

func TestCloseStatements(t *testing.T) {
	ctx := context.Background()
	eng, k, _ := setup(t)

	open(t, eng, "alice", 400)
	open(t, eng, "bob", 0)
	open(t, eng, "carol", 300)
	_, err := eng.SoftFreeze(ctx, issuer, "carol")
	require.NoError(t, err)

	r, err := k.CloseStatements(ctx)
	require.NoError(t, err)
	assert.Equal(t, keeper.Report{Job: keeper.JobBilling, Seen: 1, Changed: 1}, r)

	st, err := eng.GetStatement(ctx, "alice", keeper.BillingCycle(eng.Now()))
	require.NoError(t, err)
	assert.Equal(t, types.Amount(400), st.TotalDue)
	assert.Equal(t, "20260301", st.CycleID.String())

	r, err = k.Run(ctx, keeper.JobBilling)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Skipped)
	assert.Equal(t, 0, r.Changed)
}

func TestCloseStatementsRequiresAdminSigner(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := setup(t)
	open(t, eng, "alice", 400)

	r, err := keeper.New(eng, "mallory").CloseStatements(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Failed)
}

func TestAgeNotes(t *testing.T) {
	ctx := context.Background()
	eng, k, clk := setup(t)

	for i, due := range []time.Duration{24 * time.Hour, 10 * 24 * time.Hour} {
		_, err := eng.MintNote(ctx, bnpl.NewOrderID("o"), uint8(i), "alice", "shop", 100, clk.Now().Add(due))
		require.NoError(t, err)
	}

	r, err := k.AgeNotes(ctx)
	require.NoError(t, err)
	assert.Equal(t, keeper.Report{Job: keeper.JobAging, Seen: 2, Changed: 1}, r)

	clk.Advance(40 * 24 * time.Hour)
	r, err = k.Run(ctx, keeper.JobAging)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Changed)

	defaulted, err := eng.ListNotes(ctx, note.ListOpts{Statuses: []note.Status{note.StatusDefaulted}})
	require.NoError(t, err)
	assert.Len(t, defaulted, 1)

	r, err = k.AgeNotes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Seen, "defaulted notes are not revisited")
}

func TestMonitorRisk(t *testing.T) {
	ctx := context.Background()
	eng, k, _ := setup(t)

	open(t, eng, "alice", 400)
	open(t, eng, "bob", 0)

	r, err := k.MonitorRisk(ctx)
	require.NoError(t, err)
	assert.Equal(t, keeper.Report{Job: keeper.JobRisk, Seen: 2, Changed: 1}, r)

	alice, err := eng.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, credit.StatusSoftFrozen, alice.Status)
	assert.Equal(t, types.BPS(0), alice.HealthFactor)

	bob, err := eng.GetAccount(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, credit.StatusActive, bob.Status)

	_, err = eng.OpenPosition(ctx, "alice", "sol", 5000, 2000)
	require.NoError(t, err)

	r, err = k.Run(ctx, keeper.JobRisk)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Changed)

	alice, err = eng.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, credit.StatusActive, alice.Status)
	assert.Equal(t, types.BPS(25000), alice.HealthFactor)
}

// liquidationSetup returns an engine whose oracles and swap venue price SOL
// at 20.
func liquidationSetup(t *testing.T) (*bnpl.Engine, *keeper.Keeper, *clock, func()) {
	t.Helper()
	ctx := context.Background()
	clk := &clock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	board := oracle.NewBoard()

	eng := bnpl.New(memory.New(),
		bnpl.WithClock(clk.Now),
		bnpl.WithOracle(board),
		bnpl.WithSwapper(&oracle.BoardSwapper{Board: board, Source: "dex"}),
	)
	require.NoError(t, eng.Start(ctx))
	t.Cleanup(func() { _ = eng.Stop() })

	_, err := eng.InitRiskConfig(ctx, issuer, credit.RiskParams{
		MinHFForCharges: 12000,
		GraceAnyDays:    30,
	})
	require.NoError(t, err)
	_, err = eng.InitVaultConfig(ctx, issuer, "pyth", "")
	require.NoError(t, err)

	publish := func() {
		for _, source := range []string{"pyth", "dex"} {
			board.Publish(oracle.Price{Source: source, Asset: "sol", Value: decimal.NewFromInt(20), PublishedAt: clk.Now()})
		}
	}
	publish()
	return eng, keeper.New(eng, issuer), clk, publish
}

// borrower opens owner with used outstanding against a SOL position of
// sol units valued at valuation.
func borrower(t *testing.T, eng *bnpl.Engine, owner types.Principal, used, sol, valuation types.Amount) {
	t.Helper()
	ctx := context.Background()
	_, err := eng.OpenAccount(ctx, owner)
	require.NoError(t, err)
	_, err = eng.SetLimit(ctx, issuer, owner, types.Units(1000))
	require.NoError(t, err)
	_, err = eng.Charge(ctx, owner, owner, used, 1, bnpl.NewOrderID(string(owner)))
	require.NoError(t, err)
	if valuation == 0 {
		return
	}
	_, err = eng.OpenPosition(ctx, owner, "sol", 5000, valuation)
	require.NoError(t, err)
	if sol > 0 {
		_, err = eng.Deposit(ctx, owner, owner, "sol", sol, nil, nil)
		require.NoError(t, err)
	}
}

func TestLiquidate(t *testing.T) {
	ctx := context.Background()
	eng, k, clk, publish := liquidationSetup(t)

	// alice: power 100 against 150 used.
	borrower(t, eng, "alice", types.Units(150), types.Units(10), types.Units(200))
	// bob: healthy, but his statement goes unpaid.
	borrower(t, eng, "bob", types.Units(50), types.Units(10), types.Units(200))
	// carol: no collateral at all.
	borrower(t, eng, "carol", types.Units(10), 0, 0)
	// dave: healthy and current.
	borrower(t, eng, "dave", types.Units(10), 0, types.Units(1000))

	_, err := eng.StatementClose(ctx, issuer, "bob", keeper.BillingCycle(clk.Now()))
	require.NoError(t, err)

	r, err := k.Liquidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, keeper.Report{Job: keeper.JobLiquidation, Seen: 4, Changed: 1, Skipped: 1}, r)

	pos, err := eng.GetPosition(ctx, "alice", "sol")
	require.NoError(t, err)
	assert.Equal(t, types.Amount(2_500_000), pos.Amount)

	pos, err = eng.GetPosition(ctx, "bob", "sol")
	require.NoError(t, err)
	assert.Equal(t, types.Units(10), pos.Amount, "not yet past due plus grace")

	clk.Advance(120 * 24 * time.Hour)
	publish()

	r, err = k.Run(ctx, keeper.JobLiquidation)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Failed)

	pos, err = eng.GetPosition(ctx, "bob", "sol")
	require.NoError(t, err)
	assert.Equal(t, types.Amount(7_500_000), pos.Amount)

	pos, err = eng.GetPosition(ctx, "dave", "sol")
	require.NoError(t, err)
	assert.Equal(t, types.Amount(0), pos.Amount)
	assert.Equal(t, types.Units(1000), pos.Valuation, "dave is never liquidated")
}

func TestLiquidateRequiresVaultAdmin(t *testing.T) {
	ctx := context.Background()
	eng, _, _, _ := liquidationSetup(t)
	borrower(t, eng, "alice", types.Units(150), types.Units(10), types.Units(200))

	r, err := keeper.New(eng, "mallory").Liquidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Failed)

	pos, err := eng.GetPosition(ctx, "alice", "sol")
	require.NoError(t, err)
	assert.Equal(t, types.Units(10), pos.Amount)
}

func TestRunUnknownJob(t *testing.T) {
	_, k, _ := setup(t)
	_, err := k.Run(context.Background(), "payroll")
	assert.Error(t, err)
}

func TestStartStop(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := setup(t)

	k := keeper.New(eng, issuer, keeper.WithConfig(keeper.Config{Billing: "@every 1h", Risk: "*/5 * * * *"}))
	require.NoError(t, k.Start(ctx))
	assert.Error(t, k.Start(ctx))
	require.NoError(t, k.Stop(ctx))
	require.NoError(t, k.Stop(ctx))

	bad := keeper.New(eng, issuer, keeper.WithConfig(keeper.Config{Aging: "not a schedule"}))
	assert.Error(t, bad.Start(ctx))
}

func TestBillingCycle(t *testing.T) {
	got := keeper.BillingCycle(time.Date(2026, 12, 31, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, "20261201", got.String())
}

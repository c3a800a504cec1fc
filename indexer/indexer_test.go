package indexer_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/bnpl"
	"github.com/xraph/bnpl/credit"
	"github.com/xraph/bnpl/indexer"
	"github.com/xraph/bnpl/note"
	"github.com/xraph/bnpl/store/memory"
	"github.com/xraph/bnpl/types"
	"github.com/xraph/bnpl/vault"
)

var start = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newEngine(t *testing.T, ix *indexer.Indexer) *bnpl.Engine {
	t.Helper()
	ctx := context.Background()

	eng := bnpl.New(memory.New(),
		bnpl.WithPlugin(ix),
		bnpl.WithClock(func() time.Time { return start }),
	)
	require.NoError(t, eng.Start(ctx))
	t.Cleanup(func() { _ = eng.Stop() })

	_, err := eng.InitRiskConfig(ctx, "issuer", credit.RiskParams{GraceAnyDays: 30})
	require.NoError(t, err)
	_, err = eng.OpenAccount(ctx, "alice")
	require.NoError(t, err)
	_, err = eng.SetLimit(ctx, "issuer", "alice", 10_000)
	require.NoError(t, err)
	return eng
}

func TestChargeMintsInstallments(t *testing.T) {
	ctx := context.Background()
	orders := indexer.NewOrderBook()
	ix := indexer.New(orders)
	eng := newEngine(t, ix)

	orderID := bnpl.NewOrderID("order-1")
	orders.Register(orderID, "shop")

	_, err := eng.Charge(ctx, "alice", "alice", 1000, 3, orderID)
	require.NoError(t, err)
	require.NoError(t, ix.Stop(ctx))

	notes, err := eng.ListNotes(ctx, note.ListOpts{OrderID: &orderID})
	require.NoError(t, err)
	require.Len(t, notes, 3)

	want := []types.Amount{333, 333, 334}
	for i, n := range notes {
		assert.Equal(t, uint8(i), n.Index)
		assert.Equal(t, want[i], n.Amount)
		assert.Equal(t, types.Principal("shop"), n.Merchant)
		assert.Equal(t, types.Principal("alice"), n.Buyer)
		assert.Equal(t, start.Add(time.Duration(i+1)*indexer.DefaultInterval), n.DueAt)
	}
	assert.Equal(t, indexer.Stats{Processed: 1}, ix.Stats())
}

func TestRedeliveredChargeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ix := indexer.New(indexer.SingleMerchant("shop"))
	eng := newEngine(t, ix)

	orderID := bnpl.NewOrderID("order-2")
	ev := credit.ChargeAuthorized{Owner: "alice", Amount: 500, Installments: 2, OrderID: orderID, At: start}
	d := indexer.Delivery{ID: "d-1", Kind: indexer.KindCharge, Charge: ev}

	require.NoError(t, ix.Handle(ctx, d))
	require.NoError(t, ix.Handle(ctx, d))

	notes, err := eng.ListNotes(ctx, note.ListOpts{OrderID: &orderID})
	require.NoError(t, err)
	assert.Len(t, notes, 2)
	assert.Equal(t, 2, ix.Stats().Duplicates)
}

func TestUnknownOrderFails(t *testing.T) {
	ctx := context.Background()
	ix := indexer.New(indexer.NewOrderBook())
	eng := newEngine(t, ix)

	_, err := eng.Charge(ctx, "alice", "alice", 100, 1, bnpl.NewOrderID("nobody"))
	require.NoError(t, err)
	require.NoError(t, ix.Stop(ctx))

	assert.Equal(t, indexer.Stats{Failed: 1}, ix.Stats())
}

func TestHandleBeforeStart(t *testing.T) {
	ix := indexer.New(indexer.SingleMerchant("shop"))
	err := ix.Handle(context.Background(), indexer.Delivery{Kind: indexer.KindCharge})
	assert.Error(t, err)
}

func TestOnInitRejectsForeignEngine(t *testing.T) {
	ix := indexer.New(indexer.SingleMerchant("shop"))
	assert.Error(t, ix.OnInit(context.Background(), struct{}{}))
}

// fakeLedger fails the first failures repayments with a retryable error.
type fakeLedger struct {
	mu       sync.Mutex
	failures int
	repaid   []types.Amount
}

func (f *fakeLedger) MintNote(context.Context, types.OrderID, uint8, types.Principal, types.Principal, types.Amount, time.Time) (*note.Note, error) {
	return &note.Note{}, nil
}

func (f *fakeLedger) Repay(_ context.Context, _, _ types.Principal, amount types.Amount) (*credit.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return nil, bnpl.ErrTransactionFailed
	}
	f.repaid = append(f.repaid, amount)
	return &credit.Account{}, nil
}

func TestLiquidationRepaysOnceWithRetry(t *testing.T) {
	ctx := context.Background()
	fake := &fakeLedger{failures: 1}
	ix := indexer.New(indexer.SingleMerchant("shop"), indexer.WithRetry(3, time.Millisecond))
	ix.Start(ctx, fake)

	ev := vault.Liquidated{Owner: "alice", Asset: "sol", Sold: 5, Proceeds: 250, Source: "pyth", At: start}
	require.NoError(t, ix.OnCollateralLiquidated(ctx, ev))
	require.NoError(t, ix.OnCollateralLiquidated(ctx, ev))
	require.NoError(t, ix.Stop(ctx))

	assert.Equal(t, []types.Amount{250}, fake.repaid)
	assert.Equal(t, indexer.Stats{Processed: 2, Duplicates: 1}, ix.Stats())
	assert.Equal(t, 0, ix.Pending())

	assert.Error(t, ix.OnChargeAuthorized(ctx, credit.ChargeAuthorized{}), "queue is closed after stop")
}

func TestLiquidationPostsRepayment(t *testing.T) {
	ctx := context.Background()
	ix := indexer.New(indexer.SingleMerchant("shop"))
	eng := newEngine(t, ix)

	_, err := eng.Charge(ctx, "alice", "alice", 600, 1, bnpl.NewOrderID("order-3"))
	require.NoError(t, err)

	d := indexer.Delivery{Kind: indexer.KindLiquidation, Liquidation: vault.Liquidated{Owner: "alice", Asset: "sol", Proceeds: 200, At: start}}
	require.NoError(t, ix.Handle(ctx, d))

	acct, err := eng.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, types.Amount(400), acct.Used)
}

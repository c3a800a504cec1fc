package bnpl_test

import (
	"context"
	"log"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/bnpl"
	"github.com/xraph/bnpl/credit"
	"github.com/xraph/bnpl/custody"
	"github.com/xraph/bnpl/id"
	"github.com/xraph/bnpl/indexer"
	"github.com/xraph/bnpl/pool"
	"github.com/xraph/bnpl/store/memory"
	"github.com/xraph/bnpl/types"
)

// TestDocumentationExamples verifies that the examples in the package
// documentation compile and run.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		ctx := context.Background()

		// Notes are minted by the indexer from ChargeAuthorized events.
		ix := indexer.New(indexer.SingleMerchant("shop"))

		e := bnpl.New(memory.New(),
			bnpl.WithLogger(slog.Default()),
			bnpl.WithPlugin(ix),
		)
		if err := e.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer e.Stop()

		if _, err := e.InitRiskConfig(ctx, "issuer", credit.RiskParams{MinHFForCharges: 12000}); err != nil {
			t.Fatal(err)
		}
		if _, err := e.OpenAccount(ctx, "alice"); err != nil {
			t.Fatal(err)
		}
		if _, err := e.SetLimit(ctx, "issuer", "alice", bnpl.Units(1000)); err != nil {
			t.Fatal(err)
		}

		acct, err := e.Charge(ctx, "alice", "alice", bnpl.Units(400), 4, bnpl.NewOrderID("order-1"))
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("charged: used %s of %s\n", acct.Used, acct.Limit)

		// Drain the indexer so the four notes exist.
		if err := ix.Stop(ctx); err != nil {
			t.Fatal(err)
		}
		if got := ix.Stats().Processed; got != 1 {
			t.Fatalf("processed %d charges, want 1", got)
		}
	})

	t.Run("AdvanceExample", func(t *testing.T) {
		ctx := context.Background()
		journal := custody.NewJournal()

		e := bnpl.New(memory.New(),
			bnpl.WithCustody(journal),
			bnpl.WithDiscountPolicy(pool.FlatDiscount(200)), // 2%
		)
		if err := e.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer e.Stop()

		orderID := bnpl.NewOrderID("order-7")
		n, err := e.MintNote(ctx, orderID, 0, "alice", "shop", bnpl.Units(100), time.Now().Add(30*24*time.Hour))
		if err != nil {
			t.Fatal(err)
		}

		p, err := e.InitPool(ctx, "treasurer", "pool-custody")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := e.Advance(ctx, "treasurer", p.ID, n.ID); err != nil {
			t.Fatal(err)
		}

		// The merchant received the note amount less the discount.
		if got := journal.Balance("shop"); got != int64(bnpl.Units(98)) {
			t.Fatalf("merchant balance %d, want %d", got, bnpl.Units(98))
		}
		if id.NoteFor(orderID, 0) != n.ID {
			t.Fatal("note IDs are derived from (order, index)")
		}
	})

	t.Run("AmountExamples", func(t *testing.T) {
		a := bnpl.Units(12) // 12.000000
		b := types.Amount(500_000)

		sum, err := a.Add(b) // 12.500000
		if err != nil {
			t.Fatal(err)
		}
		_ = sum.MulBps(250)          // 2.5%
		_ = b.SubFloor(a)            // 0, never negative
		_ = types.BPS(12000).Ratio() // 1.2

		if _, err := types.Amount(1).Sub(2); err == nil {
			t.Fatal("expected overflow")
		}
		_ = sum.String() // "12.500000"
	})
}

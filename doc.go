// Package bnpl provides a buy-now-pay-later credit and receivables ledger for
// Go applications.
//
// Four components share one engine, each owning a slice of state:
//
//   - Credit Ledger: revolving credit accounts and the issuer's risk config
//   - Note Registry: one installment note per order installment
//   - Collateral Vault: per-(owner, asset) positions backing a health factor
//   - Advance Pool: early payment to merchants and guaranteed settlement
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/bnpl"
//	    "github.com/xraph/bnpl/credit"
//	    "github.com/xraph/bnpl/store/memory"
//	)
//
//	e := bnpl.New(memory.New())
//	if err := e.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer e.Stop()
//
//	e.InitRiskConfig(ctx, "issuer", credit.RiskParams{MinHFForCharges: 12000})
//	e.OpenAccount(ctx, "alice")
//	e.SetLimit(ctx, "issuer", "alice", bnpl.Units(1000))
//	e.Charge(ctx, "alice", "alice", bnpl.Units(400), 4, bnpl.NewOrderID("order-1"))
//
// # Steps and signers
//
// Every entry point takes the signer explicitly. Signatures are verified
// before a call reaches the engine; the engine only checks capabilities:
// owners act on their own records, and admins are whoever the relevant
// configuration record names. Each call is one step: the engine locks the
// records it writes, checks every precondition, persists, and then emits its
// events. A failed precondition leaves no partial mutation.
//
// # Events
//
// Cross-component work is event driven. A charge emits ChargeAuthorized; the
// indexer plugin consumes it and mints the order's notes as separate steps.
// A liquidation emits the proceeds, which the indexer posts as a repayment.
// Plugins are dispatched after persistence and can never fail a step.
//
// # Identifiers
//
// Records are addressed by TypeIDs derived from their seeds, so the same
// owner, asset or (order, index) always resolves to the same record:
//
//	cred_...  // credit account, seeded by owner
//	note_...  // note, seeded by order and installment index
//	pos_...   // position, seeded by owner and asset
//
// All balances are integer micro-units of the stable asset; ratios are basis
// points. Arithmetic is checked and fails with ErrOverflow rather than
// wrapping.
package bnpl

package bnpl_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xraph/bnpl"
	"github.com/xraph/bnpl/credit"
	"github.com/xraph/bnpl/custody"
	"github.com/xraph/bnpl/note"
	"github.com/xraph/bnpl/oracle"
	"github.com/xraph/bnpl/pool"
	"github.com/xraph/bnpl/store"
	"github.com/xraph/bnpl/store/memory"
	"github.com/xraph/bnpl/types"
	"github.com/xraph/bnpl/vault"
)

const (
	issuer   types.Principal = "issuer"
	alice    types.Principal = "alice"
	bob      types.Principal = "bob"
	merchant types.Principal = "merchant"
	treasury types.Principal = "treasury"
)

var defaultParams = credit.RiskParams{
	MinHFForCharges:     12000,
	MinHFForWithdraw:    13000,
	PenaltyRateDailyBps: 15,
	LateFeeBps:          200,
	GraceVolatileDays:   15,
	GraceAnyDays:        30,
}

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

// events records every domain event the engine emits.
type events struct {
	mu          sync.Mutex
	charges     []credit.ChargeAuthorized
	payments    []credit.PaymentPosted
	statements  []credit.StatementClosed
	statuses    []credit.StatusChanged
	issued      []note.Issued
	noteChanges []note.StatusChanged
	assigned    []note.BeneficiaryAssigned
	deposits    []vault.Deposited
	withdrawals []vault.Withdrawn
	liquidated  []vault.Liquidated
	advanced    []pool.Advanced
	settled     []pool.GuaranteeSettled
	replenished []pool.ReserveReplenished
}

func (r *events) Name() string { return "test-events" }

func (r *events) OnChargeAuthorized(_ context.Context, ev credit.ChargeAuthorized) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.charges = append(r.charges, ev)
	return nil
}

func (r *events) OnPaymentPosted(_ context.Context, ev credit.PaymentPosted) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments = append(r.payments, ev)
	return nil
}

func (r *events) OnStatementClosed(_ context.Context, ev credit.StatementClosed) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statements = append(r.statements, ev)
	return nil
}

func (r *events) OnAccountStatusChanged(_ context.Context, ev credit.StatusChanged) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, ev)
	return nil
}

func (r *events) OnNoteIssued(_ context.Context, ev note.Issued) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issued = append(r.issued, ev)
	return nil
}

func (r *events) OnNoteStatusChanged(_ context.Context, ev note.StatusChanged) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.noteChanges = append(r.noteChanges, ev)
	return nil
}

func (r *events) OnBeneficiaryAssigned(_ context.Context, ev note.BeneficiaryAssigned) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assigned = append(r.assigned, ev)
	return nil
}

func (r *events) OnCollateralDeposited(_ context.Context, ev vault.Deposited) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deposits = append(r.deposits, ev)
	return nil
}

func (r *events) OnCollateralWithdrawn(_ context.Context, ev vault.Withdrawn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.withdrawals = append(r.withdrawals, ev)
	return nil
}

func (r *events) OnCollateralLiquidated(_ context.Context, ev vault.Liquidated) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.liquidated = append(r.liquidated, ev)
	return nil
}

func (r *events) OnAdvanced(_ context.Context, ev pool.Advanced) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advanced = append(r.advanced, ev)
	return nil
}

func (r *events) OnGuaranteeSettled(_ context.Context, ev pool.GuaranteeSettled) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settled = append(r.settled, ev)
	return nil
}

func (r *events) OnReserveReplenished(_ context.Context, ev pool.ReserveReplenished) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replenished = append(r.replenished, ev)
	return nil
}

type fixture struct {
	engine  *bnpl.Engine
	clock   *clock
	events  *events
	journal *custody.Journal
	board   *oracle.Board
	swapper *oracle.BoardSwapper
}

func newFixture(t *testing.T, opts ...bnpl.Option) *fixture {
	t.Helper()
	return newFixtureOn(t, memory.New(), opts...)
}

// newFixtureOn is newFixture over a caller-supplied store.
func newFixtureOn(t *testing.T, s store.Store, opts ...bnpl.Option) *fixture {
	t.Helper()

	f := &fixture{
		clock:   &clock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)},
		events:  &events{},
		journal: custody.NewJournal(),
		board:   oracle.NewBoard(),
	}
	f.swapper = &oracle.BoardSwapper{Board: f.board, Source: "dex"}

	base := []bnpl.Option{
		bnpl.WithClock(f.clock.Now),
		bnpl.WithPlugin(f.events),
		bnpl.WithCustody(f.journal),
		bnpl.WithOracle(f.board),
		bnpl.WithSwapper(f.swapper),
	}
	f.engine = bnpl.New(s, append(base, opts...)...)

	ctx := context.Background()
	require.NoError(t, f.engine.Start(ctx))
	t.Cleanup(func() { _ = f.engine.Stop() })

	_, err := f.engine.InitRiskConfig(ctx, issuer, defaultParams)
	require.NoError(t, err)
	return f
}

// openWithLimit opens owner's account and sets its limit.
func (f *fixture) openWithLimit(t *testing.T, owner types.Principal, limit types.Amount) {
	t.Helper()
	ctx := context.Background()
	_, err := f.engine.OpenAccount(ctx, owner)
	require.NoError(t, err)
	_, err = f.engine.SetLimit(ctx, issuer, owner, limit)
	require.NoError(t, err)
}

var errStoreDown = errors.New("store down")

// flakyStore fails position, note and pool updates while down is set.
type flakyStore struct {
	store.Store
	down atomic.Bool
}

func (s *flakyStore) UpdatePosition(ctx context.Context, p *vault.Position) error {
	if s.down.Load() {
		return errStoreDown
	}
	return s.Store.UpdatePosition(ctx, p)
}

func (s *flakyStore) UpdateNote(ctx context.Context, n *note.Note) error {
	if s.down.Load() {
		return errStoreDown
	}
	return s.Store.UpdateNote(ctx, n)
}

func (s *flakyStore) UpdatePool(ctx context.Context, p *pool.Pool) error {
	if s.down.Load() {
		return errStoreDown
	}
	return s.Store.UpdatePool(ctx, p)
}

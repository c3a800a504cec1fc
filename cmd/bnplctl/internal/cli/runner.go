package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/bnpl"
	audithook "github.com/xraph/bnpl/audit_hook"
	"github.com/xraph/bnpl/credit"
	"github.com/xraph/bnpl/custody"
	"github.com/xraph/bnpl/id"
	"github.com/xraph/bnpl/indexer"
	"github.com/xraph/bnpl/keeper"
	"github.com/xraph/bnpl/note"
	"github.com/xraph/bnpl/oracle"
	"github.com/xraph/bnpl/plugin"
	"github.com/xraph/bnpl/pool"
	"github.com/xraph/bnpl/store/memory"
	"github.com/xraph/bnpl/types"
	"github.com/xraph/bnpl/vault"
)

// DefaultStart is the scenario clock's start when a scenario sets none.
var DefaultStart = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// StepResult is the outcome of one step.
type StepResult struct {
	Step   int    `json:"step"`
	Op     string `json:"op"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
	Result any    `json:"result,omitempty"`
}

// Report is the outcome of a scenario run.
type Report struct {
	Scenario  string                  `json:"scenario"`
	Steps     []StepResult            `json:"steps"`
	Failed    int                     `json:"failed"`
	Transfers []custody.Entry         `json:"transfers,omitempty"`
	Audit     []*audithook.AuditEvent `json:"audit,omitempty"`
}

// Runner executes scenarios against an in-memory engine. Charge and
// liquidation follow-ups are applied by the indexer before the next step
// starts, so a scenario observes their effects deterministically.
type Runner struct {
	cfg     *Config
	logger  *slog.Logger
	clock   *clock
	eng     *bnpl.Engine
	board   *oracle.Board
	journal *custody.Journal
	orders  *indexer.OrderBook
	ix      *indexer.Indexer
	inbox   *inbox
	keeper  *keeper.Keeper

	auditMu sync.Mutex
	audit   []*audithook.AuditEvent
}

// NewRunner starts an engine configured by cfg with its clock at start.
func NewRunner(ctx context.Context, cfg *Config, start time.Time, logger *slog.Logger) (*Runner, error) {
	if start.IsZero() {
		start = DefaultStart
	}
	r := &Runner{
		cfg:     cfg,
		logger:  logger,
		clock:   &clock{now: start.UTC()},
		board:   oracle.NewBoard(),
		journal: custody.NewJournal(),
		orders:  indexer.NewOrderBook(),
		inbox:   &inbox{},
	}

	recorder := audithook.RecorderFunc(func(_ context.Context, ev *audithook.AuditEvent) error {
		r.auditMu.Lock()
		defer r.auditMu.Unlock()
		r.audit = append(r.audit, ev)
		return nil
	})

	r.eng = bnpl.New(memory.New(),
		bnpl.WithLogger(logger),
		bnpl.WithClock(r.clock.Now),
		bnpl.WithPlugin(r.inbox),
		bnpl.WithPlugin(audithook.New(recorder, audithook.WithLogger(logger))),
		bnpl.WithCustody(r.journal),
		bnpl.WithVaultCustody(cfg.VaultCustody),
		bnpl.WithOracle(r.board),
		bnpl.WithSwapper(&oracle.BoardSwapper{Board: r.board, Source: cfg.Oracle.Primary, Haircut: cfg.Oracle.Haircut}),
		bnpl.WithDiscountPolicy(pool.FlatDiscount(cfg.Pool.DiscountBps)),
	)
	if err := r.eng.Start(ctx); err != nil {
		return nil, fmt.Errorf("start engine: %w", err)
	}

	if _, err := r.eng.InitRiskConfig(ctx, cfg.Admin, cfg.Risk.Params()); err != nil {
		return nil, r.abort(fmt.Errorf("init risk config: %w", err))
	}
	if _, err := r.eng.InitVaultConfig(ctx, cfg.Admin, cfg.Oracle.Primary, cfg.Oracle.Fallback); err != nil {
		return nil, r.abort(fmt.Errorf("init vault config: %w", err))
	}
	params := bnpl.VaultParams{}
	if cfg.Oracle.MaxAge > 0 {
		params.OracleMaxAge = &cfg.Oracle.MaxAge
	}
	if cfg.Oracle.SlippageMax > 0 {
		params.SlippageMax = &cfg.Oracle.SlippageMax
	}
	if params != (bnpl.VaultParams{}) {
		if _, err := r.eng.UpdateVaultConfig(ctx, cfg.Admin, params); err != nil {
			return nil, r.abort(fmt.Errorf("update vault config: %w", err))
		}
	}

	ixOpts := []indexer.Option{indexer.WithLogger(logger)}
	if cfg.InstallmentInterval > 0 {
		ixOpts = append(ixOpts, indexer.WithInterval(cfg.InstallmentInterval))
	}
	r.ix = indexer.New(r.orders, ixOpts...)
	r.ix.Start(ctx, r.eng)

	r.keeper = keeper.New(r.eng, cfg.Admin, keeper.WithLogger(logger), keeper.WithConfig(cfg.Keeper))
	return r, nil
}

func (r *Runner) abort(err error) error {
	return errors.Join(err, r.Close(context.Background()))
}

// Engine returns the engine the runner drives.
func (r *Runner) Engine() *bnpl.Engine { return r.eng }

// Keeper returns the keeper bound to the runner's engine.
func (r *Runner) Keeper() *keeper.Keeper { return r.keeper }

// Close stops the indexer and the engine.
func (r *Runner) Close(ctx context.Context) error {
	var errs []error
	if r.ix != nil {
		errs = append(errs, r.ix.Stop(ctx))
	}
	errs = append(errs, r.eng.Stop())
	return errors.Join(errs...)
}

// Run registers the scenario's orders and executes its steps in order. A
// failing step does not stop the run.
func (r *Runner) Run(ctx context.Context, sc *Scenario) *Report {
	for ref, merchant := range sc.Orders {
		r.orders.Register(bnpl.NewOrderID(ref), merchant)
	}

	rep := &Report{Scenario: sc.Name}
	for i, st := range sc.Steps {
		res := StepResult{Step: i + 1, Op: st.Op}
		out, err := r.exec(ctx, st)
		if err == nil {
			err = r.drain(ctx)
		}

		switch {
		case st.Expect != "" && err == nil:
			res.Error = fmt.Sprintf("expected error containing %q", st.Expect)
		case st.Expect != "" && !strings.Contains(err.Error(), st.Expect):
			res.Error = fmt.Sprintf("expected error containing %q, got: %v", st.Expect, err)
		case st.Expect != "":
			res.OK = true
			res.Error = err.Error()
		case err != nil:
			res.Error = err.Error()
		default:
			res.OK = true
			res.Result = out
		}
		if !res.OK {
			rep.Failed++
			r.logger.Warn("scenario step failed", "scenario", sc.Name, "step", res.Step, "op", st.Op, "error", res.Error)
		}
		rep.Steps = append(rep.Steps, res)
	}

	rep.Transfers = r.journal.Entries()
	r.auditMu.Lock()
	rep.Audit = append(rep.Audit, r.audit...)
	r.auditMu.Unlock()
	return rep
}

// drain hands the events captured during the last step to the indexer.
func (r *Runner) drain(ctx context.Context) error {
	var errs []error
	for _, d := range r.inbox.take() {
		if err := r.ix.Handle(ctx, d); err != nil {
			errs = append(errs, fmt.Errorf("%s follow-up: %w", d.Kind, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Runner) exec(ctx context.Context, st Step) (any, error) {
	admin := r.signer(st, r.cfg.Admin)
	self := r.signer(st, st.Owner)
	poolID := id.PoolFor(string(r.cfg.Admin))

	switch st.Op {
	case OpOpenAccount:
		return r.eng.OpenAccount(ctx, st.Owner)
	case OpSetLimit:
		return r.eng.SetLimit(ctx, admin, st.Owner, st.Amount)
	case OpCharge:
		return r.eng.Charge(ctx, self, st.Owner, st.Amount, st.Installments, bnpl.NewOrderID(st.Order))
	case OpRepay:
		return r.eng.Repay(ctx, self, st.Owner, st.Amount)
	case OpCloseStatement:
		return r.eng.StatementClose(ctx, admin, st.Owner, keeper.BillingCycle(r.clock.Now()))
	case OpSoftFreeze:
		return r.eng.SoftFreeze(ctx, admin, st.Owner)
	case OpHardFreeze:
		return r.eng.HardFreeze(ctx, admin, st.Owner)
	case OpUnfreeze:
		return r.eng.Unfreeze(ctx, admin, st.Owner)
	case OpOpenPosition:
		return r.eng.OpenPosition(ctx, st.Owner, st.Asset, *st.LTV, *st.Valuation)
	case OpDeposit:
		return r.eng.Deposit(ctx, self, st.Owner, st.Asset, st.Amount, st.Valuation, st.LTV)
	case OpWithdraw:
		return r.eng.Withdraw(ctx, self, st.Owner, st.Asset, st.Amount)
	case OpPublishPrice:
		value, err := decimal.NewFromString(st.Price)
		if err != nil {
			return nil, err
		}
		p := oracle.Price{Source: st.Source, Asset: st.Asset, Value: value, PublishedAt: r.clock.Now()}
		r.board.Publish(p)
		return p, nil
	case OpLiquidate:
		return r.eng.LiquidatePartial(ctx, admin, st.Owner, st.Asset, st.Amount)
	case OpInitPool:
		return r.eng.InitPool(ctx, admin, r.cfg.Pool.Custody)
	case OpReplenish:
		return r.eng.ReplenishReserve(ctx, admin, poolID, st.Amount)
	case OpAdvance:
		return r.eng.Advance(ctx, admin, poolID, noteRef(st))
	case OpSettle:
		return r.eng.GuaranteeSettle(ctx, admin, poolID, noteRef(st))
	case OpMarkPaid:
		return r.eng.MarkPaid(ctx, st.Signer, noteRef(st))
	case OpAssign:
		return r.eng.AssignBeneficiary(ctx, st.Signer, noteRef(st), st.To)
	case OpAgeNote:
		return r.eng.AgeNote(ctx, noteRef(st))
	case OpWait:
		r.clock.Advance(st.Duration)
		return map[string]time.Time{"now": r.clock.Now()}, nil
	case OpRunJob:
		return r.keeper.Run(ctx, st.Job)
	case OpCheck:
		return nil, r.check(ctx, st)
	default:
		return nil, fmt.Errorf("unknown op %q", st.Op)
	}
}

func (r *Runner) signer(st Step, fallback types.Principal) types.Principal {
	if !st.Signer.IsZero() {
		return st.Signer
	}
	return fallback
}

func noteRef(st Step) id.NoteID {
	return id.NoteFor(bnpl.NewOrderID(st.Order), st.Index)
}

// check compares the ledger against st.Check and reports every mismatch.
func (r *Runner) check(ctx context.Context, st Step) error {
	c := st.Check
	var errs []error
	mismatch := func(what string, want, got any) {
		if fmt.Sprint(want) != fmt.Sprint(got) {
			errs = append(errs, fmt.Errorf("%s: want %v, got %v", what, want, got))
		}
	}

	if c.Used != nil || c.Limit != nil || c.Status != nil || c.HealthFactor != nil {
		acct, err := r.eng.GetAccount(ctx, st.Owner)
		if err != nil {
			return err
		}
		if c.Used != nil {
			mismatch("used", *c.Used, acct.Used)
		}
		if c.Limit != nil {
			mismatch("limit", *c.Limit, acct.Limit)
		}
		if c.Status != nil {
			mismatch("status", *c.Status, acct.Status)
		}
		if c.HealthFactor != nil {
			mismatch("health_factor", *c.HealthFactor, acct.HealthFactor)
		}
	}

	if c.Notes != nil {
		orderID := bnpl.NewOrderID(st.Order)
		notes, err := r.eng.ListNotes(ctx, note.ListOpts{OrderID: &orderID})
		if err != nil {
			return err
		}
		mismatch("notes", *c.Notes, len(notes))
	}

	if c.NoteStatus != "" || c.Beneficiary != nil {
		n, err := r.eng.GetNote(ctx, noteRef(st))
		if err != nil {
			return err
		}
		if c.NoteStatus != "" {
			mismatch("note_status", c.NoteStatus, n.Status)
		}
		if c.Beneficiary != nil {
			mismatch("beneficiary", *c.Beneficiary, n.Beneficiary)
		}
	}

	if c.Collateral != nil {
		var held types.Amount
		pos, err := r.eng.GetPosition(ctx, st.Owner, st.Asset)
		switch {
		case err == nil:
			held = pos.Amount
		case !bnpl.IsNotFound(err):
			return err
		}
		mismatch("collateral", *c.Collateral, held)
	}

	if c.Reserve != nil {
		p, err := r.eng.GetPool(ctx, id.PoolFor(string(r.cfg.Admin)))
		if err != nil {
			return err
		}
		mismatch("reserve", *c.Reserve, p.GuaranteeReserve)
	}

	for account, want := range c.Balances {
		mismatch("balance "+string(account), want, r.journal.Balance(account))
	}

	return errors.Join(errs...)
}

// inbox captures the events the indexer follows up on.
type inbox struct {
	mu   sync.Mutex
	seq  int
	recv []indexer.Delivery
}

var (
	_ plugin.OnChargeAuthorized     = (*inbox)(nil)
	_ plugin.OnCollateralLiquidated = (*inbox)(nil)
)

func (b *inbox) Name() string { return "scenario-inbox" }

func (b *inbox) OnChargeAuthorized(_ context.Context, ev credit.ChargeAuthorized) error {
	b.push(indexer.Delivery{Kind: indexer.KindCharge, Charge: ev})
	return nil
}

func (b *inbox) OnCollateralLiquidated(_ context.Context, ev vault.Liquidated) error {
	b.push(indexer.Delivery{Kind: indexer.KindLiquidation, Liquidation: ev})
	return nil
}

func (b *inbox) push(d indexer.Delivery) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	d.ID = fmt.Sprintf("scenario-%d", b.seq)
	b.recv = append(b.recv, d)
}

func (b *inbox) take() []indexer.Delivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.recv
	b.recv = nil
	return out
}

// clock is the scenario's manually advanced time source.
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

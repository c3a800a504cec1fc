// Package indexer consumes ledger events and issues the follow-up steps
// they authorize: an authorized charge mints one note per installment, and
// liquidation proceeds are posted as a repayment of the owner's credit.
//
// Events are delivered at least once. Handling is idempotent per logical
// key: a note that already exists for (order, index) counts as minted, and
// each liquidation is repaid once.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xraph/bnpl"
	"github.com/xraph/bnpl/credit"
	"github.com/xraph/bnpl/note"
	"github.com/xraph/bnpl/plugin"
	"github.com/xraph/bnpl/types"
	"github.com/xraph/bnpl/vault"
)

// Defaults.
const (
	DefaultInterval    = 30 * 24 * time.Hour
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 100 * time.Millisecond
	DefaultSigner      = types.Principal("indexer")
)

// Ledger is the part of the engine the indexer drives.
type Ledger interface {
	MintNote(ctx context.Context, orderID types.OrderID, index uint8, buyer, merchant types.Principal, amount types.Amount, dueAt time.Time) (*note.Note, error)
	Repay(ctx context.Context, signer, owner types.Principal, amount types.Amount) (*credit.Account, error)
}

// Kind identifies the event a delivery carries.
type Kind uint8

const (
	KindCharge Kind = iota + 1
	KindLiquidation
)

func (k Kind) String() string {
	switch k {
	case KindCharge:
		return "charge"
	case KindLiquidation:
		return "liquidation"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Delivery is one queued event.
type Delivery struct {
	ID          string
	Kind        Kind
	Charge      credit.ChargeAuthorized
	Liquidation vault.Liquidated
}

// Stats counts handled deliveries.
type Stats struct {
	Processed  int
	Duplicates int
	Failed     int
}

// Compile-time checks.
var (
	_ plugin.OnInit                 = (*Indexer)(nil)
	_ plugin.OnShutdown             = (*Indexer)(nil)
	_ plugin.OnChargeAuthorized     = (*Indexer)(nil)
	_ plugin.OnCollateralLiquidated = (*Indexer)(nil)
)

// Indexer is a plugin that queues charge and liquidation events and
// processes them in order on a single worker.
type Indexer struct {
	orders      Orders
	logger      *slog.Logger
	interval    time.Duration
	signer      types.Principal
	maxAttempts int
	retryDelay  time.Duration

	ledger Ledger
	queue  *queue
	cancel context.CancelFunc
	wg     sync.WaitGroup
	start  sync.Once
	stop   sync.Once

	mu     sync.Mutex
	repaid map[string]struct{}
	stats  Stats
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(ix *Indexer) { ix.logger = logger }
}

// WithInterval sets the spacing between installment due dates.
func WithInterval(d time.Duration) Option {
	return func(ix *Indexer) { ix.interval = d }
}

// WithSigner sets the principal that posts liquidation repayments.
func WithSigner(p types.Principal) Option {
	return func(ix *Indexer) { ix.signer = p }
}

// WithRetry sets how many times a retryable failure is attempted and the
// delay between attempts.
func WithRetry(maxAttempts int, delay time.Duration) Option {
	return func(ix *Indexer) {
		ix.maxAttempts = maxAttempts
		ix.retryDelay = delay
	}
}

// New returns an indexer that resolves merchants through orders.
func New(orders Orders, opts ...Option) *Indexer {
	ix := &Indexer{
		orders:      orders,
		logger:      slog.Default(),
		interval:    DefaultInterval,
		signer:      DefaultSigner,
		maxAttempts: DefaultMaxAttempts,
		retryDelay:  DefaultRetryDelay,
		queue:       newQueue(),
		repaid:      make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(ix)
	}
	if ix.maxAttempts < 1 {
		ix.maxAttempts = 1
	}
	return ix
}

// Name implements plugin.Plugin.
func (ix *Indexer) Name() string { return "indexer" }

// OnInit starts the worker against the engine.
func (ix *Indexer) OnInit(ctx context.Context, engine interface{}) error {
	l, ok := engine.(Ledger)
	if !ok {
		return fmt.Errorf("indexer: engine %T does not implement Ledger", engine)
	}
	ix.Start(ctx, l)
	return nil
}

// OnShutdown drains the queue and stops the worker.
func (ix *Indexer) OnShutdown(ctx context.Context) error {
	return ix.Stop(ctx)
}

// Start runs the worker against l. Only the first call has an effect. The
// worker outlives ctx's deadline but not its values.
func (ix *Indexer) Start(ctx context.Context, l Ledger) {
	ix.start.Do(func() {
		ix.ledger = l
		var workerCtx context.Context
		workerCtx, ix.cancel = context.WithCancel(context.WithoutCancel(ctx))
		ix.wg.Add(1)
		go ix.run(workerCtx)
		ix.logger.Info("indexer started", "interval", ix.interval, "max_attempts", ix.maxAttempts)
	})
}

// Stop closes the queue and waits for queued deliveries to finish. If ctx
// ends first, the remaining deliveries are abandoned.
func (ix *Indexer) Stop(ctx context.Context) error {
	var err error
	ix.stop.Do(func() {
		ix.queue.close()
		if ix.cancel == nil {
			return
		}

		done := make(chan struct{})
		go func() {
			ix.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			ix.cancel()
			<-done
			err = fmt.Errorf("indexer: stop: %w", ctx.Err())
		}
		ix.cancel()

		s := ix.Stats()
		ix.logger.Info("indexer stopped",
			"processed", s.Processed,
			"duplicates", s.Duplicates,
			"failed", s.Failed,
		)
	})
	return err
}

// OnChargeAuthorized queues note issuance for the charge.
func (ix *Indexer) OnChargeAuthorized(_ context.Context, ev credit.ChargeAuthorized) error {
	return ix.enqueue(Delivery{Kind: KindCharge, Charge: ev})
}

// OnCollateralLiquidated queues the repayment of the proceeds.
func (ix *Indexer) OnCollateralLiquidated(_ context.Context, ev vault.Liquidated) error {
	return ix.enqueue(Delivery{Kind: KindLiquidation, Liquidation: ev})
}

func (ix *Indexer) enqueue(d Delivery) error {
	d.ID = uuid.Must(uuid.NewV7()).String()
	if !ix.queue.push(d) {
		return fmt.Errorf("indexer: queue closed, dropped %s delivery %s", d.Kind, d.ID)
	}
	return nil
}

// Pending returns the number of queued deliveries.
func (ix *Indexer) Pending() int { return ix.queue.len() }

// Stats returns a snapshot of the delivery counters.
func (ix *Indexer) Stats() Stats {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.stats
}

func (ix *Indexer) run(ctx context.Context) {
	defer ix.wg.Done()

	for {
		if d, ok := ix.queue.pop(); ok {
			ix.process(ctx, d)
			continue
		}
		if ix.queue.drained() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ix.queue.wait():
		}
	}
}

// process handles d, retrying failures the ledger marks retryable.
func (ix *Indexer) process(ctx context.Context, d Delivery) {
	for attempt := 1; ; attempt++ {
		err := ix.Handle(ctx, d)
		if err == nil {
			ix.count(func(s *Stats) { s.Processed++ })
			return
		}
		if !bnpl.IsRetryable(err) || attempt >= ix.maxAttempts || ctx.Err() != nil {
			ix.count(func(s *Stats) { s.Failed++ })
			ix.logger.Error("indexer delivery failed",
				"delivery_id", d.ID,
				"kind", d.Kind.String(),
				"attempts", attempt,
				"error", err,
			)
			return
		}

		ix.logger.Warn("indexer delivery retrying", "delivery_id", d.ID, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
		case <-time.After(ix.retryDelay):
		}
	}
}

// Handle applies one delivery synchronously. Handling the same delivery
// again is a no-op.
func (ix *Indexer) Handle(ctx context.Context, d Delivery) error {
	if ix.ledger == nil {
		return errors.New("indexer: not started")
	}
	switch d.Kind {
	case KindCharge:
		return ix.handleCharge(ctx, d.Charge)
	case KindLiquidation:
		return ix.handleLiquidation(ctx, d.Liquidation)
	default:
		return fmt.Errorf("indexer: unknown delivery kind %s", d.Kind)
	}
}

func (ix *Indexer) handleCharge(ctx context.Context, ev credit.ChargeAuthorized) error {
	merchant, err := ix.orders.Merchant(ctx, ev.OrderID)
	if err != nil {
		return err
	}

	for i, amount := range note.Split(ev.Amount, ev.Installments) {
		index := uint8(i) //nolint:gosec // installments is a uint8, so i fits
		dueAt := ev.At.Add(time.Duration(i+1) * ix.interval)

		_, err := ix.ledger.MintNote(ctx, ev.OrderID, index, ev.Owner, merchant, amount, dueAt)
		switch {
		case errors.Is(err, bnpl.ErrAlreadyExists):
			ix.count(func(s *Stats) { s.Duplicates++ })
			ix.logger.Debug("note already minted", "order_id", ev.OrderID.String(), "index", index)
		case err != nil:
			return fmt.Errorf("indexer: mint %s/%d: %w", ev.OrderID, index, err)
		}
	}
	return nil
}

func (ix *Indexer) handleLiquidation(ctx context.Context, ev vault.Liquidated) error {
	if ev.Proceeds == 0 {
		return nil
	}

	key := liquidationKey(ev)
	ix.mu.Lock()
	_, done := ix.repaid[key]
	ix.mu.Unlock()
	if done {
		ix.count(func(s *Stats) { s.Duplicates++ })
		return nil
	}

	if _, err := ix.ledger.Repay(ctx, ix.signer, ev.Owner, ev.Proceeds); err != nil {
		return fmt.Errorf("indexer: repay %s: %w", ev.Owner, err)
	}

	ix.mu.Lock()
	ix.repaid[key] = struct{}{}
	ix.mu.Unlock()
	return nil
}

func liquidationKey(ev vault.Liquidated) string {
	return fmt.Sprintf("%s/%s/%d/%d", ev.Owner, ev.Asset, ev.Sold, ev.At.UnixNano())
}

func (ix *Indexer) count(fn func(*Stats)) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	fn(&ix.stats)
}

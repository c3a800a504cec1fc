// Package oracle defines the price and swap collaborators consulted by
// collateral liquidation.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/bnpl/types"
)

// ErrNoPrice is returned when a source has never published a price for an
// asset.
var ErrNoPrice = errors.New("oracle: no price")

// ErrBelowMinimum is returned by a Swapper that refuses a fill whose proceeds
// would fall under the caller's minimum. Nothing is sold.
var ErrBelowMinimum = errors.New("oracle: fill below minimum output")

// Price is a published quote: Value stable units per unit of Asset.
type Price struct {
	Source      string          `json:"source"`
	Asset       string          `json:"asset"`
	Value       decimal.Decimal `json:"value"`
	PublishedAt time.Time       `json:"published_at"`
}

// Fresh reports whether p was published no earlier than maxAge before now.
func (p Price) Fresh(now time.Time, maxAge time.Duration) bool {
	if !p.Value.IsPositive() {
		return false
	}
	return !p.PublishedAt.Before(now.Add(-maxAge))
}

// UnitsFor returns the number of asset units needed to raise target at this
// price, rounded up.
func (p Price) UnitsFor(target types.Amount) (types.Amount, error) {
	if !p.Value.IsPositive() {
		return 0, fmt.Errorf("oracle: non-positive price for %s", p.Asset)
	}
	units := target.Decimal().Shift(types.AmountDecimals).Div(p.Value).Ceil()
	return types.AmountFromDecimal(units.Shift(-types.AmountDecimals))
}

// ValueOf returns the stable value of units at this price, rounded down.
func (p Price) ValueOf(units types.Amount) (types.Amount, error) {
	v := units.Decimal().Mul(p.Value)
	return types.AmountFromDecimal(v)
}

// PriceSource returns the latest price an oracle source published for asset.
type PriceSource interface {
	Price(ctx context.Context, source, asset string) (Price, error)
}

// Swapper sells collateral for stable units and reports the proceeds. A fill
// that would return less than minOut must be refused with ErrBelowMinimum
// before anything is sold.
type Swapper interface {
	Sell(ctx context.Context, owner types.Principal, asset string, units, minOut types.Amount) (types.Amount, error)
}

// Board is an in-memory PriceSource fed by Publish.
type Board struct {
	mu     sync.RWMutex
	prices map[string]Price
}

// NewBoard returns an empty price board.
func NewBoard() *Board {
	return &Board{prices: make(map[string]Price)}
}

// Publish records p as the latest price from its source.
func (b *Board) Publish(p Price) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prices[p.Source+"/"+p.Asset] = p
}

// Price implements PriceSource.
func (b *Board) Price(_ context.Context, source, asset string) (Price, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.prices[source+"/"+asset]
	if !ok {
		return Price{}, fmt.Errorf("%w: %s/%s", ErrNoPrice, source, asset)
	}
	return p, nil
}

// BoardSwapper fills sells at the board's price from Source, less Haircut.
type BoardSwapper struct {
	Board   *Board
	Source  string
	Haircut types.BPS
}

// Sell implements Swapper.
func (s *BoardSwapper) Sell(ctx context.Context, _ types.Principal, asset string, units, minOut types.Amount) (types.Amount, error) {
	p, err := s.Board.Price(ctx, s.Source, asset)
	if err != nil {
		return 0, err
	}
	gross, err := p.ValueOf(units)
	if err != nil {
		return 0, err
	}
	net := gross.MulBps(types.BPSDenominator - s.Haircut)
	if net < minOut {
		return 0, fmt.Errorf("%w: %s < %s", ErrBelowMinimum, net, minOut)
	}
	return net, nil
}

package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/xraph/bnpl/types"
)

// ErrUnknownOrder is returned when no merchant is known for an order.
var ErrUnknownOrder = errors.New("indexer: unknown order")

// Orders resolves the merchant of a charged order. The charge itself only
// carries the order's identifier; the merchant comes from checkout.
type Orders interface {
	Merchant(ctx context.Context, orderID types.OrderID) (types.Principal, error)
}

// OrderBook is an in-memory Orders.
type OrderBook struct {
	mu        sync.RWMutex
	merchants map[types.OrderID]types.Principal
}

// NewOrderBook returns an empty order book.
func NewOrderBook() *OrderBook {
	return &OrderBook{merchants: make(map[types.OrderID]types.Principal)}
}

// Register records merchant as the seller of orderID.
func (b *OrderBook) Register(orderID types.OrderID, merchant types.Principal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.merchants[orderID] = merchant
}

// Merchant implements Orders.
func (b *OrderBook) Merchant(_ context.Context, orderID types.OrderID) (types.Principal, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m, ok := b.merchants[orderID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownOrder, orderID)
	}
	return m, nil
}

// SingleMerchant attributes every order to one merchant.
type SingleMerchant types.Principal

// Merchant implements Orders.
func (m SingleMerchant) Merchant(context.Context, types.OrderID) (types.Principal, error) {
	return types.Principal(m), nil
}

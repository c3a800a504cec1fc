package pool

import (
	"context"

	"github.com/xraph/bnpl/id"
)

// Store persists pools.
type Store interface {
	CreatePool(ctx context.Context, p *Pool) error
	GetPool(ctx context.Context, poolID id.PoolID) (*Pool, error)
	UpdatePool(ctx context.Context, p *Pool) error
}

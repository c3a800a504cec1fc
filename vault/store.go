package vault

import (
	"context"

	"github.com/xraph/bnpl/id"
	"github.com/xraph/bnpl/types"
)

// Store persists positions and the vault configuration.
type Store interface {
	CreatePosition(ctx context.Context, p *Position) error
	GetPosition(ctx context.Context, positionID id.PositionID) (*Position, error)
	UpdatePosition(ctx context.Context, p *Position) error
	ListPositions(ctx context.Context, owner types.Principal) ([]*Position, error)

	CreateVaultConfig(ctx context.Context, c *Config) error
	GetVaultConfig(ctx context.Context, configID id.VaultConfigID) (*Config, error)
	UpdateVaultConfig(ctx context.Context, c *Config) error
}

package credit

import (
	"context"

	"github.com/xraph/bnpl/id"
	"github.com/xraph/bnpl/types"
)

// Store persists credit records.
type Store interface {
	CreateAccount(ctx context.Context, a *Account) error
	GetAccount(ctx context.Context, accountID id.AccountID) (*Account, error)
	UpdateAccount(ctx context.Context, a *Account) error
	ListAccounts(ctx context.Context, opts ListOpts) ([]*Account, error)

	CreateRiskConfig(ctx context.Context, c *RiskConfig) error
	GetRiskConfig(ctx context.Context, configID id.RiskConfigID) (*RiskConfig, error)
	UpdateRiskConfig(ctx context.Context, c *RiskConfig) error

	CreateStatement(ctx context.Context, s *Statement) error
	GetStatement(ctx context.Context, statementID id.StatementID) (*Statement, error)
	ListStatements(ctx context.Context, owner types.Principal, opts ListOpts) ([]*Statement, error)
}

// ListOpts filters account and statement listings.
type ListOpts struct {
	Status Status
	// OnlyOutstanding restricts accounts to those with Used > 0.
	OnlyOutstanding bool
	Limit           int
	Offset          int
}

package vault

import (
	"time"

	"github.com/xraph/bnpl/types"
)

// PositionOpened is emitted when an owner opens a position.
type PositionOpened struct {
	Owner     types.Principal `json:"owner"`
	Asset     string          `json:"asset"`
	LTV       types.BPS       `json:"ltv"`
	Valuation types.Amount    `json:"valuation"`
	At        time.Time       `json:"at"`
}

// Deposited is emitted after collateral is added.
type Deposited struct {
	Owner  types.Principal `json:"owner"`
	Asset  string          `json:"asset"`
	Amount types.Amount    `json:"amount"`
	Total  types.Amount    `json:"total"`
	At     time.Time       `json:"at"`
}

// Withdrawn is emitted after collateral is removed.
type Withdrawn struct {
	Owner  types.Principal `json:"owner"`
	Asset  string          `json:"asset"`
	Amount types.Amount    `json:"amount"`
	Total  types.Amount    `json:"total"`
	At     time.Time       `json:"at"`
}

// Liquidated is emitted after collateral is sold. Proceeds are owed against
// the owner's credit account.
type Liquidated struct {
	Owner    types.Principal `json:"owner"`
	Asset    string          `json:"asset"`
	Sold     types.Amount    `json:"sold"`
	Proceeds types.Amount    `json:"proceeds"`
	Source   string          `json:"source"`
	At       time.Time       `json:"at"`
}

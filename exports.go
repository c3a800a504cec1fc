package bnpl

import "github.com/xraph/bnpl/types"

// Re-export common types for convenience so users don't have to import types package.

// Amount is re-exported from types package.
type Amount = types.Amount

// BPS is re-exported from types package.
type BPS = types.BPS

// Principal is re-exported from types package.
type Principal = types.Principal

// OrderID is re-exported from types package.
type OrderID = types.OrderID

// CycleID is re-exported from types package.
type CycleID = types.CycleID

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export constructors
var (
	Units      = types.Units
	NewOrderID = types.NewOrderID
	CycleIDFor = types.CycleIDFor
	NewEntity  = types.NewEntity
)

package bnpl

import "github.com/xraph/bnpl/id"

// ID is the primary identifier type for all bnpl records.
type ID = id.ID

// Prefix identifies the record kind encoded in a TypeID.
type Prefix = id.Prefix

// Package store defines the unified persistence interface for bnpl records.
package store

import (
	"context"

	"github.com/xraph/bnpl/credit"
	"github.com/xraph/bnpl/note"
	"github.com/xraph/bnpl/pool"
	"github.com/xraph/bnpl/vault"
)

// Store is the unified storage interface for all bnpl records. Each backend
// maps duplicate keys to bnpl.ErrAlreadyExists and missing rows to the
// record's not-found error.
type Store interface {
	credit.Store
	note.Store
	vault.Store
	pool.Store

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

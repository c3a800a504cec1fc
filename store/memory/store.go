// Package memory provides an in-process Store. Records are copied on the way
// in and out so callers never alias stored state.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xraph/bnpl"
	"github.com/xraph/bnpl/credit"
	"github.com/xraph/bnpl/id"
	"github.com/xraph/bnpl/note"
	"github.com/xraph/bnpl/pool"
	"github.com/xraph/bnpl/types"
	"github.com/xraph/bnpl/vault"
)

type Store struct {
	mu sync.RWMutex

	accounts     map[string]credit.Account
	riskConfigs  map[string]credit.RiskConfig
	statements   map[string]credit.Statement
	notes        map[string]note.Note
	positions    map[string]vault.Position
	vaultConfigs map[string]vault.Config
	pools        map[string]pool.Pool

	closed bool
}

func New() *Store {
	return &Store{
		accounts:     make(map[string]credit.Account),
		riskConfigs:  make(map[string]credit.RiskConfig),
		statements:   make(map[string]credit.Statement),
		notes:        make(map[string]note.Note),
		positions:    make(map[string]vault.Position),
		vaultConfigs: make(map[string]vault.Config),
		pools:        make(map[string]pool.Pool),
	}
}

// create, get and update are the shared map operations behind every record.

func create[T any](s *Store, m map[string]T, key string, v *T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return bnpl.ErrStoreClosed
	}
	if _, exists := m[key]; exists {
		return bnpl.ErrAlreadyExists
	}
	m[key] = *v
	return nil
}

func get[T any](s *Store, m map[string]T, key string, notFound error) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, bnpl.ErrStoreClosed
	}
	v, ok := m[key]
	if !ok {
		return nil, notFound
	}
	return &v, nil
}

func update[T any](s *Store, m map[string]T, key string, v *T, notFound error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return bnpl.ErrStoreClosed
	}
	if _, exists := m[key]; !exists {
		return notFound
	}
	m[key] = *v
	return nil
}

func page[T any](items []*T, limit, offset int) []*T {
	start := offset
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if limit == 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// ──────────────────────────────────────────────────
// Credit
// ──────────────────────────────────────────────────

func (s *Store) CreateAccount(_ context.Context, a *credit.Account) error {
	return create(s, s.accounts, a.ID.String(), a)
}

func (s *Store) GetAccount(_ context.Context, accountID id.AccountID) (*credit.Account, error) {
	return get(s, s.accounts, accountID.String(), bnpl.ErrAccountNotFound)
}

func (s *Store) UpdateAccount(_ context.Context, a *credit.Account) error {
	return update(s, s.accounts, a.ID.String(), a, bnpl.ErrAccountNotFound)
}

func (s *Store) ListAccounts(_ context.Context, opts credit.ListOpts) ([]*credit.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*credit.Account, 0)
	for _, a := range s.accounts {
		if opts.Status != "" && a.Status != opts.Status {
			continue
		}
		if opts.OnlyOutstanding && a.Used == 0 {
			continue
		}
		result = append(result, &a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Owner < result[j].Owner })

	return page(result, opts.Limit, opts.Offset), nil
}

func (s *Store) CreateRiskConfig(_ context.Context, c *credit.RiskConfig) error {
	return create(s, s.riskConfigs, c.ID.String(), c)
}

func (s *Store) GetRiskConfig(_ context.Context, configID id.RiskConfigID) (*credit.RiskConfig, error) {
	return get(s, s.riskConfigs, configID.String(), bnpl.ErrRiskConfigNotFound)
}

func (s *Store) UpdateRiskConfig(_ context.Context, c *credit.RiskConfig) error {
	return update(s, s.riskConfigs, c.ID.String(), c, bnpl.ErrRiskConfigNotFound)
}

func (s *Store) CreateStatement(_ context.Context, st *credit.Statement) error {
	return create(s, s.statements, st.ID.String(), st)
}

func (s *Store) GetStatement(_ context.Context, statementID id.StatementID) (*credit.Statement, error) {
	return get(s, s.statements, statementID.String(), bnpl.ErrStatementNotFound)
}

func (s *Store) ListStatements(_ context.Context, owner types.Principal, opts credit.ListOpts) ([]*credit.Statement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*credit.Statement, 0)
	for _, st := range s.statements {
		if st.Owner != owner {
			continue
		}
		result = append(result, &st)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ClosedAt.After(result[j].ClosedAt) })

	return page(result, opts.Limit, opts.Offset), nil
}

// ──────────────────────────────────────────────────
// Notes
// ──────────────────────────────────────────────────

func (s *Store) CreateNote(_ context.Context, n *note.Note) error {
	return create(s, s.notes, n.ID.String(), n)
}

func (s *Store) GetNote(_ context.Context, noteID id.NoteID) (*note.Note, error) {
	return get(s, s.notes, noteID.String(), bnpl.ErrNoteNotFound)
}

func (s *Store) UpdateNote(_ context.Context, n *note.Note) error {
	return update(s, s.notes, n.ID.String(), n, bnpl.ErrNoteNotFound)
}

func (s *Store) ListNotes(_ context.Context, opts note.ListOpts) ([]*note.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*note.Note, 0)
	for _, n := range s.notes {
		if !opts.Matches(&n) {
			continue
		}
		result = append(result, &n)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].DueAt.Equal(result[j].DueAt) {
			return result[i].DueAt.Before(result[j].DueAt)
		}
		return result[i].ID.String() < result[j].ID.String()
	})

	return page(result, opts.Limit, opts.Offset), nil
}

// ──────────────────────────────────────────────────
// Vault
// ──────────────────────────────────────────────────

func (s *Store) CreatePosition(_ context.Context, p *vault.Position) error {
	return create(s, s.positions, p.ID.String(), p)
}

func (s *Store) GetPosition(_ context.Context, positionID id.PositionID) (*vault.Position, error) {
	return get(s, s.positions, positionID.String(), bnpl.ErrPositionNotFound)
}

func (s *Store) UpdatePosition(_ context.Context, p *vault.Position) error {
	return update(s, s.positions, p.ID.String(), p, bnpl.ErrPositionNotFound)
}

func (s *Store) ListPositions(_ context.Context, owner types.Principal) ([]*vault.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*vault.Position, 0)
	for _, p := range s.positions {
		if p.Owner != owner {
			continue
		}
		result = append(result, &p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Asset < result[j].Asset })
	return result, nil
}

func (s *Store) CreateVaultConfig(_ context.Context, c *vault.Config) error {
	return create(s, s.vaultConfigs, c.ID.String(), c)
}

func (s *Store) GetVaultConfig(_ context.Context, configID id.VaultConfigID) (*vault.Config, error) {
	return get(s, s.vaultConfigs, configID.String(), bnpl.ErrVaultConfigNotFound)
}

func (s *Store) UpdateVaultConfig(_ context.Context, c *vault.Config) error {
	return update(s, s.vaultConfigs, c.ID.String(), c, bnpl.ErrVaultConfigNotFound)
}

// ──────────────────────────────────────────────────
// Pools
// ──────────────────────────────────────────────────

func (s *Store) CreatePool(_ context.Context, p *pool.Pool) error {
	return create(s, s.pools, p.ID.String(), p)
}

func (s *Store) GetPool(_ context.Context, poolID id.PoolID) (*pool.Pool, error) {
	return get(s, s.pools, poolID.String(), bnpl.ErrPoolNotFound)
}

func (s *Store) UpdatePool(_ context.Context, p *pool.Pool) error {
	return update(s, s.pools, p.ID.String(), p, bnpl.ErrPoolNotFound)
}

// ──────────────────────────────────────────────────
// Core
// ──────────────────────────────────────────────────

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return bnpl.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

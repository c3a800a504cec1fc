// Package postgres implements store.Store on PostgreSQL through the grove ORM.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/bnpl"
	"github.com/xraph/bnpl/credit"
	"github.com/xraph/bnpl/id"
	"github.com/xraph/bnpl/note"
	"github.com/xraph/bnpl/pool"
	bnplstore "github.com/xraph/bnpl/store"
	"github.com/xraph/bnpl/store/sqlmodel"
	"github.com/xraph/bnpl/types"
	"github.com/xraph/bnpl/vault"
)

// compile-time interface check
var _ bnplstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("bnpl/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: postgres: %w", bnpl.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Credit Store ====================

func (s *Store) CreateAccount(ctx context.Context, a *credit.Account) error {
	res, err := s.pg.NewInsert(sqlmodel.FromAccount(a)).
		OnConflict("(id) DO NOTHING").
		Exec(ctx)
	return inserted(res, err)
}

func (s *Store) GetAccount(ctx context.Context, accountID id.AccountID) (*credit.Account, error) {
	m := new(sqlmodel.Account)
	err := s.pg.NewSelect(m).
		Where("id = $1", accountID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, bnpl.ErrAccountNotFound
		}
		return nil, err
	}
	return m.ToAccount()
}

func (s *Store) UpdateAccount(ctx context.Context, a *credit.Account) error {
	res, err := s.pg.NewUpdate(sqlmodel.FromAccount(a)).WherePK().Exec(ctx)
	return updated(res, err, bnpl.ErrAccountNotFound)
}

func (s *Store) ListAccounts(ctx context.Context, opts credit.ListOpts) ([]*credit.Account, error) {
	var models []sqlmodel.Account
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.Status != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("status = $%d", argIdx), string(opts.Status))
	}
	if opts.OnlyOutstanding {
		q = q.Where("used <> 0")
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("owner ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*credit.Account, len(models))
	for i := range models {
		a, err := models[i].ToAccount()
		if err != nil {
			return nil, err
		}
		result[i] = a
	}
	return result, nil
}

func (s *Store) CreateRiskConfig(ctx context.Context, c *credit.RiskConfig) error {
	res, err := s.pg.NewInsert(sqlmodel.FromRiskConfig(c)).
		OnConflict("(id) DO NOTHING").
		Exec(ctx)
	return inserted(res, err)
}

func (s *Store) GetRiskConfig(ctx context.Context, configID id.RiskConfigID) (*credit.RiskConfig, error) {
	m := new(sqlmodel.RiskConfig)
	err := s.pg.NewSelect(m).
		Where("id = $1", configID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, bnpl.ErrRiskConfigNotFound
		}
		return nil, err
	}
	return m.ToRiskConfig()
}

func (s *Store) UpdateRiskConfig(ctx context.Context, c *credit.RiskConfig) error {
	res, err := s.pg.NewUpdate(sqlmodel.FromRiskConfig(c)).WherePK().Exec(ctx)
	return updated(res, err, bnpl.ErrRiskConfigNotFound)
}

func (s *Store) CreateStatement(ctx context.Context, st *credit.Statement) error {
	res, err := s.pg.NewInsert(sqlmodel.FromStatement(st)).
		OnConflict("(id) DO NOTHING").
		Exec(ctx)
	return inserted(res, err)
}

func (s *Store) GetStatement(ctx context.Context, statementID id.StatementID) (*credit.Statement, error) {
	m := new(sqlmodel.Statement)
	err := s.pg.NewSelect(m).
		Where("id = $1", statementID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, bnpl.ErrStatementNotFound
		}
		return nil, err
	}
	return m.ToStatement()
}

func (s *Store) ListStatements(ctx context.Context, owner types.Principal, opts credit.ListOpts) ([]*credit.Statement, error) {
	var models []sqlmodel.Statement
	q := s.pg.NewSelect(&models).Where("owner = $1", string(owner))

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("closed_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*credit.Statement, len(models))
	for i := range models {
		st, err := models[i].ToStatement()
		if err != nil {
			return nil, err
		}
		result[i] = st
	}
	return result, nil
}

// ==================== Note Store ====================

func (s *Store) CreateNote(ctx context.Context, n *note.Note) error {
	res, err := s.pg.NewInsert(sqlmodel.FromNote(n)).
		OnConflict("(id) DO NOTHING").
		Exec(ctx)
	return inserted(res, err)
}

func (s *Store) GetNote(ctx context.Context, noteID id.NoteID) (*note.Note, error) {
	m := new(sqlmodel.Note)
	err := s.pg.NewSelect(m).
		Where("id = $1", noteID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, bnpl.ErrNoteNotFound
		}
		return nil, err
	}
	return m.ToNote()
}

func (s *Store) UpdateNote(ctx context.Context, n *note.Note) error {
	res, err := s.pg.NewUpdate(sqlmodel.FromNote(n)).WherePK().Exec(ctx)
	return updated(res, err, bnpl.ErrNoteNotFound)
}

func (s *Store) ListNotes(ctx context.Context, opts note.ListOpts) ([]*note.Note, error) {
	var models []sqlmodel.Note
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.OrderID != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("order_id = $%d", argIdx), opts.OrderID.String())
	}
	if opts.Buyer != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("buyer = $%d", argIdx), string(opts.Buyer))
	}
	if opts.Beneficiary != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("beneficiary = $%d", argIdx), string(opts.Beneficiary))
	}
	if len(opts.Statuses) > 0 {
		q = q.Where(fmt.Sprintf("status IN (%s)", placeholders(argIdx+1, len(opts.Statuses))), sqlmodel.NoteStatuses(opts.Statuses)...)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("due_at ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*note.Note, len(models))
	for i := range models {
		n, err := models[i].ToNote()
		if err != nil {
			return nil, err
		}
		result[i] = n
	}
	return result, nil
}

// ==================== Vault Store ====================

func (s *Store) CreatePosition(ctx context.Context, p *vault.Position) error {
	res, err := s.pg.NewInsert(sqlmodel.FromPosition(p)).
		OnConflict("(id) DO NOTHING").
		Exec(ctx)
	return inserted(res, err)
}

func (s *Store) GetPosition(ctx context.Context, positionID id.PositionID) (*vault.Position, error) {
	m := new(sqlmodel.Position)
	err := s.pg.NewSelect(m).
		Where("id = $1", positionID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, bnpl.ErrPositionNotFound
		}
		return nil, err
	}
	return m.ToPosition()
}

func (s *Store) UpdatePosition(ctx context.Context, p *vault.Position) error {
	res, err := s.pg.NewUpdate(sqlmodel.FromPosition(p)).WherePK().Exec(ctx)
	return updated(res, err, bnpl.ErrPositionNotFound)
}

func (s *Store) ListPositions(ctx context.Context, owner types.Principal) ([]*vault.Position, error) {
	var models []sqlmodel.Position
	err := s.pg.NewSelect(&models).
		Where("owner = $1", string(owner)).
		OrderExpr("asset ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*vault.Position, len(models))
	for i := range models {
		p, err := models[i].ToPosition()
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

func (s *Store) CreateVaultConfig(ctx context.Context, c *vault.Config) error {
	res, err := s.pg.NewInsert(sqlmodel.FromVaultConfig(c)).
		OnConflict("(id) DO NOTHING").
		Exec(ctx)
	return inserted(res, err)
}

func (s *Store) GetVaultConfig(ctx context.Context, configID id.VaultConfigID) (*vault.Config, error) {
	m := new(sqlmodel.VaultConfig)
	err := s.pg.NewSelect(m).
		Where("id = $1", configID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, bnpl.ErrVaultConfigNotFound
		}
		return nil, err
	}
	return m.ToVaultConfig()
}

func (s *Store) UpdateVaultConfig(ctx context.Context, c *vault.Config) error {
	res, err := s.pg.NewUpdate(sqlmodel.FromVaultConfig(c)).WherePK().Exec(ctx)
	return updated(res, err, bnpl.ErrVaultConfigNotFound)
}

// ==================== Pool Store ====================

func (s *Store) CreatePool(ctx context.Context, p *pool.Pool) error {
	res, err := s.pg.NewInsert(sqlmodel.FromPool(p)).
		OnConflict("(id) DO NOTHING").
		Exec(ctx)
	return inserted(res, err)
}

func (s *Store) GetPool(ctx context.Context, poolID id.PoolID) (*pool.Pool, error) {
	m := new(sqlmodel.Pool)
	err := s.pg.NewSelect(m).
		Where("id = $1", poolID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, bnpl.ErrPoolNotFound
		}
		return nil, err
	}
	return m.ToPool()
}

func (s *Store) UpdatePool(ctx context.Context, p *pool.Pool) error {
	res, err := s.pg.NewUpdate(sqlmodel.FromPool(p)).WherePK().Exec(ctx)
	return updated(res, err, bnpl.ErrPoolNotFound)
}

// ==================== Helpers ====================

type rowsAffected interface {
	RowsAffected() (int64, error)
}

// inserted maps an insert that hit the primary-key conflict clause to
// bnpl.ErrAlreadyExists.
func inserted(res rowsAffected, err error) error {
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return bnpl.ErrAlreadyExists
	}
	return nil
}

// updated maps an update that matched no row to notFound.
func updated(res rowsAffected, err error, notFound error) error {
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

// placeholders returns "$start, $start+1, ..." for n arguments.
func placeholders(start, n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(ps, ", ")
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// Package mongo implements store.Store on MongoDB through the grove ORM.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/bnpl"
	"github.com/xraph/bnpl/credit"
	"github.com/xraph/bnpl/id"
	"github.com/xraph/bnpl/note"
	"github.com/xraph/bnpl/pool"
	bnplstore "github.com/xraph/bnpl/store"
	"github.com/xraph/bnpl/types"
	"github.com/xraph/bnpl/vault"
)

// Collection name constants.
const (
	colAccounts     = "bnpl_credit_accounts"
	colRiskConfigs  = "bnpl_risk_configs"
	colStatements   = "bnpl_statements"
	colNotes        = "bnpl_notes"
	colPositions    = "bnpl_positions"
	colVaultConfigs = "bnpl_vault_configs"
	colPools        = "bnpl_pools"
)

// compile-time interface check
var _ bnplstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all bnpl collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("%w: mongo: %s indexes: %w", bnpl.ErrMigrationFailed, col, err)
		}
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
	return s.insert(ctx, toAccountModel(a), "account")
}

func (s *Store) GetAccount(ctx context.Context, accountID id.AccountID) (*credit.Account, error) {
	var m accountModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": accountID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, bnpl.ErrAccountNotFound
		}
		return nil, fmt.Errorf("bnpl/mongo: get account: %w", err)
	}
	return fromAccountModel(&m)
}

func (s *Store) UpdateAccount(ctx context.Context, a *credit.Account) error {
	m := toAccountModel(a)
	return s.update(ctx, m, m.ID, "account", bnpl.ErrAccountNotFound)
}

func (s *Store) ListAccounts(ctx context.Context, opts credit.ListOpts) ([]*credit.Account, error) {
	var models []accountModel

	filter := bson.M{}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}
	if opts.OnlyOutstanding {
		filter["used"] = bson.M{"$ne": int64(0)}
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "owner", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bnpl/mongo: list accounts: %w", err)
	}

	result := make([]*credit.Account, len(models))
	for i := range models {
		a, err := fromAccountModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = a
	}
	return result, nil
}

func (s *Store) CreateRiskConfig(ctx context.Context, c *credit.RiskConfig) error {
	return s.insert(ctx, toRiskConfigModel(c), "risk config")
}

func (s *Store) GetRiskConfig(ctx context.Context, configID id.RiskConfigID) (*credit.RiskConfig, error) {
	var m riskConfigModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": configID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, bnpl.ErrRiskConfigNotFound
		}
		return nil, fmt.Errorf("bnpl/mongo: get risk config: %w", err)
	}
	return fromRiskConfigModel(&m)
}

func (s *Store) UpdateRiskConfig(ctx context.Context, c *credit.RiskConfig) error {
	m := toRiskConfigModel(c)
	return s.update(ctx, m, m.ID, "risk config", bnpl.ErrRiskConfigNotFound)
}

func (s *Store) CreateStatement(ctx context.Context, st *credit.Statement) error {
	return s.insert(ctx, toStatementModel(st), "statement")
}

func (s *Store) GetStatement(ctx context.Context, statementID id.StatementID) (*credit.Statement, error) {
	var m statementModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": statementID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, bnpl.ErrStatementNotFound
		}
		return nil, fmt.Errorf("bnpl/mongo: get statement: %w", err)
	}
	return fromStatementModel(&m)
}

func (s *Store) ListStatements(ctx context.Context, owner types.Principal, opts credit.ListOpts) ([]*credit.Statement, error) {
	var models []statementModel

	q := s.mdb.NewFind(&models).
		Filter(bson.M{"owner": string(owner)}).
		Sort(bson.D{{Key: "closed_at", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bnpl/mongo: list statements: %w", err)
	}

	result := make([]*credit.Statement, len(models))
	for i := range models {
		st, err := fromStatementModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = st
	}
	return result, nil
}

// ==================== Note Store ====================

func (s *Store) CreateNote(ctx context.Context, n *note.Note) error {
	return s.insert(ctx, toNoteModel(n), "note")
}

func (s *Store) GetNote(ctx context.Context, noteID id.NoteID) (*note.Note, error) {
	var m noteModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": noteID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, bnpl.ErrNoteNotFound
		}
		return nil, fmt.Errorf("bnpl/mongo: get note: %w", err)
	}
	return fromNoteModel(&m)
}

func (s *Store) UpdateNote(ctx context.Context, n *note.Note) error {
	m := toNoteModel(n)
	return s.update(ctx, m, m.ID, "note", bnpl.ErrNoteNotFound)
}

func (s *Store) ListNotes(ctx context.Context, opts note.ListOpts) ([]*note.Note, error) {
	var models []noteModel

	filter := bson.M{}
	if opts.OrderID != nil {
		filter["order_id"] = opts.OrderID.String()
	}
	if opts.Buyer != "" {
		filter["buyer"] = string(opts.Buyer)
	}
	if opts.Beneficiary != "" {
		filter["beneficiary"] = string(opts.Beneficiary)
	}
	if len(opts.Statuses) > 0 {
		statuses := make(bson.A, len(opts.Statuses))
		for i, st := range opts.Statuses {
			statuses[i] = int(st)
		}
		filter["status"] = bson.M{"$in": statuses}
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "due_at", Value: 1}, {Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bnpl/mongo: list notes: %w", err)
	}

	result := make([]*note.Note, len(models))
	for i := range models {
		n, err := fromNoteModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = n
	}
	return result, nil
}

// ==================== Vault Store ====================

func (s *Store) CreatePosition(ctx context.Context, p *vault.Position) error {
	return s.insert(ctx, toPositionModel(p), "position")
}

func (s *Store) GetPosition(ctx context.Context, positionID id.PositionID) (*vault.Position, error) {
	var m positionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": positionID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, bnpl.ErrPositionNotFound
		}
		return nil, fmt.Errorf("bnpl/mongo: get position: %w", err)
	}
	return fromPositionModel(&m)
}

func (s *Store) UpdatePosition(ctx context.Context, p *vault.Position) error {
	m := toPositionModel(p)
	return s.update(ctx, m, m.ID, "position", bnpl.ErrPositionNotFound)
}

func (s *Store) ListPositions(ctx context.Context, owner types.Principal) ([]*vault.Position, error) {
	var models []positionModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"owner": string(owner)}).
		Sort(bson.D{{Key: "asset", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bnpl/mongo: list positions: %w", err)
	}

	result := make([]*vault.Position, len(models))
	for i := range models {
		p, err := fromPositionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

func (s *Store) CreateVaultConfig(ctx context.Context, c *vault.Config) error {
	return s.insert(ctx, toVaultConfigModel(c), "vault config")
}

func (s *Store) GetVaultConfig(ctx context.Context, configID id.VaultConfigID) (*vault.Config, error) {
	var m vaultConfigModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": configID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, bnpl.ErrVaultConfigNotFound
		}
		return nil, fmt.Errorf("bnpl/mongo: get vault config: %w", err)
	}
	return fromVaultConfigModel(&m)
}

func (s *Store) UpdateVaultConfig(ctx context.Context, c *vault.Config) error {
	m := toVaultConfigModel(c)
	return s.update(ctx, m, m.ID, "vault config", bnpl.ErrVaultConfigNotFound)
}

// ==================== Pool Store ====================

func (s *Store) CreatePool(ctx context.Context, p *pool.Pool) error {
	return s.insert(ctx, toPoolModel(p), "pool")
}

func (s *Store) GetPool(ctx context.Context, poolID id.PoolID) (*pool.Pool, error) {
	var m poolModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": poolID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, bnpl.ErrPoolNotFound
		}
		return nil, fmt.Errorf("bnpl/mongo: get pool: %w", err)
	}
	return fromPoolModel(&m)
}

func (s *Store) UpdatePool(ctx context.Context, p *pool.Pool) error {
	m := toPoolModel(p)
	return s.update(ctx, m, m.ID, "pool", bnpl.ErrPoolNotFound)
}

// ==================== Helpers ====================

// insert writes a new document, mapping a duplicate _id or unique index
// violation to bnpl.ErrAlreadyExists.
func (s *Store) insert(ctx context.Context, m any, what string) error {
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return bnpl.ErrAlreadyExists
		}
		return fmt.Errorf("bnpl/mongo: create %s: %w", what, err)
	}
	return nil
}

func (s *Store) update(ctx context.Context, m any, docID, what string, notFound error) error {
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": docID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bnpl/mongo: update %s: %w", what, err)
	}
	if res.MatchedCount() == 0 {
		return notFound
	}
	return nil
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all bnpl collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colAccounts: {
			{
				Keys:    bson.D{{Key: "owner", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "owner", Value: 1}}},
		},
		colRiskConfigs: {},
		colStatements: {
			{
				Keys:    bson.D{{Key: "owner", Value: 1}, {Key: "cycle_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "closed_at", Value: -1}}},
		},
		colNotes: {
			{
				Keys:    bson.D{{Key: "order_id", Value: 1}, {Key: "idx", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "due_at", Value: 1}}},
			{Keys: bson.D{{Key: "buyer", Value: 1}}},
			{Keys: bson.D{{Key: "beneficiary", Value: 1}}},
		},
		colPositions: {
			{
				Keys:    bson.D{{Key: "owner", Value: 1}, {Key: "asset", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colVaultConfigs: {},
		colPools:        {},
	}
}

// Package sqlmodel holds the grove row models shared by the PostgreSQL and
// SQLite stores, and their conversions to and from the domain records.
//
// Amounts are unsigned 64-bit values stored in signed BIGINT/INTEGER
// columns by bit pattern, so the full range round-trips. Queries compare
// amounts only for equality with zero.
package sqlmodel

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/bnpl/credit"
	"github.com/xraph/bnpl/id"
	"github.com/xraph/bnpl/note"
	"github.com/xraph/bnpl/pool"
	"github.com/xraph/bnpl/types"
	"github.com/xraph/bnpl/vault"
)

// Table names.
const (
	TableAccounts     = "bnpl_credit_accounts"
	TableRiskConfigs  = "bnpl_risk_configs"
	TableStatements   = "bnpl_statements"
	TableNotes        = "bnpl_notes"
	TablePositions    = "bnpl_positions"
	TableVaultConfigs = "bnpl_vault_configs"
	TablePools        = "bnpl_pools"
)

func amount(a types.Amount) int64   { return int64(a) } //nolint:gosec // bit-preserving
func toAmount(v int64) types.Amount { return types.Amount(v) } //nolint:gosec // bit-preserving

func entity(created, updated time.Time) types.Entity {
	return types.Entity{CreatedAt: created.UTC(), UpdatedAt: updated.UTC()}
}

// ==================== Credit models ====================

// Account is a credit account row.
type Account struct {
	grove.BaseModel `grove:"table:bnpl_credit_accounts"`

	ID              string    `grove:"id,pk"`
	Owner           string    `grove:"owner"`
	CreditLimit     int64     `grove:"credit_limit"`
	Used            int64     `grove:"used"`
	HealthFactor    int64     `grove:"health_factor"`
	Score           int64     `grove:"score"`
	BillingCycleDay int       `grove:"billing_cycle_day"`
	Status          string    `grove:"status"`
	CreatedAt       time.Time `grove:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at"`
}

// FromAccount converts a domain account to its row.
func FromAccount(a *credit.Account) *Account {
	return &Account{
		ID:              a.ID.String(),
		Owner:           string(a.Owner),
		CreditLimit:     amount(a.Limit),
		Used:            amount(a.Used),
		HealthFactor:    int64(a.HealthFactor),
		Score:           int64(a.Score),
		BillingCycleDay: int(a.BillingCycleDay),
		Status:          string(a.Status),
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

// ToAccount converts the row to a domain account.
func (m *Account) ToAccount() (*credit.Account, error) {
	accountID, err := id.ParseAccountID(m.ID)
	if err != nil {
		return nil, err
	}
	return &credit.Account{
		Entity:          entity(m.CreatedAt, m.UpdatedAt),
		ID:              accountID,
		Owner:           types.Principal(m.Owner),
		Limit:           toAmount(m.CreditLimit),
		Used:            toAmount(m.Used),
		HealthFactor:    types.BPS(m.HealthFactor), //nolint:gosec // written from a BPS
		Score:           uint32(m.Score),           //nolint:gosec // written from a uint32
		BillingCycleDay: uint8(m.BillingCycleDay),  //nolint:gosec // written from a uint8
		Status:          credit.Status(m.Status),
	}, nil
}

// RiskConfig is the risk configuration row.
type RiskConfig struct {
	grove.BaseModel `grove:"table:bnpl_risk_configs"`

	ID                  string    `grove:"id,pk"`
	MinHFForCharges     int64     `grove:"min_hf_for_charges"`
	MinHFForWithdraw    int64     `grove:"min_hf_for_withdraw"`
	PenaltyRateDailyBps int64     `grove:"penalty_rate_daily_bps"`
	LateFeeBps          int64     `grove:"late_fee_bps"`
	GraceVolatileDays   int       `grove:"grace_volatile_days"`
	GraceAnyDays        int       `grove:"grace_any_days"`
	MinPaymentBps       int64     `grove:"min_payment_bps"`
	Admin               string    `grove:"admin"`
	CreatedAt           time.Time `grove:"created_at"`
	UpdatedAt           time.Time `grove:"updated_at"`
}

// FromRiskConfig converts a domain risk configuration to its row.
func FromRiskConfig(c *credit.RiskConfig) *RiskConfig {
	return &RiskConfig{
		ID:                  c.ID.String(),
		MinHFForCharges:     int64(c.MinHFForCharges),
		MinHFForWithdraw:    int64(c.MinHFForWithdraw),
		PenaltyRateDailyBps: int64(c.PenaltyRateDailyBps),
		LateFeeBps:          int64(c.LateFeeBps),
		GraceVolatileDays:   int(c.GraceVolatileDays),
		GraceAnyDays:        int(c.GraceAnyDays),
		MinPaymentBps:       int64(c.MinPaymentBps),
		Admin:               string(c.Admin),
		CreatedAt:           c.CreatedAt,
		UpdatedAt:           c.UpdatedAt,
	}
}

// ToRiskConfig converts the row to a domain risk configuration.
//
//nolint:gosec // narrowing conversions restore values written from the same types
func (m *RiskConfig) ToRiskConfig() (*credit.RiskConfig, error) {
	configID, err := id.ParseRiskConfigID(m.ID)
	if err != nil {
		return nil, err
	}
	return &credit.RiskConfig{
		Entity:              entity(m.CreatedAt, m.UpdatedAt),
		ID:                  configID,
		MinHFForCharges:     types.BPS(m.MinHFForCharges),
		MinHFForWithdraw:    types.BPS(m.MinHFForWithdraw),
		PenaltyRateDailyBps: types.BPS(m.PenaltyRateDailyBps),
		LateFeeBps:          types.BPS(m.LateFeeBps),
		GraceVolatileDays:   uint8(m.GraceVolatileDays),
		GraceAnyDays:        uint8(m.GraceAnyDays),
		MinPaymentBps:       types.BPS(m.MinPaymentBps),
		Admin:               types.Principal(m.Admin),
	}, nil
}

// Statement is a closed statement row.
type Statement struct {
	grove.BaseModel `grove:"table:bnpl_statements"`

	ID         string    `grove:"id,pk"`
	Owner      string    `grove:"owner"`
	CycleID    string    `grove:"cycle_id"`
	TotalDue   int64     `grove:"total_due"`
	MinPayment int64     `grove:"min_payment"`
	DueDate    time.Time `grove:"due_date"`
	ClosedAt   time.Time `grove:"closed_at"`
	CreatedAt  time.Time `grove:"created_at"`
	UpdatedAt  time.Time `grove:"updated_at"`
}

// FromStatement converts a domain statement to its row.
func FromStatement(s *credit.Statement) *Statement {
	return &Statement{
		ID:         s.ID.String(),
		Owner:      string(s.Owner),
		CycleID:    s.CycleID.String(),
		TotalDue:   amount(s.TotalDue),
		MinPayment: amount(s.MinPayment),
		DueDate:    s.DueDate,
		ClosedAt:   s.ClosedAt,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
}

// ToStatement converts the row to a domain statement.
func (m *Statement) ToStatement() (*credit.Statement, error) {
	statementID, err := id.ParseStatementID(m.ID)
	if err != nil {
		return nil, err
	}
	cycle, err := types.ParseCycleID(m.CycleID)
	if err != nil {
		return nil, err
	}
	return &credit.Statement{
		Entity:     entity(m.CreatedAt, m.UpdatedAt),
		ID:         statementID,
		Owner:      types.Principal(m.Owner),
		CycleID:    cycle,
		TotalDue:   toAmount(m.TotalDue),
		MinPayment: toAmount(m.MinPayment),
		DueDate:    m.DueDate.UTC(),
		ClosedAt:   m.ClosedAt.UTC(),
	}, nil
}

// ==================== Note models ====================

// Note is an installment note row. Status holds the stable ordinal.
type Note struct {
	grove.BaseModel `grove:"table:bnpl_notes"`

	ID          string    `grove:"id,pk"`
	OrderID     string    `grove:"order_id"`
	Idx         int       `grove:"idx"`
	Merchant    string    `grove:"merchant"`
	Beneficiary string    `grove:"beneficiary"`
	Buyer       string    `grove:"buyer"`
	Amount      int64     `grove:"amount"`
	DueAt       time.Time `grove:"due_at"`
	Status      int       `grove:"status"`
	CreatedAt   time.Time `grove:"created_at"`
	UpdatedAt   time.Time `grove:"updated_at"`
}

// FromNote converts a domain note to its row.
func FromNote(n *note.Note) *Note {
	return &Note{
		ID:          n.ID.String(),
		OrderID:     n.OrderID.String(),
		Idx:         int(n.Index),
		Merchant:    string(n.Merchant),
		Beneficiary: string(n.Beneficiary),
		Buyer:       string(n.Buyer),
		Amount:      amount(n.Amount),
		DueAt:       n.DueAt,
		Status:      int(n.Status),
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
	}
}

// ToNote converts the row to a domain note.
func (m *Note) ToNote() (*note.Note, error) {
	noteID, err := id.ParseNoteID(m.ID)
	if err != nil {
		return nil, err
	}
	orderID, err := types.ParseOrderID(m.OrderID)
	if err != nil {
		return nil, err
	}
	return &note.Note{
		Entity:      entity(m.CreatedAt, m.UpdatedAt),
		ID:          noteID,
		OrderID:     orderID,
		Index:       uint8(m.Idx), //nolint:gosec // written from a uint8
		Merchant:    types.Principal(m.Merchant),
		Beneficiary: types.Principal(m.Beneficiary),
		Buyer:       types.Principal(m.Buyer),
		Amount:      toAmount(m.Amount),
		DueAt:       m.DueAt.UTC(),
		Status:      note.Status(m.Status), //nolint:gosec // written from a note.Status
	}, nil
}

// ==================== Vault models ====================

// Position is a collateral position row.
type Position struct {
	grove.BaseModel `grove:"table:bnpl_positions"`

	ID        string    `grove:"id,pk"`
	Owner     string    `grove:"owner"`
	Asset     string    `grove:"asset"`
	Amount    int64     `grove:"amount"`
	LTV       int64     `grove:"ltv"`
	Valuation int64     `grove:"valuation"`
	CreatedAt time.Time `grove:"created_at"`
	UpdatedAt time.Time `grove:"updated_at"`
}

// FromPosition converts a domain position to its row.
func FromPosition(p *vault.Position) *Position {
	return &Position{
		ID:        p.ID.String(),
		Owner:     string(p.Owner),
		Asset:     p.Asset,
		Amount:    amount(p.Amount),
		LTV:       int64(p.LTV),
		Valuation: amount(p.Valuation),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// ToPosition converts the row to a domain position.
func (m *Position) ToPosition() (*vault.Position, error) {
	positionID, err := id.ParsePositionID(m.ID)
	if err != nil {
		return nil, err
	}
	return &vault.Position{
		Entity:    entity(m.CreatedAt, m.UpdatedAt),
		ID:        positionID,
		Owner:     types.Principal(m.Owner),
		Asset:     m.Asset,
		Amount:    toAmount(m.Amount),
		LTV:       types.BPS(m.LTV), //nolint:gosec // written from a BPS
		Valuation: toAmount(m.Valuation),
	}, nil
}

// VaultConfig is the vault configuration row. OracleMaxAge is stored in
// milliseconds.
type VaultConfig struct {
	grove.BaseModel `grove:"table:bnpl_vault_configs"`

	ID             string    `grove:"id,pk"`
	OraclePrimary  string    `grove:"oracle_primary"`
	OracleFallback string    `grove:"oracle_fallback"`
	SlippageMax    int64     `grove:"slippage_max"`
	OracleMaxAgeMS int64     `grove:"oracle_max_age_ms"`
	Admin          string    `grove:"admin"`
	CreatedAt      time.Time `grove:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"`
}

// FromVaultConfig converts a domain vault configuration to its row.
func FromVaultConfig(c *vault.Config) *VaultConfig {
	return &VaultConfig{
		ID:             c.ID.String(),
		OraclePrimary:  c.OraclePrimary,
		OracleFallback: c.OracleFallback,
		SlippageMax:    int64(c.SlippageMax),
		OracleMaxAgeMS: c.OracleMaxAge.Milliseconds(),
		Admin:          string(c.Admin),
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

// ToVaultConfig converts the row to a domain vault configuration.
func (m *VaultConfig) ToVaultConfig() (*vault.Config, error) {
	configID, err := id.ParseVaultConfigID(m.ID)
	if err != nil {
		return nil, err
	}
	return &vault.Config{
		Entity:         entity(m.CreatedAt, m.UpdatedAt),
		ID:             configID,
		OraclePrimary:  m.OraclePrimary,
		OracleFallback: m.OracleFallback,
		SlippageMax:    types.BPS(m.SlippageMax), //nolint:gosec // written from a BPS
		OracleMaxAge:   time.Duration(m.OracleMaxAgeMS) * time.Millisecond,
		Admin:          types.Principal(m.Admin),
	}, nil
}

// ==================== Pool models ====================

// Pool is an advance pool row.
type Pool struct {
	grove.BaseModel `grove:"table:bnpl_pools"`

	ID               string    `grove:"id,pk"`
	Custody          string    `grove:"custody"`
	GuaranteeReserve int64     `grove:"guarantee_reserve"`
	Admin            string    `grove:"admin"`
	CreatedAt        time.Time `grove:"created_at"`
	UpdatedAt        time.Time `grove:"updated_at"`
}

// FromPool converts a domain pool to its row.
func FromPool(p *pool.Pool) *Pool {
	return &Pool{
		ID:               p.ID.String(),
		Custody:          p.Custody,
		GuaranteeReserve: amount(p.GuaranteeReserve),
		Admin:            string(p.Admin),
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

// ToPool converts the row to a domain pool.
func (m *Pool) ToPool() (*pool.Pool, error) {
	poolID, err := id.ParsePoolID(m.ID)
	if err != nil {
		return nil, err
	}
	return &pool.Pool{
		Entity:           entity(m.CreatedAt, m.UpdatedAt),
		ID:               poolID,
		Custody:          m.Custody,
		GuaranteeReserve: toAmount(m.GuaranteeReserve),
		Admin:            types.Principal(m.Admin),
	}, nil
}

// NoteStatuses converts statuses to their stored ordinals.
func NoteStatuses(statuses []note.Status) []any {
	out := make([]any, len(statuses))
	for i, s := range statuses {
		out[i] = int(s)
	}
	return out
}

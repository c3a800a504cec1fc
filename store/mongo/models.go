package mongo

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

// Amounts are stored as int64 with the uint64 bit pattern preserved.

func amount(a types.Amount) int64   { return int64(a) } //nolint:gosec // bit-preserving
func toAmount(v int64) types.Amount { return types.Amount(v) } //nolint:gosec // bit-preserving

func entity(created, updated time.Time) types.Entity {
	return types.Entity{CreatedAt: created.UTC(), UpdatedAt: updated.UTC()}
}

// ==================== Credit models ====================

type accountModel struct {
	grove.BaseModel `grove:"table:bnpl_credit_accounts"`

	ID              string    `grove:"id,pk"             bson:"_id"`
	Owner           string    `grove:"owner"             bson:"owner"`
	CreditLimit     int64     `grove:"credit_limit"      bson:"credit_limit"`
	Used            int64     `grove:"used"              bson:"used"`
	HealthFactor    int64     `grove:"health_factor"     bson:"health_factor"`
	Score           int64     `grove:"score"             bson:"score"`
	BillingCycleDay int       `grove:"billing_cycle_day" bson:"billing_cycle_day"`
	Status          string    `grove:"status"            bson:"status"`
	CreatedAt       time.Time `grove:"created_at"        bson:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at"        bson:"updated_at"`
}

func toAccountModel(a *credit.Account) *accountModel {
	return &accountModel{
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

//nolint:gosec // narrowing conversions restore values written from the same types
func fromAccountModel(m *accountModel) (*credit.Account, error) {
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
		HealthFactor:    types.BPS(m.HealthFactor),
		Score:           uint32(m.Score),
		BillingCycleDay: uint8(m.BillingCycleDay),
		Status:          credit.Status(m.Status),
	}, nil
}

type riskConfigModel struct {
	grove.BaseModel `grove:"table:bnpl_risk_configs"`

	ID                  string    `grove:"id,pk"                  bson:"_id"`
	MinHFForCharges     int64     `grove:"min_hf_for_charges"     bson:"min_hf_for_charges"`
	MinHFForWithdraw    int64     `grove:"min_hf_for_withdraw"    bson:"min_hf_for_withdraw"`
	PenaltyRateDailyBps int64     `grove:"penalty_rate_daily_bps" bson:"penalty_rate_daily_bps"`
	LateFeeBps          int64     `grove:"late_fee_bps"           bson:"late_fee_bps"`
	GraceVolatileDays   int       `grove:"grace_volatile_days"    bson:"grace_volatile_days"`
	GraceAnyDays        int       `grove:"grace_any_days"         bson:"grace_any_days"`
	MinPaymentBps       int64     `grove:"min_payment_bps"        bson:"min_payment_bps"`
	Admin               string    `grove:"admin"                  bson:"admin"`
	CreatedAt           time.Time `grove:"created_at"             bson:"created_at"`
	UpdatedAt           time.Time `grove:"updated_at"             bson:"updated_at"`
}

func toRiskConfigModel(c *credit.RiskConfig) *riskConfigModel {
	return &riskConfigModel{
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

//nolint:gosec // narrowing conversions restore values written from the same types
func fromRiskConfigModel(m *riskConfigModel) (*credit.RiskConfig, error) {
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

type statementModel struct {
	grove.BaseModel `grove:"table:bnpl_statements"`

	ID         string    `grove:"id,pk"       bson:"_id"`
	Owner      string    `grove:"owner"       bson:"owner"`
	CycleID    string    `grove:"cycle_id"    bson:"cycle_id"`
	TotalDue   int64     `grove:"total_due"   bson:"total_due"`
	MinPayment int64     `grove:"min_payment" bson:"min_payment"`
	DueDate    time.Time `grove:"due_date"    bson:"due_date"`
	ClosedAt   time.Time `grove:"closed_at"   bson:"closed_at"`
	CreatedAt  time.Time `grove:"created_at"  bson:"created_at"`
	UpdatedAt  time.Time `grove:"updated_at"  bson:"updated_at"`
}

func toStatementModel(s *credit.Statement) *statementModel {
	return &statementModel{
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

func fromStatementModel(m *statementModel) (*credit.Statement, error) {
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

type noteModel struct {
	grove.BaseModel `grove:"table:bnpl_notes"`

	ID          string    `grove:"id,pk"       bson:"_id"`
	OrderID     string    `grove:"order_id"    bson:"order_id"`
	Idx         int       `grove:"idx"         bson:"idx"`
	Merchant    string    `grove:"merchant"    bson:"merchant"`
	Beneficiary string    `grove:"beneficiary" bson:"beneficiary"`
	Buyer       string    `grove:"buyer"       bson:"buyer"`
	Amount      int64     `grove:"amount"      bson:"amount"`
	DueAt       time.Time `grove:"due_at"      bson:"due_at"`
	Status      int       `grove:"status"      bson:"status"`
	CreatedAt   time.Time `grove:"created_at"  bson:"created_at"`
	UpdatedAt   time.Time `grove:"updated_at"  bson:"updated_at"`
}

func toNoteModel(n *note.Note) *noteModel {
	return &noteModel{
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

//nolint:gosec // narrowing conversions restore values written from the same types
func fromNoteModel(m *noteModel) (*note.Note, error) {
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
		Index:       uint8(m.Idx),
		Merchant:    types.Principal(m.Merchant),
		Beneficiary: types.Principal(m.Beneficiary),
		Buyer:       types.Principal(m.Buyer),
		Amount:      toAmount(m.Amount),
		DueAt:       m.DueAt.UTC(),
		Status:      note.Status(m.Status),
	}, nil
}

// ==================== Vault models ====================

type positionModel struct {
	grove.BaseModel `grove:"table:bnpl_positions"`

	ID        string    `grove:"id,pk"      bson:"_id"`
	Owner     string    `grove:"owner"      bson:"owner"`
	Asset     string    `grove:"asset"      bson:"asset"`
	Amount    int64     `grove:"amount"     bson:"amount"`
	LTV       int64     `grove:"ltv"        bson:"ltv"`
	Valuation int64     `grove:"valuation"  bson:"valuation"`
	CreatedAt time.Time `grove:"created_at" bson:"created_at"`
	UpdatedAt time.Time `grove:"updated_at" bson:"updated_at"`
}

func toPositionModel(p *vault.Position) *positionModel {
	return &positionModel{
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

func fromPositionModel(m *positionModel) (*vault.Position, error) {
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

type vaultConfigModel struct {
	grove.BaseModel `grove:"table:bnpl_vault_configs"`

	ID             string    `grove:"id,pk"             bson:"_id"`
	OraclePrimary  string    `grove:"oracle_primary"    bson:"oracle_primary"`
	OracleFallback string    `grove:"oracle_fallback"   bson:"oracle_fallback"`
	SlippageMax    int64     `grove:"slippage_max"      bson:"slippage_max"`
	OracleMaxAgeMS int64     `grove:"oracle_max_age_ms" bson:"oracle_max_age_ms"`
	Admin          string    `grove:"admin"             bson:"admin"`
	CreatedAt      time.Time `grove:"created_at"        bson:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"        bson:"updated_at"`
}

func toVaultConfigModel(c *vault.Config) *vaultConfigModel {
	return &vaultConfigModel{
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

func fromVaultConfigModel(m *vaultConfigModel) (*vault.Config, error) {
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

type poolModel struct {
	grove.BaseModel `grove:"table:bnpl_pools"`

	ID               string    `grove:"id,pk"             bson:"_id"`
	Custody          string    `grove:"custody"           bson:"custody"`
	GuaranteeReserve int64     `grove:"guarantee_reserve" bson:"guarantee_reserve"`
	Admin            string    `grove:"admin"             bson:"admin"`
	CreatedAt        time.Time `grove:"created_at"        bson:"created_at"`
	UpdatedAt        time.Time `grove:"updated_at"        bson:"updated_at"`
}

func toPoolModel(p *pool.Pool) *poolModel {
	return &poolModel{
		ID:               p.ID.String(),
		Custody:          p.Custody,
		GuaranteeReserve: amount(p.GuaranteeReserve),
		Admin:            string(p.Admin),
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func fromPoolModel(m *poolModel) (*pool.Pool, error) {
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

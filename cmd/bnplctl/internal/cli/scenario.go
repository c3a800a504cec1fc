package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/xraph/bnpl/credit"
	"github.com/xraph/bnpl/note"
	"github.com/xraph/bnpl/types"
)

// Step operations.
const (
	OpOpenAccount    = "open_account"
	OpSetLimit       = "set_limit"
	OpCharge         = "charge"
	OpRepay          = "repay"
	OpCloseStatement = "close_statement"
	OpSoftFreeze     = "soft_freeze"
	OpHardFreeze     = "hard_freeze"
	OpUnfreeze       = "unfreeze"
	OpOpenPosition   = "open_position"
	OpDeposit        = "deposit"
	OpWithdraw       = "withdraw"
	OpPublishPrice   = "publish_price"
	OpLiquidate      = "liquidate"
	OpInitPool       = "init_pool"
	OpReplenish      = "replenish"
	OpAdvance        = "advance"
	OpSettle         = "settle"
	OpMarkPaid       = "mark_paid"
	OpAssign         = "assign"
	OpAgeNote        = "age_note"
	OpWait           = "wait"
	OpRunJob         = "run_job"
	OpCheck          = "check"
)

// Scenario is a scripted sequence of ledger operations.
type Scenario struct {
	Name        string                     `yaml:"name"`
	Description string                     `yaml:"description,omitempty"`
	Start       time.Time                  `yaml:"start,omitempty"`
	Orders      map[string]types.Principal `yaml:"orders,omitempty"`
	Steps       []Step                     `yaml:"steps"`
}

// Step is one operation. Which fields apply depends on Op. Signer defaults
// to the owner for owner operations and to the configured admin for admin
// operations.
type Step struct {
	Op           string          `yaml:"op"`
	Signer       types.Principal `yaml:"signer,omitempty"`
	Owner        types.Principal `yaml:"owner,omitempty"`
	Amount       types.Amount    `yaml:"amount,omitempty"`
	Installments uint8           `yaml:"installments,omitempty"`
	Order        string          `yaml:"order,omitempty"`
	Index        uint8           `yaml:"index,omitempty"`
	Asset        string          `yaml:"asset,omitempty"`
	LTV          *types.BPS      `yaml:"ltv,omitempty"`
	Valuation    *types.Amount   `yaml:"valuation,omitempty"`
	Price        string          `yaml:"price,omitempty"`
	Source       string          `yaml:"source,omitempty"`
	To           types.Principal `yaml:"to,omitempty"`
	Duration     time.Duration   `yaml:"duration,omitempty"`
	Job          string          `yaml:"job,omitempty"`

	// Expect is a substring of the error the step must fail with.
	Expect string `yaml:"expect,omitempty"`
	Check  *Check `yaml:"check,omitempty"`
}

// Check asserts ledger state after a check step. Nil fields are not
// checked.
type Check struct {
	Used         *types.Amount             `yaml:"used,omitempty"`
	Limit        *types.Amount             `yaml:"limit,omitempty"`
	Status       *credit.Status            `yaml:"status,omitempty"`
	HealthFactor *types.BPS                `yaml:"health_factor,omitempty"`
	Notes        *int                      `yaml:"notes,omitempty"`
	NoteStatus   string                    `yaml:"note_status,omitempty"`
	Beneficiary  *types.Principal          `yaml:"beneficiary,omitempty"`
	Collateral   *types.Amount             `yaml:"collateral,omitempty"`
	Reserve      *types.Amount             `yaml:"reserve,omitempty"`
	Balances     map[types.Principal]int64 `yaml:"balances,omitempty"`
}

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate reports every malformed step.
func (s *Scenario) Validate() error {
	var errs []error
	if s.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if len(s.Steps) == 0 {
		errs = append(errs, errors.New("at least one step is required"))
	}
	for i, st := range s.Steps {
		if err := st.validate(); err != nil {
			errs = append(errs, fmt.Errorf("step %d (%s): %w", i+1, st.Op, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid scenario %q: %w", s.Name, errors.Join(errs...))
	}
	return nil
}

func (st Step) validate() error {
	var missing []string
	need := func(ok bool, field string) {
		if !ok {
			missing = append(missing, field)
		}
	}
	owner := func() { need(!st.Owner.IsZero(), "owner") }
	amount := func() { need(st.Amount > 0, "amount") }
	noteRef := func() { need(st.Order != "", "order") }

	switch st.Op {
	case OpOpenAccount, OpSetLimit, OpRepay, OpCloseStatement, OpSoftFreeze, OpHardFreeze, OpUnfreeze:
		owner()
	case OpCharge:
		owner()
		amount()
		need(st.Installments > 0, "installments")
		need(st.Order != "", "order")
	case OpOpenPosition:
		owner()
		need(st.Asset != "", "asset")
		need(st.LTV != nil, "ltv")
		need(st.Valuation != nil, "valuation")
	case OpDeposit, OpWithdraw:
		owner()
		need(st.Asset != "", "asset")
		amount()
	case OpPublishPrice:
		need(st.Asset != "", "asset")
		need(st.Source != "", "source")
		if _, err := decimal.NewFromString(st.Price); err != nil {
			return fmt.Errorf("price %q: %w", st.Price, err)
		}
	case OpLiquidate:
		owner()
		need(st.Asset != "", "asset")
		amount()
	case OpInitPool:
	case OpReplenish:
		amount()
	case OpAdvance, OpSettle, OpAgeNote:
		noteRef()
	case OpMarkPaid:
		noteRef()
		need(!st.Signer.IsZero(), "signer")
	case OpAssign:
		noteRef()
		need(!st.Signer.IsZero(), "signer")
		need(!st.To.IsZero(), "to")
	case OpWait:
		need(st.Duration > 0, "duration")
	case OpRunJob:
		need(st.Job != "", "job")
	case OpCheck:
		if st.Check == nil {
			return errors.New("check block is required")
		}
		if st.Check.NoteStatus != "" {
			if _, err := note.ParseStatus(st.Check.NoteStatus); err != nil {
				return err
			}
		}
	case "":
		return errors.New("op is required")
	default:
		return fmt.Errorf("unknown op %q", st.Op)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing %v", missing)
	}
	return nil
}

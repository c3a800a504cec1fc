package bnpl

import (
	"errors"
	"fmt"

	"github.com/xraph/bnpl/types"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("bnpl: not found")
	ErrAlreadyExists = errors.New("bnpl: already exists")
	ErrInvalidInput  = errors.New("bnpl: invalid input")

	// Authorization errors
	ErrUnauthorized = errors.New("bnpl: unauthorized")

	// Capacity errors
	ErrInsufficientLimit   = errors.New("bnpl: insufficient credit limit")
	ErrInsufficientAmount  = errors.New("bnpl: insufficient collateral amount")
	ErrInsufficientReserve = errors.New("bnpl: insufficient guarantee reserve")

	// Risk-gate errors
	ErrHfTooLow            = errors.New("bnpl: health factor too low for new charges")
	ErrHfTooLowForWithdraw = errors.New("bnpl: health factor too low for withdrawal")
	ErrOracleStale         = errors.New("bnpl: oracle price is stale")
	ErrSlippageExceeded    = errors.New("bnpl: slippage exceeded")

	// Policy errors
	ErrAccountFrozen          = errors.New("bnpl: account is frozen")
	ErrInstallmentsNotAllowed = errors.New("bnpl: installments not allowed")
	ErrUsedExceedsNewLimit    = errors.New("bnpl: used balance exceeds new limit")
	ErrInvalidTransition      = errors.New("bnpl: invalid status transition")

	// Record errors
	ErrAccountNotFound     = errors.New("bnpl: credit account not found")
	ErrRiskConfigNotFound  = errors.New("bnpl: risk config not found")
	ErrStatementNotFound   = errors.New("bnpl: statement not found")
	ErrNoteNotFound        = errors.New("bnpl: note not found")
	ErrPositionNotFound    = errors.New("bnpl: position not found")
	ErrVaultConfigNotFound = errors.New("bnpl: vault config not found")
	ErrPoolNotFound        = errors.New("bnpl: pool not found")

	// Arithmetic errors
	ErrOverflow = types.ErrOverflow

	// Store errors
	ErrStoreNotReady     = errors.New("bnpl: store not ready")
	ErrStoreClosed       = errors.New("bnpl: store is closed")
	ErrTransactionFailed = errors.New("bnpl: transaction failed")
	ErrMigrationFailed   = errors.New("bnpl: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("bnpl: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "bnpl: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("bnpl: %d errors occurred", len(e.Errors))
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// ErrOrNil returns e when it holds errors, otherwise nil.
func (e MultiError) ErrOrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrRiskConfigNotFound) ||
		errors.Is(err, ErrStatementNotFound) ||
		errors.Is(err, ErrNoteNotFound) ||
		errors.Is(err, ErrPositionNotFound) ||
		errors.Is(err, ErrVaultConfigNotFound) ||
		errors.Is(err, ErrPoolNotFound)
}

// IsAuthorization returns true if the signer lacked the required capability.
func IsAuthorization(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsCapacity returns true if a balance was too small for the operation.
func IsCapacity(err error) bool {
	return errors.Is(err, ErrInsufficientLimit) ||
		errors.Is(err, ErrInsufficientAmount) ||
		errors.Is(err, ErrInsufficientReserve)
}

// IsRiskGate returns true if a risk check rejected the operation.
func IsRiskGate(err error) bool {
	return errors.Is(err, ErrHfTooLow) ||
		errors.Is(err, ErrHfTooLowForWithdraw) ||
		errors.Is(err, ErrOracleStale) ||
		errors.Is(err, ErrSlippageExceeded)
}

// IsPolicy returns true if account or note policy rejected the operation.
func IsPolicy(err error) bool {
	return errors.Is(err, ErrAccountFrozen) ||
		errors.Is(err, ErrInstallmentsNotAllowed) ||
		errors.Is(err, ErrUsedExceedsNewLimit) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed) ||
		errors.Is(err, ErrOracleStale) ||
		errors.Is(err, ErrSlippageExceeded)
}

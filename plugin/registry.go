package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/bnpl/credit"
	"github.com/xraph/bnpl/note"
	"github.com/xraph/bnpl/pool"
	"github.com/xraph/bnpl/vault"
)

// DefaultTimeout bounds a single hook call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit                 []OnInit
	onShutdown             []OnShutdown
	onChargeAuthorized     []OnChargeAuthorized
	onPaymentPosted        []OnPaymentPosted
	onStatementClosed      []OnStatementClosed
	onAccountStatusChanged []OnAccountStatusChanged
	onNoteIssued           []OnNoteIssued
	onNoteStatusChanged    []OnNoteStatusChanged
	onBeneficiaryAssigned  []OnBeneficiaryAssigned
	onPositionOpened       []OnPositionOpened
	onCollateralDeposited  []OnCollateralDeposited
	onCollateralWithdrawn  []OnCollateralWithdrawn
	onCollateralLiquidated []OnCollateralLiquidated
	onAdvanced             []OnAdvanced
	onGuaranteeSettled     []OnGuaranteeSettled
	onReserveReplenished   []OnReserveReplenished
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout. Non-positive values are ignored.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnChargeAuthorized); ok {
		r.onChargeAuthorized = append(r.onChargeAuthorized, v)
	}
	if v, ok := p.(OnPaymentPosted); ok {
		r.onPaymentPosted = append(r.onPaymentPosted, v)
	}
	if v, ok := p.(OnStatementClosed); ok {
		r.onStatementClosed = append(r.onStatementClosed, v)
	}
	if v, ok := p.(OnAccountStatusChanged); ok {
		r.onAccountStatusChanged = append(r.onAccountStatusChanged, v)
	}
	if v, ok := p.(OnNoteIssued); ok {
		r.onNoteIssued = append(r.onNoteIssued, v)
	}
	if v, ok := p.(OnNoteStatusChanged); ok {
		r.onNoteStatusChanged = append(r.onNoteStatusChanged, v)
	}
	if v, ok := p.(OnBeneficiaryAssigned); ok {
		r.onBeneficiaryAssigned = append(r.onBeneficiaryAssigned, v)
	}
	if v, ok := p.(OnPositionOpened); ok {
		r.onPositionOpened = append(r.onPositionOpened, v)
	}
	if v, ok := p.(OnCollateralDeposited); ok {
		r.onCollateralDeposited = append(r.onCollateralDeposited, v)
	}
	if v, ok := p.(OnCollateralWithdrawn); ok {
		r.onCollateralWithdrawn = append(r.onCollateralWithdrawn, v)
	}
	if v, ok := p.(OnCollateralLiquidated); ok {
		r.onCollateralLiquidated = append(r.onCollateralLiquidated, v)
	}
	if v, ok := p.(OnAdvanced); ok {
		r.onAdvanced = append(r.onAdvanced, v)
	}
	if v, ok := p.(OnGuaranteeSettled); ok {
		r.onGuaranteeSettled = append(r.onGuaranteeSettled, v)
	}
	if v, ok := p.(OnReserveReplenished); ok {
		r.onReserveReplenished = append(r.onReserveReplenished, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeOf((*OnInit)(nil)).Elem()},
	{"OnShutdown", reflect.TypeOf((*OnShutdown)(nil)).Elem()},
	{"OnChargeAuthorized", reflect.TypeOf((*OnChargeAuthorized)(nil)).Elem()},
	{"OnPaymentPosted", reflect.TypeOf((*OnPaymentPosted)(nil)).Elem()},
	{"OnStatementClosed", reflect.TypeOf((*OnStatementClosed)(nil)).Elem()},
	{"OnAccountStatusChanged", reflect.TypeOf((*OnAccountStatusChanged)(nil)).Elem()},
	{"OnNoteIssued", reflect.TypeOf((*OnNoteIssued)(nil)).Elem()},
	{"OnNoteStatusChanged", reflect.TypeOf((*OnNoteStatusChanged)(nil)).Elem()},
	{"OnBeneficiaryAssigned", reflect.TypeOf((*OnBeneficiaryAssigned)(nil)).Elem()},
	{"OnPositionOpened", reflect.TypeOf((*OnPositionOpened)(nil)).Elem()},
	{"OnCollateralDeposited", reflect.TypeOf((*OnCollateralDeposited)(nil)).Elem()},
	{"OnCollateralWithdrawn", reflect.TypeOf((*OnCollateralWithdrawn)(nil)).Elem()},
	{"OnCollateralLiquidated", reflect.TypeOf((*OnCollateralLiquidated)(nil)).Elem()},
	{"OnAdvanced", reflect.TypeOf((*OnAdvanced)(nil)).Elem()},
	{"OnGuaranteeSettled", reflect.TypeOf((*OnGuaranteeSettled)(nil)).Elem()},
	{"OnReserveReplenished", reflect.TypeOf((*OnReserveReplenished)(nil)).Elem()},
}

// implementedInterfaces returns the hook interfaces p implements.
func implementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			interfaces = append(interfaces, h.name)
		}
	}
	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// dispatch calls each plugin in registration order. Failures are logged and
// never propagate to the step that emitted the event.
func dispatch[T Plugin](ctx context.Context, r *Registry, hook string, snapshot func() []T, call func(T) error) {
	r.mu.RLock()
	plugins := snapshot()
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return call(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	dispatch(ctx, r, "OnInit", func() []OnInit { return r.onInit }, func(p OnInit) error {
		return p.OnInit(ctx, engine)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	dispatch(ctx, r, "OnShutdown", func() []OnShutdown { return r.onShutdown }, func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitChargeAuthorized emits a charge authorized event.
func (r *Registry) EmitChargeAuthorized(ctx context.Context, ev credit.ChargeAuthorized) {
	dispatch(ctx, r, "OnChargeAuthorized", func() []OnChargeAuthorized { return r.onChargeAuthorized }, func(p OnChargeAuthorized) error {
		return p.OnChargeAuthorized(ctx, ev)
	})
}

// EmitPaymentPosted emits a payment posted event.
func (r *Registry) EmitPaymentPosted(ctx context.Context, ev credit.PaymentPosted) {
	dispatch(ctx, r, "OnPaymentPosted", func() []OnPaymentPosted { return r.onPaymentPosted }, func(p OnPaymentPosted) error {
		return p.OnPaymentPosted(ctx, ev)
	})
}

// EmitStatementClosed emits a statement closed event.
func (r *Registry) EmitStatementClosed(ctx context.Context, ev credit.StatementClosed) {
	dispatch(ctx, r, "OnStatementClosed", func() []OnStatementClosed { return r.onStatementClosed }, func(p OnStatementClosed) error {
		return p.OnStatementClosed(ctx, ev)
	})
}

// EmitAccountStatusChanged emits an account status changed event.
func (r *Registry) EmitAccountStatusChanged(ctx context.Context, ev credit.StatusChanged) {
	dispatch(ctx, r, "OnAccountStatusChanged", func() []OnAccountStatusChanged { return r.onAccountStatusChanged }, func(p OnAccountStatusChanged) error {
		return p.OnAccountStatusChanged(ctx, ev)
	})
}

// EmitNoteIssued emits a note issued event.
func (r *Registry) EmitNoteIssued(ctx context.Context, ev note.Issued) {
	dispatch(ctx, r, "OnNoteIssued", func() []OnNoteIssued { return r.onNoteIssued }, func(p OnNoteIssued) error {
		return p.OnNoteIssued(ctx, ev)
	})
}

// EmitNoteStatusChanged emits a note status changed event.
func (r *Registry) EmitNoteStatusChanged(ctx context.Context, ev note.StatusChanged) {
	dispatch(ctx, r, "OnNoteStatusChanged", func() []OnNoteStatusChanged { return r.onNoteStatusChanged }, func(p OnNoteStatusChanged) error {
		return p.OnNoteStatusChanged(ctx, ev)
	})
}

// EmitBeneficiaryAssigned emits a beneficiary assigned event.
func (r *Registry) EmitBeneficiaryAssigned(ctx context.Context, ev note.BeneficiaryAssigned) {
	dispatch(ctx, r, "OnBeneficiaryAssigned", func() []OnBeneficiaryAssigned { return r.onBeneficiaryAssigned }, func(p OnBeneficiaryAssigned) error {
		return p.OnBeneficiaryAssigned(ctx, ev)
	})
}

// EmitPositionOpened emits a position opened event.
func (r *Registry) EmitPositionOpened(ctx context.Context, ev vault.PositionOpened) {
	dispatch(ctx, r, "OnPositionOpened", func() []OnPositionOpened { return r.onPositionOpened }, func(p OnPositionOpened) error {
		return p.OnPositionOpened(ctx, ev)
	})
}

// EmitCollateralDeposited emits a collateral deposited event.
func (r *Registry) EmitCollateralDeposited(ctx context.Context, ev vault.Deposited) {
	dispatch(ctx, r, "OnCollateralDeposited", func() []OnCollateralDeposited { return r.onCollateralDeposited }, func(p OnCollateralDeposited) error {
		return p.OnCollateralDeposited(ctx, ev)
	})
}

// EmitCollateralWithdrawn emits a collateral withdrawn event.
func (r *Registry) EmitCollateralWithdrawn(ctx context.Context, ev vault.Withdrawn) {
	dispatch(ctx, r, "OnCollateralWithdrawn", func() []OnCollateralWithdrawn { return r.onCollateralWithdrawn }, func(p OnCollateralWithdrawn) error {
		return p.OnCollateralWithdrawn(ctx, ev)
	})
}

// EmitCollateralLiquidated emits a collateral liquidated event.
func (r *Registry) EmitCollateralLiquidated(ctx context.Context, ev vault.Liquidated) {
	dispatch(ctx, r, "OnCollateralLiquidated", func() []OnCollateralLiquidated { return r.onCollateralLiquidated }, func(p OnCollateralLiquidated) error {
		return p.OnCollateralLiquidated(ctx, ev)
	})
}

// EmitAdvanced emits an advanced event.
func (r *Registry) EmitAdvanced(ctx context.Context, ev pool.Advanced) {
	dispatch(ctx, r, "OnAdvanced", func() []OnAdvanced { return r.onAdvanced }, func(p OnAdvanced) error {
		return p.OnAdvanced(ctx, ev)
	})
}

// EmitGuaranteeSettled emits a guarantee settled event.
func (r *Registry) EmitGuaranteeSettled(ctx context.Context, ev pool.GuaranteeSettled) {
	dispatch(ctx, r, "OnGuaranteeSettled", func() []OnGuaranteeSettled { return r.onGuaranteeSettled }, func(p OnGuaranteeSettled) error {
		return p.OnGuaranteeSettled(ctx, ev)
	})
}

// EmitReserveReplenished emits a reserve replenished event.
func (r *Registry) EmitReserveReplenished(ctx context.Context, ev pool.ReserveReplenished) {
	dispatch(ctx, r, "OnReserveReplenished", func() []OnReserveReplenished { return r.onReserveReplenished }, func(p OnReserveReplenished) error {
		return p.OnReserveReplenished(ctx, ev)
	})
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block a ledger step.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}

package audithook

import "log/slog"

// Option configures an Extension.
type Option func(*Extension)

// WithLogger sets the logger for the extension.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extension) { e.logger = logger }
}

// WithCategories restricts auditing to events in the given categories, for
// example CategoryRisk alone for a risk desk's trail.
func WithCategories(categories ...string) Option {
	return func(e *Extension) {
		e.categories = make(map[string]bool, len(categories))
		for _, c := range categories {
			e.categories[c] = true
		}
	}
}

// WithMinSeverity drops events below severity.
func WithMinSeverity(severity string) Option {
	return func(e *Extension) { e.minSeverity = severityRank(severity) }
}

// WithEnabledActions sets which actions to audit.
// If not called, all actions are audited.
func WithEnabledActions(actions ...string) Option {
	return func(e *Extension) {
		e.enabled = make(map[string]bool)
		for _, action := range actions {
			e.enabled[action] = true
		}
	}
}

// WithDisabledActions sets which actions to skip.
func WithDisabledActions(actions ...string) Option {
	return func(e *Extension) {
		if e.enabled == nil {
			e.enabled = make(map[string]bool)
			for _, action := range allActions() {
				e.enabled[action] = true
			}
		}
		for _, action := range actions {
			delete(e.enabled, action)
		}
	}
}

// allActions returns all known audit actions.
func allActions() []string {
	return []string{
		ActionChargeAuthorized,
		ActionPaymentPosted,
		ActionStatementClosed,
		ActionAccountFrozen,
		ActionAccountUnfrozen,
		ActionNoteIssued,
		ActionNoteStatusChanged,
		ActionNoteDefaulted,
		ActionBeneficiaryAssigned,
		ActionPositionOpened,
		ActionCollateralDeposited,
		ActionCollateralWithdrawn,
		ActionCollateralLiquidated,
		ActionNoteAdvanced,
		ActionGuaranteeSettled,
		ActionReserveReplenished,
	}
}

// severityRank orders severities; unknown severities rank with info.
func severityRank(severity string) int {
	switch severity {
	case SeverityWarning:
		return 1
	case SeverityError:
		return 2
	case SeverityCritical:
		return 3
	default:
		return 0
	}
}

// Package control declares the operator control-surface interface the
// Orchestrator and Position Manager consult. No concrete backend
// ships in this package; callers wire in whatever chat or admin
// surface they run.
package control

import "context"

// Channel is the operator control surface the Orchestrator polls each
// tick (global on/off, symbol enable/disable) and the Position Manager
// pushes alerts through (unprotected-position, SL/TP fills). No
// implementation ships in this repo; a concrete backend (Telegram,
// Slack, a local HTTP admin surface) plugs in behind this interface.
type Channel interface {
	// IsEnabled reports the global trading on/off flag. False means the
	// Orchestrator skips new-signal evaluation but still runs the
	// Pending-Order and Position Managers for existing slots.
	IsEnabled(ctx context.Context) bool

	// IsSymbolEnabled reports whether symbol is individually enabled,
	// independent of the global flag.
	IsSymbolEnabled(ctx context.Context, symbol string) bool

	// Notify delivers an operator-facing message: a fill, a martingale
	// reset, an emergency close, an unprotected-position alert.
	Notify(ctx context.Context, message string)

	// NotifyCritical delivers a message that demands operator attention,
	// such as an unprotected-position alert, distinct from routine
	// fill/close notifications.
	NotifyCritical(ctx context.Context, message string)
}

// NoopChannel is always-on and silent. It satisfies Channel for
// single-operator runs with no chat backend wired; cmd/bot always wires
// it.
type NoopChannel struct{}

func (NoopChannel) IsEnabled(ctx context.Context) bool                     { return true }
func (NoopChannel) IsSymbolEnabled(ctx context.Context, symbol string) bool { return true }
func (NoopChannel) Notify(ctx context.Context, message string)             {}
func (NoopChannel) NotifyCritical(ctx context.Context, message string)     {}

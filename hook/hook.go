// Package hook provides an extensible hook system for the
// reconciliation engine. Hooks observe lifecycle and reconciliation
// events without being able to block or fail the pipeline.
package hook

import (
	"context"
	"time"

	"github.com/xraph/reconcile/types"
)

// Hook is the base interface that all hooks must implement.
type Hook interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Hook
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the engine is shutting down.
type OnShutdown interface {
	Hook
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Reconciliation hooks
// ──────────────────────────────────────────────────

// OnCreditApplied is called after a balance credit has committed.
type OnCreditApplied interface {
	Hook
	OnCreditApplied(ctx context.Context, profileID string, amount types.Money, balance types.Money) error
}

// OnRequestResolved is called when a request reaches a terminal state.
type OnRequestResolved interface {
	Hook
	OnRequestResolved(ctx context.Context, kind, requestID, profileID, status string) error
}

// OnStatusNoted is called when a free-text reply updates a request's
// status without resolving it.
type OnStatusNoted interface {
	Hook
	OnStatusNoted(ctx context.Context, kind, requestID, status string) error
}

// OnBatchApplied is called after a poll batch has been applied and its
// cursor persisted.
type OnBatchApplied interface {
	Hook
	OnBatchApplied(ctx context.Context, channel string, applied int, elapsed time.Duration) error
}

// ──────────────────────────────────────────────────
// Mirror hooks
// ──────────────────────────────────────────────────

// OnMirrorSynced is called when a balance write to the mirror succeeds.
type OnMirrorSynced interface {
	Hook
	OnMirrorSynced(ctx context.Context, profileID string, balance types.Money) error
}

// OnMirrorDegraded is called when a mirror write has exhausted its
// retries. The local ledger remains authoritative; this event is the
// signal that the mirror is temporarily behind.
type OnMirrorDegraded interface {
	Hook
	OnMirrorDegraded(ctx context.Context, profileID string, balance types.Money, err error) error
}

// Package audithook bridges reconciliation events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/reconcile/hook"
	"github.com/xraph/reconcile/types"
)

// Compile-time interface checks.
var (
	_ hook.Hook              = (*Extension)(nil)
	_ hook.OnCreditApplied   = (*Extension)(nil)
	_ hook.OnRequestResolved = (*Extension)(nil)
	_ hook.OnStatusNoted     = (*Extension)(nil)
	_ hook.OnBatchApplied    = (*Extension)(nil)
	_ hook.OnMirrorSynced    = (*Extension)(nil)
	_ hook.OnMirrorDegraded  = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// This matches chronicle.Emitter but is defined locally so that the
// audit_hook package does not import Chronicle directly — callers inject
// the concrete *chronicle.Chronicle at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges reconciliation events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements hook.Hook.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Balance hooks
// ──────────────────────────────────────────────────

// OnCreditApplied implements hook.OnCreditApplied.
func (e *Extension) OnCreditApplied(ctx context.Context, profileID string, amount, balance types.Money) error {
	return e.record(ctx, ActionCreditApplied, SeverityInfo, OutcomeSuccess,
		ResourceProfile, profileID, CategoryBalance, nil,
		"amount", amount.Amount,
		"currency", amount.Currency,
		"balance", balance.Amount,
	)
}

// ──────────────────────────────────────────────────
// Request hooks
// ──────────────────────────────────────────────────

// OnRequestResolved implements hook.OnRequestResolved.
func (e *Extension) OnRequestResolved(ctx context.Context, kind, requestID, profileID, status string) error {
	return e.record(ctx, ActionRequestResolved, SeverityInfo, OutcomeSuccess,
		ResourceRequest, requestID, CategoryRequest, nil,
		"kind", kind,
		"profile_id", profileID,
		"status", status,
	)
}

// OnStatusNoted implements hook.OnStatusNoted.
func (e *Extension) OnStatusNoted(ctx context.Context, kind, requestID, status string) error {
	return e.record(ctx, ActionStatusNoted, SeverityInfo, OutcomeSuccess,
		ResourceRequest, requestID, CategoryRequest, nil,
		"kind", kind,
		"status", status,
	)
}

// ──────────────────────────────────────────────────
// Batch hooks
// ──────────────────────────────────────────────────

// OnBatchApplied implements hook.OnBatchApplied.
func (e *Extension) OnBatchApplied(ctx context.Context, channel string, applied int, elapsed time.Duration) error {
	return e.record(ctx, ActionBatchApplied, SeverityInfo, OutcomeSuccess,
		ResourceChannel, channel, CategoryIngest, nil,
		"applied", applied,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ──────────────────────────────────────────────────
// Mirror hooks
// ──────────────────────────────────────────────────

// OnMirrorSynced implements hook.OnMirrorSynced.
func (e *Extension) OnMirrorSynced(ctx context.Context, profileID string, balance types.Money) error {
	return e.record(ctx, ActionMirrorSynced, SeverityInfo, OutcomeSuccess,
		ResourceMirror, profileID, CategoryConsistency, nil,
		"balance", balance.Amount,
	)
}

// OnMirrorDegraded implements hook.OnMirrorDegraded.
func (e *Extension) OnMirrorDegraded(ctx context.Context, profileID string, balance types.Money, cause error) error {
	return e.record(ctx, ActionMirrorDegraded, SeverityWarning, OutcomeFailure,
		ResourceMirror, profileID, CategoryConsistency, cause,
		"balance", balance.Amount,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}

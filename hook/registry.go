package hook

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/reconcile/types"
)

// Registry manages all registered hooks and provides efficient
// dispatch. Hooks are cached per interface at registration time so
// emission does not type-assert on the hot path.
type Registry struct {
	mu     sync.RWMutex
	hooks  []Hook
	logger *slog.Logger

	onInit            []OnInit
	onShutdown        []OnShutdown
	onCreditApplied   []OnCreditApplied
	onRequestResolved []OnRequestResolved
	onStatusNoted     []OnStatusNoted
	onBatchApplied    []OnBatchApplied
	onMirrorSynced    []OnMirrorSynced
	onMirrorDegraded  []OnMirrorDegraded
}

// NewRegistry creates a new hook registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a hook to the registry and caches its interfaces.
func (r *Registry) Register(h Hook) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.hooks {
		if existing.Name() == h.Name() {
			return fmt.Errorf("hook: duplicate registration: %s", h.Name())
		}
	}

	r.hooks = append(r.hooks, h)

	if v, ok := h.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := h.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := h.(OnCreditApplied); ok {
		r.onCreditApplied = append(r.onCreditApplied, v)
	}
	if v, ok := h.(OnRequestResolved); ok {
		r.onRequestResolved = append(r.onRequestResolved, v)
	}
	if v, ok := h.(OnStatusNoted); ok {
		r.onStatusNoted = append(r.onStatusNoted, v)
	}
	if v, ok := h.(OnBatchApplied); ok {
		r.onBatchApplied = append(r.onBatchApplied, v)
	}
	if v, ok := h.(OnMirrorSynced); ok {
		r.onMirrorSynced = append(r.onMirrorSynced, v)
	}
	if v, ok := h.(OnMirrorDegraded); ok {
		r.onMirrorDegraded = append(r.onMirrorDegraded, v)
	}

	r.logger.Info("hook registered", "name", h.Name())

	return nil
}

// Get returns a hook by name.
func (r *Registry) Get(name string) Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, h := range r.hooks {
		if h.Name() == name {
			return h
		}
	}
	return nil
}

// List returns all registered hooks.
func (r *Registry) List() []Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Hook, len(r.hooks))
	copy(result, r.hooks)
	return result
}

// Count returns the number of registered hooks.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hooks)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all hooks that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	hooks := r.onInit
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := r.callWithTimeout(ctx, h.Name(), func() error {
			return h.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("hook OnInit failed",
				"hook", h.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all hooks that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	hooks := r.onShutdown
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := r.callWithTimeout(ctx, h.Name(), func() error {
			return h.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("hook OnShutdown failed",
				"hook", h.Name(),
				"error", err,
			)
		}
	}
}

// EmitCreditApplied emits a credit applied event.
func (r *Registry) EmitCreditApplied(ctx context.Context, profileID string, amount, balance types.Money) {
	r.mu.RLock()
	hooks := r.onCreditApplied
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := r.callWithTimeout(ctx, h.Name(), func() error {
			return h.OnCreditApplied(ctx, profileID, amount, balance)
		}); err != nil {
			r.logger.Warn("hook OnCreditApplied failed",
				"hook", h.Name(),
				"error", err,
			)
		}
	}
}

// EmitRequestResolved emits a request resolved event.
func (r *Registry) EmitRequestResolved(ctx context.Context, kind, requestID, profileID, status string) {
	r.mu.RLock()
	hooks := r.onRequestResolved
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := r.callWithTimeout(ctx, h.Name(), func() error {
			return h.OnRequestResolved(ctx, kind, requestID, profileID, status)
		}); err != nil {
			r.logger.Warn("hook OnRequestResolved failed",
				"hook", h.Name(),
				"error", err,
			)
		}
	}
}

// EmitStatusNoted emits a status noted event.
func (r *Registry) EmitStatusNoted(ctx context.Context, kind, requestID, status string) {
	r.mu.RLock()
	hooks := r.onStatusNoted
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := r.callWithTimeout(ctx, h.Name(), func() error {
			return h.OnStatusNoted(ctx, kind, requestID, status)
		}); err != nil {
			r.logger.Warn("hook OnStatusNoted failed",
				"hook", h.Name(),
				"error", err,
			)
		}
	}
}

// EmitBatchApplied emits a batch applied event.
func (r *Registry) EmitBatchApplied(ctx context.Context, channel string, applied int, elapsed time.Duration) {
	r.mu.RLock()
	hooks := r.onBatchApplied
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := r.callWithTimeout(ctx, h.Name(), func() error {
			return h.OnBatchApplied(ctx, channel, applied, elapsed)
		}); err != nil {
			r.logger.Warn("hook OnBatchApplied failed",
				"hook", h.Name(),
				"error", err,
			)
		}
	}
}

// EmitMirrorSynced emits a mirror synced event.
func (r *Registry) EmitMirrorSynced(ctx context.Context, profileID string, balance types.Money) {
	r.mu.RLock()
	hooks := r.onMirrorSynced
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := r.callWithTimeout(ctx, h.Name(), func() error {
			return h.OnMirrorSynced(ctx, profileID, balance)
		}); err != nil {
			r.logger.Warn("hook OnMirrorSynced failed",
				"hook", h.Name(),
				"error", err,
			)
		}
	}
}

// EmitMirrorDegraded emits a mirror degraded event.
func (r *Registry) EmitMirrorDegraded(ctx context.Context, profileID string, balance types.Money, cause error) {
	r.mu.RLock()
	hooks := r.onMirrorDegraded
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := r.callWithTimeout(ctx, h.Name(), func() error {
			return h.OnMirrorDegraded(ctx, profileID, balance, cause)
		}); err != nil {
			r.logger.Warn("hook OnMirrorDegraded failed",
				"hook", h.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a hook function with a timeout.
// Hooks should never block the reconciliation pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, hookName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("hook timeout: %s", hookName)
	case <-ctx.Done():
		return ctx.Err()
	}
}

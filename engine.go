package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/xraph/reconcile/correlate"
	"github.com/xraph/reconcile/hook"
	"github.com/xraph/reconcile/id"
	"github.com/xraph/reconcile/mirror"
	"github.com/xraph/reconcile/notification"
	"github.com/xraph/reconcile/request"
	"github.com/xraph/reconcile/source"
	"github.com/xraph/reconcile/store"
	"github.com/xraph/reconcile/types"
)

// Engine is the reply-correlation and balance-reconciliation engine.
//
// It drains inbound chat messages per channel, matches each reply to
// the pending order or charge it answers, applies the administrator's
// decision to the authoritative store exactly once, and pushes the
// resulting balance to the secondary mirror with bounded retry.
type Engine struct {
	store  store.Store
	source source.Source
	mirror mirror.Mirror
	hooks  *hook.Registry
	parser *correlate.Parser
	logger *slog.Logger

	channels []string

	// Background workers
	stopChan chan struct{}
	wg       sync.WaitGroup

	// In-flight mirror pushes are tracked separately from the poll
	// workers: pushes can start from API calls racing with Stop, so
	// admission and the stopped flag share one mutex to keep the
	// WaitGroup's Add ordered before its Wait.
	pushMu   sync.Mutex
	pushWG   sync.WaitGroup
	stopping bool

	// Configuration
	pollInterval  time.Duration
	currency      string
	mirrorRetries int
	mirrorBackoff time.Duration
	skipMigrate   bool

	// Per-profile locks serialize balance mutations against the
	// resolved-check-then-act sequence in the reply path.
	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// New creates a new Engine instance.
func New(s store.Store, src source.Source, opts ...Option) *Engine {
	e := &Engine{
		store:         s,
		source:        src,
		hooks:         hook.NewRegistry(),
		parser:        correlate.New(),
		logger:        slog.Default(),
		stopChan:      make(chan struct{}),
		pollInterval:  2500 * time.Millisecond,
		currency:      "syp",
		mirrorRetries: 3,
		mirrorBackoff: 800 * time.Millisecond,
		locks:         make(map[string]*sync.Mutex),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.hooks.WithLogger(logger)
	}
}

// WithMirror sets the secondary balance mirror.
func WithMirror(m mirror.Mirror) Option {
	return func(e *Engine) {
		e.mirror = m
	}
}

// WithHook registers a hook.
func WithHook(h hook.Hook) Option {
	return func(e *Engine) {
		_ = e.hooks.Register(h) //nolint:errcheck // best-effort hook registration during init
	}
}

// WithParser replaces the reply parser.
func WithParser(p *correlate.Parser) Option {
	return func(e *Engine) {
		e.parser = p
	}
}

// WithChannel registers channel tokens to poll.
func WithChannel(tokens ...string) Option {
	return func(e *Engine) {
		e.channels = append(e.channels, tokens...)
	}
}

// WithPollInterval sets the per-channel polling period.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.pollInterval = d
	}
}

// WithCurrency sets the ledger currency for parsed credit amounts.
func WithCurrency(currency string) Option {
	return func(e *Engine) {
		e.currency = currency
	}
}

// WithMirrorRetry configures the mirror write retry budget.
func WithMirrorRetry(attempts int, step time.Duration) Option {
	return func(e *Engine) {
		e.mirrorRetries = attempts
		e.mirrorBackoff = step
	}
}

// RegisterChannel adds a channel token to poll. Must be called before
// Start.
func (e *Engine) RegisterChannel(token string) {
	e.channels = append(e.channels, token)
}

// WithoutMigrate skips store migration on Start. Use when migrations
// are run out of band.
func WithoutMigrate() Option {
	return func(e *Engine) {
		e.skipMigrate = true
	}
}

// Hooks returns the hook registry for late registration.
func (e *Engine) Hooks() *hook.Registry { return e.hooks }

// Start begins background polling workers, one per registered channel.
func (e *Engine) Start(ctx context.Context) error {
	// Migrate database
	if !e.skipMigrate {
		if err := e.store.Migrate(ctx); err != nil {
			return err
		}
	}

	// Initialize hooks
	e.hooks.EmitInit(ctx, e)

	for _, channel := range e.channels {
		e.wg.Add(1)
		go e.pollWorker(ctx, channel)
	}

	e.logger.Info("engine started",
		"channels", len(e.channels),
		"poll_interval", e.pollInterval,
		"currency", e.currency,
	)

	return nil
}

// Stop shuts down the Engine, waiting for in-flight work including
// pending mirror pushes.
func (e *Engine) Stop() error {
	close(e.stopChan)
	e.wg.Wait()

	e.pushMu.Lock()
	e.stopping = true
	e.pushMu.Unlock()
	e.pushWG.Wait()

	ctx := context.Background()
	e.hooks.EmitShutdown(ctx)

	return e.store.Close()
}

// pollWorker drains one channel on a fixed period. A cycle still in
// flight when the ticker fires again is not overlapped; the next tick
// is simply absorbed.
func (e *Engine) pollWorker(ctx context.Context, channel string) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			if err := e.Drain(ctx, channel); err != nil {
				e.logger.Error("drain cycle failed",
					"channel", channel,
					"error", err,
				)
			}
		}
	}
}

// Drain performs one poll-and-apply cycle for a channel. It applies
// messages in arrival order and persists the cursor after each message
// commits locally, so a crash redelivers at most the uncommitted tail.
// Exported so callers without a timer (tests, manual triggers) can
// drive the engine directly; it must not be called concurrently for
// the same channel.
func (e *Engine) Drain(ctx context.Context, channel string) error {
	cur, err := e.store.GetCursor(ctx, channel)
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}

	msgs, _, err := e.source.Poll(ctx, channel, cur)
	if err != nil {
		return fmt.Errorf("poll %s: %w", channel, err)
	}
	if len(msgs) == 0 {
		return nil
	}

	start := time.Now()
	applied := 0
	for _, msg := range msgs {
		if err := e.applyMessage(ctx, msg); err != nil {
			// Local commit failed. The cursor stays at the last
			// success and the remainder of the batch is redelivered.
			e.logger.Error("message apply failed, awaiting redelivery",
				"channel", channel,
				"handle", msg.Handle,
				"error", err,
			)
			break
		}
		if err := e.store.SetCursor(ctx, channel, msg.Cursor); err != nil {
			e.logger.Error("cursor write failed",
				"channel", channel,
				"error", err,
			)
			break
		}
		applied++
	}

	if applied > 0 {
		e.hooks.EmitBatchApplied(ctx, channel, applied, time.Since(start))
	}
	return nil
}

// applyMessage correlates one inbound message and applies its intent.
// A nil return means the message is settled and the cursor may advance
// past it; an error means the local commit did not happen and the
// message must be redelivered.
func (e *Engine) applyMessage(ctx context.Context, msg source.RawMessage) error {
	if msg.RepliesTo == "" {
		return nil
	}

	o, err := e.store.FindOrderByHandle(ctx, msg.RepliesTo)
	if err == nil {
		return e.applyToOrder(ctx, o, msg.Text)
	}
	if !errors.Is(err, ErrOrderNotFound) {
		return err
	}

	c, err := e.store.FindChargeByHandle(ctx, msg.RepliesTo)
	if err == nil {
		return e.applyToCharge(ctx, c, msg.Text)
	}
	if !errors.Is(err, ErrChargeNotFound) {
		return err
	}

	// Unmatched: the handle belongs to no pending request. Handles
	// legitimately disappear once resolved and replies can arrive
	// late through redelivery, so this is a silent drop.
	e.logger.Debug("reply matched no request", "handle", msg.RepliesTo)
	return nil
}

func (e *Engine) applyToOrder(ctx context.Context, matched *request.Order, text string) error {
	intent := e.parser.Parse(text, correlate.Target{
		Kind:      correlate.TargetOrder,
		ProfileID: matched.ProfileID,
	})

	unlock := e.lockProfile(matched.ProfileID)
	defer unlock()

	// Re-fetch under the lock: the resolved check and the mutation
	// must be atomic or two redelivered replies could both credit.
	o, err := e.store.GetOrder(ctx, matched.ID)
	if err != nil {
		return err
	}
	if o.Resolved {
		return nil
	}

	switch intent.Kind {
	case correlate.IntentApproveWithAmount:
		amount, perr := types.ParseMoney(intent.Amount, e.currency)
		if perr != nil || !amount.IsPositive() {
			e.logger.Warn("credit amount unparseable, approving without credit",
				"order", o.ID.String(),
				"amount", intent.Amount,
			)
			return e.resolveOrder(ctx, o, request.StatusApprovedNoCredit)
		}

		balance, err := e.credit(ctx, o.ProfileID, amount)
		if err != nil {
			return err
		}
		o.Status = request.StatusCompleted
		o.Resolved = true
		o.Replied = true
		o.Touch()
		if err := e.store.UpdateOrder(ctx, o); err != nil {
			// The credit has committed. Failing here would redeliver
			// the reply and credit twice, so log and settle.
			e.logger.Error("order update failed after credit",
				"order", o.ID.String(),
				"error", err,
			)
			return nil
		}
		e.notify(ctx, o.ProfileID, creditText(amount, balance))
		e.hooks.EmitCreditApplied(ctx, o.ProfileID, amount, balance)
		e.hooks.EmitRequestResolved(ctx, "order", o.ID.String(), o.ProfileID, o.Status)
		e.syncMirror(o.ProfileID, balance)
		return nil

	case correlate.IntentApproveNoAmount:
		return e.resolveOrder(ctx, o, request.StatusApprovedNoCredit)

	case correlate.IntentReject:
		return e.resolveOrder(ctx, o, request.StatusRejected)

	default:
		// Free-text status updates do not terminate the lifecycle.
		o.Status = intent.Text
		o.Replied = true
		o.Touch()
		if err := e.store.UpdateOrder(ctx, o); err != nil {
			return err
		}
		e.notify(ctx, o.ProfileID, statusText(intent.Text))
		e.hooks.EmitStatusNoted(ctx, "order", o.ID.String(), intent.Text)
		return nil
	}
}

// resolveOrder applies a terminal decision that carries no credit.
// Caller holds the profile lock.
func (e *Engine) resolveOrder(ctx context.Context, o *request.Order, status string) error {
	o.Status = status
	o.Resolved = true
	o.Replied = true
	o.Touch()
	if err := e.store.UpdateOrder(ctx, o); err != nil {
		return err
	}
	e.notify(ctx, o.ProfileID, decisionText(status))
	e.hooks.EmitRequestResolved(ctx, "order", o.ID.String(), o.ProfileID, status)
	return nil
}

func (e *Engine) applyToCharge(ctx context.Context, matched *request.Charge, text string) error {
	intent := e.parser.Parse(text, correlate.Target{
		Kind:      correlate.TargetCharge,
		ProfileID: matched.ProfileID,
	})

	unlock := e.lockProfile(matched.ProfileID)
	defer unlock()

	c, err := e.store.GetCharge(ctx, matched.ID)
	if err != nil {
		return err
	}
	if c.Resolved {
		return nil
	}

	switch intent.Kind {
	case correlate.IntentApproveWithAmount:
		amount, perr := types.ParseMoney(intent.Amount, e.currency)
		if perr != nil || !amount.IsPositive() {
			e.logger.Warn("credit amount unparseable, approving without credit",
				"charge", c.ID.String(),
				"amount", intent.Amount,
			)
			return e.resolveCharge(ctx, c, request.StatusApprovedNoCredit)
		}

		balance, err := e.credit(ctx, c.ProfileID, amount)
		if err != nil {
			return err
		}
		c.Status = request.StatusCredited
		c.Resolved = true
		c.Touch()
		if err := e.store.UpdateCharge(ctx, c); err != nil {
			e.logger.Error("charge update failed after credit",
				"charge", c.ID.String(),
				"error", err,
			)
			return nil
		}
		e.notify(ctx, c.ProfileID, creditText(amount, balance))
		e.hooks.EmitCreditApplied(ctx, c.ProfileID, amount, balance)
		e.hooks.EmitRequestResolved(ctx, "charge", c.ID.String(), c.ProfileID, c.Status)
		e.syncMirror(c.ProfileID, balance)
		return nil

	case correlate.IntentApproveNoAmount:
		return e.resolveCharge(ctx, c, request.StatusApprovedNoCredit)

	case correlate.IntentReject:
		return e.resolveCharge(ctx, c, request.StatusRejected)

	default:
		c.Status = intent.Text
		c.Touch()
		if err := e.store.UpdateCharge(ctx, c); err != nil {
			return err
		}
		e.notify(ctx, c.ProfileID, statusText(intent.Text))
		e.hooks.EmitStatusNoted(ctx, "charge", c.ID.String(), intent.Text)
		return nil
	}
}

// resolveCharge applies a terminal decision that carries no credit.
// Caller holds the profile lock.
func (e *Engine) resolveCharge(ctx context.Context, c *request.Charge, status string) error {
	c.Status = status
	c.Resolved = true
	c.Touch()
	if err := e.store.UpdateCharge(ctx, c); err != nil {
		return err
	}
	e.notify(ctx, c.ProfileID, decisionText(status))
	e.hooks.EmitRequestResolved(ctx, "charge", c.ID.String(), c.ProfileID, status)
	return nil
}

// credit adds amount to a profile's balance and lifetime accumulator.
// Caller holds the profile lock. Returns the new balance.
func (e *Engine) credit(ctx context.Context, profileID string, amount types.Money) (types.Money, error) {
	p, err := e.store.GetProfile(ctx, profileID)
	if err != nil {
		return types.Money{}, err
	}

	p.Balance = p.Balance.Add(amount)
	p.LifetimeTopup = p.LifetimeTopup.Add(amount)
	p.Touch()

	if err := e.store.UpdateProfile(ctx, p); err != nil {
		return types.Money{}, err
	}
	return p.Balance, nil
}

// notify appends a user-facing notification. Notification append
// failures never unwind a committed transition.
func (e *Engine) notify(ctx context.Context, profileID, text string) {
	n := &notification.Notification{
		ID:        id.NewNotificationID(),
		ProfileID: profileID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.store.AppendNotification(ctx, n); err != nil {
		e.logger.Error("notification append failed",
			"profile", profileID,
			"error", err,
		)
	}
}

// syncMirror pushes a balance to the mirror asynchronously with a
// bounded linear-backoff retry. The push never blocks or unwinds the
// local commit; exhaustion is surfaced as a degraded-mirror event.
func (e *Engine) syncMirror(profileID string, balance types.Money) {
	if e.mirror == nil {
		return
	}

	e.pushMu.Lock()
	if e.stopping {
		e.pushMu.Unlock()
		return
	}
	e.pushWG.Add(1)
	e.pushMu.Unlock()

	go func() {
		defer e.pushWG.Done()
		e.pushMirror(context.Background(), profileID, balance)
	}()
}

func (e *Engine) pushMirror(ctx context.Context, profileID string, balance types.Money) {
	op := func() (struct{}, error) {
		return struct{}{}, e.mirror.UpsertBalance(ctx, profileID, balance)
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(&linearBackOff{step: e.mirrorBackoff}),
		backoff.WithMaxTries(uint(e.mirrorRetries)),
	)
	if err != nil {
		e.logger.Warn("mirror write abandoned",
			"profile", profileID,
			"attempts", e.mirrorRetries,
			"error", err,
		)
		e.hooks.EmitMirrorDegraded(ctx, profileID, balance, err)
		return
	}
	e.hooks.EmitMirrorSynced(ctx, profileID, balance)
}

// linearBackOff waits step, 2*step, 3*step between attempts.
type linearBackOff struct {
	step    time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(b.attempt) * b.step
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
}

// lockProfile acquires the per-profile mutex and returns its release.
func (e *Engine) lockProfile(profileID string) func() {
	e.lockMu.Lock()
	l, ok := e.locks[profileID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[profileID] = l
	}
	e.lockMu.Unlock()

	l.Lock()
	return l.Unlock
}

// ──────────────────────────────────────────────────
// Notification templates
// ──────────────────────────────────────────────────

func creditText(amount, balance types.Money) string {
	return fmt.Sprintf("تمت إضافة %s إلى رصيدك. الرصيد الحالي: %s", amount.String(), balance.String())
}

func decisionText(status string) string {
	switch status {
	case request.StatusRejected:
		return "تم رفض طلبك."
	default:
		return "تمت الموافقة على طلبك."
	}
}

func statusText(text string) string {
	return fmt.Sprintf("تحديث حالة طلبك: %s", text)
}

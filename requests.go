package reconcile

import (
	"context"
	"errors"

	"github.com/xraph/reconcile/id"
	"github.com/xraph/reconcile/mirror"
	"github.com/xraph/reconcile/notification"
	"github.com/xraph/reconcile/profile"
	"github.com/xraph/reconcile/request"
	"github.com/xraph/reconcile/types"
)

// ──────────────────────────────────────────────────
// Profile Management
// ──────────────────────────────────────────────────

// RegisterProfile creates a profile, or merges contact fields into an
// existing one. The balance of an existing profile is never touched by
// registration.
func (e *Engine) RegisterProfile(ctx context.Context, p *profile.Profile) error {
	if p.ID == "" {
		return ValidationError{Field: "id", Message: "must not be empty"}
	}

	unlock := e.lockProfile(p.ID)
	defer unlock()

	existing, err := e.store.GetProfile(ctx, p.ID)
	if errors.Is(err, ErrProfileNotFound) {
		p.Entity = types.NewEntity()
		if p.Balance.Currency == "" {
			p.Balance = types.Zero(e.currency)
		}
		if p.LifetimeTopup.Currency == "" {
			p.LifetimeTopup = types.Zero(p.Balance.Currency)
		}
		return e.store.CreateProfile(ctx, p)
	}
	if err != nil {
		return err
	}

	existing.DisplayName = p.DisplayName
	existing.Phone = p.Phone
	existing.Address = p.Address
	existing.Editable = p.Editable
	existing.Touch()
	if err := e.store.UpdateProfile(ctx, existing); err != nil {
		return err
	}
	*p = *existing
	return nil
}

// Profile returns a profile with its balance reconciled against the
// mirror: the larger of the two values wins, and a raised balance is
// written back locally. Mirror read failures fall back to the local
// value alone.
func (e *Engine) Profile(ctx context.Context, profileID string) (*profile.Profile, error) {
	p, err := e.store.GetProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if e.mirror == nil {
		return p, nil
	}

	mirrored, err := e.mirror.ReadBalance(ctx, profileID)
	if err != nil {
		return p, nil
	}

	merged := mirror.Merge(p.Balance, mirrored)
	if merged.Equal(p.Balance) {
		return p, nil
	}

	unlock := e.lockProfile(profileID)
	defer unlock()

	// Re-fetch: a credit may have landed while we read the mirror.
	p, err = e.store.GetProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if !merged.GreaterThan(p.Balance) {
		return p, nil
	}
	p.Balance = merged
	p.Touch()
	if err := e.store.UpdateProfile(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListProfiles returns registered profiles.
func (e *Engine) ListProfiles(ctx context.Context, opts profile.ListOpts) ([]*profile.Profile, error) {
	return e.store.ListProfiles(ctx, opts)
}

// Spend debits a profile's balance, failing on insufficient funds.
// Returns the new balance. The debit is pushed to the mirror like any
// other balance mutation.
func (e *Engine) Spend(ctx context.Context, profileID string, amount types.Money) (types.Money, error) {
	if !amount.IsPositive() {
		return types.Money{}, ErrInvalidAmount
	}

	unlock := e.lockProfile(profileID)
	defer unlock()

	p, err := e.store.GetProfile(ctx, profileID)
	if err != nil {
		return types.Money{}, err
	}
	if p.Balance.LessThan(amount) {
		return types.Money{}, ErrInsufficientBalance
	}

	p.Balance = p.Balance.Subtract(amount)
	p.Touch()
	if err := e.store.UpdateProfile(ctx, p); err != nil {
		return types.Money{}, err
	}

	e.syncMirror(profileID, p.Balance)
	return p.Balance, nil
}

// ──────────────────────────────────────────────────
// Charge Management
// ──────────────────────────────────────────────────

// CreateCharge opens a pending top-up request. The correlation handle
// is registered separately once the outbound notification is sent.
func (e *Engine) CreateCharge(ctx context.Context, profileID string, amount types.Money, method string) (*request.Charge, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if _, err := e.store.GetProfile(ctx, profileID); err != nil {
		return nil, err
	}

	c := &request.Charge{
		Entity:          types.NewEntity(),
		ID:              id.NewChargeID(),
		ProfileID:       profileID,
		RequestedAmount: amount,
		Method:          method,
		Status:          request.StatusPending,
	}
	if err := e.store.CreateCharge(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Charge retrieves a charge by ID.
func (e *Engine) Charge(ctx context.Context, chargeID id.ChargeID) (*request.Charge, error) {
	return e.store.GetCharge(ctx, chargeID)
}

// ListCharges returns a profile's charges.
func (e *Engine) ListCharges(ctx context.Context, profileID string, opts request.ListOpts) ([]*request.Charge, error) {
	return e.store.ListCharges(ctx, profileID, opts)
}

// RegisterChargeHandle binds the outbound notification handle to a
// charge. The handle arrives asynchronously after the notification
// send completes and is immutable once set.
func (e *Engine) RegisterChargeHandle(ctx context.Context, chargeID id.ChargeID, handle string) error {
	if handle == "" {
		return ValidationError{Field: "handle", Message: "must not be empty"}
	}
	c, err := e.store.GetCharge(ctx, chargeID)
	if err != nil {
		return err
	}

	unlock := e.lockProfile(c.ProfileID)
	defer unlock()

	// Re-fetch under the lock so racing registrations cannot both
	// observe an empty handle.
	c, err = e.store.GetCharge(ctx, chargeID)
	if err != nil {
		return err
	}
	if c.Handle == handle {
		return nil
	}
	if c.Handle != "" {
		return ErrHandleAlreadySet
	}
	c.Handle = handle
	c.Touch()
	return e.store.UpdateCharge(ctx, c)
}

// ──────────────────────────────────────────────────
// Order Management
// ──────────────────────────────────────────────────

// CreateOrder opens a pending service order. An order paid from
// balance debits the profile eagerly at creation time; a later credit
// reply on the same order is an independent delta, not a netting of
// this debit.
func (e *Engine) CreateOrder(ctx context.Context, profileID, kind, details string, mode request.PaymentMode, price types.Money) (*request.Order, error) {
	unlock := e.lockProfile(profileID)
	defer unlock()

	p, err := e.store.GetProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}

	paid := types.Zero(e.currency)
	if mode == request.PayFromBalance {
		if !price.IsPositive() {
			return nil, ErrInvalidAmount
		}
		if p.Balance.LessThan(price) {
			return nil, ErrInsufficientBalance
		}
		p.Balance = p.Balance.Subtract(price)
		p.Touch()
		if err := e.store.UpdateProfile(ctx, p); err != nil {
			return nil, err
		}
		paid = price
		e.syncMirror(profileID, p.Balance)
	}

	o := &request.Order{
		Entity:      types.NewEntity(),
		ID:          id.NewOrderID(),
		ProfileID:   profileID,
		Kind:        kind,
		Details:     details,
		PaymentMode: mode,
		PaidAmount:  paid,
		Status:      request.StatusPending,
	}
	if err := e.store.CreateOrder(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// Order retrieves an order by ID.
func (e *Engine) Order(ctx context.Context, orderID id.OrderID) (*request.Order, error) {
	return e.store.GetOrder(ctx, orderID)
}

// ListOrders returns a profile's orders.
func (e *Engine) ListOrders(ctx context.Context, profileID string, opts request.ListOpts) ([]*request.Order, error) {
	return e.store.ListOrders(ctx, profileID, opts)
}

// RegisterOrderHandle binds the outbound notification handle to an
// order, with the same set-once contract as RegisterChargeHandle.
func (e *Engine) RegisterOrderHandle(ctx context.Context, orderID id.OrderID, handle string) error {
	if handle == "" {
		return ValidationError{Field: "handle", Message: "must not be empty"}
	}
	o, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}

	unlock := e.lockProfile(o.ProfileID)
	defer unlock()

	o, err = e.store.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if o.Handle == handle {
		return nil
	}
	if o.Handle != "" {
		return ErrHandleAlreadySet
	}
	o.Handle = handle
	o.Touch()
	return e.store.UpdateOrder(ctx, o)
}

// ──────────────────────────────────────────────────
// Notification Access
// ──────────────────────────────────────────────────

// Notifications lists a profile's notifications.
func (e *Engine) Notifications(ctx context.Context, profileID string, opts notification.ListOpts) ([]*notification.Notification, error) {
	return e.store.ListNotifications(ctx, profileID, opts)
}

// MarkNotificationRead flags a notification as read.
func (e *Engine) MarkNotificationRead(ctx context.Context, notificationID id.NotificationID) error {
	return e.store.MarkNotificationRead(ctx, notificationID)
}

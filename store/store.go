// Package store defines the unified storage interface for the
// reconciliation engine's authoritative state.
package store

import (
	"context"

	"github.com/xraph/reconcile/id"
	"github.com/xraph/reconcile/notification"
	"github.com/xraph/reconcile/profile"
	"github.com/xraph/reconcile/request"
	"github.com/xraph/reconcile/source"
)

// Store is the unified storage interface for all engine entities.
// Instead of embedding the sub-interfaces, we explicitly declare all
// methods to avoid naming conflicts.
type Store interface {
	// Profile methods
	CreateProfile(ctx context.Context, p *profile.Profile) error
	GetProfile(ctx context.Context, profileID string) (*profile.Profile, error)
	UpdateProfile(ctx context.Context, p *profile.Profile) error
	ListProfiles(ctx context.Context, opts profile.ListOpts) ([]*profile.Profile, error)

	// Order methods
	CreateOrder(ctx context.Context, o *request.Order) error
	GetOrder(ctx context.Context, orderID id.OrderID) (*request.Order, error)
	UpdateOrder(ctx context.Context, o *request.Order) error
	FindOrderByHandle(ctx context.Context, handle string) (*request.Order, error)
	ListOrders(ctx context.Context, profileID string, opts request.ListOpts) ([]*request.Order, error)

	// Charge methods
	CreateCharge(ctx context.Context, c *request.Charge) error
	GetCharge(ctx context.Context, chargeID id.ChargeID) (*request.Charge, error)
	UpdateCharge(ctx context.Context, c *request.Charge) error
	FindChargeByHandle(ctx context.Context, handle string) (*request.Charge, error)
	ListCharges(ctx context.Context, profileID string, opts request.ListOpts) ([]*request.Charge, error)

	// Notification methods
	AppendNotification(ctx context.Context, n *notification.Notification) error
	ListNotifications(ctx context.Context, profileID string, opts notification.ListOpts) ([]*notification.Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID id.NotificationID) error

	// Cursor methods. GetCursor returns the zero cursor for a channel
	// that has never advanced; SetCursor must commit durably before
	// returning so crash recovery replays at most the current batch.
	GetCursor(ctx context.Context, channel string) (source.Cursor, error)
	SetCursor(ctx context.Context, channel string, cur source.Cursor) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

package notification

import (
	"context"

	"github.com/xraph/reconcile/id"
)

type Store interface {
	Append(ctx context.Context, n *Notification) error
	List(ctx context.Context, profileID string, opts ListOpts) ([]*Notification, error)
	MarkRead(ctx context.Context, notificationID id.NotificationID) error
}

type ListOpts struct {
	// UnreadOnly limits results to notifications not yet marked read.
	UnreadOnly bool
	Limit      int
	Offset     int
}

package request

import (
	"context"

	"github.com/xraph/reconcile/id"
)

type Store interface {
	CreateOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, orderID id.OrderID) (*Order, error)
	UpdateOrder(ctx context.Context, o *Order) error
	FindOrderByHandle(ctx context.Context, handle string) (*Order, error)
	ListOrders(ctx context.Context, profileID string, opts ListOpts) ([]*Order, error)

	CreateCharge(ctx context.Context, c *Charge) error
	GetCharge(ctx context.Context, chargeID id.ChargeID) (*Charge, error)
	UpdateCharge(ctx context.Context, c *Charge) error
	FindChargeByHandle(ctx context.Context, handle string) (*Charge, error)
	ListCharges(ctx context.Context, profileID string, opts ListOpts) ([]*Charge, error)
}

type ListOpts struct {
	// Unresolved limits results to requests still awaiting a decision.
	Unresolved bool
	Limit      int
	Offset     int
}

// Package request defines the two administratively-decided request variants:
// service Orders and balance-top-up Charges. Both share a lifecycle: they are
// created pending, represented in the admin chat by an outbound notification
// whose opaque handle becomes the join key for the admin's reply, and resolve
// exactly once on the first terminal decision.
package request

import (
	"github.com/xraph/reconcile/id"
	"github.com/xraph/reconcile/types"
)

// Well-known status values. Status is a plain string because a free-text
// admin reply sets it verbatim without terminating the lifecycle.
const (
	StatusPending          = "pending"
	StatusCredited         = "credited"
	StatusApprovedNoCredit = "approved_no_credit"
	StatusRejected         = "rejected"
	StatusCompleted        = "completed"
)

// PaymentMode selects how an order is paid.
type PaymentMode string

const (
	PayCash        PaymentMode = "cash"
	PayFromBalance PaymentMode = "balance"
)

// Order is a service order. An order can carry a credit on approval
// (refund/cashback flows) independent of any balance debited at creation.
type Order struct {
	types.Entity
	ID          id.OrderID  `json:"id"`
	ProfileID   string      `json:"profile_id"`
	Kind        string      `json:"kind"`
	Details     string      `json:"details,omitempty"`
	PaymentMode PaymentMode `json:"payment_mode"`
	PaidAmount  types.Money `json:"paid_amount"`
	Status      string      `json:"status"`
	Handle      string      `json:"handle,omitempty"` // correlation handle, set once
	Replied     bool        `json:"replied"`
	Resolved    bool        `json:"resolved"`
}

// Charge is a balance top-up request.
type Charge struct {
	types.Entity
	ID              id.ChargeID `json:"id"`
	ProfileID       string      `json:"profile_id"`
	RequestedAmount types.Money `json:"requested_amount"`
	Method          string      `json:"method,omitempty"`
	Status          string      `json:"status"`
	Handle          string      `json:"handle,omitempty"` // correlation handle, set once
	Resolved        bool        `json:"resolved"`
}

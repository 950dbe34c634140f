package sqlite

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/reconcile/id"
	"github.com/xraph/reconcile/notification"
	"github.com/xraph/reconcile/profile"
	"github.com/xraph/reconcile/request"
	"github.com/xraph/reconcile/types"
)

// ==================== Profile models ====================

type profileModel struct {
	grove.BaseModel `grove:"table:reconcile_profiles"`

	ID              string    `grove:"id,pk"`
	DisplayName     string    `grove:"display_name"`
	Phone           string    `grove:"phone"`
	Address         string    `grove:"address"`
	BalanceAmount   int64     `grove:"balance_amount"`
	BalanceCurrency string    `grove:"balance_currency"`
	LifetimeAmount  int64     `grove:"lifetime_amount"`
	Editable        bool      `grove:"editable"`
	CreatedAt       time.Time `grove:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at"`
}

func toProfileModel(p *profile.Profile) *profileModel {
	return &profileModel{
		ID:              p.ID,
		DisplayName:     p.DisplayName,
		Phone:           p.Phone,
		Address:         p.Address,
		BalanceAmount:   p.Balance.Amount,
		BalanceCurrency: p.Balance.Currency,
		LifetimeAmount:  p.LifetimeTopup.Amount,
		Editable:        p.Editable,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func fromProfileModel(m *profileModel) *profile.Profile {
	return &profile.Profile{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            m.ID,
		DisplayName:   m.DisplayName,
		Phone:         m.Phone,
		Address:       m.Address,
		Balance:       types.Money{Amount: m.BalanceAmount, Currency: m.BalanceCurrency},
		LifetimeTopup: types.Money{Amount: m.LifetimeAmount, Currency: m.BalanceCurrency},
		Editable:      m.Editable,
	}
}

// ==================== Order models ====================

type orderModel struct {
	grove.BaseModel `grove:"table:reconcile_orders"`

	ID           string    `grove:"id,pk"`
	ProfileID    string    `grove:"profile_id"`
	Kind         string    `grove:"kind"`
	Details      string    `grove:"details"`
	PaymentMode  string    `grove:"payment_mode"`
	PaidAmount   int64     `grove:"paid_amount"`
	PaidCurrency string    `grove:"paid_currency"`
	Status       string    `grove:"status"`
	Handle       string    `grove:"handle"`
	Replied      bool      `grove:"replied"`
	Resolved     bool      `grove:"resolved"`
	CreatedAt    time.Time `grove:"created_at"`
	UpdatedAt    time.Time `grove:"updated_at"`
}

func toOrderModel(o *request.Order) *orderModel {
	return &orderModel{
		ID:           o.ID.String(),
		ProfileID:    o.ProfileID,
		Kind:         o.Kind,
		Details:      o.Details,
		PaymentMode:  string(o.PaymentMode),
		PaidAmount:   o.PaidAmount.Amount,
		PaidCurrency: o.PaidAmount.Currency,
		Status:       o.Status,
		Handle:       o.Handle,
		Replied:      o.Replied,
		Resolved:     o.Resolved,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
}

func fromOrderModel(m *orderModel) (*request.Order, error) {
	orderID, err := id.ParseOrderID(m.ID)
	if err != nil {
		return nil, err
	}

	return &request.Order{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          orderID,
		ProfileID:   m.ProfileID,
		Kind:        m.Kind,
		Details:     m.Details,
		PaymentMode: request.PaymentMode(m.PaymentMode),
		PaidAmount:  types.Money{Amount: m.PaidAmount, Currency: m.PaidCurrency},
		Status:      m.Status,
		Handle:      m.Handle,
		Replied:     m.Replied,
		Resolved:    m.Resolved,
	}, nil
}

// ==================== Charge models ====================

type chargeModel struct {
	grove.BaseModel `grove:"table:reconcile_charges"`

	ID                string    `grove:"id,pk"`
	ProfileID         string    `grove:"profile_id"`
	RequestedAmount   int64     `grove:"requested_amount"`
	RequestedCurrency string    `grove:"requested_currency"`
	Method            string    `grove:"method"`
	Status            string    `grove:"status"`
	Handle            string    `grove:"handle"`
	Resolved          bool      `grove:"resolved"`
	CreatedAt         time.Time `grove:"created_at"`
	UpdatedAt         time.Time `grove:"updated_at"`
}

func toChargeModel(c *request.Charge) *chargeModel {
	return &chargeModel{
		ID:                c.ID.String(),
		ProfileID:         c.ProfileID,
		RequestedAmount:   c.RequestedAmount.Amount,
		RequestedCurrency: c.RequestedAmount.Currency,
		Method:            c.Method,
		Status:            c.Status,
		Handle:            c.Handle,
		Resolved:          c.Resolved,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

func fromChargeModel(m *chargeModel) (*request.Charge, error) {
	chargeID, err := id.ParseChargeID(m.ID)
	if err != nil {
		return nil, err
	}

	return &request.Charge{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:              chargeID,
		ProfileID:       m.ProfileID,
		RequestedAmount: types.Money{Amount: m.RequestedAmount, Currency: m.RequestedCurrency},
		Method:          m.Method,
		Status:          m.Status,
		Handle:          m.Handle,
		Resolved:        m.Resolved,
	}, nil
}

// ==================== Notification models ====================

type notificationModel struct {
	grove.BaseModel `grove:"table:reconcile_notifications"`

	ID        string    `grove:"id,pk"`
	ProfileID string    `grove:"profile_id"`
	Text      string    `grove:"text"`
	Read      bool      `grove:"read"`
	CreatedAt time.Time `grove:"created_at"`
}

func toNotificationModel(n *notification.Notification) *notificationModel {
	return &notificationModel{
		ID:        n.ID.String(),
		ProfileID: n.ProfileID,
		Text:      n.Text,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}

func fromNotificationModel(m *notificationModel) (*notification.Notification, error) {
	notificationID, err := id.ParseNotificationID(m.ID)
	if err != nil {
		return nil, err
	}

	return &notification.Notification{
		ID:        notificationID,
		ProfileID: m.ProfileID,
		Text:      m.Text,
		Read:      m.Read,
		CreatedAt: m.CreatedAt,
	}, nil
}

// ==================== Cursor models ====================

type cursorModel struct {
	grove.BaseModel `grove:"table:reconcile_cursors"`

	Channel   string    `grove:"channel,pk"`
	Position  int64     `grove:"position"`
	UpdatedAt time.Time `grove:"updated_at"`
}

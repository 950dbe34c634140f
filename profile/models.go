package profile

import (
	"github.com/xraph/reconcile/types"
)

// Profile is a user account holding the authoritative balance.
// The ID is externally assigned and opaque; profiles are never deleted.
type Profile struct {
	types.Entity
	ID            string      `json:"id"`
	DisplayName   string      `json:"display_name"`
	Phone         string      `json:"phone,omitempty"`
	Address       string      `json:"address,omitempty"`
	Balance       types.Money `json:"balance"`
	LifetimeTopup types.Money `json:"lifetime_topup"` // monotonically non-decreasing
	Editable      bool        `json:"editable"`
}

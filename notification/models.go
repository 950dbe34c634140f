package notification

import (
	"time"

	"github.com/xraph/reconcile/id"
)

// Notification is an append-only user-visible record of a reconciliation
// outcome. Only the Read flag is ever mutated after creation.
type Notification struct {
	ID        id.NotificationID `json:"id"`
	ProfileID string            `json:"profile_id"`
	Text      string            `json:"text"`
	Read      bool              `json:"read"`
	CreatedAt time.Time         `json:"created_at"`
}

// Package mirror defines the secondary balance store contract.
//
// The mirror is best-effort: writes are retried by the caller and
// abandoned after a fixed budget, reads may be stale. The local ledger
// is authoritative and wins every conflict; the documented anti-entropy
// rule is max-merge so a stale mirror read can never lower a fresher
// local balance.
package mirror

import (
	"context"
	"errors"

	"github.com/xraph/reconcile/types"
)

// ErrAbsent is returned by ReadBalance when the mirror has no row for
// the profile.
var ErrAbsent = errors.New("mirror: balance absent")

// Mirror is a row-per-profile balance store.
type Mirror interface {
	// UpsertBalance writes the balance for a profile. It is never
	// retried internally; the caller owns the retry budget.
	UpsertBalance(ctx context.Context, profileID string, balance types.Money) error

	// ReadBalance returns the mirrored balance or ErrAbsent.
	ReadBalance(ctx context.Context, profileID string) (types.Money, error)
}

// Merge reconciles a local balance with a mirror read: the larger value
// wins. A currency mismatch means corrupted mirror data, in which case
// the local value is kept.
func Merge(local, mirrored types.Money) types.Money {
	if mirrored.Currency != local.Currency {
		return local
	}
	if mirrored.GreaterThan(local) {
		return mirrored
	}
	return local
}

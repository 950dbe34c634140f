package reconcile

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("reconcile: not found")
	ErrAlreadyExists = errors.New("reconcile: already exists")
	ErrInvalidInput  = errors.New("reconcile: invalid input")

	// Profile errors
	ErrProfileNotFound     = errors.New("reconcile: profile not found")
	ErrProfileExists       = errors.New("reconcile: profile already exists")
	ErrInsufficientBalance = errors.New("reconcile: insufficient balance")
	ErrProfileLocked       = errors.New("reconcile: profile not editable")

	// Request errors
	ErrOrderNotFound    = errors.New("reconcile: order not found")
	ErrChargeNotFound   = errors.New("reconcile: charge not found")
	ErrAlreadyResolved  = errors.New("reconcile: request already resolved")
	ErrHandleAlreadySet = errors.New("reconcile: correlation handle already set")
	ErrInvalidAmount    = errors.New("reconcile: invalid amount")

	// Notification errors
	ErrNotificationNotFound = errors.New("reconcile: notification not found")

	// Source errors
	ErrChannelNotRegistered = errors.New("reconcile: channel not registered")

	// Mirror errors
	ErrMirrorUnavailable = errors.New("reconcile: mirror unavailable")

	// Store errors
	ErrStoreNotReady     = errors.New("reconcile: store not ready")
	ErrStoreClosed       = errors.New("reconcile: store is closed")
	ErrTransactionFailed = errors.New("reconcile: transaction failed")
	ErrMigrationFailed   = errors.New("reconcile: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("reconcile: validation failed for %s: %s", e.Field, e.Message)
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrProfileNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrChargeNotFound) ||
		errors.Is(err, ErrNotificationNotFound)
}

// IsRetryable returns true if the error is temporary and the operation
// can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed) ||
		errors.Is(err, ErrMirrorUnavailable)
}

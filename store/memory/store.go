// Package memory provides an in-memory Store implementation, used for
// tests and as the default backend when no durable store is wired.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xraph/reconcile"
	"github.com/xraph/reconcile/id"
	"github.com/xraph/reconcile/notification"
	"github.com/xraph/reconcile/profile"
	"github.com/xraph/reconcile/request"
	"github.com/xraph/reconcile/source"
)

type Store struct {
	mu sync.RWMutex

	// Profile storage
	profiles map[string]*profile.Profile

	// Request storage
	orders  map[string]*request.Order
	charges map[string]*request.Charge

	// Notification storage, append-only per profile
	notifications []*notification.Notification

	// Cursor storage
	cursors map[string]source.Cursor
}

func New() *Store {
	return &Store{
		profiles: make(map[string]*profile.Profile),
		orders:   make(map[string]*request.Order),
		charges:  make(map[string]*request.Charge),
		cursors:  make(map[string]source.Cursor),
	}
}

// Profile Store implementation.
//
// All reads hand back copies so callers can mutate freely and commit
// through Update; sharing pointers would let an in-flight mutation
// become visible before its write.
func (s *Store) CreateProfile(_ context.Context, p *profile.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.profiles[p.ID]; exists {
		return reconcile.ErrProfileExists
	}
	cp := *p
	s.profiles[p.ID] = &cp
	return nil
}

func (s *Store) GetProfile(_ context.Context, profileID string) (*profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.profiles[profileID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, reconcile.ErrProfileNotFound
}

func (s *Store) UpdateProfile(_ context.Context, p *profile.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.profiles[p.ID]; !exists {
		return reconcile.ErrProfileNotFound
	}
	cp := *p
	s.profiles[p.ID] = &cp
	return nil
}

func (s *Store) ListProfiles(_ context.Context, opts profile.ListOpts) ([]*profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*profile.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		cp := *p
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	return window(result, opts.Offset, opts.Limit), nil
}

// Order Store implementation
func (s *Store) CreateOrder(_ context.Context, o *request.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[o.ID.String()]; exists {
		return reconcile.ErrAlreadyExists
	}
	cp := *o
	s.orders[o.ID.String()] = &cp
	return nil
}

func (s *Store) GetOrder(_ context.Context, orderID id.OrderID) (*request.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if o, ok := s.orders[orderID.String()]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, reconcile.ErrOrderNotFound
}

func (s *Store) UpdateOrder(_ context.Context, o *request.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[o.ID.String()]; !exists {
		return reconcile.ErrOrderNotFound
	}
	cp := *o
	s.orders[o.ID.String()] = &cp
	return nil
}

func (s *Store) FindOrderByHandle(_ context.Context, handle string) (*request.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if handle == "" {
		return nil, reconcile.ErrOrderNotFound
	}
	for _, o := range s.orders {
		if o.Handle == handle {
			cp := *o
			return &cp, nil
		}
	}
	return nil, reconcile.ErrOrderNotFound
}

func (s *Store) ListOrders(_ context.Context, profileID string, opts request.ListOpts) ([]*request.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*request.Order, 0)
	for _, o := range s.orders {
		if o.ProfileID != profileID {
			continue
		}
		if opts.Unresolved && o.Resolved {
			continue
		}
		cp := *o
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID.String() < result[j].ID.String() })

	return window(result, opts.Offset, opts.Limit), nil
}

// Charge Store implementation
func (s *Store) CreateCharge(_ context.Context, c *request.Charge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.charges[c.ID.String()]; exists {
		return reconcile.ErrAlreadyExists
	}
	cp := *c
	s.charges[c.ID.String()] = &cp
	return nil
}

func (s *Store) GetCharge(_ context.Context, chargeID id.ChargeID) (*request.Charge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.charges[chargeID.String()]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, reconcile.ErrChargeNotFound
}

func (s *Store) UpdateCharge(_ context.Context, c *request.Charge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.charges[c.ID.String()]; !exists {
		return reconcile.ErrChargeNotFound
	}
	cp := *c
	s.charges[c.ID.String()] = &cp
	return nil
}

func (s *Store) FindChargeByHandle(_ context.Context, handle string) (*request.Charge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if handle == "" {
		return nil, reconcile.ErrChargeNotFound
	}
	for _, c := range s.charges {
		if c.Handle == handle {
			cp := *c
			return &cp, nil
		}
	}
	return nil, reconcile.ErrChargeNotFound
}

func (s *Store) ListCharges(_ context.Context, profileID string, opts request.ListOpts) ([]*request.Charge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*request.Charge, 0)
	for _, c := range s.charges {
		if c.ProfileID != profileID {
			continue
		}
		if opts.Unresolved && c.Resolved {
			continue
		}
		cp := *c
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID.String() < result[j].ID.String() })

	return window(result, opts.Offset, opts.Limit), nil
}

// Notification Store implementation
func (s *Store) AppendNotification(_ context.Context, n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *n
	s.notifications = append(s.notifications, &cp)
	return nil
}

func (s *Store) ListNotifications(_ context.Context, profileID string, opts notification.ListOpts) ([]*notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*notification.Notification, 0)
	for _, n := range s.notifications {
		if n.ProfileID != profileID {
			continue
		}
		if opts.UnreadOnly && n.Read {
			continue
		}
		cp := *n
		result = append(result, &cp)
	}

	return window(result, opts.Offset, opts.Limit), nil
}

func (s *Store) MarkNotificationRead(_ context.Context, notificationID id.NotificationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.notifications {
		if n.ID == notificationID {
			n.Read = true
			return nil
		}
	}
	return reconcile.ErrNotificationNotFound
}

// Cursor Store implementation
func (s *Store) GetCursor(_ context.Context, channel string) (source.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cursors[channel], nil
}

func (s *Store) SetCursor(_ context.Context, channel string, cur source.Cursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Cursors never move backwards.
	if cur < s.cursors[channel] {
		return nil
	}
	s.cursors[channel] = cur
	return nil
}

// Store management
func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	return nil // Always available
}

func (s *Store) Close() error {
	return nil // Nothing to close
}

// window applies offset/limit to a result slice.
func window[T any](result []T, offset, limit int) []T {
	start := offset
	if start > len(result) {
		start = len(result)
	}
	end := start + limit
	if limit == 0 || end > len(result) {
		end = len(result)
	}
	return result[start:end]
}

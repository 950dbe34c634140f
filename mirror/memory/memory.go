// Package memory provides an in-memory Mirror implementation for tests
// and single-process deployments.
package memory

import (
	"context"
	"sync"

	"github.com/xraph/reconcile/mirror"
	"github.com/xraph/reconcile/types"
)

type Mirror struct {
	mu       sync.RWMutex
	balances map[string]types.Money

	// FailWrites makes every UpsertBalance return the given error
	// until cleared. Used to exercise retry and degraded paths.
	failWrites error
}

var _ mirror.Mirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{
		balances: make(map[string]types.Money),
	}
}

func (m *Mirror) UpsertBalance(_ context.Context, profileID string, balance types.Money) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWrites != nil {
		return m.failWrites
	}
	m.balances[profileID] = balance
	return nil
}

func (m *Mirror) ReadBalance(_ context.Context, profileID string) (types.Money, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if b, ok := m.balances[profileID]; ok {
		return b, nil
	}
	return types.Money{}, mirror.ErrAbsent
}

// SetFailWrites injects a write failure; pass nil to restore writes.
func (m *Mirror) SetFailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrites = err
}

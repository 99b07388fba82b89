package service

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/wallet/internal/adapter/storage"
	"github.com/rl1809/wallet/internal/core/domain"
	"github.com/rl1809/wallet/internal/port"
)

// mockAccountStore wraps a store with fault injection and call counters.
type mockAccountStore struct {
	port.AccountStore

	mu              sync.Mutex
	forcedConflicts int   // remaining CompareAndUpdate calls that report a conflict
	alwaysConflict  bool  // every CompareAndUpdate reports a conflict
	failWith        error // every call fails with this error

	getCalls    atomic.Int32
	casCalls    atomic.Int32
	adjustCalls atomic.Int32
}

func newMockAccountStore() *mockAccountStore {
	return wrapAccountStore(storage.NewMemoryAdapter())
}

func wrapAccountStore(inner port.AccountStore) *mockAccountStore {
	return &mockAccountStore{AccountStore: inner}
}

func (m *mockAccountStore) injected() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failWith
}

func (m *mockAccountStore) Create(ctx context.Context, initialBalance decimal.Decimal) (*domain.Account, error) {
	if err := m.injected(); err != nil {
		return nil, err
	}
	return m.AccountStore.Create(ctx, initialBalance)
}

func (m *mockAccountStore) Get(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	m.getCalls.Add(1)
	if err := m.injected(); err != nil {
		return nil, err
	}
	return m.AccountStore.Get(ctx, id)
}

func (m *mockAccountStore) CompareAndUpdate(ctx context.Context, id uuid.UUID, expectedVersion int64, newBalance decimal.Decimal) error {
	m.casCalls.Add(1)
	if err := m.injected(); err != nil {
		return err
	}

	m.mu.Lock()
	conflict := m.alwaysConflict || m.forcedConflicts > 0
	if m.forcedConflicts > 0 {
		m.forcedConflicts--
	}
	m.mu.Unlock()
	if conflict {
		return domain.ErrVersionConflict
	}

	return m.AccountStore.CompareAndUpdate(ctx, id, expectedVersion, newBalance)
}

func (m *mockAccountStore) ConditionalAdjust(ctx context.Context, id uuid.UUID, delta decimal.Decimal, requireSufficientFunds bool) (int64, error) {
	m.adjustCalls.Add(1)
	if err := m.injected(); err != nil {
		return 0, err
	}
	return m.AccountStore.ConditionalAdjust(ctx, id, delta, requireSufficientFunds)
}

func (m *mockAccountStore) List(ctx context.Context) ([]domain.Account, error) {
	if err := m.injected(); err != nil {
		return nil, err
	}
	return m.AccountStore.List(ctx)
}

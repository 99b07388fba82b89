package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/wallet/internal/core/domain"
)

// MemoryAdapter keeps accounts in process memory. The mutex stands in for the
// row lock a database takes while evaluating a single statement.
type MemoryAdapter struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]domain.Account
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{accounts: make(map[uuid.UUID]domain.Account)}
}

func (m *MemoryAdapter) Create(ctx context.Context, initialBalance decimal.Decimal) (*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := domain.CheckBalance(initialBalance); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	acc := domain.Account{
		ID:        uuid.New(),
		Balance:   initialBalance.Round(domain.Scale),
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	m.accounts[acc.ID] = acc
	m.mu.Unlock()

	return &acc, nil
}

func (m *MemoryAdapter) Get(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	acc, ok := m.accounts[id]
	m.mu.Unlock()

	if !ok {
		return nil, domain.ErrWalletNotFound
	}
	return &acc, nil
}

func (m *MemoryAdapter) CompareAndUpdate(ctx context.Context, id uuid.UUID, expectedVersion int64, newBalance decimal.Decimal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := domain.CheckBalance(newBalance); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := m.accounts[id]
	if !ok {
		return domain.ErrWalletNotFound
	}
	if acc.Version != expectedVersion {
		return domain.ErrVersionConflict
	}

	acc.Balance = newBalance.Round(domain.Scale)
	acc.Version++
	acc.UpdatedAt = time.Now().UTC()
	m.accounts[id] = acc
	return nil
}

func (m *MemoryAdapter) ConditionalAdjust(ctx context.Context, id uuid.UUID, delta decimal.Decimal, requireSufficientFunds bool) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !domain.WithinLimit(delta) {
		return 0, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := m.accounts[id]
	if !ok {
		return 0, nil
	}

	newBalance := acc.Balance.Add(delta)
	if newBalance.GreaterThan(domain.MaxBalance) {
		return 0, nil
	}
	if requireSufficientFunds && newBalance.IsNegative() {
		return 0, nil
	}

	acc.Balance = newBalance.Round(domain.Scale)
	acc.Version++
	acc.UpdatedAt = time.Now().UTC()
	m.accounts[id] = acc
	return 1, nil
}

func (m *MemoryAdapter) List(ctx context.Context) ([]domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	accounts := make([]domain.Account, 0, len(m.accounts))
	for _, acc := range m.accounts {
		accounts = append(accounts, acc)
	}
	m.mu.Unlock()

	sort.Slice(accounts, func(i, j int) bool {
		if !accounts[i].CreatedAt.Equal(accounts[j].CreatedAt) {
			return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
		}
		return accounts[i].ID.String() < accounts[j].ID.String()
	})
	return accounts, nil
}

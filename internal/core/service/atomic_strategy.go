package service

import (
	"context"

	"github.com/rl1809/wallet/internal/core/domain"
	"github.com/rl1809/wallet/internal/port"
)

// AtomicStrategy lets the store evaluate the funds guard, the balance ceiling
// and the arithmetic in one step, so no client-side retry is needed.
type AtomicStrategy struct {
	store port.AccountStore
}

func NewAtomicStrategy(store port.AccountStore) *AtomicStrategy {
	return &AtomicStrategy{store: store}
}

func (s *AtomicStrategy) Name() string { return StrategyAtomic }

func (s *AtomicStrategy) Apply(ctx context.Context, op domain.Operation) (*domain.Account, error) {
	withdraw := op.Kind == domain.OperationWithdraw

	rows, err := s.store.ConditionalAdjust(ctx, op.AccountID, op.Delta(), withdraw)
	if err != nil {
		return nil, err
	}

	if rows == 0 {
		// Existence is checked first. A present account means the funds guard
		// failed for a withdrawal and the balance ceiling for a deposit.
		acc, err := s.store.Get(ctx, op.AccountID)
		if err != nil {
			return nil, err
		}
		if !withdraw {
			return nil, domain.ErrBalanceLimitExceeded
		}
		return nil, &domain.InsufficientFundsError{
			WalletID:  acc.ID,
			Balance:   acc.Balance,
			Requested: op.Amount,
		}
	}

	return s.store.Get(ctx, op.AccountID)
}

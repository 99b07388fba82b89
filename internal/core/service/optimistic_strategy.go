package service

import (
	"context"

	"github.com/rl1809/wallet/internal/core/domain"
	"github.com/rl1809/wallet/internal/port"
)

// OptimisticStrategy reads the account, computes the new balance locally and
// writes it back with a version check, repeating the cycle on conflict.
type OptimisticStrategy struct {
	store  port.AccountStore
	policy RetryPolicy
}

func NewOptimisticStrategy(store port.AccountStore, policy RetryPolicy) *OptimisticStrategy {
	return &OptimisticStrategy{store: store, policy: policy}
}

func (s *OptimisticStrategy) Name() string { return StrategyOptimistic }

func (s *OptimisticStrategy) Apply(ctx context.Context, op domain.Operation) (*domain.Account, error) {
	_, err := s.policy.Do(ctx, func() error {
		acc, err := s.store.Get(ctx, op.AccountID)
		if err != nil {
			return err
		}

		if op.Kind == domain.OperationWithdraw && acc.Balance.LessThan(op.Amount) {
			return &domain.InsufficientFundsError{
				WalletID:  acc.ID,
				Balance:   acc.Balance,
				Requested: op.Amount,
			}
		}

		newBalance := acc.Balance.Add(op.Delta())
		if err := domain.CheckBalance(newBalance); err != nil {
			return err
		}
		return s.store.CompareAndUpdate(ctx, acc.ID, acc.Version, newBalance)
	})
	if err != nil {
		return nil, err
	}

	// timestamps are assigned by the store
	return s.store.Get(ctx, op.AccountID)
}

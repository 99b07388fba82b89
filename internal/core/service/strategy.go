package service

import (
	"context"
	"fmt"

	"github.com/rl1809/wallet/internal/core/domain"
	"github.com/rl1809/wallet/internal/port"
)

const (
	StrategyAtomic     = "atomic"
	StrategyOptimistic = "optimistic"
)

// Strategy applies a validated operation to the store and returns the
// resulting account.
type Strategy interface {
	Name() string
	Apply(ctx context.Context, op domain.Operation) (*domain.Account, error)
}

func NewStrategy(name string, store port.AccountStore, policy RetryPolicy) (Strategy, error) {
	switch name {
	case StrategyAtomic, "":
		return NewAtomicStrategy(store), nil
	case StrategyOptimistic:
		return NewOptimisticStrategy(store, policy), nil
	default:
		return nil, fmt.Errorf("unknown balance strategy %q", name)
	}
}

package port

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/wallet/internal/core/domain"
)

type AccountStore interface {
	// Create persists a new account with the given balance and version 0
	Create(ctx context.Context, initialBalance decimal.Decimal) (*domain.Account, error)

	// Get retrieves an account by ID, returns domain.ErrWalletNotFound if absent
	Get(ctx context.Context, id uuid.UUID) (*domain.Account, error)

	// CompareAndUpdate sets the balance only if the stored version still equals expectedVersion.
	// Returns domain.ErrVersionConflict on mismatch and domain.ErrWalletNotFound if absent.
	CompareAndUpdate(ctx context.Context, id uuid.UUID, expectedVersion int64, newBalance decimal.Decimal) error

	// ConditionalAdjust atomically adds delta to the balance, guarded by existence and,
	// if requireSufficientFunds is set, by balance + delta >= 0. Returns rows affected (0 or 1).
	ConditionalAdjust(ctx context.Context, id uuid.UUID, delta decimal.Decimal, requireSufficientFunds bool) (int64, error)

	// List returns every account ordered by creation time
	List(ctx context.Context) ([]domain.Account, error)
}

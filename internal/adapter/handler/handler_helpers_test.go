package handler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/wallet/internal/adapter/storage"
	"github.com/rl1809/wallet/internal/core/domain"
	"github.com/rl1809/wallet/internal/core/service"
)

// conflictStore loses every compare-and-update race.
type conflictStore struct {
	*storage.MemoryAdapter
}

func (s *conflictStore) CompareAndUpdate(ctx context.Context, id uuid.UUID, expectedVersion int64, newBalance decimal.Decimal) error {
	if _, err := s.MemoryAdapter.Get(ctx, id); err != nil {
		return err
	}
	return domain.ErrVersionConflict
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWalletService(t *testing.T) *service.WalletService {
	t.Helper()
	store := storage.NewMemoryAdapter()
	return service.NewWalletService(store, service.NewAtomicStrategy(store), discardLogger())
}

func newConflictWalletService(t *testing.T) *service.WalletService {
	t.Helper()
	store := &conflictStore{MemoryAdapter: storage.NewMemoryAdapter()}
	strategy := service.NewOptimisticStrategy(store, service.RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	})
	return service.NewWalletService(store, strategy, discardLogger())
}

func seedWallet(t *testing.T, svc *service.WalletService, balance string) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	acc, err := svc.CreateWallet(ctx)
	require.NoError(t, err)
	if balance != "" {
		_, err = svc.ApplyOperation(ctx, domain.Operation{
			AccountID: acc.ID,
			Kind:      domain.OperationDeposit,
			Amount:    decimal.RequireFromString(balance),
		})
		require.NoError(t, err)
	}
	return acc.ID
}

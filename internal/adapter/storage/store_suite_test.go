package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/wallet/internal/core/domain"
	"github.com/rl1809/wallet/internal/port"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertBalance(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "expected balance %s, got %s", want, got)
}

// runAccountStoreSuite checks the contract every AccountStore implementation must honour.
func runAccountStoreSuite(t *testing.T, store port.AccountStore) {
	ctx := context.Background()

	t.Run("create starts at version zero", func(t *testing.T) {
		acc, err := store.Create(ctx, decimal.Zero)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, acc.ID)
		assertBalance(t, "0", acc.Balance)
		assert.Equal(t, int64(0), acc.Version)

		got, err := store.Get(ctx, acc.ID)
		require.NoError(t, err)
		assert.Equal(t, acc.ID, got.ID)
		assertBalance(t, "0", got.Balance)
		assert.Equal(t, int64(0), got.Version)
		assert.False(t, got.CreatedAt.IsZero())
	})

	t.Run("create with initial balance", func(t *testing.T) {
		acc, err := store.Create(ctx, dec("42.50"))
		require.NoError(t, err)

		got, err := store.Get(ctx, acc.ID)
		require.NoError(t, err)
		assertBalance(t, "42.50", got.Balance)
	})

	t.Run("get unknown wallet", func(t *testing.T) {
		_, err := store.Get(ctx, uuid.New())
		assert.ErrorIs(t, err, domain.ErrWalletNotFound)
	})

	t.Run("compare and update", func(t *testing.T) {
		acc, err := store.Create(ctx, decimal.Zero)
		require.NoError(t, err)

		require.NoError(t, store.CompareAndUpdate(ctx, acc.ID, 0, dec("90.25")))

		got, err := store.Get(ctx, acc.ID)
		require.NoError(t, err)
		assertBalance(t, "90.25", got.Balance)
		assert.Equal(t, int64(1), got.Version)

		// stale version
		err = store.CompareAndUpdate(ctx, acc.ID, 0, dec("1"))
		assert.ErrorIs(t, err, domain.ErrVersionConflict)

		got, err = store.Get(ctx, acc.ID)
		require.NoError(t, err)
		assertBalance(t, "90.25", got.Balance)
		assert.Equal(t, int64(1), got.Version)
	})

	t.Run("compare and update unknown wallet", func(t *testing.T) {
		err := store.CompareAndUpdate(ctx, uuid.New(), 0, dec("1"))
		assert.ErrorIs(t, err, domain.ErrWalletNotFound)
	})

	t.Run("conditional adjust", func(t *testing.T) {
		acc, err := store.Create(ctx, decimal.Zero)
		require.NoError(t, err)

		rows, err := store.ConditionalAdjust(ctx, acc.ID, dec("100"), false)
		require.NoError(t, err)
		assert.Equal(t, int64(1), rows)

		// more than available
		rows, err = store.ConditionalAdjust(ctx, acc.ID, dec("-150"), true)
		require.NoError(t, err)
		assert.Equal(t, int64(0), rows)

		got, err := store.Get(ctx, acc.ID)
		require.NoError(t, err)
		assertBalance(t, "100", got.Balance)
		assert.Equal(t, int64(1), got.Version)

		rows, err = store.ConditionalAdjust(ctx, acc.ID, dec("-100"), true)
		require.NoError(t, err)
		assert.Equal(t, int64(1), rows)

		got, err = store.Get(ctx, acc.ID)
		require.NoError(t, err)
		assertBalance(t, "0", got.Balance)
		assert.Equal(t, int64(2), got.Version)
	})

	t.Run("conditional adjust unknown wallet", func(t *testing.T) {
		rows, err := store.ConditionalAdjust(ctx, uuid.New(), dec("10"), false)
		require.NoError(t, err)
		assert.Equal(t, int64(0), rows)

		rows, err = store.ConditionalAdjust(ctx, uuid.New(), dec("-10"), true)
		require.NoError(t, err)
		assert.Equal(t, int64(0), rows)
	})

	t.Run("compare and update keeps balance in range", func(t *testing.T) {
		acc, err := store.Create(ctx, dec("10"))
		require.NoError(t, err)

		err = store.CompareAndUpdate(ctx, acc.ID, 0, dec("-0.01"))
		assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

		err = store.CompareAndUpdate(ctx, acc.ID, 0, domain.MaxBalance.Add(dec("0.01")))
		assert.ErrorIs(t, err, domain.ErrBalanceLimitExceeded)

		err = store.CompareAndUpdate(ctx, acc.ID, 0, dec("1e30"))
		assert.ErrorIs(t, err, domain.ErrBalanceLimitExceeded)

		got, err := store.Get(ctx, acc.ID)
		require.NoError(t, err)
		assertBalance(t, "10", got.Balance)
		assert.Equal(t, int64(0), got.Version)

		require.NoError(t, store.CompareAndUpdate(ctx, acc.ID, 0, domain.MaxBalance))
		got, err = store.Get(ctx, acc.ID)
		require.NoError(t, err)
		assert.True(t, domain.MaxBalance.Equal(got.Balance))
	})

	t.Run("create rejects out of range balance", func(t *testing.T) {
		_, err := store.Create(ctx, dec("-1"))
		assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

		_, err = store.Create(ctx, domain.MaxBalance.Add(dec("0.01")))
		assert.ErrorIs(t, err, domain.ErrBalanceLimitExceeded)
	})

	t.Run("conditional adjust stops at the ceiling", func(t *testing.T) {
		acc, err := store.Create(ctx, domain.MaxBalance.Sub(dec("1")))
		require.NoError(t, err)

		rows, err := store.ConditionalAdjust(ctx, acc.ID, dec("1.01"), false)
		require.NoError(t, err)
		assert.Equal(t, int64(0), rows)

		rows, err = store.ConditionalAdjust(ctx, acc.ID, dec("1e30"), false)
		require.NoError(t, err)
		assert.Equal(t, int64(0), rows)

		got, err := store.Get(ctx, acc.ID)
		require.NoError(t, err)
		assert.True(t, domain.MaxBalance.Sub(dec("1")).Equal(got.Balance))
		assert.Equal(t, int64(0), got.Version)

		rows, err = store.ConditionalAdjust(ctx, acc.ID, dec("1"), false)
		require.NoError(t, err)
		assert.Equal(t, int64(1), rows)

		got, err = store.Get(ctx, acc.ID)
		require.NoError(t, err)
		assert.True(t, domain.MaxBalance.Equal(got.Balance))

		// withdrawals from a full wallet still pass the ceiling guard
		rows, err = store.ConditionalAdjust(ctx, acc.ID, domain.MaxBalance.Neg(), true)
		require.NoError(t, err)
		assert.Equal(t, int64(1), rows)
	})

	t.Run("concurrent deposits", func(t *testing.T) {
		acc, err := store.Create(ctx, decimal.Zero)
		require.NoError(t, err)

		const totalRequests = 50
		var wg sync.WaitGroup
		for i := 0; i < totalRequests; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				rows, err := store.ConditionalAdjust(ctx, acc.ID, dec("0.10"), false)
				if err != nil || rows != 1 {
					t.Errorf("deposit failed: rows=%d err=%v", rows, err)
				}
			}()
		}
		wg.Wait()

		got, err := store.Get(ctx, acc.ID)
		require.NoError(t, err)
		assertBalance(t, "5.00", got.Balance)
		assert.Equal(t, int64(totalRequests), got.Version)
	})

	t.Run("concurrent withdrawals never overdraw", func(t *testing.T) {
		acc, err := store.Create(ctx, dec("20"))
		require.NoError(t, err)

		const totalRequests = 50
		var successCount atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < totalRequests; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				rows, err := store.ConditionalAdjust(ctx, acc.ID, dec("-1"), true)
				if err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
				if rows == 1 {
					successCount.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(20), successCount.Load())

		got, err := store.Get(ctx, acc.ID)
		require.NoError(t, err)
		assertBalance(t, "0", got.Balance)
	})

	t.Run("list", func(t *testing.T) {
		first, err := store.Create(ctx, decimal.Zero)
		require.NoError(t, err)
		// creation timestamps have microsecond resolution
		time.Sleep(2 * time.Millisecond)
		second, err := store.Create(ctx, dec("5"))
		require.NoError(t, err)

		accounts, err := store.List(ctx)
		require.NoError(t, err)

		positions := make(map[uuid.UUID]int)
		for i, acc := range accounts {
			positions[acc.ID] = i
		}
		require.Contains(t, positions, first.ID)
		require.Contains(t, positions, second.ID)
		assert.Less(t, positions[first.ID], positions[second.ID])
		assertBalance(t, "5", accounts[positions[second.ID]].Balance)
	})
}

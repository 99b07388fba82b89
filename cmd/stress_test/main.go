package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/rl1809/wallet/internal/adapter/storage"
	"github.com/rl1809/wallet/internal/config"
	"github.com/rl1809/wallet/internal/core/domain"
	"github.com/rl1809/wallet/internal/core/service"
)

const (
	depositWorkers     = 50
	depositsPerWorker  = 4
	withdrawRequests   = 100
	withdrawalsAllowed = 60
)

var unit = decimal.NewFromInt(1)

func main() {
	ok, err := run()
	if err != nil {
		slog.Error("stress test aborted", "error", err)
		os.Exit(1)
	}
	if !ok {
		os.Exit(1)
	}
}

func run() (bool, error) {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return false, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	store, closeStore, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		return false, err
	}
	defer closeStore()

	strategy, err := service.NewStrategy(cfg.BalanceStrategy, store, service.RetryPolicy{
		MaxAttempts:    cfg.RetryMaxAttempts,
		InitialBackoff: cfg.RetryInitialBackoff,
		MaxBackoff:     cfg.RetryMaxBackoff,
	})
	if err != nil {
		return false, err
	}
	walletService := service.NewWalletService(store, strategy, logger)

	acc, err := walletService.CreateWallet(ctx)
	if err != nil {
		return false, err
	}

	fmt.Printf("Wallet:   %s\n", acc.ID)
	fmt.Printf("Store:    %s\n", cfg.StoreDriver)
	fmt.Printf("Strategy: %s\n", strategy.Name())

	// Phase 1: concurrent deposits
	start := time.Now()
	depositFailures, err := runDeposits(ctx, walletService, acc.ID)
	if err != nil {
		return false, err
	}
	depositElapsed := time.Since(start)

	acc, err = walletService.GetBalance(ctx, acc.ID)
	if err != nil {
		return false, err
	}
	afterDeposits := acc.Balance

	// Phase 2: drain part of the balance, then overdraw it. Lost deposits
	// leave nothing to drain; the report below flags them.
	if drain := drainAmount(afterDeposits); drain.IsPositive() {
		if _, err := walletService.ApplyOperation(ctx, domain.Operation{
			AccountID: acc.ID,
			Kind:      domain.OperationWithdraw,
			Amount:    drain,
		}); err != nil {
			return false, err
		}
	}

	start = time.Now()
	withdrawn, rejected, withdrawFailures, err := runWithdrawals(ctx, walletService, acc.ID)
	if err != nil {
		return false, err
	}
	withdrawElapsed := time.Since(start)

	acc, err = walletService.GetBalance(ctx, acc.ID)
	if err != nil {
		return false, err
	}

	expectedDeposits := decimal.NewFromInt(depositWorkers * depositsPerWorker)

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Deposits:            %d x %d\n", depositWorkers, depositsPerWorker)
	fmt.Printf("Deposit Failures:    %d\n", depositFailures)
	fmt.Printf("Balance After:       %s\n", afterDeposits.StringFixed(domain.Scale))
	fmt.Printf("Deposit Duration:    %v\n", depositElapsed)
	fmt.Printf("Withdraw Requests:   %d\n", withdrawRequests)
	fmt.Printf("Withdrawn:           %d\n", withdrawn)
	fmt.Printf("Rejected (funds):    %d\n", rejected)
	fmt.Printf("Withdraw Failures:   %d\n", withdrawFailures)
	fmt.Printf("Withdraw Duration:   %v\n", withdrawElapsed)
	fmt.Printf("Final Balance:       %s\n", acc.Balance.StringFixed(domain.Scale))
	fmt.Println("==========================================")

	ok := true
	check := func(cond bool, pass, fail string) {
		if cond {
			fmt.Println("PASS: " + pass)
			return
		}
		ok = false
		fmt.Println("FAIL: " + fail)
	}

	check(depositFailures == 0 && afterDeposits.Equal(expectedDeposits),
		fmt.Sprintf("balance reached %s with no lost deposits", expectedDeposits.StringFixed(domain.Scale)),
		fmt.Sprintf("expected %s after deposits, got %s (%d failures)",
			expectedDeposits.StringFixed(domain.Scale), afterDeposits.StringFixed(domain.Scale), depositFailures))
	check(withdrawn == withdrawalsAllowed && rejected == withdrawRequests-withdrawalsAllowed,
		fmt.Sprintf("exactly %d withdrawals succeeded", withdrawalsAllowed),
		fmt.Sprintf("expected %d/%d withdrawn/rejected, got %d/%d",
			withdrawalsAllowed, withdrawRequests-withdrawalsAllowed, withdrawn, rejected))
	check(acc.Balance.IsZero(),
		"balance drained to 0.00",
		"expected balance 0.00, got "+acc.Balance.StringFixed(domain.Scale))

	return ok, nil
}

// drainAmount is what must be withdrawn so exactly withdrawalsAllowed unit
// withdrawals can succeed. It is zero when the balance is already short.
func drainAmount(balance decimal.Decimal) decimal.Decimal {
	drain := balance.Sub(decimal.NewFromInt(withdrawalsAllowed))
	if !drain.IsPositive() {
		return decimal.Zero
	}
	return drain
}

func runDeposits(ctx context.Context, svc *service.WalletService, id uuid.UUID) (int32, error) {
	var failures atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	for range depositWorkers {
		g.Go(func() error {
			for range depositsPerWorker {
				_, err := svc.ApplyOperation(gctx, domain.Operation{
					AccountID: id,
					Kind:      domain.OperationDeposit,
					Amount:    unit,
				})
				switch {
				case err == nil:
				case errors.Is(err, domain.ErrConcurrentUpdate):
					failures.Add(1)
				default:
					return err
				}
			}
			return nil
		})
	}

	err := g.Wait()
	return failures.Load(), err
}

func runWithdrawals(ctx context.Context, svc *service.WalletService, id uuid.UUID) (int32, int32, int32, error) {
	var withdrawn, rejected, failures atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	for range withdrawRequests {
		g.Go(func() error {
			_, err := svc.ApplyOperation(gctx, domain.Operation{
				AccountID: id,
				Kind:      domain.OperationWithdraw,
				Amount:    unit,
			})
			switch {
			case err == nil:
				withdrawn.Add(1)
			case errors.Is(err, domain.ErrInsufficientFunds):
				rejected.Add(1)
			case errors.Is(err, domain.ErrConcurrentUpdate):
				failures.Add(1)
			default:
				return err
			}
			return nil
		})
	}

	err := g.Wait()
	return withdrawn.Load(), rejected.Load(), failures.Load(), err
}

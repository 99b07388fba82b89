package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/wallet/internal/core/domain"
	"github.com/rl1809/wallet/internal/port"
)

type WalletService struct {
	store    port.AccountStore
	strategy Strategy
	logger   *slog.Logger
}

func NewWalletService(store port.AccountStore, strategy Strategy, logger *slog.Logger) *WalletService {
	if logger == nil {
		logger = slog.Default()
	}
	return &WalletService{
		store:    store,
		strategy: strategy,
		logger:   logger.With("component", "wallet_service", "strategy", strategy.Name()),
	}
}

func (s *WalletService) CreateWallet(ctx context.Context) (*domain.Account, error) {
	acc, err := s.store.Create(ctx, decimal.Zero)
	if err != nil {
		return nil, wrapStoreErr("create wallet", err)
	}

	s.logger.InfoContext(ctx, "wallet created", "wallet_id", acc.ID)
	return acc, nil
}

// ApplyOperation deposits to or withdraws from a wallet using the configured strategy.
func (s *WalletService) ApplyOperation(ctx context.Context, op domain.Operation) (*domain.Account, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}

	log := s.logger.With("wallet_id", op.AccountID, "operation", op.Kind, "amount", op.Amount.String())
	log.DebugContext(ctx, "applying operation")

	acc, err := s.strategy.Apply(ctx, op)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInsufficientFunds),
			errors.Is(err, domain.ErrWalletNotFound),
			errors.Is(err, domain.ErrBalanceLimitExceeded):
			log.InfoContext(ctx, "operation rejected", "error", err)
		case errors.Is(err, domain.ErrConcurrentUpdate):
			log.WarnContext(ctx, "operation abandoned", "error", err)
		default:
			log.ErrorContext(ctx, "operation failed", "error", err)
		}
		return nil, wrapStoreErr("apply operation", err)
	}

	log.DebugContext(ctx, "operation committed", "balance", acc.Balance.String(), "version", acc.Version)
	return acc, nil
}

func (s *WalletService) GetBalance(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	if id == uuid.Nil {
		return nil, domain.ErrInvalidWalletID
	}

	acc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, wrapStoreErr("get balance", err)
	}
	return acc, nil
}

func (s *WalletService) ListWallets(ctx context.Context) ([]domain.Account, error) {
	accounts, err := s.store.List(ctx)
	if err != nil {
		return nil, wrapStoreErr("list wallets", err)
	}
	return accounts, nil
}

// wrapStoreErr passes domain outcomes through and tags everything else as an
// infrastructure failure.
func wrapStoreErr(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrWalletNotFound),
		errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrBalanceLimitExceeded),
		errors.Is(err, domain.ErrConcurrentUpdate),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidOperation),
		errors.Is(err, domain.ErrInvalidWalletID),
		errors.Is(err, domain.ErrStorage),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %s: %w", domain.ErrStorage, op, err)
	}
}

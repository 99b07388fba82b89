package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrVersionConflict   = errors.New("optimistic lock conflict")
	ErrConcurrentUpdate  = errors.New("wallet is being updated concurrently, retry later")
	ErrInvalidAmount     = errors.New("amount must be positive, at most 9999999999999.99, with at most 2 decimal places")
	ErrInvalidOperation  = errors.New("invalid operation type")
	ErrInvalidWalletID   = errors.New("invalid wallet id")
	ErrStorage           = errors.New("storage failure")

	ErrBalanceLimitExceeded = errors.New("balance would exceed the wallet limit of 9999999999999.99")
)

// InsufficientFundsError carries the balance observed when a withdrawal was rejected.
type InsufficientFundsError struct {
	WalletID  uuid.UUID
	Balance   decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: walletId=%s, balance=%s, requested=%s",
		e.WalletID, e.Balance.StringFixed(Scale), e.Requested.StringFixed(Scale))
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

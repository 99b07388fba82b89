package domain

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OperationKind string

const (
	OperationDeposit  OperationKind = "DEPOSIT"
	OperationWithdraw OperationKind = "WITHDRAW"
)

func ParseOperationKind(s string) (OperationKind, error) {
	switch kind := OperationKind(strings.ToUpper(strings.TrimSpace(s))); kind {
	case OperationDeposit, OperationWithdraw:
		return kind, nil
	default:
		return "", ErrInvalidOperation
	}
}

type Operation struct {
	AccountID uuid.UUID
	Kind      OperationKind
	Amount    decimal.Decimal
}

// Validate rejects operations that must never reach a store.
func (o Operation) Validate() error {
	if o.AccountID == uuid.Nil {
		return ErrInvalidWalletID
	}
	if o.Kind != OperationDeposit && o.Kind != OperationWithdraw {
		return ErrInvalidOperation
	}
	return ValidateAmount(o.Amount)
}

// Delta is the signed balance change the operation applies.
func (o Operation) Delta() decimal.Decimal {
	if o.Kind == OperationWithdraw {
		return o.Amount.Neg()
	}
	return o.Amount
}

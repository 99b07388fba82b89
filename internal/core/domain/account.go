package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits a balance is stored with.
const Scale int32 = 2

// MaxBalance is the largest balance a wallet may hold and the largest amount a
// single operation may move. In minor units it stays below 2^53, so Lua
// scripts compare it exactly.
var MaxBalance = decimal.New(999_999_999_999_999, -Scale)

// maxExponent bounds the decimal exponent accepted from callers. Decimals
// carry an int32 exponent, and arithmetic on an unbounded one expands the
// coefficient in full.
const maxExponent = 20

type Account struct {
	ID        uuid.UUID
	Balance   decimal.Decimal
	Version   int64 // optimistic locking
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WithinLimit reports whether |d| <= MaxBalance. The exponent is checked
// before any comparison so oversized input is rejected in constant time.
func WithinLimit(d decimal.Decimal) bool {
	if exp := d.Exponent(); exp > maxExponent || exp < -maxExponent {
		return false
	}
	return d.Abs().LessThanOrEqual(MaxBalance)
}

// IsMonetary reports whether amount fits the stored scale without rounding.
func IsMonetary(amount decimal.Decimal) bool {
	if amount.Exponent() < -maxExponent {
		return false
	}
	return amount.Equal(amount.Truncate(Scale))
}

// ValidateAmount accepts positive amounts of at most MaxBalance with no more
// than Scale fractional digits.
func ValidateAmount(amount decimal.Decimal) error {
	if !WithinLimit(amount) || !amount.IsPositive() || !IsMonetary(amount) {
		return ErrInvalidAmount
	}
	return nil
}

// CheckBalance reports whether balance may be stored.
func CheckBalance(balance decimal.Decimal) error {
	if !WithinLimit(balance) {
		return ErrBalanceLimitExceeded
	}
	if balance.IsNegative() {
		return ErrInsufficientFunds
	}
	return nil
}

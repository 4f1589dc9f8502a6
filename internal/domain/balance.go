package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AmountPrecision is the number of decimal places balances and amounts carry.
const AmountPrecision int32 = 8

// MinTransferAmount is the smallest amount a transfer may move.
var MinTransferAmount = decimal.New(1, -6)

type Balance struct {
	UserID    uuid.UUID
	Asset     Asset
	Amount    decimal.Decimal
	Version   int64
	UpdatedAt time.Time
}

// ValidateAmount rejects non-positive amounts, amounts below the transfer
// minimum and amounts with more than eight decimal places.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if amount.LessThan(MinTransferAmount) {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Truncate(AmountPrecision)) {
		return ErrInvalidAmount
	}
	return nil
}

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferIntent is the snapshot of a transfer request kept with its OTP
// challenge so Resend and Verify can act without the client resubmitting.
type TransferIntent struct {
	TransferID uuid.UUID       `json:"transfer_id"`
	Asset      Asset           `json:"asset"`
	Amount     decimal.Decimal `json:"amount"`
	ToAddress  string          `json:"to_address"`
	Kind       TransferKind    `json:"kind"`
}

type OTPChallenge struct {
	UserID     uuid.UUID
	TransferID uuid.UUID
	CodeHash   string
	ExpiresAt  time.Time
	Attempts   int
	Intent     TransferIntent
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (c *OTPChallenge) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EntryType string

const (
	EntryTypeDebit  EntryType = "debit"
	EntryTypeCredit EntryType = "credit"
)

// LedgerEntry records a single balance delta. TransferID is nil for
// administrative adjustments.
type LedgerEntry struct {
	ID            uuid.UUID
	TransferID    *uuid.UUID
	UserID        uuid.UUID
	Asset         Asset
	EntryType     EntryType
	Amount        decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	Reason        string
	CreatedAt     time.Time
}

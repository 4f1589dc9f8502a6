package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransferStatus string

const (
	TransferStatusPendingOTP TransferStatus = "pending_otp"
	TransferStatusPending    TransferStatus = "pending"
	TransferStatusCompleted  TransferStatus = "completed"
	TransferStatusFailed     TransferStatus = "failed"
)

func (s TransferStatus) IsValid() bool {
	switch s {
	case TransferStatusPendingOTP, TransferStatusPending, TransferStatusCompleted, TransferStatusFailed:
		return true
	default:
		return false
	}
}

func (s TransferStatus) IsTerminal() bool {
	return s == TransferStatusCompleted || s == TransferStatusFailed
}

// CanTransitionTo reports whether moving from s to next is allowed.
// pending_otp settles at verification; pending is only resolved by an
// administrator.
func (s TransferStatus) CanTransitionTo(next TransferStatus) bool {
	switch s {
	case TransferStatusPendingOTP:
		return next == TransferStatusCompleted || next == TransferStatusPending || next == TransferStatusFailed
	case TransferStatusPending:
		return next == TransferStatusCompleted || next == TransferStatusFailed
	default:
		return false
	}
}

// TransferUpdate describes a status transition and the columns written with it.
// Nil fields are left unchanged, except FailureReason and CompletedAt which
// are always written.
type TransferUpdate struct {
	From          TransferStatus
	To            TransferStatus
	ToUserID      *uuid.UUID
	FailureReason *string
	CompletedAt   *time.Time
	Confirmations []bool
}

// RailConfirmationSteps is the number of manual confirmation flags carried by
// withdrawals to an external rail.
const RailConfirmationSteps = 4

const (
	WalletDisplayAddress = "User Wallet"
	BankDisplayAddress   = "BANK_WITHDRAWAL"
	PayPalDisplayAddress = "PayPal"
)

type Transfer struct {
	ID            uuid.UUID
	TransactionID string
	FromUserID    uuid.UUID
	ToUserID      *uuid.UUID
	FromAddress   string
	ToAddress     string
	Asset         Asset
	Amount        decimal.Decimal
	ValueUSD      decimal.Decimal
	PriceAtTime   decimal.Decimal
	Kind          TransferKind
	Rail          RailDetails
	Status        TransferStatus
	Confirmations []bool
	FailureReason *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

// IsParty reports whether userID is the sender or the credited recipient.
func (t *Transfer) IsParty(userID uuid.UUID) bool {
	if t.FromUserID == userID {
		return true
	}
	return t.ToUserID != nil && *t.ToUserID == userID
}

const transactionIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewTransactionID builds the display identifier shown to users:
// "TRX", the creation time in unix millis, then nine random characters.
func NewTransactionID(now time.Time) (string, error) {
	suffix := make([]byte, 9)
	max := big.NewInt(int64(len(transactionIDAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("NewTransactionID: %w", err)
		}
		suffix[i] = transactionIDAlphabet[n.Int64()]
	}
	return fmt.Sprintf("TRX%d%s", now.UnixMilli(), suffix), nil
}

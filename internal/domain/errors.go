package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrNotOwner              = errors.New("not the owner of this resource")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrSelfTransfer          = errors.New("cannot transfer to own wallet")
	ErrInvalidAsset          = errors.New("invalid asset")
	ErrInvalidAmount         = errors.New("amount must be positive, at least 0.000001 and at most 8 decimal places")
	ErrInvalidRequest        = errors.New("invalid request")
	ErrRailRequiresTrustTier = errors.New("recipient unknown and sender trust tier does not allow external payout")
	ErrVersionConflict       = errors.New("optimistic lock conflict")
	ErrInvalidTransition     = errors.New("invalid transfer status transition")
	ErrRateLimited           = errors.New("too many requests")
	ErrDuplicate             = errors.New("duplicate")

	ErrOTPExpired          = errors.New("otp expired")
	ErrOTPMismatch         = errors.New("otp mismatch")
	ErrOTPAttemptsExceeded = errors.New("otp attempts exceeded")
	ErrNoPendingIntent     = errors.New("no pending transfer intent")

	// ErrOTPNotFound and ErrTransferNotPending both satisfy errors.Is(err, ErrNotFound).
	ErrOTPNotFound        = fmt.Errorf("otp challenge %w", ErrNotFound)
	ErrTransferNotPending = fmt.Errorf("pending transfer %w", ErrNotFound)
)

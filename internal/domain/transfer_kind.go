package domain

import (
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"
)

type TransferKind string

const (
	TransferKindRegular          TransferKind = "REGULAR"
	TransferKindBankWithdrawal   TransferKind = "BANK_WITHDRAWAL"
	TransferKindPayPalWithdrawal TransferKind = "PAYPAL_WITHDRAWAL"
)

func (k TransferKind) IsValid() bool {
	switch k {
	case TransferKindRegular, TransferKindBankWithdrawal, TransferKindPayPalWithdrawal:
		return true
	default:
		return false
	}
}

// IsRail reports whether the kind pays out to an external rail, which never
// has an in-system recipient.
func (k TransferKind) IsRail() bool {
	return k == TransferKindBankWithdrawal || k == TransferKindPayPalWithdrawal
}

// RailDetails is the variant payload for rail withdrawals. REGULAR transfers
// carry none.
type RailDetails interface {
	Kind() TransferKind
	Validate() error
}

type BankDetails struct {
	FullName      string `json:"full_name"`
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	SwiftCode     string `json:"swift_code,omitempty"`
}

func (BankDetails) Kind() TransferKind { return TransferKindBankWithdrawal }

func (b BankDetails) Validate() error {
	if strings.TrimSpace(b.FullName) == "" {
		return fmt.Errorf("full name required: %w", ErrInvalidRequest)
	}
	if strings.TrimSpace(b.BankName) == "" {
		return fmt.Errorf("bank name required: %w", ErrInvalidRequest)
	}
	if strings.TrimSpace(b.AccountNumber) == "" {
		return fmt.Errorf("account number required: %w", ErrInvalidRequest)
	}
	return nil
}

type PayPalDetails struct {
	Email string `json:"email"`
}

func (PayPalDetails) Kind() TransferKind { return TransferKindPayPalWithdrawal }

func (p PayPalDetails) Validate() error {
	if strings.TrimSpace(p.Email) == "" {
		return fmt.Errorf("paypal email required: %w", ErrInvalidRequest)
	}
	if _, err := mail.ParseAddress(p.Email); err != nil {
		return fmt.Errorf("paypal email invalid: %w", ErrInvalidRequest)
	}
	return nil
}

// ValidateKind checks that the rail payload matches the transfer kind.
func ValidateKind(kind TransferKind, rail RailDetails) error {
	if !kind.IsValid() {
		return fmt.Errorf("unknown transfer kind %q: %w", kind, ErrInvalidRequest)
	}
	if kind == TransferKindRegular {
		if rail != nil {
			return fmt.Errorf("regular transfer carries no rail details: %w", ErrInvalidRequest)
		}
		return nil
	}
	if rail == nil || rail.Kind() != kind {
		return fmt.Errorf("%s requires matching rail details: %w", kind, ErrInvalidRequest)
	}
	return rail.Validate()
}

func EncodeRailDetails(rail RailDetails) ([]byte, error) {
	if rail == nil {
		return nil, nil
	}
	b, err := json.Marshal(rail)
	if err != nil {
		return nil, fmt.Errorf("EncodeRailDetails: %w", err)
	}
	return b, nil
}

func DecodeRailDetails(kind TransferKind, raw []byte) (RailDetails, error) {
	switch kind {
	case TransferKindRegular:
		return nil, nil
	case TransferKindBankWithdrawal:
		var b BankDetails
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("DecodeRailDetails: bank: %w", err)
		}
		return b, nil
	case TransferKindPayPalWithdrawal:
		var p PayPalDetails
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("DecodeRailDetails: paypal: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("DecodeRailDetails: unknown kind %q", kind)
	}
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

type Template string

const (
	TemplateTransferOTP             Template = "transfer_otp"
	TemplateBankWithdrawalOTP       Template = "bank_withdrawal_otp"
	TemplatePayPalWithdrawalOTP     Template = "paypal_withdrawal_otp"
	TemplateTransferSent            Template = "transfer_sent"
	TemplateTransferReceived        Template = "transfer_received"
	TemplateTransferPending         Template = "transfer_pending"
	TemplateBankWithdrawalPending   Template = "bank_withdrawal_pending"
	TemplatePayPalWithdrawalPending Template = "paypal_withdrawal_pending"
	TemplateTransferFailed          Template = "transfer_failed"
	TemplateBankWithdrawalFailed    Template = "bank_withdrawal_failed"
	TemplatePayPalWithdrawalFailed  Template = "paypal_withdrawal_failed"
	TemplateTrustTierUpgrade        Template = "trust_tier_upgrade"
)

// IsOTP reports whether the template carries a plaintext passcode. Those are
// never written to the outbox.
func (t Template) IsOTP() bool {
	switch t {
	case TemplateTransferOTP, TemplateBankWithdrawalOTP, TemplatePayPalWithdrawalOTP:
		return true
	default:
		return false
	}
}

func OTPTemplate(kind TransferKind) Template {
	switch kind {
	case TransferKindBankWithdrawal:
		return TemplateBankWithdrawalOTP
	case TransferKindPayPalWithdrawal:
		return TemplatePayPalWithdrawalOTP
	default:
		return TemplateTransferOTP
	}
}

func PendingTemplate(kind TransferKind) Template {
	switch kind {
	case TransferKindBankWithdrawal:
		return TemplateBankWithdrawalPending
	case TransferKindPayPalWithdrawal:
		return TemplatePayPalWithdrawalPending
	default:
		return TemplateTransferPending
	}
}

func FailedTemplate(kind TransferKind) Template {
	switch kind {
	case TransferKindBankWithdrawal:
		return TemplateBankWithdrawalFailed
	case TransferKindPayPalWithdrawal:
		return TemplatePayPalWithdrawalFailed
	default:
		return TemplateTransferFailed
	}
}

type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSending NotificationStatus = "sending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

type Notification struct {
	ID            uuid.UUID
	Recipient     string
	Template      Template
	Vars          map[string]string
	Status        NotificationStatus
	Attempts      int
	NextAttemptAt time.Time
	LastError     *string
	CreatedAt     time.Time
	SentAt        *time.Time
}

package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type TransferEventType string

const (
	TransferEventTypeCreated              TransferEventType = "created"
	TransferEventTypeOTPResent            TransferEventType = "otp_resent"
	TransferEventTypeCompleted            TransferEventType = "completed"
	TransferEventTypePending              TransferEventType = "pending"
	TransferEventTypeFailed               TransferEventType = "failed"
	TransferEventTypeAbandoned            TransferEventType = "abandoned"
	TransferEventTypeConfirmationsUpdated TransferEventType = "confirmations_updated"
	TransferEventTypeRefunded             TransferEventType = "refunded"
)

// EventTypeForStatus maps a settled status to the audit event recorded for it.
func EventTypeForStatus(s TransferStatus) TransferEventType {
	switch s {
	case TransferStatusCompleted:
		return TransferEventTypeCompleted
	case TransferStatusPending:
		return TransferEventTypePending
	case TransferStatusFailed:
		return TransferEventTypeFailed
	default:
		return TransferEventTypeCreated
	}
}

type TransferEvent struct {
	ID         uuid.UUID
	TransferID uuid.UUID
	EventType  TransferEventType
	Actor      string
	Payload    json.RawMessage
	CreatedAt  time.Time
}

package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransferDirection string

const (
	DirectionAll      TransferDirection = "all"
	DirectionSent     TransferDirection = "sent"
	DirectionReceived TransferDirection = "received"
)

func (d TransferDirection) IsValid() bool {
	switch d {
	case DirectionAll, DirectionSent, DirectionReceived:
		return true
	default:
		return false
	}
}

// TransferFilter narrows a user's history. Zero values mean no filter.
type TransferFilter struct {
	UserID    uuid.UUID
	Asset     Asset
	Status    TransferStatus
	Direction TransferDirection
	Limit     int
	Offset    int
}

type AssetSummary struct {
	Asset          Asset
	SentAmount     decimal.Decimal
	SentUSD        decimal.Decimal
	ReceivedAmount decimal.Decimal
	ReceivedUSD    decimal.Decimal
	Count          int
}

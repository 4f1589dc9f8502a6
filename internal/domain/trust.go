package domain

import "strings"

type TrustTier string

const (
	TrustTierUsable   TrustTier = "usable"
	TrustTierUnusable TrustTier = "unusable"
)

// CardApplicationStatus is the compliance record a sender's trust tier is
// derived from.
type CardApplicationStatus string

const (
	CardStatusActive   CardApplicationStatus = "ACTIVE"
	CardStatusActivate CardApplicationStatus = "ACTIVATE"
	CardStatusPending  CardApplicationStatus = "PENDING"
	CardStatusInactive CardApplicationStatus = "INACTIVE"
	CardStatusRejected CardApplicationStatus = "REJECTED"
)

// TierForCardStatus maps a card application status to a trust tier. Unknown
// and empty statuses are unusable.
func TierForCardStatus(s CardApplicationStatus) TrustTier {
	switch CardApplicationStatus(strings.ToUpper(string(s))) {
	case CardStatusActive, CardStatusActivate, CardStatusPending:
		return TrustTierUsable
	default:
		return TrustTierUnusable
	}
}

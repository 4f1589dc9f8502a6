package settlement

import "github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"

// Decide maps the two settlement inputs to the status a verified transfer
// ends in. A known recipient always completes. Without one, the sender's
// trust tier decides between an external payout left pending and a failure.
// Any tier other than usable fails closed.
func Decide(recipientExists bool, tier domain.TrustTier) domain.TransferStatus {
	if recipientExists {
		return domain.TransferStatusCompleted
	}
	if tier == domain.TrustTierUsable {
		return domain.TransferStatusPending
	}
	return domain.TransferStatusFailed
}

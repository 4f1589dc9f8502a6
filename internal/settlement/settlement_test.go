package settlement

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name            string
		recipientExists bool
		tier            domain.TrustTier
		want            domain.TransferStatus
	}{
		{"known recipient, usable tier", true, domain.TrustTierUsable, domain.TransferStatusCompleted},
		{"known recipient, unusable tier", true, domain.TrustTierUnusable, domain.TransferStatusCompleted},
		{"unknown recipient, usable tier", false, domain.TrustTierUsable, domain.TransferStatusPending},
		{"unknown recipient, unusable tier", false, domain.TrustTierUnusable, domain.TransferStatusFailed},
		{"unknown recipient, empty tier", false, "", domain.TransferStatusFailed},
		{"unknown recipient, garbage tier", false, "gold", domain.TransferStatusFailed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Decide(tc.recipientExists, tc.tier))
		})
	}
}

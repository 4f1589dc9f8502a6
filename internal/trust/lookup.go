package trust

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"
)

type userRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type cardRepo interface {
	LatestStatusByEmail(ctx context.Context, email string) (domain.CardApplicationStatus, error)
}

// Lookup derives a user's trust tier from their most recent card application.
type Lookup struct {
	users userRepo
	cards cardRepo
}

func NewLookup(users userRepo, cards cardRepo) *Lookup {
	return &Lookup{users: users, cards: cards}
}

// GetTier returns unusable when the user or their application is missing.
// On any other failure it returns unusable together with the error.
func (l *Lookup) GetTier(ctx context.Context, userID uuid.UUID) (domain.TrustTier, error) {
	u, err := l.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.TrustTierUnusable, nil
		}
		return domain.TrustTierUnusable, fmt.Errorf("GetTier: %w", err)
	}

	status, err := l.cards.LatestStatusByEmail(ctx, u.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.TrustTierUnusable, nil
		}
		return domain.TrustTierUnusable, fmt.Errorf("GetTier: %w", err)
	}
	return domain.TierForCardStatus(status), nil
}

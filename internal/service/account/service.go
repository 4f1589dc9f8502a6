package account

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/logging"
)

type userRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type walletRepo interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.WalletAddress, error)
}

type tierLookup interface {
	GetTier(ctx context.Context, userID uuid.UUID) (domain.TrustTier, error)
}

type AccountService struct {
	users   userRepo
	wallets walletRepo
	trust   tierLookup
}

func NewAccountService(users userRepo, wallets walletRepo, trust tierLookup) *AccountService {
	return &AccountService{users: users, wallets: wallets, trust: trust}
}

// Profile is the signed-in user's own view: identity, trust tier and the
// deposit address held for each asset.
type Profile struct {
	User      *domain.User
	TrustTier domain.TrustTier
	Wallets   []domain.WalletAddress
}

func (s *AccountService) GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("GetProfile: %w", err)
	}

	wallets, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("GetProfile: %w", err)
	}
	if wallets == nil {
		wallets = []domain.WalletAddress{}
	}

	tier, err := s.trust.GetTier(ctx, userID)
	if err != nil {
		logging.FromContext(ctx).Warn("trust tier lookup failed, reporting unusable", "user_id", userID, "error", err)
	}

	return &Profile{User: u, TrustTier: tier, Wallets: wallets}, nil
}

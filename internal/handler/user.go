package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/auth"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/logging"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/service/account"
)

type profileGetter interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*account.Profile, error)
}

type UserHandler struct {
	accounts profileGetter
}

func NewUserHandler(accounts profileGetter) *UserHandler {
	return &UserHandler{accounts: accounts}
}

type walletDTO struct {
	Asset   string `json:"asset"`
	Address string `json:"address"`
}

type userDTO struct {
	ID        uuid.UUID   `json:"id"`
	Email     string      `json:"email"`
	Name      string      `json:"name"`
	Role      string      `json:"role"`
	Status    string      `json:"status"`
	TrustTier string      `json:"trust_tier"`
	Wallets   []walletDTO `json:"wallets"`
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	p, err := h.accounts.GetProfile(r.Context(), userID)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to get profile", "error", err)
		RespondDomainError(w, err)
		return
	}

	wallets := make([]walletDTO, 0, len(p.Wallets))
	for _, wa := range p.Wallets {
		wallets = append(wallets, walletDTO{Asset: string(wa.Asset), Address: wa.Address})
	}

	RespondSuccess(w, http.StatusOK, userDTO{
		ID:        p.User.ID,
		Email:     p.User.Email,
		Name:      p.User.Name,
		Role:      string(p.User.Role),
		Status:    string(p.User.Status),
		TrustTier: string(p.TrustTier),
		Wallets:   wallets,
	})
}

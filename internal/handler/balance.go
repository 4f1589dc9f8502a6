package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/auth"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/logging"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/service/transfer"
)

type balanceService interface {
	Balances(ctx context.Context, userID uuid.UUID) ([]transfer.BalanceView, error)
}

type BalanceHandler struct {
	balances balanceService
}

func NewBalanceHandler(balances balanceService) *BalanceHandler {
	return &BalanceHandler{balances: balances}
}

type balanceDTO struct {
	Asset    string          `json:"asset"`
	Name     string          `json:"name"`
	Amount   decimal.Decimal `json:"amount"`
	PriceUSD decimal.Decimal `json:"price_usd"`
	ValueUSD decimal.Decimal `json:"value_usd"`
}

type balancesResponse struct {
	Balances []balanceDTO    `json:"balances"`
	TotalUSD decimal.Decimal `json:"total_usd"`
}

func (h *BalanceHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	views, err := h.balances.Balances(r.Context(), userID)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list balances", "error", err)
		RespondDomainError(w, err)
		return
	}

	resp := balancesResponse{Balances: make([]balanceDTO, 0, len(views)), TotalUSD: decimal.Zero}
	for _, v := range views {
		resp.Balances = append(resp.Balances, balanceDTO{
			Asset:    string(v.Asset),
			Name:     v.Name,
			Amount:   v.Amount,
			PriceUSD: v.PriceUSD,
			ValueUSD: v.ValueUSD,
		})
		resp.TotalUSD = resp.TotalUSD.Add(v.ValueUSD)
	}

	RespondSuccess(w, http.StatusOK, resp)
}

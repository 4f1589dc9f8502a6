package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/pricing"
)

type priceOracle interface {
	GetPrice(ctx context.Context, asset domain.Asset) pricing.Quote
}

type PriceHandler struct {
	prices priceOracle
}

func NewPriceHandler(prices priceOracle) *PriceHandler {
	return &PriceHandler{prices: prices}
}

type priceDTO struct {
	Asset    string          `json:"asset"`
	Name     string          `json:"name"`
	PriceUSD decimal.Decimal `json:"price_usd"`
	Source   string          `json:"source"`
	AsOf     time.Time       `json:"as_of"`
}

func (h *PriceHandler) Get(w http.ResponseWriter, r *http.Request) {
	asset := domain.Asset(r.PathValue("asset"))
	if !asset.IsValid() {
		RespondAppError(w, ErrInvalidAsset, nil)
		return
	}

	q := h.prices.GetPrice(r.Context(), asset)

	RespondSuccess(w, http.StatusOK, priceDTO{
		Asset:    string(asset),
		Name:     asset.DisplayName(),
		PriceUSD: q.Price,
		Source:   string(q.Source),
		AsOf:     q.AsOf,
	})
}

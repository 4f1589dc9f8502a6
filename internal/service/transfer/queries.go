package transfer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

type HistoryFilter struct {
	Asset     domain.Asset
	Status    domain.TransferStatus
	Direction domain.TransferDirection
}

type Page struct {
	Page  int
	Limit int
}

// normalize applies the defaults: page 1, limit 20, limit capped at 100.
func (p Page) normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

func (p Page) offset() int {
	return (p.Page - 1) * p.Limit
}

type HistoryPage struct {
	Items      []domain.Transfer
	Total      int
	Page       int
	Limit      int
	TotalPages int
}

func newHistoryPage(items []domain.Transfer, total int, p Page) *HistoryPage {
	if items == nil {
		items = []domain.Transfer{}
	}
	return &HistoryPage{
		Items:      items,
		Total:      total,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: (total + p.Limit - 1) / p.Limit,
	}
}

type BalanceView struct {
	Asset    domain.Asset
	Name     string
	Amount   decimal.Decimal
	PriceUSD decimal.Decimal
	ValueUSD decimal.Decimal
}

// GetTransferByID returns the transfer if viewer sent or received it.
func (s *Service) GetTransferByID(ctx context.Context, viewerID, transferID uuid.UUID) (*domain.Transfer, error) {
	t, err := s.transfers.GetByID(ctx, transferID)
	if err != nil {
		return nil, fmt.Errorf("GetTransferByID: %w", err)
	}
	if !t.IsParty(viewerID) {
		return nil, fmt.Errorf("GetTransferByID: %w", domain.ErrNotOwner)
	}
	return t, nil
}

func (s *Service) GetTransferHistory(ctx context.Context, userID uuid.UUID, f HistoryFilter, p Page) (*HistoryPage, error) {
	if f.Asset != "" && !f.Asset.IsValid() {
		return nil, fmt.Errorf("GetTransferHistory: %w", domain.ErrInvalidAsset)
	}
	if f.Status != "" && !f.Status.IsValid() {
		return nil, fmt.Errorf("GetTransferHistory: unknown status %q: %w", f.Status, domain.ErrInvalidRequest)
	}
	if f.Direction == "" {
		f.Direction = domain.DirectionAll
	}
	if !f.Direction.IsValid() {
		return nil, fmt.Errorf("GetTransferHistory: unknown direction %q: %w", f.Direction, domain.ErrInvalidRequest)
	}

	p = p.normalize()
	items, total, err := s.transfers.List(ctx, domain.TransferFilter{
		UserID:    userID,
		Asset:     f.Asset,
		Status:    f.Status,
		Direction: f.Direction,
		Limit:     p.Limit,
		Offset:    p.offset(),
	})
	if err != nil {
		return nil, fmt.Errorf("GetTransferHistory: %w", err)
	}
	return newHistoryPage(items, total, p), nil
}

func (s *Service) Summary(ctx context.Context, userID uuid.UUID) ([]domain.AssetSummary, error) {
	summary, err := s.transfers.Summary(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Summary: %w", err)
	}
	if summary == nil {
		summary = []domain.AssetSummary{}
	}
	return summary, nil
}

// Balances lists every supported asset for the user with its current USD
// value.
func (s *Service) Balances(ctx context.Context, userID uuid.UUID) ([]BalanceView, error) {
	balances, err := s.ledger.Balances(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Balances: %w", err)
	}

	views := make([]BalanceView, 0, len(balances))
	for _, b := range balances {
		price, value := s.valuation(ctx, b.Asset, b.Amount)
		views = append(views, BalanceView{
			Asset:    b.Asset,
			Name:     b.Asset.DisplayName(),
			Amount:   b.Amount,
			PriceUSD: price,
			ValueUSD: value,
		})
	}
	return views, nil
}

// Package ledger owns every write to user balances. Callers lock the rows they
// intend to touch, then post debits and credits inside their own transaction
// so balance changes commit or roll back together with the transfer record.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"
)

type balanceRepo interface {
	Get(ctx context.Context, userID uuid.UUID, asset domain.Asset) (*domain.Balance, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Balance, error)
	EnsureRows(ctx context.Context, tx *sql.Tx, asset domain.Asset, userIDs ...uuid.UUID) error
	GetForUpdate(ctx context.Context, tx *sql.Tx, userID uuid.UUID, asset domain.Asset) (*domain.Balance, error)
	UpdateAmount(ctx context.Context, tx *sql.Tx, userID uuid.UUID, asset domain.Asset, newAmount decimal.Decimal, newVersion int64) error
}

type entryRepo interface {
	Create(ctx context.Context, tx *sql.Tx, entry *domain.LedgerEntry) error
}

// Posting is one balance delta. TransferID is nil for administrative
// adjustments.
type Posting struct {
	UserID     uuid.UUID
	Asset      domain.Asset
	Amount     decimal.Decimal
	TransferID *uuid.UUID
	Reason     string
}

type Store struct {
	db       *sql.DB
	balances balanceRepo
	entries  entryRepo
	now      func() time.Time
}

func NewStore(db *sql.DB, balances balanceRepo, entries entryRepo) *Store {
	return &Store{
		db:       db,
		balances: balances,
		entries:  entries,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GetBalance returns zero for an asset the user has never held.
func (s *Store) GetBalance(ctx context.Context, userID uuid.UUID, asset domain.Asset) (decimal.Decimal, error) {
	b, err := s.balances.Get(ctx, userID, asset)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("GetBalance: %w", err)
	}
	return b.Amount, nil
}

// Balances returns one entry per supported asset, zero-filled.
func (s *Store) Balances(ctx context.Context, userID uuid.UUID) ([]domain.Balance, error) {
	stored, err := s.balances.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Balances: %w", err)
	}

	byAsset := make(map[domain.Asset]domain.Balance, len(stored))
	for _, b := range stored {
		byAsset[b.Asset] = b
	}

	out := make([]domain.Balance, 0, len(domain.Assets))
	for _, a := range domain.Assets {
		b, ok := byAsset[a]
		if !ok {
			b = domain.Balance{UserID: userID, Asset: a, Amount: decimal.Zero}
		}
		out = append(out, b)
	}
	return out, nil
}

// Lock creates any missing balance rows for the given users and row-locks them
// in ascending user id order. Every writer locks in the same order, so two
// transfers between the same pair of users cannot deadlock.
func (s *Store) Lock(ctx context.Context, tx *sql.Tx, asset domain.Asset, userIDs ...uuid.UUID) (map[uuid.UUID]*domain.Balance, error) {
	seen := make(map[uuid.UUID]struct{}, len(userIDs))
	sorted := make([]uuid.UUID, 0, len(userIDs))
	for _, id := range userIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].String() < sorted[j].String()
	})

	if err := s.balances.EnsureRows(ctx, tx, asset, sorted...); err != nil {
		return nil, fmt.Errorf("Lock: %w", err)
	}

	locked := make(map[uuid.UUID]*domain.Balance, len(sorted))
	for _, id := range sorted {
		b, err := s.balances.GetForUpdate(ctx, tx, id, asset)
		if err != nil {
			return nil, fmt.Errorf("Lock: %w", err)
		}
		locked[id] = b
	}
	return locked, nil
}

// Debit removes p.Amount from the user's balance. It fails closed with
// domain.ErrInsufficientFunds; there is no partial debit.
func (s *Store) Debit(ctx context.Context, tx *sql.Tx, p Posting) (*domain.Balance, error) {
	b, err := s.post(ctx, tx, p, domain.EntryTypeDebit)
	if err != nil {
		return nil, fmt.Errorf("Debit: %w", err)
	}
	return b, nil
}

func (s *Store) Credit(ctx context.Context, tx *sql.Tx, p Posting) (*domain.Balance, error) {
	b, err := s.post(ctx, tx, p, domain.EntryTypeCredit)
	if err != nil {
		return nil, fmt.Errorf("Credit: %w", err)
	}
	return b, nil
}

func (s *Store) post(ctx context.Context, tx *sql.Tx, p Posting, entryType domain.EntryType) (*domain.Balance, error) {
	if !p.Amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	current, err := s.balances.GetForUpdate(ctx, tx, p.UserID, p.Asset)
	if err != nil {
		return nil, err
	}

	next := current.Amount.Add(p.Amount)
	if entryType == domain.EntryTypeDebit {
		if current.Amount.LessThan(p.Amount) {
			return nil, domain.ErrInsufficientFunds
		}
		next = current.Amount.Sub(p.Amount)
	}

	if err := s.balances.UpdateAmount(ctx, tx, p.UserID, p.Asset, next, current.Version+1); err != nil {
		return nil, err
	}

	now := s.now()
	entry := &domain.LedgerEntry{
		ID:            uuid.New(),
		TransferID:    p.TransferID,
		UserID:        p.UserID,
		Asset:         p.Asset,
		EntryType:     entryType,
		Amount:        p.Amount,
		BalanceBefore: current.Amount,
		BalanceAfter:  next,
		Reason:        p.Reason,
		CreatedAt:     now,
	}
	if err := s.entries.Create(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("ledger entry: %w", err)
	}

	return &domain.Balance{
		UserID:    p.UserID,
		Asset:     p.Asset,
		Amount:    next,
		Version:   current.Version + 1,
		UpdatedAt: now,
	}, nil
}

// Adjust applies an administrative delta in its own transaction through the
// same primitives transfers use. A negative delta that would overdraw the
// balance is rejected with domain.ErrInsufficientFunds.
func (s *Store) Adjust(ctx context.Context, userID uuid.UUID, asset domain.Asset, delta decimal.Decimal, reason string) (*domain.Balance, error) {
	if !asset.IsValid() {
		return nil, fmt.Errorf("Adjust: %w", domain.ErrInvalidAsset)
	}
	if delta.IsZero() || !delta.Equal(delta.Truncate(domain.AmountPrecision)) {
		return nil, fmt.Errorf("Adjust: %w", domain.ErrInvalidAmount)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Adjust: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := s.Lock(ctx, tx, asset, userID); err != nil {
		return nil, fmt.Errorf("Adjust: %w", err)
	}

	p := Posting{UserID: userID, Asset: asset, Amount: delta.Abs(), Reason: reason}
	var b *domain.Balance
	if delta.IsPositive() {
		b, err = s.Credit(ctx, tx, p)
	} else {
		b, err = s.Debit(ctx, tx, p)
	}
	if err != nil {
		return nil, fmt.Errorf("Adjust: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Adjust: commit: %w", err)
	}
	return b, nil
}

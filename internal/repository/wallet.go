package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"
)

const walletColumns = `id, user_id, asset, address, created_at`

// WalletRepository is the account directory: it maps on-platform wallet
// addresses to the users that own them.
type WalletRepository struct {
	db *sql.DB
}

func NewWalletRepository(db *sql.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// FindByAddress returns nil, nil when no active user owns the address.
func (r *WalletRepository) FindByAddress(ctx context.Context, asset domain.Asset, address string) (*domain.UserRef, error) {
	var ref domain.UserRef
	err := r.db.QueryRowContext(ctx,
		`SELECT u.id, u.email, u.name
		FROM wallet_addresses w JOIN users u ON u.id = w.user_id
		WHERE w.asset = $1 AND w.address = $2 AND u.status = $3`,
		asset, address, domain.UserStatusActive,
	).Scan(&ref.ID, &ref.Email, &ref.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindByAddress: %w", err)
	}
	return &ref, nil
}

func (r *WalletRepository) GetByUserAndAsset(ctx context.Context, userID uuid.UUID, asset domain.Asset) (*domain.WalletAddress, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM wallet_addresses WHERE user_id = $1 AND asset = $2`,
		userID, asset,
	)
	w, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByUserAndAsset: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByUserAndAsset: %w", err)
	}
	return w, nil
}

func (r *WalletRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.WalletAddress, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+walletColumns+` FROM wallet_addresses WHERE user_id = $1 ORDER BY asset`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByUserID: %w", err)
	}
	defer rows.Close()

	var wallets []domain.WalletAddress
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("GetByUserID: scan: %w", err)
		}
		wallets = append(wallets, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetByUserID: rows: %w", err)
	}
	return wallets, nil
}

func scanWallet(s scanner) (*domain.WalletAddress, error) {
	var w domain.WalletAddress
	if err := s.Scan(&w.ID, &w.UserID, &w.Asset, &w.Address, &w.CreatedAt); err != nil {
		return nil, err
	}
	return &w, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"
)

const balanceColumns = `user_id, asset, amount, version, updated_at`

type BalanceRepository struct {
	db *sql.DB
}

func NewBalanceRepository(db *sql.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// Get returns domain.ErrNotFound when the user has never held the asset.
func (r *BalanceRepository) Get(ctx context.Context, userID uuid.UUID, asset domain.Asset) (*domain.Balance, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+balanceColumns+` FROM balances WHERE user_id = $1 AND asset = $2`,
		userID, asset,
	)
	b, err := scanBalance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("Get: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("Get: %w", err)
	}
	return b, nil
}

func (r *BalanceRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Balance, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+balanceColumns+` FROM balances WHERE user_id = $1 ORDER BY asset`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByUserID: %w", err)
	}
	defer rows.Close()

	var balances []domain.Balance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("GetByUserID: scan: %w", err)
		}
		balances = append(balances, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetByUserID: rows: %w", err)
	}
	return balances, nil
}

// EnsureRows inserts zero balances for any of userIDs missing a row for asset,
// so every participant has a row to lock.
func (r *BalanceRepository) EnsureRows(ctx context.Context, tx *sql.Tx, asset domain.Asset, userIDs ...uuid.UUID) error {
	ids := make([]string, len(userIDs))
	for i, id := range userIDs {
		ids[i] = id.String()
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO balances (user_id, asset)
		SELECT unnest($1::uuid[]), $2
		ON CONFLICT (user_id, asset) DO NOTHING`,
		pq.Array(ids), asset,
	)
	if err != nil {
		return fmt.Errorf("EnsureRows: %w", err)
	}
	return nil
}

func (r *BalanceRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, userID uuid.UUID, asset domain.Asset) (*domain.Balance, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+balanceColumns+` FROM balances WHERE user_id = $1 AND asset = $2 FOR UPDATE`,
		userID, asset,
	)
	b, err := scanBalance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return b, nil
}

func (r *BalanceRepository) UpdateAmount(ctx context.Context, tx *sql.Tx, userID uuid.UUID, asset domain.Asset, newAmount decimal.Decimal, newVersion int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE balances SET amount = $1, version = $2, updated_at = now()
		WHERE user_id = $3 AND asset = $4 AND version = $5`,
		newAmount, newVersion, userID, asset, newVersion-1,
	)
	if err != nil {
		return fmt.Errorf("UpdateAmount: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateAmount: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateAmount: %w", domain.ErrVersionConflict)
	}
	return nil
}

func scanBalance(s scanner) (*domain.Balance, error) {
	var b domain.Balance
	if err := s.Scan(&b.UserID, &b.Asset, &b.Amount, &b.Version, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"
)

const ledgerColumns = `id, transfer_id, user_id, asset, entry_type, amount,
	balance_before, balance_after, reason, created_at`

type LedgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) Create(ctx context.Context, tx *sql.Tx, entry *domain.LedgerEntry) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_entries (
			id, transfer_id, user_id, asset, entry_type, amount,
			balance_before, balance_after, reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.TransferID, entry.UserID, entry.Asset, entry.EntryType,
		entry.Amount, entry.BalanceBefore, entry.BalanceAfter, entry.Reason,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *LedgerRepository) GetByTransferID(ctx context.Context, transferID uuid.UUID) ([]domain.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries
		WHERE transfer_id = $1 ORDER BY created_at, entry_type DESC`, transferID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByTransferID: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("GetByTransferID: scan: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetByTransferID: rows: %w", err)
	}
	return entries, nil
}

func scanLedgerEntry(s scanner) (*domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	var transferID uuid.NullUUID
	err := s.Scan(
		&e.ID, &transferID, &e.UserID, &e.Asset, &e.EntryType,
		&e.Amount, &e.BalanceBefore, &e.BalanceAfter, &e.Reason,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if transferID.Valid {
		e.TransferID = &transferID.UUID
	}
	return &e, nil
}

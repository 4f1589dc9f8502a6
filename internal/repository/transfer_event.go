package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"
)

type TransferEventRepository struct {
	db *sql.DB
}

func NewTransferEventRepository(db *sql.DB) *TransferEventRepository {
	return &TransferEventRepository{db: db}
}

func (r *TransferEventRepository) Create(ctx context.Context, tx *sql.Tx, event *domain.TransferEvent) error {
	var payload any
	if len(event.Payload) > 0 {
		payload = []byte(event.Payload)
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transfer_events (id, transfer_id, event_type, actor, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.TransferID, event.EventType, event.Actor, payload, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *TransferEventRepository) GetByTransferID(ctx context.Context, transferID uuid.UUID) ([]domain.TransferEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, transfer_id, event_type, actor, payload, created_at
		FROM transfer_events WHERE transfer_id = $1 ORDER BY created_at, id`,
		transferID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByTransferID: %w", err)
	}
	defer rows.Close()

	var events []domain.TransferEvent
	for rows.Next() {
		var e domain.TransferEvent
		var payload []byte
		if err := rows.Scan(&e.ID, &e.TransferID, &e.EventType, &e.Actor, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("GetByTransferID: scan: %w", err)
		}
		e.Payload = payload
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetByTransferID: rows: %w", err)
	}
	return events, nil
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"
)

const notificationColumns = `id, recipient, template, vars, status, attempts,
	next_attempt_at, last_error, created_at, sent_at`

// NotificationRepository is the outbox for non-OTP emails.
type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	vars, err := json.Marshal(n.Vars)
	if err != nil {
		return fmt.Errorf("Create: marshal vars: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO notifications (id, recipient, template, vars, status, attempts, next_attempt_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		n.ID, n.Recipient, n.Template, vars, n.Status, n.Attempts, n.NextAttemptAt, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// ClaimDue leases up to limit due notifications to the caller. A claimed row
// moves to sending and becomes claimable again once the lease runs out, so a
// crashed worker does not strand it. Every claim counts as an attempt, which
// bounds how often an expired lease can be reclaimed.
func (r *NotificationRepository) ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]domain.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		`UPDATE notifications SET status = $1, next_attempt_at = $2, attempts = attempts + 1
		WHERE id IN (
			SELECT id FROM notifications
			WHERE status IN ($3, $1) AND next_attempt_at <= $4
			ORDER BY next_attempt_at
			LIMIT $5
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+notificationColumns,
		domain.NotificationStatusSending, now.Add(lease),
		domain.NotificationStatusPending, now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ClaimDue: %w", err)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("ClaimDue: scan: %w", err)
		}
		out = append(out, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ClaimDue: rows: %w", err)
	}
	return out, nil
}

func (r *NotificationRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET status = $1, sent_at = $2, last_error = NULL
		WHERE id = $3`,
		domain.NotificationStatusSent, at, id,
	)
	if err != nil {
		return fmt.Errorf("MarkSent: %w", err)
	}
	return nil
}

func (r *NotificationRepository) MarkRetry(ctx context.Context, id uuid.UUID, nextAttemptAt time.Time, lastErr string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET status = $1, next_attempt_at = $2, last_error = $3
		WHERE id = $4`,
		domain.NotificationStatusPending, nextAttemptAt, lastErr, id,
	)
	if err != nil {
		return fmt.Errorf("MarkRetry: %w", err)
	}
	return nil
}

func (r *NotificationRepository) MarkFailed(ctx context.Context, id uuid.UUID, lastErr string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET status = $1, last_error = $2
		WHERE id = $3`,
		domain.NotificationStatusFailed, lastErr, id,
	)
	if err != nil {
		return fmt.Errorf("MarkFailed: %w", err)
	}
	return nil
}

func (r *NotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id,
	)
	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return n, nil
}

func (r *NotificationRepository) DeleteSentBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE status = $1 AND sent_at < $2`,
		domain.NotificationStatusSent, before,
	)
	if err != nil {
		return 0, fmt.Errorf("DeleteSentBefore: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("DeleteSentBefore: rows affected: %w", err)
	}
	return n, nil
}

func scanNotification(s scanner) (*domain.Notification, error) {
	var n domain.Notification
	var vars []byte
	err := s.Scan(
		&n.ID, &n.Recipient, &n.Template, &vars, &n.Status, &n.Attempts,
		&n.NextAttemptAt, &n.LastError, &n.CreatedAt, &n.SentAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(vars, &n.Vars); err != nil {
		return nil, fmt.Errorf("unmarshal vars: %w", err)
	}
	return &n, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StoredResponse is the response a create endpoint produced for one
// (user, Idempotency-Key) pair.
type StoredResponse struct {
	UserID      uuid.UUID
	Key         string
	Fingerprint string
	StatusCode  int
	Body        []byte
	StoredAt    time.Time
	ExpiresAt   time.Time
}

func (s *StoredResponse) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

type IdempotencyRepository struct {
	db *sql.DB
}

func NewIdempotencyRepository(db *sql.DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

// Lookup returns the live stored response for the key, or nil.
func (r *IdempotencyRepository) Lookup(ctx context.Context, userID uuid.UUID, key string) (*StoredResponse, error) {
	var s StoredResponse
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, idempotency_key, fingerprint, status_code, body, stored_at, expires_at
		FROM idempotent_responses
		WHERE user_id = $1 AND idempotency_key = $2 AND expires_at > now()`,
		userID, key,
	).Scan(&s.UserID, &s.Key, &s.Fingerprint, &s.StatusCode, &s.Body, &s.StoredAt, &s.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Lookup: %w", err)
	}
	return &s, nil
}

// Save stores the response. An expired row for the same key is replaced; a
// live one is kept and Save reports false.
func (r *IdempotencyRepository) Save(ctx context.Context, s *StoredResponse) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO idempotent_responses (user_id, idempotency_key, fingerprint, status_code, body, stored_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, idempotency_key) DO UPDATE
		SET fingerprint = EXCLUDED.fingerprint,
			status_code = EXCLUDED.status_code,
			body = EXCLUDED.body,
			stored_at = EXCLUDED.stored_at,
			expires_at = EXCLUDED.expires_at
		WHERE idempotent_responses.expires_at <= EXCLUDED.stored_at`,
		s.UserID, s.Key, s.Fingerprint, s.StatusCode, s.Body, s.StoredAt, s.ExpiresAt,
	)
	if err != nil {
		return false, fmt.Errorf("Save: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("Save: rows affected: %w", err)
	}
	return n == 1, nil
}

// DeleteExpired drops stored responses that expired before the cutoff.
func (r *IdempotencyRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM idempotent_responses WHERE expires_at < $1`, before,
	)
	if err != nil {
		return 0, fmt.Errorf("DeleteExpired: %w", err)
	}
	return res.RowsAffected()
}

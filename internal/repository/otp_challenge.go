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

const otpChallengeColumns = `user_id, transfer_id, code_hash, expires_at, attempts, intent, created_at, updated_at`

// OTPChallengeRepository stores at most one live challenge per user. Writing a
// new one replaces whatever was there.
type OTPChallengeRepository struct {
	db *sql.DB
}

func NewOTPChallengeRepository(db *sql.DB) *OTPChallengeRepository {
	return &OTPChallengeRepository{db: db}
}

func (r *OTPChallengeRepository) Upsert(ctx context.Context, tx *sql.Tx, c *domain.OTPChallenge) error {
	intent, err := json.Marshal(c.Intent)
	if err != nil {
		return fmt.Errorf("Upsert: marshal intent: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO otp_challenges (user_id, transfer_id, code_hash, expires_at, attempts, intent, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			transfer_id = EXCLUDED.transfer_id,
			code_hash = EXCLUDED.code_hash,
			expires_at = EXCLUDED.expires_at,
			attempts = EXCLUDED.attempts,
			intent = EXCLUDED.intent,
			updated_at = EXCLUDED.updated_at`,
		c.UserID, c.TransferID, c.CodeHash, c.ExpiresAt, c.Attempts, intent, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}

func (r *OTPChallengeRepository) Get(ctx context.Context, userID uuid.UUID) (*domain.OTPChallenge, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+otpChallengeColumns+` FROM otp_challenges WHERE user_id = $1`, userID,
	)
	c, err := scanOTPChallenge(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("Get: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("Get: %w", err)
	}
	return c, nil
}

func (r *OTPChallengeRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, userID uuid.UUID) (*domain.OTPChallenge, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+otpChallengeColumns+` FROM otp_challenges WHERE user_id = $1 FOR UPDATE`, userID,
	)
	c, err := scanOTPChallenge(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return c, nil
}

// IncrementAttempts records a wrong guess and returns the new attempt count.
func (r *OTPChallengeRepository) IncrementAttempts(ctx context.Context, tx *sql.Tx, userID uuid.UUID) (int, error) {
	var attempts int
	err := tx.QueryRowContext(ctx,
		`UPDATE otp_challenges SET attempts = attempts + 1, updated_at = now()
		WHERE user_id = $1 RETURNING attempts`, userID,
	).Scan(&attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("IncrementAttempts: %w", domain.ErrNotFound)
		}
		return 0, fmt.Errorf("IncrementAttempts: %w", err)
	}
	return attempts, nil
}

func (r *OTPChallengeRepository) Delete(ctx context.Context, tx *sql.Tx, userID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM otp_challenges WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	return nil
}

func (r *OTPChallengeRepository) DeleteExpiredBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM otp_challenges WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("DeleteExpiredBefore: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("DeleteExpiredBefore: rows affected: %w", err)
	}
	return n, nil
}

func scanOTPChallenge(s scanner) (*domain.OTPChallenge, error) {
	var c domain.OTPChallenge
	var intent []byte
	err := s.Scan(&c.UserID, &c.TransferID, &c.CodeHash, &c.ExpiresAt, &c.Attempts, &intent, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(intent, &c.Intent); err != nil {
		return nil, fmt.Errorf("unmarshal intent: %w", err)
	}
	return &c, nil
}

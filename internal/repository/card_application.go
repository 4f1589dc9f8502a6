package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"
)

type CardApplicationRepository struct {
	db *sql.DB
}

func NewCardApplicationRepository(db *sql.DB) *CardApplicationRepository {
	return &CardApplicationRepository{db: db}
}

// LatestStatusByEmail returns the most recent application status for email.
// It returns domain.ErrNotFound when the user never applied.
func (r *CardApplicationRepository) LatestStatusByEmail(ctx context.Context, email string) (domain.CardApplicationStatus, error) {
	var status domain.CardApplicationStatus
	err := r.db.QueryRowContext(ctx,
		`SELECT status FROM card_applications
		WHERE lower(email) = lower($1)
		ORDER BY updated_at DESC LIMIT 1`,
		email,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("LatestStatusByEmail: %w", domain.ErrNotFound)
		}
		return "", fmt.Errorf("LatestStatusByEmail: %w", err)
	}
	return status, nil
}

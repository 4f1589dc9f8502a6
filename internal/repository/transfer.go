package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"
)

const transferColumns = `id, transaction_id, from_user, to_user, from_address, to_address,
	asset, amount, value_usd, price_at_time, kind, rail_details, status,
	confirmations, failure_reason, created_at, updated_at, completed_at`

type TransferRepository struct {
	db *sql.DB
}

func NewTransferRepository(db *sql.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

func (r *TransferRepository) Create(ctx context.Context, tx *sql.Tx, t *domain.Transfer) error {
	rail, err := domain.EncodeRailDetails(t.Rail)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO transfers (
			id, transaction_id, from_user, to_user, from_address, to_address,
			asset, amount, value_usd, price_at_time, kind, rail_details, status,
			confirmations, failure_reason, created_at, updated_at, completed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18
		)`,
		t.ID, t.TransactionID, t.FromUserID, t.ToUserID, t.FromAddress, t.ToAddress,
		t.Asset, t.Amount, t.ValueUSD, t.PriceAtTime, t.Kind, rail, t.Status,
		pq.BoolArray(nonNilConfirmations(t.Confirmations)), t.FailureReason,
		t.CreatedAt, t.UpdatedAt, t.CompletedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("Create: %w", domain.ErrDuplicate)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *TransferRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transferColumns+` FROM transfers WHERE id = $1`, id,
	)
	t, err := scanTransfer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return t, nil
}

func (r *TransferRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Transfer, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+transferColumns+` FROM transfers WHERE id = $1 FOR UPDATE`, id,
	)
	t, err := scanTransfer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return t, nil
}

// UpdateStatus moves a transfer from change.From to change.To. The write only
// applies if the row still holds change.From; otherwise it returns
// domain.ErrInvalidTransition.
func (r *TransferRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, change domain.TransferUpdate) error {
	if !change.From.CanTransitionTo(change.To) {
		return fmt.Errorf("UpdateStatus: %s -> %s: %w", change.From, change.To, domain.ErrInvalidTransition)
	}

	var confirmations any
	if change.Confirmations != nil {
		confirmations = pq.BoolArray(change.Confirmations)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE transfers SET
			status = $1,
			to_user = COALESCE($2, to_user),
			failure_reason = $3,
			completed_at = $4,
			confirmations = COALESCE($5, confirmations),
			updated_at = now()
		WHERE id = $6 AND status = $7`,
		change.To, change.ToUserID, change.FailureReason, change.CompletedAt,
		confirmations, id, change.From,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateStatus: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateStatus: %w", domain.ErrInvalidTransition)
	}
	return nil
}

func (r *TransferRepository) UpdateConfirmations(ctx context.Context, tx *sql.Tx, id uuid.UUID, confirmations []bool) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE transfers SET confirmations = $1, updated_at = now()
		WHERE id = $2 AND status = $3`,
		pq.BoolArray(confirmations), id, domain.TransferStatusPending,
	)
	if err != nil {
		return fmt.Errorf("UpdateConfirmations: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateConfirmations: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateConfirmations: %w", domain.ErrInvalidTransition)
	}
	return nil
}

// List returns one page of the transfers a user sent or received, newest
// first, together with the total number of matches.
func (r *TransferRepository) List(ctx context.Context, f domain.TransferFilter) ([]domain.Transfer, int, error) {
	where, args := historyWhere(f)

	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transfers WHERE `+where, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("List: count: %w", err)
	}

	args = append(args, f.Limit, f.Offset)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transferColumns+` FROM transfers WHERE `+where+
			fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("List: %w", err)
	}
	defer rows.Close()

	transfers, err := collectTransfers(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("List: %w", err)
	}
	return transfers, total, nil
}

func historyWhere(f domain.TransferFilter) (string, []any) {
	args := []any{f.UserID}
	var clauses []string

	switch f.Direction {
	case domain.DirectionSent:
		clauses = append(clauses, "from_user = $1")
	case domain.DirectionReceived:
		clauses = append(clauses, "to_user = $1")
	default:
		clauses = append(clauses, "(from_user = $1 OR to_user = $1)")
	}

	if f.Asset != "" {
		args = append(args, f.Asset)
		clauses = append(clauses, fmt.Sprintf("asset = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}

	return strings.Join(clauses, " AND "), args
}

func (r *TransferRepository) ListByStatus(ctx context.Context, status domain.TransferStatus, limit, offset int) ([]domain.Transfer, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transfers WHERE status = $1`, status,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByStatus: count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transferColumns+` FROM transfers
		WHERE status = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`,
		status, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByStatus: %w", err)
	}
	defer rows.Close()

	transfers, err := collectTransfers(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByStatus: %w", err)
	}
	return transfers, total, nil
}

// Summary aggregates completed transfers per asset for a user.
func (r *TransferRepository) Summary(ctx context.Context, userID uuid.UUID) ([]domain.AssetSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT asset,
			COALESCE(SUM(amount) FILTER (WHERE from_user = $1), 0),
			COALESCE(SUM(value_usd) FILTER (WHERE from_user = $1), 0),
			COALESCE(SUM(amount) FILTER (WHERE to_user = $1), 0),
			COALESCE(SUM(value_usd) FILTER (WHERE to_user = $1), 0),
			COUNT(*)
		FROM transfers
		WHERE status = $2 AND (from_user = $1 OR to_user = $1)
		GROUP BY asset ORDER BY asset`,
		userID, domain.TransferStatusCompleted,
	)
	if err != nil {
		return nil, fmt.Errorf("Summary: %w", err)
	}
	defer rows.Close()

	var out []domain.AssetSummary
	for rows.Next() {
		var s domain.AssetSummary
		if err := rows.Scan(&s.Asset, &s.SentAmount, &s.SentUSD, &s.ReceivedAmount, &s.ReceivedUSD, &s.Count); err != nil {
			return nil, fmt.Errorf("Summary: scan: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Summary: rows: %w", err)
	}
	return out, nil
}

func collectTransfers(rows *sql.Rows) ([]domain.Transfer, error) {
	var transfers []domain.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		transfers = append(transfers, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return transfers, nil
}

func scanTransfer(s scanner) (*domain.Transfer, error) {
	var t domain.Transfer
	var toUser uuid.NullUUID
	var rail []byte
	var confirmations pq.BoolArray

	err := s.Scan(
		&t.ID, &t.TransactionID, &t.FromUserID, &toUser, &t.FromAddress, &t.ToAddress,
		&t.Asset, &t.Amount, &t.ValueUSD, &t.PriceAtTime, &t.Kind, &rail, &t.Status,
		&confirmations, &t.FailureReason, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if toUser.Valid {
		t.ToUserID = &toUser.UUID
	}
	t.Confirmations = []bool(confirmations)

	t.Rail, err = domain.DecodeRailDetails(t.Kind, rail)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nonNilConfirmations(c []bool) []bool {
	if c == nil {
		return []bool{}
	}
	return c
}

package transfer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/ledger"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/logging"
)

// RefundReason is the ledger reason on the credit that returns a rejected
// withdrawal to its sender.
const RefundReason = "refund"

const defaultRejectReason = "rejected_by_admin"

type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

func (d Decision) IsValid() bool {
	return d == DecisionApproved || d == DecisionRejected
}

func (s *Service) ListPending(ctx context.Context, p Page) (*HistoryPage, error) {
	p = p.normalize()
	items, total, err := s.transfers.ListByStatus(ctx, domain.TransferStatusPending, p.Limit, p.offset())
	if err != nil {
		return nil, fmt.Errorf("ListPending: %w", err)
	}
	return newHistoryPage(items, total, p), nil
}

// UpdateConfirmations replaces the progress flags of a pending rail
// withdrawal.
func (s *Service) UpdateConfirmations(ctx context.Context, adminID, transferID uuid.UUID, confirmations []bool) (*domain.Transfer, error) {
	if len(confirmations) != domain.RailConfirmationSteps {
		return nil, fmt.Errorf("UpdateConfirmations: want %d flags: %w", domain.RailConfirmationSteps, domain.ErrInvalidRequest)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("UpdateConfirmations: begin tx: %w", err)
	}
	defer tx.Rollback()

	t, err := s.transfers.GetForUpdate(ctx, tx, transferID)
	if err != nil {
		return nil, fmt.Errorf("UpdateConfirmations: %w", err)
	}
	if !t.Kind.IsRail() {
		return nil, fmt.Errorf("UpdateConfirmations: %s has no confirmations: %w", t.Kind, domain.ErrInvalidRequest)
	}
	if t.Status != domain.TransferStatusPending {
		return nil, fmt.Errorf("UpdateConfirmations: status %s: %w", t.Status, domain.ErrInvalidTransition)
	}

	if err := s.transfers.UpdateConfirmations(ctx, tx, t.ID, confirmations); err != nil {
		return nil, fmt.Errorf("UpdateConfirmations: %w", err)
	}
	if err := s.writeEvent(ctx, tx, t.ID, domain.TransferEventTypeConfirmationsUpdated, adminActor(adminID), map[string][]bool{
		"confirmations": confirmations,
	}); err != nil {
		return nil, fmt.Errorf("UpdateConfirmations: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("UpdateConfirmations: commit: %w", err)
	}

	t.Confirmations = confirmations
	t.UpdatedAt = s.now()
	return t, nil
}

// Finalize resolves a pending transfer. Approval completes it; rejection
// fails it and credits the debited amount back to the sender in the same
// transaction.
func (s *Service) Finalize(ctx context.Context, adminID, transferID uuid.UUID, decision Decision, reason string) (*domain.Transfer, error) {
	log := logging.FromContext(ctx)

	if !decision.IsValid() {
		return nil, fmt.Errorf("Finalize: unknown decision %q: %w", decision, domain.ErrInvalidRequest)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Finalize: begin tx: %w", err)
	}
	defer tx.Rollback()

	t, err := s.transfers.GetForUpdate(ctx, tx, transferID)
	if err != nil {
		return nil, fmt.Errorf("Finalize: %w", err)
	}
	if t.Status != domain.TransferStatusPending {
		return nil, fmt.Errorf("Finalize: status %s: %w", t.Status, domain.ErrInvalidTransition)
	}

	now := s.now()
	change := domain.TransferUpdate{From: t.Status}
	actor := adminActor(adminID)

	if decision == DecisionApproved {
		change.To = domain.TransferStatusCompleted
		change.CompletedAt = &now
		if t.Kind.IsRail() {
			change.Confirmations = allConfirmed()
		}
	} else {
		if strings.TrimSpace(reason) == "" {
			reason = defaultRejectReason
		}
		change.To = domain.TransferStatusFailed
		change.FailureReason = &reason

		if _, err := s.ledger.Lock(ctx, tx, t.Asset, t.FromUserID); err != nil {
			return nil, fmt.Errorf("Finalize: %w", err)
		}
		if _, err := s.ledger.Credit(ctx, tx, ledger.Posting{
			UserID:     t.FromUserID,
			Asset:      t.Asset,
			Amount:     t.Amount,
			TransferID: &t.ID,
			Reason:     RefundReason,
		}); err != nil {
			return nil, fmt.Errorf("Finalize: refund: %w", err)
		}
		if err := s.writeEvent(ctx, tx, t.ID, domain.TransferEventTypeRefunded, actor, map[string]string{
			"amount": t.Amount.String(),
		}); err != nil {
			return nil, fmt.Errorf("Finalize: %w", err)
		}
	}

	if err := s.transfers.UpdateStatus(ctx, tx, t.ID, change); err != nil {
		return nil, fmt.Errorf("Finalize: %w", err)
	}

	var payload any
	if change.FailureReason != nil {
		payload = map[string]string{"reason": *change.FailureReason}
	}
	if err := s.writeEvent(ctx, tx, t.ID, domain.EventTypeForStatus(change.To), actor, payload); err != nil {
		return nil, fmt.Errorf("Finalize: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Finalize: commit: %w", err)
	}

	t.Status = change.To
	t.UpdatedAt = now
	t.CompletedAt = change.CompletedAt
	t.FailureReason = change.FailureReason
	if change.Confirmations != nil {
		t.Confirmations = change.Confirmations
	}

	log.Info("transfer finalized",
		"transfer_id", t.ID,
		"admin_id", adminID,
		"decision", decision,
		"status", t.Status,
	)

	s.notifyFinalized(ctx, t)
	s.publish(ctx, t)

	return t, nil
}

func (s *Service) notifyFinalized(ctx context.Context, t *domain.Transfer) {
	sender, err := s.users.GetByID(ctx, t.FromUserID)
	if err != nil {
		logging.FromContext(ctx).Warn("sender lookup failed, skipping notifications", "transfer_id", t.ID, "error", err)
		return
	}
	tmpl := domain.TemplateTransferSent
	if t.Status == domain.TransferStatusFailed {
		tmpl = domain.FailedTemplate(t.Kind)
	}
	s.send(ctx, t, sender.Email, tmpl, transferVars(t, sender.Name, t.ToAddress))
}

// AdjustBalance credits or debits a user's balance outside any transfer. A
// negative delta larger than the balance fails with ErrInsufficientFunds.
func (s *Service) AdjustBalance(ctx context.Context, adminID, userID uuid.UUID, asset domain.Asset, delta decimal.Decimal, reason string) (*domain.Balance, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("AdjustBalance: reason required: %w", domain.ErrInvalidRequest)
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, fmt.Errorf("AdjustBalance: %w", err)
	}

	b, err := s.ledger.Adjust(ctx, userID, asset, delta, adminActor(adminID)+": "+reason)
	if err != nil {
		return nil, fmt.Errorf("AdjustBalance: %w", err)
	}

	logging.FromContext(ctx).Info("balance adjusted",
		"admin_id", adminID,
		"user_id", userID,
		"asset", asset,
		"delta", delta,
		"balance", b.Amount,
	)
	return b, nil
}

func allConfirmed() []bool {
	c := make([]bool, domain.RailConfirmationSteps)
	for i := range c {
		c[i] = true
	}
	return c
}

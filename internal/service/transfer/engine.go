package transfer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/ledger"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/logging"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/settlement"
)

type InitiateRequest struct {
	SenderID  uuid.UUID
	Asset     domain.Asset
	Amount    decimal.Decimal
	ToAddress string
	Kind      domain.TransferKind
	Rail      domain.RailDetails
}

// InitiateResult carries the pending_otp record. OTPSent is false when the
// record was created but the email could not be handed to the mail API.
type InitiateResult struct {
	Transfer *domain.Transfer
	OTPSent  bool
}

// Initiate validates a transfer request, records it as pending_otp and emails
// the sender a one-time code. No funds move until Verify.
func (s *Service) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	log := logging.FromContext(ctx)

	if err := validateInitiate(req); err != nil {
		return nil, fmt.Errorf("Initiate: %w", err)
	}

	sender, err := s.activeSender(ctx, req.SenderID)
	if err != nil {
		return nil, fmt.Errorf("Initiate: %w", err)
	}

	balance, err := s.ledger.GetBalance(ctx, sender.ID, req.Asset)
	if err != nil {
		return nil, fmt.Errorf("Initiate: %w", err)
	}
	if balance.LessThan(req.Amount) {
		return nil, fmt.Errorf("Initiate: %w", domain.ErrInsufficientFunds)
	}

	recipient, err := s.resolveRecipient(ctx, req.Kind, req.Asset, req.ToAddress)
	if err != nil {
		return nil, fmt.Errorf("Initiate: %w", err)
	}
	if recipient != nil && recipient.ID == sender.ID {
		return nil, fmt.Errorf("Initiate: %w", domain.ErrSelfTransfer)
	}

	tier := domain.TrustTierUsable
	if recipient == nil {
		tier = s.senderTier(ctx, sender.ID)
	}

	t, err := s.buildTransfer(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Initiate: %w", err)
	}

	if settlement.Decide(recipient != nil, tier) == domain.TransferStatusFailed {
		if err := s.recordRejected(ctx, t); err != nil {
			return nil, fmt.Errorf("Initiate: %w", err)
		}
		log.Info("transfer rejected before otp",
			"transfer_id", t.ID,
			"sender", sender.ID,
			"kind", t.Kind,
			"reason", FailureReasonTrustTier,
		)
		s.notifyFailed(ctx, t, sender)
		s.publish(ctx, t)
		return nil, fmt.Errorf("Initiate: %w", domain.ErrRailRequiresTrustTier)
	}

	if err := s.allowOTP(ctx, sender.ID); err != nil {
		return nil, fmt.Errorf("Initiate: %w", err)
	}

	code, err := s.createPendingOTP(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("Initiate: %w", err)
	}

	sent := s.sendOTP(ctx, t, sender, code)

	log.Info("transfer initiated",
		"transfer_id", t.ID,
		"transaction_id", t.TransactionID,
		"sender", sender.ID,
		"asset", t.Asset,
		"amount", t.Amount,
		"kind", t.Kind,
		"recipient_known", recipient != nil,
	)

	return &InitiateResult{Transfer: t, OTPSent: sent}, nil
}

func validateInitiate(req InitiateRequest) error {
	if !req.Asset.IsValid() {
		return fmt.Errorf("validateInitiate: %w", domain.ErrInvalidAsset)
	}
	if err := domain.ValidateAmount(req.Amount); err != nil {
		return fmt.Errorf("validateInitiate: %w", err)
	}
	if err := domain.ValidateKind(req.Kind, req.Rail); err != nil {
		return fmt.Errorf("validateInitiate: %w", err)
	}
	if req.Kind == domain.TransferKindRegular && strings.TrimSpace(req.ToAddress) == "" {
		return fmt.Errorf("validateInitiate: recipient address required: %w", domain.ErrInvalidRequest)
	}
	return nil
}

func (s *Service) activeSender(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("activeSender: %w", err)
	}
	if u.Status != domain.UserStatusActive {
		return nil, fmt.Errorf("activeSender: account %s: %w", u.Status, domain.ErrInvalidRequest)
	}
	return u, nil
}

// resolveRecipient returns nil for rail withdrawals and for addresses no
// active user owns.
func (s *Service) resolveRecipient(ctx context.Context, kind domain.TransferKind, asset domain.Asset, address string) (*domain.UserRef, error) {
	if kind.IsRail() {
		return nil, nil
	}
	ref, err := s.wallets.FindByAddress(ctx, asset, strings.TrimSpace(address))
	if err != nil {
		return nil, fmt.Errorf("resolveRecipient: %w", err)
	}
	return ref, nil
}

func (s *Service) buildTransfer(ctx context.Context, req InitiateRequest) (*domain.Transfer, error) {
	now := s.now()
	txID, err := domain.NewTransactionID(now)
	if err != nil {
		return nil, fmt.Errorf("buildTransfer: %w", err)
	}

	price, value := s.valuation(ctx, req.Asset, req.Amount)

	t := &domain.Transfer{
		ID:            uuid.New(),
		TransactionID: txID,
		FromUserID:    req.SenderID,
		FromAddress:   s.fromAddress(ctx, req.SenderID, req.Asset),
		Asset:         req.Asset,
		Amount:        req.Amount,
		ValueUSD:      value,
		PriceAtTime:   price,
		Kind:          req.Kind,
		Rail:          req.Rail,
		Status:        domain.TransferStatusPendingOTP,
		Confirmations: []bool{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	switch req.Kind {
	case domain.TransferKindBankWithdrawal:
		t.ToAddress = domain.BankDisplayAddress
		t.Confirmations = make([]bool, domain.RailConfirmationSteps)
	case domain.TransferKindPayPalWithdrawal:
		t.ToAddress = domain.PayPalDisplayAddress
		t.Confirmations = make([]bool, domain.RailConfirmationSteps)
	default:
		t.ToAddress = strings.TrimSpace(req.ToAddress)
	}
	return t, nil
}

// fromAddress is the sender's wallet for the asset, or a generic label when
// they have none.
func (s *Service) fromAddress(ctx context.Context, userID uuid.UUID, asset domain.Asset) string {
	w, err := s.wallets.GetByUserAndAsset(ctx, userID, asset)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			logging.FromContext(ctx).Warn("sender wallet lookup failed", "user_id", userID, "asset", asset, "error", err)
		}
		return domain.WalletDisplayAddress
	}
	return w.Address
}

func (s *Service) recordRejected(ctx context.Context, t *domain.Transfer) error {
	reason := FailureReasonTrustTier
	t.Status = domain.TransferStatusFailed
	t.FailureReason = &reason

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("recordRejected: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.transfers.Create(ctx, tx, t); err != nil {
		return fmt.Errorf("recordRejected: %w", err)
	}
	if err := s.writeEvent(ctx, tx, t.ID, domain.TransferEventTypeFailed, userActor(t.FromUserID), map[string]string{"reason": reason}); err != nil {
		return fmt.Errorf("recordRejected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("recordRejected: commit: %w", err)
	}
	return nil
}

func (s *Service) createPendingOTP(ctx context.Context, t *domain.Transfer) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("createPendingOTP: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.transfers.Create(ctx, tx, t); err != nil {
		return "", fmt.Errorf("createPendingOTP: %w", err)
	}

	code, err := s.otp.Issue(ctx, tx, t.FromUserID, domain.TransferIntent{
		TransferID: t.ID,
		Asset:      t.Asset,
		Amount:     t.Amount,
		ToAddress:  t.ToAddress,
		Kind:       t.Kind,
	})
	if err != nil {
		return "", fmt.Errorf("createPendingOTP: %w", err)
	}

	if err := s.writeEvent(ctx, tx, t.ID, domain.TransferEventTypeCreated, userActor(t.FromUserID), map[string]any{
		"kind":      t.Kind,
		"value_usd": t.ValueUSD,
	}); err != nil {
		return "", fmt.Errorf("createPendingOTP: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("createPendingOTP: commit: %w", err)
	}
	return code, nil
}

// Verify checks the code for a pending_otp transfer and settles it. The
// challenge, balances and status change commit together.
func (s *Service) Verify(ctx context.Context, senderID, transferID uuid.UUID, code string) (*domain.Transfer, error) {
	log := logging.FromContext(ctx)

	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("Verify: code required: %w", domain.ErrInvalidRequest)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Verify: begin tx: %w", err)
	}
	defer tx.Rollback()

	t, err := s.transfers.GetForUpdate(ctx, tx, transferID)
	if err != nil {
		return nil, fmt.Errorf("Verify: %w", err)
	}
	if t.FromUserID != senderID {
		return nil, fmt.Errorf("Verify: %w", domain.ErrNotOwner)
	}

	if err := s.otp.Check(ctx, tx, senderID, t.ID, strings.TrimSpace(code)); err != nil {
		return nil, s.keepOTPSideEffects(ctx, tx, t, err)
	}

	if t.Status != domain.TransferStatusPendingOTP {
		return nil, fmt.Errorf("Verify: status %s: %w", t.Status, domain.ErrTransferNotPending)
	}

	recipient, err := s.resolveRecipient(ctx, t.Kind, t.Asset, t.ToAddress)
	if err != nil {
		return nil, fmt.Errorf("Verify: %w", err)
	}
	if recipient != nil && recipient.ID == senderID {
		recipient = nil
	}

	tier := domain.TrustTierUsable
	if recipient == nil {
		tier = s.senderTier(ctx, senderID)
	}

	participants := []uuid.UUID{senderID}
	if recipient != nil {
		participants = append(participants, recipient.ID)
	}
	locked, err := s.ledger.Lock(ctx, tx, t.Asset, participants...)
	if err != nil {
		return nil, fmt.Errorf("Verify: %w", err)
	}

	if locked[senderID].Amount.LessThan(t.Amount) {
		if err := s.abandon(ctx, tx, t, "insufficient_funds"); err != nil {
			return nil, fmt.Errorf("Verify: %w", err)
		}
		log.Info("transfer abandoned at verify", "transfer_id", t.ID, "reason", "insufficient_funds")
		return nil, fmt.Errorf("Verify: %w", domain.ErrInsufficientFunds)
	}

	outcome := settlement.Decide(recipient != nil, tier)
	if err := s.settle(ctx, tx, t, recipient, outcome); err != nil {
		return nil, fmt.Errorf("Verify: %w", err)
	}

	if err := s.otp.Clear(ctx, tx, senderID); err != nil {
		return nil, fmt.Errorf("Verify: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Verify: commit: %w", err)
	}

	log.Info("transfer settled",
		"transfer_id", t.ID,
		"status", t.Status,
		"asset", t.Asset,
		"amount", t.Amount,
	)

	s.notifySettled(ctx, t, recipient)
	s.publish(ctx, t)

	return t, nil
}

// keepOTPSideEffects commits the challenge writes made by a failed check
// (cleared on expiry or lockout, incremented on mismatch) and returns the
// check error. Any other error rolls back.
func (s *Service) keepOTPSideEffects(ctx context.Context, tx *sql.Tx, t *domain.Transfer, checkErr error) error {
	switch {
	case errors.Is(checkErr, domain.ErrOTPExpired), errors.Is(checkErr, domain.ErrOTPAttemptsExceeded):
		reason := "otp_expired"
		if errors.Is(checkErr, domain.ErrOTPAttemptsExceeded) {
			reason = "otp_attempts_exceeded"
		}
		if err := s.writeEvent(ctx, tx, t.ID, domain.TransferEventTypeAbandoned, userActor(t.FromUserID), map[string]string{"reason": reason}); err != nil {
			return fmt.Errorf("Verify: %w", err)
		}
	case errors.Is(checkErr, domain.ErrOTPMismatch):
	default:
		return fmt.Errorf("Verify: %w", checkErr)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Verify: commit: %w", err)
	}
	return fmt.Errorf("Verify: %w", checkErr)
}

// abandon clears the challenge and commits, leaving the record pending_otp.
func (s *Service) abandon(ctx context.Context, tx *sql.Tx, t *domain.Transfer, reason string) error {
	if err := s.otp.Clear(ctx, tx, t.FromUserID); err != nil {
		return fmt.Errorf("abandon: %w", err)
	}
	if err := s.writeEvent(ctx, tx, t.ID, domain.TransferEventTypeAbandoned, userActor(t.FromUserID), map[string]string{"reason": reason}); err != nil {
		return fmt.Errorf("abandon: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("abandon: commit: %w", err)
	}
	return nil
}

// settle applies outcome to t inside tx: balance postings, the status CAS and
// the audit event. t is updated in place.
func (s *Service) settle(ctx context.Context, tx *sql.Tx, t *domain.Transfer, recipient *domain.UserRef, outcome domain.TransferStatus) error {
	now := s.now()
	change := domain.TransferUpdate{From: t.Status, To: outcome}

	switch outcome {
	case domain.TransferStatusCompleted:
		if err := s.move(ctx, tx, t, t.FromUserID, recipient.ID); err != nil {
			return fmt.Errorf("settle: %w", err)
		}
		change.ToUserID = &recipient.ID
		change.CompletedAt = &now
	case domain.TransferStatusPending:
		if _, err := s.ledger.Debit(ctx, tx, ledger.Posting{
			UserID:     t.FromUserID,
			Asset:      t.Asset,
			Amount:     t.Amount,
			TransferID: &t.ID,
			Reason:     string(t.Kind),
		}); err != nil {
			return fmt.Errorf("settle: %w", err)
		}
	case domain.TransferStatusFailed:
		reason := FailureReasonTrustTier
		change.FailureReason = &reason
	}

	if err := s.transfers.UpdateStatus(ctx, tx, t.ID, change); err != nil {
		return fmt.Errorf("settle: %w", err)
	}

	var payload any
	if change.FailureReason != nil {
		payload = map[string]string{"reason": *change.FailureReason}
	}
	if err := s.writeEvent(ctx, tx, t.ID, domain.EventTypeForStatus(outcome), userActor(t.FromUserID), payload); err != nil {
		return fmt.Errorf("settle: %w", err)
	}

	t.Status = outcome
	t.UpdatedAt = now
	if change.ToUserID != nil {
		t.ToUserID = change.ToUserID
	}
	t.CompletedAt = change.CompletedAt
	t.FailureReason = change.FailureReason
	return nil
}

func (s *Service) move(ctx context.Context, tx *sql.Tx, t *domain.Transfer, from, to uuid.UUID) error {
	if _, err := s.ledger.Debit(ctx, tx, ledger.Posting{
		UserID:     from,
		Asset:      t.Asset,
		Amount:     t.Amount,
		TransferID: &t.ID,
		Reason:     string(t.Kind),
	}); err != nil {
		return fmt.Errorf("move: debit: %w", err)
	}
	if _, err := s.ledger.Credit(ctx, tx, ledger.Posting{
		UserID:     to,
		Asset:      t.Asset,
		Amount:     t.Amount,
		TransferID: &t.ID,
		Reason:     string(t.Kind),
	}); err != nil {
		return fmt.Errorf("move: credit: %w", err)
	}
	return nil
}

type ResendResult struct {
	Transfer *domain.Transfer
	OTPSent  bool
}

// Resend issues a new code for a pending_otp transfer. The previous code stops
// working. Balance and recipient are checked again only at Verify.
func (s *Service) Resend(ctx context.Context, senderID, transferID uuid.UUID) (*ResendResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Resend: begin tx: %w", err)
	}
	defer tx.Rollback()

	t, err := s.transfers.GetForUpdate(ctx, tx, transferID)
	if err != nil {
		return nil, fmt.Errorf("Resend: %w", err)
	}
	if t.FromUserID != senderID {
		return nil, fmt.Errorf("Resend: %w", domain.ErrNotOwner)
	}
	if t.Status != domain.TransferStatusPendingOTP {
		return nil, fmt.Errorf("Resend: status %s: %w", t.Status, domain.ErrNoPendingIntent)
	}

	if err := s.allowOTP(ctx, senderID); err != nil {
		return nil, fmt.Errorf("Resend: %w", err)
	}

	code, err := s.otp.Resend(ctx, tx, senderID, t.ID)
	if err != nil {
		return nil, fmt.Errorf("Resend: %w", err)
	}
	if err := s.writeEvent(ctx, tx, t.ID, domain.TransferEventTypeOTPResent, userActor(senderID), nil); err != nil {
		return nil, fmt.Errorf("Resend: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Resend: commit: %w", err)
	}

	sender, err := s.users.GetByID(ctx, senderID)
	if err != nil {
		logging.FromContext(ctx).Warn("sender lookup failed, otp not emailed", "transfer_id", t.ID, "error", err)
		return &ResendResult{Transfer: t}, nil
	}

	return &ResendResult{Transfer: t, OTPSent: s.sendOTP(ctx, t, sender, code)}, nil
}

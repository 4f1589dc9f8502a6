package transfer

import (
	"context"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/logging"
)

// Notifications are sent after commit and never fail the operation that
// triggered them.

func (s *Service) sendOTP(ctx context.Context, t *domain.Transfer, sender *domain.User, code string) bool {
	vars := map[string]string{
		"userName": sender.Name,
		"otp":      code,
		"amount":   t.Amount.String(),
		"asset":    t.Asset.DisplayName(),
		"txId":     t.TransactionID,
	}
	if err := s.notifier.Send(ctx, sender.Email, domain.OTPTemplate(t.Kind), vars); err != nil {
		logging.FromContext(ctx).Warn("failed to send otp email",
			"transfer_id", t.ID,
			"user_id", sender.ID,
			"error", err,
		)
		return false
	}
	return true
}

func (s *Service) notifySettled(ctx context.Context, t *domain.Transfer, recipient *domain.UserRef) {
	sender, err := s.users.GetByID(ctx, t.FromUserID)
	if err != nil {
		logging.FromContext(ctx).Warn("sender lookup failed, skipping notifications", "transfer_id", t.ID, "error", err)
		return
	}

	switch t.Status {
	case domain.TransferStatusCompleted:
		s.send(ctx, t, sender.Email, domain.TemplateTransferSent, transferVars(t, sender.Name, t.ToAddress))
		if recipient != nil {
			s.send(ctx, t, recipient.Email, domain.TemplateTransferReceived, transferVars(t, recipient.Name, t.FromAddress))
		}
	case domain.TransferStatusPending:
		s.send(ctx, t, sender.Email, domain.PendingTemplate(t.Kind), transferVars(t, sender.Name, t.ToAddress))
	case domain.TransferStatusFailed:
		s.notifyFailed(ctx, t, sender)
	}
}

func (s *Service) notifyFailed(ctx context.Context, t *domain.Transfer, sender *domain.User) {
	vars := transferVars(t, sender.Name, t.ToAddress)
	s.send(ctx, t, sender.Email, domain.FailedTemplate(t.Kind), vars)
	s.send(ctx, t, sender.Email, domain.TemplateTrustTierUpgrade, map[string]string{"userName": sender.Name})
}

func (s *Service) send(ctx context.Context, t *domain.Transfer, to string, tmpl domain.Template, vars map[string]string) {
	if err := s.notifier.Send(ctx, to, tmpl, vars); err != nil {
		logging.FromContext(ctx).Warn("failed to queue notification",
			"transfer_id", t.ID,
			"template", tmpl,
			"error", err,
		)
	}
}

func transferVars(t *domain.Transfer, name, walletAddress string) map[string]string {
	return map[string]string{
		"userName":      name,
		"asset":         t.Asset.DisplayName(),
		"amount":        t.Amount.String(),
		"txId":          t.TransactionID,
		"walletAddress": walletAddress,
		"valueUsd":      t.ValueUSD.StringFixed(2),
	}
}

// Package notify delivers transactional email. One-time passcodes go straight
// to the mail API so their plaintext never reaches the database; every other
// message is written to an outbox and delivered by the Dispatcher.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/logging"
)

type mailSender interface {
	Send(ctx context.Context, to string, tmpl domain.Template, vars map[string]string) error
}

type outboxWriter interface {
	Create(ctx context.Context, n *domain.Notification) error
}

type Service struct {
	mailer mailSender
	outbox outboxWriter
	now    func() time.Time
}

func NewService(mailer mailSender, outbox outboxWriter) *Service {
	return &Service{
		mailer: mailer,
		outbox: outbox,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Send(ctx context.Context, to string, tmpl domain.Template, vars map[string]string) error {
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("Send: recipient required: %w", domain.ErrInvalidRequest)
	}

	if tmpl.IsOTP() {
		if err := s.mailer.Send(ctx, to, tmpl, vars); err != nil {
			return fmt.Errorf("Send: %w", err)
		}
		return nil
	}

	now := s.now()
	n := &domain.Notification{
		ID:            uuid.New(),
		Recipient:     to,
		Template:      tmpl,
		Vars:          vars,
		Status:        domain.NotificationStatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
	if n.Vars == nil {
		n.Vars = map[string]string{}
	}
	if err := s.outbox.Create(ctx, n); err != nil {
		return fmt.Errorf("Send: enqueue: %w", err)
	}

	logging.FromContext(ctx).Debug("notification queued", "notification_id", n.ID, "template", tmpl)
	return nil
}

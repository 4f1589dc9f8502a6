package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"
)

type outboxQueue interface {
	ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]domain.Notification, error)
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkRetry(ctx context.Context, id uuid.UUID, nextAttemptAt time.Time, lastErr string) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastErr string) error
}

type DispatcherConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	Lease       time.Duration
}

// Dispatcher drains the notification outbox on a fixed interval.
type Dispatcher struct {
	outbox outboxQueue
	mailer mailSender
	logger *slog.Logger
	cfg    DispatcherConfig
	now    func() time.Time
}

func NewDispatcher(outbox outboxQueue, mailer mailSender, logger *slog.Logger, cfg DispatcherConfig) *Dispatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Lease <= 0 {
		cfg.Lease = time.Minute
	}
	return &Dispatcher{
		outbox: outbox,
		mailer: mailer,
		logger: logger,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("notification dispatcher started", "interval", d.cfg.Interval)

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("notification dispatcher stopped")
			return
		case <-ticker.C:
			d.poll(ctx)
		}
	}
}

func (d *Dispatcher) poll(ctx context.Context) {
	due, err := d.outbox.ClaimDue(ctx, d.now(), d.cfg.BatchSize, d.cfg.Lease)
	if err != nil {
		d.logger.Error("failed to claim due notifications", "error", err)
		return
	}

	for _, n := range due {
		d.deliver(ctx, n)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n domain.Notification) {
	log := d.logger.With("notification_id", n.ID, "template", n.Template)

	// n.Attempts already counts this claim.
	if n.Attempts > d.cfg.MaxAttempts {
		log.Error("notification lease expired too many times", "attempts", n.Attempts)
		if err := d.outbox.MarkFailed(ctx, n.ID, "delivery lease expired"); err != nil {
			log.Error("failed to mark notification failed", "error", err)
		}
		return
	}

	sendErr := d.mailer.Send(ctx, n.Recipient, n.Template, n.Vars)
	if sendErr == nil {
		if err := d.outbox.MarkSent(ctx, n.ID, d.now()); err != nil {
			log.Error("failed to mark notification sent", "error", err)
		}
		return
	}

	attempts := n.Attempts
	if attempts >= d.cfg.MaxAttempts {
		log.Error("notification delivery failed permanently", "attempts", attempts, "error", sendErr)
		if err := d.outbox.MarkFailed(ctx, n.ID, sendErr.Error()); err != nil {
			log.Error("failed to mark notification failed", "error", err)
		}
		return
	}

	next := d.now().Add(backoff(attempts))
	log.Warn("notification delivery failed, will retry", "attempts", attempts, "next_attempt_at", next, "error", sendErr)
	if err := d.outbox.MarkRetry(ctx, n.ID, next, sendErr.Error()); err != nil {
		log.Error("failed to schedule notification retry", "error", err)
	}
}

func backoff(attempts int) time.Duration {
	return time.Duration(attempts*10+10) * time.Second
}

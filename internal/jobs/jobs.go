package jobs

import (
	"context"
	"log/slog"
	"time"
)

type otpPurger interface {
	PurgeExpired(ctx context.Context, retention time.Duration) (int64, error)
}

type idempotencyCleaner interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type notificationPurger interface {
	DeleteSentBefore(ctx context.Context, before time.Time) (int64, error)
}

type Config struct {
	OTPRetention          time.Duration
	NotificationRetention time.Duration
	Timeout               time.Duration
}

// Jobs holds the housekeeping tasks the scheduler runs.
type Jobs struct {
	otp           otpPurger
	idempotency   idempotencyCleaner
	notifications notificationPurger
	logger        *slog.Logger
	cfg           Config
	now           func() time.Time
}

func NewJobs(otp otpPurger, idempotency idempotencyCleaner, notifications notificationPurger, logger *slog.Logger, cfg Config) *Jobs {
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	return &Jobs{
		otp:           otp,
		idempotency:   idempotency,
		notifications: notifications,
		logger:        logger,
		cfg:           cfg,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// PurgeOTPChallenges deletes challenges abandoned longer than the retention
// window. A later Verify for their transfers finds no challenge.
func (j *Jobs) PurgeOTPChallenges() {
	ctx, cancel := context.WithTimeout(context.Background(), j.cfg.Timeout)
	defer cancel()

	n, err := j.otp.PurgeExpired(ctx, j.cfg.OTPRetention)
	if err != nil {
		j.logger.Error("otp purge failed", "error", err)
		return
	}
	j.logger.Info("otp purge complete", "deleted", n)
}

func (j *Jobs) CleanIdempotencyCache() {
	ctx, cancel := context.WithTimeout(context.Background(), j.cfg.Timeout)
	defer cancel()

	n, err := j.idempotency.DeleteExpired(ctx, j.now())
	if err != nil {
		j.logger.Error("idempotency cleanup failed", "error", err)
		return
	}
	j.logger.Info("idempotency cleanup complete", "deleted", n)
}

func (j *Jobs) PurgeSentNotifications() {
	ctx, cancel := context.WithTimeout(context.Background(), j.cfg.Timeout)
	defer cancel()

	n, err := j.notifications.DeleteSentBefore(ctx, j.now().Add(-j.cfg.NotificationRetention))
	if err != nil {
		j.logger.Error("notification purge failed", "error", err)
		return
	}
	j.logger.Info("notification purge complete", "deleted", n)
}

package jobs

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

type Schedules struct {
	OTPPurge          string
	Idempotency       string
	NotificationPurge string
}

type Scheduler struct {
	cron      *cron.Cron
	jobs      *Jobs
	logger    *slog.Logger
	schedules Schedules
}

func NewScheduler(jobs *Jobs, logger *slog.Logger, schedules Schedules) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	return &Scheduler{
		cron:      c,
		jobs:      jobs,
		logger:    logger,
		schedules: schedules,
	}
}

// Start registers the jobs and starts the scheduler. A job with an invalid
// schedule is logged and skipped; the others still run.
func (s *Scheduler) Start() {
	s.add("otp purge", s.schedules.OTPPurge, s.jobs.PurgeOTPChallenges)
	s.add("idempotency cleanup", s.schedules.Idempotency, s.jobs.CleanIdempotencyCache)
	s.add("notification purge", s.schedules.NotificationPurge, s.jobs.PurgeSentNotifications)
	s.cron.Start()
}

func (s *Scheduler) add(name, schedule string, fn func()) {
	if schedule == "" {
		s.logger.Info("job disabled", "job", name)
		return
	}
	if _, err := s.cron.AddFunc(schedule, fn); err != nil {
		s.logger.Error("failed to schedule job", "job", name, "schedule", schedule, "error", err)
		return
	}
	s.logger.Info("scheduled job", "job", name, "schedule", schedule)
}

// Stop returns a context that is done once running jobs have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) entries() int {
	return len(s.cron.Entries())
}

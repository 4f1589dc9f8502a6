package jobs

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeOTP struct {
	retention time.Duration
	err       error
}

func (f *fakeOTP) PurgeExpired(_ context.Context, retention time.Duration) (int64, error) {
	f.retention = retention
	return 3, f.err
}

type fakeIdem struct{ before time.Time }

func (f *fakeIdem) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	f.before = before
	return 1, nil
}

type fakeNotifications struct{ before time.Time }

func (f *fakeNotifications) DeleteSentBefore(_ context.Context, before time.Time) (int64, error) {
	f.before = before
	return 7, nil
}

func TestJobs(t *testing.T) {
	now := time.Date(2026, 7, 1, 3, 0, 0, 0, time.UTC)
	otp := &fakeOTP{}
	idem := &fakeIdem{}
	notes := &fakeNotifications{}

	j := NewJobs(otp, idem, notes, slog.Default(), Config{
		OTPRetention:          24 * time.Hour,
		NotificationRetention: 30 * 24 * time.Hour,
	})
	j.now = func() time.Time { return now }

	j.PurgeOTPChallenges()
	j.CleanIdempotencyCache()
	j.PurgeSentNotifications()

	assert.Equal(t, 24*time.Hour, otp.retention)
	assert.Equal(t, now, idem.before)
	assert.Equal(t, now.Add(-30*24*time.Hour), notes.before)
}

func TestJobs_ErrorIsLoggedNotPanicked(t *testing.T) {
	j := NewJobs(&fakeOTP{err: errors.New("db down")}, &fakeIdem{}, &fakeNotifications{}, slog.Default(), Config{})
	assert.NotPanics(t, j.PurgeOTPChallenges)
}

func TestScheduler_RegistersValidSchedules(t *testing.T) {
	j := NewJobs(&fakeOTP{}, &fakeIdem{}, &fakeNotifications{}, slog.Default(), Config{})
	s := NewScheduler(j, slog.Default(), Schedules{
		OTPPurge:          "@every 15m",
		Idempotency:       "not a schedule",
		NotificationPurge: "0 3 * * *",
	})

	s.Start()
	defer s.Stop()

	assert.Equal(t, 2, s.entries())
}

func TestScheduler_StopWaitsForJobs(t *testing.T) {
	j := NewJobs(&fakeOTP{}, &fakeIdem{}, &fakeNotifications{}, slog.Default(), Config{})
	s := NewScheduler(j, slog.Default(), Schedules{})
	s.Start()

	select {
	case <-s.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

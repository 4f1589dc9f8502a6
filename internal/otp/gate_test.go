package otp

import (
	"context"
	"database/sql"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"
)

type fakeChallenges struct {
	rows         map[uuid.UUID]domain.OTPChallenge
	purgedBefore time.Time
}

func newFakeChallenges() *fakeChallenges {
	return &fakeChallenges{rows: make(map[uuid.UUID]domain.OTPChallenge)}
}

func (f *fakeChallenges) Upsert(_ context.Context, _ *sql.Tx, c *domain.OTPChallenge) error {
	f.rows[c.UserID] = *c
	return nil
}

func (f *fakeChallenges) GetForUpdate(_ context.Context, _ *sql.Tx, userID uuid.UUID) (*domain.OTPChallenge, error) {
	c, ok := f.rows[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (f *fakeChallenges) IncrementAttempts(_ context.Context, _ *sql.Tx, userID uuid.UUID) (int, error) {
	c, ok := f.rows[userID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	c.Attempts++
	f.rows[userID] = c
	return c.Attempts, nil
}

func (f *fakeChallenges) Delete(_ context.Context, _ *sql.Tx, userID uuid.UUID) error {
	delete(f.rows, userID)
	return nil
}

func (f *fakeChallenges) DeleteExpiredBefore(_ context.Context, before time.Time) (int64, error) {
	f.purgedBefore = before
	var n int64
	for id, c := range f.rows {
		if c.ExpiresAt.Before(before) {
			delete(f.rows, id)
			n++
		}
	}
	return n, nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func sequence(codes ...string) func() (string, error) {
	i := 0
	return func() (string, error) {
		c := codes[i%len(codes)]
		i++
		return c, nil
	}
}

func newTestGate(repo *fakeChallenges, clk *clock, codes ...string) *Gate {
	return NewGate(repo, Config{Secret: "test-secret", TTL: 10 * time.Minute, MaxAttempts: 3},
		WithClock(clk.now), WithCodeSource(sequence(codes...)))
}

func testIntent() domain.TransferIntent {
	return domain.TransferIntent{
		TransferID: uuid.New(),
		Asset:      domain.AssetBTC,
		Amount:     decimal.RequireFromString("0.3"),
		ToAddress:  "bc1qrecipient",
		Kind:       domain.TransferKindRegular,
	}
}

func TestGenerateCode_InRange(t *testing.T) {
	for range 200 {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestIssue_StoresHashNotPlaintext(t *testing.T) {
	repo := newFakeChallenges()
	clk := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	g := newTestGate(repo, clk, "123456")
	user := uuid.New()
	intent := testIntent()

	code, err := g.Issue(context.Background(), nil, user, intent)
	require.NoError(t, err)
	assert.Equal(t, "123456", code)

	stored := repo.rows[user]
	assert.NotEqual(t, code, stored.CodeHash)
	assert.Len(t, stored.CodeHash, 64)
	assert.Equal(t, clk.t.Add(10*time.Minute), stored.ExpiresAt)
	assert.Equal(t, intent.TransferID, stored.TransferID)
	assert.Equal(t, 0, stored.Attempts)
}

func TestCheck(t *testing.T) {
	ctx := context.Background()
	user := uuid.New()

	t.Run("valid code leaves challenge for caller", func(t *testing.T) {
		repo := newFakeChallenges()
		clk := &clock{t: time.Now().UTC()}
		g := newTestGate(repo, clk, "111111")
		intent := testIntent()
		_, err := g.Issue(ctx, nil, user, intent)
		require.NoError(t, err)

		require.NoError(t, g.Check(ctx, nil, user, intent.TransferID, "111111"))
		assert.Contains(t, repo.rows, user)
	})

	t.Run("no challenge", func(t *testing.T) {
		g := newTestGate(newFakeChallenges(), &clock{t: time.Now()}, "111111")
		err := g.Check(ctx, nil, user, uuid.New(), "111111")
		assert.ErrorIs(t, err, domain.ErrOTPNotFound)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("challenge for a different transfer", func(t *testing.T) {
		repo := newFakeChallenges()
		g := newTestGate(repo, &clock{t: time.Now()}, "111111")
		_, err := g.Issue(ctx, nil, user, testIntent())
		require.NoError(t, err)

		err = g.Check(ctx, nil, user, uuid.New(), "111111")
		assert.ErrorIs(t, err, domain.ErrOTPNotFound)
		assert.Contains(t, repo.rows, user)
	})

	t.Run("expired clears challenge", func(t *testing.T) {
		repo := newFakeChallenges()
		clk := &clock{t: time.Now().UTC()}
		g := newTestGate(repo, clk, "111111")
		intent := testIntent()
		_, err := g.Issue(ctx, nil, user, intent)
		require.NoError(t, err)

		clk.advance(11 * time.Minute)
		err = g.Check(ctx, nil, user, intent.TransferID, "111111")
		assert.ErrorIs(t, err, domain.ErrOTPExpired)
		assert.NotContains(t, repo.rows, user)
	})

	t.Run("mismatch counts attempts then locks out", func(t *testing.T) {
		repo := newFakeChallenges()
		g := newTestGate(repo, &clock{t: time.Now()}, "111111")
		intent := testIntent()
		_, err := g.Issue(ctx, nil, user, intent)
		require.NoError(t, err)

		err = g.Check(ctx, nil, user, intent.TransferID, "999999")
		assert.ErrorIs(t, err, domain.ErrOTPMismatch)
		err = g.Check(ctx, nil, user, intent.TransferID, "999999")
		assert.ErrorIs(t, err, domain.ErrOTPMismatch)
		assert.Equal(t, 2, repo.rows[user].Attempts)

		err = g.Check(ctx, nil, user, intent.TransferID, "999999")
		assert.ErrorIs(t, err, domain.ErrOTPAttemptsExceeded)
		assert.NotContains(t, repo.rows, user)

		err = g.Check(ctx, nil, user, intent.TransferID, "111111")
		assert.ErrorIs(t, err, domain.ErrOTPNotFound)
	})
}

func TestResend_InvalidatesPreviousCode(t *testing.T) {
	ctx := context.Background()
	repo := newFakeChallenges()
	clk := &clock{t: time.Now().UTC()}
	g := newTestGate(repo, clk, "111111", "222222")
	user := uuid.New()
	intent := testIntent()

	first, err := g.Issue(ctx, nil, user, intent)
	require.NoError(t, err)
	_ = g.Check(ctx, nil, user, intent.TransferID, "000000")

	clk.advance(5 * time.Minute)
	second, err := g.Resend(ctx, nil, user, intent.TransferID)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	stored := repo.rows[user]
	assert.Equal(t, 0, stored.Attempts)
	assert.Equal(t, clk.t.Add(10*time.Minute), stored.ExpiresAt)
	assert.Equal(t, intent, stored.Intent)

	err = g.Check(ctx, nil, user, intent.TransferID, first)
	assert.ErrorIs(t, err, domain.ErrOTPMismatch)
	require.NoError(t, g.Check(ctx, nil, user, intent.TransferID, second))
}

func TestResend_NoPendingIntent(t *testing.T) {
	ctx := context.Background()
	repo := newFakeChallenges()
	g := newTestGate(repo, &clock{t: time.Now()}, "111111")
	user := uuid.New()

	_, err := g.Resend(ctx, nil, user, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNoPendingIntent)

	intent := testIntent()
	_, err = g.Issue(ctx, nil, user, intent)
	require.NoError(t, err)
	require.NoError(t, g.Clear(ctx, nil, user))

	_, err = g.Resend(ctx, nil, user, intent.TransferID)
	assert.ErrorIs(t, err, domain.ErrNoPendingIntent)
}

func TestPurgeExpired(t *testing.T) {
	repo := newFakeChallenges()
	clk := &clock{t: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	g := newTestGate(repo, clk, "111111")

	_, err := g.Issue(context.Background(), nil, uuid.New(), testIntent())
	require.NoError(t, err)

	clk.advance(48 * time.Hour)
	n, err := g.PurgeExpired(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, clk.t.Add(-24*time.Hour), repo.purgedBefore)
}

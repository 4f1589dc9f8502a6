package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/ratelimit"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/testutil"
)

func TestLimiter_NilAllowsEverything(t *testing.T) {
	var l *ratelimit.Limiter
	d, err := l.Allow(context.Background(), "otp", "user-1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = ratelimit.New(nil, "", 1, time.Minute).Allow(context.Background(), "otp", "user-1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestLimiter_Redis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := testutil.SetupTestRedis(t)
	ctx := context.Background()
	l := ratelimit.New(client, "test:", 3, time.Minute)

	for i := 1; i <= 3; i++ {
		d, err := l.Allow(ctx, "otp", "alice")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "hit %d", i)
		assert.Equal(t, i, d.Count)
	}

	d, err := l.Allow(ctx, "otp", "alice")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 4, d.Count)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, time.Minute)

	d, err = l.Allow(ctx, "otp", "bob")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "subjects are counted separately")

	ttl, err := client.PTTL(ctx, "test:otp:alice").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestLimiter_WindowExpires(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := testutil.SetupTestRedis(t)
	ctx := context.Background()
	l := ratelimit.New(client, "expiry", 1, time.Second)

	d, err := l.Allow(ctx, "otp", "carol")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = l.Allow(ctx, "otp", "carol")
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	time.Sleep(1500 * time.Millisecond)

	d, err = l.Allow(ctx, "otp", "carol")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/repository"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/testutil"
)

func TestIdempotencyRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db := testutil.SetupTestDB(t)
	repo := repository.NewIdempotencyRepository(db)
	ctx := context.Background()

	t.Run("save then lookup", func(t *testing.T) {
		testutil.Truncate(t, db, "idempotent_responses", "users")
		user := testutil.SeedUser(t, db, "ada@example.com", "Ada")
		now := time.Now().UTC().Truncate(time.Microsecond)

		saved, err := repo.Save(ctx, &repository.StoredResponse{
			UserID:      user.ID,
			Key:         "k1",
			Fingerprint: "abc",
			StatusCode:  201,
			Body:        []byte(`{"success":true}`),
			StoredAt:    now,
			ExpiresAt:   now.Add(time.Hour),
		})
		require.NoError(t, err)
		assert.True(t, saved)

		got, err := repo.Lookup(ctx, user.ID, "k1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "abc", got.Fingerprint)
		assert.Equal(t, 201, got.StatusCode)
		assert.JSONEq(t, `{"success":true}`, string(got.Body))

		missing, err := repo.Lookup(ctx, user.ID, "other")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("live entry is kept, expired entry is replaced", func(t *testing.T) {
		testutil.Truncate(t, db, "idempotent_responses", "users")
		user := testutil.SeedUser(t, db, "bo@example.com", "Bo")
		now := time.Now().UTC()

		first := &repository.StoredResponse{UserID: user.ID, Key: "k", Fingerprint: "one", StatusCode: 201, Body: []byte(`{}`), StoredAt: now, ExpiresAt: now.Add(time.Hour)}
		saved, err := repo.Save(ctx, first)
		require.NoError(t, err)
		require.True(t, saved)

		second := &repository.StoredResponse{UserID: user.ID, Key: "k", Fingerprint: "two", StatusCode: 201, Body: []byte(`{}`), StoredAt: now, ExpiresAt: now.Add(time.Hour)}
		saved, err = repo.Save(ctx, second)
		require.NoError(t, err)
		assert.False(t, saved)

		later := now.Add(2 * time.Hour)
		third := &repository.StoredResponse{UserID: user.ID, Key: "k", Fingerprint: "three", StatusCode: 201, Body: []byte(`{}`), StoredAt: later, ExpiresAt: later.Add(time.Hour)}
		saved, err = repo.Save(ctx, third)
		require.NoError(t, err)
		assert.True(t, saved)
	})

	t.Run("delete expired", func(t *testing.T) {
		testutil.Truncate(t, db, "idempotent_responses", "users")
		user := testutil.SeedUser(t, db, "cy@example.com", "Cy")
		now := time.Now().UTC()

		for i, exp := range []time.Time{now.Add(-time.Hour), now.Add(time.Hour)} {
			_, err := repo.Save(ctx, &repository.StoredResponse{
				UserID:      user.ID,
				Key:         []string{"old", "new"}[i],
				Fingerprint: "f",
				StatusCode:  201,
				Body:        []byte(`{}`),
				StoredAt:    now.Add(-2 * time.Hour),
				ExpiresAt:   exp,
			})
			require.NoError(t, err)
		}

		n, err := repo.DeleteExpired(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		got, err := repo.Lookup(ctx, user.ID, "new")
		require.NoError(t, err)
		assert.NotNil(t, got)
	})
}

package trust

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"
)

type fakeUsers struct {
	user *domain.User
	err  error
}

func (f *fakeUsers) GetByID(_ context.Context, _ uuid.UUID) (*domain.User, error) {
	return f.user, f.err
}

type fakeCards struct {
	status domain.CardApplicationStatus
	err    error
	email  string
}

func (f *fakeCards) LatestStatusByEmail(_ context.Context, email string) (domain.CardApplicationStatus, error) {
	f.email = email
	return f.status, f.err
}

func TestGetTier(t *testing.T) {
	user := &domain.User{ID: uuid.New(), Email: "alice@example.com"}
	boom := errors.New("connection reset")

	tests := []struct {
		name    string
		users   *fakeUsers
		cards   *fakeCards
		want    domain.TrustTier
		wantErr bool
	}{
		{"active card", &fakeUsers{user: user}, &fakeCards{status: domain.CardStatusActive}, domain.TrustTierUsable, false},
		{"pending card", &fakeUsers{user: user}, &fakeCards{status: domain.CardStatusPending}, domain.TrustTierUsable, false},
		{"rejected card", &fakeUsers{user: user}, &fakeCards{status: domain.CardStatusRejected}, domain.TrustTierUnusable, false},
		{"no application", &fakeUsers{user: user}, &fakeCards{err: domain.ErrNotFound}, domain.TrustTierUnusable, false},
		{"no user", &fakeUsers{err: domain.ErrNotFound}, &fakeCards{}, domain.TrustTierUnusable, false},
		{"card lookup fails", &fakeUsers{user: user}, &fakeCards{err: boom}, domain.TrustTierUnusable, true},
		{"user lookup fails", &fakeUsers{err: boom}, &fakeCards{}, domain.TrustTierUnusable, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := NewLookup(tc.users, tc.cards)
			got, err := l.GetTier(context.Background(), user.ID)
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetTier_LooksUpByUserEmail(t *testing.T) {
	user := &domain.User{ID: uuid.New(), Email: "bob@example.com"}
	cards := &fakeCards{status: domain.CardStatusActive}

	_, err := NewLookup(&fakeUsers{user: user}, cards).GetTier(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", cards.email)
}

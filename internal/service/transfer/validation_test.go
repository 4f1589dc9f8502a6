package transfer

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/ledger"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/pricing"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/ratelimit"
)

type fakeUsers struct {
	users map[uuid.UUID]*domain.User
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

type fakeWallets struct {
	byAddress map[string]*domain.UserRef
}

func (f *fakeWallets) FindByAddress(_ context.Context, _ domain.Asset, address string) (*domain.UserRef, error) {
	return f.byAddress[address], nil
}

func (f *fakeWallets) GetByUserAndAsset(_ context.Context, _ uuid.UUID, _ domain.Asset) (*domain.WalletAddress, error) {
	return nil, domain.ErrNotFound
}

// fakeLedger only answers balance reads; anything that needs a transaction is
// out of scope for these tests.
type fakeLedger struct {
	balance decimal.Decimal
}

func (f *fakeLedger) GetBalance(_ context.Context, _ uuid.UUID, _ domain.Asset) (decimal.Decimal, error) {
	return f.balance, nil
}

func (f *fakeLedger) Balances(_ context.Context, userID uuid.UUID) ([]domain.Balance, error) {
	return []domain.Balance{
		{UserID: userID, Asset: domain.AssetBTC, Amount: f.balance},
		{UserID: userID, Asset: domain.AssetETH, Amount: decimal.Zero},
	}, nil
}

func (f *fakeLedger) Lock(context.Context, *sql.Tx, domain.Asset, ...uuid.UUID) (map[uuid.UUID]*domain.Balance, error) {
	return nil, errors.New("not supported")
}

func (f *fakeLedger) Debit(context.Context, *sql.Tx, ledger.Posting) (*domain.Balance, error) {
	return nil, errors.New("not supported")
}

func (f *fakeLedger) Credit(context.Context, *sql.Tx, ledger.Posting) (*domain.Balance, error) {
	return nil, errors.New("not supported")
}

func (f *fakeLedger) Adjust(context.Context, uuid.UUID, domain.Asset, decimal.Decimal, string) (*domain.Balance, error) {
	return nil, errors.New("not supported")
}

type fakeLimiter struct {
	decision ratelimit.Decision
	err      error
	calls    int
}

func (f *fakeLimiter) Allow(_ context.Context, _, _ string) (ratelimit.Decision, error) {
	f.calls++
	return f.decision, f.err
}

type fakeOracle struct {
	price decimal.Decimal
}

func (f *fakeOracle) GetPrice(_ context.Context, _ domain.Asset) pricing.Quote {
	return pricing.Quote{Price: f.price, Source: pricing.SourceStatic}
}

type fakeTrust struct {
	tier domain.TrustTier
	err  error
}

func (f *fakeTrust) GetTier(_ context.Context, _ uuid.UUID) (domain.TrustTier, error) {
	return f.tier, f.err
}

func newUnitService(sender *domain.User, balance string, wallets map[string]*domain.UserRef, limiter *fakeLimiter) *Service {
	deps := Deps{
		Users:   &fakeUsers{users: map[uuid.UUID]*domain.User{sender.ID: sender}},
		Wallets: &fakeWallets{byAddress: wallets},
		Ledger:  &fakeLedger{balance: decimal.RequireFromString(balance)},
		Prices:  &fakeOracle{price: decimal.NewFromInt(100)},
		Trust:   &fakeTrust{tier: domain.TrustTierUsable},
	}
	if limiter != nil {
		deps.Limiter = limiter
	}
	return NewService(deps)
}

func activeUser() *domain.User {
	return &domain.User{ID: uuid.New(), Email: "ada@example.com", Name: "Ada", Status: domain.UserStatusActive}
}

func TestValidateInitiate(t *testing.T) {
	bank := domain.BankDetails{FullName: "Ada Obi", BankName: "First Bank", AccountNumber: "0123456789"}

	tests := []struct {
		name    string
		req     InitiateRequest
		wantErr error
	}{
		{
			name: "valid regular",
			req:  InitiateRequest{Asset: domain.AssetBTC, Amount: decimal.RequireFromString("0.5"), ToAddress: "bc1q", Kind: domain.TransferKindRegular},
		},
		{
			name: "valid bank",
			req:  InitiateRequest{Asset: domain.AssetETH, Amount: decimal.NewFromInt(1), Kind: domain.TransferKindBankWithdrawal, Rail: bank},
		},
		{
			name:    "unknown asset",
			req:     InitiateRequest{Asset: "btcx", Amount: decimal.NewFromInt(1), ToAddress: "bc1q", Kind: domain.TransferKindRegular},
			wantErr: domain.ErrInvalidAsset,
		},
		{
			name:    "zero amount",
			req:     InitiateRequest{Asset: domain.AssetBTC, Amount: decimal.Zero, ToAddress: "bc1q", Kind: domain.TransferKindRegular},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "below minimum",
			req:     InitiateRequest{Asset: domain.AssetBTC, Amount: decimal.RequireFromString("0.0000001"), ToAddress: "bc1q", Kind: domain.TransferKindRegular},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "regular without address",
			req:     InitiateRequest{Asset: domain.AssetBTC, Amount: decimal.NewFromInt(1), ToAddress: "  ", Kind: domain.TransferKindRegular},
			wantErr: domain.ErrInvalidRequest,
		},
		{
			name:    "bank without details",
			req:     InitiateRequest{Asset: domain.AssetBTC, Amount: decimal.NewFromInt(1), Kind: domain.TransferKindBankWithdrawal},
			wantErr: domain.ErrInvalidRequest,
		},
		{
			name:    "paypal with bad email",
			req:     InitiateRequest{Asset: domain.AssetBTC, Amount: decimal.NewFromInt(1), Kind: domain.TransferKindPayPalWithdrawal, Rail: domain.PayPalDetails{Email: "nope"}},
			wantErr: domain.ErrInvalidRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := validateInitiate(tc.req)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestInitiate_RejectsBeforeAnyWrite(t *testing.T) {
	sender := activeUser()
	other := &domain.UserRef{ID: uuid.New(), Email: "bo@example.com", Name: "Bo"}
	wallets := map[string]*domain.UserRef{
		"own-address":   {ID: sender.ID, Email: sender.Email, Name: sender.Name},
		"other-address": other,
	}

	tests := []struct {
		name             string
		balance          string
		to               string
		limiter          *fakeLimiter
		wantErr          error
		wantLimiterCalls int
	}{
		{
			name:    "insufficient funds",
			balance: "0.4",
			to:      "other-address",
			limiter: &fakeLimiter{decision: ratelimit.Decision{Allowed: true}},
			wantErr: domain.ErrInsufficientFunds,
		},
		{
			name:    "self transfer",
			balance: "10",
			to:      "own-address",
			limiter: &fakeLimiter{decision: ratelimit.Decision{Allowed: true}},
			wantErr: domain.ErrSelfTransfer,
		},
		{
			name:             "rate limited",
			balance:          "10",
			to:               "other-address",
			limiter:          &fakeLimiter{decision: ratelimit.Decision{Allowed: false, Count: 6}},
			wantErr:          domain.ErrRateLimited,
			wantLimiterCalls: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := newUnitService(sender, tc.balance, wallets, tc.limiter)

			_, err := svc.Initiate(context.Background(), InitiateRequest{
				SenderID:  sender.ID,
				Asset:     domain.AssetBTC,
				Amount:    decimal.RequireFromString("0.5"),
				ToAddress: tc.to,
				Kind:      domain.TransferKindRegular,
			})
			require.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, tc.wantLimiterCalls, tc.limiter.calls)
		})
	}
}

func TestInitiate_RepeatedInsufficientFundsKeepsOTPBudget(t *testing.T) {
	sender := activeUser()
	other := &domain.UserRef{ID: uuid.New(), Email: "bo@example.com", Name: "Bo"}
	limiter := &fakeLimiter{decision: ratelimit.Decision{Allowed: true}}
	svc := newUnitService(sender, "0.1", map[string]*domain.UserRef{"other-address": other}, limiter)

	for range 5 {
		_, err := svc.Initiate(context.Background(), InitiateRequest{
			SenderID:  sender.ID,
			Asset:     domain.AssetBTC,
			Amount:    decimal.NewFromInt(1),
			ToAddress: "other-address",
			Kind:      domain.TransferKindRegular,
		})
		require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	}
	assert.Zero(t, limiter.calls)
}

func TestInitiate_InactiveSender(t *testing.T) {
	sender := activeUser()
	sender.Status = domain.UserStatusSuspended
	svc := newUnitService(sender, "10", nil, nil)

	_, err := svc.Initiate(context.Background(), InitiateRequest{
		SenderID:  sender.ID,
		Asset:     domain.AssetBTC,
		Amount:    decimal.NewFromInt(1),
		ToAddress: "somewhere",
		Kind:      domain.TransferKindRegular,
	})
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestAllowOTP_FailsOpen(t *testing.T) {
	limiter := &fakeLimiter{err: errors.New("redis down"), decision: ratelimit.Decision{Allowed: true}}
	svc := newUnitService(activeUser(), "0", nil, limiter)

	assert.NoError(t, svc.allowOTP(context.Background(), uuid.New()))
	assert.Equal(t, 1, limiter.calls)
}

func TestAllowOTP_NilLimiter(t *testing.T) {
	svc := NewService(Deps{})
	assert.NoError(t, svc.allowOTP(context.Background(), uuid.New()))
}

func TestSenderTier_LookupErrorIsUnusable(t *testing.T) {
	svc := NewService(Deps{Trust: &fakeTrust{tier: domain.TrustTierUsable, err: errors.New("db down")}})
	assert.Equal(t, domain.TrustTierUnusable, svc.senderTier(context.Background(), uuid.New()))
}

func TestValuation(t *testing.T) {
	tests := []struct {
		name      string
		price     string
		amount    string
		wantPrice string
		wantValue string
	}{
		{"rounds to cents", "65000.123", "0.00012345", "65000.123", "8.02"},
		{"zero price", "0", "3", "0", "0"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewService(Deps{Prices: &fakeOracle{price: decimal.RequireFromString(tc.price)}})
			price, value := svc.valuation(context.Background(), domain.AssetBTC, decimal.RequireFromString(tc.amount))
			assert.True(t, decimal.RequireFromString(tc.wantPrice).Equal(price), price.String())
			assert.True(t, decimal.RequireFromString(tc.wantValue).Equal(value), value.String())
		})
	}
}

func TestPageNormalize(t *testing.T) {
	tests := []struct {
		in   Page
		want Page
	}{
		{Page{}, Page{Page: 1, Limit: 20}},
		{Page{Page: 3, Limit: 50}, Page{Page: 3, Limit: 50}},
		{Page{Page: -1, Limit: 500}, Page{Page: 1, Limit: 100}},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, tc.in.normalize())
	}
	assert.Equal(t, 40, Page{Page: 3, Limit: 20}.offset())
}

func TestNewHistoryPage(t *testing.T) {
	p := newHistoryPage(nil, 41, Page{Page: 1, Limit: 20})
	assert.Equal(t, 3, p.TotalPages)
	assert.NotNil(t, p.Items)

	p = newHistoryPage(nil, 0, Page{Page: 1, Limit: 20})
	assert.Equal(t, 0, p.TotalPages)
}

func TestGetTransferHistory_RejectsBadFilters(t *testing.T) {
	svc := NewService(Deps{})
	ctx := context.Background()

	_, err := svc.GetTransferHistory(ctx, uuid.New(), HistoryFilter{Asset: "nope"}, Page{})
	assert.ErrorIs(t, err, domain.ErrInvalidAsset)

	_, err = svc.GetTransferHistory(ctx, uuid.New(), HistoryFilter{Status: "settled"}, Page{})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = svc.GetTransferHistory(ctx, uuid.New(), HistoryFilter{Direction: "sideways"}, Page{})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestBalances_Valued(t *testing.T) {
	svc := newUnitService(activeUser(), "0.5", nil, nil)

	views, err := svc.Balances(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "Bitcoin", views[0].Name)
	assert.True(t, decimal.NewFromInt(50).Equal(views[0].ValueUSD))
	assert.True(t, views[1].ValueUSD.IsZero())
}

func TestAdminInputValidation(t *testing.T) {
	svc := NewService(Deps{})
	ctx := context.Background()

	_, err := svc.UpdateConfirmations(ctx, uuid.New(), uuid.New(), []bool{true, false})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = svc.Finalize(ctx, uuid.New(), uuid.New(), Decision("maybe"), "")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = svc.AdjustBalance(ctx, uuid.New(), uuid.New(), domain.AssetBTC, decimal.NewFromInt(1), " ")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

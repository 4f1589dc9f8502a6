package ledger_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/ledger"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/repository"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/testutil"
)

func newStore(db *sql.DB) *ledger.Store {
	return ledger.NewStore(db, repository.NewBalanceRepository(db), repository.NewLedgerRepository(db))
}

func TestStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db := testutil.SetupTestDB(t)
	store := newStore(db)
	ctx := context.Background()

	t.Run("GetBalance of unheld asset is zero", func(t *testing.T) {
		u := testutil.SeedUser(t, db, "zero@example.com", "Zero")
		got, err := store.GetBalance(ctx, u.ID, domain.AssetSOL)
		require.NoError(t, err)
		assert.True(t, got.IsZero())
	})

	t.Run("Balances zero-fills every asset", func(t *testing.T) {
		u := testutil.SeedUser(t, db, "fill@example.com", "Fill")
		testutil.SeedBalance(t, db, u.ID, domain.AssetETH, "1.5")

		got, err := store.Balances(ctx, u.ID)
		require.NoError(t, err)
		require.Len(t, got, len(domain.Assets))
		for _, b := range got {
			if b.Asset == domain.AssetETH {
				assert.True(t, b.Amount.Equal(decimal.RequireFromString("1.5")))
			} else {
				assert.True(t, b.Amount.IsZero(), "asset %s", b.Asset)
			}
		}
	})

	t.Run("debit and credit inside one tx", func(t *testing.T) {
		alice := testutil.SeedUser(t, db, "alice@example.com", "Alice")
		bob := testutil.SeedUser(t, db, "bob@example.com", "Bob")
		testutil.SeedBalance(t, db, alice.ID, domain.AssetBTC, "0.5")

		tx, err := db.BeginTx(ctx, nil)
		require.NoError(t, err)
		defer tx.Rollback()

		locked, err := store.Lock(ctx, tx, domain.AssetBTC, bob.ID, alice.ID)
		require.NoError(t, err)
		require.Len(t, locked, 2)
		assert.True(t, locked[bob.ID].Amount.IsZero())

		amount := decimal.RequireFromString("0.3")
		_, err = store.Debit(ctx, tx, ledger.Posting{UserID: alice.ID, Asset: domain.AssetBTC, Amount: amount})
		require.NoError(t, err)
		_, err = store.Credit(ctx, tx, ledger.Posting{UserID: bob.ID, Asset: domain.AssetBTC, Amount: amount})
		require.NoError(t, err)
		require.NoError(t, tx.Commit())

		assert.True(t, testutil.GetBalance(t, db, alice.ID, domain.AssetBTC).Equal(decimal.RequireFromString("0.2")))
		assert.True(t, testutil.GetBalance(t, db, bob.ID, domain.AssetBTC).Equal(amount))
	})

	t.Run("debit fails closed on insufficient funds", func(t *testing.T) {
		u := testutil.SeedUser(t, db, "poor@example.com", "Poor")
		testutil.SeedBalance(t, db, u.ID, domain.AssetETH, "1.0")

		tx, err := db.BeginTx(ctx, nil)
		require.NoError(t, err)
		defer tx.Rollback()

		_, err = store.Lock(ctx, tx, domain.AssetETH, u.ID)
		require.NoError(t, err)
		_, err = store.Debit(ctx, tx, ledger.Posting{UserID: u.ID, Asset: domain.AssetETH, Amount: decimal.RequireFromString("2.0")})
		assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	})

	t.Run("rolled back debit leaves balance untouched", func(t *testing.T) {
		u := testutil.SeedUser(t, db, "rollback@example.com", "Rollback")
		testutil.SeedBalance(t, db, u.ID, domain.AssetLTC, "3")

		tx, err := db.BeginTx(ctx, nil)
		require.NoError(t, err)
		_, err = store.Lock(ctx, tx, domain.AssetLTC, u.ID)
		require.NoError(t, err)
		_, err = store.Debit(ctx, tx, ledger.Posting{UserID: u.ID, Asset: domain.AssetLTC, Amount: decimal.NewFromInt(1)})
		require.NoError(t, err)
		require.NoError(t, tx.Rollback())

		assert.True(t, testutil.GetBalance(t, db, u.ID, domain.AssetLTC).Equal(decimal.NewFromInt(3)))
	})

	t.Run("Adjust credits and debits", func(t *testing.T) {
		u := testutil.SeedUser(t, db, "adjust@example.com", "Adjust")

		b, err := store.Adjust(ctx, u.ID, domain.AssetDOGE, decimal.NewFromInt(100), "airdrop")
		require.NoError(t, err)
		assert.True(t, b.Amount.Equal(decimal.NewFromInt(100)))

		b, err = store.Adjust(ctx, u.ID, domain.AssetDOGE, decimal.NewFromInt(-40), "correction")
		require.NoError(t, err)
		assert.True(t, b.Amount.Equal(decimal.NewFromInt(60)))

		_, err = store.Adjust(ctx, u.ID, domain.AssetDOGE, decimal.NewFromInt(-61), "overdraw")
		assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

		_, err = store.Adjust(ctx, u.ID, domain.AssetDOGE, decimal.Zero, "noop")
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)

		_, err = store.Adjust(ctx, u.ID, domain.Asset("ada"), decimal.NewFromInt(1), "bad")
		assert.ErrorIs(t, err, domain.ErrInvalidAsset)
	})

	t.Run("concurrent debits never overdraw", func(t *testing.T) {
		u := testutil.SeedUser(t, db, "race@example.com", "Race")
		testutil.SeedBalance(t, db, u.ID, domain.AssetXRP, "10")

		var wg sync.WaitGroup
		results := make(chan error, 15)
		for range 15 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Adjust(ctx, u.ID, domain.AssetXRP, decimal.NewFromInt(-1), "race")
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		var ok, insufficient int
		for err := range results {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrInsufficientFunds):
				insufficient++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 10, ok)
		assert.Equal(t, 5, insufficient)
		assert.True(t, testutil.GetBalance(t, db, u.ID, domain.AssetXRP).IsZero())
	})
}

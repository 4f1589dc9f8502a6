package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"
)

func SeedUser(t *testing.T, db *sql.DB, email, name string) *domain.User {
	t.Helper()
	return seedUser(t, db, email, name, domain.UserRoleUser)
}

func SeedAdmin(t *testing.T, db *sql.DB, email string) *domain.User {
	t.Helper()
	return seedUser(t, db, email, "Admin", domain.UserRoleAdmin)
}

func seedUser(t *testing.T, db *sql.DB, email, name string, role domain.UserRole) *domain.User {
	t.Helper()

	u := &domain.User{
		ID:        uuid.New(),
		Email:     email,
		Name:      name,
		Role:      role,
		Status:    domain.UserStatusActive,
		CreatedAt: time.Now().UTC(),
	}
	_, err := db.Exec(
		`INSERT INTO users (id, email, name, role, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Email, u.Name, u.Role, u.Status, u.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return u
}

func SeedWallet(t *testing.T, db *sql.DB, userID uuid.UUID, asset domain.Asset, address string) {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO wallet_addresses (id, user_id, asset, address) VALUES ($1, $2, $3, $4)`,
		uuid.New(), userID, asset, address,
	)
	if err != nil {
		t.Fatalf("seed wallet %s/%s: %v", userID, asset, err)
	}
}

func SeedBalance(t *testing.T, db *sql.DB, userID uuid.UUID, asset domain.Asset, amount string) {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO balances (user_id, asset, amount) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, asset) DO UPDATE SET amount = EXCLUDED.amount`,
		userID, asset, decimal.RequireFromString(amount),
	)
	if err != nil {
		t.Fatalf("seed balance %s/%s: %v", userID, asset, err)
	}
}

func SeedCardApplication(t *testing.T, db *sql.DB, email string, status domain.CardApplicationStatus) {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO card_applications (id, email, status) VALUES ($1, $2, $3)`,
		uuid.New(), email, status,
	)
	if err != nil {
		t.Fatalf("seed card application %s: %v", email, err)
	}
}

// GetBalance returns zero when the user holds no row for the asset.
func GetBalance(t *testing.T, db *sql.DB, userID uuid.UUID, asset domain.Asset) decimal.Decimal {
	t.Helper()

	var amount decimal.Decimal
	err := db.QueryRow(
		`SELECT amount FROM balances WHERE user_id = $1 AND asset = $2`, userID, asset,
	).Scan(&amount)
	if err == sql.ErrNoRows {
		return decimal.Zero
	}
	if err != nil {
		t.Fatalf("get balance %s/%s: %v", userID, asset, err)
	}
	return amount
}

func CountLedgerEntries(t *testing.T, db *sql.DB, transferID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM ledger_entries WHERE transfer_id = $1`, transferID).Scan(&count)
	if err != nil {
		t.Fatalf("count ledger entries for transfer %s: %v", transferID, err)
	}
	return count
}

func CountTransfers(t *testing.T, db *sql.DB, userID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM transfers WHERE from_user = $1`, userID).Scan(&count)
	if err != nil {
		t.Fatalf("count transfers for %s: %v", userID, err)
	}
	return count
}

// TotalSupply sums every balance of an asset across all users.
func TotalSupply(t *testing.T, db *sql.DB, asset domain.Asset) decimal.Decimal {
	t.Helper()

	var total decimal.Decimal
	err := db.QueryRow(`SELECT COALESCE(SUM(amount), 0) FROM balances WHERE asset = $1`, asset).Scan(&total)
	if err != nil {
		t.Fatalf("total supply %s: %v", asset, err)
	}
	return total
}

// Package otp issues and checks the six digit codes that gate transfer
// settlement. Only an HMAC of each code is stored; the plaintext leaves the
// process once, in the email sent to the user.
package otp

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"
)

const (
	DefaultTTL         = 10 * time.Minute
	DefaultMaxAttempts = 5

	codeMin   = 100000
	codeRange = 900000
)

type challengeRepo interface {
	Upsert(ctx context.Context, tx *sql.Tx, c *domain.OTPChallenge) error
	GetForUpdate(ctx context.Context, tx *sql.Tx, userID uuid.UUID) (*domain.OTPChallenge, error)
	IncrementAttempts(ctx context.Context, tx *sql.Tx, userID uuid.UUID) (int, error)
	Delete(ctx context.Context, tx *sql.Tx, userID uuid.UUID) error
	DeleteExpiredBefore(ctx context.Context, before time.Time) (int64, error)
}

type Config struct {
	Secret      string
	TTL         time.Duration
	MaxAttempts int
}

type Option func(*Gate)

// WithClock replaces the wall clock used for expiry.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithCodeSource replaces the random code generator.
func WithCodeSource(codes func() (string, error)) Option {
	return func(g *Gate) { g.codes = codes }
}

type Gate struct {
	repo        challengeRepo
	secret      []byte
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time
	codes       func() (string, error)
}

func NewGate(repo challengeRepo, cfg Config, opts ...Option) *Gate {
	g := &Gate{
		repo:        repo,
		secret:      []byte(cfg.Secret),
		ttl:         cfg.TTL,
		maxAttempts: cfg.MaxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
		codes:       GenerateCode,
	}
	if g.ttl <= 0 {
		g.ttl = DefaultTTL
	}
	if g.maxAttempts <= 0 {
		g.maxAttempts = DefaultMaxAttempts
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GenerateCode draws a code uniformly from 100000-999999.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeRange))
	if err != nil {
		return "", fmt.Errorf("GenerateCode: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}

func (g *Gate) hash(code string) string {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}

// Issue stores a fresh challenge for the user, replacing any earlier one, and
// returns the plaintext code.
func (g *Gate) Issue(ctx context.Context, tx *sql.Tx, userID uuid.UUID, intent domain.TransferIntent) (string, error) {
	code, err := g.codes()
	if err != nil {
		return "", fmt.Errorf("Issue: %w", err)
	}

	now := g.now()
	c := &domain.OTPChallenge{
		UserID:     userID,
		TransferID: intent.TransferID,
		CodeHash:   g.hash(code),
		ExpiresAt:  now.Add(g.ttl),
		Attempts:   0,
		Intent:     intent,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := g.repo.Upsert(ctx, tx, c); err != nil {
		return "", fmt.Errorf("Issue: %w", err)
	}
	return code, nil
}

// Check validates code against the user's live challenge for transferID.
//
// An expired challenge is cleared. A wrong code counts as an attempt, and the
// challenge is cleared once the attempt limit is reached. A valid code leaves
// the challenge in place for the caller to Clear once the transfer is settled.
// Callers must commit tx on the expiry and mismatch errors so those writes
// stick.
func (g *Gate) Check(ctx context.Context, tx *sql.Tx, userID, transferID uuid.UUID, code string) error {
	c, err := g.repo.GetForUpdate(ctx, tx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("Check: %w", domain.ErrOTPNotFound)
		}
		return fmt.Errorf("Check: %w", err)
	}
	if c.TransferID != transferID {
		return fmt.Errorf("Check: %w", domain.ErrOTPNotFound)
	}

	if c.IsExpired(g.now()) {
		if err := g.repo.Delete(ctx, tx, userID); err != nil {
			return fmt.Errorf("Check: %w", err)
		}
		return fmt.Errorf("Check: %w", domain.ErrOTPExpired)
	}

	if !hmac.Equal([]byte(g.hash(code)), []byte(c.CodeHash)) {
		attempts, err := g.repo.IncrementAttempts(ctx, tx, userID)
		if err != nil {
			return fmt.Errorf("Check: %w", err)
		}
		if attempts >= g.maxAttempts {
			if err := g.repo.Delete(ctx, tx, userID); err != nil {
				return fmt.Errorf("Check: %w", err)
			}
			return fmt.Errorf("Check: %w", domain.ErrOTPAttemptsExceeded)
		}
		return fmt.Errorf("Check: %w", domain.ErrOTPMismatch)
	}
	return nil
}

// Resend replaces the code and expiry of the user's challenge for transferID
// and resets its attempt count. The stored intent is kept.
func (g *Gate) Resend(ctx context.Context, tx *sql.Tx, userID, transferID uuid.UUID) (string, error) {
	c, err := g.repo.GetForUpdate(ctx, tx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("Resend: %w", domain.ErrNoPendingIntent)
		}
		return "", fmt.Errorf("Resend: %w", err)
	}
	if c.TransferID != transferID {
		return "", fmt.Errorf("Resend: %w", domain.ErrNoPendingIntent)
	}

	code, err := g.codes()
	if err != nil {
		return "", fmt.Errorf("Resend: %w", err)
	}

	now := g.now()
	c.CodeHash = g.hash(code)
	c.ExpiresAt = now.Add(g.ttl)
	c.Attempts = 0
	c.UpdatedAt = now
	if err := g.repo.Upsert(ctx, tx, c); err != nil {
		return "", fmt.Errorf("Resend: %w", err)
	}
	return code, nil
}

func (g *Gate) Clear(ctx context.Context, tx *sql.Tx, userID uuid.UUID) error {
	if err := g.repo.Delete(ctx, tx, userID); err != nil {
		return fmt.Errorf("Clear: %w", err)
	}
	return nil
}

// PurgeExpired removes challenges that expired more than retention ago.
func (g *Gate) PurgeExpired(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := g.repo.DeleteExpiredBefore(ctx, g.now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("PurgeExpired: %w", err)
	}
	return n, nil
}

// Package transfer is the settlement engine. It drives a transfer from
// initiation through OTP verification to its settled status, moving balances
// through the ledger inside the same transaction as the status change.
package transfer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/ledger"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/logging"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/pricing"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/ratelimit"
)

// FailureReasonTrustTier is recorded when the recipient is unknown and the
// sender may not pay out externally.
const FailureReasonTrustTier = "recipient_unknown_trust_tier_unusable"

const otpRateScope = "otp"

type transferRepo interface {
	Create(ctx context.Context, tx *sql.Tx, t *domain.Transfer) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Transfer, error)
	UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, change domain.TransferUpdate) error
	UpdateConfirmations(ctx context.Context, tx *sql.Tx, id uuid.UUID, confirmations []bool) error
	List(ctx context.Context, f domain.TransferFilter) ([]domain.Transfer, int, error)
	ListByStatus(ctx context.Context, status domain.TransferStatus, limit, offset int) ([]domain.Transfer, int, error)
	Summary(ctx context.Context, userID uuid.UUID) ([]domain.AssetSummary, error)
}

type eventRepo interface {
	Create(ctx context.Context, tx *sql.Tx, event *domain.TransferEvent) error
}

type userRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type directory interface {
	FindByAddress(ctx context.Context, asset domain.Asset, address string) (*domain.UserRef, error)
	GetByUserAndAsset(ctx context.Context, userID uuid.UUID, asset domain.Asset) (*domain.WalletAddress, error)
}

type ledgerStore interface {
	GetBalance(ctx context.Context, userID uuid.UUID, asset domain.Asset) (decimal.Decimal, error)
	Balances(ctx context.Context, userID uuid.UUID) ([]domain.Balance, error)
	Lock(ctx context.Context, tx *sql.Tx, asset domain.Asset, userIDs ...uuid.UUID) (map[uuid.UUID]*domain.Balance, error)
	Debit(ctx context.Context, tx *sql.Tx, p ledger.Posting) (*domain.Balance, error)
	Credit(ctx context.Context, tx *sql.Tx, p ledger.Posting) (*domain.Balance, error)
	Adjust(ctx context.Context, userID uuid.UUID, asset domain.Asset, delta decimal.Decimal, reason string) (*domain.Balance, error)
}

type otpGate interface {
	Issue(ctx context.Context, tx *sql.Tx, userID uuid.UUID, intent domain.TransferIntent) (string, error)
	Check(ctx context.Context, tx *sql.Tx, userID, transferID uuid.UUID, code string) error
	Resend(ctx context.Context, tx *sql.Tx, userID, transferID uuid.UUID) (string, error)
	Clear(ctx context.Context, tx *sql.Tx, userID uuid.UUID) error
}

type tierLookup interface {
	GetTier(ctx context.Context, userID uuid.UUID) (domain.TrustTier, error)
}

type priceOracle interface {
	GetPrice(ctx context.Context, asset domain.Asset) pricing.Quote
}

type notifier interface {
	Send(ctx context.Context, to string, tmpl domain.Template, vars map[string]string) error
}

type publisher interface {
	PublishTransfer(ctx context.Context, t *domain.Transfer) error
}

type rateLimiter interface {
	Allow(ctx context.Context, scope, subject string) (ratelimit.Decision, error)
}

// Deps groups the collaborators of the engine. Limiter and Events may be nil.
type Deps struct {
	DB        *sql.DB
	Transfers transferRepo
	Events    eventRepo
	Users     userRepo
	Wallets   directory
	Ledger    ledgerStore
	OTP       otpGate
	Trust     tierLookup
	Prices    priceOracle
	Notifier  notifier
	Publisher publisher
	Limiter   rateLimiter
}

type Service struct {
	db        *sql.DB
	transfers transferRepo
	events    eventRepo
	users     userRepo
	wallets   directory
	ledger    ledgerStore
	otp       otpGate
	trust     tierLookup
	prices    priceOracle
	notifier  notifier
	publisher publisher
	limiter   rateLimiter
	now       func() time.Time
}

func NewService(d Deps) *Service {
	return &Service{
		db:        d.DB,
		transfers: d.Transfers,
		events:    d.Events,
		users:     d.Users,
		wallets:   d.Wallets,
		ledger:    d.Ledger,
		otp:       d.OTP,
		trust:     d.Trust,
		prices:    d.Prices,
		notifier:  d.Notifier,
		publisher: d.Publisher,
		limiter:   d.Limiter,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// allowOTP applies the per-sender issuance limit. Limiter errors are logged
// and the request goes through.
func (s *Service) allowOTP(ctx context.Context, userID uuid.UUID) error {
	if s.limiter == nil {
		return nil
	}
	d, err := s.limiter.Allow(ctx, otpRateScope, userID.String())
	if err != nil {
		logging.FromContext(ctx).Warn("otp rate limiter unavailable", "user_id", userID, "error", err)
		return nil
	}
	if !d.Allowed {
		return fmt.Errorf("allowOTP: retry in %s: %w", d.RetryAfter, domain.ErrRateLimited)
	}
	return nil
}

// senderTier treats a failed lookup as unusable.
func (s *Service) senderTier(ctx context.Context, userID uuid.UUID) domain.TrustTier {
	tier, err := s.trust.GetTier(ctx, userID)
	if err != nil {
		logging.FromContext(ctx).Warn("trust tier lookup failed", "user_id", userID, "error", err)
		return domain.TrustTierUnusable
	}
	return tier
}

// valuation snapshots the USD price. A zero price yields a zero value.
func (s *Service) valuation(ctx context.Context, asset domain.Asset, amount decimal.Decimal) (price, value decimal.Decimal) {
	q := s.prices.GetPrice(ctx, asset)
	if !q.Price.IsPositive() {
		return decimal.Zero, decimal.Zero
	}
	return q.Price, amount.Mul(q.Price).Round(2)
}

func (s *Service) writeEvent(ctx context.Context, tx *sql.Tx, transferID uuid.UUID, eventType domain.TransferEventType, actor string, payload any) error {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("writeEvent: marshal: %w", err)
		}
		raw = b
	}

	event := &domain.TransferEvent{
		ID:         uuid.New(),
		TransferID: transferID,
		EventType:  eventType,
		Actor:      actor,
		Payload:    raw,
		CreatedAt:  s.now(),
	}
	if err := s.events.Create(ctx, tx, event); err != nil {
		return fmt.Errorf("writeEvent: %w", err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, t *domain.Transfer) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransfer(ctx, t); err != nil {
		logging.FromContext(ctx).Warn("failed to publish transfer event",
			"transfer_id", t.ID,
			"status", t.Status,
			"error", err,
		)
	}
}

func userActor(id uuid.UUID) string  { return "user:" + id.String() }
func adminActor(id uuid.UUID) string { return "admin:" + id.String() }

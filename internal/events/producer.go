// Package events publishes settled transfer outcomes to RabbitMQ for
// downstream consumers. Publishing is best effort and never affects the
// ledger.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"
)

const DefaultExchange = "transfer_events"

// TransferMessage is the body published for every settled transfer.
type TransferMessage struct {
	TransferID    uuid.UUID             `json:"transfer_id"`
	TransactionID string                `json:"transaction_id"`
	FromUserID    uuid.UUID             `json:"from_user_id"`
	ToUserID      *uuid.UUID            `json:"to_user_id,omitempty"`
	Asset         domain.Asset          `json:"asset"`
	Amount        decimal.Decimal       `json:"amount"`
	ValueUSD      decimal.Decimal       `json:"value_usd"`
	Kind          domain.TransferKind   `json:"kind"`
	Status        domain.TransferStatus `json:"status"`
	OccurredAt    time.Time             `json:"occurred_at"`
}

func NewTransferMessage(t *domain.Transfer, at time.Time) TransferMessage {
	return TransferMessage{
		TransferID:    t.ID,
		TransactionID: t.TransactionID,
		FromUserID:    t.FromUserID,
		ToUserID:      t.ToUserID,
		Asset:         t.Asset,
		Amount:        t.Amount,
		ValueUSD:      t.ValueUSD,
		Kind:          t.Kind,
		Status:        t.Status,
		OccurredAt:    at,
	}
}

// RoutingKey is transfer.<status>, e.g. transfer.completed.
func RoutingKey(status domain.TransferStatus) string {
	return "transfer." + string(status)
}

type Publisher interface {
	PublishTransfer(ctx context.Context, t *domain.Transfer) error
	Close()
}

type Producer struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *slog.Logger
}

func sanitizeURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be amqp:// or amqps://")
	}
	return clean, nil
}

func NewProducer(amqpURL, exchange string, logger *slog.Logger) (*Producer, error) {
	clean, err := sanitizeURL(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("NewProducer: %w", err)
	}
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.DialConfig(clean, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("NewProducer: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("NewProducer: channel: %w", err)
	}

	p := &Producer{conn: conn, channel: ch, exchange: exchange, logger: logger}
	if err := p.declare(); err != nil {
		p.Close()
		return nil, fmt.Errorf("NewProducer: %w", err)
	}
	return p, nil
}

func (p *Producer) declare() error {
	if err := p.channel.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", p.exchange, err)
	}
	return nil
}

func (p *Producer) PublishTransfer(ctx context.Context, t *domain.Transfer) error {
	body, err := json.Marshal(NewTransferMessage(t, time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("PublishTransfer: marshal: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    t.ID.String(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	key := RoutingKey(t.Status)

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx, p.exchange, key, false, false, msg)
	if err == nil {
		return nil
	}

	// Channels close on any channel-level error; reopen once and retry.
	p.logger.Warn("publish failed, reopening channel", "routing_key", key, "error", err)
	ch, chErr := p.conn.Channel()
	if chErr != nil {
		return fmt.Errorf("PublishTransfer: reopen channel: %w", chErr)
	}
	p.channel = ch
	if err := p.declare(); err != nil {
		return fmt.Errorf("PublishTransfer: %w", err)
	}
	if err := p.channel.PublishWithContext(ctx, p.exchange, key, false, false, msg); err != nil {
		return fmt.Errorf("PublishTransfer: %w", err)
	}
	return nil
}

func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// Fallback is the publisher used when RabbitMQ is not configured or was
// unreachable at startup. It drops every message.
type Fallback struct {
	Logger *slog.Logger
}

func (f *Fallback) PublishTransfer(_ context.Context, t *domain.Transfer) error {
	if f.Logger != nil {
		f.Logger.Debug("event publish skipped", "routing_key", RoutingKey(t.Status), "transfer_id", t.ID)
	}
	return nil
}

func (f *Fallback) Close() {}

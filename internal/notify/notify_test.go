package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"
)

type sentMail struct {
	to   string
	tmpl domain.Template
	vars map[string]string
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (f *fakeMailer) Send(_ context.Context, to string, tmpl domain.Template, vars map[string]string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to: to, tmpl: tmpl, vars: vars})
	return nil
}

type fakeOutbox struct {
	created []domain.Notification
	due     []domain.Notification
	sent    []uuid.UUID
	retried map[uuid.UUID]time.Time
	failed  []uuid.UUID
}

func newFakeOutbox() *fakeOutbox {
	return &fakeOutbox{retried: make(map[uuid.UUID]time.Time)}
}

func (f *fakeOutbox) Create(_ context.Context, n *domain.Notification) error {
	f.created = append(f.created, *n)
	return nil
}

func (f *fakeOutbox) ClaimDue(_ context.Context, _ time.Time, limit int, _ time.Duration) ([]domain.Notification, error) {
	if len(f.due) > limit {
		return f.due[:limit], nil
	}
	return f.due, nil
}

func (f *fakeOutbox) MarkSent(_ context.Context, id uuid.UUID, _ time.Time) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeOutbox) MarkRetry(_ context.Context, id uuid.UUID, next time.Time, _ string) error {
	f.retried[id] = next
	return nil
}

func (f *fakeOutbox) MarkFailed(_ context.Context, id uuid.UUID, _ string) error {
	f.failed = append(f.failed, id)
	return nil
}

func TestService_OTPBypassesOutbox(t *testing.T) {
	mailer := &fakeMailer{}
	outbox := newFakeOutbox()
	svc := NewService(mailer, outbox)

	err := svc.Send(context.Background(), "alice@example.com", domain.TemplateTransferOTP, map[string]string{"otp": "123456"})
	require.NoError(t, err)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "123456", mailer.sent[0].vars["otp"])
	assert.Empty(t, outbox.created)
}

func TestService_OTPMailFailureIsReturned(t *testing.T) {
	svc := NewService(&fakeMailer{err: errors.New("smtp down")}, newFakeOutbox())
	err := svc.Send(context.Background(), "alice@example.com", domain.TemplateBankWithdrawalOTP, nil)
	require.Error(t, err)
}

func TestService_OtherTemplatesAreQueued(t *testing.T) {
	mailer := &fakeMailer{}
	outbox := newFakeOutbox()
	svc := NewService(mailer, outbox)

	err := svc.Send(context.Background(), "bob@example.com", domain.TemplateTransferReceived, nil)
	require.NoError(t, err)

	assert.Empty(t, mailer.sent)
	require.Len(t, outbox.created, 1)
	n := outbox.created[0]
	assert.Equal(t, "bob@example.com", n.Recipient)
	assert.Equal(t, domain.NotificationStatusPending, n.Status)
	assert.NotNil(t, n.Vars)
}

func TestService_RejectsEmptyRecipient(t *testing.T) {
	svc := NewService(&fakeMailer{}, newFakeOutbox())
	err := svc.Send(context.Background(), " ", domain.TemplateTransferSent, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestDispatcher_Deliver(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	fresh := domain.Notification{ID: uuid.New(), Recipient: "a@example.com", Template: domain.TemplateTransferSent, Attempts: 1}
	lastTry := domain.Notification{ID: uuid.New(), Recipient: "b@example.com", Template: domain.TemplateTransferFailed, Attempts: 3}
	leaseExhausted := domain.Notification{ID: uuid.New(), Recipient: "c@example.com", Template: domain.TemplateTransferSent, Attempts: 4}

	tests := []struct {
		name       string
		mailErr    error
		n          domain.Notification
		wantSent   bool
		wantRetry  time.Time
		wantFailed bool
	}{
		{name: "success marks sent", n: fresh, wantSent: true},
		{name: "failure schedules retry with backoff", mailErr: errors.New("503"), n: fresh, wantRetry: now.Add(20 * time.Second)},
		{name: "failure at max attempts marks failed", mailErr: errors.New("503"), n: lastTry, wantFailed: true},
		{name: "reclaimed past max attempts fails without sending", n: leaseExhausted, wantFailed: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			outbox := newFakeOutbox()
			outbox.due = []domain.Notification{tc.n}
			mailer := &fakeMailer{err: tc.mailErr}
			d := NewDispatcher(outbox, mailer, slog.Default(), DispatcherConfig{MaxAttempts: 3})
			d.now = func() time.Time { return now }

			d.poll(context.Background())

			if tc.wantSent {
				assert.Equal(t, []uuid.UUID{tc.n.ID}, outbox.sent)
			} else {
				assert.Empty(t, outbox.sent)
			}
			if !tc.wantRetry.IsZero() {
				assert.Equal(t, tc.wantRetry, outbox.retried[tc.n.ID])
			} else {
				assert.Empty(t, outbox.retried)
			}
			if tc.wantFailed {
				assert.Equal(t, []uuid.UUID{tc.n.ID}, outbox.failed)
			} else {
				assert.Empty(t, outbox.failed)
			}
			if tc.wantSent {
				assert.Len(t, mailer.sent, 1)
			} else {
				assert.Empty(t, mailer.sent)
			}
		})
	}
}

func TestDispatcher_StartStopsOnCancel(t *testing.T) {
	d := NewDispatcher(newFakeOutbox(), &fakeMailer{}, slog.Default(), DispatcherConfig{Interval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		d.Start(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestMailClient_Send(t *testing.T) {
	var got mailPayload
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewMailClient(MailConfig{
		APIURL:       srv.URL,
		APIToken:     "tok",
		FromAddress:  "noreply@example.com",
		FromName:     "Transfers",
		TemplateKeys: map[domain.Template]string{domain.TemplateTransferOTP: "2d6f.otp-key"},
	})

	err := c.Send(context.Background(), "alice@example.com", domain.TemplateTransferOTP, map[string]string{
		"userName": "Alice",
		"otp":      "654321",
	})
	require.NoError(t, err)

	assert.Equal(t, "Zoho-enczapikey tok", auth)
	assert.Equal(t, "2d6f.otp-key", got.TemplateKey)
	assert.Equal(t, "noreply@example.com", got.From.Address)
	require.Len(t, got.To, 1)
	assert.Equal(t, "alice@example.com", got.To[0].EmailAddress.Address)
	assert.Equal(t, "Alice", got.To[0].EmailAddress.Name)
	assert.Equal(t, "654321", got.MergeInfo["otp"])
}

func TestMailClient_SendErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid template"}`))
	}))
	defer srv.Close()

	c := NewMailClient(MailConfig{APIURL: srv.URL})
	err := c.Send(context.Background(), "alice@example.com", domain.TemplateTransferSent, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid template")
}

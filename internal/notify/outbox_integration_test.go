package notify_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/notify"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/repository"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/testutil"
)

func TestOutbox_QueueAndDispatch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	repo := repository.NewNotificationRepository(db)

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	mailer := notify.NewMailClient(notify.MailConfig{APIURL: srv.URL})
	svc := notify.NewService(mailer, repo)

	require.NoError(t, svc.Send(ctx, "bob@example.com", domain.TemplateTransferReceived, map[string]string{"asset": "BTC"}))

	claimed, err := repo.ClaimDue(ctx, time.Now().UTC(), 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	n := claimed[0]
	assert.Equal(t, domain.NotificationStatusSending, n.Status)
	assert.Equal(t, 1, n.Attempts)
	assert.Equal(t, "BTC", n.Vars["asset"])

	again, err := repo.ClaimDue(ctx, time.Now().UTC(), 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, again, "leased rows are not claimable")

	// An expired lease makes the row claimable again.
	later := time.Now().UTC().Add(2 * time.Minute)
	reclaimed, err := repo.ClaimDue(ctx, later, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, reclaimed, 1)
	assert.Equal(t, 2, reclaimed[0].Attempts, "a reclaimed lease counts as an attempt")

	require.Error(t, mailer.Send(ctx, n.Recipient, n.Template, n.Vars))
	require.NoError(t, repo.MarkRetry(ctx, n.ID, time.Now().UTC().Add(-time.Second), "503"))

	d := notify.NewDispatcher(repo, mailer, slog.Default(), notify.DispatcherConfig{Interval: 20 * time.Millisecond})
	runCtx, cancel := context.WithCancel(ctx)
	go d.Start(runCtx)
	defer cancel()

	require.Eventually(t, func() bool {
		got, err := repo.GetByID(ctx, n.ID)
		return err == nil && got.Status == domain.NotificationStatusSent
	}, 5*time.Second, 50*time.Millisecond)

	got, err := repo.GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Attempts)
	assert.NotNil(t, got.SentAt)
	assert.Nil(t, got.LastError)

	cancel()
	purged, err := repo.DeleteSentBefore(ctx, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

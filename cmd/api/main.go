package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/config"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/events"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/handler"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/jobs"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/ledger"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/logging"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/notify"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/otp"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/pricing"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/ratelimit"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/repository"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/service/account"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/service/transfer"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/trust"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init("transfer-api", cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
		ConnectAttempts:  cfg.DBConnectAttempts,
	})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var rdb redis.UniversalClient
	if cfg.RedisURL != "" {
		client, err := connectRedis(ctx, cfg.RedisURL)
		if err != nil {
			slog.Warn("redis unavailable, rate limiting and shared price cache disabled", "error", err)
		} else {
			rdb = client
			defer client.Close()
		}
	}

	users := repository.NewUserRepository(db)
	wallets := repository.NewWalletRepository(db)
	cards := repository.NewCardApplicationRepository(db)
	transfers := repository.NewTransferRepository(db)
	transferEvents := repository.NewTransferEventRepository(db)
	challenges := repository.NewOTPChallengeRepository(db)
	notifications := repository.NewNotificationRepository(db)
	idempotency := repository.NewIdempotencyRepository(db)

	store := ledger.NewStore(db, repository.NewBalanceRepository(db), repository.NewLedgerRepository(db))
	gate := otp.NewGate(challenges, otp.Config{
		Secret:      cfg.OTPSecret,
		TTL:         cfg.OTPTTL,
		MaxAttempts: cfg.OTPMaxAttempts,
	})
	tiers := trust.NewLookup(users, cards)
	limiter := ratelimit.New(rdb, "ledger:rate_limit", cfg.OTPRateLimit, cfg.OTPRateWindow)

	priceClient := pricing.NewClient(cfg.PriceAPIURL, cfg.PriceAPIKey, cfg.PriceTimeout)
	priceCfg := pricing.Config{
		MemoryTTL:   cfg.PriceMemoryTTL,
		CacheTTL:    cfg.PriceCacheTTL,
		MinInterval: cfg.PriceMinInterval,
	}
	var oracle *pricing.Oracle
	if rdb != nil {
		oracle = pricing.NewOracle(priceClient, pricing.NewRedisCache(rdb, "ledger:price"), priceCfg)
	} else {
		oracle = pricing.NewOracle(priceClient, nil, priceCfg)
	}

	mailer := notify.NewMailClient(notify.MailConfig{
		APIURL:       cfg.Mail.APIURL,
		APIToken:     cfg.Mail.APIToken,
		FromAddress:  cfg.Mail.FromAddress,
		FromName:     cfg.Mail.FromName,
		Timeout:      cfg.Mail.Timeout,
		TemplateKeys: templateKeys(cfg.Mail),
	})
	notifier := notify.NewService(mailer, notifications)
	dispatcher := notify.NewDispatcher(notifications, mailer, logger, notify.DispatcherConfig{
		Interval:    cfg.NotifyPollInterval,
		MaxAttempts: cfg.NotifyMaxAttempts,
	})

	publisher := newPublisher(cfg, logger)
	defer publisher.Close()

	transferSvc := transfer.NewService(transfer.Deps{
		DB:        db,
		Transfers: transfers,
		Events:    transferEvents,
		Users:     users,
		Wallets:   wallets,
		Ledger:    store,
		OTP:       gate,
		Trust:     tiers,
		Prices:    oracle,
		Notifier:  notifier,
		Publisher: publisher,
		Limiter:   limiter,
	})
	accountSvc := account.NewAccountService(users, wallets, tiers)

	scheduler := jobs.NewScheduler(
		jobs.NewJobs(gate, idempotency, notifications, logger, jobs.Config{
			OTPRetention:          cfg.OTPRetention,
			NotificationRetention: cfg.NotificationTTL,
		}),
		logger,
		jobs.Schedules{
			OTPPurge:          cfg.JobsOTPPurgeSchedule,
			Idempotency:       cfg.JobsIdempotencySchedule,
			NotificationPurge: cfg.JobsNotificationPurgeSchedule,
		},
	)
	scheduler.Start()

	dispatchCtx, cancelDispatch := context.WithCancel(context.Background())
	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		dispatcher.Start(dispatchCtx)
	}()

	mux := newRouter(routes{
		jwtSecret:   cfg.JWTSecret,
		idempotency: idempotency,
		health:      handler.NewHealthHandler(db, rdb),
		transfers:   handler.NewTransferHandler(transferSvc),
		balances:    handler.NewBalanceHandler(transferSvc),
		prices:      handler.NewPriceHandler(oracle),
		users:       handler.NewUserHandler(accountSvc),
		admin:       handler.NewAdminHandler(transferSvc),
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	cancelDispatch()
	<-dispatchDone
	<-scheduler.Stop().Done()

	slog.Info("server stopped")
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("connectRedis: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connectRedis: ping: %w", err)
	}
	return client, nil
}

// newPublisher falls back to a logging no-op when the broker is not
// configured or unreachable. Settlement never waits on the broker.
func newPublisher(cfg *config.Config, logger *slog.Logger) events.Publisher {
	if cfg.AMQPURL == "" {
		return &events.Fallback{Logger: logger}
	}
	p, err := events.NewProducer(cfg.AMQPURL, cfg.EventsExchange, logger)
	if err != nil {
		slog.Warn("event broker unavailable, transfer events will not be published", "error", err)
		return &events.Fallback{Logger: logger}
	}
	return p
}

func templateKeys(m config.MailConfig) map[domain.Template]string {
	return map[domain.Template]string{
		domain.TemplateTransferOTP:             m.TplTransferOTP,
		domain.TemplateBankWithdrawalOTP:       m.TplBankWithdrawalOTP,
		domain.TemplatePayPalWithdrawalOTP:     m.TplPayPalWithdrawalOTP,
		domain.TemplateTransferSent:            m.TplTransferSent,
		domain.TemplateTransferReceived:        m.TplTransferReceived,
		domain.TemplateTransferPending:         m.TplTransferPending,
		domain.TemplateBankWithdrawalPending:   m.TplBankWithdrawalPending,
		domain.TemplatePayPalWithdrawalPending: m.TplPayPalWithdrawalPending,
		domain.TemplateTransferFailed:          m.TplTransferFailed,
		domain.TemplateBankWithdrawalFailed:    m.TplBankWithdrawalFailed,
		domain.TemplatePayPalWithdrawalFailed:  m.TplPayPalWithdrawalFailed,
		domain.TemplateTrustTierUpgrade:        m.TplTrustTierUpgrade,
	}
}

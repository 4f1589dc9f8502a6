package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	JWTSecret   string `env:"JWT_SECRET,required"`
	OTPSecret   string `env:"OTP_SECRET,required"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
	DBConnectAttempts  int `env:"DB_CONNECT_ATTEMPTS" envDefault:"10"`

	OTPTTL         time.Duration `env:"OTP_TTL" envDefault:"10m"`
	OTPMaxAttempts int           `env:"OTP_MAX_ATTEMPTS" envDefault:"5"`
	OTPRetention   time.Duration `env:"OTP_RETENTION" envDefault:"24h"`

	RedisURL      string        `env:"REDIS_URL"`
	OTPRateLimit  int           `env:"OTP_RATE_LIMIT" envDefault:"5"`
	OTPRateWindow time.Duration `env:"OTP_RATE_WINDOW" envDefault:"10m"`

	PriceAPIURL      string        `env:"PRICE_API_URL" envDefault:"https://api.coingecko.com/api/v3"`
	PriceAPIKey      string        `env:"PRICE_API_KEY"`
	PriceTimeout     time.Duration `env:"PRICE_TIMEOUT" envDefault:"8s"`
	PriceMinInterval time.Duration `env:"PRICE_MIN_INTERVAL" envDefault:"5s"`
	PriceMemoryTTL   time.Duration `env:"PRICE_MEMORY_TTL" envDefault:"2m"`
	PriceCacheTTL    time.Duration `env:"PRICE_CACHE_TTL" envDefault:"5m"`

	Mail MailConfig

	NotifyPollInterval time.Duration `env:"NOTIFY_POLL_INTERVAL" envDefault:"5s"`
	NotifyMaxAttempts  int           `env:"NOTIFY_MAX_ATTEMPTS" envDefault:"5"`
	NotificationTTL    time.Duration `env:"NOTIFICATION_RETENTION" envDefault:"720h"`

	AMQPURL        string `env:"AMQP_URL"`
	EventsExchange string `env:"EVENTS_EXCHANGE" envDefault:"transfer_events"`

	JobsOTPPurgeSchedule          string `env:"JOBS_OTP_PURGE_SCHEDULE" envDefault:"@every 15m"`
	JobsIdempotencySchedule       string `env:"JOBS_IDEMPOTENCY_SCHEDULE" envDefault:"@hourly"`
	JobsNotificationPurgeSchedule string `env:"JOBS_NOTIFICATION_PURGE_SCHEDULE" envDefault:"0 3 * * *"`
}

type MailConfig struct {
	APIURL      string        `env:"MAIL_API_URL" envDefault:"http://mock-mailer:8081/v1.1/email/template"`
	APIToken    string        `env:"MAIL_API_TOKEN"`
	FromAddress string        `env:"MAIL_FROM_ADDRESS" envDefault:"noreply@example.com"`
	FromName    string        `env:"MAIL_FROM_NAME" envDefault:"Transfers"`
	Timeout     time.Duration `env:"MAIL_TIMEOUT" envDefault:"5s"`

	TplTransferOTP             string `env:"TPL_TRANSFER_OTP" envDefault:"transfer_otp"`
	TplBankWithdrawalOTP       string `env:"TPL_BANK_WITHDRAWAL_OTP" envDefault:"bank_withdrawal_otp"`
	TplPayPalWithdrawalOTP     string `env:"TPL_PAYPAL_WITHDRAWAL_OTP" envDefault:"paypal_withdrawal_otp"`
	TplTransferSent            string `env:"TPL_TRANSFER_SENT" envDefault:"transfer_sent"`
	TplTransferReceived        string `env:"TPL_TRANSFER_RECEIVED" envDefault:"transfer_received"`
	TplTransferPending         string `env:"TPL_TRANSFER_PENDING" envDefault:"transfer_pending"`
	TplBankWithdrawalPending   string `env:"TPL_BANK_WITHDRAWAL_PENDING" envDefault:"bank_withdrawal_pending"`
	TplPayPalWithdrawalPending string `env:"TPL_PAYPAL_WITHDRAWAL_PENDING" envDefault:"paypal_withdrawal_pending"`
	TplTransferFailed          string `env:"TPL_TRANSFER_FAILED" envDefault:"transfer_failed"`
	TplBankWithdrawalFailed    string `env:"TPL_BANK_WITHDRAWAL_FAILED" envDefault:"bank_withdrawal_failed"`
	TplPayPalWithdrawalFailed  string `env:"TPL_PAYPAL_WITHDRAWAL_FAILED" envDefault:"paypal_withdrawal_failed"`
	TplTrustTierUpgrade        string `env:"TPL_TRUST_TIER_UPGRADE" envDefault:"trust_tier_upgrade"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if cfg.OTPMaxAttempts < 1 {
		return nil, fmt.Errorf("config.Load: OTP_MAX_ATTEMPTS must be at least 1")
	}
	return &cfg, nil
}

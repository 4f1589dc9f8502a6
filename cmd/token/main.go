// Command token prints a bearer token for an existing user. The API has no
// login endpoint; tokens for local runs and smoke tests come from here.
//
//	go run ./cmd/token -email ada@example.com -ttl 1h
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/auth"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/config"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/logging"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/repository"
)

func main() {
	email := flag.String("email", "", "email of the user to issue a token for")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	if *email == "" {
		fmt.Fprintln(os.Stderr, "usage: token -email <address> [-ttl 1h]")
		os.Exit(2)
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logging.Init("token", cfg.LogLevel, cfg.AppEnv)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnectAttempts: 3,
	})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	user, err := repository.NewUserRepository(db).GetByEmail(ctx, *email)
	if err != nil {
		slog.Error("user lookup failed", "email", *email, "error", err)
		os.Exit(1)
	}

	token, err := auth.GenerateToken(user.ID, user.Email, user.Role, cfg.JWTSecret, *ttl)
	if err != nil {
		slog.Error("failed to sign token", "error", err)
		os.Exit(1)
	}

	fmt.Println(token)
}

package main

import (
	"net/http"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/handler"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/middleware"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/repository"
)

type routes struct {
	jwtSecret   string
	idempotency *repository.IdempotencyRepository
	health      *handler.HealthHandler
	transfers   *handler.TransferHandler
	balances    *handler.BalanceHandler
	prices      *handler.PriceHandler
	users       *handler.UserHandler
	admin       *handler.AdminHandler
}

func newRouter(rt routes) http.Handler {
	authed := middleware.Auth(rt.jwtSecret)
	idem := middleware.Idempotency(rt.idempotency)

	user := func(h http.HandlerFunc) http.Handler {
		return authed(h)
	}
	create := func(h http.HandlerFunc) http.Handler {
		return authed(idem(h))
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return authed(middleware.RequireAdmin(h))
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", rt.health.Liveness)
	mux.HandleFunc("GET /health/ready", rt.health.Readiness)

	mux.Handle("GET /api/v1/me", user(rt.users.Me))
	mux.Handle("GET /api/v1/balances", user(rt.balances.List))
	mux.Handle("GET /api/v1/prices/{asset}", user(rt.prices.Get))

	mux.Handle("POST /api/v1/transfers", create(rt.transfers.Create))
	mux.Handle("POST /api/v1/withdrawals/bank", create(rt.transfers.CreateBankWithdrawal))
	mux.Handle("POST /api/v1/withdrawals/paypal", create(rt.transfers.CreatePayPalWithdrawal))
	mux.Handle("POST /api/v1/transfers/{id}/verify", user(rt.transfers.Verify))
	mux.Handle("POST /api/v1/transfers/{id}/resend", user(rt.transfers.Resend))
	mux.Handle("GET /api/v1/transfers", user(rt.transfers.List))
	mux.Handle("GET /api/v1/transfers/summary", user(rt.transfers.Summary))
	mux.Handle("GET /api/v1/transfers/{id}", user(rt.transfers.Get))

	mux.Handle("GET /api/v1/admin/transfers/pending", admin(rt.admin.ListPending))
	mux.Handle("POST /api/v1/admin/transfers/{id}/finalize", admin(rt.admin.Finalize))
	mux.Handle("PUT /api/v1/admin/transfers/{id}/confirmations", admin(rt.admin.UpdateConfirmations))
	mux.Handle("POST /api/v1/admin/balances/adjust", admin(rt.admin.AdjustBalance))

	return middleware.Tracing(middleware.Logging(middleware.Recovery(mux)))
}

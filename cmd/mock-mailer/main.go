package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/logging"
)

// mock-mailer accepts template mail requests in the shape the API sends and
// logs them, so OTP codes can be read from its output in local runs.

type templateMail struct {
	TemplateKey string `json:"mail_template_key"`
	From        struct {
		Address string `json:"address"`
	} `json:"from"`
	To []struct {
		EmailAddress struct {
			Address string `json:"address"`
			Name    string `json:"name"`
		} `json:"email_address"`
	} `json:"to"`
	MergeInfo map[string]string `json:"merge_info"`
}

func main() {
	_ = godotenv.Load()

	logging.Init("mock-mailer", "info", os.Getenv("APP_ENV"))

	port := os.Getenv("MOCK_MAILER_PORT")
	if port == "" {
		port = "8081"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	mux.HandleFunc("POST /v1.1/email/template", handleTemplateMail)

	addr := ":" + port
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("mock mailer started", "addr", addr)
	if err := srv.ListenAndServe(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func handleTemplateMail(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Zoho-enczapikey ") {
		slog.Debug("mail without api token")
	}

	var mail templateMail
	if err := json.NewDecoder(r.Body).Decode(&mail); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if mail.TemplateKey == "" || len(mail.To) == 0 {
		w.WriteHeader(http.StatusUnprocessableEntity)
		return
	}

	recipients := make([]string, 0, len(mail.To))
	for _, to := range mail.To {
		recipients = append(recipients, to.EmailAddress.Address)
	}

	slog.Info("mail received",
		"template", mail.TemplateKey,
		"from", mail.From.Address,
		"to", strings.Join(recipients, ","),
		"merge_info", mail.MergeInfo,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"message":    "OK",
		"request_id": fmt.Sprintf("mock-%d", time.Now().UnixNano()),
	})
}

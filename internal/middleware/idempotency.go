package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/auth"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/handler"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/logging"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/repository"
)

type responseStore interface {
	Lookup(ctx context.Context, userID uuid.UUID, key string) (*repository.StoredResponse, error)
	Save(ctx context.Context, s *repository.StoredResponse) (bool, error)
}

const (
	idempotencyKeyHeader = "Idempotency-Key"
	replayedHeader       = "X-Idempotent-Replayed"
	idempotencyTTL       = 24 * time.Hour
	maxIdempotencyKeyLen = 255
	maxCreateBodyBytes   = 1 << 20
)

// Idempotency makes create endpoints safe to retry. A repeated key with the
// same request replays the stored response; with a different request it is
// rejected. Server errors are not stored so the key stays usable.
func Idempotency(store responseStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(idempotencyKeyHeader)
			if key == "" || len(key) > maxIdempotencyKeyLen {
				handler.RespondAppError(w, handler.ErrMissingIdempotencyKey, nil)
				return
			}

			userID, ok := auth.UserIDFromContext(r.Context())
			if !ok {
				handler.RespondAppError(w, handler.ErrMissingToken, nil)
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCreateBodyBytes))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					handler.RespondAppError(w, handler.ErrInvalidRequest, "request body too large")
					return
				}
				handler.RespondAppError(w, handler.ErrInvalidRequest, nil)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			ctx := logging.With(r.Context(), "idempotency_key", key)
			log := logging.FromContext(ctx)
			fingerprint := fingerprintRequest(r.Method, r.URL.Path, body)

			stored, err := store.Lookup(ctx, userID, key)
			if err != nil {
				log.Error("idempotency lookup failed", "error", err)
				handler.RespondAppError(w, handler.ErrInternalError, nil)
				return
			}

			now := time.Now().UTC()
			if stored != nil && !stored.Expired(now) {
				if stored.Fingerprint != fingerprint {
					handler.RespondAppError(w, handler.ErrIdempotencyConflict, nil)
					return
				}
				replay(w, stored, log)
				return
			}

			rec := &capturingWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			if rec.statusCode >= http.StatusInternalServerError {
				return
			}

			saved, err := store.Save(ctx, &repository.StoredResponse{
				UserID:      userID,
				Key:         key,
				Fingerprint: fingerprint,
				StatusCode:  rec.statusCode,
				Body:        rec.body.Bytes(),
				StoredAt:    now,
				ExpiresAt:   now.Add(idempotencyTTL),
			})
			switch {
			case err != nil:
				log.Error("idempotency store failed", "error", err)
			case !saved:
				log.Warn("idempotency key raced with a concurrent request")
			}
		})
	}
}

func replay(w http.ResponseWriter, s *repository.StoredResponse, log *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(s.StatusCode)
	if _, err := w.Write(s.Body); err != nil {
		log.Error("failed to write replayed response", "error", err)
	}
}

func fingerprintRequest(method, path string, body []byte) string {
	h := sha256.New()
	io.WriteString(h, method)
	io.WriteString(h, " ")
	io.WriteString(h, path)
	io.WriteString(h, "\n")
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// capturingWriter passes the response through while keeping a copy for the
// store.
type capturingWriter struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (c *capturingWriter) WriteHeader(code int) {
	c.statusCode = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *capturingWriter) Write(b []byte) (int, error) {
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

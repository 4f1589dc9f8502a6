package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/auth"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/logging"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/service/transfer"
)

type adminService interface {
	ListPending(ctx context.Context, p transfer.Page) (*transfer.HistoryPage, error)
	Finalize(ctx context.Context, adminID, transferID uuid.UUID, decision transfer.Decision, reason string) (*domain.Transfer, error)
	UpdateConfirmations(ctx context.Context, adminID, transferID uuid.UUID, confirmations []bool) (*domain.Transfer, error)
	AdjustBalance(ctx context.Context, adminID, userID uuid.UUID, asset domain.Asset, delta decimal.Decimal, reason string) (*domain.Balance, error)
}

type AdminHandler struct {
	admin adminService
}

func NewAdminHandler(admin adminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

type finalizeRequest struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
}

func (r finalizeRequest) Validate() []FieldError {
	if r.Decision == "" {
		return []FieldError{{Field: "decision", Message: "required"}}
	}
	if !transfer.Decision(r.Decision).IsValid() {
		return []FieldError{{Field: "decision", Message: "must be approved or rejected"}}
	}
	return nil
}

type confirmationsRequest struct {
	Confirmations []bool `json:"confirmations"`
}

func (r confirmationsRequest) Validate() []FieldError {
	if len(r.Confirmations) != domain.RailConfirmationSteps {
		return []FieldError{{Field: "confirmations", Message: "must contain exactly 4 flags"}}
	}
	return nil
}

type adjustBalanceRequest struct {
	UserID string          `json:"user_id"`
	Asset  string          `json:"asset"`
	Delta  decimal.Decimal `json:"delta"`
	Reason string          `json:"reason"`
}

func (r adjustBalanceRequest) Validate() []FieldError {
	var errs []FieldError

	if r.UserID == "" {
		errs = append(errs, FieldError{Field: "user_id", Message: "required"})
	} else if _, err := uuid.Parse(r.UserID); err != nil {
		errs = append(errs, FieldError{Field: "user_id", Message: "must be a valid UUID"})
	}

	if r.Asset == "" {
		errs = append(errs, FieldError{Field: "asset", Message: "required"})
	} else if !domain.Asset(r.Asset).IsValid() {
		errs = append(errs, FieldError{Field: "asset", Message: "unsupported asset"})
	}

	if r.Delta.IsZero() {
		errs = append(errs, FieldError{Field: "delta", Message: "must be non-zero"})
	} else if !r.Delta.Equal(r.Delta.Truncate(domain.AmountPrecision)) {
		errs = append(errs, FieldError{Field: "delta", Message: "at most 8 decimal places"})
	}

	if strings.TrimSpace(r.Reason) == "" {
		errs = append(errs, FieldError{Field: "reason", Message: "required"})
	}

	return errs
}

type adjustedBalanceDTO struct {
	UserID uuid.UUID       `json:"user_id"`
	Asset  string          `json:"asset"`
	Amount decimal.Decimal `json:"amount"`
}

func (h *AdminHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, fields := parsePage(q.Get("page"), q.Get("limit"))
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	pending, err := h.admin.ListPending(r.Context(), page)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list pending transfers", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toHistoryDTO(pending, uuid.Nil))
}

func (h *AdminHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	adminID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	transferID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req finalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	t, err := h.admin.Finalize(r.Context(), adminID, transferID, transfer.Decision(req.Decision), req.Reason)
	if err != nil {
		logging.FromContext(r.Context()).Warn("finalize failed", "transfer_id", transferID, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toTransferDTO(t, uuid.Nil))
}

func (h *AdminHandler) UpdateConfirmations(w http.ResponseWriter, r *http.Request) {
	adminID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	transferID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req confirmationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	t, err := h.admin.UpdateConfirmations(r.Context(), adminID, transferID, req.Confirmations)
	if err != nil {
		logging.FromContext(r.Context()).Warn("confirmations update failed", "transfer_id", transferID, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toTransferDTO(t, uuid.Nil))
}

func (h *AdminHandler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	adminID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req adjustBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	userID := uuid.MustParse(req.UserID)
	b, err := h.admin.AdjustBalance(r.Context(), adminID, userID, domain.Asset(req.Asset), req.Delta, strings.TrimSpace(req.Reason))
	if err != nil {
		logging.FromContext(r.Context()).Warn("balance adjustment failed", "user_id", userID, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, adjustedBalanceDTO{
		UserID: b.UserID,
		Asset:  string(b.Asset),
		Amount: b.Amount,
	})
}

package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/auth"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/logging"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/service/transfer"
)

type transferService interface {
	Initiate(ctx context.Context, req transfer.InitiateRequest) (*transfer.InitiateResult, error)
	Verify(ctx context.Context, senderID, transferID uuid.UUID, code string) (*domain.Transfer, error)
	Resend(ctx context.Context, senderID, transferID uuid.UUID) (*transfer.ResendResult, error)
	GetTransferByID(ctx context.Context, viewerID, transferID uuid.UUID) (*domain.Transfer, error)
	GetTransferHistory(ctx context.Context, userID uuid.UUID, f transfer.HistoryFilter, p transfer.Page) (*transfer.HistoryPage, error)
	Summary(ctx context.Context, userID uuid.UUID) ([]domain.AssetSummary, error)
}

type TransferHandler struct {
	transfers transferService
}

func NewTransferHandler(transfers transferService) *TransferHandler {
	return &TransferHandler{transfers: transfers}
}

type amountFields struct {
	Asset  string          `json:"asset"`
	Amount decimal.Decimal `json:"amount"`
}

func (r amountFields) validate() []FieldError {
	var errs []FieldError

	if r.Asset == "" {
		errs = append(errs, FieldError{Field: "asset", Message: "required"})
	} else if !domain.Asset(r.Asset).IsValid() {
		errs = append(errs, FieldError{Field: "asset", Message: "unsupported asset"})
	}

	if err := domain.ValidateAmount(r.Amount); err != nil {
		errs = append(errs, FieldError{Field: "amount", Message: "must be at least 0.000001 with at most 8 decimal places"})
	}

	return errs
}

type createTransferRequest struct {
	amountFields
	ToAddress string `json:"to_address"`
}

func (r createTransferRequest) Validate() []FieldError {
	errs := r.amountFields.validate()
	if strings.TrimSpace(r.ToAddress) == "" {
		errs = append(errs, FieldError{Field: "to_address", Message: "required"})
	}
	return errs
}

type createBankWithdrawalRequest struct {
	amountFields
	FullName      string `json:"full_name"`
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	SwiftCode     string `json:"swift_code"`
}

func (r createBankWithdrawalRequest) Validate() []FieldError {
	errs := r.amountFields.validate()
	if strings.TrimSpace(r.FullName) == "" {
		errs = append(errs, FieldError{Field: "full_name", Message: "required"})
	}
	if strings.TrimSpace(r.BankName) == "" {
		errs = append(errs, FieldError{Field: "bank_name", Message: "required"})
	}
	if strings.TrimSpace(r.AccountNumber) == "" {
		errs = append(errs, FieldError{Field: "account_number", Message: "required"})
	}
	return errs
}

type createPayPalWithdrawalRequest struct {
	amountFields
	PayPalEmail string `json:"paypal_email"`
}

func (r createPayPalWithdrawalRequest) Validate() []FieldError {
	errs := r.amountFields.validate()
	if r.PayPalEmail == "" {
		errs = append(errs, FieldError{Field: "paypal_email", Message: "required"})
	} else if _, err := mail.ParseAddress(r.PayPalEmail); err != nil {
		errs = append(errs, FieldError{Field: "paypal_email", Message: "must be a valid email address"})
	}
	return errs
}

type verifyTransferRequest struct {
	Code string `json:"code"`
}

func (r verifyTransferRequest) Validate() []FieldError {
	if strings.TrimSpace(r.Code) == "" {
		return []FieldError{{Field: "code", Message: "required"}}
	}
	return nil
}

type transferDTO struct {
	ID            uuid.UUID          `json:"id"`
	TransactionID string             `json:"transaction_id"`
	Type          string             `json:"type"`
	Status        string             `json:"status"`
	Direction     string             `json:"direction,omitempty"`
	Asset         string             `json:"asset"`
	AssetName     string             `json:"asset_name"`
	Amount        decimal.Decimal    `json:"amount"`
	ValueUSD      decimal.Decimal    `json:"value_usd"`
	PriceAtTime   decimal.Decimal    `json:"price_at_time"`
	FromUserID    uuid.UUID          `json:"from_user_id"`
	ToUserID      *uuid.UUID         `json:"to_user_id"`
	FromAddress   string             `json:"from_address"`
	ToAddress     string             `json:"to_address"`
	Rail          domain.RailDetails `json:"rail,omitempty"`
	Confirmations []bool             `json:"confirmations,omitempty"`
	FailureReason *string            `json:"failure_reason,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	CompletedAt   *time.Time         `json:"completed_at,omitempty"`
}

// toTransferDTO renders t as seen by viewer. A nil viewer omits direction.
func toTransferDTO(t *domain.Transfer, viewer uuid.UUID) transferDTO {
	dto := transferDTO{
		ID:            t.ID,
		TransactionID: t.TransactionID,
		Type:          string(t.Kind),
		Status:        string(t.Status),
		Asset:         string(t.Asset),
		AssetName:     t.Asset.DisplayName(),
		Amount:        t.Amount,
		ValueUSD:      t.ValueUSD.Round(2),
		PriceAtTime:   t.PriceAtTime,
		FromUserID:    t.FromUserID,
		ToUserID:      t.ToUserID,
		FromAddress:   t.FromAddress,
		ToAddress:     t.ToAddress,
		Rail:          t.Rail,
		Confirmations: t.Confirmations,
		FailureReason: t.FailureReason,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
		CompletedAt:   t.CompletedAt,
	}
	switch {
	case viewer == uuid.Nil:
	case t.FromUserID == viewer:
		dto.Direction = string(domain.DirectionSent)
	default:
		dto.Direction = string(domain.DirectionReceived)
	}
	return dto
}

type initiateResponse struct {
	Transfer transferDTO `json:"transfer"`
	OTPSent  bool        `json:"otp_sent"`
}

type historyDTO struct {
	Items      []transferDTO `json:"items"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	TotalPages int           `json:"total_pages"`
}

func toHistoryDTO(p *transfer.HistoryPage, viewer uuid.UUID) historyDTO {
	items := make([]transferDTO, 0, len(p.Items))
	for i := range p.Items {
		items = append(items, toTransferDTO(&p.Items[i], viewer))
	}
	return historyDTO{
		Items:      items,
		Total:      p.Total,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: p.TotalPages,
	}
}

type assetSummaryDTO struct {
	Asset          string          `json:"asset"`
	AssetName      string          `json:"asset_name"`
	SentAmount     decimal.Decimal `json:"sent_amount"`
	SentUSD        decimal.Decimal `json:"sent_usd"`
	ReceivedAmount decimal.Decimal `json:"received_amount"`
	ReceivedUSD    decimal.Decimal `json:"received_usd"`
	Count          int             `json:"count"`
}

func (h *TransferHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	h.initiate(w, r, transfer.InitiateRequest{
		Asset:     domain.Asset(req.Asset),
		Amount:    req.Amount,
		ToAddress: strings.TrimSpace(req.ToAddress),
		Kind:      domain.TransferKindRegular,
	})
}

func (h *TransferHandler) CreateBankWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req createBankWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	h.initiate(w, r, transfer.InitiateRequest{
		Asset:  domain.Asset(req.Asset),
		Amount: req.Amount,
		Kind:   domain.TransferKindBankWithdrawal,
		Rail: domain.BankDetails{
			FullName:      strings.TrimSpace(req.FullName),
			BankName:      strings.TrimSpace(req.BankName),
			AccountNumber: strings.TrimSpace(req.AccountNumber),
			SwiftCode:     strings.TrimSpace(req.SwiftCode),
		},
	})
}

func (h *TransferHandler) CreatePayPalWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req createPayPalWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	h.initiate(w, r, transfer.InitiateRequest{
		Asset:  domain.Asset(req.Asset),
		Amount: req.Amount,
		Kind:   domain.TransferKindPayPalWithdrawal,
		Rail:   domain.PayPalDetails{Email: req.PayPalEmail},
	})
}

func (h *TransferHandler) initiate(w http.ResponseWriter, r *http.Request, req transfer.InitiateRequest) {
	log := logging.FromContext(r.Context())

	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}
	req.SenderID = userID

	res, err := h.transfers.Initiate(r.Context(), req)
	if err != nil {
		log.Warn("transfer initiation failed", "kind", req.Kind, "error", err)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/transfers/%s", res.Transfer.ID))
	RespondSuccess(w, http.StatusCreated, initiateResponse{
		Transfer: toTransferDTO(res.Transfer, userID),
		OTPSent:  res.OTPSent,
	})
}

func (h *TransferHandler) Verify(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	transferID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req verifyTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	t, err := h.transfers.Verify(r.Context(), userID, transferID, strings.TrimSpace(req.Code))
	if err != nil {
		logging.FromContext(r.Context()).Warn("transfer verification failed", "transfer_id", transferID, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toTransferDTO(t, userID))
}

func (h *TransferHandler) Resend(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	transferID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	res, err := h.transfers.Resend(r.Context(), userID, transferID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("otp resend failed", "transfer_id", transferID, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, initiateResponse{
		Transfer: toTransferDTO(res.Transfer, userID),
		OTPSent:  res.OTPSent,
	})
}

func (h *TransferHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	transferID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	t, err := h.transfers.GetTransferByID(r.Context(), userID, transferID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("transfer lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toTransferDTO(t, userID))
}

func (h *TransferHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	q := r.URL.Query()
	page, fields := parsePage(q.Get("page"), q.Get("limit"))
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	history, err := h.transfers.GetTransferHistory(r.Context(), userID, transfer.HistoryFilter{
		Asset:     domain.Asset(q.Get("asset")),
		Status:    domain.TransferStatus(q.Get("status")),
		Direction: domain.TransferDirection(q.Get("type")),
	}, page)
	if err != nil {
		logging.FromContext(r.Context()).Warn("transfer history failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toHistoryDTO(history, userID))
}

func (h *TransferHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	summary, err := h.transfers.Summary(r.Context(), userID)
	if err != nil {
		logging.FromContext(r.Context()).Error("transfer summary failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]assetSummaryDTO, 0, len(summary))
	for _, s := range summary {
		dtos = append(dtos, assetSummaryDTO{
			Asset:          string(s.Asset),
			AssetName:      s.Asset.DisplayName(),
			SentAmount:     s.SentAmount,
			SentUSD:        s.SentUSD.Round(2),
			ReceivedAmount: s.ReceivedAmount,
			ReceivedUSD:    s.ReceivedUSD.Round(2),
			Count:          s.Count,
		})
	}
	RespondSuccess(w, http.StatusOK, dtos)
}

// parsePage reads optional page and limit query values. Range clamping is
// left to the service.
func parsePage(pageRaw, limitRaw string) (transfer.Page, []FieldError) {
	var p transfer.Page
	var errs []FieldError

	if pageRaw != "" {
		n, err := strconv.Atoi(pageRaw)
		if err != nil {
			errs = append(errs, FieldError{Field: "page", Message: "must be an integer"})
		}
		p.Page = n
	}
	if limitRaw != "" {
		n, err := strconv.Atoi(limitRaw)
		if err != nil {
			errs = append(errs, FieldError{Field: "limit", Message: "must be an integer"})
		}
		p.Limit = n
	}
	return p, errs
}

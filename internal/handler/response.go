package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{Success: true, Data: data})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Error: &APIError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

// domainErrors is matched top to bottom. ErrOTPNotFound and
// ErrTransferNotPending wrap ErrNotFound, so they come first.
var domainErrors = []struct {
	target error
	appErr *AppError
}{
	{domain.ErrOTPNotFound, ErrOTPNotFound},
	{domain.ErrTransferNotPending, ErrTransferNotPending},
	{domain.ErrNotFound, ErrResourceNotFound},
	{domain.ErrNotOwner, ErrNotOwner},
	{domain.ErrInvalidAsset, ErrInvalidAsset},
	{domain.ErrInvalidAmount, ErrInvalidAmount},
	{domain.ErrSelfTransfer, ErrSelfTransfer},
	{domain.ErrInsufficientFunds, ErrInsufficientFunds},
	{domain.ErrRailRequiresTrustTier, ErrTrustTierRequired},
	{domain.ErrOTPExpired, ErrOTPExpired},
	{domain.ErrOTPMismatch, ErrOTPMismatch},
	{domain.ErrOTPAttemptsExceeded, ErrOTPAttemptsExceeded},
	{domain.ErrNoPendingIntent, ErrNoPendingIntent},
	{domain.ErrRateLimited, ErrRateLimited},
	{domain.ErrInvalidTransition, ErrInvalidTransition},
	{domain.ErrVersionConflict, ErrVersionConflict},
	{domain.ErrDuplicate, ErrDuplicate},
	{domain.ErrInvalidRequest, ErrInvalidRequest},
}

// RespondDomainError maps a service error to its AppError. Anything
// unrecognised is logged and surfaces as INTERNAL_ERROR.
func RespondDomainError(w http.ResponseWriter, err error) {
	for _, m := range domainErrors {
		if errors.Is(err, m.target) {
			RespondAppError(w, m.appErr, nil)
			return
		}
	}
	slog.Error("unhandled domain error", "error", err)
	RespondAppError(w, ErrInternalError, nil)
}

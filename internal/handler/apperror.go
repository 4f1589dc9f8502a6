package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken     = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken     = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrForbidden        = &AppError{http.StatusForbidden, "FORBIDDEN", "Admin role required"}
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrNotOwner         = &AppError{http.StatusForbidden, "NOT_OWNER", "You do not have access to this transfer"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrInvalidAsset          = &AppError{http.StatusBadRequest, "INVALID_ASSET", "Unsupported asset"}
	ErrInvalidAmount         = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be at least 0.000001 with at most 8 decimal places"}
	ErrSelfTransfer          = &AppError{http.StatusUnprocessableEntity, "SELF_TRANSFER_NOT_ALLOWED", "Cannot transfer to your own wallet"}
	ErrInsufficientFunds     = &AppError{http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", "Insufficient funds"}
	ErrTrustTierRequired     = &AppError{http.StatusUnprocessableEntity, "TRUST_TIER_REQUIRED", "Recipient not found and your account cannot send externally. Activate your card to unlock external transfers"}
	ErrOTPExpired            = &AppError{http.StatusUnprocessableEntity, "OTP_EXPIRED", "Verification code has expired, request a new transfer"}
	ErrOTPMismatch           = &AppError{http.StatusUnprocessableEntity, "OTP_INVALID", "Verification code is incorrect"}
	ErrOTPAttemptsExceeded   = &AppError{http.StatusTooManyRequests, "OTP_ATTEMPTS_EXCEEDED", "Too many incorrect codes, request a new transfer"}
	ErrOTPNotFound           = &AppError{http.StatusNotFound, "OTP_NOT_FOUND", "No active verification code for this transfer"}
	ErrTransferNotPending    = &AppError{http.StatusNotFound, "TRANSFER_NOT_PENDING", "Transfer is not awaiting verification"}
	ErrNoPendingIntent       = &AppError{http.StatusUnprocessableEntity, "NO_PENDING_TRANSFER", "No pending transfer to resend a code for"}
	ErrRateLimited           = &AppError{http.StatusTooManyRequests, "RATE_LIMITED", "Too many verification codes requested, try again later"}
	ErrInvalidTransition     = &AppError{http.StatusConflict, "INVALID_STATUS_TRANSITION", "Transfer cannot move to the requested status"}
	ErrVersionConflict       = &AppError{http.StatusConflict, "VERSION_CONFLICT", "Resource was modified concurrently, please retry"}
	ErrDuplicate             = &AppError{http.StatusConflict, "DUPLICATE", "Resource already exists"}
	ErrMissingIdempotencyKey = &AppError{http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY", "Idempotency-Key header is required"}
	ErrIdempotencyConflict   = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}
)

// Package errors provides custom error types for the Registra API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrForbidden    = &AppError{Code: "FORBIDDEN", Message: "Actor lacks authority for this step", StatusCode: http.StatusForbidden}
)

// General errors.
var (
	ErrValidation     = &AppError{Code: "VALIDATION_ERROR", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Missing-entity errors.
var (
	ErrDeclarationNotFound = &AppError{Code: "DECLARATION_NOT_FOUND", Message: "Declaration not found", StatusCode: http.StatusNotFound}
	ErrRunNotFound         = &AppError{Code: "ENTITLEMENT_RUN_NOT_FOUND", Message: "Entitlement run not found", StatusCode: http.StatusNotFound}
	ErrNoFrozenRun         = &AppError{Code: "NO_FROZEN_RUN", Message: "No completed frozen entitlement run exists for this declaration", StatusCode: http.StatusNotFound}
	ErrPaymentNotFound     = &AppError{Code: "PAYMENT_NOT_FOUND", Message: "Payment not found", StatusCode: http.StatusNotFound}
	ErrDelegationNotFound  = &AppError{Code: "DELEGATION_NOT_FOUND", Message: "Approval delegation not found", StatusCode: http.StatusNotFound}
	ErrStepNotConfigured   = &AppError{Code: "APPROVAL_STEPS_NOT_CONFIGURED", Message: "No approval steps are configured for this company", StatusCode: http.StatusConflict}
)

// Computation precondition errors. Each names the missing field so the
// caller can correct the declaration before retrying.
var (
	ErrRateNotSet       = &AppError{Code: "RATE_PER_SHARE_NOT_SET", Message: "rate_per_share must be set and positive before entitlements can be computed", StatusCode: http.StatusBadRequest}
	ErrRecordDateNotSet = &AppError{Code: "RECORD_DATE_NOT_SET", Message: "record_date must be set before entitlements can be computed", StatusCode: http.StatusBadRequest}
	ErrReasonRequired   = &AppError{Code: "REASON_REQUIRED", Message: "A reason is required for this action", StatusCode: http.StatusBadRequest}
)

// State-conflict errors: the requested transition is not valid from the
// entity's current state. These never corrupt state; the entity is left
// exactly as it was.
var (
	ErrInvalidTransition      = &AppError{Code: "STATE_CONFLICT", Message: "Invalid status transition", StatusCode: http.StatusConflict}
	ErrDeclarationNotEditable = &AppError{Code: "DECLARATION_NOT_EDITABLE", Message: "Only DRAFT declarations can be edited or deleted", StatusCode: http.StatusConflict}
	ErrDeclarationNotLive     = &AppError{Code: "DECLARATION_NOT_LIVE", Message: "Declaration must be LIVE for this operation", StatusCode: http.StatusConflict}
	ErrNotFreezable           = &AppError{Code: "DECLARATION_NOT_FREEZABLE", Message: "Entitlements can only be frozen for a submitted or approved declaration", StatusCode: http.StatusConflict}
	ErrDuplicateApproval      = &AppError{Code: "DUPLICATE_APPROVAL", Message: "This role has already approved the current step", StatusCode: http.StatusConflict}
	ErrPaymentNotReissuable   = &AppError{Code: "PAYMENT_NOT_REISSUABLE", Message: "Only failed or disputed payments can be reissued", StatusCode: http.StatusConflict}
	ErrInvalidPaymentStatus   = &AppError{Code: "INVALID_PAYMENT_TRANSITION", Message: "Invalid payment status transition", StatusCode: http.StatusConflict}
	ErrDuplicateDelegation    = &AppError{Code: "DUPLICATE_DELEGATION", Message: "This delegation already exists", StatusCode: http.StatusConflict}
	ErrDuplicatePeriod        = &AppError{Code: "DUPLICATE_PERIOD_LABEL", Message: "A declaration for this period already exists for the company", StatusCode: http.StatusConflict}
)

// Computation failure. Recorded as a FAILED run with error_message rather
// than surfaced as a thrown error past the run boundary.
var (
	ErrComputationFailed = &AppError{Code: "COMPUTATION_FAILED", Message: "Entitlement run materialization failed", StatusCode: http.StatusInternalServerError}
)

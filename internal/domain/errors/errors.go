package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrAlreadyExists      = errors.New("resource already exists")
	ErrInvalidInput       = errors.New("invalid input")
	ErrBadRequest         = errors.New("bad request")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrValidation         = errors.New("validation failed")
	ErrTransientStore     = errors.New("transient store error")
	ErrNoTransaction      = errors.New("operation requires an active transaction")
	ErrRequestInFlight    = errors.New("request with this idempotency key is in progress")
	ErrIdempotencyReused  = errors.New("idempotency key reused with different parameters")
	ErrDuplicateIdemKey   = errors.New("duplicate idempotency key")
	ErrAlreadySettled     = errors.New("hold already settled")
	ErrNotReversible      = errors.New("transaction cannot be reversed")
	ErrHeldBalanceMissing = errors.New("held balance lower than hold amount")
)

// InsufficientFundsError is a business rejection carrying the amounts involved.
type InsufficientFundsError struct {
	Required  int64
	Available int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: required %d, available %d", e.Required, e.Available)
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// ValidationError is returned before any lock is taken.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError creates a validation error for a field
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// TransientStoreError means nothing was committed; the call can be replayed
// with the same idempotency key.
type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientStoreError) Unwrap() error {
	return e.Err
}

func (e *TransientStoreError) Is(target error) bool {
	return target == ErrTransientStore
}

// SideEffectError is only ever logged.
type SideEffectError struct {
	Action string
	Err    error
}

func (e *SideEffectError) Error() string {
	return fmt.Sprintf("side effect %s failed: %v", e.Action, e.Err)
}

func (e *SideEffectError) Unwrap() error {
	return e.Err
}

// AppError represents application error with HTTP status
type AppError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new app error
func NewAppError(status int, code, message string, err error) *AppError {
	return &AppError{
		Status:  status,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func NotFound(message string) *AppError {
	return NewAppError(http.StatusNotFound, "ERR_NOT_FOUND", message, ErrNotFound)
}

func BadRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, "ERR_BAD_REQUEST", message, ErrInvalidInput)
}

func Unauthorized(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, "ERR_UNAUTHORIZED", message, ErrUnauthorized)
}

func Forbidden(message string) *AppError {
	return NewAppError(http.StatusForbidden, "ERR_FORBIDDEN", message, ErrForbidden)
}

func Conflict(message string) *AppError {
	return NewAppError(http.StatusConflict, "ERR_CONFLICT", message, ErrConflict)
}

func InternalError(err error) *AppError {
	return NewAppError(http.StatusInternalServerError, "ERR_INTERNAL", "internal server error", err)
}

// FromError maps ledger errors onto HTTP-facing AppErrors.
func FromError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var funds *InsufficientFundsError
	var validation *ValidationError
	var transient *TransientStoreError

	switch {
	case errors.As(err, &funds):
		e := NewAppError(http.StatusUnprocessableEntity, "ERR_INSUFFICIENT_FUNDS", "insufficient funds", err)
		e.Details = map[string]int64{"required": funds.Required, "available": funds.Available}
		return e
	case errors.As(err, &validation):
		return NewAppError(http.StatusBadRequest, "ERR_VALIDATION", validation.Error(), err)
	case errors.As(err, &transient):
		return NewAppError(http.StatusServiceUnavailable, "ERR_TRANSIENT", "temporary failure, retry with the same idempotency key", err)
	case errors.Is(err, ErrNotFound):
		return NewAppError(http.StatusNotFound, "ERR_NOT_FOUND", "resource not found", err)
	case errors.Is(err, ErrRequestInFlight):
		return NewAppError(http.StatusConflict, "ERR_IDEMPOTENCY_CONFLICT", "request already in progress", err)
	case errors.Is(err, ErrIdempotencyReused):
		return NewAppError(http.StatusConflict, "ERR_IDEMPOTENCY_KEY_REUSED", err.Error(), err)
	case errors.Is(err, ErrAlreadySettled):
		return NewAppError(http.StatusConflict, "ERR_CONFLICT", err.Error(), err)
	case errors.Is(err, ErrNotReversible):
		return NewAppError(http.StatusUnprocessableEntity, "ERR_NOT_REVERSIBLE", err.Error(), err)
	case errors.Is(err, ErrForbidden):
		return Forbidden("forbidden")
	}
	return InternalError(err)
}

// AngelaMos | 2026
// errors.go

package core

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
	ErrTokenRevoked = errors.New("token revoked")
)

// Auth failures.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrBadCredential   = errors.New("bad credential")
	ErrAccountDisabled = errors.New("account disabled")
	ErrAccountLocked   = errors.New("account locked")
	ErrTokenInvalid    = errors.New("token invalid")
	ErrTokenExpired    = errors.New("token expired")
	ErrUnauthenticated = errors.New("unauthenticated")
)

var ErrPermissionDenied = errors.New("permission denied")

// Ledger failures.
var (
	ErrEmployeeExists      = errors.New("employee already exists")
	ErrEmployeeNotFound    = errors.New("employee not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

var (
	ErrEncryptionFailed = errors.New("encryption failed")
	ErrDecryptionFailed = errors.New("decryption failed")
)

// ErrStoreFailure marks storage I/O problems. Callers decide whether to
// retry; mutating paths never swallow it.
var ErrStoreFailure = errors.New("store i/o failure")

// StoreError wraps err as a storage failure for operation op.
func StoreError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreFailure, err)
}

type Kind string

const (
	KindAuth       Kind = "auth"
	KindPermission Kind = "permission"
	KindLedger     Kind = "ledger"
	KindCrypto     Kind = "crypto"
	KindStore      Kind = "store"
	KindInput      Kind = "input"
	KindUnknown    Kind = "unknown"
)

// KindOf reports which error family err belongs to.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrBadCredential),
		errors.Is(err, ErrAccountDisabled),
		errors.Is(err, ErrAccountLocked),
		errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrTokenRevoked),
		errors.Is(err, ErrUnauthenticated):
		return KindAuth
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrForbidden):
		return KindPermission
	case errors.Is(err, ErrEmployeeExists),
		errors.Is(err, ErrEmployeeNotFound),
		errors.Is(err, ErrInsufficientBalance):
		return KindLedger
	case errors.Is(err, ErrEncryptionFailed), errors.Is(err, ErrDecryptionFailed):
		return KindCrypto
	case errors.Is(err, ErrStoreFailure):
		return KindStore
	case errors.Is(err, ErrInvalidInput):
		return KindInput
	default:
		return KindUnknown
	}
}

type AppError struct {
	Err        error  `json:"-"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(err error, message string, status int, code string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		StatusCode: status,
		Code:       code,
	}
}

func UnauthorizedError(message string) *AppError {
	if message == "" {
		message = "authentication required"
	}
	return NewAppError(ErrUnauthenticated, message, http.StatusUnauthorized, "UNAUTHORIZED")
}

func ForbiddenError(message string) *AppError {
	if message == "" {
		message = "insufficient permissions"
	}
	return NewAppError(ErrPermissionDenied, message, http.StatusForbidden, "FORBIDDEN")
}

func TokenExpiredError() *AppError {
	return NewAppError(ErrTokenExpired, "token has expired", http.StatusUnauthorized, "TOKEN_EXPIRED")
}

func TokenRevokedError() *AppError {
	return NewAppError(ErrTokenRevoked, "token has been revoked", http.StatusUnauthorized, "TOKEN_REVOKED")
}

func TokenInvalidError() *AppError {
	return NewAppError(ErrTokenInvalid, "token is invalid", http.StatusUnauthorized, "TOKEN_INVALID")
}

func DuplicateError(field string) *AppError {
	return NewAppError(
		ErrDuplicateKey,
		field+" already exists",
		http.StatusConflict,
		"DUPLICATE",
	)
}

// ToAppError maps domain sentinels onto HTTP errors. Unknown errors become
// a 500 without leaking their text.
//
//nolint:gocyclo // flat mapping table
func ToAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, ErrUnauthenticated):
		return UnauthorizedError("")
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrBadCredential):
		return NewAppError(err, "invalid username or password", http.StatusUnauthorized, "INVALID_CREDENTIALS")
	case errors.Is(err, ErrAccountDisabled):
		return NewAppError(err, "account is disabled", http.StatusForbidden, "ACCOUNT_DISABLED")
	case errors.Is(err, ErrAccountLocked):
		return NewAppError(err, "account is locked after repeated failed logins", http.StatusLocked, "ACCOUNT_LOCKED")
	case errors.Is(err, ErrTokenExpired):
		return TokenExpiredError()
	case errors.Is(err, ErrTokenRevoked):
		return TokenRevokedError()
	case errors.Is(err, ErrTokenInvalid):
		return TokenInvalidError()
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrForbidden):
		return ForbiddenError("")
	case errors.Is(err, ErrEmployeeExists):
		return NewAppError(err, "employee already exists", http.StatusConflict, "EMPLOYEE_EXISTS")
	case errors.Is(err, ErrEmployeeNotFound):
		return NewAppError(err, "employee not found", http.StatusNotFound, "EMPLOYEE_NOT_FOUND")
	case errors.Is(err, ErrInsufficientBalance):
		return NewAppError(err, "insufficient balance", http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE")
	case errors.Is(err, ErrNotFound):
		return NewAppError(err, "resource not found", http.StatusNotFound, "NOT_FOUND")
	case errors.Is(err, ErrDuplicateKey):
		return DuplicateError("resource")
	case errors.Is(err, ErrInvalidInput):
		return NewAppError(err, "invalid input", http.StatusBadRequest, "INVALID_INPUT")
	case errors.Is(err, ErrStoreFailure):
		return NewAppError(err, "storage unavailable", http.StatusServiceUnavailable, "STORE_FAILURE")
	case errors.Is(err, ErrEncryptionFailed), errors.Is(err, ErrDecryptionFailed):
		return NewAppError(err, "internal server error", http.StatusInternalServerError, "CRYPTO_FAILURE")
	default:
		return NewAppError(err, "internal server error", http.StatusInternalServerError, "INTERNAL_ERROR")
	}
}

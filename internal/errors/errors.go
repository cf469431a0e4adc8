// Package errors provides the application error taxonomy.
// Services translate storage-level failures (unique, foreign-key and not-null
// violations, missing rows) into these values so raw driver errors never reach
// callers; the HTTP layer renders them without leaking internal details.
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

// Is reports whether target is an AppError with the same code, so wrapped
// copies produced by Wrap and WithMessage still match their sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

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
	ErrForbidden    = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}

	ErrOperatorAPINotConfigured = &AppError{Code: "OPERATOR_API_NOT_CONFIGURED", Message: "Operator endpoints are not configured", StatusCode: http.StatusServiceUnavailable}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Guild registry errors.
var (
	ErrDuplicateGuild = &AppError{Code: "DUPLICATE_GUILD", Message: "Guild is already registered", StatusCode: http.StatusConflict}
	ErrUnknownGuild   = &AppError{Code: "UNKNOWN_GUILD", Message: "Guild is not registered", StatusCode: http.StatusNotFound}
)

// Permission scope errors.
var (
	ErrDuplicateRole    = &AppError{Code: "DUPLICATE_ROLE", Message: "Role is already allowed in this guild", StatusCode: http.StatusConflict}
	ErrRoleNotFound     = &AppError{Code: "ROLE_NOT_FOUND", Message: "Role is not allowed in this guild", StatusCode: http.StatusNotFound}
	ErrDuplicateChannel = &AppError{Code: "DUPLICATE_CHANNEL", Message: "Channel is already allowed", StatusCode: http.StatusConflict}
	ErrChannelNotFound  = &AppError{Code: "CHANNEL_NOT_FOUND", Message: "Channel is not allowed in this guild", StatusCode: http.StatusNotFound}
)

// Telegram group directory errors.
var (
	ErrDuplicatePairing = &AppError{Code: "DUPLICATE_PAIRING", Message: "Telegram group is already paired with this guild", StatusCode: http.StatusConflict}
	ErrGroupNotFound    = &AppError{Code: "GROUP_NOT_FOUND", Message: "Telegram group not found", StatusCode: http.StatusNotFound}
)

// Account link errors.
var (
	ErrAlreadyLinked = &AppError{Code: "ALREADY_LINKED", Message: "Account is already linked to a different account", StatusCode: http.StatusConflict}
	ErrNotLinked     = &AppError{Code: "NOT_LINKED", Message: "Account is not linked", StatusCode: http.StatusNotFound}
)

// Linking token errors.
var (
	ErrTokenExpired  = &AppError{Code: "TOKEN_EXPIRED", Message: "Linking token has expired, please restart linking", StatusCode: http.StatusGone}
	ErrTokenNotFound = &AppError{Code: "TOKEN_NOT_FOUND", Message: "Linking token not found", StatusCode: http.StatusNotFound}
	ErrTokenConsumed = &AppError{Code: "TOKEN_ALREADY_CONSUMED", Message: "Linking token was already used", StatusCode: http.StatusConflict}
)

// Tenancy migration errors.
var (
	ErrBackfillIncomplete = &AppError{Code: "BACKFILL_INCOMPLETE", Message: "Rows without a guild remain after backfill", StatusCode: http.StatusInternalServerError}
)

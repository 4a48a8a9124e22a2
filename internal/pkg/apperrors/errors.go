package apperrors

import (
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrSlippageExceeded      ErrorType = "SLIPPAGE_EXCEEDED"
	ErrStalePrice            ErrorType = "STALE_PRICE"
	ErrChangeLimitExceeded   ErrorType = "CHANGE_LIMIT_EXCEEDED"
	ErrInsufficientLiquidity ErrorType = "INSUFFICIENT_LIQUIDITY"
	ErrNotReceivableToken    ErrorType = "NOT_RECEIVABLE_TOKEN"
	ErrInvalidParameter      ErrorType = "INVALID_PARAMETER"
	ErrUnauthorized          ErrorType = "UNAUTHORIZED"
	ErrAlreadyExists         ErrorType = "ALREADY_EXISTS"
	ErrNotFound              ErrorType = "NOT_FOUND"
	ErrInternal              ErrorType = "INTERNAL_ERROR"
)

// AppError is the standard error struct for the application
type AppError struct {
	Type       ErrorType `json:"code"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
		Suggestion: mapTypeToSuggestion(errType),
	}
}

func Newf(errType ErrorType, format string, args ...any) *AppError {
	return New(errType, fmt.Sprintf(format, args...), nil)
}

func NewInvalidParameter(msg string) *AppError {
	return New(ErrInvalidParameter, msg, nil)
}

func NewUnauthorized(msg string) *AppError {
	return New(ErrUnauthorized, msg, nil)
}

func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

// IsType reports whether err is an AppError of the given type.
func IsType(err error, t ErrorType) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	return appErr.Type == t
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrSlippageExceeded, ErrInvalidParameter:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrChangeLimitExceeded, ErrAlreadyExists:
		return http.StatusConflict
	case ErrInsufficientLiquidity, ErrNotReceivableToken:
		return http.StatusUnprocessableEntity
	case ErrStalePrice:
		return http.StatusServiceUnavailable
	case ErrNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func mapTypeToSuggestion(t ErrorType) string {
	switch t {
	case ErrSlippageExceeded:
		return "Retry with a lower minimum output or a wider slippage bound."
	case ErrStalePrice:
		return "Wait for the price feed to refresh and retry."
	case ErrChangeLimitExceeded:
		return "Review the strategy report and force-apply it via governance if correct."
	case ErrInsufficientLiquidity:
		return "Reduce the redemption amount or wait for strategies to free liquidity."
	case ErrUnauthorized:
		return "Check the API key and the role it is bound to."
	default:
		return ""
	}
}

package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Payment Business Logic (PAY) ----

func ErrPaymentNotFound() *AppError {
	return New("PAY_001", "Payment not found", http.StatusNotFound)
}

func ErrInvalidAmount() *AppError {
	return New("PAY_002", "Invalid amount", http.StatusBadRequest)
}

func ErrInvalidCurrency() *AppError {
	return New("PAY_003", "Unsupported currency", http.StatusBadRequest)
}

func ErrTransferAlreadyProcessed() *AppError {
	return New("PAY_006", "Transfer already processed for a different payment", http.StatusConflict)
}

func ErrPaymentIDExhausted() *AppError {
	return New("PAY_007", "Could not allocate a unique payment id", http.StatusServiceUnavailable)
}

func ErrAccountNotFound() *AppError {
	return New("PAY_008", "Owner account not found", http.StatusNotFound)
}

// ---- Chain Indexer (CHAIN) ----

func ErrIndexerUnavailable(err error) *AppError {
	return Wrap("CHAIN_001", "Blockchain indexer unavailable", http.StatusBadGateway, err)
}

func ErrIndexerMalformed(err error) *AppError {
	return Wrap("CHAIN_002", "Blockchain indexer returned malformed response", http.StatusBadGateway, err)
}

// ---- Admin (ADM) ----

func ErrAdminKeyInvalid() *AppError {
	return New("ADM_001", "Invalid admin key", http.StatusUnauthorized)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a PAY_002-style validation error.
func Validation(message string) *AppError {
	return New("PAY_002", message, http.StatusBadRequest)
}

// Package errors provides custom error types for the Tienda API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
// Details carries structured per-field context (e.g. per-product stock
// shortfalls) and is safe to return to clients.
type AppError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	StatusCode int               `json:"-"`
	Internal   error             `json:"-"`
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

// WithDetails creates a new AppError carrying structured per-field details.
func WithDetails(sentinel *AppError, message string, details map[string]string) *AppError {
	if message == "" {
		message = sentinel.Message
	}
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		Details:    details,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid email or password", StatusCode: http.StatusUnauthorized}
	ErrForbidden          = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// User errors.
var (
	ErrUserNotFound   = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail = &AppError{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists", StatusCode: http.StatusConflict}
)

// Investor & ledger errors.
var (
	ErrInvestorNotFound    = &AppError{Code: "INVESTOR_NOT_FOUND", Message: "Investor not found", StatusCode: http.StatusNotFound}
	ErrInvalidAmount       = &AppError{Code: "INVALID_AMOUNT", Message: "Amount must be greater than zero", StatusCode: http.StatusBadRequest}
	ErrInsufficientCapital = &AppError{Code: "INSUFFICIENT_CAPITAL", Message: "Insufficient liquid capital", StatusCode: http.StatusBadRequest}
	ErrInsufficientProfit  = &AppError{Code: "INSUFFICIENT_PROFIT", Message: "Insufficient realized profit", StatusCode: http.StatusBadRequest}
	ErrAssignmentNotFound  = &AppError{Code: "ASSIGNMENT_NOT_FOUND", Message: "Investor assignment not found", StatusCode: http.StatusNotFound}
)

// Catalog & stock errors.
var (
	ErrProductNotFound   = &AppError{Code: "PRODUCT_NOT_FOUND", Message: "Product not found", StatusCode: http.StatusNotFound}
	ErrDuplicateSKU      = &AppError{Code: "DUPLICATE_SKU", Message: "A product with this SKU already exists", StatusCode: http.StatusConflict}
	ErrInsufficientStock = &AppError{Code: "INSUFFICIENT_STOCK", Message: "Insufficient stock", StatusCode: http.StatusBadRequest}
	ErrZeroQuantity      = &AppError{Code: "ZERO_QUANTITY", Message: "Quantity delta cannot be zero", StatusCode: http.StatusBadRequest}
)

// Sale errors.
var (
	ErrSaleNotFound = &AppError{Code: "SALE_NOT_FOUND", Message: "Sale not found", StatusCode: http.StatusNotFound}
	ErrInvalidState = &AppError{Code: "INVALID_STATE", Message: "Operation not allowed in the current state", StatusCode: http.StatusBadRequest}
	ErrVoidWindow   = &AppError{Code: "VOID_WINDOW_EXPIRED", Message: "The void window for this sale has expired", StatusCode: http.StatusForbidden}
)

// Layaway errors.
var (
	ErrLayawayNotFound        = &AppError{Code: "LAYAWAY_NOT_FOUND", Message: "Layaway not found", StatusCode: http.StatusNotFound}
	ErrInvalidPayment         = &AppError{Code: "INVALID_PAYMENT", Message: "Invalid payment", StatusCode: http.StatusBadRequest}
	ErrInsufficientCredit     = &AppError{Code: "INSUFFICIENT_CREDIT", Message: "Insufficient customer credit", StatusCode: http.StatusBadRequest}
	ErrCustomerNotFound       = &AppError{Code: "CUSTOMER_NOT_FOUND", Message: "Customer not found", StatusCode: http.StatusNotFound}
	ErrLayawayNotExpirable    = &AppError{Code: "LAYAWAY_NOT_EXPIRABLE", Message: "Layaway has not reached its expiry date", StatusCode: http.StatusBadRequest}
	ErrInvalidExpiryExtension = &AppError{Code: "INVALID_EXPIRY_EXTENSION", Message: "New expiry date must be later than the current one", StatusCode: http.StatusBadRequest}
)

package common

import (
	"errors"
	"net/http"
)

// Error codes used across the transaction core. The surrounding service layer
// maps them to transport-level responses; nothing in the core retries on them.
const (
	CodeValidation         = "validation"
	CodeInsufficientStock  = "insufficient_stock"
	CodeNotFound           = "not_found"
	CodeDiscountEvaluation = "discount_evaluation"
	CodeConfiguration      = "configuration"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// CodeOf returns the code of the wrapped AppError, or the empty string.
func CodeOf(err error) string {
	var target *AppError
	if errors.As(err, &target) {
		return target.Code
	}
	return ""
}

// Validation wraps a bad-argument error (out-of-range percentage, negative
// quantity or bid). Construction-time validation is never deferred.
func Validation(message string, err error) *AppError {
	return NewAppError(CodeValidation, message, http.StatusBadRequest, err)
}

// InsufficientStock wraps a reservation that cannot be satisfied. Callers may
// retry after a restock.
func InsufficientStock(message string, err error) *AppError {
	return NewAppError(CodeInsufficientStock, message, http.StatusConflict, err)
}

// NotFound wraps an unknown shop, item, discount or policy reference.
func NotFound(message string, err error) *AppError {
	return NewAppError(CodeNotFound, message, http.StatusNotFound, err)
}

// DiscountEvaluation wraps a discount rule failure raised during pricing. The
// ledger has already been rolled back when this surfaces.
func DiscountEvaluation(message string, err error) *AppError {
	return NewAppError(CodeDiscountEvaluation, message, http.StatusUnprocessableEntity, err)
}

// Configuration wraps a fatal misconfiguration such as a policy composite
// without an operator. Never retried.
func Configuration(message string, err error) *AppError {
	return NewAppError(CodeConfiguration, message, http.StatusInternalServerError, err)
}

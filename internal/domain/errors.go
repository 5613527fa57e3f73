package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Gateway errors (GATEWAY_*)
	ErrorCodeGatewayTransport ErrorCode = "GATEWAY_TRANSPORT"
	ErrorCodeGatewayBusiness  ErrorCode = "GATEWAY_BUSINESS"
	ErrorCodeGatewayMalformed ErrorCode = "GATEWAY_MALFORMED_RESPONSE"

	// Validation errors (VALIDATION_*)
	ErrorCodeValidationFailed        ErrorCode = "VALIDATION_FAILED"
	ErrorCodeValidationAmountInvalid ErrorCode = "VALIDATION_AMOUNT_INVALID"
	ErrorCodeValidationInvalidState  ErrorCode = "VALIDATION_INVALID_STATE"
	ErrorCodeValidationMissingField  ErrorCode = "VALIDATION_MISSING_FIELD"

	// Not-found errors (*_NOT_FOUND)
	ErrorCodeTxnNotFound          ErrorCode = "TXN_NOT_FOUND"
	ErrorCodeSubscriptionNotFound ErrorCode = "SUBSCRIPTION_NOT_FOUND"
	ErrorCodeCountryNotFound      ErrorCode = "COUNTRY_NOT_FOUND"

	// Internal errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrorCodeDatabaseError ErrorCode = "INTERNAL_DATABASE_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail field to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// TransportFailure wraps a network/timeout error talking to the gateway.
func TransportFailure(message string, err error) *DomainError {
	return WrapError(ErrorCodeGatewayTransport, message, err)
}

// BusinessFailure carries a gateway-supplied rejection. The explanation is
// propagated verbatim; the result code travels in Details.
func BusinessFailure(explanation, resultCode string) *DomainError {
	return NewDomainError(ErrorCodeGatewayBusiness, explanation).
		WithDetail("result_code", resultCode)
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsTransportError checks if an error is a gateway transport failure
func IsTransportError(err error) bool {
	return GetErrorCode(err) == ErrorCodeGatewayTransport
}

// IsBusinessError checks if an error is a gateway business rejection
func IsBusinessError(err error) bool {
	return GetErrorCode(err) == ErrorCodeGatewayBusiness
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeValidationFailed ||
		code == ErrorCodeValidationAmountInvalid ||
		code == ErrorCodeValidationInvalidState ||
		code == ErrorCodeValidationMissingField
}

// IsNotFoundError checks if an error represents a "not found" condition
func IsNotFoundError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeTxnNotFound ||
		code == ErrorCodeSubscriptionNotFound ||
		code == ErrorCodeCountryNotFound
}

// Structured error instances
var (
	ErrTxnNotFound          = NewDomainError(ErrorCodeTxnNotFound, "transaction not found")
	ErrSubscriptionNotFound = NewDomainError(ErrorCodeSubscriptionNotFound, "subscription not found")
	ErrCountryNotFound      = NewDomainError(ErrorCodeCountryNotFound, "country not configured")

	ErrTxnNotRefundable         = NewDomainError(ErrorCodeValidationInvalidState, "transaction is not refundable")
	ErrRefundExceedsRemaining   = NewDomainError(ErrorCodeValidationAmountInvalid, "refund amount exceeds remaining refundable amount")
	ErrTxnNotCancellable        = NewDomainError(ErrorCodeValidationInvalidState, "only unpaid transactions can be cancelled")
	ErrSubscriptionNotDue       = NewDomainError(ErrorCodeValidationInvalidState, "subscription is not due for billing")
	ErrSubscriptionCancelled    = NewDomainError(ErrorCodeValidationInvalidState, "cannot update cancelled subscription")
	ErrSubscriptionNotActive    = NewDomainError(ErrorCodeValidationInvalidState, "can only pause active subscriptions")
	ErrSubscriptionNotPaused    = NewDomainError(ErrorCodeValidationInvalidState, "can only resume paused subscriptions")
	ErrRecurringNotSupported    = NewDomainError(ErrorCodeValidationFailed, "recurring billing is not supported in this country")
	ErrValidationAmountInvalid  = NewDomainError(ErrorCodeValidationAmountInvalid, "invalid amount")
	ErrValidationMissingField   = NewDomainError(ErrorCodeValidationMissingField, "required field missing")
	ErrInvalidGatewayResponse   = NewDomainError(ErrorCodeGatewayMalformed, "malformed gateway response")

	ErrInternalError = NewDomainError(ErrorCodeInternalError, "internal server error")
	ErrDatabaseError = NewDomainError(ErrorCodeDatabaseError, "database error")
)

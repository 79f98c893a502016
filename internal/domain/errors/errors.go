package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Repository-level sentinels
var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrConflict      = errors.New("state changed concurrently")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
)

// Stable error codes surfaced to callers of the handler contract and the settlement bridge.
const (
	CodeInvalidPixKey             = "INVALID_PIX_KEY"
	CodeInvalidCLABE              = "INVALID_CLABE"
	CodeAmountTooLow              = "AMOUNT_TOO_LOW"
	CodeInvalidAmount             = "INVALID_AMOUNT"
	CodeHandlerNotFound           = "HANDLER_NOT_FOUND"
	CodeInstrumentNotFound        = "INSTRUMENT_NOT_FOUND"
	CodeInstrumentAlreadyUsed     = "INSTRUMENT_ALREADY_USED"
	CodeUnsupportedInstrumentType = "UNSUPPORTED_INSTRUMENT_TYPE"
	CodeUnsupportedCurrency       = "UNSUPPORTED_CURRENCY"
	CodePaymentNotFound           = "PAYMENT_NOT_FOUND"
	CodeInvalidPaymentStatus      = "INVALID_PAYMENT_STATUS"
	CodeInvalidRefundAmount       = "INVALID_REFUND_AMOUNT"
	CodeNoConnectedAccount        = "NO_CONNECTED_ACCOUNT"
	CodeRequiresAction            = "REQUIRES_ACTION"
	CodeMissingTenantID           = "MISSING_TENANT_ID"
	CodeInvalidHandlerConfig      = "INVALID_HANDLER_CONFIG"
	CodePaymentFailed             = "PAYMENT_FAILED"
	CodeCaptureFailed             = "CAPTURE_FAILED"
	CodeInvalidRail               = "INVALID_RAIL"
	CodeSettlementNotFound        = "SETTLEMENT_NOT_FOUND"
	CodeInvalidSettlementStatus   = "INVALID_SETTLEMENT_STATUS"
	CodeDepositNotDetected        = "DEPOSIT_NOT_DETECTED"
	CodePayoutFailed              = "PAYOUT_FAILED"
	CodeInvalidSignature          = "INVALID_SIGNATURE"
	CodeBadRequest                = "BAD_REQUEST"
	CodeUnauthorized              = "UNAUTHORIZED"
	CodeForbidden                 = "FORBIDDEN"

	// Retryable: transient failures in an external dependency.
	CodeHandlerInitFailed   = "HANDLER_INIT_FAILED"
	CodeCaptureError        = "CAPTURE_ERROR"
	CodeRefundFailed        = "REFUND_FAILED"
	CodePaymentIntentFailed = "PAYMENT_INTENT_FAILED"
	CodeRateUnavailable     = "EXCHANGE_RATE_UNAVAILABLE"
	CodeRequestInProgress   = "REQUEST_IN_PROGRESS"
	CodeInternal            = "INTERNAL_ERROR"
)

// AppError is the error value returned for every expected business failure.
type AppError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Status    int    `json:"-"`
	Err       error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches two AppErrors by code so callers can use errors.Is against a template.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewAppError creates a new app error
func NewAppError(code, message string, retryable bool, status int, err error) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: retryable,
		Status:    status,
		Err:       err,
	}
}

// AsAppError extracts an AppError from err. Errors that carry no code are
// wrapped as a retryable INTERNAL_ERROR so callers can apply one retry policy.
func AsAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return InternalError(err)
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsRetryable reports whether the caller may retry with the same idempotency key.
func IsRetryable(err error) bool {
	appErr := AsAppError(err)
	return appErr != nil && appErr.Retryable
}

func nonRetryable(code string, status int, message string) *AppError {
	return NewAppError(code, message, false, status, nil)
}

func InvalidPixKey(message string) *AppError {
	return nonRetryable(CodeInvalidPixKey, http.StatusBadRequest, message)
}

func InvalidCLABE(message string) *AppError {
	return nonRetryable(CodeInvalidCLABE, http.StatusBadRequest, message)
}

func AmountTooLow(amount, minimum string) *AppError {
	return nonRetryable(CodeAmountTooLow, http.StatusBadRequest,
		fmt.Sprintf("amount %s is below the minimum of %s", amount, minimum))
}

func InvalidAmount(message string) *AppError {
	return nonRetryable(CodeInvalidAmount, http.StatusBadRequest, message)
}

func HandlerNotFound(handlerID string) *AppError {
	return nonRetryable(CodeHandlerNotFound, http.StatusNotFound,
		fmt.Sprintf("payment handler '%s' is not registered", handlerID))
}

func InstrumentNotFound(instrumentID string) *AppError {
	return nonRetryable(CodeInstrumentNotFound, http.StatusNotFound,
		fmt.Sprintf("instrument '%s' not found", instrumentID))
}

func InstrumentAlreadyUsed(instrumentID string) *AppError {
	return nonRetryable(CodeInstrumentAlreadyUsed, http.StatusConflict,
		fmt.Sprintf("instrument '%s' is single-use and already has a payment", instrumentID))
}

func UnsupportedInstrumentType(handlerID, instrumentType string) *AppError {
	return nonRetryable(CodeUnsupportedInstrumentType, http.StatusBadRequest,
		fmt.Sprintf("handler '%s' does not support instrument type '%s'", handlerID, instrumentType))
}

func UnsupportedCurrency(handlerID, currency string) *AppError {
	return nonRetryable(CodeUnsupportedCurrency, http.StatusBadRequest,
		fmt.Sprintf("handler '%s' does not support currency '%s'", handlerID, currency))
}

func PaymentNotFound(paymentID string) *AppError {
	return nonRetryable(CodePaymentNotFound, http.StatusNotFound,
		fmt.Sprintf("payment '%s' not found", paymentID))
}

func InvalidPaymentStatus(paymentID, status string) *AppError {
	return nonRetryable(CodeInvalidPaymentStatus, http.StatusConflict,
		fmt.Sprintf("payment '%s' is in status '%s'", paymentID, status))
}

func InvalidRefundAmount(requested, refundable int64) *AppError {
	return nonRetryable(CodeInvalidRefundAmount, http.StatusBadRequest,
		fmt.Sprintf("refund amount %d exceeds refundable remainder %d", requested, refundable))
}

func NoConnectedAccount(tenantID, handlerType string) *AppError {
	return nonRetryable(CodeNoConnectedAccount, http.StatusUnprocessableEntity,
		fmt.Sprintf("tenant '%s' has no connected %s account", tenantID, handlerType))
}

func RequiresAction(intentID string) *AppError {
	return nonRetryable(CodeRequiresAction, http.StatusUnprocessableEntity,
		fmt.Sprintf("payment intent '%s' requires customer action", intentID))
}

func MissingTenantID() *AppError {
	return nonRetryable(CodeMissingTenantID, http.StatusBadRequest, "metadata.tenantId is required")
}

func InvalidHandlerConfig(handlerID, message string) *AppError {
	return nonRetryable(CodeInvalidHandlerConfig, http.StatusUnprocessableEntity,
		fmt.Sprintf("handler '%s': %s", handlerID, message))
}

func PaymentFailed(message string) *AppError {
	return nonRetryable(CodePaymentFailed, http.StatusPaymentRequired, message)
}

func CaptureFailed(message string) *AppError {
	return nonRetryable(CodeCaptureFailed, http.StatusPaymentRequired, message)
}

func InvalidRail(rail string) *AppError {
	return nonRetryable(CodeInvalidRail, http.StatusBadRequest,
		fmt.Sprintf("unsupported settlement rail '%s'", rail))
}

func SettlementNotFound(ref string) *AppError {
	return nonRetryable(CodeSettlementNotFound, http.StatusNotFound,
		fmt.Sprintf("settlement '%s' not found", ref))
}

func InvalidSettlementStatus(settlementID, status string) *AppError {
	return nonRetryable(CodeInvalidSettlementStatus, http.StatusConflict,
		fmt.Sprintf("settlement '%s' is in status '%s'", settlementID, status))
}

func DepositNotDetected(settlementID string) *AppError {
	return nonRetryable(CodeDepositNotDetected, http.StatusConflict,
		fmt.Sprintf("no deposit detected for settlement '%s'", settlementID))
}

func PayoutFailed(settlementID string, err error) *AppError {
	return NewAppError(CodePayoutFailed, fmt.Sprintf("payout for settlement '%s' failed", settlementID),
		false, http.StatusBadGateway, err)
}

func InvalidSignature(message string) *AppError {
	return nonRetryable(CodeInvalidSignature, http.StatusUnauthorized, message)
}

func BadRequest(message string) *AppError {
	return NewAppError(CodeBadRequest, message, false, http.StatusBadRequest, ErrInvalidInput)
}

func Unauthorized(message string) *AppError {
	return NewAppError(CodeUnauthorized, message, false, http.StatusUnauthorized, ErrUnauthorized)
}

func Forbidden(message string) *AppError {
	return nonRetryable(CodeForbidden, http.StatusForbidden, message)
}

// RequestInProgress is returned while an earlier request with the same
// idempotency key is still running.
func RequestInProgress() *AppError {
	return NewAppError(CodeRequestInProgress, "a request with this idempotency key is in progress", true, http.StatusConflict, nil)
}

func HandlerInitFailed(handlerType string, err error) *AppError {
	return NewAppError(CodeHandlerInitFailed,
		fmt.Sprintf("failed to initialize %s client", handlerType), true, http.StatusServiceUnavailable, err)
}

func CaptureError(intentID string, err error) *AppError {
	return NewAppError(CodeCaptureError,
		fmt.Sprintf("capture of '%s' did not complete", intentID), true, http.StatusBadGateway, err)
}

func RefundFailed(paymentID string, err error) *AppError {
	return NewAppError(CodeRefundFailed,
		fmt.Sprintf("refund of payment '%s' failed", paymentID), true, http.StatusBadGateway, err)
}

func PaymentIntentFailed(err error) *AppError {
	return NewAppError(CodePaymentIntentFailed, "payment intent creation failed", true, http.StatusBadGateway, err)
}

func ExchangeRateUnavailable(currency string) *AppError {
	return NewAppError(CodeRateUnavailable,
		fmt.Sprintf("no exchange rate configured for %s", currency), true, http.StatusServiceUnavailable, nil)
}

func InternalError(err error) *AppError {
	return NewAppError(CodeInternal, "internal server error", true, http.StatusInternalServerError, err)
}

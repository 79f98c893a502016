package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Constructors(t *testing.T) {
	cases := []struct {
		err       *AppError
		code      string
		status    int
		retryable bool
	}{
		{InvalidPixKey("bad"), CodeInvalidPixKey, http.StatusBadRequest, false},
		{InvalidCLABE("bad"), CodeInvalidCLABE, http.StatusBadRequest, false},
		{AmountTooLow("0.50", "1.00"), CodeAmountTooLow, http.StatusBadRequest, false},
		{HandlerNotFound("x"), CodeHandlerNotFound, http.StatusNotFound, false},
		{InstrumentAlreadyUsed("i"), CodeInstrumentAlreadyUsed, http.StatusConflict, false},
		{InvalidPaymentStatus("p", "refunded"), CodeInvalidPaymentStatus, http.StatusConflict, false},
		{NoConnectedAccount("t", "stripe"), CodeNoConnectedAccount, http.StatusUnprocessableEntity, false},
		{MissingTenantID(), CodeMissingTenantID, http.StatusBadRequest, false},
		{SettlementNotFound("s"), CodeSettlementNotFound, http.StatusNotFound, false},
		{Forbidden("no"), CodeForbidden, http.StatusForbidden, false},
		{HandlerInitFailed("stripe", stderrors.New("x")), CodeHandlerInitFailed, 0, true},
		{CaptureError("pi", stderrors.New("x")), CodeCaptureError, 0, true},
		{RefundFailed("p", stderrors.New("x")), CodeRefundFailed, 0, true},
		{PaymentIntentFailed(stderrors.New("x")), CodePaymentIntentFailed, 0, true},
		{ExchangeRateUnavailable("BRL"), CodeRateUnavailable, http.StatusServiceUnavailable, true},
		{RequestInProgress(), CodeRequestInProgress, http.StatusConflict, true},
		{InternalError(stderrors.New("db down")), CodeInternal, http.StatusInternalServerError, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, tc.err.Code)
		assert.Equal(t, tc.retryable, tc.err.Retryable, tc.code)
		if tc.status != 0 {
			assert.Equal(t, tc.status, tc.err.Status, tc.code)
		}
		assert.NotEmpty(t, tc.err.Message)
	}
}

func TestAsAppError(t *testing.T) {
	assert.Nil(t, AsAppError(nil))

	plain := AsAppError(stderrors.New("boom"))
	assert.Equal(t, CodeInternal, plain.Code)
	assert.True(t, plain.Retryable)

	wrapped := fmt.Errorf("ctx: %w", PaymentNotFound("p1"))
	got := AsAppError(wrapped)
	assert.Equal(t, CodePaymentNotFound, got.Code)
	assert.True(t, HasCode(wrapped, CodePaymentNotFound))
	assert.False(t, IsRetryable(wrapped))
	assert.True(t, IsRetryable(stderrors.New("unknown")))
}

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	err := BadRequest("transferId is required")
	assert.Equal(t, "BAD_REQUEST: transferId is required: invalid input", err.Error())
	assert.ErrorIs(t, err, ErrInvalidInput)

	noCause := InvalidRail("ach")
	assert.Equal(t, "INVALID_RAIL: unsupported settlement rail 'ach'", noCause.Error())

	assert.ErrorIs(t, HandlerNotFound("a"), &AppError{Code: CodeHandlerNotFound})
	assert.NotErrorIs(t, HandlerNotFound("a"), &AppError{Code: CodePaymentNotFound})
}

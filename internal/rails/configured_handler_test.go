package rails_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"payos.backend/internal/domain/entities"
	domainerrors "payos.backend/internal/domain/errors"
	"payos.backend/internal/rails"
)

func newDemoHandler(t *testing.T, mode entities.IntegrationMode) (*rails.ConfiguredHandler, *gorm.DB) {
	t.Helper()
	store, db := newTestStore(t)
	row := configRow("demo_pay", mode, []string{"card", "pix", "spei"}, []string{"USD", "BRL", "MXN"})
	h, err := rails.NewConfiguredHandler(row, store)
	require.NoError(t, err)
	return h, db
}

func cardInstrument(t *testing.T, h rails.Handler) *entities.PaymentInstrument {
	t.Helper()
	inst, err := h.AcquireInstrument(context.Background(), rails.AcquireInstrumentInput{
		Type:     "card",
		Currency: "USD",
		Config:   map[string]interface{}{"number": "4242424242424242", "cvc": "123", "brand": "visa"},
	})
	require.NoError(t, err)
	return inst
}

func TestConfiguredHandler_RejectsUnknownMode(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := rails.NewConfiguredHandler(configRow("x", entities.IntegrationModeCustom, nil, nil), store)
	requireCode(t, err, domainerrors.CodeInvalidHandlerConfig)
}

func TestConfiguredHandler_AcquireInstrument(t *testing.T) {
	h, db := newDemoHandler(t, entities.IntegrationModeDemo)
	ctx := context.Background()

	inst := cardInstrument(t, h)
	assert.Equal(t, "demo_pay", inst.HandlerID)
	assert.Equal(t, "4242", inst.Last4)
	assert.True(t, inst.Reusable)
	assert.NotContains(t, inst.Data, "number")
	assert.NotContains(t, inst.Data, "cvc")
	assert.Equal(t, "visa", inst.DataString("brand"))

	pix, err := h.AcquireInstrument(ctx, rails.AcquireInstrumentInput{
		Type: "pix", Currency: "BRL", Config: pixConfig("user@example.com", "email"),
	})
	require.NoError(t, err)
	assert.False(t, pix.Reusable)
	assert.Equal(t, "user@example.com", pix.DataString("pixKey"))

	_, err = h.AcquireInstrument(ctx, rails.AcquireInstrumentInput{Type: "wallet", Currency: "USD"})
	requireCode(t, err, domainerrors.CodeUnsupportedInstrumentType)

	_, err = h.AcquireInstrument(ctx, rails.AcquireInstrumentInput{Type: "card", Currency: "EUR"})
	requireCode(t, err, domainerrors.CodeUnsupportedCurrency)

	assert.Equal(t, int64(2), countRows(t, db, "payment_handler_instruments"))
}

func TestConfiguredHandler_MalformedRecipientNeverPersists(t *testing.T) {
	h, db := newDemoHandler(t, entities.IntegrationModeDemo)
	ctx := context.Background()

	cases := []struct {
		name string
		in   rails.AcquireInstrumentInput
		code string
	}{
		{"empty pix key", rails.AcquireInstrumentInput{Type: "pix", Currency: "BRL", Config: pixConfig("", "email")}, domainerrors.CodeInvalidPixKey},
		{"bad email", rails.AcquireInstrumentInput{Type: "pix", Currency: "BRL", Config: pixConfig("not-an-email", "email")}, domainerrors.CodeInvalidPixKey},
		{"bad cpf", rails.AcquireInstrumentInput{Type: "pix", Currency: "BRL", Config: pixConfig("123", "cpf")}, domainerrors.CodeInvalidPixKey},
		{"short clabe", rails.AcquireInstrumentInput{Type: "spei", Currency: "MXN", Config: map[string]interface{}{"clabe": "01234567890123456", "name": "Juan"}}, domainerrors.CodeInvalidCLABE},
		{"alpha clabe", rails.AcquireInstrumentInput{Type: "spei", Currency: "MXN", Config: map[string]interface{}{"clabe": "01234567890123456X", "name": "Juan"}}, domainerrors.CodeInvalidCLABE},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.AcquireInstrument(ctx, tc.in)
			appErr := requireCode(t, err, tc.code)
			assert.False(t, appErr.Retryable)
		})
	}
	assert.Equal(t, int64(0), countRows(t, db, "payment_handler_instruments"))
}

func TestConfiguredHandler_ProcessPayment_DemoAutomatic(t *testing.T) {
	h, _ := newDemoHandler(t, entities.IntegrationModeDemo)
	ctx := context.Background()
	inst := cardInstrument(t, h)

	p, err := h.ProcessPayment(ctx, rails.ProcessPaymentInput{InstrumentID: inst.ID, Amount: 1000, Currency: "usd"})
	require.NoError(t, err)
	assert.Equal(t, entities.PaymentStatusSucceeded, p.Status)
	assert.Equal(t, string(entities.CaptureStatusCaptured), p.CaptureStatus.String)
	assert.Equal(t, "USD", p.Currency)
}

func TestConfiguredHandler_ProcessPayment_Validation(t *testing.T) {
	h, db := newDemoHandler(t, entities.IntegrationModeDemo)
	ctx := context.Background()
	inst := cardInstrument(t, h)

	_, err := h.ProcessPayment(ctx, rails.ProcessPaymentInput{InstrumentID: inst.ID, Amount: 0, Currency: "USD"})
	requireCode(t, err, domainerrors.CodeInvalidAmount)

	_, err = h.ProcessPayment(ctx, rails.ProcessPaymentInput{InstrumentID: inst.ID, Amount: -5, Currency: "USD"})
	requireCode(t, err, domainerrors.CodeInvalidAmount)

	_, err = h.ProcessPayment(ctx, rails.ProcessPaymentInput{InstrumentID: uuid.New(), Amount: 100, Currency: "USD"})
	appErr := requireCode(t, err, domainerrors.CodeInstrumentNotFound)
	assert.False(t, appErr.Retryable)

	assert.Equal(t, int64(0), countRows(t, db, "handler_payments"))
}

func TestConfiguredHandler_ProcessPayment_Idempotent(t *testing.T) {
	h, db := newDemoHandler(t, entities.IntegrationModeDemo)
	ctx := context.Background()
	inst := cardInstrument(t, h)

	in := rails.ProcessPaymentInput{InstrumentID: inst.ID, Amount: 1000, Currency: "USD", IdempotencyKey: "order-42"}
	first, err := h.ProcessPayment(ctx, in)
	require.NoError(t, err)
	second, err := h.ProcessPayment(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, int64(1), countRows(t, db, "handler_payments"))
}

func TestConfiguredHandler_ManualCaptureAndVoid(t *testing.T) {
	h, _ := newDemoHandler(t, entities.IntegrationModeDemo)
	ctx := context.Background()
	inst := cardInstrument(t, h)

	p, err := h.ProcessPayment(ctx, rails.ProcessPaymentInput{
		InstrumentID: inst.ID, Amount: 500, Currency: "USD", CaptureMethod: entities.CaptureMethodManual,
	})
	require.NoError(t, err)
	assert.Equal(t, entities.PaymentStatusProcessing, p.Status)
	assert.Equal(t, string(entities.CaptureStatusPending), p.CaptureStatus.String)

	captured, err := h.CapturePayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.PaymentStatusSucceeded, captured.Status)
	assert.Equal(t, string(entities.CaptureStatusCaptured), captured.CaptureStatus.String)

	_, err = h.VoidPayment(ctx, p.ID)
	requireCode(t, err, domainerrors.CodeInvalidPaymentStatus)

	other, err := h.ProcessPayment(ctx, rails.ProcessPaymentInput{
		InstrumentID: inst.ID, Amount: 700, Currency: "USD", CaptureMethod: entities.CaptureMethodManual,
	})
	require.NoError(t, err)
	voided, err := h.VoidPayment(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.PaymentStatusCancelled, voided.Status)
	assert.Equal(t, string(entities.CaptureStatusVoided), voided.CaptureStatus.String)
}

func TestConfiguredHandler_PartialThenFullRefund(t *testing.T) {
	h, db := newDemoHandler(t, entities.IntegrationModeDemo)
	ctx := context.Background()
	inst := cardInstrument(t, h)

	p, err := h.ProcessPayment(ctx, rails.ProcessPaymentInput{InstrumentID: inst.ID, Amount: 10, Currency: "USD"})
	require.NoError(t, err)

	_, err = h.RefundPayment(ctx, rails.RefundPaymentInput{PaymentID: p.ID, Amount: 11})
	requireCode(t, err, domainerrors.CodeInvalidRefundAmount)
	assert.Equal(t, int64(0), countRows(t, db, "handler_refunds"))

	r1, err := h.RefundPayment(ctx, rails.RefundPaymentInput{PaymentID: p.ID, Amount: 6, Reason: "partial"})
	require.NoError(t, err)
	assert.Equal(t, int64(6), r1.Amount)
	assert.Equal(t, entities.RefundStatusSucceeded, r1.Status)

	status, err := h.GetPaymentStatus(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.PaymentStatusSucceeded, status.Status)
	assert.Equal(t, int64(6), status.RefundedTotal)

	_, err = h.RefundPayment(ctx, rails.RefundPaymentInput{PaymentID: p.ID, Amount: 5})
	requireCode(t, err, domainerrors.CodeInvalidRefundAmount)

	r2, err := h.RefundPayment(ctx, rails.RefundPaymentInput{PaymentID: p.ID, Amount: 4})
	require.NoError(t, err)
	assert.Equal(t, int64(4), r2.Amount)

	status, err = h.GetPaymentStatus(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.PaymentStatusRefunded, status.Status)
	assert.Equal(t, int64(10), status.RefundedTotal)

	_, err = h.RefundPayment(ctx, rails.RefundPaymentInput{PaymentID: p.ID, Amount: 1})
	requireCode(t, err, domainerrors.CodeInvalidPaymentStatus)
	assert.Equal(t, int64(2), countRows(t, db, "handler_refunds"))
}

func TestConfiguredHandler_RefundDefaultsToRemainder(t *testing.T) {
	h, _ := newDemoHandler(t, entities.IntegrationModeDemo)
	ctx := context.Background()
	inst := cardInstrument(t, h)

	p, err := h.ProcessPayment(ctx, rails.ProcessPaymentInput{InstrumentID: inst.ID, Amount: 900, Currency: "USD"})
	require.NoError(t, err)
	_, err = h.RefundPayment(ctx, rails.RefundPaymentInput{PaymentID: p.ID, Amount: 400})
	require.NoError(t, err)

	r, err := h.RefundPayment(ctx, rails.RefundPaymentInput{PaymentID: p.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(500), r.Amount)

	_, err = h.RefundPayment(ctx, rails.RefundPaymentInput{PaymentID: uuid.New()})
	requireCode(t, err, domainerrors.CodePaymentNotFound)
}

func TestConfiguredHandler_WebhookEvents(t *testing.T) {
	h, _ := newDemoHandler(t, entities.IntegrationModeWebhook)
	ctx := context.Background()
	inst := cardInstrument(t, h)

	p, err := h.ProcessPayment(ctx, rails.ProcessPaymentInput{InstrumentID: inst.ID, Amount: 250, Currency: "USD"})
	require.NoError(t, err)
	assert.Equal(t, entities.PaymentStatusPending, p.Status)

	_, err = h.RefundPayment(ctx, rails.RefundPaymentInput{PaymentID: p.ID})
	requireCode(t, err, domainerrors.CodeInvalidPaymentStatus)

	done, err := h.ApplyPaymentEvent(ctx, p.ID, entities.PaymentStatusSucceeded, "")
	require.NoError(t, err)
	assert.Equal(t, entities.PaymentStatusSucceeded, done.Status)

	again, err := h.ApplyPaymentEvent(ctx, p.ID, entities.PaymentStatusSucceeded, "")
	require.NoError(t, err)
	assert.Equal(t, done.UpdatedAt, again.UpdatedAt)

	_, err = h.ApplyPaymentEvent(ctx, p.ID, entities.PaymentStatusFailed, "late decline")
	requireCode(t, err, domainerrors.CodeInvalidPaymentStatus)

	_, err = h.ApplyPaymentEvent(ctx, p.ID, entities.PaymentStatusRefunded, "")
	requireCode(t, err, domainerrors.CodeBadRequest)
}

func TestConfiguredHandler_FailedPaymentIsRetriedWithSameKey(t *testing.T) {
	h, db := newDemoHandler(t, entities.IntegrationModeWebhook)
	ctx := context.Background()
	inst := cardInstrument(t, h)

	in := rails.ProcessPaymentInput{InstrumentID: inst.ID, Amount: 300, Currency: "USD", IdempotencyKey: "retry-1"}
	p, err := h.ProcessPayment(ctx, in)
	require.NoError(t, err)
	failed, err := h.ApplyPaymentEvent(ctx, p.ID, entities.PaymentStatusFailed, "issuer declined")
	require.NoError(t, err)
	assert.Equal(t, "issuer declined", failed.FailureReason.String)

	retried, err := h.ProcessPayment(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, p.ID, retried.ID)
	assert.Equal(t, entities.PaymentStatusPending, retried.Status)
	assert.False(t, retried.FailureReason.Valid)
	assert.Equal(t, int64(1), countRows(t, db, "handler_payments"))
}

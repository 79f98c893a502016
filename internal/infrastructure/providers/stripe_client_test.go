package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	domain "payos.backend/internal/domain/providers"
)

func newStripeTestBackends(t *testing.T, handler http.HandlerFunc) *stripe.Backends {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
}

func TestNewStripeClient_RequiresKey(t *testing.T) {
	_, err := NewStripeClient(StripeCredentials{}, nil)
	require.Error(t, err)
}

func TestStripeClient_CreatePaymentIntent(t *testing.T) {
	backends := newStripeTestBackends(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/payment_intents", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "manual", r.PostForm.Get("capture_method"))
		assert.Equal(t, "card", r.PostForm.Get("payment_method_types[0]"))
		assert.Equal(t, "usd", r.PostForm.Get("currency"))
		assert.Equal(t, "1000", r.PostForm.Get("amount"))
		assert.Equal(t, "pm_card_visa", r.PostForm.Get("payment_method"))
		assert.Equal(t, "true", r.PostForm.Get("confirm"))
		assert.Equal(t, "pay-1", r.PostForm.Get("metadata[payment_id]"))
		assert.Equal(t, "pay-1", r.Header.Get("Idempotency-Key"))
		assert.Equal(t, "acct_123", r.Header.Get("Stripe-Account"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_1","object":"payment_intent","amount":1000,"status":"requires_capture"}`))
	})

	c, err := NewStripeClient(StripeCredentials{SecretKey: "sk_test_123", AccountID: "acct_123"}, backends)
	require.NoError(t, err)

	intent, err := c.CreatePaymentIntent(context.Background(), domain.IntentRequest{
		Amount:            1000,
		Currency:          "USD",
		PaymentMethodType: "wallet",
		PaymentMethod:     "pm_card_visa",
		IdempotencyKey:    "pay-1",
		Metadata:          map[string]string{"payment_id": "pay-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_1", intent.ID)
	assert.Equal(t, domain.StatusPending, intent.Status)
	assert.Equal(t, int64(1000), intent.Amount)
}

func TestStripeClient_CaptureAndRefund(t *testing.T) {
	backends := newStripeTestBackends(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/payment_intents/pi_1/capture":
			assert.Equal(t, "600", r.PostForm.Get("amount_to_capture"))
			_, _ = w.Write([]byte(`{"id":"pi_1","object":"payment_intent","amount":1000,"amount_received":600,"status":"succeeded"}`))
		case "/v1/refunds":
			assert.Equal(t, "pi_1", r.PostForm.Get("payment_intent"))
			assert.Equal(t, "250", r.PostForm.Get("amount"))
			assert.Equal(t, "refund:pi_1:250:0", r.Header.Get("Idempotency-Key"))
			_, _ = w.Write([]byte(`{"id":"re_1","object":"refund","amount":250,"status":"pending"}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})
	c, err := NewStripeClient(StripeCredentials{SecretKey: "sk_test_123"}, backends)
	require.NoError(t, err)

	captured, err := c.CapturePayment(context.Background(), "pi_1", 600)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSucceeded, captured.Status)
	assert.Equal(t, int64(600), captured.AmountCaptured)

	ref, err := c.RefundPayment(context.Background(), domain.RefundRequest{IntentID: "pi_1", Amount: 250, IdempotencyKey: "refund:pi_1:250:0"})
	require.NoError(t, err)
	assert.Equal(t, "re_1", ref.ID)
	assert.Equal(t, domain.StatusPending, ref.Status)
}

func TestStripeClient_ErrorMapping(t *testing.T) {
	status := http.StatusPaymentRequired
	backends := newStripeTestBackends(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status == http.StatusPaymentRequired {
			_, _ = w.Write([]byte(`{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`))
			return
		}
		_, _ = w.Write([]byte(`{"error":{"type":"api_error","message":"internal"}}`))
	})
	c, err := NewStripeClient(StripeCredentials{SecretKey: "sk_test_123"}, backends)
	require.NoError(t, err)

	_, err = c.CreatePaymentIntent(context.Background(), domain.IntentRequest{Amount: 100, Currency: "usd", PaymentMethodType: "card"})
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "card_declined", perr.Code)
	assert.False(t, perr.Retryable)
	assert.False(t, domain.Retryable(err))

	status = http.StatusInternalServerError
	_, err = c.CapturePayment(context.Background(), "pi_1", 0)
	require.True(t, errors.As(err, &perr))
	assert.True(t, perr.Retryable)
	assert.True(t, domain.Retryable(err))
}

func TestStripeClient_GetPaymentIntent(t *testing.T) {
	backends := newStripeTestBackends(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/v1/payment_intents/pi_9", r.URL.Path)
		assert.Equal(t, "acct_123", r.Header.Get("Stripe-Account"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_9","object":"payment_intent","amount":2500,"status":"succeeded"}`))
	})
	c, err := NewStripeClient(StripeCredentials{SecretKey: "sk_test_123", AccountID: "acct_123"}, backends)
	require.NoError(t, err)

	intent, err := c.GetPaymentIntent(context.Background(), "pi_9")
	require.NoError(t, err)
	assert.Equal(t, "pi_9", intent.ID)
	assert.Equal(t, domain.StatusSucceeded, intent.Status)
	assert.Equal(t, int64(2500), intent.Amount)
}

func TestStripeStatusMapping(t *testing.T) {
	assert.Equal(t, domain.StatusRequiresAction, intentStatus(stripe.PaymentIntentStatusRequiresAction))
	assert.Equal(t, domain.StatusCanceled, intentStatus(stripe.PaymentIntentStatusCanceled))
	assert.Equal(t, domain.StatusProcessing, intentStatus(stripe.PaymentIntentStatusProcessing))
	assert.Equal(t, domain.StatusFailed, refundStatus(stripe.RefundStatusFailed))
	assert.Equal(t, "customer_balance", stripePaymentMethodType("bank_transfer"))
	assert.Equal(t, "pix", stripePaymentMethodType("pix"))
}

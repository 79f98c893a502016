package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	domain "payos.backend/internal/domain/providers"
)

// StripeCredentials is the decrypted credential document for the stripe family
type StripeCredentials struct {
	SecretKey string `json:"secretKey"`
	AccountID string `json:"accountId,omitempty"`
}

// StripeClient acts on one tenant's Stripe account
type StripeClient struct {
	api       *client.API
	accountID string
}

// NewStripeClient creates a client. backends may be nil for the live API.
func NewStripeClient(creds StripeCredentials, backends *stripe.Backends) (*StripeClient, error) {
	if strings.TrimSpace(creds.SecretKey) == "" {
		return nil, errors.New("stripe secret key is required")
	}
	sc := &client.API{}
	sc.Init(creds.SecretKey, backends)
	return &StripeClient{api: sc, accountID: creds.AccountID}, nil
}

func (c *StripeClient) params(ctx context.Context, p *stripe.Params, idempotencyKey string) {
	p.Context = ctx
	if idempotencyKey != "" {
		p.IdempotencyKey = stripe.String(idempotencyKey)
	}
	if c.accountID != "" {
		p.SetStripeAccount(c.accountID)
	}
}

// CreatePaymentIntent creates a manual-capture intent and confirms it when a
// payment method token is known.
func (c *StripeClient) CreatePaymentIntent(ctx context.Context, req domain.IntentRequest) (*domain.Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(req.Amount),
		Currency:           stripe.String(strings.ToLower(req.Currency)),
		PaymentMethodTypes: stripe.StringSlice([]string{stripePaymentMethodType(req.PaymentMethodType)}),
		CaptureMethod:      stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
	}
	if req.PaymentMethod != "" {
		params.PaymentMethod = stripe.String(req.PaymentMethod)
		params.Confirm = stripe.Bool(true)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	c.params(ctx, &params.Params, req.IdempotencyKey)

	pi, err := c.api.PaymentIntents.New(params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return &domain.Intent{ID: pi.ID, Status: intentStatus(pi.Status), Amount: pi.Amount}, nil
}

// CapturePayment captures amount of an authorized intent
func (c *StripeClient) CapturePayment(ctx context.Context, intentID string, amount int64) (*domain.CaptureResult, error) {
	params := &stripe.PaymentIntentCaptureParams{}
	if amount > 0 {
		params.AmountToCapture = stripe.Int64(amount)
	}
	c.params(ctx, &params.Params, "capture:"+intentID)

	pi, err := c.api.PaymentIntents.Capture(intentID, params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return &domain.CaptureResult{ID: pi.ID, Status: intentStatus(pi.Status), AmountCaptured: pi.AmountReceived}, nil
}

// RefundPayment refunds part or all of a captured intent
func (c *StripeClient) RefundPayment(ctx context.Context, req domain.RefundRequest) (*domain.RefundResult, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.IntentID),
		Amount:        stripe.Int64(req.Amount),
	}
	if req.Reason != "" {
		params.AddMetadata("reason", req.Reason)
	}
	c.params(ctx, &params.Params, req.IdempotencyKey)

	r, err := c.api.Refunds.New(params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return &domain.RefundResult{ID: r.ID, Status: refundStatus(r.Status), Amount: r.Amount}, nil
}

// GetPaymentIntent reads the current state of an intent
func (c *StripeClient) GetPaymentIntent(ctx context.Context, intentID string) (*domain.Intent, error) {
	params := &stripe.PaymentIntentParams{}
	c.params(ctx, &params.Params, "")

	pi, err := c.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return &domain.Intent{ID: pi.ID, Status: intentStatus(pi.Status), Amount: pi.Amount}, nil
}

func stripePaymentMethodType(t string) string {
	switch t {
	case "bank_transfer":
		return "customer_balance"
	case "wallet", "":
		return "card"
	}
	return t
}

func intentStatus(s stripe.PaymentIntentStatus) string {
	switch s {
	case stripe.PaymentIntentStatusSucceeded:
		return domain.StatusSucceeded
	case stripe.PaymentIntentStatusRequiresAction:
		return domain.StatusRequiresAction
	case stripe.PaymentIntentStatusProcessing:
		return domain.StatusProcessing
	case stripe.PaymentIntentStatusCanceled:
		return domain.StatusCanceled
	case stripe.PaymentIntentStatusRequiresCapture:
		return domain.StatusPending
	}
	return domain.StatusPending
}

func refundStatus(s stripe.RefundStatus) string {
	switch s {
	case stripe.RefundStatusSucceeded:
		return domain.StatusSucceeded
	case stripe.RefundStatusFailed:
		return domain.StatusFailed
	case stripe.RefundStatusCanceled:
		return domain.StatusCanceled
	}
	return domain.StatusPending
}

// ProviderError is a provider rejection with a retry hint.
type ProviderError struct {
	Provider  string
	Code      string
	Message   string
	Retryable bool
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Provider, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// RetryHint reports whether the rejection is worth retrying.
func (e *ProviderError) RetryHint() bool { return e.Retryable }

func mapStripeError(err error) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return &ProviderError{Provider: "stripe", Message: err.Error(), Retryable: true}
	}
	retryable := stripeErr.HTTPStatusCode >= http.StatusInternalServerError
	switch stripeErr.Code {
	case stripe.ErrorCodeRateLimit, stripe.ErrorCodeLockTimeout:
		retryable = true
	}
	return &ProviderError{
		Provider:  "stripe",
		Code:      string(stripeErr.Code),
		Message:   stripeErr.Msg,
		Retryable: retryable,
	}
}

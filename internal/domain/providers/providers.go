// Package providers declares the narrow contracts the core uses to reach
// external payment, custody and payout providers.
package providers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
	"payos.backend/internal/domain/entities"
)

// ErrNoCredentials is returned by a ClientFactory when a tenant has no
// credentials on file for the requested provider family.
var ErrNoCredentials = errors.New("no connected account credentials")

// Connected-account provider families.
const (
	FamilyStripe = "stripe"
	FamilyCircle = "circle"
)

// Normalized provider statuses.
const (
	StatusSucceeded      = "succeeded"
	StatusRequiresAction = "requires_action"
	StatusProcessing     = "processing"
	StatusPending        = "pending"
	StatusFailed         = "failed"
	StatusCanceled       = "canceled"
)

// IntentRequest creates a provider payment intent.
type IntentRequest struct {
	Amount            int64
	Currency          string
	PaymentMethodType string
	// PaymentMethod is the provider token stored on the instrument, if any.
	PaymentMethod  string
	IdempotencyKey string
	Metadata       map[string]string
}

// Intent is a provider payment intent in normalized form.
type Intent struct {
	ID     string
	Status string
	Amount int64
}

// CaptureResult is the outcome of an explicit capture.
type CaptureResult struct {
	ID             string
	Status         string
	AmountCaptured int64
}

// RefundRequest refunds part or all of a provider intent.
type RefundRequest struct {
	IntentID       string
	Amount         int64
	Reason         string
	IdempotencyKey string
}

// RefundResult is a provider refund in normalized form.
type RefundResult struct {
	ID     string
	Status string
	Amount int64
}

// ConnectedClient acts on one tenant's connected account.
type ConnectedClient interface {
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	CapturePayment(ctx context.Context, intentID string, amount int64) (*CaptureResult, error)
	RefundPayment(ctx context.Context, req RefundRequest) (*RefundResult, error)
	GetPaymentIntent(ctx context.Context, intentID string) (*Intent, error)
}

// Retryable reports the retry hint carried by a provider error. Errors
// without a hint, such as transport failures, count as retryable.
func Retryable(err error) bool {
	var hinted interface{ RetryHint() bool }
	if errors.As(err, &hinted) {
		return hinted.RetryHint()
	}
	return true
}

// ClientFactory returns the live client for a tenant and provider family.
type ClientFactory interface {
	Client(ctx context.Context, tenantID, handlerType string) (ConnectedClient, error)
}

// PayoutRequest creates a fiat payout. IdempotencyKey must be stable for
// one settlement.
type PayoutRequest struct {
	IdempotencyKey string
	Amount         decimal.Decimal
	Currency       string
	Rail           entities.SettlementRail
	Recipient      entities.Recipient
	Metadata       map[string]string
}

// Payout is the provider's answer to a payout request.
type Payout struct {
	ID     string
	Status string
	Raw    json.RawMessage
}

// PayoutProvider is the external fiat payout provider.
type PayoutProvider interface {
	CreatePayout(ctx context.Context, req PayoutRequest) (*Payout, error)
}

// BalanceReader reads the platform's USDC balance.
type BalanceReader interface {
	USDCBalance(ctx context.Context) (decimal.Decimal, error)
}

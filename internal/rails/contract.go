// Package rails implements the uniform payment handler contract and the
// registry that resolves handler ids to live handlers.
package rails

import (
	"context"

	"github.com/google/uuid"
	"payos.backend/internal/domain/entities"
)

// Kind tags how a handler was bound.
type Kind string

const (
	KindCode             Kind = "code"
	KindPlugin           Kind = "plugin"
	KindConfigured       Kind = "configured"
	KindConnectedAccount Kind = "connected_account"
)

// Operation names used in logs and metrics.
const (
	OpAcquireInstrument = "acquire_instrument"
	OpProcessPayment    = "process_payment"
	OpRefundPayment     = "refund_payment"
	OpGetPaymentStatus  = "get_payment_status"
)

// Metadata keys understood by handlers.
const (
	MetadataTenantID   = "tenantId"
	MetadataX402TxHash = "x402TxHash"
)

// DataPaymentMethodID is the instrument data key holding a provider
// payment method token.
const DataPaymentMethodID = "paymentMethodId"

type AcquireInstrumentInput struct {
	Type     string                 `json:"type"`
	Currency string                 `json:"currency"`
	Config   map[string]interface{} `json:"config"`
	Metadata map[string]string      `json:"metadata,omitempty"`
}

type ProcessPaymentInput struct {
	InstrumentID   uuid.UUID              `json:"instrumentId"`
	Amount         int64                  `json:"amount"`
	Currency       string                 `json:"currency"`
	IdempotencyKey string                 `json:"idempotencyKey,omitempty"`
	CaptureMethod  entities.CaptureMethod `json:"captureMethod,omitempty"`
	Metadata       map[string]string      `json:"metadata,omitempty"`
}

// RefundPaymentInput refunds Amount minor units; zero means the whole
// refundable remainder.
type RefundPaymentInput struct {
	PaymentID uuid.UUID `json:"paymentId"`
	Amount    int64     `json:"amount,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// Handler is the contract every payment rail implements. Expected business
// failures come back as *errors.AppError values.
type Handler interface {
	ID() string
	Name() string
	Kind() Kind
	SupportedTypes() []string
	SupportedCurrencies() []string

	AcquireInstrument(ctx context.Context, in AcquireInstrumentInput) (*entities.PaymentInstrument, error)
	ProcessPayment(ctx context.Context, in ProcessPaymentInput) (*entities.Payment, error)
	RefundPayment(ctx context.Context, in RefundPaymentInput) (*entities.Refund, error)
	GetPaymentStatus(ctx context.Context, paymentID uuid.UUID) (*entities.PaymentStatusView, error)
}

// Configurable is implemented by custom plugins that accept the settings of
// the configuration row they are bound to.
type Configurable interface {
	Configure(row *entities.HandlerConfig) error
}

// Descriptor is the public description of a bound handler.
type Descriptor struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Kind                Kind     `json:"kind"`
	SupportedTypes      []string `json:"supportedTypes"`
	SupportedCurrencies []string `json:"supportedCurrencies"`
}

// Describe returns the public description of h.
func Describe(h Handler) Descriptor {
	return Descriptor{
		ID:                  h.ID(),
		Name:                h.Name(),
		Kind:                h.Kind(),
		SupportedTypes:      h.SupportedTypes(),
		SupportedCurrencies: h.SupportedCurrencies(),
	}
}

package rails

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"
	"payos.backend/internal/domain/entities"
	domainerrors "payos.backend/internal/domain/errors"
	"payos.backend/internal/domain/providers"
	"payos.backend/internal/domain/repositories"
	"payos.backend/pkg/logger"
)

// paymentMethodTypes maps instrument types onto provider payment methods.
var paymentMethodTypes = map[string]string{
	"card":          "card",
	"bank_transfer": "bank_transfer",
	"pix":           "pix",
	"spei":          "spei",
	"usdc":          "usdc",
	"wallet":        "wallet",
}

// ConnectedAccountHandler delegates payments to a tenant's connected
// account at an external provider.
type ConnectedAccountHandler struct {
	core
	handlerType string
	clients     providers.ClientFactory
}

func NewConnectedAccountHandler(row *entities.HandlerConfig, store Store, clients providers.ClientFactory) *ConnectedAccountHandler {
	return &ConnectedAccountHandler{
		core: core{
			id:         row.ID,
			name:       displayName(row),
			types:      row.SupportedTypes,
			currencies: row.SupportedCurrencies,
			store:      store,
		},
		handlerType: strings.ToLower(strings.TrimSpace(row.MetadataString(entities.MetadataConnectedHandlerType))),
		clients:     clients,
	}
}

func (h *ConnectedAccountHandler) Kind() Kind { return KindConnectedAccount }

// HandlerType is the external provider family the handler delegates to.
func (h *ConnectedAccountHandler) HandlerType() string { return h.handlerType }

func (h *ConnectedAccountHandler) AcquireInstrument(ctx context.Context, in AcquireInstrumentInput) (*entities.PaymentInstrument, error) {
	return acquireGeneric(ctx, &h.core, in)
}

func (h *ConnectedAccountHandler) client(ctx context.Context, tenantID string) (providers.ConnectedClient, error) {
	if tenantID == "" {
		return nil, domainerrors.MissingTenantID()
	}
	if h.handlerType == "" {
		return nil, domainerrors.InvalidHandlerConfig(h.id, "metadata."+entities.MetadataConnectedHandlerType+" is required")
	}
	c, err := h.clients.Client(ctx, tenantID, h.handlerType)
	if err != nil {
		if errors.Is(err, providers.ErrNoCredentials) {
			return nil, domainerrors.NoConnectedAccount(tenantID, h.handlerType)
		}
		logger.Warn(ctx, "Connected account client init failed",
			zap.String("handler_id", h.id),
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
		return nil, domainerrors.HandlerInitFailed(h.handlerType, err)
	}
	return c, nil
}

func (h *ConnectedAccountHandler) ProcessPayment(ctx context.Context, in ProcessPaymentInput) (*entities.Payment, error) {
	tenantID := in.Metadata[MetadataTenantID]
	client, err := h.client(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	p, inst, existing, err := h.beginPayment(ctx, in, tenantID, nil)
	if err != nil || existing {
		return p, err
	}

	intent, err := client.CreatePaymentIntent(ctx, providers.IntentRequest{
		Amount:            p.Amount,
		Currency:          p.Currency,
		PaymentMethodType: h.paymentMethodType(ctx, inst.Type),
		PaymentMethod:     inst.DataString(DataPaymentMethodID),
		IdempotencyKey:    p.ID.String(),
		Metadata: map[string]string{
			"payment_id": p.ID.String(),
			"handler_id": h.id,
		},
	})
	if err != nil {
		h.fail(ctx, p, err.Error())
		if !providers.Retryable(err) {
			return nil, domainerrors.PaymentFailed(err.Error())
		}
		return nil, domainerrors.PaymentIntentFailed(err)
	}

	switch intent.Status {
	case providers.StatusSucceeded:
		return h.succeed(ctx, p, intent.ID)
	case providers.StatusRequiresAction:
		h.fail(ctx, p, "intent "+intent.ID+" requires customer action")
		return nil, domainerrors.RequiresAction(intent.ID)
	case providers.StatusFailed, providers.StatusCanceled:
		h.fail(ctx, p, "intent "+intent.ID+" "+intent.Status)
		return nil, domainerrors.PaymentFailed(fmt.Sprintf("payment intent %s %s", intent.ID, intent.Status))
	}

	capture, err := client.CapturePayment(ctx, intent.ID, p.Amount)
	if err != nil {
		h.fail(ctx, p, err.Error())
		if !providers.Retryable(err) {
			return nil, domainerrors.CaptureFailed(err.Error())
		}
		return nil, domainerrors.CaptureError(intent.ID, err)
	}
	switch capture.Status {
	case providers.StatusSucceeded:
		return h.succeed(ctx, p, intent.ID)
	case providers.StatusRequiresAction:
		h.fail(ctx, p, "capture "+intent.ID+" requires customer action")
		return nil, domainerrors.RequiresAction(intent.ID)
	case providers.StatusFailed, providers.StatusCanceled:
		h.fail(ctx, p, "capture "+intent.ID+" "+capture.Status)
		return nil, domainerrors.CaptureFailed(fmt.Sprintf("capture of %s %s", intent.ID, capture.Status))
	}
	return h.transition(ctx, p, repositories.PaymentStatusChange{
		From:          entities.PaymentStatusPending,
		To:            entities.PaymentStatusProcessing,
		CaptureStatus: null.StringFrom(string(entities.CaptureStatusPending)),
		ExternalID:    null.StringFrom(intent.ID),
	})
}

func (h *ConnectedAccountHandler) succeed(ctx context.Context, p *entities.Payment, intentID string) (*entities.Payment, error) {
	return h.transition(ctx, p, repositories.PaymentStatusChange{
		From:          entities.PaymentStatusPending,
		To:            entities.PaymentStatusSucceeded,
		CaptureStatus: null.StringFrom(string(entities.CaptureStatusCaptured)),
		ExternalID:    null.StringFrom(intentID),
	})
}

// paymentMethodType resolves the provider method for an instrument type.
// Unknown types fall back to card when supported, else the first supported
// type.
func (h *ConnectedAccountHandler) paymentMethodType(ctx context.Context, instrumentType string) string {
	if method, ok := paymentMethodTypes[strings.ToLower(instrumentType)]; ok {
		return method
	}
	fallback := "card"
	if !containsFold(h.types, "card") && len(h.types) > 0 {
		fallback = strings.ToLower(h.types[0])
	}
	logger.Warn(ctx, "Unmapped instrument type for connected account",
		zap.String("handler_id", h.id),
		zap.String("instrument_type", instrumentType),
		zap.String("fallback", fallback),
	)
	return fallback
}

func (h *ConnectedAccountHandler) RefundPayment(ctx context.Context, in RefundPaymentInput) (*entities.Refund, error) {
	p, err := h.loadPayment(ctx, in.PaymentID)
	if err != nil {
		return nil, err
	}
	client, err := h.client(ctx, p.TenantID.String)
	if err != nil {
		return nil, err
	}
	p, amount, err := h.refundPlan(ctx, in)
	if err != nil {
		return nil, err
	}
	refunded, err := h.store.Payments.SumRefunds(ctx, p.ID)
	if err != nil {
		return nil, domainerrors.InternalError(err)
	}

	result, err := client.RefundPayment(ctx, providers.RefundRequest{
		IntentID:       p.ExternalID.String,
		Amount:         amount,
		Reason:         in.Reason,
		IdempotencyKey: fmt.Sprintf("refund:%s:%d:%d", p.ID, refunded, amount),
	})
	if err != nil {
		return nil, domainerrors.RefundFailed(p.ID.String(), err)
	}

	status := entities.RefundStatusPending
	switch result.Status {
	case providers.StatusSucceeded:
		status = entities.RefundStatusSucceeded
	case providers.StatusFailed, providers.StatusCanceled:
		status = entities.RefundStatusFailed
	}
	if result.Amount > 0 {
		amount = result.Amount
	}
	return h.recordRefund(ctx, p.ID, amount, in.Reason, status, result.ID)
}

func (h *ConnectedAccountHandler) GetPaymentStatus(ctx context.Context, paymentID uuid.UUID) (*entities.PaymentStatusView, error) {
	p, err := h.loadPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status == entities.PaymentStatusProcessing && p.ExternalID.Valid {
		p = h.reconcile(ctx, p)
	}
	return h.statusView(ctx, p)
}

// reconcile reads the provider intent behind a processing payment and
// applies a terminal outcome. Provider failures leave the payment as stored.
func (h *ConnectedAccountHandler) reconcile(ctx context.Context, p *entities.Payment) *entities.Payment {
	client, err := h.client(ctx, p.TenantID.String)
	if err != nil {
		return p
	}
	intent, err := client.GetPaymentIntent(ctx, p.ExternalID.String)
	if err != nil {
		logger.Warn(ctx, "Payment intent lookup failed",
			zap.String("payment_id", p.ID.String()),
			zap.String("intent_id", p.ExternalID.String),
			zap.Error(err),
		)
		return p
	}

	change := repositories.PaymentStatusChange{From: entities.PaymentStatusProcessing}
	switch intent.Status {
	case providers.StatusSucceeded:
		change.To = entities.PaymentStatusSucceeded
		change.CaptureStatus = null.StringFrom(string(entities.CaptureStatusCaptured))
	case providers.StatusFailed, providers.StatusCanceled:
		change.To = entities.PaymentStatusFailed
		change.FailureReason = null.StringFrom("intent " + intent.ID + " " + intent.Status)
	default:
		return p
	}
	updated, err := h.transition(ctx, p, change)
	if err != nil {
		if fresh, getErr := h.store.Payments.GetByID(ctx, p.ID); getErr == nil {
			return fresh
		}
		return p
	}
	return updated
}

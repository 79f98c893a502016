package rails

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"payos.backend/internal/domain/entities"
	domainerrors "payos.backend/internal/domain/errors"
	"payos.backend/internal/domain/repositories"
)

// ConfiguredHandler is the generic handler built from a demo or webhook
// configuration row. Demo payments settle instantly; webhook payments wait
// for ApplyPaymentEvent.
type ConfiguredHandler struct {
	core
	mode entities.IntegrationMode
}

// NewConfiguredHandler builds a demo or webhook handler from a row.
func NewConfiguredHandler(row *entities.HandlerConfig, store Store) (*ConfiguredHandler, error) {
	if row.IntegrationMode != entities.IntegrationModeDemo && row.IntegrationMode != entities.IntegrationModeWebhook {
		return nil, domainerrors.InvalidHandlerConfig(row.ID, "unsupported integration mode '"+string(row.IntegrationMode)+"'")
	}
	return &ConfiguredHandler{
		core: core{
			id:         row.ID,
			name:       displayName(row),
			types:      row.SupportedTypes,
			currencies: row.SupportedCurrencies,
			store:      store,
		},
		mode: row.IntegrationMode,
	}, nil
}

func (h *ConfiguredHandler) Kind() Kind { return KindConfigured }

// Mode returns the row's integration mode.
func (h *ConfiguredHandler) Mode() entities.IntegrationMode { return h.mode }

func (h *ConfiguredHandler) AcquireInstrument(ctx context.Context, in AcquireInstrumentInput) (*entities.PaymentInstrument, error) {
	return acquireGeneric(ctx, &h.core, in)
}

func (h *ConfiguredHandler) ProcessPayment(ctx context.Context, in ProcessPaymentInput) (*entities.Payment, error) {
	p, _, existing, err := h.beginPayment(ctx, in, in.Metadata[MetadataTenantID], nil)
	if err != nil || existing {
		return p, err
	}

	change := repositories.PaymentStatusChange{From: entities.PaymentStatusPending}
	switch {
	case h.mode == entities.IntegrationModeWebhook:
		return p, nil
	case in.CaptureMethod == entities.CaptureMethodManual:
		change.To = entities.PaymentStatusProcessing
		change.CaptureStatus = null.StringFrom(string(entities.CaptureStatusPending))
	default:
		change.To = entities.PaymentStatusSucceeded
		change.CaptureStatus = null.StringFrom(string(entities.CaptureStatusCaptured))
	}
	return h.transition(ctx, p, change)
}

func (h *ConfiguredHandler) RefundPayment(ctx context.Context, in RefundPaymentInput) (*entities.Refund, error) {
	p, amount, err := h.refundPlan(ctx, in)
	if err != nil {
		return nil, err
	}
	return h.recordRefund(ctx, p.ID, amount, in.Reason, entities.RefundStatusSucceeded, "")
}

func (h *ConfiguredHandler) GetPaymentStatus(ctx context.Context, paymentID uuid.UUID) (*entities.PaymentStatusView, error) {
	p, err := h.loadPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return h.statusView(ctx, p)
}

// CapturePayment completes a manual-capture authorization.
func (h *ConfiguredHandler) CapturePayment(ctx context.Context, paymentID uuid.UUID) (*entities.Payment, error) {
	p, err := h.pendingCapture(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return h.transition(ctx, p, repositories.PaymentStatusChange{
		From:          entities.PaymentStatusProcessing,
		To:            entities.PaymentStatusSucceeded,
		CaptureStatus: null.StringFrom(string(entities.CaptureStatusCaptured)),
	})
}

// VoidPayment releases a manual-capture authorization.
func (h *ConfiguredHandler) VoidPayment(ctx context.Context, paymentID uuid.UUID) (*entities.Payment, error) {
	p, err := h.pendingCapture(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return h.transition(ctx, p, repositories.PaymentStatusChange{
		From:          entities.PaymentStatusProcessing,
		To:            entities.PaymentStatusCancelled,
		CaptureStatus: null.StringFrom(string(entities.CaptureStatusVoided)),
	})
}

func (h *ConfiguredHandler) pendingCapture(ctx context.Context, paymentID uuid.UUID) (*entities.Payment, error) {
	p, err := h.loadPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != entities.PaymentStatusProcessing || p.CaptureStatus.String != string(entities.CaptureStatusPending) {
		return nil, domainerrors.InvalidPaymentStatus(p.ID.String(), string(p.Status))
	}
	return p, nil
}

// ApplyPaymentEvent records the outcome a webhook-mode rail reported.
// Replaying the outcome a payment already has is a no-op.
func (h *ConfiguredHandler) ApplyPaymentEvent(ctx context.Context, paymentID uuid.UUID, status entities.PaymentStatus, reason string) (*entities.Payment, error) {
	if status != entities.PaymentStatusSucceeded && status != entities.PaymentStatusFailed {
		return nil, domainerrors.BadRequest("event status must be succeeded or failed")
	}
	p, err := h.loadPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status == status {
		return p, nil
	}
	if !p.Status.CanTransitionTo(status) {
		return nil, domainerrors.InvalidPaymentStatus(p.ID.String(), string(p.Status))
	}
	change := repositories.PaymentStatusChange{From: p.Status, To: status}
	if status == entities.PaymentStatusFailed && reason != "" {
		change.FailureReason = null.StringFrom(reason)
	}
	return h.transition(ctx, p, change)
}

// acquireGeneric validates and stores an instrument. Bank-rail instruments
// get recipient validation and are single-use.
func acquireGeneric(ctx context.Context, c *core, in AcquireInstrumentInput) (*entities.PaymentInstrument, error) {
	if err := c.checkType(in.Type); err != nil {
		return nil, err
	}
	if err := c.checkCurrency(in.Currency); err != nil {
		return nil, err
	}

	rail := entities.SettlementRail(strings.ToLower(in.Type))
	if rail.Valid() {
		recipient := RecipientFromConfig(in.Config)
		if err := ValidateRecipient(rail, recipient); err != nil {
			return nil, err
		}
		display := recipient.PixKey
		if rail == entities.SettlementRailSPEI {
			display = recipient.CLABE
		}
		return c.saveInstrument(ctx, in, false, RecipientData(recipient), display)
	}

	data := map[string]interface{}{}
	for k, v := range in.Config {
		// raw card numbers are never stored
		if k == "number" || k == "cvc" {
			continue
		}
		data[k] = v
	}
	display, _ := in.Config["last4"].(string)
	if number, ok := in.Config["number"].(string); ok && display == "" {
		display = number
	}
	return c.saveInstrument(ctx, in, true, data, display)
}

func displayName(row *entities.HandlerConfig) string {
	if row.Name != "" {
		return row.Name
	}
	if name := row.MetadataString(entities.MetadataDisplayName); name != "" {
		return name
	}
	return row.ID
}

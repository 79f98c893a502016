package rails

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"
	"payos.backend/internal/domain/entities"
	domainerrors "payos.backend/internal/domain/errors"
	"payos.backend/internal/domain/repositories"
	"payos.backend/pkg/logger"
)

// Native settlement rail identity.
const (
	SettlementHandlerID   = "payos_settlement"
	SettlementHandlerName = "com.payos.settlement"
)

// SettlementBridge is the slice of the settlement workflow the native rail
// drives.
type SettlementBridge interface {
	Settle(ctx context.Context, req entities.SettleRequest) (*entities.BridgeSettlement, error)
	GetSettlement(ctx context.Context, id uuid.UUID) (*entities.BridgeSettlement, error)
}

// SettlementHandler pays USDC-denominated payments out to Pix and SPEI
// recipients through the settlement bridge.
type SettlementHandler struct {
	core
	bridge SettlementBridge
}

func NewSettlementHandler(store Store, bridge SettlementBridge) *SettlementHandler {
	return &SettlementHandler{
		core: core{
			id:         SettlementHandlerID,
			name:       SettlementHandlerName,
			types:      []string{string(entities.SettlementRailPix), string(entities.SettlementRailSPEI)},
			currencies: []string{"USD", "USDC"},
			store:      store,
		},
		bridge: bridge,
	}
}

func (h *SettlementHandler) Kind() Kind { return KindCode }

func (h *SettlementHandler) AcquireInstrument(ctx context.Context, in AcquireInstrumentInput) (*entities.PaymentInstrument, error) {
	return acquireGeneric(ctx, &h.core, in)
}

func (h *SettlementHandler) ProcessPayment(ctx context.Context, in ProcessPaymentInput) (*entities.Payment, error) {
	p, inst, existing, err := h.beginPayment(ctx, in, in.Metadata[MetadataTenantID], h.singleUse)
	if err != nil || existing {
		return p, err
	}

	req := entities.SettleRequest{
		TransferID: p.ID.String(),
		Amount:     decimal.New(in.Amount, -2),
		Rail:       entities.SettlementRail(inst.Type),
		Recipient:  RecipientFromConfig(inst.Data),
		TxHash:     in.Metadata[MetadataX402TxHash],
	}
	settlement, err := h.bridge.Settle(ctx, req)
	if err != nil {
		h.fail(ctx, p, errorReason(err))
		return nil, domainerrors.AsAppError(err)
	}

	logger.Info(ctx, "Settlement payment submitted",
		zap.String("payment_id", p.ID.String()),
		zap.String("settlement_id", settlement.ID.String()),
		zap.String("rail", string(settlement.Rail)),
	)
	return h.transition(ctx, p, repositories.PaymentStatusChange{
		From:         entities.PaymentStatusPending,
		To:           entities.PaymentStatusProcessing,
		SettlementID: null.StringFrom(settlement.ID.String()),
	})
}

// singleUse rejects an instrument that already backs a live payment.
func (h *SettlementHandler) singleUse(ctx context.Context, inst *entities.PaymentInstrument) error {
	if inst.Reusable {
		return nil
	}
	n, err := h.store.Instruments.CountPayments(ctx, inst.ID)
	if err != nil {
		return err
	}
	if n > 0 {
		return domainerrors.InstrumentAlreadyUsed(inst.ID.String())
	}
	return nil
}

// RefundPayment records the refund as pending; fiat payouts are reversed
// out of band by operations.
func (h *SettlementHandler) RefundPayment(ctx context.Context, in RefundPaymentInput) (*entities.Refund, error) {
	p, amount, err := h.refundPlan(ctx, in)
	if err != nil {
		return nil, err
	}
	return h.recordRefund(ctx, p.ID, amount, in.Reason, entities.RefundStatusPending, p.SettlementID.String)
}

func (h *SettlementHandler) GetPaymentStatus(ctx context.Context, paymentID uuid.UUID) (*entities.PaymentStatusView, error) {
	p, err := h.loadPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status == entities.PaymentStatusProcessing && p.SettlementID.Valid {
		p = h.reconcile(ctx, p)
	}
	return h.statusView(ctx, p)
}

// reconcile folds a terminal settlement outcome into the payment. Lookup
// failures leave the payment as stored.
func (h *SettlementHandler) reconcile(ctx context.Context, p *entities.Payment) *entities.Payment {
	settlementID, err := uuid.Parse(p.SettlementID.String)
	if err != nil {
		return p
	}
	s, err := h.bridge.GetSettlement(ctx, settlementID)
	if err != nil {
		logger.Warn(ctx, "Settlement lookup failed",
			zap.String("payment_id", p.ID.String()),
			zap.String("settlement_id", p.SettlementID.String),
			zap.Error(err),
		)
		return p
	}

	change := repositories.PaymentStatusChange{From: entities.PaymentStatusProcessing}
	switch s.Status {
	case entities.SettlementStatusCompleted:
		change.To = entities.PaymentStatusSucceeded
	case entities.SettlementStatusFailed:
		change.To = entities.PaymentStatusFailed
		reason := s.ErrorMessage.String
		if strings.TrimSpace(reason) == "" {
			reason = "settlement failed"
		}
		change.FailureReason = null.StringFrom(reason)
	default:
		return p
	}
	updated, err := h.transition(ctx, p, change)
	if err != nil {
		// a concurrent reader may have already applied it
		if fresh, getErr := h.store.Payments.GetByID(ctx, p.ID); getErr == nil {
			return fresh
		}
		return p
	}
	return updated
}

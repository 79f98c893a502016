package rails

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"
	"payos.backend/internal/domain/entities"
	domainerrors "payos.backend/internal/domain/errors"
	"payos.backend/internal/domain/repositories"
	"payos.backend/pkg/logger"
	"payos.backend/pkg/utils"
)

// Store bundles the repositories every handler persists through.
type Store struct {
	Instruments repositories.InstrumentRepository
	Payments    repositories.HandlerPaymentRepository
	UoW         repositories.UnitOfWork
}

type tenantScopeKey struct{}

// WithTenant scopes ctx to one tenant. Payments owned by any other tenant
// then resolve as not found.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantScopeKey{}, tenantID)
}

// TenantFromContext returns the tenant ctx is scoped to.
func TenantFromContext(ctx context.Context) (string, bool) {
	tenantID, ok := ctx.Value(tenantScopeKey{}).(string)
	return tenantID, ok && tenantID != ""
}

// instrumentGuard runs inside the payment-creation transaction with the
// instrument row locked.
type instrumentGuard func(ctx context.Context, inst *entities.PaymentInstrument) error

// core carries the identity and bookkeeping shared by all handler variants.
type core struct {
	id         string
	name       string
	types      []string
	currencies []string
	store      Store
}

func (c *core) ID() string                    { return c.id }
func (c *core) Name() string                  { return c.name }
func (c *core) SupportedTypes() []string      { return append([]string(nil), c.types...) }
func (c *core) SupportedCurrencies() []string { return append([]string(nil), c.currencies...) }

func (c *core) checkType(instrumentType string) error {
	if !containsFold(c.types, instrumentType) {
		return domainerrors.UnsupportedInstrumentType(c.id, instrumentType)
	}
	return nil
}

func (c *core) checkCurrency(currency string) error {
	if !containsFold(c.currencies, currency) {
		return domainerrors.UnsupportedCurrency(c.id, currency)
	}
	return nil
}

// saveInstrument persists a validated instrument.
func (c *core) saveInstrument(ctx context.Context, in AcquireInstrumentInput, reusable bool, data map[string]interface{}, display string) (*entities.PaymentInstrument, error) {
	inst := &entities.PaymentInstrument{
		ID:        utils.GenerateUUIDv7(),
		HandlerID: c.id,
		Type:      strings.ToLower(in.Type),
		Currency:  strings.ToUpper(in.Currency),
		Last4:     last4(display),
		Reusable:  reusable,
		Data:      data,
		CreatedAt: time.Now(),
	}
	if err := c.store.Instruments.Create(ctx, inst); err != nil {
		return nil, domainerrors.InternalError(err)
	}
	return inst, nil
}

// loadInstrument resolves an instrument owned by this handler.
func (c *core) loadInstrument(ctx context.Context, id uuid.UUID) (*entities.PaymentInstrument, error) {
	inst, err := c.store.Instruments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.InstrumentNotFound(id.String())
		}
		return nil, domainerrors.InternalError(err)
	}
	if inst.HandlerID != c.id {
		return nil, domainerrors.InstrumentNotFound(id.String())
	}
	return inst, nil
}

// beginPayment validates the request and creates the pending payment row,
// or returns the payment already created for the same idempotency key
// (existing=true). A failed payment holding the key is reclaimed so the
// caller can retry it.
func (c *core) beginPayment(ctx context.Context, in ProcessPaymentInput, tenantID string, guard instrumentGuard) (payment *entities.Payment, inst *entities.PaymentInstrument, existing bool, err error) {
	if in.Amount <= 0 {
		return nil, nil, false, domainerrors.InvalidAmount("amount must be a positive number of minor units")
	}
	if err := c.checkCurrency(in.Currency); err != nil {
		return nil, nil, false, err
	}

	var reclaim *entities.Payment
	if in.IdempotencyKey != "" {
		prior, err := c.store.Payments.GetByIdempotencyKey(ctx, c.id, in.IdempotencyKey)
		switch {
		case err == nil && prior.TenantID.String != tenantID:
			return nil, nil, false, domainerrors.BadRequest("idempotency key is already in use")
		case err == nil && prior.Status != entities.PaymentStatusFailed:
			return prior, nil, true, nil
		case err == nil:
			reclaim = prior
		case !errors.Is(err, domainerrors.ErrNotFound):
			return nil, nil, false, domainerrors.InternalError(err)
		}
	}

	now := time.Now()
	payment = &entities.Payment{
		ID:           utils.GenerateUUIDv7(),
		HandlerID:    c.id,
		InstrumentID: in.InstrumentID,
		Amount:       in.Amount,
		Currency:     strings.ToUpper(in.Currency),
		Status:       entities.PaymentStatusPending,
		Metadata:     in.Metadata,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.IdempotencyKey != "" {
		payment.IdempotencyKey = null.StringFrom(in.IdempotencyKey)
	}
	if tenantID != "" {
		payment.TenantID = null.StringFrom(tenantID)
	}
	if reclaim != nil {
		payment.ID = reclaim.ID
		payment.CreatedAt = reclaim.CreatedAt
	}

	txErr := c.store.UoW.Do(ctx, func(txCtx context.Context) error {
		loaded, err := c.loadInstrument(c.store.UoW.WithLock(txCtx), in.InstrumentID)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(txCtx, loaded); err != nil {
				return err
			}
		}
		inst = loaded
		if reclaim != nil {
			return c.store.Payments.ReclaimFailed(txCtx, payment)
		}
		return c.store.Payments.Create(txCtx, payment)
	})
	if txErr == nil {
		return payment, inst, false, nil
	}

	// Lost a race for the key: answer with the winner's payment.
	if in.IdempotencyKey != "" && (errors.Is(txErr, domainerrors.ErrAlreadyExists) || errors.Is(txErr, domainerrors.ErrConflict)) {
		prior, err := c.store.Payments.GetByIdempotencyKey(ctx, c.id, in.IdempotencyKey)
		if err != nil {
			return nil, nil, false, domainerrors.InternalError(err)
		}
		if prior.TenantID.String != tenantID {
			return nil, nil, false, domainerrors.BadRequest("idempotency key is already in use")
		}
		return prior, nil, true, nil
	}
	var appErr *domainerrors.AppError
	if errors.As(txErr, &appErr) {
		return nil, nil, false, appErr
	}
	return nil, nil, false, domainerrors.InternalError(txErr)
}

// transition applies a conditional status change and returns the fresh row.
func (c *core) transition(ctx context.Context, p *entities.Payment, change repositories.PaymentStatusChange) (*entities.Payment, error) {
	if change.From == "" {
		change.From = p.Status
	}
	if err := c.store.Payments.UpdateStatus(ctx, p.ID, change); err != nil {
		if errors.Is(err, domainerrors.ErrConflict) {
			current, getErr := c.store.Payments.GetByID(ctx, p.ID)
			if getErr == nil {
				return nil, domainerrors.InvalidPaymentStatus(p.ID.String(), string(current.Status))
			}
		}
		return nil, domainerrors.InternalError(err)
	}
	updated, err := c.store.Payments.GetByID(ctx, p.ID)
	if err != nil {
		return nil, domainerrors.InternalError(err)
	}
	return updated, nil
}

// fail marks a payment failed with reason, logging instead of masking the
// original error when the write itself fails.
func (c *core) fail(ctx context.Context, p *entities.Payment, reason string) {
	err := c.store.Payments.UpdateStatus(ctx, p.ID, repositories.PaymentStatusChange{
		From:          p.Status,
		To:            entities.PaymentStatusFailed,
		FailureReason: null.StringFrom(reason),
	})
	if err != nil {
		logger.Error(ctx, "Failed to mark payment failed",
			zap.String("handler_id", c.id),
			zap.String("payment_id", p.ID.String()),
			zap.Error(err),
		)
	}
}

// loadPayment resolves a payment owned by this handler and, when ctx is
// tenant scoped, by that tenant.
func (c *core) loadPayment(ctx context.Context, id uuid.UUID) (*entities.Payment, error) {
	p, err := c.store.Payments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.PaymentNotFound(id.String())
		}
		return nil, domainerrors.InternalError(err)
	}
	if p.HandlerID != c.id {
		return nil, domainerrors.PaymentNotFound(id.String())
	}
	if tenantID, scoped := TenantFromContext(ctx); scoped && p.TenantID.String != tenantID {
		return nil, domainerrors.PaymentNotFound(id.String())
	}
	return p, nil
}

// refundPlan validates a refund request against the refundable remainder.
func (c *core) refundPlan(ctx context.Context, in RefundPaymentInput) (*entities.Payment, int64, error) {
	p, err := c.loadPayment(ctx, in.PaymentID)
	if err != nil {
		return nil, 0, err
	}
	if p.Status != entities.PaymentStatusSucceeded {
		return nil, 0, domainerrors.InvalidPaymentStatus(p.ID.String(), string(p.Status))
	}
	refunded, err := c.store.Payments.SumRefunds(ctx, p.ID)
	if err != nil {
		return nil, 0, domainerrors.InternalError(err)
	}
	remaining := p.Amount - refunded
	amount := in.Amount
	if amount == 0 {
		amount = remaining
	}
	if amount <= 0 || amount > remaining {
		return nil, 0, domainerrors.InvalidRefundAmount(amount, remaining)
	}
	return p, amount, nil
}

// recordRefund re-checks the remainder under a row lock, stores the refund
// and flips the payment to refunded once nothing is left to refund.
func (c *core) recordRefund(ctx context.Context, paymentID uuid.UUID, amount int64, reason string, status entities.RefundStatus, externalID string) (*entities.Refund, error) {
	var refund *entities.Refund
	err := c.store.UoW.Do(ctx, func(txCtx context.Context) error {
		p, err := c.loadPayment(c.store.UoW.WithLock(txCtx), paymentID)
		if err != nil {
			return err
		}
		if p.Status != entities.PaymentStatusSucceeded {
			return domainerrors.InvalidPaymentStatus(p.ID.String(), string(p.Status))
		}
		refunded, err := c.store.Payments.SumRefunds(txCtx, p.ID)
		if err != nil {
			return err
		}
		if amount > p.Amount-refunded {
			return domainerrors.InvalidRefundAmount(amount, p.Amount-refunded)
		}

		refund = &entities.Refund{
			ID:        utils.GenerateUUIDv7(),
			PaymentID: p.ID,
			Amount:    amount,
			Currency:  p.Currency,
			Status:    status,
			Reason:    reason,
			CreatedAt: time.Now(),
		}
		if externalID != "" {
			refund.ExternalID = null.StringFrom(externalID)
		}
		if err := c.store.Payments.CreateRefund(txCtx, refund); err != nil {
			return err
		}
		if status == entities.RefundStatusFailed || refunded+amount < p.Amount {
			return nil
		}
		return c.store.Payments.UpdateStatus(txCtx, p.ID, repositories.PaymentStatusChange{
			From: entities.PaymentStatusSucceeded,
			To:   entities.PaymentStatusRefunded,
		})
	})
	if err != nil {
		var appErr *domainerrors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, domainerrors.InternalError(err)
	}
	return refund, nil
}

// statusView builds the status answer for a payment.
func (c *core) statusView(ctx context.Context, p *entities.Payment) (*entities.PaymentStatusView, error) {
	refunded, err := c.store.Payments.SumRefunds(ctx, p.ID)
	if err != nil {
		return nil, domainerrors.InternalError(err)
	}
	return &entities.PaymentStatusView{
		PaymentID:     p.ID,
		HandlerID:     p.HandlerID,
		Status:        p.Status,
		CaptureStatus: p.CaptureStatus,
		Amount:        p.Amount,
		RefundedTotal: refunded,
		Currency:      p.Currency,
		SettlementID:  p.SettlementID,
		FailureReason: p.FailureReason,
		UpdatedAt:     p.UpdatedAt,
	}, nil
}

func errorReason(err error) string {
	var appErr *domainerrors.AppError
	if errors.As(err, &appErr) {
		return fmt.Sprintf("%s: %s", appErr.Code, appErr.Message)
	}
	return err.Error()
}

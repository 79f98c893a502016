package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"payos.backend/internal/domain/entities"
	domainerrors "payos.backend/internal/domain/errors"
	domainRepos "payos.backend/internal/domain/repositories"
	"payos.backend/internal/infrastructure/models"
)

// HandlerPaymentRepository implements payment and refund data operations
type HandlerPaymentRepository struct {
	db *gorm.DB
}

// NewHandlerPaymentRepository creates a new handler payment repository
func NewHandlerPaymentRepository(db *gorm.DB) *HandlerPaymentRepository {
	return &HandlerPaymentRepository{db: db}
}

// Create inserts a payment. The (handler_id, idempotency_key) unique index
// makes concurrent inserts for one key resolve to a single row.
func (r *HandlerPaymentRepository) Create(ctx context.Context, payment *entities.Payment) error {
	m, err := r.toModel(payment)
	if err != nil {
		return err
	}
	if err := GetDB(ctx, r.db).WithContext(ctx).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// GetByID gets a payment by ID
func (r *HandlerPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Payment, error) {
	var m models.HandlerPayment
	db := lockingDB(ctx, GetDB(ctx, r.db).WithContext(ctx))
	if err := db.Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return r.toEntity(&m), nil
}

// GetByIdempotencyKey gets the payment a handler created for a key
func (r *HandlerPaymentRepository) GetByIdempotencyKey(ctx context.Context, handlerID, key string) (*entities.Payment, error) {
	var m models.HandlerPayment
	db := lockingDB(ctx, GetDB(ctx, r.db).WithContext(ctx))
	if err := db.Where("handler_id = ? AND idempotency_key = ?", handlerID, key).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return r.toEntity(&m), nil
}

// UpdateStatus conditionally moves a payment between statuses
func (r *HandlerPaymentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, change domainRepos.PaymentStatusChange) error {
	updates := map[string]interface{}{
		"status":     string(change.To),
		"updated_at": time.Now(),
	}
	if change.CaptureStatus.Valid {
		updates["capture_status"] = change.CaptureStatus.String
	}
	if change.SettlementID.Valid {
		updates["settlement_id"] = change.SettlementID.String
	}
	if change.ExternalID.Valid {
		updates["external_id"] = change.ExternalID.String
	}
	if change.FailureReason.Valid {
		updates["failure_reason"] = change.FailureReason.String
	}

	db := GetDB(ctx, r.db).WithContext(ctx)
	res := db.Model(&models.HandlerPayment{}).
		Where("id = ? AND status = ?", id, string(change.From)).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.missingOrConflict(ctx, id)
	}
	return nil
}

// ReclaimFailed reuses a failed payment's row for a retried request with
// the same idempotency key.
func (r *HandlerPaymentRepository) ReclaimFailed(ctx context.Context, payment *entities.Payment) error {
	metadata, err := json.Marshal(payment.Metadata)
	if err != nil {
		return err
	}
	updates := map[string]interface{}{
		"instrument_id":  payment.InstrumentID,
		"amount":         payment.Amount,
		"currency":       payment.Currency,
		"status":         string(entities.PaymentStatusPending),
		"capture_status": nil,
		"settlement_id":  nil,
		"external_id":    nil,
		"failure_reason": nil,
		"tenant_id":      strPtr(payment.TenantID.String, payment.TenantID.Valid),
		"metadata":       datatypes.JSON(metadata),
		"updated_at":     time.Now(),
	}
	res := GetDB(ctx, r.db).WithContext(ctx).Model(&models.HandlerPayment{}).
		Where("id = ? AND status = ?", payment.ID, string(entities.PaymentStatusFailed)).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.missingOrConflict(ctx, payment.ID)
	}
	return nil
}

// CreateRefund persists a refund
func (r *HandlerPaymentRepository) CreateRefund(ctx context.Context, refund *entities.Refund) error {
	m := &models.HandlerRefund{
		ID:         refund.ID,
		PaymentID:  refund.PaymentID,
		Amount:     refund.Amount,
		Currency:   refund.Currency,
		Status:     string(refund.Status),
		Reason:     refund.Reason,
		ExternalID: strPtr(refund.ExternalID.String, refund.ExternalID.Valid),
		CreatedAt:  refund.CreatedAt,
	}
	return GetDB(ctx, r.db).WithContext(ctx).Create(m).Error
}

// ListRefunds lists a payment's refunds oldest first
func (r *HandlerPaymentRepository) ListRefunds(ctx context.Context, paymentID uuid.UUID) ([]*entities.Refund, error) {
	var ms []models.HandlerRefund
	if err := GetDB(ctx, r.db).WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at ASC").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	refunds := make([]*entities.Refund, 0, len(ms))
	for i := range ms {
		m := ms[i]
		refunds = append(refunds, &entities.Refund{
			ID:         m.ID,
			PaymentID:  m.PaymentID,
			Amount:     m.Amount,
			Currency:   m.Currency,
			Status:     entities.RefundStatus(m.Status),
			Reason:     m.Reason,
			ExternalID: null.StringFromPtr(m.ExternalID),
			CreatedAt:  m.CreatedAt,
		})
	}
	return refunds, nil
}

// SumRefunds totals the succeeded and pending refunds of a payment
func (r *HandlerPaymentRepository) SumRefunds(ctx context.Context, paymentID uuid.UUID) (int64, error) {
	var total int64
	err := GetDB(ctx, r.db).WithContext(ctx).
		Model(&models.HandlerRefund{}).
		Where("payment_id = ? AND status <> ?", paymentID, string(entities.RefundStatusFailed)).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

func (r *HandlerPaymentRepository) missingOrConflict(ctx context.Context, id uuid.UUID) error {
	var count int64
	if err := GetDB(ctx, r.db).WithContext(ctx).Model(&models.HandlerPayment{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domainerrors.ErrNotFound
	}
	return domainerrors.ErrConflict
}

func (r *HandlerPaymentRepository) toModel(p *entities.Payment) (*models.HandlerPayment, error) {
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return nil, err
	}
	return &models.HandlerPayment{
		ID:             p.ID,
		HandlerID:      p.HandlerID,
		InstrumentID:   p.InstrumentID,
		Amount:         p.Amount,
		Currency:       p.Currency,
		Status:         string(p.Status),
		CaptureStatus:  strPtr(p.CaptureStatus.String, p.CaptureStatus.Valid),
		IdempotencyKey: strPtr(p.IdempotencyKey.String, p.IdempotencyKey.Valid),
		SettlementID:   strPtr(p.SettlementID.String, p.SettlementID.Valid),
		ExternalID:     strPtr(p.ExternalID.String, p.ExternalID.Valid),
		TenantID:       strPtr(p.TenantID.String, p.TenantID.Valid),
		FailureReason:  strPtr(p.FailureReason.String, p.FailureReason.Valid),
		Metadata:       datatypes.JSON(metadata),
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}, nil
}

func (r *HandlerPaymentRepository) toEntity(m *models.HandlerPayment) *entities.Payment {
	var metadata map[string]string
	if len(m.Metadata) > 0 {
		_ = json.Unmarshal(m.Metadata, &metadata)
	}
	return &entities.Payment{
		ID:             m.ID,
		HandlerID:      m.HandlerID,
		InstrumentID:   m.InstrumentID,
		Amount:         m.Amount,
		Currency:       m.Currency,
		Status:         entities.PaymentStatus(m.Status),
		CaptureStatus:  null.StringFromPtr(m.CaptureStatus),
		IdempotencyKey: null.StringFromPtr(m.IdempotencyKey),
		SettlementID:   null.StringFromPtr(m.SettlementID),
		ExternalID:     null.StringFromPtr(m.ExternalID),
		TenantID:       null.StringFromPtr(m.TenantID),
		FailureReason:  null.StringFromPtr(m.FailureReason),
		Metadata:       metadata,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

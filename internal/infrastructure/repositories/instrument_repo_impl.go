package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"payos.backend/internal/domain/entities"
	domainerrors "payos.backend/internal/domain/errors"
	"payos.backend/internal/infrastructure/models"
)

// InstrumentRepository implements payment instrument data operations
type InstrumentRepository struct {
	db *gorm.DB
}

// NewInstrumentRepository creates a new instrument repository
func NewInstrumentRepository(db *gorm.DB) *InstrumentRepository {
	return &InstrumentRepository{db: db}
}

// Create persists an instrument
func (r *InstrumentRepository) Create(ctx context.Context, instrument *entities.PaymentInstrument) error {
	m := &models.PaymentInstrument{
		ID:        instrument.ID,
		HandlerID: instrument.HandlerID,
		Type:      instrument.Type,
		Currency:  instrument.Currency,
		Last4:     instrument.Last4,
		Reusable:  instrument.Reusable,
		Data:      instrument.Data,
		CreatedAt: instrument.CreatedAt,
	}
	if m.Data == nil {
		m.Data = map[string]interface{}{}
	}
	return GetDB(ctx, r.db).WithContext(ctx).Create(m).Error
}

// GetByID gets an instrument by ID
func (r *InstrumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.PaymentInstrument, error) {
	var m models.PaymentInstrument
	db := lockingDB(ctx, GetDB(ctx, r.db).WithContext(ctx))
	if err := db.Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return &entities.PaymentInstrument{
		ID:        m.ID,
		HandlerID: m.HandlerID,
		Type:      m.Type,
		Currency:  m.Currency,
		Last4:     m.Last4,
		Reusable:  m.Reusable,
		Data:      m.Data,
		CreatedAt: m.CreatedAt,
	}, nil
}

// CountPayments counts live payments made with the instrument
func (r *InstrumentRepository) CountPayments(ctx context.Context, id uuid.UUID) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).WithContext(ctx).
		Model(&models.HandlerPayment{}).
		Where("instrument_id = ? AND status NOT IN ?", id, []string{
			string(entities.PaymentStatusFailed),
			string(entities.PaymentStatusCancelled),
		}).
		Count(&count).Error
	return count, err
}

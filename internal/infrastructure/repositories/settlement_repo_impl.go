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
	"payos.backend/internal/infrastructure/models"
	"payos.backend/pkg/utils"
)

// SettlementRepository implements bridge settlement data operations
type SettlementRepository struct {
	db *gorm.DB
}

// NewSettlementRepository creates a new settlement repository
func NewSettlementRepository(db *gorm.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

// Create inserts a settlement; one per transfer id
func (r *SettlementRepository) Create(ctx context.Context, s *entities.BridgeSettlement) error {
	recipient, err := json.Marshal(s.Recipient)
	if err != nil {
		return err
	}
	m := &models.BridgeSettlement{
		ID:              s.ID,
		X402TransferID:  s.X402TransferID,
		X402TxHash:      strPtr(s.X402TxHash.String, s.X402TxHash.Valid),
		USDCAmount:      s.USDCAmount,
		BridgeFee:       s.BridgeFee,
		ExchangeRate:    s.ExchangeRate,
		FiatAmount:      s.FiatAmount,
		FiatCurrency:    s.FiatCurrency,
		Rail:            string(s.Rail),
		Recipient:       datatypes.JSON(recipient),
		CirclePayoutID:  strPtr(s.CirclePayoutID.String, s.CirclePayoutID.Valid),
		Status:          string(s.Status),
		ErrorMessage:    strPtr(s.ErrorMessage.String, s.ErrorMessage.Valid),
		ProviderPayload: datatypes.JSON(s.ProviderPayload),
		CompletedAt:     s.CompletedAt.Ptr(),
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
	if err := GetDB(ctx, r.db).WithContext(ctx).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// GetByID gets a settlement by ID
func (r *SettlementRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.BridgeSettlement, error) {
	return r.getWhere(ctx, "id = ?", id)
}

// GetByTransferID gets the settlement for an inbound transfer
func (r *SettlementRepository) GetByTransferID(ctx context.Context, transferID string) (*entities.BridgeSettlement, error) {
	return r.getWhere(ctx, "x402_transfer_id = ?", transferID)
}

// GetByPayoutID gets the settlement owning a provider payout
func (r *SettlementRepository) GetByPayoutID(ctx context.Context, payoutID string) (*entities.BridgeSettlement, error) {
	return r.getWhere(ctx, "circle_payout_id = ?", payoutID)
}

// Transition conditionally applies a status update
func (r *SettlementRepository) Transition(ctx context.Context, id uuid.UUID, from entities.SettlementStatus, update entities.SettlementUpdate) error {
	updates := map[string]interface{}{
		"status":     string(update.Status),
		"updated_at": time.Now(),
	}
	if update.X402TxHash.Valid {
		updates["x402_tx_hash"] = update.X402TxHash.String
	}
	if update.CirclePayoutID.Valid {
		updates["circle_payout_id"] = update.CirclePayoutID.String
	}
	if update.ErrorMessage.Valid {
		updates["error_message"] = update.ErrorMessage.String
	}
	if len(update.ProviderPayload) > 0 {
		updates["provider_payload"] = datatypes.JSON(update.ProviderPayload)
	}
	if update.CompletedAt.Valid {
		updates["completed_at"] = update.CompletedAt.Time
	}

	db := GetDB(ctx, r.db).WithContext(ctx)
	res := db.Model(&models.BridgeSettlement{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := db.Model(&models.BridgeSettlement{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domainerrors.ErrNotFound
		}
		return domainerrors.ErrConflict
	}
	return nil
}

// List lists settlements newest first
func (r *SettlementRepository) List(ctx context.Context, filter entities.SettlementFilter, pagination utils.PaginationParams) ([]*entities.BridgeSettlement, int64, error) {
	filtered := func() *gorm.DB {
		q := GetDB(ctx, r.db).WithContext(ctx).Model(&models.BridgeSettlement{})
		if filter.Status != "" {
			q = q.Where("status = ?", string(filter.Status))
		}
		if filter.Rail != "" {
			q = q.Where("rail = ?", string(filter.Rail))
		}
		return q
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var ms []models.BridgeSettlement
	page := utils.GetPaginationParams(pagination.Page, pagination.Limit)
	q := filtered().Order("created_at DESC, id DESC").Limit(page.Limit).Offset(page.Offset())
	if err := q.Find(&ms).Error; err != nil {
		return nil, 0, err
	}

	settlements := make([]*entities.BridgeSettlement, 0, len(ms))
	for i := range ms {
		settlements = append(settlements, r.toEntity(&ms[i]))
	}
	return settlements, total, nil
}

func (r *SettlementRepository) getWhere(ctx context.Context, cond string, arg interface{}) (*entities.BridgeSettlement, error) {
	var m models.BridgeSettlement
	db := lockingDB(ctx, GetDB(ctx, r.db).WithContext(ctx))
	if err := db.Where(cond, arg).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return r.toEntity(&m), nil
}

func (r *SettlementRepository) toEntity(m *models.BridgeSettlement) *entities.BridgeSettlement {
	var recipient entities.Recipient
	if len(m.Recipient) > 0 {
		_ = json.Unmarshal(m.Recipient, &recipient)
	}
	var payload json.RawMessage
	if len(m.ProviderPayload) > 0 && string(m.ProviderPayload) != "null" {
		payload = json.RawMessage(m.ProviderPayload)
	}
	return &entities.BridgeSettlement{
		ID:              m.ID,
		X402TransferID:  m.X402TransferID,
		X402TxHash:      null.StringFromPtr(m.X402TxHash),
		USDCAmount:      m.USDCAmount,
		BridgeFee:       m.BridgeFee,
		ExchangeRate:    m.ExchangeRate,
		FiatAmount:      m.FiatAmount,
		FiatCurrency:    m.FiatCurrency,
		Rail:            entities.SettlementRail(m.Rail),
		Recipient:       recipient,
		CirclePayoutID:  null.StringFromPtr(m.CirclePayoutID),
		Status:          entities.SettlementStatus(m.Status),
		ErrorMessage:    null.StringFromPtr(m.ErrorMessage),
		ProviderPayload: payload,
		CompletedAt:     null.TimeFromPtr(m.CompletedAt),
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

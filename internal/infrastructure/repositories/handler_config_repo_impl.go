package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"payos.backend/internal/domain/entities"
	domainerrors "payos.backend/internal/domain/errors"
	"payos.backend/internal/infrastructure/models"
)

// HandlerConfigRepository reads payment handler configuration rows
type HandlerConfigRepository struct {
	db *gorm.DB
}

// NewHandlerConfigRepository creates a new handler config repository
func NewHandlerConfigRepository(db *gorm.DB) *HandlerConfigRepository {
	return &HandlerConfigRepository{db: db}
}

// ListActive lists active handler rows in creation order
func (r *HandlerConfigRepository) ListActive(ctx context.Context) ([]*entities.HandlerConfig, error) {
	var ms []models.HandlerConfig
	if err := GetDB(ctx, r.db).WithContext(ctx).
		Where("status = ?", string(entities.HandlerConfigStatusActive)).
		Order("created_at ASC, id ASC").
		Find(&ms).Error; err != nil {
		return nil, err
	}

	configs := make([]*entities.HandlerConfig, 0, len(ms))
	for i := range ms {
		configs = append(configs, r.toEntity(&ms[i]))
	}
	return configs, nil
}

func (r *HandlerConfigRepository) toEntity(m *models.HandlerConfig) *entities.HandlerConfig {
	return &entities.HandlerConfig{
		ID:                  m.ID,
		Name:                m.Name,
		IntegrationMode:     entities.IntegrationMode(m.IntegrationMode),
		Status:              entities.HandlerConfigStatus(m.Status),
		SupportedTypes:      decodeStringList(m.SupportedTypes),
		SupportedCurrencies: decodeStringList(m.SupportedCurrencies),
		Metadata:            m.Metadata,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

func decodeStringList(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// CredentialRepository reads connected-account credentials
type CredentialRepository struct {
	db *gorm.DB
}

// NewCredentialRepository creates a new credential repository
func NewCredentialRepository(db *gorm.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// GetByTenantAndType gets a tenant's credential set for one provider family
func (r *CredentialRepository) GetByTenantAndType(ctx context.Context, tenantID, handlerType string) (*entities.ProviderCredential, error) {
	var m models.ConnectedAccountCredential
	if err := GetDB(ctx, r.db).WithContext(ctx).
		Where("tenant_id = ? AND handler_type = ?", tenantID, handlerType).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return &entities.ProviderCredential{
		ID:          m.ID,
		TenantID:    m.TenantID,
		HandlerType: m.HandlerType,
		Ciphertext:  m.Ciphertext,
		Version:     m.Version,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}, nil
}

// Upsert stores a tenant's credential set. Replacing an existing row bumps
// its version so cached clients are rebuilt.
func (r *CredentialRepository) Upsert(ctx context.Context, cred *entities.ProviderCredential) error {
	now := time.Now()
	m := &models.ConnectedAccountCredential{
		ID:          cred.ID,
		TenantID:    cred.TenantID,
		HandlerType: cred.HandlerType,
		Ciphertext:  cred.Ciphertext,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return GetDB(ctx, r.db).WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "handler_type"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"ciphertext": cred.Ciphertext,
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		}),
	}).Create(m).Error
}

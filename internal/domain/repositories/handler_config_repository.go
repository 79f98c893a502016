package repositories

import (
	"context"

	"payos.backend/internal/domain/entities"
)

// HandlerConfigRepository reads persisted handler configuration rows.
type HandlerConfigRepository interface {
	// ListActive returns active rows ordered by creation time then id.
	ListActive(ctx context.Context) ([]*entities.HandlerConfig, error)
}

// CredentialRepository reads tenant provider credentials.
type CredentialRepository interface {
	GetByTenantAndType(ctx context.Context, tenantID, handlerType string) (*entities.ProviderCredential, error)
}

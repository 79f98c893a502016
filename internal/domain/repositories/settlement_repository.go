package repositories

import (
	"context"

	"github.com/google/uuid"
	"payos.backend/internal/domain/entities"
	"payos.backend/pkg/utils"
)

// SettlementRepository defines bridge settlement data operations
type SettlementRepository interface {
	// Create returns ErrAlreadyExists when the transfer id was already settled.
	Create(ctx context.Context, settlement *entities.BridgeSettlement) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.BridgeSettlement, error)
	GetByTransferID(ctx context.Context, transferID string) (*entities.BridgeSettlement, error)
	GetByPayoutID(ctx context.Context, payoutID string) (*entities.BridgeSettlement, error)
	// Transition moves the settlement from one status to update.Status only
	// while it is still in from; ErrConflict otherwise.
	Transition(ctx context.Context, id uuid.UUID, from entities.SettlementStatus, update entities.SettlementUpdate) error
	List(ctx context.Context, filter entities.SettlementFilter, pagination utils.PaginationParams) ([]*entities.BridgeSettlement, int64, error)
}

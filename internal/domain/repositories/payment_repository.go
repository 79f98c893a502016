package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"payos.backend/internal/domain/entities"
)

// InstrumentRepository defines payment instrument data operations
type InstrumentRepository interface {
	Create(ctx context.Context, instrument *entities.PaymentInstrument) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.PaymentInstrument, error)
	// CountPayments returns how many payments reference the instrument,
	// ignoring failed and cancelled ones.
	CountPayments(ctx context.Context, id uuid.UUID) (int64, error)
}

// PaymentStatusChange is a conditional status update. Optional fields are
// written only when valid.
type PaymentStatusChange struct {
	From          entities.PaymentStatus
	To            entities.PaymentStatus
	CaptureStatus null.String
	SettlementID  null.String
	ExternalID    null.String
	FailureReason null.String
}

// HandlerPaymentRepository defines payment and refund data operations
type HandlerPaymentRepository interface {
	// Create returns ErrAlreadyExists when (handler, idempotency key) is taken.
	Create(ctx context.Context, payment *entities.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Payment, error)
	GetByIdempotencyKey(ctx context.Context, handlerID, key string) (*entities.Payment, error)
	// UpdateStatus applies the change only while the row is still in
	// change.From; ErrConflict otherwise.
	UpdateStatus(ctx context.Context, id uuid.UUID, change PaymentStatusChange) error
	// ReclaimFailed resets a failed payment holding an idempotency key back
	// to pending with new request values. ErrConflict when it is not failed.
	ReclaimFailed(ctx context.Context, payment *entities.Payment) error
	CreateRefund(ctx context.Context, refund *entities.Refund) error
	ListRefunds(ctx context.Context, paymentID uuid.UUID) ([]*entities.Refund, error)
	SumRefunds(ctx context.Context, paymentID uuid.UUID) (int64, error)
}

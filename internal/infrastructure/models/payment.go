package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type PaymentInstrument struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey"`
	HandlerID string            `gorm:"type:varchar(100);not null;index"`
	Type      string            `gorm:"type:varchar(50);not null"`
	Currency  string            `gorm:"type:varchar(10);not null"`
	Last4     string            `gorm:"type:varchar(4)"`
	Reusable  bool              `gorm:"not null;default:true"`
	Data      datatypes.JSONMap `gorm:"type:jsonb;default:'{}'"`
	CreatedAt time.Time
}

func (PaymentInstrument) TableName() string {
	return "payment_handler_instruments"
}

type HandlerPayment struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey"`
	HandlerID      string         `gorm:"type:varchar(100);not null;uniqueIndex:idx_handler_payments_idem"`
	InstrumentID   uuid.UUID      `gorm:"type:uuid;not null;index"`
	Amount         int64          `gorm:"not null"`
	Currency       string         `gorm:"type:varchar(10);not null"`
	Status         string         `gorm:"type:varchar(30);not null;index"`
	CaptureStatus  *string        `gorm:"type:varchar(30)"`
	IdempotencyKey *string        `gorm:"type:varchar(255);uniqueIndex:idx_handler_payments_idem"`
	SettlementID   *string        `gorm:"type:varchar(64);index"`
	ExternalID     *string        `gorm:"type:varchar(255);index"`
	TenantID       *string        `gorm:"type:varchar(100)"`
	FailureReason  *string        `gorm:"type:text"`
	Metadata       datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (HandlerPayment) TableName() string {
	return "handler_payments"
}

type HandlerRefund struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	PaymentID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Amount     int64     `gorm:"not null"`
	Currency   string    `gorm:"type:varchar(10);not null"`
	Status     string    `gorm:"type:varchar(30);not null"`
	Reason     string    `gorm:"type:text"`
	ExternalID *string   `gorm:"type:varchar(255)"`
	CreatedAt  time.Time
}

func (HandlerRefund) TableName() string {
	return "handler_refunds"
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type BridgeSettlement struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"`
	X402TransferID  string          `gorm:"column:x402_transfer_id;type:varchar(255);not null;uniqueIndex"`
	X402TxHash      *string         `gorm:"column:x402_tx_hash;type:varchar(255)"`
	USDCAmount      decimal.Decimal `gorm:"type:numeric(30,6);not null"`
	BridgeFee       decimal.Decimal `gorm:"type:numeric(30,6);not null"`
	ExchangeRate    decimal.Decimal `gorm:"type:numeric(30,8);not null"`
	FiatAmount      decimal.Decimal `gorm:"type:numeric(30,2);not null"`
	FiatCurrency    string          `gorm:"type:varchar(10);not null"`
	Rail            string          `gorm:"type:varchar(10);not null"`
	Recipient       datatypes.JSON  `gorm:"type:jsonb"`
	CirclePayoutID  *string         `gorm:"type:varchar(255);index"`
	Status          string          `gorm:"type:varchar(30);not null;index"`
	ErrorMessage    *string         `gorm:"type:text"`
	ProviderPayload datatypes.JSON  `gorm:"type:jsonb"`
	CompletedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (BridgeSettlement) TableName() string {
	return "bridge_settlements"
}

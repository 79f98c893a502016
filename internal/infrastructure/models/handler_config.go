package models

import (
	"time"

	"gorm.io/datatypes"
)

type HandlerConfig struct {
	ID                  string            `gorm:"type:varchar(100);primaryKey"`
	Name                string            `gorm:"type:varchar(255);not null"`
	IntegrationMode     string            `gorm:"type:varchar(30);not null"`
	Status              string            `gorm:"type:varchar(20);not null;index"`
	SupportedTypes      datatypes.JSON    `gorm:"type:jsonb"`
	SupportedCurrencies datatypes.JSON    `gorm:"type:jsonb"`
	Metadata            datatypes.JSONMap `gorm:"type:jsonb;default:'{}'"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (HandlerConfig) TableName() string {
	return "payment_handler_configs"
}

type ConnectedAccountCredential struct {
	ID          string `gorm:"type:varchar(64);primaryKey"`
	TenantID    string `gorm:"type:varchar(100);not null;uniqueIndex:idx_connected_credentials_tenant_type"`
	HandlerType string `gorm:"type:varchar(50);not null;uniqueIndex:idx_connected_credentials_tenant_type"`
	Ciphertext  string `gorm:"type:text;not null"`
	Version     int    `gorm:"not null;default:1"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (ConnectedAccountCredential) TableName() string {
	return "connected_account_credentials"
}

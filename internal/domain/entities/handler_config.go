package entities

import (
	"fmt"
	"time"
)

// IntegrationMode selects how a configured handler row is bound.
type IntegrationMode string

const (
	IntegrationModeDemo             IntegrationMode = "demo"
	IntegrationModeWebhook          IntegrationMode = "webhook"
	IntegrationModeCustom           IntegrationMode = "custom"
	IntegrationModeConnectedAccount IntegrationMode = "connected_account"
)

// HandlerConfigStatus represents whether a row is loaded into the registry.
type HandlerConfigStatus string

const (
	HandlerConfigStatusActive   HandlerConfigStatus = "active"
	HandlerConfigStatusInactive HandlerConfigStatus = "inactive"
)

// Metadata keys read by the core.
const (
	MetadataConnectedHandlerType = "connected_handler_type"
	MetadataDisplayName          = "name"
)

// HandlerConfig is a persisted payment handler configuration row. It is
// written by the admin surface only.
type HandlerConfig struct {
	ID                  string                 `json:"id"`
	Name                string                 `json:"name"`
	IntegrationMode     IntegrationMode        `json:"integrationMode"`
	Status              HandlerConfigStatus    `json:"status"`
	SupportedTypes      []string               `json:"supportedTypes"`
	SupportedCurrencies []string               `json:"supportedCurrencies"`
	Metadata            map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt           time.Time              `json:"createdAt"`
	UpdatedAt           time.Time              `json:"updatedAt"`
}

// MetadataString returns a metadata value rendered as a string.
func (c *HandlerConfig) MetadataString(key string) string {
	if c == nil || c.Metadata == nil {
		return ""
	}
	switch v := c.Metadata[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// ProviderCredential is a tenant's encrypted credential set for one external
// provider family.
type ProviderCredential struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenantId"`
	HandlerType string    `json:"handlerType"`
	Ciphertext  string    `json:"-"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

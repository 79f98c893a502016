package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all configuration values
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Settlement SettlementConfig
	Payout     PayoutConfig
	Blockchain BlockchainConfig
	Security   SecurityConfig
	Registry   RegistryConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// URL returns the database connection URL
func (c DatabaseConfig) URL() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

// DSN returns the key=value connection string understood by lib/pq
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL      string
	PASSWORD string
}

// JWTConfig holds the operator token settings
type JWTConfig struct {
	Secret string
	Issuer string
	Expiry time.Duration
}

// SettlementConfig holds settlement bridge pricing and polling settings
type SettlementConfig struct {
	FeeBasisPoints      int64
	MinimumUSDC         decimal.Decimal
	ExchangeRates       map[string]decimal.Decimal
	QuoteTTL            time.Duration
	DepositPollInterval time.Duration
	DepositTimeout      time.Duration
}

// PayoutConfig holds the payout provider settings
type PayoutConfig struct {
	BaseURL    string
	APIKey     string
	WebhookJWK string
}

// BlockchainConfig holds the chain used for deposit detection
type BlockchainConfig struct {
	RPCURL          string
	USDCContract    string
	TreasuryAddress string
}

// SecurityConfig holds security encryption keys
type SecurityConfig struct {
	CredentialMasterKey string
}

// RegistryConfig holds payment handler registry settings
type RegistryConfig struct {
	DefaultHandlerID string
	RefreshInterval  time.Duration
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("SERVER_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "payos"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			PASSWORD: getEnv("REDIS_PASSWORD", ""),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "change-this-in-production"),
			Issuer: getEnv("JWT_ISSUER", "payos"),
			Expiry: getEnvAsDuration("JWT_EXPIRY", time.Hour),
		},
		Settlement: SettlementConfig{
			FeeBasisPoints:      int64(getEnvAsInt("SETTLEMENT_FEE_BPS", 50)),
			MinimumUSDC:         getEnvAsDecimal("SETTLEMENT_MINIMUM_USDC", decimal.RequireFromString("1.00")),
			ExchangeRates:       getEnvAsRates("SETTLEMENT_FX_RATES", "BRL=5.00,MXN=17.20"),
			QuoteTTL:            getEnvAsDuration("SETTLEMENT_QUOTE_TTL", 15*time.Minute),
			DepositPollInterval: getEnvAsDuration("SETTLEMENT_DEPOSIT_POLL_INTERVAL", 2*time.Second),
			DepositTimeout:      getEnvAsDuration("SETTLEMENT_DEPOSIT_TIMEOUT", 5*time.Minute),
		},
		Payout: PayoutConfig{
			BaseURL:    getEnv("CIRCLE_BASE_URL", "https://api-sandbox.circle.com"),
			APIKey:     getEnv("CIRCLE_API_KEY", ""),
			WebhookJWK: getEnv("CIRCLE_WEBHOOK_JWK", ""),
		},
		Blockchain: BlockchainConfig{
			RPCURL:          getEnv("BASE_RPC_URL", "https://sepolia.base.org"),
			USDCContract:    getEnv("USDC_CONTRACT_ADDRESS", "0x036CbD53842c5426634e7929541eC2318f3dCF7e"),
			TreasuryAddress: getEnv("TREASURY_ADDRESS", ""),
		},
		Security: SecurityConfig{
			CredentialMasterKey: getEnv("CREDENTIAL_MASTER_KEY", "0000000000000000000000000000000000000000000000000000000000000000"), // 32-bytes hex string
		},
		Registry: RegistryConfig{
			DefaultHandlerID: getEnv("DEFAULT_HANDLER_ID", "payos_settlement"),
			RefreshInterval:  getEnvAsDuration("REGISTRY_REFRESH_INTERVAL", 5*time.Minute),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsRates reads "CUR=rate,CUR=rate". A malformed value falls back to
// the default as a whole.
func getEnvAsRates(key, defaultValue string) map[string]decimal.Decimal {
	if rates, err := ParseRates(os.Getenv(key)); err == nil && len(rates) > 0 {
		return rates
	}
	rates, _ := ParseRates(defaultValue)
	return rates
}

// ParseRates parses a comma separated list of CUR=rate pairs.
func ParseRates(raw string) (map[string]decimal.Decimal, error) {
	rates := make(map[string]decimal.Decimal)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		cur, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid rate %q", pair)
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil || !rate.IsPositive() {
			return nil, fmt.Errorf("invalid rate for %s: %q", cur, value)
		}
		rates[strings.ToUpper(strings.TrimSpace(cur))] = rate
	}
	return rates, nil
}

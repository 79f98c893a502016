package repositories

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "open sqlite")
	return db
}

func mustExec(t *testing.T, db *gorm.DB, q string, args ...interface{}) {
	t.Helper()
	require.NoError(t, db.Exec(q, args...).Error, "exec failed: query=%s", q)
}

func createInstrumentTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE payment_handler_instruments (
		id TEXT PRIMARY KEY,
		handler_id TEXT NOT NULL,
		type TEXT NOT NULL,
		currency TEXT NOT NULL,
		last4 TEXT,
		reusable BOOLEAN NOT NULL DEFAULT 1,
		data TEXT DEFAULT '{}',
		created_at DATETIME
	);`)
}

func createHandlerPaymentTables(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE handler_payments (
		id TEXT PRIMARY KEY,
		handler_id TEXT NOT NULL,
		instrument_id TEXT NOT NULL,
		amount INTEGER NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		capture_status TEXT,
		idempotency_key TEXT,
		settlement_id TEXT,
		external_id TEXT,
		tenant_id TEXT,
		failure_reason TEXT,
		metadata TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);`)
	mustExec(t, db, `CREATE UNIQUE INDEX idx_handler_payments_idem ON handler_payments(handler_id, idempotency_key);`)
	mustExec(t, db, `CREATE TABLE handler_refunds (
		id TEXT PRIMARY KEY,
		payment_id TEXT NOT NULL,
		amount INTEGER NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		reason TEXT,
		external_id TEXT,
		created_at DATETIME
	);`)
}

func createHandlerConfigTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE payment_handler_configs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		integration_mode TEXT NOT NULL,
		status TEXT NOT NULL,
		supported_types TEXT,
		supported_currencies TEXT,
		metadata TEXT DEFAULT '{}',
		created_at DATETIME,
		updated_at DATETIME
	);`)
}

func createCredentialTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE connected_account_credentials (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		handler_type TEXT NOT NULL,
		ciphertext TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME,
		UNIQUE(tenant_id, handler_type)
	);`)
}

func createSettlementTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE bridge_settlements (
		id TEXT PRIMARY KEY,
		x402_transfer_id TEXT NOT NULL UNIQUE,
		x402_tx_hash TEXT,
		usdc_amount TEXT NOT NULL,
		bridge_fee TEXT NOT NULL,
		exchange_rate TEXT NOT NULL,
		fiat_amount TEXT NOT NULL,
		fiat_currency TEXT NOT NULL,
		rail TEXT NOT NULL,
		recipient TEXT,
		circle_payout_id TEXT,
		status TEXT NOT NULL,
		error_message TEXT,
		provider_payload TEXT,
		completed_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	);`)
}

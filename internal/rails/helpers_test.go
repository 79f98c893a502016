package rails_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"payos.backend/internal/domain/entities"
	domainerrors "payos.backend/internal/domain/errors"
	"payos.backend/internal/infrastructure/repositories"
	"payos.backend/internal/rails"
)

func newTestStore(t *testing.T) (rails.Store, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "open sqlite")

	for _, q := range []string{
		`CREATE TABLE payment_handler_instruments (
			id TEXT PRIMARY KEY,
			handler_id TEXT NOT NULL,
			type TEXT NOT NULL,
			currency TEXT NOT NULL,
			last4 TEXT,
			reusable BOOLEAN NOT NULL DEFAULT 1,
			data TEXT DEFAULT '{}',
			created_at DATETIME
		);`,
		`CREATE TABLE handler_payments (
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
		);`,
		`CREATE UNIQUE INDEX idx_handler_payments_idem ON handler_payments(handler_id, idempotency_key);`,
		`CREATE TABLE handler_refunds (
			id TEXT PRIMARY KEY,
			payment_id TEXT NOT NULL,
			amount INTEGER NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL,
			reason TEXT,
			external_id TEXT,
			created_at DATETIME
		);`,
	} {
		require.NoError(t, db.Exec(q).Error, "exec failed: query=%s", q)
	}

	return rails.Store{
		Instruments: repositories.NewInstrumentRepository(db),
		Payments:    repositories.NewHandlerPaymentRepository(db),
		UoW:         repositories.NewUnitOfWork(db),
	}, db
}

func countRows(t *testing.T, db *gorm.DB, table string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Table(table).Count(&n).Error)
	return n
}

func requireCode(t *testing.T, err error, code string) *domainerrors.AppError {
	t.Helper()
	require.Error(t, err)
	appErr := domainerrors.AsAppError(err)
	require.Equal(t, code, appErr.Code, "unexpected error: %v", err)
	return appErr
}

func pixConfig(key, keyType string) map[string]interface{} {
	return map[string]interface{}{
		"pixKey":     key,
		"pixKeyType": keyType,
		"name":       "Maria Silva",
	}
}

func configRow(id string, mode entities.IntegrationMode, types, currencies []string) *entities.HandlerConfig {
	return &entities.HandlerConfig{
		ID:                  id,
		Name:                "com.test." + id,
		IntegrationMode:     mode,
		Status:              entities.HandlerConfigStatusActive,
		SupportedTypes:      types,
		SupportedCurrencies: currencies,
		Metadata:            map[string]interface{}{},
	}
}

// fakeConfigs is an in-memory HandlerConfigRepository.
type fakeConfigs struct {
	mu   sync.Mutex
	rows []*entities.HandlerConfig
	err  error
}

func (f *fakeConfigs) ListActive(ctx context.Context) ([]*entities.HandlerConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*entities.HandlerConfig, 0, len(f.rows))
	for _, r := range f.rows {
		if r.Status == entities.HandlerConfigStatusActive {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeConfigs) set(rows ...*entities.HandlerConfig) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = rows
}

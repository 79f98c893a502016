package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestUnitOfWork_DoCommitAndRollback(t *testing.T) {
	db := newTestDB(t)
	createInstrumentTable(t, db)
	u := &UnitOfWorkImpl{db: db}

	insert := func(ctx context.Context) error {
		return GetDB(ctx, db).Exec(
			"INSERT INTO payment_handler_instruments(id,handler_id,type,currency,reusable,data) VALUES (?,?,?,?,?,?)",
			uuid.New().String(), "payos_settlement", "pix", "USD", false, "{}").Error
	}

	require.NoError(t, u.Do(context.Background(), insert))

	var count int64
	require.NoError(t, db.Table("payment_handler_instruments").Count(&count).Error)
	require.Equal(t, int64(1), count)

	err := u.Do(context.Background(), func(ctx context.Context) error {
		if err := insert(ctx); err != nil {
			return err
		}
		return errors.New("force rollback")
	})
	require.Error(t, err)

	require.NoError(t, db.Table("payment_handler_instruments").Count(&count).Error)
	require.Equal(t, int64(1), count, "second insert must be rolled back")
}

func TestUnitOfWork_NestedDoJoinsOuterTransaction(t *testing.T) {
	db := newTestDB(t)
	u := &UnitOfWorkImpl{db: db}

	var outer, inner *gorm.DB
	err := u.Do(context.Background(), func(ctx context.Context) error {
		outer = GetDB(ctx, db)
		return u.Do(ctx, func(innerCtx context.Context) error {
			inner = GetDB(innerCtx, db)
			return nil
		})
	})
	require.NoError(t, err)
	require.Same(t, outer, inner)
}

func TestUnitOfWork_WithLockAndGetDB(t *testing.T) {
	db := newTestDB(t)
	u := &UnitOfWorkImpl{db: db}

	ctx := u.WithLock(context.Background())
	locked, _ := ctx.Value(lockKey).(bool)
	require.True(t, locked)
	require.Equal(t, db, lockingDB(ctx, db), "sqlite must not get FOR UPDATE")

	require.Equal(t, db, u.GetDB(context.Background()))

	tx := db.Begin()
	txCtx := context.WithValue(context.Background(), txKey, tx)
	require.Equal(t, tx, u.GetDB(txCtx))
	tx.Rollback()
}

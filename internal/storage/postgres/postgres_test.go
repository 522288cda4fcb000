package postgres

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rovshanmuradov/stakepool-price/internal/monitor"
	"github.com/rovshanmuradov/stakepool-price/internal/storage/models"
)

func TestToModels(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("MSK", 3*3600))
	pool := monitor.Pool{Name: "jitoSOL", Address: solana.MustPublicKeyFromBase58("Jito4APyf642JPZPx3hGc6WWJ8zPKtRbRs4P815Awbb")}

	rows := ToModels([]monitor.Snapshot{
		{
			Pool:      pool,
			Price:     math.MaxUint64,
			Decimal:   decimal.RequireFromString("18446744073709.551615"),
			Reserve:   math.MaxUint64,
			Supply:    1,
			Slot:      42,
			UpdatedAt: at,
			Available: true,
		},
		{Pool: pool, Reason: monitor.ReasonZeroSupply, UpdatedAt: at},
	})
	require.Len(t, rows, 2)

	assert.Equal(t, "jitoSOL", rows[0].PoolName)
	assert.Equal(t, pool.Address.String(), rows[0].PoolAddress)
	assert.Equal(t, "18446744073709551615", rows[0].RawPrice.String())
	assert.Equal(t, "18446744073709551615", rows[0].Reserve.String())
	assert.Equal(t, "18446744073709.551615", rows[0].Price.String())
	assert.Equal(t, int64(42), rows[0].Slot)
	assert.True(t, rows[0].Available)
	assert.Equal(t, time.UTC, rows[0].ObservedAt.Location())
	assert.True(t, at.Equal(rows[0].ObservedAt))

	assert.False(t, rows[1].Available)
	assert.Equal(t, monitor.ReasonZeroSupply, rows[1].Reason)
	assert.True(t, rows[1].RawPrice.IsZero())
}

func TestGormLoggerTrace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := newGormLogger(zap.New(core))
	sql := func() (string, int64) { return "SELECT 1", 1 }

	l.Trace(context.Background(), time.Now(), sql, nil)
	assert.Equal(t, 0, logs.Len(), "successful queries are not logged at warn level")

	l.Trace(context.Background(), time.Now(), sql, gorm.ErrRecordNotFound)
	assert.Equal(t, 0, logs.Len())

	l.Trace(context.Background(), time.Now(), sql, errors.New("connection reset"))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	assert.Equal(t, "SELECT 1", entry.ContextMap()["sql"])

	l.LogMode(logger.Info).Trace(context.Background(), time.Now(), sql, nil)
	assert.Equal(t, 2, logs.Len())

	l.LogMode(logger.Silent).Trace(context.Background(), time.Now(), sql, errors.New("ignored"))
	assert.Equal(t, 2, logs.Len())
}

func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=vprice dbname=vprice sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true, Logger: logger.Discard})
	require.NoError(t, err)
	return db
}

func TestListQuery(t *testing.T) {
	db := dryRunDB(t)
	addr := "Jito4APyf642JPZPx3hGc6WWJ8zPKtRbRs4P815Awbb"
	since := time.Date(2026, 4, 1, 13, 0, 0, 0, time.FixedZone("MSK", 3*3600))

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var rows []models.PriceSnapshot
		return listQuery(tx, addr, since, 5).Find(&rows)
	})
	assert.Contains(t, sql, `FROM "price_snapshots"`)
	assert.Contains(t, sql, "pool_address = '"+addr+"'")
	assert.Contains(t, sql, "observed_at >= '2026-04-01 10:00:00")
	assert.Contains(t, sql, "ORDER BY observed_at desc")
	assert.Contains(t, sql, "LIMIT 5")

	sql = db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var rows []models.PriceSnapshot
		return listQuery(tx, addr, time.Time{}, 0).Find(&rows)
	})
	assert.NotContains(t, sql, "observed_at >=")
	assert.NotContains(t, sql, "LIMIT")
}

func TestFromModels(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	pool := monitor.Pool{Name: "jitoSOL", Address: solana.MustPublicKeyFromBase58("Jito4APyf642JPZPx3hGc6WWJ8zPKtRbRs4P815Awbb")}
	in := []monitor.Snapshot{
		{
			Pool:      pool,
			Price:     math.MaxUint64,
			Decimal:   decimal.RequireFromString("18446744073709.551615"),
			Reserve:   math.MaxUint64,
			Supply:    1,
			Slot:      42,
			UpdatedAt: at.Add(time.Minute),
			PricedAt:  at,
			Available: true,
			Stale:     true,
			Reason:    monitor.ReasonRPC,
		},
		{Pool: pool, Reason: monitor.ReasonZeroSupply, UpdatedAt: at},
	}

	rows := ToModels(in)
	require.NotNil(t, rows[0].PricedAt)
	assert.Nil(t, rows[1].PricedAt)

	out, err := FromModels(rows)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, in[0].Pool, out[0].Pool)
	assert.Equal(t, in[0].Price, out[0].Price)
	assert.Equal(t, in[0].Reserve, out[0].Reserve)
	assert.True(t, in[0].Decimal.Equal(out[0].Decimal))
	assert.Equal(t, uint64(42), out[0].Slot)
	assert.True(t, at.Equal(out[0].PricedAt))
	assert.True(t, at.Add(time.Minute).Equal(out[0].UpdatedAt))
	assert.True(t, out[0].Stale)
	assert.True(t, out[1].PricedAt.IsZero())
	assert.Equal(t, monitor.ReasonZeroSupply, out[1].Reason)

	bad := rows[0]
	bad.RawPrice = decimal.RequireFromString("18446744073709551616")
	_, err = FromModels([]models.PriceSnapshot{bad})
	assert.Error(t, err)

	bad = rows[0]
	bad.PoolAddress = "not-a-key"
	_, err = FromModels([]models.PriceSnapshot{bad})
	assert.Error(t, err)
}

type fakeLock struct {
	held       bool
	busy       bool
	unlockErr  error
	calls      []string
	unlockedID int64
}

func (l *fakeLock) TryLock(id int64) (bool, error) {
	l.calls = append(l.calls, "lock")
	if l.busy {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *fakeLock) Unlock(id int64) (bool, error) {
	l.calls = append(l.calls, "unlock")
	l.unlockedID = id
	if l.unlockErr != nil {
		return false, l.unlockErr
	}
	was := l.held
	l.held = false
	return was, nil
}

func TestWithLock(t *testing.T) {
	t.Run("releases after migration", func(t *testing.T) {
		l := &fakeLock{}
		err := withLock(l, migrationLockID, func() error {
			l.calls = append(l.calls, "migrate")
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"lock", "migrate", "unlock"}, l.calls)
		assert.Equal(t, int64(migrationLockID), l.unlockedID)
		assert.False(t, l.held)
	})

	t.Run("releases after failed migration", func(t *testing.T) {
		l := &fakeLock{}
		migrateErr := errors.New("column exists")
		err := withLock(l, migrationLockID, func() error { return migrateErr })
		assert.ErrorIs(t, err, migrateErr)
		assert.False(t, l.held)
	})

	t.Run("busy lock skips migration", func(t *testing.T) {
		l := &fakeLock{busy: true}
		ran := false
		err := withLock(l, migrationLockID, func() error { ran = true; return nil })
		assert.Error(t, err)
		assert.False(t, ran)
		assert.Equal(t, []string{"lock"}, l.calls)
	})

	t.Run("unlock error is reported", func(t *testing.T) {
		connErr := errors.New("conn closed")
		l := &fakeLock{unlockErr: connErr}
		err := withLock(l, migrationLockID, func() error { return nil })
		assert.ErrorIs(t, err, connErr)
	})

	t.Run("unlock on a session without the lock is reported", func(t *testing.T) {
		l := &fakeLock{}
		err := withLock(l, migrationLockID, func() error {
			l.held = false
			return nil
		})
		assert.ErrorContains(t, err, "not held")
	})
}

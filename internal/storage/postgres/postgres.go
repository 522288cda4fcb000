// internal/storage/postgres/postgres.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rovshanmuradov/stakepool-price/internal/monitor"
	"github.com/rovshanmuradov/stakepool-price/internal/storage"
	"github.com/rovshanmuradov/stakepool-price/internal/storage/models"
)

// gormLogger реализует интерфейс logger.Interface для GORM
type gormLogger struct {
	zapLogger *zap.Logger
	logLevel  logger.LogLevel
}

// newGormLogger создает новый логгер для GORM
func newGormLogger(zapLogger *zap.Logger) logger.Interface {
	return &gormLogger{
		zapLogger: zapLogger,
		logLevel:  logger.Warn,
	}
}

// LogMode реализация интерфейса logger.Interface
func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.logLevel = level
	return &newLogger
}

// Info реализация интерфейса logger.Interface
func (l *gormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Info {
		l.zapLogger.Sugar().Infof(msg, data...)
	}
}

// Warn реализация интерфейса logger.Interface
func (l *gormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Warn {
		l.zapLogger.Sugar().Warnf(msg, data...)
	}
}

// Error реализация интерфейса logger.Interface
func (l *gormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Error {
		l.zapLogger.Sugar().Errorf(msg, data...)
	}
}

// Trace реализация интерфейса logger.Interface
func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.logLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.String("sql", sql),
		zap.Int64("rows", rows),
	}

	// отсутствие записи для First не ошибка хранилища
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		l.zapLogger.Error("trace", append(fields, zap.Error(err))...)
		return
	}

	if l.logLevel >= logger.Info {
		l.zapLogger.Info("trace", fields...)
	}
}

// postgresStorage реализует интерфейс Storage
type postgresStorage struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStorage подключается к Postgres по dsn.
func NewStorage(dsn string, zapLogger *zap.Logger) (storage.Storage, error) {
	gormLogger := newGormLogger(zapLogger.Named("gorm"))

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Настройка пула соединений
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &postgresStorage{
		db:     db,
		logger: zapLogger.Named("storage"),
	}, nil
}

// migrationLockID ключ advisory lock для миграций
const migrationLockID = 101

// advisoryLock держит pg advisory lock. Блокировка сессионная, поэтому
// захват и освобождение должны идти через одно соединение.
type advisoryLock interface {
	TryLock(id int64) (bool, error)
	Unlock(id int64) (bool, error)
}

// sessionLock выполняет запросы блокировки на одном соединении.
type sessionLock struct {
	conn *gorm.DB
}

func (l sessionLock) TryLock(id int64) (bool, error) {
	var ok bool
	err := l.conn.Raw("SELECT pg_try_advisory_lock(?)", id).Scan(&ok).Error
	return ok, err
}

func (l sessionLock) Unlock(id int64) (bool, error) {
	var ok bool
	err := l.conn.Raw("SELECT pg_advisory_unlock(?)", id).Scan(&ok).Error
	return ok, err
}

// withLock выполняет fn под блокировкой id и возвращает ошибку освобождения,
// если fn завершилась успешно.
func withLock(l advisoryLock, id int64, fn func() error) error {
	obtained, err := l.TryLock(id)
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if !obtained {
		return errors.New("another migration is in progress")
	}

	fnErr := fn()

	released, err := l.Unlock(id)
	if err == nil && !released {
		err = errors.New("lock was not held by this session")
	}
	if err != nil {
		err = fmt.Errorf("failed to release migration lock: %w", err)
	}
	return errors.Join(fnErr, err)
}

// RunMigrations использует GORM AutoMigrate под advisory lock.
// Захват, миграция и освобождение выполняются на одном соединении пула.
func (p *postgresStorage) RunMigrations() error {
	return p.db.Connection(func(conn *gorm.DB) error {
		return withLock(sessionLock{conn: conn}, migrationLockID, func() error {
			if err := conn.AutoMigrate(&models.PriceSnapshot{}); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			return nil
		})
	})
}

// SaveSnapshots пишет все снапшоты одного обновления одним INSERT.
func (p *postgresStorage) SaveSnapshots(ctx context.Context, snaps []monitor.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	rows := ToModels(snaps)
	if err := p.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to save %d snapshots: %w", len(rows), err)
	}
	p.logger.Debug("Saved price snapshots", zap.Int("count", len(rows)))
	return nil
}

// ListSnapshots возвращает последние снапшоты пула, новые первыми.
func (p *postgresStorage) ListSnapshots(ctx context.Context, poolAddress string, since time.Time, limit int) ([]models.PriceSnapshot, error) {
	var rows []models.PriceSnapshot
	if err := listQuery(p.db.WithContext(ctx), poolAddress, since, limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list snapshots of %s: %w", poolAddress, err)
	}
	return rows, nil
}

func listQuery(db *gorm.DB, poolAddress string, since time.Time, limit int) *gorm.DB {
	q := db.Model(&models.PriceSnapshot{}).Where("pool_address = ?", poolAddress)
	if !since.IsZero() {
		q = q.Where("observed_at >= ?", since.UTC())
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q.Order("observed_at desc")
}

func (p *postgresStorage) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ToModels переводит снапшоты монитора в строки таблицы.
func ToModels(snaps []monitor.Snapshot) []models.PriceSnapshot {
	rows := make([]models.PriceSnapshot, 0, len(snaps))
	for _, s := range snaps {
		rows = append(rows, models.PriceSnapshot{
			PoolName:    s.Pool.Name,
			PoolAddress: s.Pool.Address.String(),
			RawPrice:    decimal.NewFromUint64(s.Price),
			Price:       s.Decimal,
			Reserve:     decimal.NewFromUint64(s.Reserve),
			Supply:      decimal.NewFromUint64(s.Supply),
			Slot:        int64(s.Slot),
			Available:   s.Available,
			Stale:       s.Stale,
			Reason:      s.Reason,
			ObservedAt:  s.UpdatedAt.UTC(),
			PricedAt:    pricedAt(s.PricedAt),
		})
	}
	return rows
}

func pricedAt(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	utc := t.UTC()
	return &utc
}

// FromModels восстанавливает снапшоты из строк таблицы. Строка с
// некорректным адресом или ценой вне u64 возвращает ошибку.
func FromModels(rows []models.PriceSnapshot) ([]monitor.Snapshot, error) {
	snaps := make([]monitor.Snapshot, 0, len(rows))
	for _, r := range rows {
		addr, err := solana.PublicKeyFromBase58(r.PoolAddress)
		if err != nil {
			return nil, fmt.Errorf("snapshot %d: %w", r.ID, err)
		}
		price, err := toUint64(r.RawPrice)
		if err != nil {
			return nil, fmt.Errorf("snapshot %d raw price: %w", r.ID, err)
		}
		reserve, err := toUint64(r.Reserve)
		if err != nil {
			return nil, fmt.Errorf("snapshot %d reserve: %w", r.ID, err)
		}
		supply, err := toUint64(r.Supply)
		if err != nil {
			return nil, fmt.Errorf("snapshot %d supply: %w", r.ID, err)
		}

		snap := monitor.Snapshot{
			Pool:      monitor.Pool{Name: r.PoolName, Address: addr},
			Price:     price,
			Decimal:   r.Price,
			Reserve:   reserve,
			Supply:    supply,
			Slot:      uint64(r.Slot),
			UpdatedAt: r.ObservedAt,
			Available: r.Available,
			Stale:     r.Stale,
			Reason:    r.Reason,
		}
		if r.PricedAt != nil {
			snap.PricedAt = *r.PricedAt
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

func toUint64(d decimal.Decimal) (uint64, error) {
	b := d.BigInt()
	if b.Sign() < 0 || !b.IsUint64() {
		return 0, fmt.Errorf("%s out of u64 range", d)
	}
	return b.Uint64(), nil
}

// internal/storage/storage.go
package storage

import (
	"context"
	"time"

	"github.com/rovshanmuradov/stakepool-price/internal/monitor"
	"github.com/rovshanmuradov/stakepool-price/internal/storage/models"
)

// Storage определяет интерфейс для работы с хранилищем
type Storage interface {
	// Снапшоты цен
	SaveSnapshots(ctx context.Context, snaps []monitor.Snapshot) error
	ListSnapshots(ctx context.Context, poolAddress string, since time.Time, limit int) ([]models.PriceSnapshot, error)

	// Миграции
	RunMigrations() error
	Close() error
}

var _ monitor.Recorder = (Storage)(nil)

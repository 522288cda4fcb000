// internal/storage/models/price_snapshot.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceSnapshot is one persisted refresh result for a stake pool.
// Raw u64 values are kept as numeric so the full unsigned range survives.
type PriceSnapshot struct {
	BaseModel
	PoolName    string          `gorm:"index;not null;type:varchar(64)"`
	PoolAddress string          `gorm:"index:idx_pool_observed;not null;type:varchar(44)"`
	RawPrice    decimal.Decimal `gorm:"type:numeric(20,0);not null"`
	Price       decimal.Decimal `gorm:"type:numeric(40,18);not null"`
	Reserve     decimal.Decimal `gorm:"type:numeric(20,0)"`
	Supply      decimal.Decimal `gorm:"type:numeric(20,0)"`
	Slot        int64           `gorm:"index"`
	Available   bool            `gorm:"not null"`
	Stale       bool            `gorm:"not null;default:false"`
	Reason      string          `gorm:"type:varchar(32)"`
	ObservedAt  time.Time       `gorm:"index:idx_pool_observed;not null"`
	PricedAt    *time.Time
}

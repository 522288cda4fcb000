package monitor

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// Pool is a stake pool account whose virtual price is tracked.
type Pool struct {
	Name    string
	Address solana.PublicKey
}

// Snapshot is the price state of one pool after a refresh.
//
// UpdatedAt and Slot always describe the refresh that produced the snapshot.
// PricedAt is when Price was computed. A snapshot with Stale set carries the
// last good price and its PricedAt together with the Reason the latest read
// failed. Available is false only when no price has ever been computed for
// the pool.
type Snapshot struct {
	Pool      Pool
	Price     uint64
	Decimal   decimal.Decimal
	Reserve   uint64
	Supply    uint64
	Slot      uint64
	UpdatedAt time.Time
	PricedAt  time.Time
	Available bool
	Stale     bool
	Reason    string
}

// PriceUpdate is delivered to the UI after each refresh.
type PriceUpdate struct {
	Snapshots []Snapshot
	At        time.Time
}

// Failure reasons used in snapshots, logs and metric labels.
const (
	ReasonRPC           = "rpc_error"
	ReasonNotFound      = "account_not_found"
	ReasonOwnerMismatch = "owner_mismatch"
	ReasonTooShort      = "account_too_short"
	ReasonFieldWidth    = "field_width"
	ReasonZeroSupply    = "zero_supply"
	ReasonMulOverflow   = "mul_overflow"
	ReasonNarrow        = "narrow_overflow"
	ReasonPrecision     = "invalid_precision"
	ReasonUnknown       = "unknown"
)

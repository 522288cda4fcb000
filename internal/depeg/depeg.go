// internal/depeg/depeg.go
package depeg

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/stakepool-price/internal/depeg/splstake"
)

// DefaultPrecision is the fixed-point scale used for depeg virtual prices.
const DefaultPrecision uint64 = 1_000_000

var (
	ErrUnsupportedType  = errors.New("unsupported depeg type")
	ErrInvalidPrecision = errors.New("invalid precision")
)

// Type selects how the virtual price of a pool token is derived.
type Type string

const (
	TypeNone     Type = "none"
	TypeSplStake Type = "spl_stake"
)

// ParseType accepts the config spelling of a depeg type.
func ParseType(s string) (Type, error) {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case TypeNone, "":
		return TypeNone, nil
	case TypeSplStake, "splstake", "spl-stake":
		return TypeSplStake, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedType, s)
}

// NewPrecision wraps a uint64 scale.
func NewPrecision(p uint64) *uint256.Int {
	return uint256.NewInt(p)
}

// PrecisionFromDecimals returns 10^decimals. Scales wider than 128 bits are rejected.
func PrecisionFromDecimals(decimals uint8) (*uint256.Int, error) {
	p := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(decimals)))
	if decimals > 38 || p.BitLen() > 128 {
		return nil, fmt.Errorf("%w: 10^%d exceeds 128 bits", ErrInvalidPrecision, decimals)
	}
	return p, nil
}

// ParsePrecision parses a base-10 scale such as "1000000".
func ParsePrecision(s string) (*uint256.Int, error) {
	p, err := uint256.FromDecimal(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrecision, err)
	}
	if p.IsZero() || p.BitLen() > 128 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPrecision, s)
	}
	return p, nil
}

// Source derives a virtual price from raw account bytes.
type Source interface {
	Type() Type
	Compute(data []byte) (uint64, error)
}

type splStakeSource struct {
	precision *uint256.Int
}

func (s splStakeSource) Type() Type { return TypeSplStake }

func (s splStakeSource) Compute(data []byte) (uint64, error) {
	return splstake.Compute(data, s.precision)
}

// NewSource returns the price source for t using the given scale.
func NewSource(t Type, precision *uint256.Int) (Source, error) {
	if precision == nil || precision.IsZero() || precision.BitLen() > 128 {
		return nil, ErrInvalidPrecision
	}
	switch t {
	case TypeSplStake:
		return splStakeSource{precision: precision.Clone()}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, t)
}

// ToDecimal converts a fixed-point price into a human readable ratio.
// A power-of-ten precision gives an exact result; any other precision is
// rounded far enough past its own digit count that no price rounds to zero.
func ToDecimal(price uint64, precision *uint256.Int) decimal.Decimal {
	value := new(big.Int).SetUint64(price)
	if precision == nil || precision.IsZero() {
		return decimal.NewFromBigInt(value, 0)
	}
	digits := precision.Dec()
	if digits[0] == '1' && strings.Trim(digits[1:], "0") == "" {
		return decimal.NewFromBigInt(value, -int32(len(digits)-1))
	}
	// a u64 has at most 20 digits
	return decimal.NewFromBigInt(value, 0).DivRound(decimal.NewFromBigInt(precision.ToBig(), 0), int32(len(digits)+20))
}

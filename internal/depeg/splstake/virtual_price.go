package splstake

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/stakepool-price/internal/utils/binary"
)

// Reasons a virtual price cannot be derived. None of them is fatal to the caller.
var (
	ErrAccountTooShort  = errors.New("account data too short")
	ErrFieldWidth       = errors.New("field width mismatch")
	ErrZeroSupply       = errors.New("pool token supply is zero")
	ErrMulOverflow      = errors.New("reserve times precision overflows 128 bits")
	ErrNarrowOverflow   = errors.New("virtual price overflows 64 bits")
	ErrInvalidPrecision = errors.New("precision does not fit in 128 bits")
)

const wideBits = 128

// Fields holds the raw counters read from a StakePool account.
type Fields struct {
	TotalLamports   uint64
	PoolTokenSupply uint64
}

// ReadFields extracts both counters from the account bytes.
func ReadFields(data []byte) (Fields, error) {
	if len(data) < MinAccountLen {
		return Fields{}, fmt.Errorf("%w: %d < %d", ErrAccountTooShort, len(data), MinAccountLen)
	}

	total, err := readField(data, TotalLamports)
	if err != nil {
		return Fields{}, err
	}
	supply, err := readField(data, PoolTokenSupply)
	if err != nil {
		return Fields{}, err
	}

	return Fields{TotalLamports: total, PoolTokenSupply: supply}, nil
}

func readField(data []byte, f Field) (uint64, error) {
	if f.Width != 8 {
		return 0, fmt.Errorf("%w: %s is %d bytes", ErrFieldWidth, f.Name, f.Width)
	}
	v, err := binary.ReadUint64LE(data, f.Offset)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrFieldWidth, f.Name, err)
	}
	return v, nil
}

// Compute returns total_lamports * precision / pool_token_supply.
//
// The product is formed in 128 bits and the quotient must fit back into 64;
// anything else is reported as an error rather than wrapped or truncated.
func Compute(data []byte, precision *uint256.Int) (uint64, error) {
	if precision == nil || precision.BitLen() > wideBits {
		return 0, ErrInvalidPrecision
	}

	fields, err := ReadFields(data)
	if err != nil {
		return 0, err
	}
	if fields.PoolTokenSupply == 0 {
		return 0, ErrZeroSupply
	}

	product, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(fields.TotalLamports), precision)
	if overflow || product.BitLen() > wideBits {
		return 0, ErrMulOverflow
	}

	quotient := product.Div(product, uint256.NewInt(fields.PoolTokenSupply))
	if !quotient.IsUint64() {
		return 0, ErrNarrowOverflow
	}

	return quotient.Uint64(), nil
}

// VirtualPrice is Compute without the reason: ok is false whenever no price
// can be derived from data.
func VirtualPrice(data []byte, precision *uint256.Int) (uint64, bool) {
	price, err := Compute(data, precision)
	if err != nil {
		return 0, false
	}
	return price, true
}

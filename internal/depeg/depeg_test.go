package depeg

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/stakepool-price/internal/depeg/splstake"
	"github.com/rovshanmuradov/stakepool-price/internal/utils/binary"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in      string
		want    Type
		wantErr bool
	}{
		{"spl_stake", TypeSplStake, false},
		{" SPL-Stake ", TypeSplStake, false},
		{"", TypeNone, false},
		{"marinade", "", true},
	}
	for _, tt := range tests {
		got, err := ParseType(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnsupportedType, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestPrecision(t *testing.T) {
	p, err := PrecisionFromDecimals(6)
	require.NoError(t, err)
	assert.Equal(t, DefaultPrecision, p.Uint64())

	p, err = PrecisionFromDecimals(38)
	require.NoError(t, err)
	assert.LessOrEqual(t, p.BitLen(), 128)

	_, err = PrecisionFromDecimals(39)
	assert.ErrorIs(t, err, ErrInvalidPrecision)

	p, err = ParsePrecision(" 1000000000 ")
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000_000), p.Uint64())

	for _, bad := range []string{"", "0", "-5", "abc", "340282366920938463463374607431768211456"} {
		_, err := ParsePrecision(bad)
		assert.ErrorIs(t, err, ErrInvalidPrecision, bad)
	}
}

func TestNewSource(t *testing.T) {
	_, err := NewSource(TypeNone, NewPrecision(DefaultPrecision))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = NewSource(TypeSplStake, uint256.NewInt(0))
	assert.ErrorIs(t, err, ErrInvalidPrecision)

	precision := NewPrecision(DefaultPrecision)
	src, err := NewSource(TypeSplStake, precision)
	require.NoError(t, err)
	assert.Equal(t, TypeSplStake, src.Type())

	// the source keeps its own copy of the scale
	precision.SetUint64(1)

	data := make([]byte, splstake.MinAccountLen)
	require.NoError(t, binary.WriteUint64LE(1_000_000_000, data, splstake.TotalLamports.Offset))
	require.NoError(t, binary.WriteUint64LE(500_000_000, data, splstake.PoolTokenSupply.Offset))

	price, err := src.Compute(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(2_000_000), price)

	_, err = src.Compute(data[:100])
	assert.ErrorIs(t, err, splstake.ErrAccountTooShort)
}

func TestToDecimal(t *testing.T) {
	p := NewPrecision(DefaultPrecision)
	assert.Equal(t, "2", ToDecimal(2_000_000, p).String())
	assert.Equal(t, "1.234567", ToDecimal(1_234_567, p).String())
	assert.Equal(t, "18446744073709.551615", ToDecimal(^uint64(0), p).String())
	assert.Equal(t, "5", ToDecimal(5, nil).String())
}

func TestToDecimalWidePrecision(t *testing.T) {
	p, err := PrecisionFromDecimals(18)
	require.NoError(t, err)
	assert.Equal(t, "0.000000000000000001", ToDecimal(1, p).String())

	p, err = PrecisionFromDecimals(30)
	require.NoError(t, err)
	assert.Equal(t, "0.000000000000000000000000000001", ToDecimal(1, p).String())
	assert.Equal(t, "0.000000000018446744073709551615", ToDecimal(^uint64(0), p).String())

	// 3 * 10^17 is not a power of ten
	p, err = ParsePrecision("300000000000000000")
	require.NoError(t, err)
	d := ToDecimal(1, p)
	assert.True(t, d.IsPositive(), d.String())
	assert.Equal(t, "0.0000000000000000033333", d.StringFixed(22))
}

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/stakepool-price/internal/depeg"
	"github.com/rovshanmuradov/stakepool-price/internal/depeg/splstake"
	"github.com/rovshanmuradov/stakepool-price/internal/utils/binary"
)

func TestPrecisionOverride(t *testing.T) {
	p, err := precisionOverride("", -1)
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = precisionOverride("1000", -1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), p.Uint64())

	p, err = precisionOverride("", 9)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000_000), p.Uint64())

	_, err = precisionOverride("1000", 9)
	assert.Error(t, err)

	_, err = precisionOverride("", 39)
	assert.ErrorIs(t, err, depeg.ErrInvalidPrecision)

	_, err = precisionOverride("", 300)
	assert.ErrorIs(t, err, depeg.ErrInvalidPrecision)
}

func TestPriceFromFile(t *testing.T) {
	data := make([]byte, splstake.MinAccountLen)
	require.NoError(t, binary.WriteUint64LE(3_000, data, splstake.TotalLamports.Offset))
	require.NoError(t, binary.WriteUint64LE(1_000, data, splstake.PoolTokenSupply.Offset))
	path := filepath.Join(t.TempDir(), "pool.bin")
	require.NoError(t, os.WriteFile(path, data, 0600))

	assert.NoError(t, priceFromFile(path, nil))

	p, err := precisionOverride("", 9)
	require.NoError(t, err)
	assert.NoError(t, priceFromFile(path, p))

	require.NoError(t, os.WriteFile(path, data[:100], 0600))
	assert.ErrorIs(t, priceFromFile(path, nil), splstake.ErrAccountTooShort)
}

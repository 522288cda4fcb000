package binary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadUint64LE(t *testing.T) {
	data := make([]byte, 16)
	require.NoError(t, WriteUint64LE(0x0102030405060708, data, 8))

	v, err := ReadUint64LE(data, 8)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0102030405060708), v)
	assert.Equal(t, byte(0x08), data[8], "least significant byte goes first")
}

func TestReadOutOfRange(t *testing.T) {
	data := make([]byte, 10)

	tests := []struct {
		name   string
		offset int
	}{
		{"tail overrun", 3},
		{"negative offset", -1},
		{"offset past end", 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadUint64LE(data, tt.offset)
			assert.ErrorIs(t, err, ErrOutOfRange)
		})
	}

	_, err := ReadUint64LE(nil, 0)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.ErrorIs(t, WriteUint64LE(1, data, 5), ErrOutOfRange)
}

// internal/utils/binary/binary.go
package binary

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrOutOfRange is returned when a field lies outside the buffer.
var ErrOutOfRange = errors.New("field out of range")

func checkRange(data []byte, offset, width int) error {
	if offset < 0 || width < 0 || offset > len(data)-width {
		return fmt.Errorf("%w: offset %d width %d len %d", ErrOutOfRange, offset, width, len(data))
	}
	return nil
}

// ReadUint64LE reads a little-endian uint64 at offset without panicking on short input.
func ReadUint64LE(data []byte, offset int) (uint64, error) {
	if err := checkRange(data, offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(data[offset : offset+8]), nil
}

// WriteUint64LE writes val at offset in little-endian order.
func WriteUint64LE(val uint64, data []byte, offset int) error {
	if err := checkRange(data, offset, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(data[offset:offset+8], val)
	return nil
}

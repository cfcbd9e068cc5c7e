// Package inputs decodes the Baah Box sensor frame and scales raw sensor
// values into game-logic values. Everything in this package is pure: no
// logging, no I/O, no package-level mutable state.
package inputs

import "fmt"

// Characteristic is the read-only view of one GATT characteristic update.
// Implementations must be safe to read concurrently.
type Characteristic interface {
	// Len returns the payload size in bytes.
	Len() int
	// ByteAt returns the unsigned byte at offset.
	ByteAt(offset int) (byte, error)
}

// Bytes adapts a raw payload to Characteristic.
type Bytes []byte

func (b Bytes) Len() int { return len(b) }

func (b Bytes) ByteAt(offset int) (byte, error) {
	if offset < 0 || offset >= len(b) {
		return 0, fmt.Errorf("%w: offset %d, length %d", ErrOutOfRange, offset, len(b))
	}
	return b[offset], nil
}

// FromBytes returns nil for a nil payload so that callers holding a plain
// slice can express "no frame received yet".
func FromBytes(data []byte) Characteristic {
	if data == nil {
		return nil
	}
	return Bytes(data)
}

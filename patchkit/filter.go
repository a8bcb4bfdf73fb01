package patchkit

import (
	"fmt"
)

// NewByteFilter creates a ByteFilter that forbids the specified
// byte values.
func NewByteFilter(forbidden []byte) ByteFilter {
	var filter ByteFilter

	for _, b := range forbidden {
		filter.forbidden[b] = true
	}

	return filter
}

// DefaultUARTFilter returns the filter for a UART console transport,
// forbidding NUL, LF, CR, BS, DEL, SPACE, and TAB.
func DefaultUARTFilter() ByteFilter {
	return NewByteFilter([]byte{0x00, 0x0a, 0x0d, 0x08, 0x7f, 0x20, 0x09})
}

// ByteFilter models a byte-filtering transport: a set of byte values
// that must never appear in transmitted code or in the numeric values
// used to compute it. The zero value forbids nothing.
type ByteFilter struct {
	forbidden [256]bool
}

// IsForbidden reports whether b is a member of the forbidden set.
func (o ByteFilter) IsForbidden(b byte) bool {
	return o.forbidden[b]
}

// IsSafe reports whether buf contains no forbidden byte.
func (o ByteFilter) IsSafe(buf []byte) bool {
	for _, b := range buf {
		if o.forbidden[b] {
			return false
		}
	}

	return true
}

// Check returns a *UnsafeByteError describing the first forbidden
// byte in buf, or nil if buf is filter-clean.
func (o ByteFilter) Check(buf []byte) error {
	for i, b := range buf {
		if o.forbidden[b] {
			return &UnsafeByteError{
				Value:  b,
				Offset: i,
			}
		}
	}

	return nil
}

// UnsafeByteError reports a forbidden byte found in a buffer that was
// about to be transmitted. Transmission must not proceed.
type UnsafeByteError struct {
	// Value is the forbidden byte.
	Value byte

	// Offset is the byte's position in the buffer.
	Offset int
}

// OpcodeIndex returns the index of the 4-byte instruction word
// containing the forbidden byte.
func (o *UnsafeByteError) OpcodeIndex() int {
	return o.Offset / 4
}

func (o *UnsafeByteError) Error() string {
	return fmt.Sprintf("forbidden byte 0x%02x at offset %d (opcode %d)",
		o.Value, o.Offset, o.OpcodeIndex())
}

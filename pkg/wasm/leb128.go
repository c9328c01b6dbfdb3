package wasm

import "errors"

var (
	// ErrUnexpectedEnd is returned when a binary ends in the middle of a value.
	ErrUnexpectedEnd = errors.New("unexpected end of binary")

	// ErrLEBOverflow is returned when a LEB128 value does not fit its type.
	ErrLEBOverflow = errors.New("leb128 value overflows")
)

// AppendUleb32 appends v as unsigned LEB128.
func AppendUleb32(b []byte, v uint32) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		b = append(b, c)
		if v == 0 {
			return b
		}
	}
}

// AppendSleb64 appends v as signed LEB128.
func AppendSleb64(b []byte, v int64) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0)
		if !done {
			c |= 0x80
		}
		b = append(b, c)
		if done {
			return b
		}
	}
}

// AppendSleb32 appends v as signed LEB128.
func AppendSleb32(b []byte, v int32) []byte {
	return AppendSleb64(b, int64(v))
}

// readUleb32 decodes an unsigned LEB128 u32 and returns the value and the
// number of bytes consumed.
func readUleb32(b []byte) (uint32, int, error) {
	var result uint32
	var shift uint
	for i := 0; i < 5; i++ {
		if i >= len(b) {
			return 0, 0, ErrUnexpectedEnd
		}
		c := b[i]
		if i == 4 && c&0xf0 != 0 {
			return 0, 0, ErrLEBOverflow
		}
		result |= uint32(c&0x7f) << shift
		if c&0x80 == 0 {
			return result, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, ErrLEBOverflow
}

// readSleb decodes a signed LEB128 value of at most maxBytes bytes
// (5 for s32/s33, 10 for s64).
func readSleb(b []byte, maxBytes int) (int64, int, error) {
	var result int64
	var shift uint
	for i := 0; i < maxBytes; i++ {
		if i >= len(b) {
			return 0, 0, ErrUnexpectedEnd
		}
		c := b[i]
		result |= int64(c&0x7f) << shift
		shift += 7
		if c&0x80 == 0 {
			if shift < 64 && c&0x40 != 0 {
				result |= -1 << shift
			}
			return result, i + 1, nil
		}
	}
	return 0, 0, ErrLEBOverflow
}

// Package protocol implements the broker's length-prefixed wire framing: an
// append-mostly byte buffer with an explicit read cursor, and the packet
// builder helpers layered on top of it.
package protocol

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// Buffer is an append-mostly byte buffer with an explicit read cursor.
// Partial frames accumulate here across socket reads; the cursor lets the
// frame dispatcher peek a length header without consuming it until the full
// frame has arrived.
type Buffer struct {
	data   []byte
	cursor int
}

// NewBuffer returns an empty Buffer with the given initial capacity.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{data: make([]byte, 0, capacity)}
}

// WriteSlice appends p to the buffer.
func (b *Buffer) WriteSlice(p []byte) {
	b.data = append(b.data, p...)
}

// ReadSlice reads n bytes starting at the cursor and advances it.
func (b *Buffer) ReadSlice(n int) ([]byte, error) {
	if n < 0 || b.cursor+n > len(b.data) {
		return nil, fmt.Errorf("protocol: read %d bytes at cursor %d exceeds length %d", n, b.cursor, len(b.data))
	}
	out := b.data[b.cursor : b.cursor+n]
	b.cursor += n
	return out, nil
}

// Length returns the number of bytes currently stored.
func (b *Buffer) Length() int { return len(b.data) }

// Cursor returns the current read position.
func (b *Buffer) Cursor() int { return b.cursor }

// Remaining returns the number of unread bytes.
func (b *Buffer) Remaining() int { return len(b.data) - b.cursor }

// MoveCursor sets the read position directly.
func (b *Buffer) MoveCursor(pos int) error {
	if pos < 0 || pos > len(b.data) {
		return fmt.Errorf("protocol: cursor %d out of range [0,%d]", pos, len(b.data))
	}
	b.cursor = pos
	return nil
}

// MoveCursorToEnd moves the cursor to the end of the stored data, used
// before appending freshly read socket bytes.
func (b *Buffer) MoveCursorToEnd() { b.cursor = len(b.data) }

// MoveCursorToStart rewinds the cursor to zero, used when reusing a scratch
// buffer for the next frame.
func (b *Buffer) MoveCursorToStart() { b.cursor = 0 }

// IsEmpty reports whether there is no unread data.
func (b *Buffer) IsEmpty() bool { return b.Remaining() == 0 }

// Compact discards bytes before the cursor, shifting remaining bytes to the
// front. Called between read passes so the buffer does not grow without
// bound while a connection sits idle mid-frame.
func (b *Buffer) Compact() {
	if b.cursor == 0 {
		return
	}
	n := copy(b.data, b.data[b.cursor:])
	b.data = b.data[:n]
	b.cursor = 0
}

// ReadUint8 reads one byte and advances the cursor.
func (b *Buffer) ReadUint8() (uint8, error) {
	s, err := b.ReadSlice(1)
	if err != nil {
		return 0, err
	}
	return s[0], nil
}

// ReadUint16 reads a little-endian uint16.
func (b *Buffer) ReadUint16() (uint16, error) {
	s, err := b.ReadSlice(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(s), nil
}

// ReadUint32 reads a little-endian uint32.
func (b *Buffer) ReadUint32() (uint32, error) {
	s, err := b.ReadSlice(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(s), nil
}

// ReadUint64 reads a little-endian uint64.
func (b *Buffer) ReadUint64() (uint64, error) {
	s, err := b.ReadSlice(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(s), nil
}

// ReadInt64 reads a little-endian int64.
func (b *Buffer) ReadInt64() (int64, error) {
	v, err := b.ReadUint64()
	return int64(v), err
}

// ReadBool reads one byte as a boolean (non-zero is true).
func (b *Buffer) ReadBool() (bool, error) {
	v, err := b.ReadUint8()
	return v != 0, err
}

// ReadString reads a [u64 length][utf-8 bytes] string. Malformed UTF-8
// decodes to the empty string rather than failing the frame, per spec.
func (b *Buffer) ReadString() (string, error) {
	n, err := b.ReadUint64()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	s, err := b.ReadSlice(int(n))
	if err != nil {
		return "", err
	}
	if !isValidUTF8(s) {
		return "", nil
	}
	return string(s), nil
}

func isValidUTF8(b []byte) bool {
	return utf8.Valid(b)
}

package protocol

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/questgate/authbroker/internal/constants"
)

// Packet is an outbound message under construction: a packet id followed by
// a body, framed with an 8-byte little-endian length header on Finish.
type Packet struct {
	buf []byte
}

// NewPacket starts a packet carrying the given packet id as a single byte,
// the plain new_packet width.
func NewPacket(id uint8) *Packet {
	p := &Packet{buf: make([]byte, 0, 64)}
	p.WriteUint8(id)
	return p
}

// NewPacketWithCount starts a packet carrying a packet id widened to two
// bytes, followed by an 8-byte count field, used by multi-entry packets
// such as the server list (new_packet_with_count in the wire spec).
func NewPacketWithCount(id uint16, count uint64) *Packet {
	p := &Packet{buf: make([]byte, 0, 64)}
	p.WriteUint16(id)
	p.WriteUint64(count)
	return p
}

// WriteUint8 appends a single byte.
func (p *Packet) WriteUint8(v uint8) { p.buf = append(p.buf, v) }

// WriteBool appends a byte: 1 for true, 0 for false.
func (p *Packet) WriteBool(v bool) {
	if v {
		p.WriteUint8(1)
		return
	}
	p.WriteUint8(0)
}

// WriteUint16 appends a little-endian uint16.
func (p *Packet) WriteUint16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	p.buf = append(p.buf, b[:]...)
}

// WriteUint32 appends a little-endian uint32.
func (p *Packet) WriteUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	p.buf = append(p.buf, b[:]...)
}

// WriteUint64 appends a little-endian uint64.
func (p *Packet) WriteUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	p.buf = append(p.buf, b[:]...)
}

// WriteInt64 appends a little-endian int64.
func (p *Packet) WriteInt64(v int64) { p.WriteUint64(uint64(v)) }

// WriteString appends a [u64 length][utf-8 bytes] string.
func (p *Packet) WriteString(s string) {
	p.WriteUint64(uint64(len(s)))
	p.buf = append(p.buf, s...)
}

// WriteSlice appends raw bytes verbatim, with no length prefix.
func (p *Packet) WriteSlice(b []byte) { p.buf = append(p.buf, b...) }

// Finish returns the complete frame: an 8-byte length header followed by
// the packet body.
func (p *Packet) Finish() []byte {
	return frame(p.buf)
}

// Body returns the packet's raw body with no length header, the same bytes
// a frame dispatcher hands a packet handler after extracting one frame.
func (p *Packet) Body() []byte {
	return append([]byte(nil), p.buf...)
}

// FinishWithCount is kept for parity with NewPacketWithCount; the count
// field is already part of the body by the time Finish is called.
func (p *Packet) FinishWithCount() []byte {
	return p.Finish()
}

func frame(body []byte) []byte {
	out := make([]byte, constants.FrameHeaderSize+len(body))
	binary.LittleEndian.PutUint64(out, uint64(len(body)))
	copy(out[constants.FrameHeaderSize:], body)
	return out
}

// WriteFrame writes a complete length-prefixed frame to w.
func WriteFrame(w io.Writer, body []byte) error {
	_, err := w.Write(frame(body))
	return err
}

// ReadFrame reads one length-prefixed frame from r, enforcing the
// [MinFrameLength, MaxFrameLength] bound. A length of 0 or greater than
// MaxFrameLength is a protocol violation the caller must treat as fatal.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [constants.FrameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint64(header[:])
	if length < constants.MinFrameLength || length > constants.MaxFrameLength {
		return nil, fmt.Errorf("protocol: frame length %d out of bounds [%d,%d]", length, constants.MinFrameLength, constants.MaxFrameLength)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

// TryExtractFrame attempts to pull one complete frame out of buf starting
// at its cursor. It returns the frame body and true if a full frame was
// available; otherwise it rewinds the cursor to where it started so the
// caller can append more bytes and retry, per the insufficient-bytes
// rewind-and-retry rule. A length of 0 or greater than MaxFrameLength is a
// fatal protocol violation reported as an error.
func TryExtractFrame(buf *Buffer) (body []byte, ok bool, err error) {
	start := buf.Cursor()
	if buf.Remaining() < constants.FrameHeaderSize {
		return nil, false, nil
	}
	length, err := buf.ReadUint64()
	if err != nil {
		buf.MoveCursor(start)
		return nil, false, nil
	}
	if length < constants.MinFrameLength || length > constants.MaxFrameLength {
		return nil, false, fmt.Errorf("protocol: frame length %d out of bounds [%d,%d]", length, constants.MinFrameLength, constants.MaxFrameLength)
	}
	if buf.Remaining() < int(length) {
		buf.MoveCursor(start)
		return nil, false, nil
	}
	body, err = buf.ReadSlice(int(length))
	if err != nil {
		buf.MoveCursor(start)
		return nil, false, nil
	}
	return body, true, nil
}

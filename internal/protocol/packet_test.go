package protocol

import (
	"bytes"
	"testing"

	"github.com/questgate/authbroker/internal/constants"
	"github.com/stretchr/testify/require"
)

func TestPacketRoundTrip(t *testing.T) {
	p := NewPacket(7)
	p.WriteString("hello")
	p.WriteUint32(42)
	p.WriteBool(true)
	frame := p.Finish()

	body, err := ReadFrame(bytes.NewReader(frame))
	require.NoError(t, err)

	buf := NewBuffer(len(body))
	buf.WriteSlice(body)

	id, err := buf.ReadUint8()
	require.NoError(t, err)
	require.EqualValues(t, 7, id)

	s, err := buf.ReadString()
	require.NoError(t, err)
	require.Equal(t, "hello", s)

	n, err := buf.ReadUint32()
	require.NoError(t, err)
	require.EqualValues(t, 42, n)

	ok, err := buf.ReadBool()
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, buf.IsEmpty())
}

func TestReadStringMalformedUTF8DecodesEmpty(t *testing.T) {
	p := &Packet{}
	p.WriteSlice([]byte{0xff, 0xfe, 0xfd})
	bad := p.buf

	buf := NewBuffer(16)
	lp := &Packet{}
	lp.WriteUint64(uint64(len(bad)))
	lp.WriteSlice(bad)
	buf.WriteSlice(lp.buf)

	s, err := buf.ReadString()
	require.NoError(t, err)
	require.Equal(t, "", s)
}

func TestTryExtractFrameInsufficientBytesRewinds(t *testing.T) {
	p := NewPacket(1)
	p.WriteString("partial-test")
	full := p.Finish()

	buf := NewBuffer(32)
	buf.WriteSlice(full[:len(full)-2]) // withhold the last two bytes

	_, ok, err := TryExtractFrame(buf)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 0, buf.Cursor())

	buf.MoveCursorToEnd()
	buf.WriteSlice(full[len(full)-2:])
	buf.MoveCursorToStart()

	body, ok, err := TryExtractFrame(buf)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, full[constants.FrameHeaderSize:], body)
}

func TestTryExtractFrameRejectsZeroLength(t *testing.T) {
	buf := NewBuffer(16)
	header := make([]byte, constants.FrameHeaderSize)
	buf.WriteSlice(header)

	_, _, err := TryExtractFrame(buf)
	require.Error(t, err)
}

func TestTryExtractFrameRejectsOversizeLength(t *testing.T) {
	p := NewPacket(1)
	p.WriteSlice(make([]byte, constants.MaxFrameLength+1))
	oversized := p.Finish()

	buf := NewBuffer(len(oversized))
	buf.WriteSlice(oversized)

	_, _, err := TryExtractFrame(buf)
	require.Error(t, err)
}

func TestReadFrameRejectsBoundaryLengths(t *testing.T) {
	for _, length := range []uint64{0, constants.MaxFrameLength + 1} {
		header := make([]byte, constants.FrameHeaderSize)
		for i := range header {
			header[i] = byte(length >> (8 * i))
		}
		_, err := ReadFrame(bytes.NewReader(header))
		require.Error(t, err)
	}
}

package protocol_test

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipc-bridge/bridgetest"
	"ipc-bridge/codec"
	"ipc-bridge/message"
	"ipc-bridge/protocol"
)

func le(words ...uint64) []byte {
	var b []byte
	for _, w := range words {
		b = binary.LittleEndian.AppendUint64(b, w)
	}
	return b
}

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) { return len(p) / 2, nil }

func TestWriteOpenService(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, protocol.WriteOpenService(&buf, "ldr:ro"))
	assert.Equal(t, append(le(0, 6), "ldr:ro"...), buf.Bytes())
}

func TestWriteSendMessage(t *testing.T) {
	m := message.NewOutbound(4, 4).PushWord(0).CopyHandle(0xFFFF8001).WithTargetProcess(0xA)

	var buf bytes.Buffer
	require.NoError(t, protocol.WriteSendMessage(&buf, 0x1000, m))
	require.Equal(t, 8+codec.OutboundSize(m)+8, buf.Len())
	assert.Equal(t, le(0x1000), buf.Bytes()[buf.Len()-8:], "the handle trails the frame")

	cmd, err := protocol.ReadCommand(&buf)
	require.NoError(t, err)
	assert.Equal(t, protocol.CmdSendMessage, cmd)

	got, err := bridgetest.DecodeOutbound(&buf)
	require.NoError(t, err)
	assert.Equal(t, m.Words, got.Words)
	assert.Equal(t, m.CopiedHandles, got.CopiedHandles)
	assert.Equal(t, int64(0xA), got.TargetProcess)

	handle, err := codec.ReadUint64(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1000), handle)
}

func TestWriteSendMessageNil(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, protocol.WriteSendMessage(&buf, 1, nil), codec.ErrNilMessage)
	assert.Zero(t, buf.Len())
}

func TestWriteAllocate(t *testing.T) {
	data := []byte("0123456789abcdef")

	var buf bytes.Buffer
	require.NoError(t, protocol.WriteAllocate(&buf, data))
	assert.Equal(t, append(le(3, 2), data...), buf.Bytes())

	buf.Reset()
	err := protocol.WriteAllocate(&buf, data[:12])
	assert.ErrorIs(t, err, protocol.ErrUnalignedData)
	assert.Zero(t, buf.Len(), "nothing is written for unaligned data")

	buf.Reset()
	require.NoError(t, protocol.WriteAllocate(&buf, nil))
	assert.Equal(t, le(3, 0), buf.Bytes())
}

func TestWriteShortWrite(t *testing.T) {
	err := protocol.WriteOpenService(shortWriter{}, "sm:")
	assert.ErrorIs(t, err, io.ErrShortWrite)
	assert.Contains(t, err.Error(), "open_service")

	err = protocol.WriteAllocate(shortWriter{}, make([]byte, 8))
	assert.ErrorIs(t, err, io.ErrShortWrite)
}

func TestReadCommand(t *testing.T) {
	for _, cmd := range []protocol.Command{protocol.CmdOpenService, protocol.CmdSendMessage, protocol.CmdAllocate} {
		got, err := protocol.ReadCommand(bytes.NewReader(le(uint64(cmd))))
		require.NoError(t, err)
		assert.Equal(t, cmd, got)
	}

	_, err := protocol.ReadCommand(bytes.NewReader(le(1)))
	assert.ErrorIs(t, err, protocol.ErrUnknownCommand)

	_, err = protocol.ReadCommand(bytes.NewReader(nil))
	assert.Equal(t, io.EOF, err)
}

func TestReadReplies(t *testing.T) {
	r := bytes.NewReader(le(0x1000, 0x7100000000))

	h, err := protocol.ReadHandle(r)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1000), h)

	addr, err := protocol.ReadAddress(r)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x7100000000), addr)

	_, err = protocol.ReadHandle(r)
	assert.ErrorIs(t, err, io.EOF)

	_, err = protocol.ReadReply(bytes.NewReader(le(0, 2, 1)))
	assert.ErrorIs(t, err, codec.ErrTruncated)

	in, err := protocol.ReadReply(bytes.NewReader(le(0xE401)))
	require.NoError(t, err)
	assert.Equal(t, uint64(0xE401), in.Result())
}

func TestCommandString(t *testing.T) {
	assert.Equal(t, "open_service", protocol.CmdOpenService.String())
	assert.Equal(t, "send_message", protocol.CmdSendMessage.String())
	assert.Equal(t, "allocate", protocol.CmdAllocate.String())
	assert.Equal(t, "command(9)", protocol.Command(9).String())
}

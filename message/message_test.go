package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOutboundDefaults(t *testing.T) {
	msg := NewOutbound(4, 2)

	assert.Equal(t, uint8(4), msg.Kind)
	assert.Equal(t, []uint64{2}, msg.Words)
	assert.Equal(t, NoTargetProcess, msg.TargetProcess)
	assert.Empty(t, msg.CopiedHandles)
	assert.Empty(t, msg.MovedHandles)
	assert.False(t, msg.HasBuffers())
}

func TestOutboundBuilders(t *testing.T) {
	msg := NewOutbound(4, 4).
		PushWord(0).
		CopyHandle(0xFFFF8001).
		MoveHandle(7).
		WithTargetProcess(10)

	assert.Equal(t, []uint64{4, 0}, msg.Words)
	assert.Equal(t, []uint64{0xFFFF8001}, msg.CopiedHandles)
	assert.Equal(t, []uint64{7}, msg.MovedHandles)
	assert.Equal(t, int64(10), msg.TargetProcess)

	msg.BuffersX = append(msg.BuffersX, []byte("x"))
	assert.True(t, msg.HasBuffers())
}

func TestInboundVariants(t *testing.T) {
	var in InboundMessage = &ErrorReply{Code: 0xE401}
	assert.Equal(t, uint64(0xE401), in.Result())

	in = &SuccessReply{Words: []uint64{0, 42}, Kind: 5}
	require.Equal(t, uint64(0), in.Result())

	ok, isSuccess := in.(*SuccessReply)
	require.True(t, isSuccess)
	status, present := ok.Status()
	assert.True(t, present)
	assert.Equal(t, uint64(0), status)

	_, present = (&SuccessReply{}).Status()
	assert.False(t, present)
}

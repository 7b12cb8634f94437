package bridgetest

import (
	"errors"
	"fmt"
	"io"
	"math"

	"ipc-bridge/codec"
	"ipc-bridge/message"
)

// ErrReservedNotZero reports an outbound frame whose four trailing placeholder words
// are not all zero.
var ErrReservedNotZero = errors.New("bridgetest: reserved outbound words are not zero")

// ErrKindOutOfRange reports an outbound kind word that does not fit the 8-bit kind.
var ErrKindOutOfRange = errors.New("bridgetest: outbound kind exceeds 8 bits")

// DecodeOutbound reads one outbound frame, the gateway's view of what
// codec.EncodeOutbound writes. Buffer channels are never present on the wire, so the
// returned message has none.
func DecodeOutbound(r io.Reader) (*message.OutboundMessage, error) {
	kind, err := codec.ReadUint64(r)
	if err != nil {
		return nil, err
	}
	if kind > math.MaxUint8 {
		return nil, fmt.Errorf("%w: %#x", ErrKindOutOfRange, kind)
	}
	m := &message.OutboundMessage{Kind: uint8(kind)}
	if m.Words, err = codec.ReadUint64s(r); err != nil {
		return nil, fmt.Errorf("words: %w", midFrame(err))
	}
	if m.TargetProcess, err = codec.ReadInt64(r); err != nil {
		return nil, fmt.Errorf("target process: %w", midFrame(err))
	}
	if m.CopiedHandles, err = codec.ReadUint64s(r); err != nil {
		return nil, fmt.Errorf("copied handles: %w", midFrame(err))
	}
	if m.MovedHandles, err = codec.ReadUint64s(r); err != nil {
		return nil, fmt.Errorf("moved handles: %w", midFrame(err))
	}
	for i := 0; i < 4; i++ {
		v, err := codec.ReadUint64(r)
		if err != nil {
			return nil, fmt.Errorf("reserved word %d: %w", i, midFrame(err))
		}
		if v != 0 {
			return nil, fmt.Errorf("%w: word %d = %#x", ErrReservedNotZero, i, v)
		}
	}
	return m, nil
}

// midFrame turns a clean end of stream after the first field into truncation.
func midFrame(err error) error {
	if err == io.EOF {
		return codec.ErrTruncated
	}
	return err
}

// AppendInbound appends the wire form of a reply, the gateway's side of
// codec.DecodeInbound.
func AppendInbound(dst []byte, in message.InboundMessage) []byte {
	switch reply := in.(type) {
	case *message.ErrorReply:
		return codec.AppendUint64(dst, reply.Code)
	case *message.SuccessReply:
		dst = codec.AppendUint64(dst, 0)
		dst = codec.AppendUint64s(dst, reply.Words)
		dst = codec.AppendUint64s(dst, reply.CopiedHandles)
		dst = codec.AppendUint64s(dst, reply.MovedHandles)
		for _, ch := range [][]message.BufferEntry{reply.BuffersA, reply.BuffersB, reply.BuffersC, reply.BuffersX} {
			dst = codec.AppendUint64(dst, uint64(len(ch)))
			for _, e := range ch {
				dst = codec.AppendBytes(dst, e.Data)
				dst = codec.AppendUint64(dst, e.Flags)
			}
		}
		return codec.AppendUint64(dst, reply.Kind)
	default:
		panic(fmt.Sprintf("bridgetest: unsupported reply type %T", in))
	}
}

// EncodeInbound writes a reply frame to w.
func EncodeInbound(w io.Writer, in message.InboundMessage) error {
	return codec.WriteFrame(w, AppendInbound(nil, in))
}

// Success builds a success reply of the given kind carrying words.
func Success(kind uint64, words ...uint64) *message.SuccessReply {
	return &message.SuccessReply{
		Words:         append([]uint64{}, words...),
		CopiedHandles: []uint64{},
		MovedHandles:  []uint64{},
		BuffersA:      []message.BufferEntry{},
		BuffersB:      []message.BufferEntry{},
		BuffersC:      []message.BufferEntry{},
		BuffersX:      []message.BufferEntry{},
		Kind:          kind,
	}
}

package codec

import (
	"fmt"
	"io"

	"ipc-bridge/message"
)

// fixedOutboundWords counts kind, targetProcess and the three sequence lengths.
const fixedOutboundWords = 5

// OutboundSize returns the number of bytes EncodeOutbound writes for m.
func OutboundSize(m *message.OutboundMessage) int {
	return 8*(fixedOutboundWords+len(m.Words)+len(m.CopiedHandles)+len(m.MovedHandles)) + 8*reservedWords
}

// AppendOutbound appends the wire form of m to dst. m is not modified.
//
// The buffer channels of m are not transmitted. The current wire version writes four
// zero words in their place, which a receiver must not mistake for four empty
// channels with entries to follow.
func AppendOutbound(dst []byte, m *message.OutboundMessage) []byte {
	dst = AppendUint64(dst, uint64(m.Kind))
	dst = AppendUint64s(dst, m.Words)
	dst = AppendInt64(dst, m.TargetProcess)
	dst = AppendUint64s(dst, m.CopiedHandles)
	dst = AppendUint64s(dst, m.MovedHandles)
	for i := 0; i < reservedWords; i++ {
		dst = AppendUint64(dst, 0)
	}
	return dst
}

// EncodeOutbound writes m to w as one frame. Either the whole frame is accepted by w
// or an error is returned.
//
// Known limitation: BuffersA/B/C/X are silently left out of the frame (see
// AppendOutbound). Callers that rely on them should check m.HasBuffers first.
func EncodeOutbound(w io.Writer, m *message.OutboundMessage) error {
	if m == nil {
		return ErrNilMessage
	}
	buf := AppendOutbound(make([]byte, 0, OutboundSize(m)), m)
	if err := WriteFrame(w, buf); err != nil {
		return fmt.Errorf("codec: write outbound frame: %w", err)
	}
	return nil
}

// WriteString writes s as a standalone length-prefixed value: a u64 byte length
// followed by the raw UTF-8 bytes.
func WriteString(w io.Writer, s string) error {
	if err := WriteFrame(w, AppendString(make([]byte, 0, 8+len(s)), s)); err != nil {
		return fmt.Errorf("codec: write string: %w", err)
	}
	return nil
}

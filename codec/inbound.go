package codec

import (
	"io"

	"ipc-bridge/message"
)

// DecodeInbound reads one reply frame from r.
//
// The leading result word decides the shape of the rest of the frame. A nonzero
// result is returned as *message.ErrorReply after consuming exactly those 8 bytes;
// that is a successful decode, not an error. A zero result is followed by the full
// payload and yields *message.SuccessReply.
//
// No upper bound is placed on any length field. A frame that ends early produces an
// error wrapping ErrTruncated, and io.EOF is returned if r ends before the first byte.
func DecodeInbound(r io.Reader) (message.InboundMessage, error) {
	fr := &frameReader{r: r}

	result, err := fr.uint64("result")
	if err != nil {
		return nil, err
	}
	if result != 0 {
		return &message.ErrorReply{Code: result}, nil
	}

	reply := &message.SuccessReply{}
	if reply.Words, err = fr.uint64s("words"); err != nil {
		return nil, err
	}
	if reply.CopiedHandles, err = fr.uint64s("copied handles"); err != nil {
		return nil, err
	}
	if reply.MovedHandles, err = fr.uint64s("moved handles"); err != nil {
		return nil, err
	}

	// Channel order on the wire is fixed: A, B, C, X.
	channels := []struct {
		name string
		dst  *[]message.BufferEntry
	}{
		{"buffer channel A", &reply.BuffersA},
		{"buffer channel B", &reply.BuffersB},
		{"buffer channel C", &reply.BuffersC},
		{"buffer channel X", &reply.BuffersX},
	}
	for _, ch := range channels {
		if *ch.dst, err = fr.bufferChannel(ch.name); err != nil {
			return nil, err
		}
	}

	// The reply kind trails the frame, unlike the outbound kind which leads it.
	if reply.Kind, err = fr.uint64("reply kind"); err != nil {
		return nil, err
	}
	return reply, nil
}

func (fr *frameReader) bufferChannel(name string) ([]message.BufferEntry, error) {
	count, err := fr.uint64(name + " count")
	if err != nil {
		return nil, err
	}
	entries := make([]message.BufferEntry, 0, min(count, 64))
	for i := uint64(0); i < count; i++ {
		dataLen, err := fr.uint64(name + " data length")
		if err != nil {
			return nil, err
		}
		data, err := fr.bytes(dataLen, name+" data")
		if err != nil {
			return nil, err
		}
		flags, err := fr.uint64(name + " flags")
		if err != nil {
			return nil, err
		}
		entries = append(entries, message.BufferEntry{Data: data, Flags: flags})
	}
	return entries, nil
}

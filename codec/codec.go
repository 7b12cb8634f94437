// Package codec serializes bridge messages to and from an ordered byte stream.
//
// Every scalar on the wire is a 64-bit little-endian integer and there is no padding
// anywhere. The two directions use different layouts:
//
//	Outbound frame                          Inbound frame
//	┌──────────────────────────────┐        ┌──────────────────────────────────┐
//	│ u64 kind                     │        │ u64 result                       │
//	│ u64 n; u64 words[n]          │        │ ── result != 0: frame ends here ─│
//	│ i64 targetProcess            │        │ u64 n; u64 words[n]              │
//	│ u64 n; u64 copiedHandles[n]  │        │ u64 n; u64 copiedHandles[n]      │
//	│ u64 n; u64 movedHandles[n]   │        │ u64 n; u64 movedHandles[n]       │
//	│ u64 reserved[4] (all zero)   │        │ channel A, B, C, X               │
//	└──────────────────────────────┘        │ u64 replyKind                    │
//	                                        └──────────────────────────────────┘
//
//	channel = u64 n; entry[n]     entry = u64 len; u8 data[len]; u64 flags
//
// Encoders assemble the whole frame in memory and hand it to the writer in a single
// Write call. Decoders read exactly one frame and leave the reader positioned at the
// start of the next one. A failed decode leaves the stream at an undefined position.
package codec

import (
	"errors"
	"io"
)

// reservedWords is the number of zero placeholders written where the outbound
// buffer channels would go.
const reservedWords = 4

var (
	// ErrTruncated reports a frame that ended before a previously announced length
	// was satisfied.
	ErrTruncated = errors.New("codec: truncated frame")
	// ErrLengthOverflow reports a length field that cannot be addressed on this platform.
	ErrLengthOverflow = errors.New("codec: length exceeds addressable memory")
	// ErrNilMessage is returned when asked to encode a nil message.
	ErrNilMessage = errors.New("codec: nil message")
)

// WriteFrame hands b to w in one Write call. A writer that accepts fewer bytes without
// reporting an error is treated as a failure; a partial frame is never a success.
func WriteFrame(w io.Writer, b []byte) error {
	n, err := w.Write(b)
	if err != nil {
		return err
	}
	if n != len(b) {
		return io.ErrShortWrite
	}
	return nil
}

// Package message defines the two frame shapes exchanged with the IPC bridge gateway.
//
// The outbound and inbound layouts are not mirror images of each other, so they are
// modelled as two unrelated types:
//
//	OutboundMessage:  kind → words → targetProcess → copied → moved → 4 reserved zero words
//	InboundMessage:   result → (result == 0 only) words → copied → moved → A → B → C → X → kind
//
// Handles are opaque 64-bit identifiers owned by the gateway. Nothing in this package
// tracks their lifetime.
package message

// NoTargetProcess is the TargetProcess value meaning "no explicit target".
const NoTargetProcess int64 = -1

// OutboundMessage is a command sent to the gateway.
//
// The four buffer channels are part of the model but are not serialized by the
// current wire version: the encoder writes four zero words in their place no matter
// what they hold.
type OutboundMessage struct {
	Kind          uint8    // Message category, transmitted as a u64
	Words         []uint64 // Words[0] is the sub-command, the rest are its arguments
	TargetProcess int64    // NoTargetProcess, or the process to operate on
	CopiedHandles []uint64 // Duplicated into the receiver's space
	MovedHandles  []uint64 // Ownership transferred to the receiver

	BuffersA [][]byte
	BuffersB [][]byte
	BuffersC [][]byte
	BuffersX [][]byte
}

// NewOutbound creates a message of the given kind carrying cmd as its only word.
func NewOutbound(kind uint8, cmd uint64) *OutboundMessage {
	return &OutboundMessage{
		Kind:          kind,
		Words:         []uint64{cmd},
		TargetProcess: NoTargetProcess,
	}
}

// PushWord appends an argument word.
func (m *OutboundMessage) PushWord(w uint64) *OutboundMessage {
	m.Words = append(m.Words, w)
	return m
}

// CopyHandle appends a handle the receiver should duplicate.
func (m *OutboundMessage) CopyHandle(h uint64) *OutboundMessage {
	m.CopiedHandles = append(m.CopiedHandles, h)
	return m
}

// MoveHandle appends a handle whose ownership moves to the receiver.
func (m *OutboundMessage) MoveHandle(h uint64) *OutboundMessage {
	m.MovedHandles = append(m.MovedHandles, h)
	return m
}

// WithTargetProcess sets the process the command operates on.
func (m *OutboundMessage) WithTargetProcess(pid int64) *OutboundMessage {
	m.TargetProcess = pid
	return m
}

// HasBuffers reports whether any of the (untransmitted) buffer channels hold data.
func (m *OutboundMessage) HasBuffers() bool {
	return len(m.BuffersA)+len(m.BuffersB)+len(m.BuffersC)+len(m.BuffersX) > 0
}

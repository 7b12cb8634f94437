package message

import "fmt"

// InboundMessage is a decoded gateway reply. It is either *ErrorReply or *SuccessReply;
// the leading result word on the wire selects which.
type InboundMessage interface {
	// Result returns the discriminator: 0 for success, the error code otherwise.
	Result() uint64
	isInbound()
}

// ErrorReply is a reply whose result word is nonzero. The frame carries nothing else.
type ErrorReply struct {
	Code uint64
}

func (r *ErrorReply) Result() uint64 { return r.Code }
func (r *ErrorReply) isInbound()     {}

func (r *ErrorReply) String() string {
	return fmt.Sprintf("ErrorReply{code=0x%x}", r.Code)
}

// BufferEntry is one element of a reply buffer channel.
type BufferEntry struct {
	Data  []byte
	Flags uint64 // Opaque to the codec
}

// SuccessReply is a reply whose result word is 0.
type SuccessReply struct {
	Words         []uint64
	CopiedHandles []uint64
	MovedHandles  []uint64

	BuffersA []BufferEntry
	BuffersB []BufferEntry
	BuffersC []BufferEntry
	BuffersX []BufferEntry

	// Kind is read from the end of the frame, after the X channel.
	Kind uint64
}

func (r *SuccessReply) Result() uint64 { return 0 }
func (r *SuccessReply) isInbound()     {}

// Status returns the application status carried in the first word, and false if the
// reply has no words at all.
func (r *SuccessReply) Status() (uint64, bool) {
	if len(r.Words) == 0 {
		return 0, false
	}
	return r.Words[0], true
}

func (r *SuccessReply) String() string {
	return fmt.Sprintf("SuccessReply{kind=%d words=%v copied=%v moved=%v bufs=%d/%d/%d/%d}",
		r.Kind, r.Words, r.CopiedHandles, r.MovedHandles,
		len(r.BuffersA), len(r.BuffersB), len(r.BuffersC), len(r.BuffersX))
}

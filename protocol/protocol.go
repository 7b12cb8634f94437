// Package protocol implements the bridge command layer that sits on top of the codec.
//
// Every request on the stream starts with a u64 command code that tells the gateway
// what follows. The gateway answers each command with exactly one reply before the
// next command may be sent; there is no sequence number and no multiplexing.
//
//	OpenService:  u64 0 │ u64 len │ name bytes                  → u64 handle
//	SendMessage:  u64 2 │ outbound frame │ u64 target handle     → inbound frame
//	Allocate:     u64 3 │ u64 words │ words*8 raw bytes          → u64 address
//
// Requests are built in memory and written with a single Write call, so a request is
// either fully handed to the connection or not at all.
package protocol

import (
	"errors"
	"fmt"
	"io"

	"ipc-bridge/codec"
	"ipc-bridge/message"
)

// Command is the code that opens every request.
type Command uint64

const (
	CmdOpenService Command = 0 // Open a named service, reply is a handle
	CmdSendMessage Command = 2 // Send an OutboundMessage to a handle, reply is an inbound frame
	CmdAllocate    Command = 3 // Copy data into gateway memory, reply is its address
)

func (c Command) String() string {
	switch c {
	case CmdOpenService:
		return "open_service"
	case CmdSendMessage:
		return "send_message"
	case CmdAllocate:
		return "allocate"
	default:
		return fmt.Sprintf("command(%d)", uint64(c))
	}
}

var (
	// ErrUnalignedData is returned when allocation data is not a whole number of u64 words.
	ErrUnalignedData = errors.New("protocol: allocate data length is not a multiple of 8")
	// ErrUnknownCommand is returned by ReadCommand for codes the gateway does not serve.
	ErrUnknownCommand = errors.New("protocol: unknown command")
)

// AppendOpenService appends an open-service request for name.
func AppendOpenService(dst []byte, name string) []byte {
	dst = codec.AppendUint64(dst, uint64(CmdOpenService))
	return codec.AppendString(dst, name)
}

// AppendSendMessage appends a send-message request. The target handle trails the frame.
func AppendSendMessage(dst []byte, handle uint64, m *message.OutboundMessage) []byte {
	dst = codec.AppendUint64(dst, uint64(CmdSendMessage))
	dst = codec.AppendOutbound(dst, m)
	return codec.AppendUint64(dst, handle)
}

// AppendAllocate appends an allocate request. len(data) must be a multiple of 8.
func AppendAllocate(dst []byte, data []byte) ([]byte, error) {
	if len(data)%8 != 0 {
		return dst, fmt.Errorf("%w: %d bytes", ErrUnalignedData, len(data))
	}
	dst = codec.AppendUint64(dst, uint64(CmdAllocate))
	dst = codec.AppendUint64(dst, uint64(len(data)/8))
	return append(dst, data...), nil
}

// WriteOpenService writes an open-service request to w.
func WriteOpenService(w io.Writer, name string) error {
	return write(w, CmdOpenService, AppendOpenService(make([]byte, 0, 16+len(name)), name))
}

// WriteSendMessage writes a send-message request to w.
func WriteSendMessage(w io.Writer, handle uint64, m *message.OutboundMessage) error {
	if m == nil {
		return codec.ErrNilMessage
	}
	buf := AppendSendMessage(make([]byte, 0, 16+codec.OutboundSize(m)), handle, m)
	return write(w, CmdSendMessage, buf)
}

// WriteAllocate writes an allocate request to w.
func WriteAllocate(w io.Writer, data []byte) error {
	buf, err := AppendAllocate(make([]byte, 0, 16+len(data)), data)
	if err != nil {
		return err
	}
	return write(w, CmdAllocate, buf)
}

func write(w io.Writer, cmd Command, buf []byte) error {
	if err := codec.WriteFrame(w, buf); err != nil {
		return fmt.Errorf("protocol: write %s: %w", cmd, err)
	}
	return nil
}

// ReadHandle reads the reply to an open-service request.
func ReadHandle(r io.Reader) (uint64, error) {
	h, err := codec.ReadUint64(r)
	if err != nil {
		return 0, fmt.Errorf("protocol: read handle: %w", err)
	}
	return h, nil
}

// ReadAddress reads the reply to an allocate request.
func ReadAddress(r io.Reader) (uint64, error) {
	addr, err := codec.ReadUint64(r)
	if err != nil {
		return 0, fmt.Errorf("protocol: read address: %w", err)
	}
	return addr, nil
}

// ReadReply reads the reply to a send-message request.
func ReadReply(r io.Reader) (message.InboundMessage, error) {
	reply, err := codec.DecodeInbound(r)
	if err != nil {
		return nil, fmt.Errorf("protocol: read reply: %w", err)
	}
	return reply, nil
}

// ReadCommand reads the code that opens a request. It is the gateway side of the
// exchange and rejects codes outside the known vocabulary.
func ReadCommand(r io.Reader) (Command, error) {
	v, err := codec.ReadUint64(r)
	if err != nil {
		return 0, err
	}
	switch cmd := Command(v); cmd {
	case CmdOpenService, CmdSendMessage, CmdAllocate:
		return cmd, nil
	default:
		return cmd, fmt.Errorf("%w: %d", ErrUnknownCommand, v)
	}
}

package client

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"ipc-bridge/codec"
	"ipc-bridge/message"
	"ipc-bridge/middleware"
	"ipc-bridge/protocol"
	"ipc-bridge/transport"
)

// Session is exclusive use of one gateway connection. It is not safe for concurrent
// use; acquire one session per goroutine.
//
// If any exchange fails at the transport or codec level the connection is
// unusable; every later call returns an error and Close discards the connection.
type Session struct {
	client *Client
	pool   *transport.ConnPool
	conn   *transport.Conn
	closed bool
}

// Addr returns the gateway address the session is connected to.
func (s *Session) Addr() string {
	return s.conn.Addr()
}

// OpenService asks the gateway for a handle to the named service.
func (s *Session) OpenService(ctx context.Context, name string) (uint64, error) {
	var handle uint64
	err := s.exchange(ctx, protocol.CmdOpenService, name, func(w io.Writer, r io.Reader) error {
		if err := protocol.WriteOpenService(w, name); err != nil {
			return err
		}
		var err error
		handle, err = protocol.ReadHandle(r)
		return err
	})
	if err != nil {
		return 0, err
	}
	return handle, nil
}

// Send delivers m to handle and returns the decoded reply. An *message.ErrorReply is
// a successful exchange: inspecting its code is up to the caller.
//
// m's buffer channels are not transmitted by the current wire version.
func (s *Session) Send(ctx context.Context, handle uint64, m *message.OutboundMessage) (message.InboundMessage, error) {
	if m == nil {
		return nil, codec.ErrNilMessage
	}
	if m.HasBuffers() {
		s.client.logger.Warn().
			Uint64("handle", handle).
			Msg("outbound buffer channels are not transmitted by this wire version")
	}

	var reply message.InboundMessage
	err := s.exchange(ctx, protocol.CmdSendMessage, strconv.FormatUint(handle, 10), func(w io.Writer, r io.Reader) error {
		if err := protocol.WriteSendMessage(w, handle, m); err != nil {
			return err
		}
		var err error
		reply, err = protocol.ReadReply(r)
		return err
	})
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// Call is Send with the usual status policy applied: a nonzero result becomes a
// *ResultError, a reply without words becomes ErrEmptyReply, and a nonzero first word
// becomes a *StatusError.
func (s *Session) Call(ctx context.Context, handle uint64, m *message.OutboundMessage) (*message.SuccessReply, error) {
	in, err := s.Send(ctx, handle, m)
	if err != nil {
		return nil, err
	}

	reply, ok := in.(*message.SuccessReply)
	if !ok {
		return nil, &ResultError{Code: in.Result()}
	}
	status, ok := reply.Status()
	if !ok {
		return nil, ErrEmptyReply
	}
	if status != 0 {
		return nil, &StatusError{Status: status, Reply: reply}
	}
	return reply, nil
}

// Allocate copies data into gateway memory and returns its address. len(data) must
// be a multiple of 8; that is checked before anything is sent.
func (s *Session) Allocate(ctx context.Context, data []byte) (uint64, error) {
	if len(data)%8 != 0 {
		return 0, fmt.Errorf("%w: %d bytes", protocol.ErrUnalignedData, len(data))
	}

	var addr uint64
	err := s.exchange(ctx, protocol.CmdAllocate, strconv.Itoa(len(data)), func(w io.Writer, r io.Reader) error {
		if err := protocol.WriteAllocate(w, data); err != nil {
			return err
		}
		var err error
		addr, err = protocol.ReadAddress(r)
		return err
	})
	if err != nil {
		return 0, err
	}
	return addr, nil
}

func (s *Session) exchange(ctx context.Context, cmd protocol.Command, target string, fn func(w io.Writer, r io.Reader) error) error {
	if s.closed {
		return ErrSessionClosed
	}
	ex := middleware.NewExchange(cmd.String(), target)
	ex.Addr = s.conn.Addr()
	return s.client.chain(func(ctx context.Context, ex *middleware.Exchange) error {
		ex.Attempts++
		return s.conn.Exchange(ctx, fn)
	})(ctx, ex)
}

// Close returns the connection to the pool, or discards it if it is broken.
// Handles opened on this session must not be used afterwards.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.pool.Put(s.conn)
	return nil
}

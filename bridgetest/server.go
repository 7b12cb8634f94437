// Package bridgetest provides an in-process IPC bridge gateway for tests.
//
// The Server speaks the gateway side of the bridge protocol: it reads commands and
// outbound frames, dispatches messages to registered service functions, and writes
// inbound frames back. It keeps its own handle table and a fake address space for
// allocations.
//
//	Accept conn → handleConn (one goroutine, strictly one command at a time)
//	  → ReadCommand → open_service | send_message | allocate → write reply
package bridgetest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"ipc-bridge/codec"
	"ipc-bridge/message"
	"ipc-bridge/protocol"
	"ipc-bridge/registry"
)

// ErrCodeInvalidHandle is the result code sent for a message addressed to a handle
// the server never handed out.
const ErrCodeInvalidHandle uint64 = 0xE401

const (
	firstHandle  uint64 = 0x1000
	firstAddress uint64 = 0x7100000000
	pageSize     uint64 = 0x1000

	maxAllocWords uint64 = 1 << 24
)

// ServiceFunc answers one message sent to a service handle.
type ServiceFunc func(m *message.OutboundMessage) message.InboundMessage

// Server is a fake gateway.
type Server struct {
	logger zerolog.Logger

	mu       sync.Mutex
	services map[string]ServiceFunc
	memory   map[uint64][]byte // address → allocated bytes
	nextAddr uint64
	received []*message.OutboundMessage

	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup // Tracks open connections for graceful shutdown
	shutdown atomic.Bool

	registry      registry.Registry
	gateway       string
	advertiseAddr string
}

// handleTable maps the handles opened on one connection to service names. Handles
// are never valid on another connection. Only the connection's goroutine uses it.
type handleTable struct {
	names map[uint64]string
	next  uint64
}

func newHandleTable() *handleTable {
	return &handleTable{names: make(map[uint64]string), next: firstHandle}
}

// NewServer creates a gateway with no services.
func NewServer(logger zerolog.Logger) *Server {
	return &Server{
		logger:   logger.With().Str("component", "bridgetest").Logger(),
		services: make(map[string]ServiceFunc),
		memory:   make(map[uint64][]byte),
		nextAddr: firstAddress,
		conns:    make(map[net.Conn]struct{}),
	}
}

// Register makes a named service available to open_service.
func (s *Server) Register(name string, fn ServiceFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[name] = fn
}

// Start listens on address and serves in the background. It returns the bound address.
func (s *Server) Start(address string) (string, error) {
	l, err := net.Listen("tcp", address)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
	go s.Serve(l)
	return l.Addr().String(), nil
}

// Serve accepts connections on l until Shutdown is called.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()

	for {
		conn, err := l.Accept()
		if err != nil {
			// Closing the listener during shutdown makes Accept fail on purpose.
			if s.shutdown.Load() {
				return nil
			}
			return err
		}
		s.mu.Lock()
		if s.shutdown.Load() {
			s.mu.Unlock()
			conn.Close()
			return nil
		}
		s.conns[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()
		go s.handleConn(conn)
	}
}

// Announce registers the server under gateway in reg so clients can discover it.
// Shutdown deregisters it.
func (s *Server) Announce(ctx context.Context, reg registry.Registry, gateway string, advertiseAddr string, weight int) error {
	s.mu.Lock()
	s.registry = reg
	s.gateway = gateway
	s.advertiseAddr = advertiseAddr
	s.mu.Unlock()
	return reg.Register(ctx, gateway, registry.GatewayInstance{Addr: advertiseAddr, Weight: weight}, 10)
}

// Shutdown deregisters the server, stops accepting, closes open connections and
// waits for their goroutines to exit.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.mu.Lock()
	reg, gateway, addr, l := s.registry, s.gateway, s.advertiseAddr, s.listener
	s.mu.Unlock()

	if reg != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		reg.Deregister(ctx, gateway, addr)
		cancel()
	}

	// Set the flag before closing so Serve reports a clean exit.
	s.shutdown.Store(true)
	if l != nil {
		l.Close()
	}
	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("bridgetest: timeout waiting for connections to close")
	}
}

// Memory returns a copy of the bytes allocated at addr, or nil.
func (s *Server) Memory(addr uint64) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.memory[addr]; ok {
		return append([]byte(nil), b...)
	}
	return nil
}

// Received returns every outbound message the server has decoded, in order.
func (s *Server) Received() []*message.OutboundMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*message.OutboundMessage(nil), s.received...)
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	log := s.logger.With().Str("remote", conn.RemoteAddr().String()).Logger()
	r := bufio.NewReader(conn)
	handles := newHandleTable()
	for {
		cmd, err := protocol.ReadCommand(r)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug().Err(err).Msg("closing connection")
			}
			return
		}

		var reply []byte
		switch cmd {
		case protocol.CmdOpenService:
			reply, err = s.openService(r, handles)
		case protocol.CmdSendMessage:
			reply, err = s.sendMessage(r, handles)
		case protocol.CmdAllocate:
			reply, err = s.allocate(r)
		}
		if err != nil {
			log.Debug().Err(err).Stringer("command", cmd).Msg("bad request")
			return
		}
		if err := codec.WriteFrame(conn, reply); err != nil {
			log.Debug().Err(err).Msg("write reply")
			return
		}
	}
}

// openService answers with handle 0 when the service is unknown.
func (s *Server) openService(r io.Reader, handles *handleTable) ([]byte, error) {
	name, err := codec.ReadBytes(r)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	_, known := s.services[string(name)]
	s.mu.Unlock()

	var handle uint64
	if known {
		handle = handles.next
		handles.next++
		handles.names[handle] = string(name)
	}
	s.logger.Debug().Str("service", string(name)).Uint64("handle", handle).Msg("open service")
	return codec.AppendUint64(nil, handle), nil
}

func (s *Server) sendMessage(r io.Reader, handles *handleTable) ([]byte, error) {
	m, err := DecodeOutbound(r)
	if err != nil {
		return nil, err
	}
	handle, err := codec.ReadUint64(r)
	if err != nil {
		return nil, err
	}

	name, ok := handles.names[handle]

	s.mu.Lock()
	s.received = append(s.received, m)
	fn := s.services[name]
	s.mu.Unlock()

	if !ok || fn == nil {
		return AppendInbound(nil, &message.ErrorReply{Code: ErrCodeInvalidHandle}), nil
	}
	return AppendInbound(nil, fn(m)), nil
}

func (s *Server) allocate(r io.Reader) ([]byte, error) {
	words, err := codec.ReadUint64(r)
	if err != nil {
		return nil, err
	}
	if words > maxAllocWords {
		return nil, fmt.Errorf("allocate of %d words exceeds %d", words, maxAllocWords)
	}
	data := make([]byte, words*8)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	addr := s.nextAddr
	s.memory[addr] = data
	pages := (uint64(len(data)) + pageSize - 1) / pageSize
	s.nextAddr += max(pages, 1) * pageSize
	return codec.AppendUint64(nil, addr), nil
}

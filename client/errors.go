package client

import (
	"errors"
	"fmt"

	"ipc-bridge/message"
)

var (
	ErrClientClosed  = errors.New("client: closed")
	ErrSessionClosed = errors.New("client: session closed")
	// ErrEmptyReply is returned by Session.Call for a success reply without a status word.
	ErrEmptyReply = errors.New("client: reply carries no status word")
)

// ResultError is a reply whose discriminator reported failure. The frame itself was
// well formed and the connection remains usable.
type ResultError struct {
	Code uint64
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("client: gateway result 0x%x", e.Code)
}

// StatusError is a success reply whose first word carries a nonzero application status.
type StatusError struct {
	Status uint64
	Reply  *message.SuccessReply
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("client: command status 0x%x", e.Status)
}

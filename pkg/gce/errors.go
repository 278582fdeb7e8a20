package gce

import (
	"errors"
	"fmt"
)

// Synchronous admission errors.
var (
	// ErrEngineSuspended rejects a submit issued while the engine is
	// suspended. Submitting across a suspend is a client programming error.
	ErrEngineSuspended = errors.New("gce: engine suspended")

	// ErrChannelBusy rejects a submit on a channel that still owns a packet.
	ErrChannelBusy = errors.New("gce: channel busy")

	// ErrResetTimeout reports a channel that did not leave warm reset within
	// the poll bound.
	ErrResetTimeout = errors.New("gce: warm reset timeout")

	ErrEngineClosed    = errors.New("gce: engine closed")
	ErrInvalidChannel  = errors.New("gce: invalid channel")
	ErrChannelAcquired = errors.New("gce: channel already acquired")
	ErrHandleReleased  = errors.New("gce: handle released")
	ErrEmptyPacket     = errors.New("gce: packet has no instructions")
	ErrNoCallback      = errors.New("gce: packet has no callback")
)

// Errors returned by Result.Err for failed executions.
var (
	ErrExecTimeout = errors.New("gce: execution timed out")
	ErrExecFault   = errors.New("gce: execution fault")
	ErrShutdown    = errors.New("gce: channel shut down")
)

// ResetError is returned by Submit when the warm reset poll expires. The
// channel stays idle and may be submitted to again.
type ResetError struct {
	Channel int
	Polls   int
}

func (e *ResetError) Error() string {
	return fmt.Sprintf("gce: channel %d: warm reset bit still set after %d polls", e.Channel, e.Polls)
}

func (e *ResetError) Unwrap() error {
	return ErrResetTimeout
}

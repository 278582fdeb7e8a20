package gce

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/OpenTraceLab/OpenTraceGCE/pkg/dmamap"
)

// Trigger identifies what started a completion.
type Trigger uint8

const (
	TriggerInterrupt Trigger = iota
	TriggerTimer
	TriggerShutdown
)

func (t Trigger) String() string {
	switch t {
	case TriggerInterrupt:
		return "interrupt"
	case TriggerTimer:
		return "timer"
	case TriggerShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("Trigger(%d)", t)
	}
}

// Status is the classification of a finished packet.
type Status uint8

const (
	StatusSuccess Status = iota
	StatusError
	StatusShutdown
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("Status(%d)", s)
	}
}

// Result is delivered to a packet's callback exactly once.
type Result struct {
	Status Status
	// IsTimeout is set on errors where the channel had not reached the end
	// of the buffer.
	IsTimeout bool

	Channel      int
	Trigger      Trigger
	FaultAddress uint64 // current address at classification; zero on shutdown
	Elapsed      time.Duration
}

// Err converts the result to an error, nil on success.
func (r Result) Err() error {
	switch r.Status {
	case StatusSuccess:
		return nil
	case StatusShutdown:
		return fmt.Errorf("channel %d: %w", r.Channel, ErrShutdown)
	}
	if r.IsTimeout {
		return fmt.Errorf("channel %d at 0x%x: %w", r.Channel, r.FaultAddress, ErrExecTimeout)
	}
	return fmt.Errorf("channel %d at 0x%x: %w", r.Channel, r.FaultAddress, ErrExecFault)
}

func (r Result) String() string {
	if r.Status == StatusError {
		return fmt.Sprintf("error(timeout=%t)", r.IsTimeout)
	}
	return r.Status.String()
}

// Callback receives the outcome of a packet together with its user data.
// It runs on the goroutine that completed the packet: the interrupt handler,
// the timer, or the caller of ReleaseChannel/Close.
type Callback func(res Result, userData any)

// Packet is a client command buffer. The engine does not interpret Buffer;
// the client must not modify it until the callback has run.
type Packet struct {
	Buffer   []byte
	Callback Callback
	UserData any
}

// admittedPacket is the engine-owned record of a running packet.
type admittedPacket struct {
	pkt      Packet
	rng      dmamap.Range
	start    time.Time
	priority uint32
	timeout  time.Duration
	timer    *clock.Timer
}

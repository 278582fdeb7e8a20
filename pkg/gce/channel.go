package gce

import (
	"fmt"
	"sync"
	"time"

	"github.com/OpenTraceLab/OpenTraceGCE/pkg/mmio"
)

type channelState uint8

const (
	stateIdle channelState = iota
	stateRunning
	stateCompleting
)

func (s channelState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateRunning:
		return "running"
	case stateCompleting:
		return "completing"
	default:
		return fmt.Sprintf("state(%d)", s)
	}
}

// Stats counts packet outcomes on a channel.
type Stats struct {
	Submitted uint64
	Succeeded uint64
	Failed    uint64 // error classifications, timeouts included
	TimedOut  uint64
	Shutdown  uint64
}

func (s *Stats) record(res Result) {
	switch res.Status {
	case StatusSuccess:
		s.Succeeded++
	case StatusShutdown:
		s.Shutdown++
	case StatusError:
		s.Failed++
		if res.IsTimeout {
			s.TimedOut++
		}
	}
}

// Channel is one hardware execution thread. It owns at most one packet at a
// time; mu serializes Submit against the interrupt, timer and shutdown
// completions.
type Channel struct {
	id     int
	offset uint32
	engine *Engine

	defaultTimeout  time.Duration
	defaultPriority uint32

	mu      sync.Mutex
	state   channelState
	current *admittedPacket
	idle    chan struct{} // closed while the channel is admissible
	stats   Stats
}

func newChannel(e *Engine, id int, cfg ChannelConfig) *Channel {
	idle := make(chan struct{})
	close(idle)
	return &Channel{
		id:              id,
		offset:          cfg.Offset,
		engine:          e,
		defaultTimeout:  cfg.Timeout,
		defaultPriority: cfg.Priority,
		idle:            idle,
	}
}

// ID returns the channel index.
func (c *Channel) ID() int { return c.id }

// Offset returns the channel's register window offset.
func (c *Channel) Offset() uint32 { return c.offset }

// DefaultTimeout returns the configured timeout for new acquisitions.
func (c *Channel) DefaultTimeout() time.Duration { return c.defaultTimeout }

// DefaultPriority returns the configured priority for new acquisitions.
func (c *Channel) DefaultPriority() uint32 { return c.defaultPriority }

// Busy reports whether a packet is running or being completed.
func (c *Channel) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != stateIdle
}

// Idle returns a channel that is closed once the channel can accept a new
// packet.
func (c *Channel) Idle() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idle
}

// Stats returns a snapshot of the outcome counters.
func (c *Channel) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Channel) reg(off uint32) uint32 {
	return c.offset + off
}

// reset runs the warm reset protocol: set the reset bit and poll until the
// hardware clears it, reading at most MaxPolls times.
func (c *Channel) reset() error {
	e := c.engine
	off := c.reg(e.layout.ThreadWarmReset)

	e.bus.Write32(off, WarmResetBit)
	for i := 0; i < e.reset.MaxPolls; i++ {
		if e.bus.Read32(off)&WarmResetBit == 0 {
			return nil
		}
		if i+1 < e.reset.MaxPolls {
			e.reset.sleep(e.reset.Interval)
		}
	}
	return &ResetError{Channel: c.id, Polls: e.reset.MaxPolls}
}

// Submit admits pkt and starts the channel. The packet's callback fires
// exactly once, from the interrupt path, the timeout timer (when timeout is
// not NoTimeout) or a shutdown. Submit fails without side effects when the
// engine is suspended or closed, or the channel still owns a packet; a map or
// reset failure leaves the channel idle.
func (c *Channel) Submit(pkt Packet, priority uint32, timeout time.Duration) error {
	return c.submit(pkt, priority, timeout, nil)
}

// submit runs admit, when set, under the channel lock before anything else
// touches the channel; a non-nil result rejects the packet.
func (c *Channel) submit(pkt Packet, priority uint32, timeout time.Duration, admit func() error) error {
	if len(pkt.Buffer) == 0 {
		return ErrEmptyPacket
	}
	if pkt.Callback == nil {
		return ErrNoCallback
	}
	if timeout < 0 {
		return fmt.Errorf("gce: channel %d: negative timeout %s", c.id, timeout)
	}

	e := c.engine
	c.mu.Lock()
	defer c.mu.Unlock()

	if e.closed.Load() {
		return ErrEngineClosed
	}
	if e.suspended.Load() {
		return ErrEngineSuspended
	}
	if c.state != stateIdle {
		return fmt.Errorf("%w: channel %d is %s", ErrChannelBusy, c.id, c.state)
	}
	if admit != nil {
		if err := admit(); err != nil {
			return err
		}
	}

	rng, err := e.mapper.Map(pkt.Buffer)
	if err != nil {
		return fmt.Errorf("gce: channel %d: map buffer: %w", c.id, err)
	}
	start, errStart := e.layout.ToRegister(rng.Addr)
	end, errEnd := e.layout.ToRegister(rng.End())
	if errStart != nil || errEnd != nil {
		c.unmap(rng)
		if errStart != nil {
			return errStart
		}
		return errEnd
	}

	if err := c.reset(); err != nil {
		c.unmap(rng)
		e.log.Warn("warm reset failed", "channel", c.id, "err", err)
		return err
	}

	l := e.layout
	e.bus.Write32(c.reg(l.ThreadCurrAddr), start)
	e.bus.Write32(c.reg(l.ThreadEndAddr), end)
	e.bus.Write32(c.reg(l.ThreadPriority), priority)
	e.bus.Write32(c.reg(l.ThreadIRQEnable), IRQEnableMask)

	ap := &admittedPacket{
		pkt:      pkt,
		rng:      rng,
		start:    e.clock.Now(),
		priority: priority,
		timeout:  timeout,
	}
	c.current = ap
	c.state = stateRunning
	c.idle = make(chan struct{})
	c.stats.Submitted++

	if timeout != NoTimeout {
		ap.timer = e.clock.AfterFunc(timeout, func() {
			c.complete(TriggerTimer, ap)
		})
	}

	// Run bit last: the interrupt cannot precede the admitted state.
	mmio.SetBits(e.bus, c.reg(l.ThreadEnable), ThreadEnabled)

	e.log.Debug("packet admitted", "channel", c.id, "range", rng.String(), "priority", priority, "timeout", timeout)
	return nil
}

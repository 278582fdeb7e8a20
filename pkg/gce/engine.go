package gce

import (
	"fmt"
	"log/slog"
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"

	"github.com/OpenTraceLab/OpenTraceGCE/pkg/dmamap"
	"github.com/OpenTraceLab/OpenTraceGCE/pkg/logging"
	"github.com/OpenTraceLab/OpenTraceGCE/pkg/mmio"
)

// Engine owns the channels of one command engine, the shared interrupt
// status register and the suspend state.
type Engine struct {
	name   string
	bus    mmio.Bus
	mapper dmamap.Mapper
	layout Layout
	reset  ResetConfig
	mask   uint32

	clock  clock.Clock
	dumper Dumper
	log    *slog.Logger

	channels []*Channel

	irqMu     sync.Mutex
	suspended atomic.Bool
	closed    atomic.Bool
}

// Option configures optional Engine collaborators.
type Option func(*Engine)

// WithClock sets the clock used for timeouts and elapsed time.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithDumper sets the diagnostic sink for failed packets.
func WithDumper(d Dumper) Option {
	return func(e *Engine) { e.dumper = d }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New attaches an engine to its register bus. It validates cfg (nil selects
// DefaultConfig(DefaultChannelCount)), writes the active slot time and clears
// every sync event token.
func New(bus mmio.Bus, mapper dmamap.Mapper, cfg *Config, opts ...Option) (*Engine, error) {
	if bus == nil {
		return nil, fmt.Errorf("gce: bus is nil")
	}
	if mapper == nil {
		return nil, fmt.Errorf("gce: mapper is nil")
	}
	if cfg == nil {
		cfg = DefaultConfig(DefaultChannelCount)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		name:   cfg.Name,
		bus:    bus,
		mapper: mapper,
		layout: cfg.Layout,
		reset:  cfg.Reset,
		mask:   cfg.IRQMask(),
		clock:  clock.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logging.For(logging.ComponentEngine).With("engine", e.name)
	}
	if e.dumper == nil {
		d := LogDumper{Logger: e.log}
		if w, ok := mapper.(*dmamap.Window); ok {
			d.Lookup = w.Lookup
		}
		e.dumper = d
	}

	e.channels = make([]*Channel, len(cfg.Channels))
	for i, cc := range cfg.Channels {
		e.channels[i] = newChannel(e, i, cc)
	}

	e.bus.Write32(e.layout.SlotCycles, cfg.SlotCycles)
	for i := 0; i < cfg.EventTokens; i++ {
		e.bus.Write32(e.layout.SyncTokenUpdate, uint32(i))
	}

	e.log.Debug("engine attached", "channels", len(e.channels), "tokens", cfg.EventTokens)
	return e, nil
}

// Name returns the configured engine name.
func (e *Engine) Name() string { return e.name }

// Layout returns the register layout in use.
func (e *Engine) Layout() Layout { return e.layout }

// NumChannels returns the fixed channel count.
func (e *Engine) NumChannels() int { return len(e.channels) }

// Channel returns channel i.
func (e *Engine) Channel(i int) (*Channel, error) {
	if i < 0 || i >= len(e.channels) {
		return nil, fmt.Errorf("%w: %d (engine has %d)", ErrInvalidChannel, i, len(e.channels))
	}
	return e.channels[i], nil
}

// Channels returns a copy of the channel list.
func (e *Engine) Channels() []*Channel {
	out := make([]*Channel, len(e.channels))
	copy(out, e.channels)
	return out
}

// HandleInterrupt demultiplexes the engine interrupt. Status bits are
// active-low: every clear bit names a channel whose completion fired. It
// returns false when no channel bit is clear (spurious or shared line).
func (e *Engine) HandleInterrupt() bool {
	e.irqMu.Lock()
	status := e.bus.Read32(e.layout.IRQStatus) & e.mask
	e.irqMu.Unlock()

	if status == e.mask {
		return false
	}
	fired := ^status & e.mask
	for fired != 0 {
		i := bits.TrailingZeros32(fired)
		fired &= fired - 1
		if !e.channels[i].Complete(TriggerInterrupt) {
			e.log.Debug("interrupt for idle channel", "channel", i)
		}
	}
	return true
}

// Suspend stops admission. Running packets are left alone; each is logged
// since the surrounding power sequence must preserve its state.
func (e *Engine) Suspend() {
	e.suspended.Store(true)
	for _, c := range e.channels {
		if c.Busy() {
			e.log.Warn("packet still running at suspend", "channel", c.id)
		}
	}
}

// Resume re-enables admission.
func (e *Engine) Resume() {
	e.suspended.Store(false)
}

// Suspended reports whether admission is stopped.
func (e *Engine) Suspended() bool {
	return e.suspended.Load()
}

// Close detaches the engine. Every running packet is completed with a
// shutdown result and later submits fail with ErrEngineClosed.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrEngineClosed
	}
	for _, c := range e.channels {
		if c.Complete(TriggerShutdown) {
			e.log.Info("packet shut down at detach", "channel", c.id)
		}
	}
	return nil
}

// Package gcesim models a command engine at register level on top of
// mmio.SimBus. It implements just enough device behaviour for the scheduler:
// self-clearing warm reset, per-channel done/error interrupts and the
// active-low engine interrupt status.
package gcesim

import (
	"fmt"
	"sync"

	"github.com/OpenTraceLab/OpenTraceGCE/pkg/gce"
	"github.com/OpenTraceLab/OpenTraceGCE/pkg/logging"
	"github.com/OpenTraceLab/OpenTraceGCE/pkg/mmio"
)

// Hardware is a simulated engine. Tests drive execution explicitly with
// Finish, Fault, Stall and Raise and then call Engine.HandleInterrupt.
type Hardware struct {
	Bus *mmio.SimBus

	layout  gce.Layout
	offsets []uint32
	span    uint32
	mask    uint32

	mu    sync.Mutex
	stuck map[int]bool
}

// New builds a simulator matching cfg. cfg must already be valid.
func New(cfg *gce.Config) (*Hardware, error) {
	if cfg == nil {
		return nil, fmt.Errorf("gcesim: config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	h := &Hardware{
		layout: cfg.Layout,
		span:   cfg.Layout.ThreadSpan(),
		mask:   cfg.IRQMask(),
		stuck:  make(map[int]bool),
	}
	var top uint32
	for _, ch := range cfg.Channels {
		h.offsets = append(h.offsets, ch.Offset)
		if ch.Offset+h.span > top {
			top = ch.Offset + h.span
		}
	}

	for name, off := range h.layout.EngineRegisters() {
		if err := mmio.CheckOffset(off, top); err != nil {
			return nil, fmt.Errorf("gcesim: engine register %s: %w", name, err)
		}
	}

	h.Bus = mmio.NewSimBus(mmio.BusInfo{
		Name:        cfg.Name,
		BaseAddress: cfg.BaseAddress,
		Size:        top,
		Notes:       "gcesim",
	})
	h.Bus.OnWrite = h.onWrite
	h.Bus.Poke(h.layout.IRQStatus, h.mask)
	return h, nil
}

// StickReset makes channel ch ignore warm reset requests: the reset bit
// stays set until the channel is unstuck.
func (h *Hardware) StickReset(ch int, stuck bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stuck[ch] = stuck
	if !stuck {
		off := h.offsets[ch] + h.layout.ThreadWarmReset
		h.Bus.Poke(off, h.Bus.Peek(off)&^gce.WarmResetBit)
	}
}

// Running reports whether the channel's run bit is set.
func (h *Hardware) Running(ch int) bool {
	return h.Bus.Peek(h.offsets[ch]+h.layout.ThreadEnable)&gce.ThreadEnabled != 0
}

// Program returns the current and end address registers of ch.
func (h *Hardware) Program(ch int) (curr, end uint32) {
	base := h.offsets[ch]
	return h.Bus.Peek(base + h.layout.ThreadCurrAddr), h.Bus.Peek(base + h.layout.ThreadEndAddr)
}

// Finish runs ch to the end of its buffer and raises the done interrupt.
func (h *Hardware) Finish(ch int) {
	h.complete(ch, gce.IRQDone)
}

// Fault runs ch to the end of its buffer and raises an error interrupt.
func (h *Hardware) Fault(ch int) {
	h.complete(ch, gce.IRQDone|gce.IRQError)
}

// Stall advances ch by n bytes without raising an interrupt, leaving the
// current address short of the end.
func (h *Hardware) Stall(ch int, n uint32) {
	base := h.offsets[ch]
	curr := h.Bus.Peek(base + h.layout.ThreadCurrAddr)
	h.Bus.Poke(base+h.layout.ThreadCurrAddr, curr+(n>>h.layout.AddrShift))
}

// Raise signals ch in the engine status without touching its thread
// registers, as a spurious or stale interrupt would.
func (h *Hardware) Raise(ch int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := h.Bus.Peek(h.layout.IRQStatus)
	h.Bus.Poke(h.layout.IRQStatus, st&^(1<<uint(ch)))
}

// Pending returns the channels currently signalled in the engine status.
func (h *Hardware) Pending() []int {
	st := ^h.Bus.Peek(h.layout.IRQStatus) & h.mask
	var out []int
	for i := range h.offsets {
		if st&(1<<uint(i)) != 0 {
			out = append(out, i)
		}
	}
	return out
}

func (h *Hardware) complete(ch int, irq uint32) {
	base := h.offsets[ch]
	end := h.Bus.Peek(base + h.layout.ThreadEndAddr)
	h.Bus.Poke(base+h.layout.ThreadCurrAddr, end)
	h.Bus.Poke(base+h.layout.ThreadIRQStatus, irq)
	h.Raise(ch)
	logging.Debug(logging.ComponentSim, "channel signalled", "channel", ch, "irq", irq)
}

func (h *Hardware) decode(offset uint32) (ch int, reg uint32, ok bool) {
	for i, base := range h.offsets {
		if offset >= base && offset < base+h.span {
			return i, offset - base, true
		}
	}
	return 0, 0, false
}

func (h *Hardware) onWrite(offset, value uint32) {
	ch, reg, ok := h.decode(offset)
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	switch reg {
	case h.layout.ThreadWarmReset:
		if value&gce.WarmResetBit == 0 {
			break
		}
		if h.stuck[ch] {
			logging.Warn(logging.ComponentSim, "warm reset held", "channel", ch)
			break
		}
		h.Bus.Poke(offset, value&^gce.WarmResetBit)
	case h.layout.ThreadIRQStatus:
		// Acknowledging the thread interrupt deasserts its engine bit.
		st := h.Bus.Peek(h.layout.IRQStatus)
		h.Bus.Poke(h.layout.IRQStatus, st|1<<uint(ch))
	}
}

package gce

import (
	"github.com/OpenTraceLab/OpenTraceGCE/pkg/dmamap"
	"github.com/OpenTraceLab/OpenTraceGCE/pkg/mmio"
)

// Complete finalizes the channel's packet in response to trigger. It returns
// false, doing nothing, when the channel holds no packet: the losing side of
// an interrupt/timer race, a spurious interrupt, or a repeated call.
func (c *Channel) Complete(trigger Trigger) bool {
	return c.complete(trigger, nil)
}

// complete takes the packet out of the channel under the lock so that only
// one trigger finalizes it. A non-nil expect restricts completion to that
// packet; the timer uses it so a late timer cannot complete a later packet.
func (c *Channel) complete(trigger Trigger, expect *admittedPacket) bool {
	e := c.engine

	c.mu.Lock()
	ap := c.current
	if ap == nil || (expect != nil && ap != expect) {
		c.mu.Unlock()
		return false
	}
	c.current = nil
	c.state = stateCompleting

	res := c.classify(trigger, ap)
	c.disable()
	if ap.timer != nil && trigger != TriggerTimer {
		ap.timer.Stop()
	}
	c.stats.record(res)
	c.mu.Unlock()

	if res.Status == StatusError {
		e.log.Warn("packet failed", "channel", c.id, "trigger", trigger.String(),
			"timeout", res.IsTimeout, "fault", res.FaultAddress)
		e.dumper.DumpBuffer(c.id, res.IsTimeout, res.FaultAddress)
	}
	c.unmap(ap.rng)
	ap.pkt.Callback(res, ap.pkt.UserData)

	c.mu.Lock()
	c.state = stateIdle
	close(c.idle)
	c.mu.Unlock()
	return true
}

// classify reads the channel status registers. A current address short of
// the programmed end means the channel stalled mid-buffer and is reported as
// a timeout; this comparison races the done bit on very short buffers and is
// best effort only.
func (c *Channel) classify(trigger Trigger, ap *admittedPacket) Result {
	e := c.engine
	res := Result{
		Channel: c.id,
		Trigger: trigger,
		Elapsed: e.clock.Since(ap.start),
	}
	if trigger == TriggerShutdown {
		res.Status = StatusShutdown
		return res
	}

	l := e.layout
	curr := e.bus.Read32(c.reg(l.ThreadCurrAddr))
	end := e.bus.Read32(c.reg(l.ThreadEndAddr))
	irq := e.bus.Read32(c.reg(l.ThreadIRQStatus))
	res.FaultAddress = l.FromRegister(curr)

	switch {
	case curr != end:
		res.Status = StatusError
		res.IsTimeout = true
	case irq&IRQError != 0:
		res.Status = StatusError
	default:
		res.Status = StatusSuccess
		res.FaultAddress = 0
	}
	return res
}

// disable stops the thread and acknowledges its interrupt.
func (c *Channel) disable() {
	e := c.engine
	l := e.layout
	mmio.ClearBits(e.bus, c.reg(l.ThreadEnable), ThreadEnabled)
	e.bus.Write32(c.reg(l.ThreadIRQEnable), 0)
	e.bus.Write32(c.reg(l.ThreadIRQStatus), 0)
}

func (c *Channel) unmap(r dmamap.Range) {
	if err := c.engine.mapper.Unmap(r); err != nil {
		c.engine.log.Error("unmap failed", "channel", c.id, "range", r.String(), "err", err)
	}
}

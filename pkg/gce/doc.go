// Package gce schedules command buffers onto the channels of a Global
// Command Engine.
//
// A command engine has a fixed set of hardware channels (threads). Each
// channel fetches and executes one opaque instruction buffer at a time. This
// package arbitrates admission, drives the warm reset and start protocol,
// classifies completion and recovers from hung channels with a software
// timeout. It never interprets the instructions.
//
// # Overview
//
//   - Engine: owns the channels, the shared interrupt status register and
//     the suspend state. Created by New at attach time.
//   - Channel: one hardware thread with its register window and a single
//     admission slot.
//   - Mailbox: the client API (AcquireChannel, Submit, ReleaseChannel,
//     Suspend, Resume).
//
// # Usage
//
//	bus := platformRegisters()                  // mmio.Bus
//	win, _ := dmamap.NewWindow(0x4000_0000, 1<<20)
//	eng, err := gce.New(bus, win, gce.DefaultConfig(16))
//	mb := gce.NewMailbox(eng)
//
//	h, err := mb.AcquireChannel(0, gce.WithTimeout(100*time.Millisecond))
//	err = h.Submit(gce.Packet{
//		Buffer: cmds,
//		Callback: func(res gce.Result, _ any) {
//			if err := res.Err(); err != nil {
//				log.Print(err)
//			}
//		},
//	})
//
//	// from the platform interrupt handler:
//	eng.HandleInterrupt()
//
// # Completion
//
// A packet is finalized by exactly one of three triggers: the engine
// interrupt, the channel's timeout timer, or a shutdown (ReleaseChannel,
// Flush expiry, Close). The triggers may race; whichever takes the channel
// lock first completes the packet and the others find the channel empty.
//
// Interrupt and timer completions read the channel's current and end
// address registers. A channel that stopped short of the end is reported as
// Error with IsTimeout set, an error bit in the thread interrupt status as
// Error, anything else as Success. Shutdown never touches the status
// registers.
//
// Callbacks run without the channel lock held but before the channel is
// admissible again, so a callback cannot resubmit to its own channel
// synchronously; use Mailbox.WaitIdle from another goroutine instead.
//
// # Limitations
//
//   - One engine per Engine value; multi-engine federation is not handled.
//   - A timeout stops waiting, it does not stop the hardware. Clients that
//     see a timeout should expect the next Submit's warm reset to be the
//     first thing that touches the channel again.
package gce

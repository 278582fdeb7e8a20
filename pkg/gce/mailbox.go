package gce

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OpenTraceLab/OpenTraceGCE/pkg/logging"
)

// Handle is a client's exclusive claim on a channel. Priority and timeout
// are fixed for the life of the acquisition.
type Handle struct {
	mb       *Mailbox
	ch       *Channel
	priority uint32
	timeout  time.Duration
	released atomic.Bool
}

// Channel returns the index of the acquired channel.
func (h *Handle) Channel() int { return h.ch.id }

// Priority returns the priority programmed for every packet on this handle.
func (h *Handle) Priority() uint32 { return h.priority }

// Timeout returns the per-packet timeout, NoTimeout when disabled.
func (h *Handle) Timeout() time.Duration { return h.timeout }

// Submit is shorthand for Mailbox.Submit(h, pkt).
func (h *Handle) Submit(pkt Packet) error { return h.mb.Submit(h, pkt) }

// AcquireOption overrides a channel default for one acquisition.
type AcquireOption func(*Handle)

// WithPriority sets the acquisition priority.
func WithPriority(p uint32) AcquireOption {
	return func(h *Handle) { h.priority = p }
}

// WithTimeout sets the acquisition timeout; NoTimeout disables it.
func WithTimeout(d time.Duration) AcquireOption {
	return func(h *Handle) { h.timeout = d }
}

// Mailbox is the client-facing admission API over an Engine. Each channel
// has at most one owner.
type Mailbox struct {
	engine *Engine
	log    *slog.Logger

	mu     sync.Mutex
	owners map[int]*Handle
}

// NewMailbox wraps an attached engine.
func NewMailbox(e *Engine) *Mailbox {
	return &Mailbox{
		engine: e,
		log:    logging.For(logging.ComponentMailbox).With("engine", e.name),
		owners: make(map[int]*Handle),
	}
}

// Engine returns the underlying engine.
func (m *Mailbox) Engine() *Engine { return m.engine }

// AcquireChannel claims channel index with its configured priority and
// timeout, overridden by opts.
func (m *Mailbox) AcquireChannel(index int, opts ...AcquireOption) (*Handle, error) {
	ch, err := m.engine.Channel(index)
	if err != nil {
		return nil, err
	}
	if m.engine.closed.Load() {
		return nil, ErrEngineClosed
	}

	h := &Handle{
		mb:       m,
		ch:       ch,
		priority: ch.DefaultPriority(),
		timeout:  ch.DefaultTimeout(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.timeout < 0 {
		return nil, fmt.Errorf("gce: channel %d: negative timeout %s", index, h.timeout)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.owners[index]; taken {
		return nil, fmt.Errorf("%w: %d", ErrChannelAcquired, index)
	}
	m.owners[index] = h
	m.log.Debug("channel acquired", "channel", index, "priority", h.priority, "timeout", h.timeout)
	return h, nil
}

// ReleaseChannel gives up h. A packet still in flight is completed with a
// shutdown result before ReleaseChannel returns, unless another trigger is
// already completing it.
func (m *Mailbox) ReleaseChannel(h *Handle) error {
	if err := m.check(h); err != nil {
		return err
	}
	if !h.released.CompareAndSwap(false, true) {
		return ErrHandleReleased
	}
	if h.ch.Complete(TriggerShutdown) {
		m.log.Info("released channel with packet in flight", "channel", h.ch.id)
	}

	m.mu.Lock()
	delete(m.owners, h.ch.id)
	m.mu.Unlock()
	return nil
}

// Submit runs pkt on the handle's channel with the acquisition priority and
// timeout.
func (m *Mailbox) Submit(h *Handle, pkt Packet) error {
	if err := m.check(h); err != nil {
		return err
	}
	if h.released.Load() {
		return ErrHandleReleased
	}
	// Checked again under the channel lock: ReleaseChannel sets released
	// before its shutdown completion takes that lock, so a packet admitted
	// here is always shut down by the release.
	return h.ch.submit(pkt, h.priority, h.timeout, func() error {
		if h.released.Load() {
			return ErrHandleReleased
		}
		return nil
	})
}

// WaitIdle blocks until the handle's channel can accept a packet or ctx ends.
func (m *Mailbox) WaitIdle(ctx context.Context, h *Handle) error {
	if err := m.check(h); err != nil {
		return err
	}
	select {
	case <-h.ch.Idle():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush waits for the in-flight packet on h. If ctx ends first the packet is
// completed with a shutdown result and the context error is returned. A
// packet already being completed by another trigger is left to it, so Flush
// may be called from a callback.
func (m *Mailbox) Flush(ctx context.Context, h *Handle) error {
	err := m.WaitIdle(ctx, h)
	if err == nil || ctx.Err() == nil {
		return err
	}
	// Complete returns after the callback has run and the channel is idle.
	if h.ch.Complete(TriggerShutdown) {
		m.log.Warn("flush expired, packet shut down", "channel", h.ch.id)
	}
	return fmt.Errorf("gce: flush channel %d: %w", h.ch.id, err)
}

// Suspend stops admission on the engine.
func (m *Mailbox) Suspend() { m.engine.Suspend() }

// Resume re-enables admission on the engine.
func (m *Mailbox) Resume() { m.engine.Resume() }

// Close releases every handle and detaches the engine.
func (m *Mailbox) Close() error {
	m.mu.Lock()
	handles := make([]*Handle, 0, len(m.owners))
	for _, h := range m.owners {
		handles = append(handles, h)
	}
	m.mu.Unlock()

	for _, h := range handles {
		if err := m.ReleaseChannel(h); err != nil && !errors.Is(err, ErrHandleReleased) {
			return err
		}
	}
	return m.engine.Close()
}

func (m *Mailbox) check(h *Handle) error {
	if h == nil || h.mb != m {
		return fmt.Errorf("%w: handle does not belong to this mailbox", ErrInvalidChannel)
	}
	return nil
}

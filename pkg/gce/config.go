package gce

import (
	"fmt"
	"sort"
	"time"
)

// NoTimeout disables the software timeout: the packet runs until the
// hardware interrupt or an explicit shutdown.
const NoTimeout time.Duration = 0

// Defaults of the reference engine.
const (
	DefaultChannelCount  = 16
	DefaultEventTokens   = 1024
	DefaultSlotCycles    = 0x3200
	DefaultResetPolls    = 10
	DefaultResetInterval = time.Microsecond

	// MaxChannels is bounded by the width of the engine IRQ status register.
	MaxChannels = 32
)

// ChannelConfig describes one hardware channel.
type ChannelConfig struct {
	Offset   uint32        // register window, relative to the block base
	Timeout  time.Duration // default timeout for acquisitions; NoTimeout disables
	Priority uint32        // default priority for acquisitions
}

// ResetConfig bounds the warm reset poll.
type ResetConfig struct {
	MaxPolls int           // status reads before giving up
	Interval time.Duration // delay between reads

	// Sleep waits between polls. Nil uses time.Sleep; tests install a no-op.
	Sleep func(time.Duration)
}

func (r ResetConfig) sleep(d time.Duration) {
	if r.Sleep != nil {
		r.Sleep(d)
		return
	}
	if d > 0 {
		time.Sleep(d)
	}
}

// Config holds the device description of an engine.
type Config struct {
	Name        string
	BaseAddress uint64 // informational; registers are reached through the bus

	Channels    []ChannelConfig
	EventTokens int    // sync tokens cleared at init
	SlotCycles  uint32 // active slot time written at init

	Layout Layout
	Reset  ResetConfig
}

// DefaultConfig returns a Config for n channels laid out at the reference
// thread base and stride, with no timeouts.
func DefaultConfig(n int) *Config {
	channels := make([]ChannelConfig, n)
	for i := range channels {
		channels[i] = ChannelConfig{
			Offset:  ThreadBase + uint32(i)*ThreadStride,
			Timeout: NoTimeout,
		}
	}
	return &Config{
		Name:        "gce",
		Channels:    channels,
		EventTokens: DefaultEventTokens,
		SlotCycles:  DefaultSlotCycles,
		Layout:      DefaultLayout(),
		Reset: ResetConfig{
			MaxPolls: DefaultResetPolls,
			Interval: DefaultResetInterval,
		},
	}
}

// Validate checks the configuration and fills in defaults for unset poll
// bounds.
func (c *Config) Validate() error {
	if len(c.Channels) == 0 {
		return fmt.Errorf("gce: config has no channels")
	}
	if len(c.Channels) > MaxChannels {
		return fmt.Errorf("gce: %d channels exceeds maximum of %d", len(c.Channels), MaxChannels)
	}
	if c.EventTokens < 0 {
		return fmt.Errorf("gce: negative event token count %d", c.EventTokens)
	}
	if c.Reset.MaxPolls < 1 {
		c.Reset.MaxPolls = DefaultResetPolls
	}
	if c.Reset.Interval < 0 {
		return fmt.Errorf("gce: negative reset poll interval %s", c.Reset.Interval)
	}
	if err := c.Layout.validate(); err != nil {
		return err
	}

	span := c.Layout.ThreadSpan()
	idx := make([]int, len(c.Channels))
	for i, ch := range c.Channels {
		if ch.Offset%4 != 0 {
			return fmt.Errorf("gce: channel %d offset 0x%x not 32-bit aligned", i, ch.Offset)
		}
		if ch.Timeout < 0 {
			return fmt.Errorf("gce: channel %d has negative timeout %s", i, ch.Timeout)
		}
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		return c.Channels[idx[a]].Offset < c.Channels[idx[b]].Offset
	})
	for k := 1; k < len(idx); k++ {
		prev, cur := c.Channels[idx[k-1]], c.Channels[idx[k]]
		if cur.Offset-prev.Offset < span {
			return fmt.Errorf("gce: channels %d and %d have overlapping register windows (0x%x, 0x%x)",
				idx[k-1], idx[k], prev.Offset, cur.Offset)
		}
	}
	return nil
}

// IRQMask returns the engine IRQ status bits owned by the configured channels.
func (c *Config) IRQMask() uint32 {
	return uint32((uint64(1) << len(c.Channels)) - 1)
}

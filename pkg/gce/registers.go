package gce

import "fmt"

// Layout is the register map of a command engine. Engine-wide offsets are
// relative to the register block base, thread offsets relative to a channel's
// register offset.
type Layout struct {
	IRQStatus       uint32 // engine-wide, one active-low bit per channel
	SlotCycles      uint32
	SyncTokenUpdate uint32

	ThreadWarmReset uint32
	ThreadEnable    uint32
	ThreadIRQStatus uint32
	ThreadIRQEnable uint32
	ThreadCurrAddr  uint32
	ThreadEndAddr   uint32
	ThreadPriority  uint32

	// AddrShift is the right shift applied to device addresses before they
	// are written to the address registers.
	AddrShift uint
}

// Register bits.
const (
	WarmResetBit  uint32 = 1 << 0
	ThreadEnabled uint32 = 1 << 0

	IRQDone       uint32 = 0x01
	IRQError      uint32 = 0x12
	IRQEnableMask        = IRQDone | IRQError
)

// Thread register window defaults.
const (
	ThreadBase   uint32 = 0x100
	ThreadStride uint32 = 0x80
)

// DefaultLayout returns the register map of the reference engine.
func DefaultLayout() Layout {
	return Layout{
		IRQStatus:       0x10,
		SlotCycles:      0x30,
		SyncTokenUpdate: 0x68,

		ThreadWarmReset: 0x00,
		ThreadEnable:    0x04,
		ThreadIRQStatus: 0x10,
		ThreadIRQEnable: 0x14,
		ThreadCurrAddr:  0x20,
		ThreadEndAddr:   0x24,
		ThreadPriority:  0x40,
	}
}

// ThreadSpan is the number of bytes a channel's register window occupies.
func (l Layout) ThreadSpan() uint32 {
	var span uint32
	for _, off := range l.threadRegs() {
		if off+4 > span {
			span = off + 4
		}
	}
	return span
}

// ThreadRegisterName names a thread-relative register offset, or returns ""
// when the offset is not part of the layout.
func (l Layout) ThreadRegisterName(off uint32) string {
	for name, o := range l.ThreadRegisters() {
		if o == off {
			return name
		}
	}
	return ""
}

// ThreadRegisters maps register names to thread-relative offsets.
func (l Layout) ThreadRegisters() map[string]uint32 {
	return map[string]uint32{
		"WARM_RESET": l.ThreadWarmReset,
		"ENABLE":     l.ThreadEnable,
		"IRQ_STATUS": l.ThreadIRQStatus,
		"IRQ_ENABLE": l.ThreadIRQEnable,
		"CURR_ADDR":  l.ThreadCurrAddr,
		"END_ADDR":   l.ThreadEndAddr,
		"PRIORITY":   l.ThreadPriority,
	}
}

// EngineRegisters maps register names to block-relative offsets.
func (l Layout) EngineRegisters() map[string]uint32 {
	return map[string]uint32{
		"IRQ_STATUS":        l.IRQStatus,
		"SLOT_CYCLES":       l.SlotCycles,
		"SYNC_TOKEN_UPDATE": l.SyncTokenUpdate,
	}
}

func (l Layout) threadRegs() []uint32 {
	return []uint32{
		l.ThreadWarmReset, l.ThreadEnable, l.ThreadIRQStatus, l.ThreadIRQEnable,
		l.ThreadCurrAddr, l.ThreadEndAddr, l.ThreadPriority,
	}
}

// ToRegister converts a device address to its register encoding.
func (l Layout) ToRegister(addr uint64) (uint32, error) {
	v := addr >> l.AddrShift
	if v > 0xffff_ffff {
		return 0, fmt.Errorf("gce: device address 0x%x does not fit the address registers", addr)
	}
	if v<<l.AddrShift != addr {
		return 0, fmt.Errorf("gce: device address 0x%x not aligned to shift %d", addr, l.AddrShift)
	}
	return uint32(v), nil
}

// FromRegister converts a register value back to a device address.
func (l Layout) FromRegister(v uint32) uint64 {
	return uint64(v) << l.AddrShift
}

func (l Layout) validate() error {
	for _, off := range append(l.threadRegs(), l.IRQStatus, l.SlotCycles, l.SyncTokenUpdate) {
		if off%4 != 0 {
			return fmt.Errorf("gce: register offset 0x%x not 32-bit aligned", off)
		}
	}
	if l.AddrShift > 32 {
		return fmt.Errorf("gce: address shift %d out of range", l.AddrShift)
	}
	return nil
}

package mmio

import (
	"errors"
	"testing"
)

func TestCheckOffset(t *testing.T) {
	if err := CheckOffset(0x102, 0); !errors.Is(err, ErrUnaligned) {
		t.Fatalf("expected ErrUnaligned, got %v", err)
	}
	if err := CheckOffset(0x1000, 0x1000); err == nil {
		t.Fatalf("expected error for offset past block end")
	}
	if err := CheckOffset(0xffc, 0x1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSimBusReadWrite(t *testing.T) {
	bus := NewSimBus(BusInfo{Name: "sim"})
	if got := bus.Read32(0x10); got != 0 {
		t.Fatalf("unwritten register = 0x%x, want 0", got)
	}

	bus.Write32(0x10, 0xdeadbeef)
	if got := bus.Read32(0x10); got != 0xdeadbeef {
		t.Fatalf("Read32 = 0x%x, want 0xdeadbeef", got)
	}

	SetBits(bus, 0x20, 0x3)
	ClearBits(bus, 0x20, 0x1)
	if got := bus.Peek(0x20); got != 0x2 {
		t.Fatalf("after set/clear = 0x%x, want 0x2", got)
	}
}

func TestSimBusHooks(t *testing.T) {
	bus := NewSimBus(BusInfo{})
	bus.OnWrite = func(offset, value uint32) {
		// self-clearing bit
		if offset == 0x0 && value&1 != 0 {
			bus.Poke(offset, value&^1)
		}
	}
	bus.OnRead = func(offset uint32) (uint32, bool) {
		if offset == 0x40 {
			return 0x55, true
		}
		return 0, false
	}

	bus.Write32(0x0, 0x1)
	if got := bus.Read32(0x0); got != 0 {
		t.Fatalf("self-clearing bit still set: 0x%x", got)
	}
	if got := bus.Read32(0x40); got != 0x55 {
		t.Fatalf("hooked read = 0x%x, want 0x55", got)
	}
}

func TestSimBusRecord(t *testing.T) {
	bus := NewSimBus(BusInfo{})
	bus.Write32(0x4, 1) // not recorded
	bus.Record(true)
	bus.Write32(0x4, 2)
	bus.Read32(0x4)
	bus.Write32(0x4, 3)

	if got := bus.Writes(0x4); len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Fatalf("Writes(0x4) = %v, want [2 3]", got)
	}
	if ops := bus.Accesses(); len(ops) != 3 || ops[1].Access != AccessRead {
		t.Fatalf("unexpected access log: %+v", ops)
	}

	bus.ResetLog()
	if ops := bus.Accesses(); len(ops) != 0 {
		t.Fatalf("log not cleared: %+v", ops)
	}
}

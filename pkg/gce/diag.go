package gce

import (
	"encoding/binary"
	"log/slog"

	"github.com/OpenTraceLab/OpenTraceGCE/pkg/dmamap"
	"github.com/OpenTraceLab/OpenTraceGCE/pkg/logging"
)

// Dumper receives the failing channel and address on every error
// classification, before the buffer is unmapped.
type Dumper interface {
	DumpBuffer(channel int, isTimeout bool, faultAddress uint64)
}

// DumperFunc adapts a function to Dumper.
type DumperFunc func(channel int, isTimeout bool, faultAddress uint64)

func (f DumperFunc) DumpBuffer(channel int, isTimeout bool, faultAddress uint64) {
	f(channel, isTimeout, faultAddress)
}

// InstructionSize is the width of one encoded engine instruction.
const InstructionSize = 8

// LogDumper logs failures. When Lookup is set it also decodes the
// instruction at the fault address and the one before it.
type LogDumper struct {
	Logger *slog.Logger
	Lookup func(addr uint64) ([]byte, dmamap.Range, bool)
}

func (d LogDumper) DumpBuffer(channel int, isTimeout bool, faultAddress uint64) {
	logger := d.Logger
	if logger == nil {
		logger = logging.For(logging.ComponentChannel)
	}
	attrs := []any{"channel", channel, "timeout", isTimeout, "fault", faultAddress}

	if d.Lookup != nil {
		if buf, r, ok := d.Lookup(faultAddress); ok {
			off := int(faultAddress-r.Addr) &^ (InstructionSize - 1)
			if inst, ok := instructionAt(buf, off); ok {
				attrs = append(attrs, "inst", inst)
			}
			if inst, ok := instructionAt(buf, off-InstructionSize); ok {
				attrs = append(attrs, "prev", inst)
			}
			attrs = append(attrs, "buffer", r.String())
		}
	}
	logger.Error("command buffer failed", attrs...)
}

func instructionAt(buf []byte, off int) (uint64, bool) {
	if off < 0 || off+InstructionSize > len(buf) {
		return 0, false
	}
	return binary.LittleEndian.Uint64(buf[off:]), true
}

package mmio

import (
	"errors"
	"fmt"
)

// BusInfo describes the register block a Bus gives access to.
type BusInfo struct {
	Name        string
	BaseAddress uint64 // physical base of the register block
	Size        uint32 // bytes
	Notes       string
}

// Bus abstracts a physical or simulated 32-bit register block. Offsets are
// relative to the block base.
type Bus interface {
	Info() BusInfo
	Read32(offset uint32) uint32
	Write32(offset uint32, value uint32)
}

// ErrUnaligned is returned by CheckOffset for offsets that are not 32-bit
// aligned.
var ErrUnaligned = errors.New("mmio: unaligned register offset")

// CheckOffset ensures offset addresses a whole register inside a block of
// size bytes. A zero size disables the bounds check.
func CheckOffset(offset, size uint32) error {
	if offset%4 != 0 {
		return fmt.Errorf("%w: 0x%x", ErrUnaligned, offset)
	}
	if size > 0 && offset+4 > size {
		return fmt.Errorf("mmio: offset 0x%x outside %d-byte block", offset, size)
	}
	return nil
}

// SetBits performs a read-modify-write setting mask.
func SetBits(b Bus, offset, mask uint32) {
	b.Write32(offset, b.Read32(offset)|mask)
}

// ClearBits performs a read-modify-write clearing mask.
func ClearBits(b Bus, offset, mask uint32) {
	b.Write32(offset, b.Read32(offset)&^mask)
}

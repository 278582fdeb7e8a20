package dmamap

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/OpenTraceLab/OpenTraceGCE/pkg/logging"
)

var (
	// ErrExhausted reports that no free extent can hold the buffer.
	ErrExhausted = errors.New("dmamap: device address space exhausted")

	// ErrNotMapped reports an unmap of a range the mapper does not own.
	ErrNotMapped = errors.New("dmamap: range not mapped")

	// ErrEmptyBuffer rejects zero-length mappings.
	ErrEmptyBuffer = errors.New("dmamap: empty buffer")

	// ErrTooLarge rejects buffers whose length does not fit a Range.
	ErrTooLarge = errors.New("dmamap: buffer too large")
)

// Range is a device-visible view of a client buffer.
type Range struct {
	Addr uint64 // first device address
	Len  uint32 // buffer length in bytes
}

// End returns the first device address past the buffer.
func (r Range) End() uint64 {
	return r.Addr + uint64(r.Len)
}

func (r Range) String() string {
	return fmt.Sprintf("[0x%x, 0x%x)", r.Addr, r.End())
}

// Mapper produces device-visible ranges for buffers.
type Mapper interface {
	Map(buf []byte) (Range, error)
	Unmap(r Range) error
}

// Syncer performs the cache maintenance a mapping requires before the device
// reads the buffer.
type Syncer interface {
	SyncForDevice(buf []byte, r Range)
}

// SyncFunc adapts a function to Syncer.
type SyncFunc func(buf []byte, r Range)

func (f SyncFunc) SyncForDevice(buf []byte, r Range) { f(buf, r) }

type extent struct {
	addr uint64
	size uint64
}

type mapping struct {
	reserved uint64
	buf      []byte
}

// Window is a Mapper over a fixed device address window. Allocation is first
// fit over an address-ordered free list, with neighbouring extents merged on
// release.
type Window struct {
	base  uint64
	size  uint64
	align uint64
	sync  Syncer

	mu       sync.Mutex
	free     []extent
	mappings map[uint64]mapping
}

// WindowOption configures a Window.
type WindowOption func(*Window)

// WithAlignment sets the allocation granule. It must be a power of two.
func WithAlignment(align uint64) WindowOption {
	return func(w *Window) { w.align = align }
}

// WithSyncer installs the cache maintenance hook called by Map.
func WithSyncer(s Syncer) WindowOption {
	return func(w *Window) { w.sync = s }
}

// DefaultAlignment is the allocation granule used when none is given.
const DefaultAlignment = 8

// NewWindow creates a mapper over [base, base+size).
func NewWindow(base, size uint64, opts ...WindowOption) (*Window, error) {
	w := &Window{
		base:     base,
		size:     size,
		align:    DefaultAlignment,
		mappings: make(map[uint64]mapping),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.align == 0 || w.align&(w.align-1) != 0 {
		return nil, fmt.Errorf("dmamap: alignment %d is not a power of two", w.align)
	}
	if base%w.align != 0 {
		return nil, fmt.Errorf("dmamap: base 0x%x not aligned to %d", base, w.align)
	}
	if size < w.align {
		return nil, fmt.Errorf("dmamap: window size %d smaller than alignment %d", size, w.align)
	}
	w.free = []extent{{addr: base, size: size - size%w.align}}
	return w, nil
}

// Map reserves device addresses for buf and syncs it toward the device.
func (w *Window) Map(buf []byte) (Range, error) {
	if err := checkLen(uint64(len(buf))); err != nil {
		return Range{}, err
	}
	need := (uint64(len(buf)) + w.align - 1) &^ (w.align - 1)

	w.mu.Lock()
	idx := -1
	for i, e := range w.free {
		if e.size >= need {
			idx = i
			break
		}
	}
	if idx < 0 {
		free := w.freeBytes()
		w.mu.Unlock()
		logging.Debug(logging.ComponentMapper, "window exhausted", "need", need, "free", free)
		return Range{}, fmt.Errorf("%w: need %d bytes", ErrExhausted, need)
	}

	addr := w.free[idx].addr
	if w.free[idx].size == need {
		w.free = append(w.free[:idx], w.free[idx+1:]...)
	} else {
		w.free[idx].addr += need
		w.free[idx].size -= need
	}
	w.mappings[addr] = mapping{reserved: need, buf: buf}
	w.mu.Unlock()

	r := Range{Addr: addr, Len: uint32(len(buf))}
	if w.sync != nil {
		w.sync.SyncForDevice(buf, r)
	}
	return r, nil
}

func checkLen(n uint64) error {
	if n == 0 {
		return ErrEmptyBuffer
	}
	if n > math.MaxUint32 {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, n)
	}
	return nil
}

// Unmap releases r. Unmapping a range twice returns ErrNotMapped.
func (w *Window) Unmap(r Range) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	m, ok := w.mappings[r.Addr]
	if !ok || uint32(len(m.buf)) != r.Len {
		return fmt.Errorf("%w: %s", ErrNotMapped, r)
	}
	delete(w.mappings, r.Addr)
	w.release(extent{addr: r.Addr, size: m.reserved})
	return nil
}

// Mapped reports the number of live mappings.
func (w *Window) Mapped() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.mappings)
}

// Free reports the number of unreserved bytes.
func (w *Window) Free() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.freeBytes()
}

// Lookup returns the buffer mapped at addr, if any.
func (w *Window) Lookup(addr uint64) ([]byte, Range, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for start, m := range w.mappings {
		if addr >= start && addr < start+m.reserved {
			return m.buf, Range{Addr: start, Len: uint32(len(m.buf))}, true
		}
	}
	return nil, Range{}, false
}

func (w *Window) freeBytes() uint64 {
	var total uint64
	for _, e := range w.free {
		total += e.size
	}
	return total
}

// release inserts e into the free list and merges with its neighbours.
// Caller holds w.mu.
func (w *Window) release(e extent) {
	i := sort.Search(len(w.free), func(i int) bool { return w.free[i].addr > e.addr })
	w.free = append(w.free, extent{})
	copy(w.free[i+1:], w.free[i:])
	w.free[i] = e

	if i+1 < len(w.free) && w.free[i].addr+w.free[i].size == w.free[i+1].addr {
		w.free[i].size += w.free[i+1].size
		w.free = append(w.free[:i+1], w.free[i+2:]...)
	}
	if i > 0 && w.free[i-1].addr+w.free[i-1].size == w.free[i].addr {
		w.free[i-1].size += w.free[i].size
		w.free = append(w.free[:i], w.free[i+1:]...)
	}
}

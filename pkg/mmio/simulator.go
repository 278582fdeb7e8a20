package mmio

import "sync"

// Access identifies whether a register operation was a read or a write.
type Access uint8

const (
	AccessRead Access = iota
	AccessWrite
)

// WriteHook lets a simulator emulate device side effects of a register write.
// It runs after the value has been stored and outside the bus lock, so it may
// call Poke or Peek.
type WriteHook func(offset, value uint32)

// ReadHook may override the value returned by a read. Returning ok=false
// falls back to the stored value.
type ReadHook func(offset uint32) (value uint32, ok bool)

// AccessOp captures a single register access for inspection within tests.
type AccessOp struct {
	Access Access
	Offset uint32
	Value  uint32
}

// SimBus is an in-memory register block useful for unit tests and the
// simulator. Unwritten registers read as zero.
type SimBus struct {
	InfoData BusInfo

	OnWrite WriteHook
	OnRead  ReadHook

	mu     sync.Mutex
	regs   map[uint32]uint32
	log    []AccessOp
	record bool
}

// NewSimBus constructs a simulated bus described by info.
func NewSimBus(info BusInfo) *SimBus {
	return &SimBus{
		InfoData: info,
		regs:     make(map[uint32]uint32),
	}
}

// Record enables or disables the access log.
func (s *SimBus) Record(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = enabled
}

// Accesses returns a copy of the recorded access log.
func (s *SimBus) Accesses() []AccessOp {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AccessOp(nil), s.log...)
}

// Writes returns the recorded writes to offset, oldest first.
func (s *SimBus) Writes(offset uint32) []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []uint32
	for _, op := range s.log {
		if op.Access == AccessWrite && op.Offset == offset {
			out = append(out, op.Value)
		}
	}
	return out
}

// ResetLog drops every recorded access.
func (s *SimBus) ResetLog() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = nil
}

// Peek returns the stored value of a register without hooks or logging.
func (s *SimBus) Peek(offset uint32) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs[offset]
}

// Poke stores a register value without hooks or logging. Simulators use it
// to model device-side updates.
func (s *SimBus) Poke(offset, value uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regs[offset] = value
}

func (s *SimBus) Info() BusInfo {
	return s.InfoData
}

func (s *SimBus) Read32(offset uint32) uint32 {
	if s.OnRead != nil {
		if v, ok := s.OnRead(offset); ok {
			s.logAccess(AccessRead, offset, v)
			return v
		}
	}

	s.mu.Lock()
	v := s.regs[offset]
	if s.record {
		s.log = append(s.log, AccessOp{Access: AccessRead, Offset: offset, Value: v})
	}
	s.mu.Unlock()
	return v
}

func (s *SimBus) Write32(offset, value uint32) {
	s.mu.Lock()
	s.regs[offset] = value
	if s.record {
		s.log = append(s.log, AccessOp{Access: AccessWrite, Offset: offset, Value: value})
	}
	s.mu.Unlock()

	if s.OnWrite != nil {
		s.OnWrite(offset, value)
	}
}

func (s *SimBus) logAccess(a Access, offset, value uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record {
		s.log = append(s.log, AccessOp{Access: a, Offset: offset, Value: value})
	}
}

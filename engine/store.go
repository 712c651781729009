package engine

// Store is the mutable execution state of one instance: operand stack,
// linear memory, globals, the call-frame list, and fuel accounting. A
// Store is exclusively owned by one execution context at a time; it is
// never shared, so nothing in it is synchronized.
//
// The frame list is the explicit representation of where execution
// currently is. A suspended Store needs no extra snapshot: the frames,
// stack and memory are the resumable continuation.
type Store struct {
	Stack   *Stack
	Memory  *Memory
	globals []StackValue
	frames  []*Frame
	limits  Limits

	// fuel remaining against Limits.Fuel, meaningful when metered.
	fuel    uint64
	metered bool
	// slice remaining against Limits.FuelSlice for the current run.
	slice uint64

	// entryBase is the stack height at the top-level call boundary;
	// trap unwinding truncates back to it.
	entryBase int

	// running marks an operation in flight (including suspended), used
	// to reject concurrent calls and host re-entrancy.
	running bool
	inHost  bool

	// pending is the async host call this Store is suspended on, nil
	// when suspended for fuel.
	pending *HostFunc
}

// NewStore creates the mutable state for one instance of mod. The initial
// memory is allocated as declared; callers must check mod.MemoryMin against
// limits.MaxMemoryPages before constructing the store.
func NewStore(mod *Module, limits Limits) *Store {
	s := &Store{
		Stack:   NewStack(limits.StackLimit),
		Memory:  NewMemory(mod.memMin, mod.memMax, limits.MaxMemoryPages),
		globals: make([]StackValue, len(mod.globals)),
		limits:  limits,
		metered: limits.Fuel != 0,
		fuel:    limits.Fuel,
	}
	for i, g := range mod.globals {
		s.globals[i] = StackValue(g.Init)
	}
	return s
}

// Global reads a global slot.
func (s *Store) Global(idx uint32) (StackValue, *Trap) {
	if int(idx) >= len(s.globals) {
		return 0, trapf(TrapGlobalOutOfBounds, "global %d of %d", idx, len(s.globals))
	}
	return s.globals[idx], nil
}

// SetGlobal writes a global slot.
func (s *Store) SetGlobal(idx uint32, v StackValue) *Trap {
	if int(idx) >= len(s.globals) {
		return trapf(TrapGlobalOutOfBounds, "global %d of %d", idx, len(s.globals))
	}
	s.globals[idx] = v
	return nil
}

// Fuel returns the remaining instruction budget and whether metering is on.
func (s *Store) Fuel() (uint64, bool) {
	return s.fuel, s.metered
}

// Depth returns the current call-frame list length.
func (s *Store) Depth() int {
	return len(s.frames)
}

// Running reports whether an operation is in flight for this Store,
// including a suspended one awaiting resume.
func (s *Store) Running() bool {
	return s.running
}

// Suspended reports whether the Store holds a resumable continuation.
func (s *Store) Suspended() bool {
	return s.running && len(s.frames) > 0
}

func (s *Store) top() *Frame {
	return s.frames[len(s.frames)-1]
}

// unwind drops every frame pushed since the top-level call boundary.
// The Store stays well-defined but the aborted call's partial effects on
// memory and globals remain visible; the embedder decides whether the
// instance is still usable.
func (s *Store) unwind() {
	s.frames = s.frames[:0]
	s.Stack.Truncate(s.entryBase)
	s.running = false
	s.pending = nil
}

package engine

import (
	"sort"

	"github.com/Neopallium/s1vm/isa"

	"github.com/Neopallium/s1vm/errors"
)

// Function is one function's compiled form: arity metadata plus the root
// block of its compiled unit tree. Immutable; shared by every Store that
// executes it.
type Function struct {
	root      *block
	Name      string
	Type      isa.FuncType
	numLocals int
	idx       uint32
}

// Module is an immutable unit of compiled functions plus export and
// global metadata. One Module may back many concurrently running Stores.
type Module struct {
	funcs   []*Function
	exports map[string]*Function
	globals []isa.Global
	start   *Function
	memMin  uint32
	memMax  uint32
	Name    string
}

// Export resolves an exported function by name.
func (m *Module) Export(name string) (*Function, bool) {
	fn, ok := m.exports[name]
	return fn, ok
}

// Exports returns the exported function names, sorted.
func (m *Module) Exports() []string {
	names := make([]string, 0, len(m.exports))
	for name := range m.exports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start returns the start function, or nil.
func (m *Module) Start() *Function {
	return m.start
}

// MemoryMin returns the declared initial memory size in pages.
func (m *Module) MemoryMin() uint32 {
	return m.memMin
}

// NumFuncs returns the number of compiled functions.
func (m *Module) NumFuncs() int {
	return len(m.funcs)
}

// State is the immutable registry of compiled modules and host functions
// available to running instances. It is only mutated while loading, before
// execution; during execution it is read-only and safely shared by many
// Stores on different goroutines with no coordination.
type State struct {
	modules map[string]*Module
	hosts   []*HostFunc
}

// NewState creates an empty registry.
func NewState() *State {
	return &State{modules: make(map[string]*Module)}
}

// RegisterHost appends a host function and returns its stable index.
// Host functions occupy the low end of the call index space, so they must
// be registered before loading modules that call them.
func (s *State) RegisterHost(h *HostFunc) (uint32, error) {
	if h.call == nil && h.callAsync == nil {
		return 0, errors.Registration(uint32(len(s.hosts)), h.Name,
			errors.InvalidInput(errors.PhaseHost, "nil handler"))
	}
	s.hosts = append(s.hosts, h)
	return uint32(len(s.hosts) - 1), nil
}

// NumHosts returns the number of registered host functions.
func (s *State) NumHosts() int {
	return len(s.hosts)
}

// Host returns the host function at idx.
func (s *State) Host(idx uint32) (*HostFunc, bool) {
	if int(idx) >= len(s.hosts) {
		return nil, false
	}
	return s.hosts[idx], true
}

// AddModule registers a compiled module under name.
func (s *State) AddModule(name string, m *Module) error {
	if _, exists := s.modules[name]; exists {
		return errors.Exists(errors.PhaseLoad, "module", name)
	}
	m.Name = name
	s.modules[name] = m
	return nil
}

// Module resolves a loaded module by name.
func (s *State) Module(name string) (*Module, bool) {
	m, ok := s.modules[name]
	return m, ok
}

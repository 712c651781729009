package runtime

import (
	"context"
	"fmt"

	"github.com/Neopallium/s1vm/engine"
	"github.com/Neopallium/s1vm/errors"
	"github.com/Neopallium/s1vm/isa"
)

// Module is a loaded, compiled module. It is immutable; Instantiate gives
// each instance its own memory, globals and operand stack.
type Module struct {
	runtime  *Runtime
	compiled *engine.Module
}

// Exports returns the module's exported function names, sorted.
func (m *Module) Exports() []string {
	return m.compiled.Exports()
}

// ExportType returns the signature of an exported function.
func (m *Module) ExportType(name string) (isa.FuncType, bool) {
	fn, ok := m.compiled.Export(name)
	if !ok {
		return isa.FuncType{}, false
	}
	return fn.Type, true
}

// Instantiate creates a fresh instance: memory at its declared minimum,
// globals at their initial values. When the module declares a start
// function it runs here with ordinary call semantics; a start trap fails
// instantiation.
func (m *Module) Instantiate(ctx context.Context, opts ...InstanceOption) (*Instance, error) {
	var limits engine.Limits
	for _, opt := range opts {
		opt(&limits)
	}
	if limits.MaxMemoryPages > 0 && m.compiled.MemoryMin() > limits.MaxMemoryPages {
		return nil, errors.InvalidInput(errors.PhaseLimit,
			fmt.Sprintf("module declares %d memory pages, limit is %d",
				m.compiled.MemoryMin(), limits.MaxMemoryPages))
	}

	store := engine.NewStore(m.compiled, limits)
	inst := &Instance{
		runtime: m.runtime,
		module:  m,
		store:   store,
		interp:  engine.NewInterp(store),
	}

	if start := m.compiled.Start(); start != nil {
		res, err := inst.interp.Call(ctx, start, nil)
		if err != nil {
			return nil, err
		}
		switch res.Status {
		case engine.StatusTrapped:
			return nil, errors.Wrap(errors.PhaseRuntime, errors.KindInvalidInput,
				res.Trap, "start function trapped")
		case engine.StatusSuspended:
			// Start runs to completion or not at all; there is no
			// session to hand back before the instance exists.
			return nil, errors.InvalidInput(errors.PhaseRuntime, "start function suspended")
		}
	}

	m.runtime.track(inst)
	return inst, nil
}

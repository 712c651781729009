package runtime

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/Neopallium/s1vm/engine"
	"github.com/Neopallium/s1vm/errors"
	"github.com/Neopallium/s1vm/isa"
)

// Runtime owns the immutable engine state: registered host functions and
// compiled modules. Instances created from it execute independently.
type Runtime struct {
	state  *engine.State
	logger *zap.Logger

	mu        sync.Mutex
	modules   map[string]*Module
	instances []*Instance
	closed    bool
}

// New creates an empty runtime.
func New(opts ...Option) *Runtime {
	r := &Runtime{
		state:   engine.NewState(),
		logger:  zap.NewNop(),
		modules: make(map[string]*Module),
	}
	for _, opt := range opts {
		opt(r)
	}
	engine.SetLogger(r.logger)
	return r
}

// RegisterFunc registers a synchronous host function and returns its
// stable index in the unified call index space. Host functions must be
// registered before loading any module that calls them: the compiler binds
// call sites to the host table at load time.
func (r *Runtime) RegisterFunc(name string, sig isa.FuncType, fn engine.HostFn) (uint32, error) {
	return r.register(engine.NewHostFunc(name, sig, fn))
}

// RegisterAsyncFunc registers a host function that may suspend the calling
// instance.
func (r *Runtime) RegisterAsyncFunc(name string, sig isa.FuncType, fn engine.AsyncHostFn) (uint32, error) {
	return r.register(engine.NewAsyncHostFunc(name, sig, fn))
}

func (r *Runtime) register(h *engine.HostFunc) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, errors.Closed("runtime")
	}
	idx, err := r.state.RegisterHost(h)
	if err != nil {
		return 0, err
	}
	r.logger.Debug("host function registered",
		zap.String("name", h.Name),
		zap.Uint32("index", idx),
		zap.Bool("async", h.IsAsync()))
	return idx, nil
}

// LoadModule compiles src and registers it under name. Compilation is
// all-or-nothing: any instruction the engine cannot lower fails the load
// with a compile-phase error and nothing is registered.
func (r *Runtime) LoadModule(name string, src *isa.Module) (*Module, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, errors.Closed("runtime")
	}
	if _, exists := r.modules[name]; exists {
		return nil, errors.Exists(errors.PhaseLoad, "module", name)
	}

	compiled, err := engine.Compile(r.state, src)
	if err != nil {
		return nil, err
	}
	if err := r.state.AddModule(name, compiled); err != nil {
		return nil, err
	}

	m := &Module{runtime: r, compiled: compiled}
	r.modules[name] = m
	r.logger.Debug("module loaded",
		zap.String("name", name),
		zap.Int("functions", compiled.NumFuncs()))
	return m, nil
}

// Module returns a previously loaded module.
func (r *Runtime) Module(name string) (*Module, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.modules[name]
	return m, ok
}

// Close closes every instance created from this runtime, aggregating
// their errors. The runtime rejects further use afterwards.
func (r *Runtime) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	instances := r.instances
	r.instances = nil
	r.mu.Unlock()

	var result *multierror.Error
	for _, inst := range instances {
		if err := inst.Close(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (r *Runtime) track(inst *Instance) {
	r.mu.Lock()
	r.instances = append(r.instances, inst)
	r.mu.Unlock()
}

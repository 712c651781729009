package runtime

import (
	"context"
	"sync"

	"github.com/Neopallium/s1vm/engine"
	"github.com/Neopallium/s1vm/errors"
)

// Instance is one executable copy of a module: its own Store driven by its
// own interpreter. An Instance is not safe for concurrent calls; one
// operation is in flight at a time and concurrent use is rejected.
type Instance struct {
	runtime *Runtime
	module  *Module
	store   *engine.Store
	interp  *engine.Interp

	mu     sync.Mutex
	closed bool
}

// Outcome is the result of a Call or Resume that actually started
// executing. Exactly one of Completed, Trapped and Suspended applies.
type Outcome struct {
	status    engine.Status
	value     engine.Value
	hasValue  bool
	trap      *engine.Trap
	session   *CallSession
}

// Completed reports whether the call returned normally.
func (o *Outcome) Completed() bool {
	return o.status == engine.StatusCompleted
}

// Result returns the completed call's value, when it produced one.
func (o *Outcome) Result() (engine.Value, bool) {
	return o.value, o.hasValue
}

// Trapped returns the terminal fault, or nil.
func (o *Outcome) Trapped() *engine.Trap {
	return o.trap
}

// Suspended returns the session to resume with, or nil.
func (o *Outcome) Suspended() *CallSession {
	return o.session
}

// Call invokes an exported function. A non-nil error means the call never
// started (unknown export, argument mismatch, operation already in
// flight); everything that happens during execution, traps included, is
// reported through the Outcome.
func (i *Instance) Call(ctx context.Context, export string, args ...engine.Value) (*Outcome, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil, errors.Closed("instance")
	}

	fn, ok := i.module.compiled.Export(export)
	if !ok {
		return nil, errors.NotFound(errors.PhaseRuntime, "export", export)
	}
	if len(args) != len(fn.Type.Params) {
		return nil, errors.Arity("%s expects %d arguments, got %d",
			export, len(fn.Type.Params), len(args))
	}
	raw := make([]engine.StackValue, len(args))
	for n, a := range args {
		if a.Type != fn.Type.Params[n] {
			return nil, errors.Arity("%s argument %d: want %s, got %s",
				export, n, fn.Type.Params[n], a.Type)
		}
		raw[n] = a.Stack()
	}

	res, err := i.interp.Call(ctx, fn, raw)
	if err != nil {
		return nil, err
	}
	return i.outcome(fn, res), nil
}

func (i *Instance) outcome(fn *engine.Function, res engine.Result) *Outcome {
	out := &Outcome{status: res.Status}
	switch res.Status {
	case engine.StatusCompleted:
		if res.HasValue {
			out.value = engine.TypedValue(fn.Type.Results[0], res.Value)
			out.hasValue = true
		}
	case engine.StatusTrapped:
		out.trap = res.Trap
	case engine.StatusSuspended:
		out.session = &CallSession{inst: i, fn: fn, waiting: res.WaitingHost}
	}
	return out
}

// Memory exposes the instance's linear memory for host data exchange.
func (i *Instance) Memory() *engine.Memory {
	return i.store.Memory
}

// Store exposes the instance's mutable state, mainly for host functions
// registered by the embedder.
func (i *Instance) Store() *engine.Store {
	return i.store
}

// Close releases the instance. Closing with a call actively running is an
// error; a suspended call is abandoned.
func (i *Instance) Close(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil
	}
	if i.store.Running() && !i.store.Suspended() {
		return errors.InFlight("close with call in progress")
	}
	i.closed = true
	return nil
}

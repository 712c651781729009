package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/Neopallium/s1vm/errors"
)

// Status classifies how a driver run ended.
type Status int

const (
	// StatusCompleted: the call returned normally.
	StatusCompleted Status = iota
	// StatusTrapped: execution hit a terminal fault; the Store is
	// unwound to the call boundary.
	StatusTrapped
	// StatusSuspended: execution stopped at a unit boundary and the
	// Store holds a resumable continuation.
	StatusSuspended
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusTrapped:
		return "trapped"
	case StatusSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// Result is the outcome of one Call or Resume.
type Result struct {
	Status Status

	// Value is set when a completed call produced one.
	Value    StackValue
	HasValue bool

	// Trap is set when Status is StatusTrapped.
	Trap *Trap

	// WaitingHost is the async host function a suspension is waiting
	// on; nil when the suspension came from fuel slicing.
	WaitingHost *HostFunc
}

// Interp drives one Store over compiled functions. It is an explicit
// trampoline: every call kind, including deep async chains, runs through
// the Store's heap frame list, so a nested chain of depth N costs O(N)
// heap and O(1) native stack. The loop executes one unit at a time, which
// is what makes any unit boundary a legal suspension point.
type Interp struct {
	store *Store
	ctx   context.Context
	steps uint64
}

// NewInterp creates a driver over s.
func NewInterp(s *Store) *Interp {
	return &Interp{store: s, ctx: context.Background()}
}

// Store returns the driven Store.
func (in *Interp) Store() *Store {
	return in.store
}

// Call begins executing fn with the given arguments. A non-nil error means
// the call never started (embedder misuse); execution outcomes, including
// traps, are reported in the Result.
func (in *Interp) Call(ctx context.Context, fn *Function, args []StackValue) (Result, error) {
	s := in.store
	if s.inHost {
		return Result{}, errors.InFlight("module re-entry from a host function")
	}
	if s.running {
		return Result{}, errors.InFlight("call already in progress")
	}
	if fn == nil || fn.root == nil {
		return Result{}, errors.InvalidInput(errors.PhaseRuntime, "nil function")
	}
	if len(args) != len(fn.Type.Params) {
		return Result{}, errors.Arity("%s expects %d arguments, got %d",
			fn.Name, len(fn.Type.Params), len(args))
	}
	if ctx == nil {
		ctx = context.Background()
	}
	in.ctx = ctx

	s.entryBase = s.Stack.Len()
	s.running = true
	s.slice = s.limits.FuelSlice
	for _, v := range args {
		if trap := s.Stack.Push(v); trap != nil {
			return in.trapResult(trap), nil
		}
	}
	if trap := in.pushFrame(fn); trap != nil {
		return in.trapResult(trap), nil
	}
	return in.run(), nil
}

// Resume continues a suspended call. For a suspension waiting on an async
// host function with a result, the completion value must be supplied;
// fuel-slice suspensions take none.
func (in *Interp) Resume(ctx context.Context, result *StackValue) (Result, error) {
	s := in.store
	if !s.Suspended() {
		return Result{}, errors.InvalidInput(errors.PhaseRuntime, "no suspended call to resume")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	in.ctx = ctx

	if h := s.pending; h != nil {
		if h.Type.HasResult() {
			if result == nil {
				return Result{}, errors.Arity("async host %s requires a resume value", h.Name)
			}
			if trap := s.Stack.Push(*result); trap != nil {
				return in.trapResult(trap), nil
			}
		} else if result != nil {
			return Result{}, errors.Arity("async host %s takes no resume value", h.Name)
		}
		s.pending = nil
	} else if result != nil {
		return Result{}, errors.InvalidInput(errors.PhaseRuntime, "resume value for a fuel suspension")
	}
	s.slice = s.limits.FuelSlice
	return in.run(), nil
}

// run is the trampoline loop. Fuel is charged before each unit, so a hard
// budget of B traps exactly when the (B+1)-th unit would begin, and a
// slice suspension leaves the cursor pointing at the unexecuted unit.
func (in *Interp) run() Result {
	s := in.store
	for {
		f := s.top()
		cur := &f.cursors[len(f.cursors)-1]

		if cur.idx >= len(cur.b.units) {
			f.cursors = f.cursors[:len(f.cursors)-1]
			if len(f.cursors) == 0 {
				r, done, trap := in.functionReturn(f)
				if trap != nil {
					return in.trapResult(trap)
				}
				if done {
					return r
				}
			}
			continue
		}

		// Slice exhaustion suspends before the unit is charged, so a
		// resumed unit pays hard fuel exactly once.
		if s.limits.FuelSlice != 0 {
			if s.slice == 0 {
				return Result{Status: StatusSuspended}
			}
			s.slice--
		}
		if s.metered {
			if s.fuel == 0 {
				return in.trapResult(newTrap(TrapFuelExhausted))
			}
			s.fuel--
		}
		in.steps++
		if in.steps&127 == 0 {
			if err := in.ctx.Err(); err != nil {
				return in.trapResult(&Trap{Kind: TrapCanceled, Cause: err})
			}
		}

		unit := cur.b.units[cur.idx]
		cur.idx++
		out, trap := unit(in, f)
		if trap != nil {
			return in.trapResult(trap)
		}

		switch out.act {
		case actNext:
		case actEnter:
			f.cursors = append(f.cursors, cursor{b: out.block})
		case actBranch:
			r, done, trap := in.branch(f, out.depth)
			if trap != nil {
				return in.trapResult(trap)
			}
			if done {
				return r
			}
		case actReturn:
			r, done := in.popFrame(out.result, out.hasResult)
			if done {
				return r
			}
		case actInvoke:
			if trap := in.pushFrame(out.fn); trap != nil {
				return in.trapResult(trap)
			}
		case actTailInvoke:
			if trap := in.tailFrame(f, out.fn); trap != nil {
				return in.trapResult(trap)
			}
		case actYield:
			return Result{Status: StatusSuspended, WaitingHost: s.pending}
		}
	}
}

// branch unwinds depth nesting levels within the current frame. A loop
// target restarts; anything else exits past the target. Branching past
// the root block exits the function.
func (in *Interp) branch(f *Frame, depth uint32) (Result, bool, *Trap) {
	ti := len(f.cursors) - 1 - int(depth)
	if ti < 0 {
		return Result{}, false, trapf(TrapUnreachable, "branch depth %d with %d levels open", depth, len(f.cursors))
	}
	if f.cursors[ti].b.kind == blockLoop {
		f.cursors = f.cursors[:ti+1]
		f.cursors[ti].idx = 0
		return Result{}, false, nil
	}
	f.cursors = f.cursors[:ti]
	if len(f.cursors) == 0 {
		return in.functionReturn(f)
	}
	return Result{}, false, nil
}

// functionReturn handles execution falling past a frame's root block: the
// result, when the signature declares one, is on top of the operand stack.
func (in *Interp) functionReturn(f *Frame) (Result, bool, *Trap) {
	var res StackValue
	var has bool
	if f.fn.Type.HasResult() {
		v, trap := in.store.Stack.Pop()
		if trap != nil {
			return Result{}, false, trap
		}
		res, has = v, true
	}
	r, done := in.popFrame(res, has)
	return r, done, nil
}

// pushFrame enters fn. The caller's call unit has already pushed the
// arguments; they become the low local slots of the new frame.
func (in *Interp) pushFrame(fn *Function) *Trap {
	s := in.store
	if len(s.frames) >= s.limits.callDepth() {
		return trapf(TrapCallDepthExceeded, "depth %d", len(s.frames))
	}
	np := len(fn.Type.Params)
	base := s.Stack.Len() - np
	if trap := s.Stack.Reserve(fn.numLocals - np); trap != nil {
		return trap
	}
	f := &Frame{fn: fn, base: base}
	f.cursors = append(f.cursors, cursor{b: fn.root})
	if fn.numLocals > 0 {
		f.l0 = s.Stack.At(base)
	}
	s.frames = append(s.frames, f)
	return nil
}

// popFrame leaves the top frame, handing res to the caller's operand
// stack. Returns the final Result when the entry frame was popped.
func (in *Interp) popFrame(res StackValue, has bool) (Result, bool) {
	s := in.store
	f := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	s.Stack.Truncate(f.base)
	if len(s.frames) == 0 {
		s.running = false
		r := Result{Status: StatusCompleted}
		if has {
			r.Value, r.HasValue = res, true
		}
		return r, true
	}
	if has {
		// The stack was at least this tall while the frame ran, so the
		// limit cannot be newly exceeded here.
		s.Stack.values = append(s.Stack.values, res)
	}
	return Result{}, false
}

// tailFrame replaces the current frame in place with an invocation of fn:
// the frame list does not grow, which is what keeps arbitrarily long tail
// chains depth-bounded.
func (in *Interp) tailFrame(f *Frame, fn *Function) *Trap {
	s := in.store
	np := len(fn.Type.Params)
	args := make([]StackValue, np)
	for i := np - 1; i >= 0; i-- {
		v, trap := s.Stack.Pop()
		if trap != nil {
			return trap
		}
		args[i] = v
	}
	s.Stack.Truncate(f.base)
	for _, v := range args {
		s.Stack.values = append(s.Stack.values, v)
	}
	if trap := s.Stack.Reserve(fn.numLocals - np); trap != nil {
		return trap
	}
	f.fn = fn
	f.cursors = f.cursors[:0]
	f.cursors = append(f.cursors, cursor{b: fn.root})
	f.l0 = 0
	if fn.numLocals > 0 {
		f.l0 = s.Stack.At(f.base)
	}
	return nil
}

func (in *Interp) trapResult(t *Trap) Result {
	s := in.store
	Logger().Debug("execution trapped",
		zap.String("kind", t.Kind.String()),
		zap.Int("depth", len(s.frames)))
	s.unwind()
	return Result{Status: StatusTrapped, Trap: t}
}

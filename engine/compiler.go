package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Neopallium/s1vm/errors"
	"github.com/Neopallium/s1vm/isa"
)

// Compile lowers every function of src into its closure-tree form, bound
// to the host functions already registered in st. Call immediates use the
// unified index space: registered host functions first, then the module's
// own functions. Export and start indices are module-local.
//
// Compilation is all-or-nothing: the first instruction the pass cannot
// lower aborts the whole module with a compile-phase error, before any of
// it can execute.
func Compile(st *State, src *isa.Module) (*Module, error) {
	nh := uint32(len(st.hosts))
	m := &Module{
		exports: make(map[string]*Function),
		globals: append([]isa.Global(nil), src.Globals...),
		memMin:  src.MemoryMin,
		memMax:  src.MemoryMax,
	}

	// Allocate every Function up front so call units can capture pointers
	// to targets that have not been compiled yet.
	m.funcs = make([]*Function, len(src.Funcs))
	for i := range src.Funcs {
		f := &src.Funcs[i]
		m.funcs[i] = &Function{
			Name:      src.FuncName(uint32(i)),
			Type:      f.Type,
			numLocals: f.NumLocals(),
			idx:       nh + uint32(i),
		}
	}

	for i := range src.Funcs {
		c := &funcCompiler{state: st, mod: m, fn: m.funcs[i], src: &src.Funcs[i], numHosts: nh}
		if err := c.compile(); err != nil {
			return nil, err
		}
	}

	for _, e := range src.Exports {
		if int(e.FuncIdx) >= len(m.funcs) {
			return nil, errors.InvalidInput(errors.PhaseCompile,
				fmt.Sprintf("export %q: function %d out of range", e.Name, e.FuncIdx))
		}
		m.exports[e.Name] = m.funcs[e.FuncIdx]
	}

	if src.Start != nil {
		if int(*src.Start) >= len(m.funcs) {
			return nil, errors.InvalidInput(errors.PhaseCompile,
				fmt.Sprintf("start function %d out of range", *src.Start))
		}
		start := m.funcs[*src.Start]
		if len(start.Type.Params) != 0 || start.Type.HasResult() {
			return nil, errors.TypeMismatch(start.Name, "start function must have signature () -> ()")
		}
		m.start = start
	}

	Logger().Debug("module compiled",
		zap.Int("functions", len(m.funcs)),
		zap.Int("hosts", int(nh)))
	return m, nil
}

// funcCompiler lowers one function body. The pending list models the top
// of the operand stack at compile time: values whose production has been
// captured into inputs but not yet materialized. Any unit with a side
// effect first consumes its operands from pending, then forces the rest
// onto the real stack (flush), so effects observe every value produced
// before them in program order.
type funcCompiler struct {
	state    *State
	mod      *Module
	fn       *Function
	src      *isa.Function
	pending  []input
	numHosts uint32
}

func (c *funcCompiler) compile() error {
	root := newBlock(blockPlain, 0)
	pc, term, err := c.compileExprs(c.src.Body.Code, 0, root)
	if err != nil {
		return err
	}
	if term != isa.OpEnd {
		return errors.Malformed(c.fn.Name, pc, "else outside if")
	}
	if pc != len(c.src.Body.Code) {
		return errors.Malformed(c.fn.Name, pc, "instructions after function end")
	}
	if c.fn.Type.HasResult() {
		// Implicit return for fall-through: the body's flush left the
		// result on top of the operand stack.
		root.push(func(in *Interp, _ *Frame) (outcome, *Trap) {
			v, trap := in.store.Stack.Pop()
			if trap != nil {
				return next, trap
			}
			return outcome{act: actReturn, result: v, hasResult: true}, nil
		})
	}
	c.fn.root = root
	return nil
}

func (c *funcCompiler) malformed(pc int, detail string, args ...any) error {
	return errors.Malformed(c.fn.Name, pc, fmt.Sprintf(detail, args...))
}

// popInput takes the top compile-time operand, falling back to a runtime
// stack pop when everything pending has already been materialized.
func (c *funcCompiler) popInput() input {
	if n := len(c.pending); n > 0 {
		in := c.pending[n-1]
		c.pending = c.pending[:n-1]
		return in
	}
	return stackInput()
}

func (c *funcCompiler) pushOp(op opFunc) {
	c.pending = append(c.pending, opInput(op))
}

// flush materializes every pending input onto the operand stack, oldest
// first, as one push unit each.
func (c *funcCompiler) flush(b *block) {
	for _, pin := range c.pending {
		b.push(pushUnit(pin.resolver()))
	}
	c.pending = c.pending[:0]
}

func pushUnit(op opFunc) execFunc {
	return func(in *Interp, f *Frame) (outcome, *Trap) {
		v, trap := op(in, f)
		if trap != nil {
			return next, trap
		}
		return next, in.store.Stack.Push(v)
	}
}

func enterUnit(child *block) execFunc {
	return func(*Interp, *Frame) (outcome, *Trap) {
		return outcome{act: actEnter, block: child}, nil
	}
}

// skipDead advances past the instructions made unreachable by an
// unconditional transfer, up to (not including) the end or else that
// closes the current block.
func skipDead(code []isa.Instruction, pc int) int {
	depth := 0
	for pc < len(code) {
		switch code[pc].Opcode {
		case isa.OpBlock, isa.OpLoop, isa.OpIf:
			depth++
		case isa.OpElse:
			if depth == 0 {
				return pc
			}
		case isa.OpEnd:
			if depth == 0 {
				return pc
			}
			depth--
		}
		pc++
	}
	return pc
}

// compileExprs lowers instructions into b until the end or else closing
// the current nesting level. It returns the index just past that token and
// which token it was.
func (c *funcCompiler) compileExprs(code []isa.Instruction, pc int, b *block) (int, isa.Opcode, error) {
	for {
		if pc >= len(code) {
			return pc, 0, c.malformed(pc, "missing end")
		}
		ins := code[pc]
		at := pc
		pc++

		op := ins.Opcode
		switch op {
		case isa.OpEnd, isa.OpElse:
			c.flush(b)
			return pc, op, nil

		case isa.OpNop:
			// no unit

		case isa.OpUnreachable:
			c.flush(b)
			b.push(func(*Interp, *Frame) (outcome, *Trap) {
				return next, newTrap(TrapUnreachable)
			})
			pc = skipDead(code, pc)

		case isa.OpBlock, isa.OpLoop:
			c.flush(b)
			kind := blockPlain
			if op == isa.OpLoop {
				kind = blockLoop
			}
			child := newBlock(kind, b.depth+1)
			var term isa.Opcode
			var err error
			pc, term, err = c.compileExprs(code, pc, child)
			if err != nil {
				return pc, 0, err
			}
			if term != isa.OpEnd {
				return pc, 0, c.malformed(at, "else closing %s", op)
			}
			b.push(enterUnit(child))

		case isa.OpIf:
			cond := c.popInput().resolver()
			c.flush(b)
			thenB := newBlock(blockIf, b.depth+1)
			var term isa.Opcode
			var err error
			pc, term, err = c.compileExprs(code, pc, thenB)
			if err != nil {
				return pc, 0, err
			}
			var elseB *block
			if term == isa.OpElse {
				elseB = newBlock(blockElse, b.depth+1)
				pc, term, err = c.compileExprs(code, pc, elseB)
				if err != nil {
					return pc, 0, err
				}
				if term != isa.OpEnd {
					return pc, 0, c.malformed(at, "unterminated else")
				}
			}
			b.push(ifUnit(cond, thenB, elseB))

		case isa.OpBr:
			imm, ok := ins.Imm.(isa.BranchImm)
			if !ok {
				return pc, 0, c.malformed(at, "br without depth")
			}
			c.flush(b)
			depth := imm.Depth
			b.push(func(*Interp, *Frame) (outcome, *Trap) {
				return outcome{act: actBranch, depth: depth}, nil
			})
			pc = skipDead(code, pc)

		case isa.OpBrIf:
			imm, ok := ins.Imm.(isa.BranchImm)
			if !ok {
				return pc, 0, c.malformed(at, "br_if without depth")
			}
			cond := c.popInput().resolver()
			c.flush(b)
			depth := imm.Depth
			b.push(func(in *Interp, f *Frame) (outcome, *Trap) {
				v, trap := cond(in, f)
				if trap != nil {
					return next, trap
				}
				if uint32(v) != 0 {
					return outcome{act: actBranch, depth: depth}, nil
				}
				return next, nil
			})

		case isa.OpBrTable:
			imm, ok := ins.Imm.(isa.BrTableImm)
			if !ok {
				return pc, 0, c.malformed(at, "br_table without table")
			}
			sel := c.popInput().resolver()
			c.flush(b)
			depths := append([]uint32(nil), imm.Depths...)
			def := imm.Default
			b.push(func(in *Interp, f *Frame) (outcome, *Trap) {
				v, trap := sel(in, f)
				if trap != nil {
					return next, trap
				}
				depth := def
				if i := uint32(v); int(i) < len(depths) {
					depth = depths[i]
				}
				return outcome{act: actBranch, depth: depth}, nil
			})
			pc = skipDead(code, pc)

		case isa.OpReturn:
			c.compileReturn(b)
			pc = skipDead(code, pc)

		case isa.OpCall, isa.OpReturnCall:
			imm, ok := ins.Imm.(isa.CallImm)
			if !ok {
				return pc, 0, c.malformed(at, "call without target")
			}
			tail := op == isa.OpReturnCall
			if err := c.compileCall(b, imm.FuncIdx, tail, at); err != nil {
				return pc, 0, err
			}
			if tail {
				pc = skipDead(code, pc)
			}

		case isa.OpDrop:
			c.compileDrop(b)

		case isa.OpSelect:
			cond := c.popInput().resolver()
			v2 := c.popInput().resolver()
			v1 := c.popInput().resolver()
			c.pushOp(func(in *Interp, f *Frame) (StackValue, *Trap) {
				cv, trap := cond(in, f)
				if trap != nil {
					return 0, trap
				}
				b2, trap := v2(in, f)
				if trap != nil {
					return 0, trap
				}
				b1, trap := v1(in, f)
				if trap != nil {
					return 0, trap
				}
				if uint32(cv) != 0 {
					return b1, nil
				}
				return b2, nil
			})

		case isa.OpLocalGet:
			imm, ok := ins.Imm.(isa.LocalImm)
			if !ok {
				return pc, 0, c.malformed(at, "local.get without index")
			}
			c.pending = append(c.pending, localInput(imm.LocalIdx))

		case isa.OpLocalSet, isa.OpLocalTee:
			imm, ok := ins.Imm.(isa.LocalImm)
			if !ok {
				return pc, 0, c.malformed(at, "%s without index", op)
			}
			val := c.popInput().resolver()
			c.flush(b)
			idx := imm.LocalIdx
			tee := op == isa.OpLocalTee
			b.push(func(in *Interp, f *Frame) (outcome, *Trap) {
				v, trap := val(in, f)
				if trap != nil {
					return next, trap
				}
				if trap := f.setLocal(in.store.Stack, idx, v); trap != nil {
					return next, trap
				}
				if tee {
					return next, in.store.Stack.Push(v)
				}
				return next, nil
			})

		case isa.OpGlobalGet:
			imm, ok := ins.Imm.(isa.GlobalImm)
			if !ok {
				return pc, 0, c.malformed(at, "global.get without index")
			}
			idx := imm.GlobalIdx
			c.pushOp(func(in *Interp, _ *Frame) (StackValue, *Trap) {
				return in.store.Global(idx)
			})

		case isa.OpGlobalSet:
			imm, ok := ins.Imm.(isa.GlobalImm)
			if !ok {
				return pc, 0, c.malformed(at, "global.set without index")
			}
			val := c.popInput().resolver()
			c.flush(b)
			idx := imm.GlobalIdx
			b.push(func(in *Interp, f *Frame) (outcome, *Trap) {
				v, trap := val(in, f)
				if trap != nil {
					return next, trap
				}
				return next, in.store.SetGlobal(idx, v)
			})

		case isa.OpI32Const:
			imm, ok := ins.Imm.(isa.I32Imm)
			if !ok {
				return pc, 0, c.malformed(at, "i32.const without value")
			}
			c.pending = append(c.pending, constInput(fromI32(imm.Value)))

		case isa.OpI64Const:
			imm, ok := ins.Imm.(isa.I64Imm)
			if !ok {
				return pc, 0, c.malformed(at, "i64.const without value")
			}
			c.pending = append(c.pending, constInput(fromI64(imm.Value)))

		case isa.OpF32Const:
			imm, ok := ins.Imm.(isa.F32Imm)
			if !ok {
				return pc, 0, c.malformed(at, "f32.const without value")
			}
			c.pending = append(c.pending, constInput(fromF32(imm.Value)))

		case isa.OpF64Const:
			imm, ok := ins.Imm.(isa.F64Imm)
			if !ok {
				return pc, 0, c.malformed(at, "f64.const without value")
			}
			c.pending = append(c.pending, constInput(fromF64(imm.Value)))

		case isa.OpMemorySize:
			c.pushOp(func(in *Interp, _ *Frame) (StackValue, *Trap) {
				return fromU32(in.store.Memory.Size()), nil
			})

		case isa.OpMemoryGrow:
			delta := c.popInput().resolver()
			c.flush(b)
			b.push(func(in *Interp, f *Frame) (outcome, *Trap) {
				d, trap := delta(in, f)
				if trap != nil {
					return next, trap
				}
				prev, trap := in.store.Memory.Grow(uint32(d))
				if trap != nil {
					return next, trap
				}
				return next, in.store.Stack.Push(fromI32(prev))
			})

		default:
			if err := c.compileNumeric(b, ins, at); err != nil {
				return pc, 0, err
			}
		}
	}
}

// compileNumeric handles every pure value-producing opcode: arithmetic,
// comparisons, conversions, and memory loads. Stores are the one memory
// shape with a side effect and are handled here too.
func (c *funcCompiler) compileNumeric(b *block, ins isa.Instruction, at int) error {
	op := ins.Opcode

	if fn, ok := intBinOps[op]; ok {
		r := c.popInput()
		l := c.popInput()
		c.pushOp(mergeBinop(l, r, fn))
		return nil
	}
	if fn, ok := floatBinOps[op]; ok {
		r := c.popInput()
		l := c.popInput()
		c.pushOp(mergeBinop(l, r, fn))
		return nil
	}
	if fn, ok := intUnOps[op]; ok {
		c.pushOp(mergeUnop(c.popInput(), fn))
		return nil
	}
	if fn, ok := floatUnOps[op]; ok {
		c.pushOp(mergeUnop(c.popInput(), fn))
		return nil
	}

	if ld, ok := loadOps[op]; ok {
		imm, ok := ins.Imm.(isa.MemoryImm)
		if !ok {
			return c.malformed(at, "%s without offset", op)
		}
		c.pushOp(mergeLoad(c.popInput(), ld, imm.Offset))
		return nil
	}
	if stf, ok := storeOps[op]; ok {
		imm, ok := ins.Imm.(isa.MemoryImm)
		if !ok {
			return c.malformed(at, "%s without offset", op)
		}
		val := c.popInput().resolver()
		addr := c.popInput().resolver()
		c.flush(b)
		off := imm.Offset
		b.push(func(in *Interp, f *Frame) (outcome, *Trap) {
			v, trap := val(in, f)
			if trap != nil {
				return next, trap
			}
			a, trap := addr(in, f)
			if trap != nil {
				return next, trap
			}
			return next, stf(in.store.Memory, uint32(a), off, v)
		})
		return nil
	}

	return errors.Unsupported(c.fn.Name, at, op.String())
}

// compileReturn lowers an explicit return. Everything pending underneath
// the result is dead: the frame pop truncates the operand stack anyway.
func (c *funcCompiler) compileReturn(b *block) {
	if c.fn.Type.HasResult() {
		rv := c.popInput().resolver()
		c.pending = c.pending[:0]
		b.push(func(in *Interp, f *Frame) (outcome, *Trap) {
			v, trap := rv(in, f)
			if trap != nil {
				return next, trap
			}
			return outcome{act: actReturn, result: v, hasResult: true}, nil
		})
		return
	}
	c.pending = c.pending[:0]
	b.push(func(*Interp, *Frame) (outcome, *Trap) {
		return outcome{act: actReturn}, nil
	})
}

// compileCall selects the dispatch kind at compile time from the unified
// index space: host function, async host function, or module function,
// each with or without frame reuse.
func (c *funcCompiler) compileCall(b *block, idx uint32, tail bool, at int) error {
	if idx < c.numHosts {
		h, _ := c.state.Host(idx)
		c.compileHostCall(b, h, tail)
		return nil
	}
	fi := int(idx - c.numHosts)
	if fi >= len(c.mod.funcs) {
		return c.malformed(at, "call target %d out of range", idx)
	}
	target := c.mod.funcs[fi]
	args := c.takeArgs(len(target.Type.Params))
	c.flush(b)
	act := actInvoke
	if tail {
		act = actTailInvoke
	}
	if len(args) == 0 {
		b.push(func(*Interp, *Frame) (outcome, *Trap) {
			return outcome{act: act, fn: target}, nil
		})
		return nil
	}
	b.push(func(in *Interp, f *Frame) (outcome, *Trap) {
		vals, trap := resolveArgs(in, f, args)
		if trap != nil {
			return next, trap
		}
		for _, v := range vals {
			if trap := in.store.Stack.Push(v); trap != nil {
				return next, trap
			}
		}
		return outcome{act: act, fn: target}, nil
	})
	return nil
}

// compileHostCall emits an inline host-call unit. A tail host call is the
// call unit followed by a return of its result.
func (c *funcCompiler) compileHostCall(b *block, h *HostFunc, tail bool) {
	args := c.takeArgs(len(h.Type.Params))
	c.flush(b)
	hasRes := h.Type.HasResult()
	if h.IsAsync() {
		b.push(asyncCallUnit(h, args, hasRes))
	} else {
		b.push(hostCallUnit(h, args, hasRes))
	}
	if tail {
		if hasRes {
			b.push(func(in *Interp, _ *Frame) (outcome, *Trap) {
				v, trap := in.store.Stack.Pop()
				if trap != nil {
					return next, trap
				}
				return outcome{act: actReturn, result: v, hasResult: true}, nil
			})
		} else {
			b.push(func(*Interp, *Frame) (outcome, *Trap) {
				return outcome{act: actReturn}, nil
			})
		}
	}
}

// takeArgs consumes n call operands from pending, rightmost first.
func (c *funcCompiler) takeArgs(n int) []opFunc {
	args := make([]opFunc, n)
	for i := n - 1; i >= 0; i-- {
		args[i] = c.popInput().resolver()
	}
	return args
}

// resolveArgs evaluates captured call operands right to left (stack pops
// must come off in reverse push order) into argument order.
func resolveArgs(in *Interp, f *Frame, args []opFunc) ([]StackValue, *Trap) {
	vals := make([]StackValue, len(args))
	for i := len(args) - 1; i >= 0; i-- {
		v, trap := args[i](in, f)
		if trap != nil {
			return nil, trap
		}
		vals[i] = v
	}
	return vals, nil
}

func hostCallUnit(h *HostFunc, args []opFunc, hasRes bool) execFunc {
	return func(in *Interp, f *Frame) (outcome, *Trap) {
		vals, trap := resolveArgs(in, f, args)
		if trap != nil {
			return next, trap
		}
		s := in.store
		s.inHost = true
		v, err := h.call(in.ctx, s, vals)
		s.inHost = false
		if err != nil {
			return next, hostTrap(err)
		}
		if hasRes {
			return next, s.Stack.Push(v)
		}
		return next, nil
	}
}

func asyncCallUnit(h *HostFunc, args []opFunc, hasRes bool) execFunc {
	return func(in *Interp, f *Frame) (outcome, *Trap) {
		vals, trap := resolveArgs(in, f, args)
		if trap != nil {
			return next, trap
		}
		s := in.store
		s.inHost = true
		res, err := h.callAsync(in.ctx, s, vals)
		s.inHost = false
		if err != nil {
			return next, hostTrap(err)
		}
		if res.Pending {
			s.pending = h
			return outcome{act: actYield}, nil
		}
		if hasRes {
			return next, s.Stack.Push(res.Value)
		}
		return next, nil
	}
}

// compileDrop discards the top operand. A captured producer may still pop
// the stack or trap, so it is evaluated for effect; plain locals and
// constants cost nothing.
func (c *funcCompiler) compileDrop(b *block) {
	if n := len(c.pending); n > 0 {
		pin := c.pending[n-1]
		c.pending = c.pending[:n-1]
		if pin.kind == inputOp {
			op := pin.op
			b.push(func(in *Interp, f *Frame) (outcome, *Trap) {
				_, trap := op(in, f)
				return next, trap
			})
		}
		return
	}
	b.push(func(in *Interp, _ *Frame) (outcome, *Trap) {
		_, trap := in.store.Stack.Pop()
		return next, trap
	})
}

func ifUnit(cond opFunc, thenB, elseB *block) execFunc {
	return func(in *Interp, f *Frame) (outcome, *Trap) {
		v, trap := cond(in, f)
		if trap != nil {
			return next, trap
		}
		if uint32(v) != 0 {
			return outcome{act: actEnter, block: thenB}, nil
		}
		if elseB != nil {
			return outcome{act: actEnter, block: elseB}, nil
		}
		return next, nil
	}
}

// mergeBinop builds one pure closure for a two-operand op, specialized on
// the compile-time operand shapes. The hot shapes in real code (a local
// against a constant, two locals) get dedicated closures; the generic
// shape resolves right to left so stack pops come off in reverse push
// order.
func mergeBinop(l, r input, fn binopFn) opFunc {
	switch {
	case l.kind == inputLocal && l.idx == 0 && r.kind == inputConst:
		cv := r.val
		return func(_ *Interp, f *Frame) (StackValue, *Trap) {
			if f.fn.numLocals == 0 {
				return 0, trapf(TrapLocalOutOfBounds, "local 0 of 0")
			}
			return fn(f.l0, cv)
		}
	case l.kind == inputLocal && r.kind == inputConst:
		idx, cv := l.idx, r.val
		return func(in *Interp, f *Frame) (StackValue, *Trap) {
			lv, trap := f.getLocal(in.store.Stack, idx)
			if trap != nil {
				return 0, trap
			}
			return fn(lv, cv)
		}
	case l.kind == inputLocal && r.kind == inputLocal:
		li, ri := l.idx, r.idx
		return func(in *Interp, f *Frame) (StackValue, *Trap) {
			rv, trap := f.getLocal(in.store.Stack, ri)
			if trap != nil {
				return 0, trap
			}
			lv, trap := f.getLocal(in.store.Stack, li)
			if trap != nil {
				return 0, trap
			}
			return fn(lv, rv)
		}
	case r.kind == inputConst:
		lres, cv := l.resolver(), r.val
		return func(in *Interp, f *Frame) (StackValue, *Trap) {
			lv, trap := lres(in, f)
			if trap != nil {
				return 0, trap
			}
			return fn(lv, cv)
		}
	default:
		lres, rres := l.resolver(), r.resolver()
		return func(in *Interp, f *Frame) (StackValue, *Trap) {
			rv, trap := rres(in, f)
			if trap != nil {
				return 0, trap
			}
			lv, trap := lres(in, f)
			if trap != nil {
				return 0, trap
			}
			return fn(lv, rv)
		}
	}
}

func mergeUnop(v input, fn unopFn) opFunc {
	if v.kind == inputConst {
		cv := v.val
		return func(*Interp, *Frame) (StackValue, *Trap) {
			return fn(cv)
		}
	}
	res := v.resolver()
	return func(in *Interp, f *Frame) (StackValue, *Trap) {
		x, trap := res(in, f)
		if trap != nil {
			return 0, trap
		}
		return fn(x)
	}
}

func mergeLoad(addr input, ld loadFn, off uint32) opFunc {
	if addr.kind == inputConst {
		a := uint32(addr.val)
		return func(in *Interp, _ *Frame) (StackValue, *Trap) {
			return ld(in.store.Memory, a, off)
		}
	}
	ares := addr.resolver()
	return func(in *Interp, f *Frame) (StackValue, *Trap) {
		a, trap := ares(in, f)
		if trap != nil {
			return 0, trap
		}
		return ld(in.store.Memory, uint32(a), off)
	}
}

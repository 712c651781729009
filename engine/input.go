package engine

// inputKind identifies where an operand's value will come from at run time.
// Inputs exist only during compilation; each is consumed (captured into a
// unit's closure) exactly once.
type inputKind uint8

const (
	// inputLocal reads a local slot when resolved.
	inputLocal inputKind = iota
	// inputConst yields a captured constant.
	inputConst
	// inputOp evaluates a previously compiled pure producer.
	inputOp
	// inputStack pops the operand stack. Introduced when pending inputs
	// are flushed around a side-effecting unit; resolution order for
	// stack inputs is strictly reverse push order, which is why merged
	// units resolve their operands right to left.
	inputStack
)

// input is a compiler-time operand descriptor.
type input struct {
	op   opFunc
	val  StackValue
	idx  uint32
	kind inputKind
}

func localInput(idx uint32) input {
	return input{kind: inputLocal, idx: idx}
}

func constInput(v StackValue) input {
	return input{kind: inputConst, val: v}
}

func opInput(op opFunc) input {
	return input{kind: inputOp, op: op}
}

func stackInput() input {
	return input{kind: inputStack}
}

// resolve materializes the operand against the live frame and store.
func (v input) resolve(in *Interp, f *Frame) (StackValue, *Trap) {
	switch v.kind {
	case inputLocal:
		return f.getLocal(in.store.Stack, v.idx)
	case inputConst:
		return v.val, nil
	case inputOp:
		return v.op(in, f)
	default:
		return in.store.Stack.Pop()
	}
}

// resolver pre-binds an input to an opFunc so specialized units can hold a
// uniform callable without re-switching on kind per evaluation.
func (v input) resolver() opFunc {
	switch v.kind {
	case inputLocal:
		idx := v.idx
		if idx == 0 {
			return func(_ *Interp, f *Frame) (StackValue, *Trap) {
				if f.fn.numLocals == 0 {
					return 0, trapf(TrapLocalOutOfBounds, "local 0 of 0")
				}
				return f.l0, nil
			}
		}
		return func(in *Interp, f *Frame) (StackValue, *Trap) {
			return f.getLocal(in.store.Stack, idx)
		}
	case inputConst:
		c := v.val
		return func(*Interp, *Frame) (StackValue, *Trap) {
			return c, nil
		}
	case inputOp:
		return v.op
	default:
		return func(in *Interp, _ *Frame) (StackValue, *Trap) {
			return in.store.Stack.Pop()
		}
	}
}

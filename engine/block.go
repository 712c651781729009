package engine

// blockKind distinguishes how a block reacts to a branch reaching it:
// loops restart, everything else exits. The compiler resolves this per
// block; the driver never inspects opcodes.
type blockKind uint8

const (
	blockPlain blockKind = iota
	blockLoop
	blockIf
	blockElse
)

// action is the structured control outcome of one compiled unit. There is
// no instruction pointer at run time; all control transfer is expressed as
// these values threaded through the driver loop.
type action uint8

const (
	// actNext: the unit completed its effect; continue with the next unit.
	actNext action = iota
	// actEnter: descend into a nested block (block/loop body, chosen if arm).
	actEnter
	// actBranch: structured branch to the enclosing block depth levels up.
	actBranch
	// actReturn: unwind to the enclosing function invocation.
	actReturn
	// actInvoke: push a call frame for fn and execute it.
	actInvoke
	// actTailInvoke: reuse the current frame for fn.
	actTailInvoke
	// actYield: an asynchronous host call is pending; suspend at this unit
	// boundary. The unit has already run; resume continues after it.
	actYield
)

// outcome carries an action plus its payload.
type outcome struct {
	block     *block
	fn        *Function
	result    StackValue
	depth     uint32
	act       action
	hasResult bool
}

var next = outcome{act: actNext}

// execFunc is one compiled unit: a single opcode or a merged run of
// opcodes, fully specialized over its captured operands. Units are atomic
// with respect to suspension.
type execFunc func(in *Interp, f *Frame) (outcome, *Trap)

// opFunc is a pure value producer consumed by another unit. It never
// alters control flow; it exists only inside the closure tree of the unit
// that captured it.
type opFunc func(in *Interp, f *Frame) (StackValue, *Trap)

// block is a compiled structured control-flow region: an ordered unit
// sequence plus a kind. Immutable once built, referenced (never copied)
// during execution, shared by all Stores running the same function.
type block struct {
	units []execFunc
	kind  blockKind
	depth uint32
}

func newBlock(kind blockKind, depth uint32) *block {
	return &block{kind: kind, depth: depth}
}

func (b *block) push(u execFunc) {
	b.units = append(b.units, u)
}

// cursor is a resume point inside a block: the next unit index to execute.
type cursor struct {
	b   *block
	idx int
}

// Frame is one active invocation: function identity, resume point within
// its block tree, and the base of its local slots on the operand stack.
// The frame list in the Store is the explicit representation of "where
// execution currently is"; a suspended Store resumes from it exactly.
type Frame struct {
	fn      *Function
	cursors []cursor
	base    int
	// l0 caches local slot 0, by far the hottest local in compiled code.
	// The stack slot at base is stale while the frame is live.
	l0 StackValue
}

func (f *Frame) getLocal(st *Stack, idx uint32) (StackValue, *Trap) {
	if int(idx) >= f.fn.numLocals {
		return 0, trapf(TrapLocalOutOfBounds, "local %d of %d", idx, f.fn.numLocals)
	}
	if idx == 0 {
		return f.l0, nil
	}
	return st.At(f.base + int(idx)), nil
}

func (f *Frame) setLocal(st *Stack, idx uint32, v StackValue) *Trap {
	if int(idx) >= f.fn.numLocals {
		return trapf(TrapLocalOutOfBounds, "local %d of %d", idx, f.fn.numLocals)
	}
	if idx == 0 {
		f.l0 = v
		return nil
	}
	st.Set(f.base+int(idx), v)
	return nil
}

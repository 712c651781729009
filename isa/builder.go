package isa

// ModuleBuilder assembles a Module in memory, for tests and embedders that
// generate programs directly instead of decoding them. The builder does
// not validate; it hands the compiler exactly what it was given.
type ModuleBuilder struct {
	mod Module
}

// NewModuleBuilder creates an empty module builder.
func NewModuleBuilder() *ModuleBuilder {
	return &ModuleBuilder{}
}

// Memory declares the linear memory limits in pages. A max of zero means
// no declared maximum.
func (b *ModuleBuilder) Memory(minPages, maxPages uint32) *ModuleBuilder {
	b.mod.MemoryMin = minPages
	b.mod.MemoryMax = maxPages
	return b
}

// Global appends a global slot with its initial value as a raw bit pattern.
func (b *ModuleBuilder) Global(t ValType, mutable bool, init uint64) *ModuleBuilder {
	b.mod.Globals = append(b.mod.Globals, Global{Type: t, Mutable: mutable, Init: init})
	return b
}

// Export names a function (by module-local index) for embedder calls.
func (b *ModuleBuilder) Export(name string, funcIdx uint32) *ModuleBuilder {
	b.mod.Exports = append(b.mod.Exports, Export{Name: name, FuncIdx: funcIdx})
	return b
}

// Start marks the function run during instantiation.
func (b *ModuleBuilder) Start(funcIdx uint32) *ModuleBuilder {
	idx := funcIdx
	b.mod.Start = &idx
	return b
}

// Func opens a new function body. Close it with End.
func (b *ModuleBuilder) Func(name string, sig FuncType) *FuncBuilder {
	b.mod.Funcs = append(b.mod.Funcs, Function{Name: name, Type: sig})
	return &FuncBuilder{mod: b, idx: len(b.mod.Funcs) - 1}
}

// Build returns the assembled module.
func (b *ModuleBuilder) Build() *Module {
	m := b.mod
	return &m
}

// FuncBuilder assembles one function body instruction by instruction.
type FuncBuilder struct {
	mod  *ModuleBuilder
	body FuncBody
	idx  int
}

// Locals declares extra local slots beyond the parameters.
func (f *FuncBuilder) Locals(types ...ValType) *FuncBuilder {
	f.body.Locals = append(f.body.Locals, types...)
	return f
}

func (f *FuncBuilder) emit(op Opcode, imm any) *FuncBuilder {
	f.body.Code = append(f.body.Code, Instruction{Opcode: op, Imm: imm})
	return f
}

// Op emits any opcode without an immediate; the named emitters below cover
// the common ones.
func (f *FuncBuilder) Op(op Opcode) *FuncBuilder { return f.emit(op, nil) }

// End closes the function body and returns to the module builder.
func (f *FuncBuilder) End() *ModuleBuilder {
	f.emit(OpEnd, nil)
	f.mod.mod.Funcs[f.idx].Body = f.body
	return f.mod
}

// Control flow.

func (f *FuncBuilder) Nop() *FuncBuilder         { return f.emit(OpNop, nil) }
func (f *FuncBuilder) Unreachable() *FuncBuilder { return f.emit(OpUnreachable, nil) }

// Block opens a plain block; close it with EndBlock.
func (f *FuncBuilder) Block() *FuncBuilder { return f.emit(OpBlock, BlockImm{}) }

// BlockT opens a plain block producing a value of type t.
func (f *FuncBuilder) BlockT(t ValType) *FuncBuilder {
	return f.emit(OpBlock, BlockImm{Type: &t})
}

// Loop opens a loop block; a branch to it restarts the body.
func (f *FuncBuilder) Loop() *FuncBuilder { return f.emit(OpLoop, BlockImm{}) }

// If opens a conditional; optionally followed by Else, closed with EndBlock.
func (f *FuncBuilder) If() *FuncBuilder { return f.emit(OpIf, BlockImm{}) }

// IfT opens a conditional producing a value of type t.
func (f *FuncBuilder) IfT(t ValType) *FuncBuilder {
	return f.emit(OpIf, BlockImm{Type: &t})
}

func (f *FuncBuilder) Else() *FuncBuilder { return f.emit(OpElse, nil) }

// EndBlock closes the innermost open block, loop or if.
func (f *FuncBuilder) EndBlock() *FuncBuilder { return f.emit(OpEnd, nil) }

func (f *FuncBuilder) Br(depth uint32) *FuncBuilder {
	return f.emit(OpBr, BranchImm{Depth: depth})
}

func (f *FuncBuilder) BrIf(depth uint32) *FuncBuilder {
	return f.emit(OpBrIf, BranchImm{Depth: depth})
}

func (f *FuncBuilder) BrTable(depths []uint32, def uint32) *FuncBuilder {
	return f.emit(OpBrTable, BrTableImm{Depths: depths, Default: def})
}

func (f *FuncBuilder) Return() *FuncBuilder { return f.emit(OpReturn, nil) }

// Call emits a call by unified index: registered host functions first,
// then module functions.
func (f *FuncBuilder) Call(funcIdx uint32) *FuncBuilder {
	return f.emit(OpCall, CallImm{FuncIdx: funcIdx})
}

// ReturnCall emits a tail call; the caller's frame is reused.
func (f *FuncBuilder) ReturnCall(funcIdx uint32) *FuncBuilder {
	return f.emit(OpReturnCall, CallImm{FuncIdx: funcIdx})
}

// Parametric.

func (f *FuncBuilder) Drop() *FuncBuilder   { return f.emit(OpDrop, nil) }
func (f *FuncBuilder) Select() *FuncBuilder { return f.emit(OpSelect, nil) }

// Variables.

func (f *FuncBuilder) LocalGet(idx uint32) *FuncBuilder {
	return f.emit(OpLocalGet, LocalImm{LocalIdx: idx})
}

func (f *FuncBuilder) LocalSet(idx uint32) *FuncBuilder {
	return f.emit(OpLocalSet, LocalImm{LocalIdx: idx})
}

func (f *FuncBuilder) LocalTee(idx uint32) *FuncBuilder {
	return f.emit(OpLocalTee, LocalImm{LocalIdx: idx})
}

func (f *FuncBuilder) GlobalGet(idx uint32) *FuncBuilder {
	return f.emit(OpGlobalGet, GlobalImm{GlobalIdx: idx})
}

func (f *FuncBuilder) GlobalSet(idx uint32) *FuncBuilder {
	return f.emit(OpGlobalSet, GlobalImm{GlobalIdx: idx})
}

// Constants.

func (f *FuncBuilder) I32Const(v int32) *FuncBuilder { return f.emit(OpI32Const, I32Imm{Value: v}) }
func (f *FuncBuilder) I64Const(v int64) *FuncBuilder { return f.emit(OpI64Const, I64Imm{Value: v}) }
func (f *FuncBuilder) F32Const(v float32) *FuncBuilder {
	return f.emit(OpF32Const, F32Imm{Value: v})
}
func (f *FuncBuilder) F64Const(v float64) *FuncBuilder {
	return f.emit(OpF64Const, F64Imm{Value: v})
}

// Memory. Load and Store take the access opcode explicitly; the offset is
// the static immediate added to the dynamic address.

func (f *FuncBuilder) Load(op Opcode, offset uint32) *FuncBuilder {
	return f.emit(op, MemoryImm{Offset: offset})
}

func (f *FuncBuilder) Store(op Opcode, offset uint32) *FuncBuilder {
	return f.emit(op, MemoryImm{Offset: offset})
}

func (f *FuncBuilder) MemorySize() *FuncBuilder { return f.emit(OpMemorySize, nil) }
func (f *FuncBuilder) MemoryGrow() *FuncBuilder { return f.emit(OpMemoryGrow, nil) }

// Frequent numeric ops get named emitters; everything else goes through Op.

func (f *FuncBuilder) I32Add() *FuncBuilder  { return f.emit(OpI32Add, nil) }
func (f *FuncBuilder) I32Sub() *FuncBuilder  { return f.emit(OpI32Sub, nil) }
func (f *FuncBuilder) I32Mul() *FuncBuilder  { return f.emit(OpI32Mul, nil) }
func (f *FuncBuilder) I32DivS() *FuncBuilder { return f.emit(OpI32DivS, nil) }
func (f *FuncBuilder) I32DivU() *FuncBuilder { return f.emit(OpI32DivU, nil) }
func (f *FuncBuilder) I32Eqz() *FuncBuilder  { return f.emit(OpI32Eqz, nil) }
func (f *FuncBuilder) I32Eq() *FuncBuilder   { return f.emit(OpI32Eq, nil) }
func (f *FuncBuilder) I32Ne() *FuncBuilder   { return f.emit(OpI32Ne, nil) }
func (f *FuncBuilder) I32LtS() *FuncBuilder  { return f.emit(OpI32LtS, nil) }
func (f *FuncBuilder) I32LtU() *FuncBuilder  { return f.emit(OpI32LtU, nil) }
func (f *FuncBuilder) I32GtS() *FuncBuilder  { return f.emit(OpI32GtS, nil) }
func (f *FuncBuilder) I32LeS() *FuncBuilder  { return f.emit(OpI32LeS, nil) }
func (f *FuncBuilder) I32GeS() *FuncBuilder  { return f.emit(OpI32GeS, nil) }

func (f *FuncBuilder) I64Add() *FuncBuilder { return f.emit(OpI64Add, nil) }
func (f *FuncBuilder) I64Sub() *FuncBuilder { return f.emit(OpI64Sub, nil) }
func (f *FuncBuilder) I64Mul() *FuncBuilder { return f.emit(OpI64Mul, nil) }
func (f *FuncBuilder) I64Eqz() *FuncBuilder { return f.emit(OpI64Eqz, nil) }
func (f *FuncBuilder) I64Eq() *FuncBuilder  { return f.emit(OpI64Eq, nil) }
func (f *FuncBuilder) I64LtS() *FuncBuilder { return f.emit(OpI64LtS, nil) }
func (f *FuncBuilder) I64GtS() *FuncBuilder { return f.emit(OpI64GtS, nil) }

func (f *FuncBuilder) F64Add() *FuncBuilder  { return f.emit(OpF64Add, nil) }
func (f *FuncBuilder) F64Mul() *FuncBuilder  { return f.emit(OpF64Mul, nil) }
func (f *FuncBuilder) F64Div() *FuncBuilder  { return f.emit(OpF64Div, nil) }
func (f *FuncBuilder) F64Sqrt() *FuncBuilder { return f.emit(OpF64Sqrt, nil) }

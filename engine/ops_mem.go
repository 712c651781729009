package engine

import "github.com/Neopallium/s1vm/isa"

// loadFn reads one value from linear memory at addr+offset, widening or
// sign-extending to the stack representation.
type loadFn func(m *Memory, addr, offset uint32) (StackValue, *Trap)

// storeFn writes one value to linear memory at addr+offset, narrowing to
// the access width.
type storeFn func(m *Memory, addr, offset uint32, v StackValue) *Trap

var loadOps = map[isa.Opcode]loadFn{
	isa.OpI32Load: func(m *Memory, a, o uint32) (StackValue, *Trap) {
		v, trap := m.ReadU32(a, o)
		return fromU32(v), trap
	},
	isa.OpI64Load: func(m *Memory, a, o uint32) (StackValue, *Trap) {
		v, trap := m.ReadU64(a, o)
		return fromU64(v), trap
	},
	isa.OpF32Load: func(m *Memory, a, o uint32) (StackValue, *Trap) {
		v, trap := m.ReadU32(a, o)
		return fromU32(v), trap
	},
	isa.OpF64Load: func(m *Memory, a, o uint32) (StackValue, *Trap) {
		v, trap := m.ReadU64(a, o)
		return fromU64(v), trap
	},
	isa.OpI32Load8S: func(m *Memory, a, o uint32) (StackValue, *Trap) {
		v, trap := m.ReadU8(a, o)
		return fromI32(int32(int8(v))), trap
	},
	isa.OpI32Load8U: func(m *Memory, a, o uint32) (StackValue, *Trap) {
		v, trap := m.ReadU8(a, o)
		return fromU32(uint32(v)), trap
	},
	isa.OpI32Load16S: func(m *Memory, a, o uint32) (StackValue, *Trap) {
		v, trap := m.ReadU16(a, o)
		return fromI32(int32(int16(v))), trap
	},
	isa.OpI32Load16U: func(m *Memory, a, o uint32) (StackValue, *Trap) {
		v, trap := m.ReadU16(a, o)
		return fromU32(uint32(v)), trap
	},
	isa.OpI64Load8S: func(m *Memory, a, o uint32) (StackValue, *Trap) {
		v, trap := m.ReadU8(a, o)
		return fromI64(int64(int8(v))), trap
	},
	isa.OpI64Load8U: func(m *Memory, a, o uint32) (StackValue, *Trap) {
		v, trap := m.ReadU8(a, o)
		return fromU64(uint64(v)), trap
	},
	isa.OpI64Load16S: func(m *Memory, a, o uint32) (StackValue, *Trap) {
		v, trap := m.ReadU16(a, o)
		return fromI64(int64(int16(v))), trap
	},
	isa.OpI64Load16U: func(m *Memory, a, o uint32) (StackValue, *Trap) {
		v, trap := m.ReadU16(a, o)
		return fromU64(uint64(v)), trap
	},
	isa.OpI64Load32S: func(m *Memory, a, o uint32) (StackValue, *Trap) {
		v, trap := m.ReadU32(a, o)
		return fromI64(int64(int32(v))), trap
	},
	isa.OpI64Load32U: func(m *Memory, a, o uint32) (StackValue, *Trap) {
		v, trap := m.ReadU32(a, o)
		return fromU64(uint64(v)), trap
	},
}

var storeOps = map[isa.Opcode]storeFn{
	isa.OpI32Store: func(m *Memory, a, o uint32, v StackValue) *Trap {
		return m.WriteU32(a, o, asU32(v))
	},
	isa.OpI64Store: func(m *Memory, a, o uint32, v StackValue) *Trap {
		return m.WriteU64(a, o, asU64(v))
	},
	isa.OpF32Store: func(m *Memory, a, o uint32, v StackValue) *Trap {
		return m.WriteU32(a, o, asU32(v))
	},
	isa.OpF64Store: func(m *Memory, a, o uint32, v StackValue) *Trap {
		return m.WriteU64(a, o, asU64(v))
	},
	isa.OpI32Store8: func(m *Memory, a, o uint32, v StackValue) *Trap {
		return m.WriteU8(a, o, byte(v))
	},
	isa.OpI32Store16: func(m *Memory, a, o uint32, v StackValue) *Trap {
		return m.WriteU16(a, o, uint16(v))
	},
	isa.OpI64Store8: func(m *Memory, a, o uint32, v StackValue) *Trap {
		return m.WriteU8(a, o, byte(v))
	},
	isa.OpI64Store16: func(m *Memory, a, o uint32, v StackValue) *Trap {
		return m.WriteU16(a, o, uint16(v))
	},
	isa.OpI64Store32: func(m *Memory, a, o uint32, v StackValue) *Trap {
		return m.WriteU32(a, o, uint32(v))
	},
}

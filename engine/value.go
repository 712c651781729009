package engine

import (
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/Neopallium/s1vm/isa"
)

// StackValue is a raw 64-bit value as it lives on the operand stack.
// Integers are stored directly (i32 zero-extended), floats as their IEEE 754
// bit pattern. The type tag is tracked statically by the compiler, not at
// run time.
type StackValue uint64

// Value is a tagged value crossing the embedding boundary.
type Value struct {
	Bits uint64
	Type isa.ValType
}

// I32Val builds an i32 value.
func I32Val(v int32) Value {
	return Value{Type: isa.I32, Bits: api.EncodeI32(v)}
}

// I64Val builds an i64 value.
func I64Val(v int64) Value {
	return Value{Type: isa.I64, Bits: api.EncodeI64(v)}
}

// F32Val builds an f32 value.
func F32Val(v float32) Value {
	return Value{Type: isa.F32, Bits: api.EncodeF32(v)}
}

// F64Val builds an f64 value.
func F64Val(v float64) Value {
	return Value{Type: isa.F64, Bits: api.EncodeF64(v)}
}

// I32 returns the value as int32.
func (v Value) I32() int32 { return api.DecodeI32(v.Bits) }

// U32 returns the value as uint32.
func (v Value) U32() uint32 { return api.DecodeU32(v.Bits) }

// I64 returns the value as int64.
func (v Value) I64() int64 { return int64(v.Bits) }

// F32 returns the value as float32.
func (v Value) F32() float32 { return api.DecodeF32(v.Bits) }

// F64 returns the value as float64.
func (v Value) F64() float64 { return api.DecodeF64(v.Bits) }

// Stack returns the raw stack representation.
func (v Value) Stack() StackValue { return StackValue(v.Bits) }

// String formats the value with its type.
func (v Value) String() string {
	switch v.Type {
	case isa.I32:
		return fmt.Sprintf("i32:%d", v.I32())
	case isa.I64:
		return fmt.Sprintf("i64:%d", v.I64())
	case isa.F32:
		return fmt.Sprintf("f32:%g", v.F32())
	case isa.F64:
		return fmt.Sprintf("f64:%g", v.F64())
	default:
		return fmt.Sprintf("%s:0x%x", v.Type, v.Bits)
	}
}

// TypedValue tags a raw stack value with a static type, used when returning
// results across the embedding boundary.
func TypedValue(t isa.ValType, raw StackValue) Value {
	return Value{Type: t, Bits: uint64(raw)}
}

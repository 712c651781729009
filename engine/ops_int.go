package engine

import (
	"math/bits"

	"github.com/Neopallium/s1vm/isa"
)

// binopFn/unopFn are the scalar kernels captured inside merged units. They
// operate on raw bit patterns; the compiler knows the static types.
type binopFn func(l, r StackValue) (StackValue, *Trap)

type unopFn func(v StackValue) (StackValue, *Trap)

// Raw bit-pattern converters. i32 values are stored zero-extended.

func asI32(v StackValue) int32  { return int32(uint32(v)) }
func asU32(v StackValue) uint32 { return uint32(v) }
func asI64(v StackValue) int64  { return int64(v) }
func asU64(v StackValue) uint64 { return uint64(v) }

func fromI32(v int32) StackValue  { return StackValue(uint32(v)) }
func fromU32(v uint32) StackValue { return StackValue(v) }
func fromI64(v int64) StackValue  { return StackValue(uint64(v)) }
func fromU64(v uint64) StackValue { return StackValue(v) }

func fromBool(b bool) StackValue {
	if b {
		return 1
	}
	return 0
}

// Combinators lifting typed operators to bit-pattern kernels.

func b32(f func(a, b int32) int32) binopFn {
	return func(l, r StackValue) (StackValue, *Trap) {
		return fromI32(f(asI32(l), asI32(r))), nil
	}
}

func b32u(f func(a, b uint32) uint32) binopFn {
	return func(l, r StackValue) (StackValue, *Trap) {
		return fromU32(f(asU32(l), asU32(r))), nil
	}
}

func c32(f func(a, b int32) bool) binopFn {
	return func(l, r StackValue) (StackValue, *Trap) {
		return fromBool(f(asI32(l), asI32(r))), nil
	}
}

func c32u(f func(a, b uint32) bool) binopFn {
	return func(l, r StackValue) (StackValue, *Trap) {
		return fromBool(f(asU32(l), asU32(r))), nil
	}
}

func b64(f func(a, b int64) int64) binopFn {
	return func(l, r StackValue) (StackValue, *Trap) {
		return fromI64(f(asI64(l), asI64(r))), nil
	}
}

func b64u(f func(a, b uint64) uint64) binopFn {
	return func(l, r StackValue) (StackValue, *Trap) {
		return fromU64(f(asU64(l), asU64(r))), nil
	}
}

func c64(f func(a, b int64) bool) binopFn {
	return func(l, r StackValue) (StackValue, *Trap) {
		return fromBool(f(asI64(l), asI64(r))), nil
	}
}

func c64u(f func(a, b uint64) bool) binopFn {
	return func(l, r StackValue) (StackValue, *Trap) {
		return fromBool(f(asU64(l), asU64(r))), nil
	}
}

// Trapping division kernels. Signed division of MinInt by -1 overflows the
// result type and traps per wasm semantics; signed remainder of the same
// pair is 0.

func divS32(l, r StackValue) (StackValue, *Trap) {
	a, b := asI32(l), asI32(r)
	if b == 0 {
		return 0, newTrap(TrapDivisionByZero)
	}
	if a == -1<<31 && b == -1 {
		return 0, newTrap(TrapIntegerOverflow)
	}
	return fromI32(a / b), nil
}

func divU32(l, r StackValue) (StackValue, *Trap) {
	a, b := asU32(l), asU32(r)
	if b == 0 {
		return 0, newTrap(TrapDivisionByZero)
	}
	return fromU32(a / b), nil
}

func remS32(l, r StackValue) (StackValue, *Trap) {
	a, b := asI32(l), asI32(r)
	if b == 0 {
		return 0, newTrap(TrapDivisionByZero)
	}
	if a == -1<<31 && b == -1 {
		return fromI32(0), nil
	}
	return fromI32(a % b), nil
}

func remU32(l, r StackValue) (StackValue, *Trap) {
	a, b := asU32(l), asU32(r)
	if b == 0 {
		return 0, newTrap(TrapDivisionByZero)
	}
	return fromU32(a % b), nil
}

func divS64(l, r StackValue) (StackValue, *Trap) {
	a, b := asI64(l), asI64(r)
	if b == 0 {
		return 0, newTrap(TrapDivisionByZero)
	}
	if a == -1<<63 && b == -1 {
		return 0, newTrap(TrapIntegerOverflow)
	}
	return fromI64(a / b), nil
}

func divU64(l, r StackValue) (StackValue, *Trap) {
	a, b := asU64(l), asU64(r)
	if b == 0 {
		return 0, newTrap(TrapDivisionByZero)
	}
	return fromU64(a / b), nil
}

func remS64(l, r StackValue) (StackValue, *Trap) {
	a, b := asI64(l), asI64(r)
	if b == 0 {
		return 0, newTrap(TrapDivisionByZero)
	}
	if a == -1<<63 && b == -1 {
		return fromI64(0), nil
	}
	return fromI64(a % b), nil
}

func remU64(l, r StackValue) (StackValue, *Trap) {
	a, b := asU64(l), asU64(r)
	if b == 0 {
		return 0, newTrap(TrapDivisionByZero)
	}
	return fromU64(a % b), nil
}

// intBinOps maps two-operand integer opcodes to their kernels. Arithmetic
// wraps; shift counts are masked to the operand width.
var intBinOps = map[isa.Opcode]binopFn{
	isa.OpI32Add:  b32(func(a, b int32) int32 { return a + b }),
	isa.OpI32Sub:  b32(func(a, b int32) int32 { return a - b }),
	isa.OpI32Mul:  b32(func(a, b int32) int32 { return a * b }),
	isa.OpI32DivS: divS32,
	isa.OpI32DivU: divU32,
	isa.OpI32RemS: remS32,
	isa.OpI32RemU: remU32,
	isa.OpI32And:  b32(func(a, b int32) int32 { return a & b }),
	isa.OpI32Or:   b32(func(a, b int32) int32 { return a | b }),
	isa.OpI32Xor:  b32(func(a, b int32) int32 { return a ^ b }),
	isa.OpI32Shl:  b32u(func(a, b uint32) uint32 { return a << (b & 31) }),
	isa.OpI32ShrS: b32(func(a, b int32) int32 { return a >> (uint32(b) & 31) }),
	isa.OpI32ShrU: b32u(func(a, b uint32) uint32 { return a >> (b & 31) }),
	isa.OpI32Rotl: b32u(func(a, b uint32) uint32 { return bits.RotateLeft32(a, int(b&31)) }),
	isa.OpI32Rotr: b32u(func(a, b uint32) uint32 { return bits.RotateLeft32(a, -int(b&31)) }),

	isa.OpI32Eq:  c32(func(a, b int32) bool { return a == b }),
	isa.OpI32Ne:  c32(func(a, b int32) bool { return a != b }),
	isa.OpI32LtS: c32(func(a, b int32) bool { return a < b }),
	isa.OpI32LtU: c32u(func(a, b uint32) bool { return a < b }),
	isa.OpI32GtS: c32(func(a, b int32) bool { return a > b }),
	isa.OpI32GtU: c32u(func(a, b uint32) bool { return a > b }),
	isa.OpI32LeS: c32(func(a, b int32) bool { return a <= b }),
	isa.OpI32LeU: c32u(func(a, b uint32) bool { return a <= b }),
	isa.OpI32GeS: c32(func(a, b int32) bool { return a >= b }),
	isa.OpI32GeU: c32u(func(a, b uint32) bool { return a >= b }),

	isa.OpI64Add:  b64(func(a, b int64) int64 { return a + b }),
	isa.OpI64Sub:  b64(func(a, b int64) int64 { return a - b }),
	isa.OpI64Mul:  b64(func(a, b int64) int64 { return a * b }),
	isa.OpI64DivS: divS64,
	isa.OpI64DivU: divU64,
	isa.OpI64RemS: remS64,
	isa.OpI64RemU: remU64,
	isa.OpI64And:  b64(func(a, b int64) int64 { return a & b }),
	isa.OpI64Or:   b64(func(a, b int64) int64 { return a | b }),
	isa.OpI64Xor:  b64(func(a, b int64) int64 { return a ^ b }),
	isa.OpI64Shl:  b64u(func(a, b uint64) uint64 { return a << (b & 63) }),
	isa.OpI64ShrS: b64(func(a, b int64) int64 { return a >> (uint64(b) & 63) }),
	isa.OpI64ShrU: b64u(func(a, b uint64) uint64 { return a >> (b & 63) }),
	isa.OpI64Rotl: b64u(func(a, b uint64) uint64 { return bits.RotateLeft64(a, int(b&63)) }),
	isa.OpI64Rotr: b64u(func(a, b uint64) uint64 { return bits.RotateLeft64(a, -int(b&63)) }),

	isa.OpI64Eq:  c64(func(a, b int64) bool { return a == b }),
	isa.OpI64Ne:  c64(func(a, b int64) bool { return a != b }),
	isa.OpI64LtS: c64(func(a, b int64) bool { return a < b }),
	isa.OpI64LtU: c64u(func(a, b uint64) bool { return a < b }),
	isa.OpI64GtS: c64(func(a, b int64) bool { return a > b }),
	isa.OpI64GtU: c64u(func(a, b uint64) bool { return a > b }),
	isa.OpI64LeS: c64(func(a, b int64) bool { return a <= b }),
	isa.OpI64LeU: c64u(func(a, b uint64) bool { return a <= b }),
	isa.OpI64GeS: c64(func(a, b int64) bool { return a >= b }),
	isa.OpI64GeU: c64u(func(a, b uint64) bool { return a >= b }),
}

// intUnOps maps one-operand integer opcodes to their kernels.
var intUnOps = map[isa.Opcode]unopFn{
	isa.OpI32Eqz: func(v StackValue) (StackValue, *Trap) { return fromBool(asU32(v) == 0), nil },
	isa.OpI64Eqz: func(v StackValue) (StackValue, *Trap) { return fromBool(asU64(v) == 0), nil },

	isa.OpI32Clz:    func(v StackValue) (StackValue, *Trap) { return fromU32(uint32(bits.LeadingZeros32(asU32(v)))), nil },
	isa.OpI32Ctz:    func(v StackValue) (StackValue, *Trap) { return fromU32(uint32(bits.TrailingZeros32(asU32(v)))), nil },
	isa.OpI32Popcnt: func(v StackValue) (StackValue, *Trap) { return fromU32(uint32(bits.OnesCount32(asU32(v)))), nil },
	isa.OpI64Clz:    func(v StackValue) (StackValue, *Trap) { return fromU64(uint64(bits.LeadingZeros64(asU64(v)))), nil },
	isa.OpI64Ctz:    func(v StackValue) (StackValue, *Trap) { return fromU64(uint64(bits.TrailingZeros64(asU64(v)))), nil },
	isa.OpI64Popcnt: func(v StackValue) (StackValue, *Trap) { return fromU64(uint64(bits.OnesCount64(asU64(v)))), nil },

	isa.OpI32WrapI64:    func(v StackValue) (StackValue, *Trap) { return fromU32(uint32(asU64(v))), nil },
	isa.OpI64ExtendI32S: func(v StackValue) (StackValue, *Trap) { return fromI64(int64(asI32(v))), nil },
	isa.OpI64ExtendI32U: func(v StackValue) (StackValue, *Trap) { return fromU64(uint64(asU32(v))), nil },
}

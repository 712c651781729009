package engine

import (
	"math"

	"github.com/Neopallium/s1vm/isa"
)

func asF32(v StackValue) float32  { return math.Float32frombits(uint32(v)) }
func asF64(v StackValue) float64  { return math.Float64frombits(uint64(v)) }
func fromF32(x float32) StackValue { return StackValue(math.Float32bits(x)) }
func fromF64(x float64) StackValue { return StackValue(math.Float64bits(x)) }

func bf32(f func(a, b float32) float32) binopFn {
	return func(l, r StackValue) (StackValue, *Trap) {
		return fromF32(f(asF32(l), asF32(r))), nil
	}
}

func cf32(f func(a, b float32) bool) binopFn {
	return func(l, r StackValue) (StackValue, *Trap) {
		return fromBool(f(asF32(l), asF32(r))), nil
	}
}

func bf64(f func(a, b float64) float64) binopFn {
	return func(l, r StackValue) (StackValue, *Trap) {
		return fromF64(f(asF64(l), asF64(r))), nil
	}
}

func cf64(f func(a, b float64) bool) binopFn {
	return func(l, r StackValue) (StackValue, *Trap) {
		return fromBool(f(asF64(l), asF64(r))), nil
	}
}

func uf32(f func(x float64) float64) unopFn {
	return func(v StackValue) (StackValue, *Trap) {
		return fromF32(float32(f(float64(asF32(v))))), nil
	}
}

func uf64(f func(x float64) float64) unopFn {
	return func(v StackValue) (StackValue, *Trap) {
		return fromF64(f(asF64(v))), nil
	}
}

// floatBinOps maps two-operand float opcodes to their kernels. Min/Max
// propagate NaN.
var floatBinOps = map[isa.Opcode]binopFn{
	isa.OpF32Add:      bf32(func(a, b float32) float32 { return a + b }),
	isa.OpF32Sub:      bf32(func(a, b float32) float32 { return a - b }),
	isa.OpF32Mul:      bf32(func(a, b float32) float32 { return a * b }),
	isa.OpF32Div:      bf32(func(a, b float32) float32 { return a / b }),
	isa.OpF32Min:      bf32(func(a, b float32) float32 { return float32(math.Min(float64(a), float64(b))) }),
	isa.OpF32Max:      bf32(func(a, b float32) float32 { return float32(math.Max(float64(a), float64(b))) }),
	isa.OpF32Copysign: bf32(func(a, b float32) float32 { return float32(math.Copysign(float64(a), float64(b))) }),

	isa.OpF32Eq: cf32(func(a, b float32) bool { return a == b }),
	isa.OpF32Ne: cf32(func(a, b float32) bool { return a != b }),
	isa.OpF32Lt: cf32(func(a, b float32) bool { return a < b }),
	isa.OpF32Gt: cf32(func(a, b float32) bool { return a > b }),
	isa.OpF32Le: cf32(func(a, b float32) bool { return a <= b }),
	isa.OpF32Ge: cf32(func(a, b float32) bool { return a >= b }),

	isa.OpF64Add:      bf64(func(a, b float64) float64 { return a + b }),
	isa.OpF64Sub:      bf64(func(a, b float64) float64 { return a - b }),
	isa.OpF64Mul:      bf64(func(a, b float64) float64 { return a * b }),
	isa.OpF64Div:      bf64(func(a, b float64) float64 { return a / b }),
	isa.OpF64Min:      bf64(math.Min),
	isa.OpF64Max:      bf64(math.Max),
	isa.OpF64Copysign: bf64(math.Copysign),

	isa.OpF64Eq: cf64(func(a, b float64) bool { return a == b }),
	isa.OpF64Ne: cf64(func(a, b float64) bool { return a != b }),
	isa.OpF64Lt: cf64(func(a, b float64) bool { return a < b }),
	isa.OpF64Gt: cf64(func(a, b float64) bool { return a > b }),
	isa.OpF64Le: cf64(func(a, b float64) bool { return a <= b }),
	isa.OpF64Ge: cf64(func(a, b float64) bool { return a >= b }),
}

// Trapping float-to-int truncations. NaN is an invalid conversion; a value
// whose truncation falls outside the target range is an integer overflow.

func truncToI32(x float64) (StackValue, *Trap) {
	if math.IsNaN(x) {
		return 0, newTrap(TrapInvalidConversion)
	}
	t := math.Trunc(x)
	if t < -2147483648 || t > 2147483647 {
		return 0, newTrap(TrapIntegerOverflow)
	}
	return fromI32(int32(t)), nil
}

func truncToU32(x float64) (StackValue, *Trap) {
	if math.IsNaN(x) {
		return 0, newTrap(TrapInvalidConversion)
	}
	t := math.Trunc(x)
	if t < 0 || t > 4294967295 {
		return 0, newTrap(TrapIntegerOverflow)
	}
	return fromU32(uint32(t)), nil
}

func truncToI64(x float64) (StackValue, *Trap) {
	if math.IsNaN(x) {
		return 0, newTrap(TrapInvalidConversion)
	}
	t := math.Trunc(x)
	if t < -9223372036854775808 || t >= 9223372036854775808 {
		return 0, newTrap(TrapIntegerOverflow)
	}
	return fromI64(int64(t)), nil
}

func truncToU64(x float64) (StackValue, *Trap) {
	if math.IsNaN(x) {
		return 0, newTrap(TrapInvalidConversion)
	}
	t := math.Trunc(x)
	if t < 0 || t >= 18446744073709551616 {
		return 0, newTrap(TrapIntegerOverflow)
	}
	return fromU64(uint64(t)), nil
}

// floatUnOps maps one-operand float opcodes, trapping truncations, and the
// int/float conversion and reinterpret opcodes to their kernels.
var floatUnOps = map[isa.Opcode]unopFn{
	isa.OpF32Abs:     uf32(math.Abs),
	isa.OpF32Neg:     func(v StackValue) (StackValue, *Trap) { return fromF32(-asF32(v)), nil },
	isa.OpF32Ceil:    uf32(math.Ceil),
	isa.OpF32Floor:   uf32(math.Floor),
	isa.OpF32Trunc:   uf32(math.Trunc),
	isa.OpF32Nearest: uf32(math.RoundToEven),
	isa.OpF32Sqrt:    uf32(math.Sqrt),

	isa.OpF64Abs:     uf64(math.Abs),
	isa.OpF64Neg:     func(v StackValue) (StackValue, *Trap) { return fromF64(-asF64(v)), nil },
	isa.OpF64Ceil:    uf64(math.Ceil),
	isa.OpF64Floor:   uf64(math.Floor),
	isa.OpF64Trunc:   uf64(math.Trunc),
	isa.OpF64Nearest: uf64(math.RoundToEven),
	isa.OpF64Sqrt:    uf64(math.Sqrt),

	isa.OpI32TruncF32S: func(v StackValue) (StackValue, *Trap) { return truncToI32(float64(asF32(v))) },
	isa.OpI32TruncF32U: func(v StackValue) (StackValue, *Trap) { return truncToU32(float64(asF32(v))) },
	isa.OpI32TruncF64S: func(v StackValue) (StackValue, *Trap) { return truncToI32(asF64(v)) },
	isa.OpI32TruncF64U: func(v StackValue) (StackValue, *Trap) { return truncToU32(asF64(v)) },
	isa.OpI64TruncF32S: func(v StackValue) (StackValue, *Trap) { return truncToI64(float64(asF32(v))) },
	isa.OpI64TruncF32U: func(v StackValue) (StackValue, *Trap) { return truncToU64(float64(asF32(v))) },
	isa.OpI64TruncF64S: func(v StackValue) (StackValue, *Trap) { return truncToI64(asF64(v)) },
	isa.OpI64TruncF64U: func(v StackValue) (StackValue, *Trap) { return truncToU64(asF64(v)) },

	isa.OpF32ConvertI32S: func(v StackValue) (StackValue, *Trap) { return fromF32(float32(asI32(v))), nil },
	isa.OpF32ConvertI32U: func(v StackValue) (StackValue, *Trap) { return fromF32(float32(asU32(v))), nil },
	isa.OpF32ConvertI64S: func(v StackValue) (StackValue, *Trap) { return fromF32(float32(asI64(v))), nil },
	isa.OpF32ConvertI64U: func(v StackValue) (StackValue, *Trap) { return fromF32(float32(asU64(v))), nil },
	isa.OpF32DemoteF64:   func(v StackValue) (StackValue, *Trap) { return fromF32(float32(asF64(v))), nil },
	isa.OpF64ConvertI32S: func(v StackValue) (StackValue, *Trap) { return fromF64(float64(asI32(v))), nil },
	isa.OpF64ConvertI32U: func(v StackValue) (StackValue, *Trap) { return fromF64(float64(asU32(v))), nil },
	isa.OpF64ConvertI64S: func(v StackValue) (StackValue, *Trap) { return fromF64(float64(asI64(v))), nil },
	isa.OpF64ConvertI64U: func(v StackValue) (StackValue, *Trap) { return fromF64(float64(asU64(v))), nil },
	isa.OpF64PromoteF32:  func(v StackValue) (StackValue, *Trap) { return fromF64(float64(asF32(v))), nil },

	// Reinterprets are identity on the stored bit pattern.
	isa.OpI32ReinterpretF32: func(v StackValue) (StackValue, *Trap) { return v, nil },
	isa.OpI64ReinterpretF64: func(v StackValue) (StackValue, *Trap) { return v, nil },
	isa.OpF32ReinterpretI32: func(v StackValue) (StackValue, *Trap) { return v, nil },
	isa.OpF64ReinterpretI64: func(v StackValue) (StackValue, *Trap) { return v, nil },
}

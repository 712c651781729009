package engine

import (
	"math"
	"testing"

	"github.com/Neopallium/s1vm/isa"
)

func evalBin(t *testing.T, op isa.Opcode, l, r StackValue) (StackValue, *Trap) {
	t.Helper()
	fn, ok := intBinOps[op]
	if !ok {
		fn, ok = floatBinOps[op]
	}
	if !ok {
		t.Fatalf("no kernel for %s", op)
	}
	return fn(l, r)
}

func evalUn(t *testing.T, op isa.Opcode, v StackValue) (StackValue, *Trap) {
	t.Helper()
	fn, ok := intUnOps[op]
	if !ok {
		fn, ok = floatUnOps[op]
	}
	if !ok {
		t.Fatalf("no kernel for %s", op)
	}
	return fn(v)
}

func TestIntegerDivision(t *testing.T) {
	tests := []struct {
		op   isa.Opcode
		l, r StackValue
		want StackValue
		trap TrapKind
		bad  bool
	}{
		{op: isa.OpI32DivS, l: fromI32(7), r: fromI32(-2), want: fromI32(-3)},
		{op: isa.OpI32DivU, l: fromI32(-1), r: fromI32(2), want: fromU32(math.MaxUint32 / 2)},
		{op: isa.OpI32RemS, l: fromI32(-7), r: fromI32(2), want: fromI32(-1)},
		{op: isa.OpI32DivS, l: fromI32(1), r: fromI32(0), trap: TrapDivisionByZero, bad: true},
		{op: isa.OpI32DivS, l: fromI32(math.MinInt32), r: fromI32(-1), trap: TrapIntegerOverflow, bad: true},
		{op: isa.OpI32RemS, l: fromI32(math.MinInt32), r: fromI32(-1), want: fromI32(0)},
		{op: isa.OpI64DivS, l: fromI64(math.MinInt64), r: fromI64(-1), trap: TrapIntegerOverflow, bad: true},
		{op: isa.OpI64RemS, l: fromI64(math.MinInt64), r: fromI64(-1), want: fromI64(0)},
		{op: isa.OpI64RemU, l: fromI64(10), r: fromI64(0), trap: TrapDivisionByZero, bad: true},
	}
	for _, tt := range tests {
		got, trap := evalBin(t, tt.op, tt.l, tt.r)
		if tt.bad {
			if trap == nil || trap.Kind != tt.trap {
				t.Fatalf("%s: trap = %v, want %v", tt.op, trap, tt.trap)
			}
			continue
		}
		if trap != nil {
			t.Fatalf("%s: unexpected trap %v", tt.op, trap)
		}
		if got != tt.want {
			t.Fatalf("%s: got %d, want %d", tt.op, got, tt.want)
		}
	}
}

func TestShiftCountsAreMasked(t *testing.T) {
	// Shift counts reduce modulo the operand width.
	got, _ := evalBin(t, isa.OpI32Shl, fromI32(1), fromI32(33))
	if got != fromI32(2) {
		t.Fatalf("i32.shl by 33 = %d, want 2", got)
	}
	got, _ = evalBin(t, isa.OpI64Shl, fromI64(1), fromI64(67))
	if got != fromI64(8) {
		t.Fatalf("i64.shl by 67 = %d, want 8", got)
	}
	got, _ = evalBin(t, isa.OpI32ShrS, fromI32(-8), fromI32(1))
	if got != fromI32(-4) {
		t.Fatalf("i32.shr_s(-8, 1) = %d, want -4", got)
	}
	got, _ = evalBin(t, isa.OpI64Rotl, fromI64(1), fromI64(64))
	if got != fromI64(1) {
		t.Fatalf("i64.rotl by 64 = %d, want 1", got)
	}
	got, _ = evalBin(t, isa.OpI32Rotr, fromU32(1), fromI32(1))
	if got != fromU32(1<<31) {
		t.Fatalf("i32.rotr(1, 1) = %#x, want %#x", uint64(got), uint64(1)<<31)
	}
}

func TestBitCounting(t *testing.T) {
	cases := []struct {
		op   isa.Opcode
		in   StackValue
		want StackValue
	}{
		{isa.OpI32Clz, fromU32(1), fromU32(31)},
		{isa.OpI32Clz, fromU32(0), fromU32(32)},
		{isa.OpI32Ctz, fromU32(8), fromU32(3)},
		{isa.OpI32Popcnt, fromU32(0xFF00FF), fromU32(16)},
		{isa.OpI64Clz, fromU64(1), fromU64(63)},
		{isa.OpI64Ctz, fromU64(0), fromU64(64)},
		{isa.OpI32Eqz, fromU32(0), fromU32(1)},
		{isa.OpI64Eqz, fromU64(3), fromU64(0)},
	}
	for _, tt := range cases {
		got, trap := evalUn(t, tt.op, tt.in)
		if trap != nil {
			t.Fatalf("%s: trap %v", tt.op, trap)
		}
		if got != tt.want {
			t.Fatalf("%s(%d) = %d, want %d", tt.op, tt.in, got, tt.want)
		}
	}
}

func TestTruncationTraps(t *testing.T) {
	nan := fromF64(math.NaN())
	if _, trap := evalUn(t, isa.OpI32TruncF64S, nan); trap == nil || trap.Kind != TrapInvalidConversion {
		t.Fatalf("trunc NaN: %v", trap)
	}
	if _, trap := evalUn(t, isa.OpI32TruncF64S, fromF64(3e9)); trap == nil || trap.Kind != TrapIntegerOverflow {
		t.Fatalf("trunc 3e9 to i32: %v", trap)
	}
	if _, trap := evalUn(t, isa.OpI32TruncF64U, fromF64(-1.5)); trap == nil || trap.Kind != TrapIntegerOverflow {
		t.Fatalf("trunc -1.5 to u32: %v", trap)
	}
	if _, trap := evalUn(t, isa.OpI64TruncF64S, fromF64(9.3e18)); trap == nil || trap.Kind != TrapIntegerOverflow {
		t.Fatalf("trunc 9.3e18 to i64: %v", trap)
	}

	got, trap := evalUn(t, isa.OpI32TruncF64S, fromF64(-3.9))
	if trap != nil || got != fromI32(-3) {
		t.Fatalf("trunc -3.9 = %d (%v), want -3", got, trap)
	}
	got, trap = evalUn(t, isa.OpI64TruncF32U, fromF32(4.75))
	if trap != nil || got != fromU64(4) {
		t.Fatalf("trunc 4.75 = %d (%v), want 4", got, trap)
	}
}

func TestFloatMinMaxNaN(t *testing.T) {
	got, _ := evalBin(t, isa.OpF64Min, fromF64(math.NaN()), fromF64(1))
	if !math.IsNaN(asF64(got)) {
		t.Fatalf("f64.min(NaN, 1) = %g, want NaN", asF64(got))
	}
	got, _ = evalBin(t, isa.OpF64Max, fromF64(-1), fromF64(2))
	if asF64(got) != 2 {
		t.Fatalf("f64.max(-1, 2) = %g", asF64(got))
	}
	got, _ = evalBin(t, isa.OpF32Copysign, fromF32(3), fromF32(-0.5))
	if asF32(got) != -3 {
		t.Fatalf("f32.copysign(3, -0.5) = %g", asF32(got))
	}
}

func TestConversionsAndReinterprets(t *testing.T) {
	got, _ := evalUn(t, isa.OpI32WrapI64, fromI64(math.MaxInt64))
	if got != fromU32(0xFFFFFFFF) {
		t.Fatalf("wrap = %#x", uint64(got))
	}
	got, _ = evalUn(t, isa.OpI64ExtendI32S, fromI32(-5))
	if got != fromI64(-5) {
		t.Fatalf("extend_s = %d", asI64(got))
	}
	got, _ = evalUn(t, isa.OpI64ExtendI32U, fromI32(-5))
	if got != fromU64(0xFFFFFFFB) {
		t.Fatalf("extend_u = %#x", uint64(got))
	}
	got, _ = evalUn(t, isa.OpF64ConvertI64S, fromI64(-2))
	if asF64(got) != -2 {
		t.Fatalf("convert = %g", asF64(got))
	}
	got, _ = evalUn(t, isa.OpF64PromoteF32, fromF32(1.5))
	if asF64(got) != 1.5 {
		t.Fatalf("promote = %g", asF64(got))
	}

	// Reinterprets preserve the bit pattern exactly.
	bits := fromF64(-0.0)
	got, _ = evalUn(t, isa.OpI64ReinterpretF64, bits)
	if got != bits {
		t.Fatal("reinterpret changed bits")
	}
	got, _ = evalUn(t, isa.OpF64Nearest, fromF64(2.5))
	if asF64(got) != 2 {
		t.Fatalf("nearest(2.5) = %g, want 2 (ties to even)", asF64(got))
	}
}

package engine

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/Neopallium/s1vm/errors"
	"github.com/Neopallium/s1vm/isa"
)

func mustCompile(t *testing.T, st *State, src *isa.Module) *Module {
	t.Helper()
	m, err := Compile(st, src)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return m
}

func callFn(t *testing.T, m *Module, store *Store, name string, args ...StackValue) Result {
	t.Helper()
	fn, ok := m.Export(name)
	if !ok {
		t.Fatalf("export %q missing", name)
	}
	res, err := NewInterp(store).Call(context.Background(), fn, args)
	if err != nil {
		t.Fatalf("call %s: %v", name, err)
	}
	return res
}

func wantValue(t *testing.T, res Result, want StackValue) {
	t.Helper()
	if res.Status != StatusCompleted {
		t.Fatalf("status = %v (trap: %v), want completed", res.Status, res.Trap)
	}
	if !res.HasValue {
		t.Fatal("no result value")
	}
	if res.Value != want {
		t.Fatalf("result = %d, want %d", res.Value, want)
	}
}

func wantTrap(t *testing.T, res Result, kind TrapKind) {
	t.Helper()
	if res.Status != StatusTrapped {
		t.Fatalf("status = %v, want trapped", res.Status)
	}
	if res.Trap.Kind != kind {
		t.Fatalf("trap = %v, want %v", res.Trap.Kind, kind)
	}
}

func TestCompileUnsupportedOpcode(t *testing.T) {
	src := isa.NewModuleBuilder().
		Func("f", isa.FuncType{}).
		Op(isa.Opcode(0xC0)). // sign-extension proposal, not lowered
		End().
		Build()

	_, err := Compile(NewState(), src)
	if err == nil {
		t.Fatal("expected compile error")
	}
	var e *errors.Error
	if !stderrors.As(err, &e) {
		t.Fatalf("error type: %T", err)
	}
	if e.Phase != errors.PhaseCompile || e.Kind != errors.KindUnsupported {
		t.Fatalf("got %s/%s, want compile/unsupported", e.Phase, e.Kind)
	}
	if e.Func != "f" || e.PC != 0 {
		t.Fatalf("location = %s+%d, want f+0", e.Func, e.PC)
	}
}

func TestCompileCallOutOfRange(t *testing.T) {
	src := isa.NewModuleBuilder().
		Func("f", isa.FuncType{}).
		Call(7).
		End().
		Build()

	if _, err := Compile(NewState(), src); err == nil {
		t.Fatal("expected compile error for dangling call target")
	}
}

func TestCompileElseOutsideIf(t *testing.T) {
	src := isa.NewModuleBuilder().
		Func("f", isa.FuncType{}).
		Else().
		End().
		Build()

	if _, err := Compile(NewState(), src); err == nil {
		t.Fatal("expected compile error for stray else")
	}
}

func TestCompileExportOutOfRange(t *testing.T) {
	src := isa.NewModuleBuilder().
		Func("f", isa.FuncType{}).
		End().
		Export("g", 3).
		Build()

	if _, err := Compile(NewState(), src); err == nil {
		t.Fatal("expected compile error for dangling export")
	}
}

func TestCompileStartMustBeVoid(t *testing.T) {
	src := isa.NewModuleBuilder().
		Func("init", isa.FuncType{Results: []isa.ValType{isa.I32}}).
		I32Const(1).
		End().
		Start(0).
		Build()

	if _, err := Compile(NewState(), src); err == nil {
		t.Fatal("expected compile error for typed start function")
	}
}

// All-or-nothing: an error in the second function must fail the module
// even though the first compiles cleanly.
func TestCompileAllOrNothing(t *testing.T) {
	src := isa.NewModuleBuilder().
		Func("ok", isa.FuncType{}).
		End().
		Func("bad", isa.FuncType{}).
		Op(isa.Opcode(0xFE)).
		End().
		Build()

	if _, err := Compile(NewState(), src); err == nil {
		t.Fatal("expected compile error")
	}
}

// Merged operand chains must be observationally identical to the same
// computation materialized through locals.
func TestMergeTransparency(t *testing.T) {
	sig := isa.FuncType{
		Params:  []isa.ValType{isa.I32, isa.I32},
		Results: []isa.ValType{isa.I32},
	}

	// (a+1)*(b+2), everything merged: the adds fold into inputs of mul.
	merged := isa.NewModuleBuilder().
		Func("f", sig).
		LocalGet(0).I32Const(1).I32Add().
		LocalGet(1).I32Const(2).I32Add().
		I32Mul().
		End().
		Export("f", 0).
		Build()

	// Same computation with every intermediate forced through a local.
	spelled := isa.NewModuleBuilder().
		Func("f", sig).
		Locals(isa.I32, isa.I32).
		LocalGet(0).I32Const(1).I32Add().LocalSet(2).
		LocalGet(1).I32Const(2).I32Add().LocalSet(3).
		LocalGet(2).LocalGet(3).I32Mul().
		End().
		Export("f", 0).
		Build()

	for a := int32(-3); a <= 3; a++ {
		for b := int32(-3); b <= 3; b++ {
			want := fromI32((a + 1) * (b + 2))

			m1 := mustCompile(t, NewState(), merged)
			s1 := NewStore(m1, Limits{})
			r1 := callFn(t, m1, s1, "f", fromI32(a), fromI32(b))
			wantValue(t, r1, want)

			m2 := mustCompile(t, NewState(), spelled)
			s2 := NewStore(m2, Limits{})
			r2 := callFn(t, m2, s2, "f", fromI32(a), fromI32(b))
			wantValue(t, r2, want)

			if s1.Stack.Len() != 0 || s2.Stack.Len() != 0 {
				t.Fatalf("stack not empty after call: %d / %d", s1.Stack.Len(), s2.Stack.Len())
			}
		}
	}
}

// A void body of five single-instruction units costs exactly five fuel.
func TestFuelPerUnitAccounting(t *testing.T) {
	fb := isa.NewModuleBuilder().
		Func("f", isa.FuncType{Params: []isa.ValType{isa.I32}})
	for i := 0; i < 5; i++ {
		fb.LocalGet(0).LocalSet(0) // one merged set unit each
	}
	src := fb.End().Export("f", 0).Build()

	m := mustCompile(t, NewState(), src)

	store := NewStore(m, Limits{Fuel: 5})
	res := callFn(t, m, store, "f", fromI32(9))
	if res.Status != StatusCompleted {
		t.Fatalf("budget 5: %v (trap %v)", res.Status, res.Trap)
	}
	if fuel, _ := store.Fuel(); fuel != 0 {
		t.Fatalf("leftover fuel = %d, want 0", fuel)
	}

	store = NewStore(m, Limits{Fuel: 4})
	res = callFn(t, m, store, "f", fromI32(9))
	wantTrap(t, res, TrapFuelExhausted)
}

// A slice suspension must not charge hard fuel; each unit pays exactly once
// no matter how often the run is interrupted.
func TestFuelExactUnderSlicing(t *testing.T) {
	fb := isa.NewModuleBuilder().
		Func("f", isa.FuncType{Params: []isa.ValType{isa.I32}})
	for i := 0; i < 5; i++ {
		fb.LocalGet(0).LocalSet(0)
	}
	src := fb.End().Export("f", 0).Build()

	m := mustCompile(t, NewState(), src)
	fn, _ := m.Export("f")

	settle := func(store *Store) Result {
		in := NewInterp(store)
		res, err := in.Call(context.Background(), fn, []StackValue{fromI32(9)})
		if err != nil {
			t.Fatal(err)
		}
		for res.Status == StatusSuspended {
			if res, err = in.Resume(context.Background(), nil); err != nil {
				t.Fatal(err)
			}
		}
		return res
	}

	store := NewStore(m, Limits{Fuel: 5, FuelSlice: 1})
	res := settle(store)
	if res.Status != StatusCompleted {
		t.Fatalf("budget 5, slice 1: %v (trap %v)", res.Status, res.Trap)
	}
	if fuel, _ := store.Fuel(); fuel != 0 {
		t.Fatalf("leftover fuel = %d, want 0", fuel)
	}

	store = NewStore(m, Limits{Fuel: 4, FuelSlice: 1})
	wantTrap(t, settle(store), TrapFuelExhausted)
}

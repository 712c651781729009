package engine

import (
	"context"
	stderrors "errors"
	"math"
	"testing"

	"github.com/Neopallium/s1vm/errors"
	"github.com/Neopallium/s1vm/isa"
)

var i32i32 = isa.FuncType{Params: []isa.ValType{isa.I32}, Results: []isa.ValType{isa.I32}}

func fibSource() *isa.Module {
	return isa.NewModuleBuilder().
		Func("fib", i32i32).
		LocalGet(0).I32Const(2).I32LtS().
		If().
		LocalGet(0).Return().
		EndBlock().
		LocalGet(0).I32Const(1).I32Sub().Call(0).
		LocalGet(0).I32Const(2).I32Sub().Call(0).
		I32Add().
		End().
		Export("fib", 0).
		Build()
}

func TestRecursiveCall(t *testing.T) {
	m := mustCompile(t, NewState(), fibSource())
	store := NewStore(m, Limits{})
	res := callFn(t, m, store, "fib", fromI32(10))
	wantValue(t, res, fromI32(55))

	if store.Running() {
		t.Fatal("store still running after completion")
	}
	if store.Stack.Len() != 0 {
		t.Fatalf("stack height after call = %d", store.Stack.Len())
	}
}

func TestI64AddWraps(t *testing.T) {
	src := isa.NewModuleBuilder().
		Func("add", isa.FuncType{
			Params:  []isa.ValType{isa.I64, isa.I64},
			Results: []isa.ValType{isa.I64},
		}).
		LocalGet(0).LocalGet(1).I64Add().
		End().
		Export("add", 0).
		Build()

	m := mustCompile(t, NewState(), src)
	res := callFn(t, m, NewStore(m, Limits{}), "add",
		fromI64(math.MaxInt64), fromI64(1))
	wantValue(t, res, fromI64(math.MinInt64))
}

func TestLocalOutOfBoundsTraps(t *testing.T) {
	src := isa.NewModuleBuilder().
		Func("f", isa.FuncType{Results: []isa.ValType{isa.I32}}).
		LocalGet(5).
		End().
		Export("f", 0).
		Build()

	m := mustCompile(t, NewState(), src)
	res := callFn(t, m, NewStore(m, Limits{}), "f")
	wantTrap(t, res, TrapLocalOutOfBounds)
}

func sumSource() *isa.Module {
	// sum(n) iterates: i++, acc += i, repeat while i < n.
	return isa.NewModuleBuilder().
		Func("sum", i32i32).
		Locals(isa.I32, isa.I32).
		Loop().
		LocalGet(1).I32Const(1).I32Add().LocalSet(1).
		LocalGet(2).LocalGet(1).I32Add().LocalSet(2).
		LocalGet(1).LocalGet(0).I32LtS().BrIf(0).
		EndBlock().
		LocalGet(2).
		End().
		Export("sum", 0).
		Build()
}

func TestLoopBranch(t *testing.T) {
	m := mustCompile(t, NewState(), sumSource())
	res := callFn(t, m, NewStore(m, Limits{}), "sum", fromI32(10))
	wantValue(t, res, fromI32(55))
}

// The builder does not validate, so a branch can name more levels than are
// open; that must surface as a trap, not a silent jump to the root.
func TestBranchDepthBeyondNesting(t *testing.T) {
	src := isa.NewModuleBuilder().
		Func("f", i32i32).
		Block().
		Br(9).
		EndBlock().
		LocalGet(0).
		End().
		Export("f", 0).
		Build()

	m := mustCompile(t, NewState(), src)
	res := callFn(t, m, NewStore(m, Limits{}), "f", fromI32(1))
	wantTrap(t, res, TrapUnreachable)
}

func TestBrTable(t *testing.T) {
	src := isa.NewModuleBuilder().
		Func("sel", i32i32).
		Block().Block().Block().
		LocalGet(0).
		BrTable([]uint32{0, 1}, 2).
		EndBlock().
		I32Const(10).Return().
		EndBlock().
		I32Const(20).Return().
		EndBlock().
		I32Const(30).
		End().
		Export("sel", 0).
		Build()

	m := mustCompile(t, NewState(), src)
	cases := map[int32]int32{0: 10, 1: 20, 2: 30, 9: 30}
	for in, want := range cases {
		res := callFn(t, m, NewStore(m, Limits{}), "sel", fromI32(in))
		wantValue(t, res, fromI32(want))
	}
}

func TestSelectAndDrop(t *testing.T) {
	src := isa.NewModuleBuilder().
		Func("pick", isa.FuncType{
			Params:  []isa.ValType{isa.I32, isa.I32, isa.I32},
			Results: []isa.ValType{isa.I32},
		}).
		LocalGet(0).LocalGet(1).LocalGet(2).Select().
		End().
		Export("pick", 0).
		Func("dropper", i32i32).
		LocalGet(0).I32Const(99).Drop().
		End().
		Export("dropper", 1).
		Build()

	m := mustCompile(t, NewState(), src)
	res := callFn(t, m, NewStore(m, Limits{}), "pick", fromI32(4), fromI32(5), fromI32(1))
	wantValue(t, res, fromI32(4))
	res = callFn(t, m, NewStore(m, Limits{}), "pick", fromI32(4), fromI32(5), fromI32(0))
	wantValue(t, res, fromI32(5))

	res = callFn(t, m, NewStore(m, Limits{}), "dropper", fromI32(7))
	wantValue(t, res, fromI32(7))
}

func TestGlobals(t *testing.T) {
	src := isa.NewModuleBuilder().
		Global(isa.I64, true, 5).
		Func("bump", isa.FuncType{
			Params:  []isa.ValType{isa.I64},
			Results: []isa.ValType{isa.I64},
		}).
		GlobalGet(0).LocalGet(0).I64Add().GlobalSet(0).
		GlobalGet(0).
		End().
		Export("bump", 0).
		Build()

	m := mustCompile(t, NewState(), src)
	store := NewStore(m, Limits{})
	wantValue(t, callFn(t, m, store, "bump", fromI64(3)), fromI64(8))
	wantValue(t, callFn(t, m, store, "bump", fromI64(3)), fromI64(11))

	// A fresh store starts from the declared initial value.
	wantValue(t, callFn(t, m, NewStore(m, Limits{}), "bump", fromI64(1)), fromI64(6))
}

func memSource() *isa.Module {
	return isa.NewModuleBuilder().
		Memory(1, 2).
		Func("poke", isa.FuncType{Params: []isa.ValType{isa.I32, isa.I32}}).
		LocalGet(0).LocalGet(1).Store(isa.OpI32Store, 0).
		End().
		Export("poke", 0).
		Func("peek", i32i32).
		LocalGet(0).Load(isa.OpI32Load, 0).
		End().
		Export("peek", 1).
		Func("grow", i32i32).
		LocalGet(0).MemoryGrow().
		End().
		Export("grow", 2).
		Func("size", isa.FuncType{Results: []isa.ValType{isa.I32}}).
		MemorySize().
		End().
		Export("size", 3).
		Build()
}

func TestMemoryAccess(t *testing.T) {
	m := mustCompile(t, NewState(), memSource())
	store := NewStore(m, Limits{})

	const val = int32(-559038737)
	res := callFn(t, m, store, "poke", fromI32(100), fromI32(val))
	if res.Status != StatusCompleted {
		t.Fatalf("poke: %v (trap %v)", res.Status, res.Trap)
	}
	wantValue(t, callFn(t, m, store, "peek", fromI32(100)), fromI32(val))

	// Access straddling the end of the page traps.
	wantTrap(t, callFn(t, m, store, "peek", fromI32(65533)), TrapMemoryOutOfBounds)
}

func TestMemoryGrow(t *testing.T) {
	m := mustCompile(t, NewState(), memSource())

	store := NewStore(m, Limits{})
	wantValue(t, callFn(t, m, store, "size"), fromI32(1))
	// Growth within the declared maximum returns the previous size.
	wantValue(t, callFn(t, m, store, "grow", fromI32(1)), fromI32(1))
	wantValue(t, callFn(t, m, store, "size"), fromI32(2))
	// Growth past the declared maximum fails softly.
	wantValue(t, callFn(t, m, store, "grow", fromI32(1)), fromI32(-1))

	// Growth past the instance limit traps instead.
	store = NewStore(m, Limits{MaxMemoryPages: 1})
	wantTrap(t, callFn(t, m, store, "grow", fromI32(1)), TrapMemoryLimit)
}

func TestArithmeticTraps(t *testing.T) {
	src := isa.NewModuleBuilder().
		Func("div", isa.FuncType{
			Params:  []isa.ValType{isa.I32, isa.I32},
			Results: []isa.ValType{isa.I32},
		}).
		LocalGet(0).LocalGet(1).I32DivS().
		End().
		Export("div", 0).
		Func("boom", isa.FuncType{}).
		Unreachable().
		End().
		Export("boom", 1).
		Build()

	m := mustCompile(t, NewState(), src)
	wantTrap(t, callFn(t, m, NewStore(m, Limits{}), "div", fromI32(1), fromI32(0)), TrapDivisionByZero)
	wantTrap(t, callFn(t, m, NewStore(m, Limits{}), "div", fromI32(math.MinInt32), fromI32(-1)), TrapIntegerOverflow)
	wantTrap(t, callFn(t, m, NewStore(m, Limits{}), "boom"), TrapUnreachable)

	wantValue(t, callFn(t, m, NewStore(m, Limits{}), "div", fromI32(-7), fromI32(2)), fromI32(-3))
}

func TestCallDepthLimit(t *testing.T) {
	// down(n) recurses with an ordinary call, one frame per step.
	src := isa.NewModuleBuilder().
		Func("down", i32i32).
		LocalGet(0).I32Eqz().
		If().
		I32Const(0).Return().
		EndBlock().
		LocalGet(0).I32Const(1).I32Sub().Call(0).
		End().
		Export("down", 0).
		Build()

	m := mustCompile(t, NewState(), src)
	wantValue(t, callFn(t, m, NewStore(m, Limits{MaxCallDepth: 64}), "down", fromI32(50)), fromI32(0))
	wantTrap(t, callFn(t, m, NewStore(m, Limits{MaxCallDepth: 64}), "down", fromI32(100)), TrapCallDepthExceeded)
}

func TestTailCallKeepsDepthConstant(t *testing.T) {
	st := NewState()
	// The probe reports the live frame count from the bottom of the chain.
	_, err := st.RegisterHost(NewHostFunc("probe",
		isa.FuncType{Results: []isa.ValType{isa.I32}},
		func(_ context.Context, s *Store, _ []StackValue) (StackValue, error) {
			return fromI32(int32(s.Depth())), nil
		}))
	if err != nil {
		t.Fatal(err)
	}

	src := isa.NewModuleBuilder().
		Func("f", i32i32).
		LocalGet(0).I32Eqz().
		If().
		Call(0).Return().
		EndBlock().
		LocalGet(0).I32Const(1).I32Sub().ReturnCall(1).
		End().
		Export("f", 0).
		Build()

	m := mustCompile(t, st, src)
	// A chain far beyond the depth cap completes because every step
	// reuses the single frame.
	res := callFn(t, m, NewStore(m, Limits{}), "f", fromI32(100000))
	wantValue(t, res, fromI32(1))
}

func TestFuelSliceResumeIdentity(t *testing.T) {
	m := mustCompile(t, NewState(), sumSource())

	// Uninterrupted reference run.
	ref := callFn(t, m, NewStore(m, Limits{}), "sum", fromI32(10))
	wantValue(t, ref, fromI32(55))

	for slice := uint64(1); slice <= 9; slice++ {
		store := NewStore(m, Limits{FuelSlice: slice})
		fn, _ := m.Export("sum")
		in := NewInterp(store)
		res, err := in.Call(context.Background(), fn, []StackValue{fromI32(10)})
		if err != nil {
			t.Fatalf("slice %d: %v", slice, err)
		}
		suspensions := 0
		for res.Status == StatusSuspended {
			if res.WaitingHost != nil {
				t.Fatalf("slice %d: unexpected host wait", slice)
			}
			if !store.Suspended() {
				t.Fatalf("slice %d: store not suspended", slice)
			}
			suspensions++
			res, err = in.Resume(context.Background(), nil)
			if err != nil {
				t.Fatalf("slice %d resume: %v", slice, err)
			}
		}
		wantValue(t, res, fromI32(55))
		if suspensions == 0 {
			t.Fatalf("slice %d: expected at least one suspension", slice)
		}
	}
}

func TestSyncHostCall(t *testing.T) {
	st := NewState()
	_, err := st.RegisterHost(NewHostFunc("add3", i32i32,
		func(_ context.Context, _ *Store, args []StackValue) (StackValue, error) {
			return fromI32(asI32(args[0]) + 3), nil
		}))
	if err != nil {
		t.Fatal(err)
	}

	src := isa.NewModuleBuilder().
		Func("f", i32i32).
		LocalGet(0).Call(0).
		End().
		Export("f", 0).
		Func("tailhost", i32i32).
		LocalGet(0).ReturnCall(0).
		End().
		Export("tailhost", 1).
		Build()

	m := mustCompile(t, st, src)
	wantValue(t, callFn(t, m, NewStore(m, Limits{}), "f", fromI32(4)), fromI32(7))
	wantValue(t, callFn(t, m, NewStore(m, Limits{}), "tailhost", fromI32(4)), fromI32(7))
}

func TestHostErrorBecomesTrap(t *testing.T) {
	sentinel := stderrors.New("backend unavailable")
	st := NewState()
	_, err := st.RegisterHost(NewHostFunc("fail", isa.FuncType{},
		func(context.Context, *Store, []StackValue) (StackValue, error) {
			return 0, sentinel
		}))
	if err != nil {
		t.Fatal(err)
	}

	src := isa.NewModuleBuilder().
		Func("f", isa.FuncType{}).
		Call(0).
		End().
		Export("f", 0).
		Build()

	m := mustCompile(t, st, src)
	res := callFn(t, m, NewStore(m, Limits{}), "f")
	wantTrap(t, res, TrapHostError)
	if !stderrors.Is(res.Trap, sentinel) {
		t.Fatalf("trap does not wrap the host error: %v", res.Trap)
	}
}

func asyncFixture(t *testing.T) (*Module, *Store) {
	t.Helper()
	st := NewState()
	_, err := st.RegisterHost(NewAsyncHostFunc("await",
		isa.FuncType{Results: []isa.ValType{isa.I32}},
		func(context.Context, *Store, []StackValue) (AsyncResult, error) {
			return AsyncResult{Pending: true}, nil
		}))
	if err != nil {
		t.Fatal(err)
	}

	// f(n) descends n ordinary calls, then awaits the host at the bottom.
	src := isa.NewModuleBuilder().
		Func("f", i32i32).
		LocalGet(0).I32Eqz().
		If().
		Call(0).Return().
		EndBlock().
		LocalGet(0).I32Const(1).I32Sub().Call(1).
		End().
		Export("f", 0).
		Build()

	m := mustCompile(t, st, src)
	return m, NewStore(m, Limits{MaxCallDepth: 2000})
}

func TestAsyncSuspendResume(t *testing.T) {
	m, store := asyncFixture(t)
	fn, _ := m.Export("f")
	in := NewInterp(store)

	res, err := in.Call(context.Background(), fn, []StackValue{fromI32(999)})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusSuspended {
		t.Fatalf("status = %v, want suspended", res.Status)
	}
	if res.WaitingHost == nil || res.WaitingHost.Name != "await" {
		t.Fatalf("waiting host = %+v", res.WaitingHost)
	}
	// The whole chain is heap frames: 1000 of them, no native recursion.
	if store.Depth() != 1000 {
		t.Fatalf("suspended frame depth = %d, want 1000", store.Depth())
	}

	v := fromI32(7)
	res, err = in.Resume(context.Background(), &v)
	if err != nil {
		t.Fatal(err)
	}
	wantValue(t, res, fromI32(7))
	if store.Depth() != 0 || store.Running() {
		t.Fatalf("store not drained: depth=%d running=%v", store.Depth(), store.Running())
	}
}

func TestInFlightGuards(t *testing.T) {
	m, store := asyncFixture(t)
	fn, _ := m.Export("f")
	in := NewInterp(store)

	res, err := in.Call(context.Background(), fn, []StackValue{fromI32(1)})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusSuspended {
		t.Fatalf("status = %v, want suspended", res.Status)
	}

	// A second call on the same store must be rejected while suspended.
	if _, err := in.Call(context.Background(), fn, []StackValue{fromI32(1)}); err == nil {
		t.Fatal("expected in-flight error")
	} else if !stderrors.Is(err, errors.InFlight("")) {
		t.Fatalf("error = %v, want in-flight", err)
	}

	// Resume requires the async completion value here.
	if _, err := in.Resume(context.Background(), nil); err == nil {
		t.Fatal("expected arity error for missing resume value")
	}

	v := fromI32(0)
	if res, err = in.Resume(context.Background(), &v); err != nil {
		t.Fatal(err)
	}
	wantValue(t, res, fromI32(0))

	// Nothing suspended anymore.
	if _, err := in.Resume(context.Background(), &v); err == nil {
		t.Fatal("expected error resuming a completed call")
	}
}

func TestContextCancellation(t *testing.T) {
	src := isa.NewModuleBuilder().
		Func("spin", isa.FuncType{}).
		Loop().Br(0).EndBlock().
		End().
		Export("spin", 0).
		Build()

	m := mustCompile(t, NewState(), src)
	store := NewStore(m, Limits{})
	fn, _ := m.Export("spin")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := NewInterp(store).Call(ctx, fn, nil)
	if err != nil {
		t.Fatal(err)
	}
	wantTrap(t, res, TrapCanceled)

	// The hard fuel budget also stops the same loop.
	store = NewStore(m, Limits{Fuel: 1000})
	res, err = NewInterp(store).Call(context.Background(), fn, nil)
	if err != nil {
		t.Fatal(err)
	}
	wantTrap(t, res, TrapFuelExhausted)
}

func TestArgumentMismatch(t *testing.T) {
	m := mustCompile(t, NewState(), fibSource())
	fn, _ := m.Export("fib")
	in := NewInterp(NewStore(m, Limits{}))

	if _, err := in.Call(context.Background(), fn, nil); err == nil {
		t.Fatal("expected arity error")
	}
	if _, err := in.Call(context.Background(), fn, []StackValue{1, 2}); err == nil {
		t.Fatal("expected arity error")
	}
}

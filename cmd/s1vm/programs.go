package main

import (
	"context"

	"github.com/Neopallium/s1vm/engine"
	"github.com/Neopallium/s1vm/isa"
	"github.com/Neopallium/s1vm/runtime"
)

var (
	sigI32I32 = isa.FuncType{Params: []isa.ValType{isa.I32}, Results: []isa.ValType{isa.I32}}
	sigI64x2  = isa.FuncType{Params: []isa.ValType{isa.I64, isa.I64}, Results: []isa.ValType{isa.I64}}
)

// demoProgram is a built-in module the runner can load. hosts runs before
// LoadModule so the program's call sites bind against the host table.
type demoProgram struct {
	name  string
	desc  string
	hosts func(rt *runtime.Runtime) error
	build func() *isa.Module
}

var demoPrograms = []demoProgram{
	{name: "math", desc: "add, recursive fib and an iterative sum", build: mathProgram},
	{name: "memory", desc: "poke, peek and grow linear memory", build: memoryProgram},
	{name: "async", desc: "suspends on an asynchronous host clock", hosts: asyncHosts, build: asyncProgram},
	{name: "spin", desc: "busy loop, pair with -fuel or -slice", build: spinProgram},
}

func findProgram(name string) (demoProgram, bool) {
	for _, p := range demoPrograms {
		if p.name == name {
			return p, true
		}
	}
	return demoProgram{}, false
}

func mathProgram() *isa.Module {
	return isa.NewModuleBuilder().
		Func("add", sigI64x2).
		LocalGet(0).LocalGet(1).I64Add().
		End().
		Export("add", 0).
		Func("fib", sigI32I32).
		LocalGet(0).I32Const(2).I32LtS().
		If().
		LocalGet(0).Return().
		EndBlock().
		LocalGet(0).I32Const(1).I32Sub().Call(1).
		LocalGet(0).I32Const(2).I32Sub().Call(1).
		I32Add().
		End().
		Export("fib", 1).
		Func("sum", sigI32I32).
		Locals(isa.I32, isa.I32).
		Loop().
		LocalGet(1).I32Const(1).I32Add().LocalSet(1).
		LocalGet(2).LocalGet(1).I32Add().LocalSet(2).
		LocalGet(1).LocalGet(0).I32LtS().BrIf(0).
		EndBlock().
		LocalGet(2).
		End().
		Export("sum", 2).
		Build()
}

func memoryProgram() *isa.Module {
	return isa.NewModuleBuilder().
		Memory(1, 4).
		Func("poke", isa.FuncType{Params: []isa.ValType{isa.I32, isa.I32}}).
		LocalGet(0).LocalGet(1).Store(isa.OpI32Store, 0).
		End().
		Export("poke", 0).
		Func("peek", sigI32I32).
		LocalGet(0).Load(isa.OpI32Load, 0).
		End().
		Export("peek", 1).
		Func("grow", sigI32I32).
		LocalGet(0).MemoryGrow().
		End().
		Export("grow", 2).
		Func("size", isa.FuncType{Results: []isa.ValType{isa.I32}}).
		MemorySize().
		End().
		Export("size", 3).
		Build()
}

// asyncHosts registers a clock that never completes inline: every call
// suspends the instance, and the embedder supplies the reading on resume.
func asyncHosts(rt *runtime.Runtime) error {
	_, err := rt.RegisterAsyncFunc("clock",
		isa.FuncType{Results: []isa.ValType{isa.I64}},
		func(context.Context, *engine.Store, []engine.StackValue) (engine.AsyncResult, error) {
			return engine.AsyncResult{Pending: true}, nil
		})
	return err
}

func asyncProgram() *isa.Module {
	// wait-add(n) = clock() + n; call index 0 is the host.
	return isa.NewModuleBuilder().
		Func("wait-add", isa.FuncType{
			Params:  []isa.ValType{isa.I64},
			Results: []isa.ValType{isa.I64},
		}).
		Call(0).LocalGet(0).I64Add().
		End().
		Export("wait-add", 0).
		Build()
}

func spinProgram() *isa.Module {
	return isa.NewModuleBuilder().
		Func("spin", isa.FuncType{}).
		Loop().
		Nop().
		Br(0).
		EndBlock().
		End().
		Export("spin", 0).
		Build()
}

// Package s1vm is a closure-compiling virtual machine for a
// WebAssembly-style bytecode. Instead of dispatching opcodes in an
// interpreter loop, a load-time compiler lowers each function body into a
// tree of pre-specialized Go closures; execution walks the tree with no
// per-instruction decode.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct
// responsibilities:
//
//	s1vm/
//	├── runtime/         High-level API for loading modules and making calls
//	├── engine/          Closure compiler, execution driver, stores and limits
//	├── isa/             Instruction set, module structures and a builder
//	└── errors/          Structured error types for debugging
//
// # Quick Start
//
// Build a module, load it and call an export:
//
//	rt := runtime.New()
//	defer rt.Close(ctx)
//
//	mod, err := rt.LoadModule("demo", src)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	inst, err := mod.Instantiate(ctx, runtime.WithFuelLimit(1_000_000))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer inst.Close(ctx)
//
//	out, err := inst.Call(ctx, "add", engine.I64Val(40), engine.I64Val(2))
//
// A non-nil error means the call never started; traps and suspensions are
// reported through the returned Outcome.
//
// # Suspension
//
// Calls suspend cooperatively in two situations: an asynchronous host
// function reports a pending result, or the instance exhausts its fuel
// slice. Either way the Outcome carries a CallSession; Resume continues
// exactly where execution stopped, with the full call stack intact.
//
// # Resource Limits
//
// Instances are created with optional limits: total fuel, fuel per
// scheduling slice, memory growth in pages, operand stack size, and call
// depth. Exceeding a hard limit is a trap; exhausting a fuel slice is a
// suspension.
//
// # Thread Safety
//
// Runtime and Module are safe for concurrent use. An Instance executes one
// call at a time; concurrent operations on the same instance are rejected
// rather than interleaved.
package s1vm

// Package runtime is the embedding API over the execution engine.
//
// A Runtime holds compiled modules and registered host functions. Host
// functions are registered first (the compiler binds call sites to the
// host table at load time), modules are loaded and compiled once, and
// each Instantiate hands back an isolated Instance with its own memory,
// globals and operand stack.
//
//	rt := runtime.New(runtime.WithLogger(log))
//	mod, err := rt.LoadModule("math", program)
//	if err != nil { ... }
//	inst, err := mod.Instantiate(ctx, runtime.WithFuelLimit(1_000_000))
//	if err != nil { ... }
//
//	out, err := inst.Call(ctx, "fib", engine.I32Val(10))
//	if err != nil { ... }            // misuse: bad export, bad arguments
//	switch {
//	case out.Completed():
//		v, _ := out.Result()
//	case out.Trapped() != nil:
//		// terminal fault, instance unwound to the call boundary
//	case out.Suspended() != nil:
//		// waiting on an async host call or a fuel slice
//		out, err = out.Suspended().Resume(ctx, engine.I32Val(42))
//	}
//
// Errors returned by this package describe embedder misuse and load-time
// failures; execution faults travel inside the Outcome as *engine.Trap.
package runtime

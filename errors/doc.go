// Package errors provides structured error types for the s1vm library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). Compile errors carry the function name and instruction offset
// that failed to lower, and are always surfaced before execution starts.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseCompile, errors.KindUnsupported).
//		Func("fib").
//		PC(12).
//		Detail("opcode 0xFC not supported").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Unsupported("fib", 12, "opcode 0xFC")
//	err := errors.NotFound(errors.PhaseRuntime, "export", "main")
//
// All errors implement the standard error interface and support errors.Is/As.
//
// Runtime faults inside compiled code are not represented by this package;
// those are traps (see the engine package), a terminal execution outcome
// distinct from embedder-facing errors.
package errors

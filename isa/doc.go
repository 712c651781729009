// Package isa defines the decoder-to-compiler contract: value types,
// opcodes, decoded instructions with typed immediates, and the in-memory
// module description the engine compiles.
//
// The package deliberately contains no decoding or validation logic. A
// decoder (external to this repository) is expected to hand the engine a
// validated, type-checked Module; the compiler trusts type-correctness and
// well-formed block nesting, and reports a compile error for any opcode it
// does not support.
//
// For tests and embedders that construct programs directly, the Builder
// types provide fluent in-memory construction:
//
//	mod := isa.NewModuleBuilder().
//		Func("add", isa.FuncType{Params: []isa.ValType{isa.I64, isa.I64}, Results: []isa.ValType{isa.I64}}).
//		LocalGet(0).
//		LocalGet(1).
//		I64Add().
//		End().
//		Export("add", 0).
//		Build()
package isa

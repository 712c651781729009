// Package engine implements the closure-compiling execution core: a
// compiler that lowers validated instruction streams into trees of
// pre-specialized closure units, and a trampoline driver that executes
// those trees with cooperative suspension and resource limiting.
//
// # Compilation
//
// Compile walks each function body once. Value-producing instructions do
// not become units immediately; they become input descriptors (a local
// index, a constant, or a previously compiled producer closure) held on a
// compile-time pending list. When an operation consumes operands, it
// captures their descriptors directly into one merged closure, so a
// sequence like local.get/i64.const/i64.add compiles to a single unit with
// no operand-stack traffic at run time. Units with side effects first
// force the rest of the pending list onto the real operand stack, which
// keeps every effect ordered after the values produced before it.
//
// Control constructs compile into nested blocks. A unit reports where
// execution goes next as a structured outcome (fall through, enter a
// block, branch, return, invoke, yield); there is no instruction pointer
// at run time.
//
// # Execution
//
// State is the immutable side: compiled modules and registered host
// functions, shared read-only by any number of concurrent instances.
// Store is the mutable side: one operand stack, linear memory, globals and
// call-frame list per instance. Interp drives a Store over the compiled
// trees in an explicit trampoline loop, so calls of any kind (including
// async host chains) consume heap frames, not native stack, and a tail
// call reuses its frame in place.
//
// Because the driver executes exactly one unit per loop step, any unit
// boundary is a suspension point: fuel-slice exhaustion and pending async
// host calls stop the loop and leave the Store as the resumable
// continuation. No snapshot is taken; the frame list and cursors are the
// continuation.
//
// Faults are *Trap values (unreachable, division by zero, bounds, limits,
// host errors), which unwind to the call boundary and are reported as a
// Result, never as a Go panic.
package engine

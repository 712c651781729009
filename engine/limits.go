package engine

// Default resource bounds applied when an instance does not override them.
const (
	DefaultMaxCallDepth = 1024
)

// Limits bounds what one Store may consume. Each limit is enforced
// independently and produces its own trap kind on breach. The zero value
// means unrestricted (except call depth and the operand stack, which keep
// their defaults).
//
// Fuel accounting is per compiled unit, not per original opcode: a merged
// run of opcodes costs one unit of fuel. Merging therefore coarsens
// accounting, which is the documented trade of the specialization scheme.
type Limits struct {
	// Fuel is the total instruction budget. Execution traps with
	// TrapFuelExhausted exactly when the (Fuel+1)-th unit would begin.
	// Zero means unlimited.
	Fuel uint64

	// FuelSlice is the per-resume-slice budget. Exhausting a slice
	// suspends execution cooperatively instead of trapping; resuming
	// grants a fresh slice. Zero disables slicing.
	FuelSlice uint64

	// MaxMemoryPages caps linear memory growth. Growth past the cap
	// traps with TrapMemoryLimit (a module-declared maximum, by
	// contrast, fails growth softly per wasm semantics). Zero means
	// no cap.
	MaxMemoryPages uint32

	// MaxCallDepth caps the call-frame list length. Zero applies
	// DefaultMaxCallDepth.
	MaxCallDepth int

	// StackLimit caps the operand stack height in values. Zero applies
	// DefaultStackLimit.
	StackLimit int
}

func (l Limits) callDepth() int {
	if l.MaxCallDepth <= 0 {
		return DefaultMaxCallDepth
	}
	return l.MaxCallDepth
}

package runtime

import (
	"go.uber.org/zap"

	"github.com/Neopallium/s1vm/engine"
)

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger installs a logger for load, compile and trap events. The
// default is a no-op logger. The engine side of the logger is shared
// process-wide, so when several runtimes coexist the one constructed last
// determines where engine events go.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runtime) {
		r.logger = l
	}
}

// InstanceOption configures the resource limits of one instance.
type InstanceOption func(*engine.Limits)

// WithFuelLimit sets a hard instruction budget. Fuel is charged per
// compiled unit (a merged run of instructions costs one); exhausting it
// traps. Zero means unlimited.
func WithFuelLimit(n uint64) InstanceOption {
	return func(l *engine.Limits) {
		l.Fuel = n
	}
}

// WithFuelSlice sets a per-resume budget. Exhausting a slice suspends the
// call cooperatively instead of trapping; each Resume grants a fresh
// slice. Zero disables slicing.
func WithFuelSlice(n uint64) InstanceOption {
	return func(l *engine.Limits) {
		l.FuelSlice = n
	}
}

// WithMaxMemoryPages caps linear memory growth; growth past the cap traps.
func WithMaxMemoryPages(pages uint32) InstanceOption {
	return func(l *engine.Limits) {
		l.MaxMemoryPages = pages
	}
}

// WithMaxCallDepth caps the call-frame list length.
func WithMaxCallDepth(depth int) InstanceOption {
	return func(l *engine.Limits) {
		l.MaxCallDepth = depth
	}
}

// WithStackLimit caps the operand stack height in values.
func WithStackLimit(n int) InstanceOption {
	return func(l *engine.Limits) {
		l.StackLimit = n
	}
}

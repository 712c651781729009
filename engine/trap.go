package engine

import "fmt"

// TrapKind classifies a terminal execution fault.
type TrapKind int

const (
	// Runtime faults.
	TrapUnreachable TrapKind = iota
	TrapDivisionByZero
	TrapIntegerOverflow
	TrapInvalidConversion
	TrapMemoryOutOfBounds
	TrapLocalOutOfBounds
	TrapGlobalOutOfBounds
	TrapStackOverflow
	TrapUnexpectedSignature
	TrapInvalidFunction

	// Resource limits.
	TrapCallDepthExceeded
	TrapFuelExhausted
	TrapMemoryLimit

	// External causes.
	TrapHostError
	TrapCanceled
)

var trapNames = map[TrapKind]string{
	TrapUnreachable:         "unreachable",
	TrapDivisionByZero:      "integer divide by zero",
	TrapIntegerOverflow:     "integer overflow",
	TrapInvalidConversion:   "invalid conversion to integer",
	TrapMemoryOutOfBounds:   "out of bounds memory access",
	TrapLocalOutOfBounds:    "out of bounds local index",
	TrapGlobalOutOfBounds:   "out of bounds global index",
	TrapStackOverflow:       "operand stack overflow",
	TrapUnexpectedSignature: "unexpected signature",
	TrapInvalidFunction:     "invalid function reference",
	TrapCallDepthExceeded:   "call depth limit exceeded",
	TrapFuelExhausted:       "instruction budget exhausted",
	TrapMemoryLimit:         "memory growth limit exceeded",
	TrapHostError:           "host function error",
	TrapCanceled:            "execution canceled",
}

// String returns the trap kind description.
func (k TrapKind) String() string {
	if s, ok := trapNames[k]; ok {
		return s
	}
	return fmt.Sprintf("trap(%d)", int(k))
}

// Trap is a terminal execution outcome distinct from a normal return. It
// unwinds every call frame back to the top-level call boundary; nothing
// inside compiled code recovers from it. Trap implements error so it can
// flow through ordinary return values, but it is reported to the embedder
// as an Outcome, not as a Go error.
type Trap struct {
	Cause  error
	Detail string
	Kind   TrapKind
}

// Error implements the error interface.
func (t *Trap) Error() string {
	msg := "trap: " + t.Kind.String()
	if t.Detail != "" {
		msg += ": " + t.Detail
	}
	if t.Cause != nil {
		msg += " (" + t.Cause.Error() + ")"
	}
	return msg
}

// Unwrap returns the underlying error, if any (host errors).
func (t *Trap) Unwrap() error {
	return t.Cause
}

// Is matches traps by kind.
func (t *Trap) Is(target error) bool {
	if o, ok := target.(*Trap); ok {
		return t.Kind == o.Kind
	}
	return false
}

func newTrap(kind TrapKind) *Trap {
	return &Trap{Kind: kind}
}

func trapf(kind TrapKind, format string, args ...any) *Trap {
	return &Trap{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// hostTrap wraps a host function failure.
func hostTrap(err error) *Trap {
	return &Trap{Kind: TrapHostError, Cause: err}
}

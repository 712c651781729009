package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseCompile Phase = "compile" // lowering an instruction stream
	PhaseLoad    Phase = "load"    // module registration
	PhaseRuntime Phase = "runtime" // call/resume handling
	PhaseHost    Phase = "host"    // host function registration
	PhaseLimit   Phase = "limit"   // resource limit configuration
)

// Kind categorizes the error
type Kind string

const (
	KindUnsupported  Kind = "unsupported"
	KindTypeMismatch Kind = "type_mismatch"
	KindOutOfBounds  Kind = "out_of_bounds"
	KindInvalidInput Kind = "invalid_input"
	KindNotFound     Kind = "not_found"
	KindExists       Kind = "exists"
	KindRegistration Kind = "registration"
	KindArity        Kind = "arity"
	KindInFlight     Kind = "in_flight"
	KindClosed       Kind = "closed"
)

// Error is the structured error type used throughout the VM for everything
// that is not a Trap. Compile errors carry the function name and the
// instruction offset that could not be lowered.
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Func   string
	PC     int
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Func != "" {
		b.WriteString(" in ")
		b.WriteString(e.Func)
		if e.PC >= 0 {
			fmt.Fprintf(&b, "+%d", e.PC)
		}
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
			PC:    -1,
		},
	}
}

// Func sets the function name or printable index
func (b *Builder) Func(name string) *Builder {
	b.err.Func = name
	return b
}

// PC sets the instruction offset within the function body
func (b *Builder) PC(pc int) *Builder {
	b.err.PC = pc
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Unsupported creates a compile error for an opcode the lowering pass does
// not handle. Reported before execution ever starts.
func Unsupported(fn string, pc int, what string) *Error {
	return &Error{
		Phase:  PhaseCompile,
		Kind:   KindUnsupported,
		Func:   fn,
		PC:     pc,
		Detail: what,
	}
}

// Malformed creates a compile error for a structurally invalid body that
// slipped past validation (bad nesting, operand underflow).
func Malformed(fn string, pc int, detail string) *Error {
	return &Error{
		Phase:  PhaseCompile,
		Kind:   KindInvalidInput,
		Func:   fn,
		PC:     pc,
		Detail: detail,
	}
}

// TypeMismatch creates a compile-phase signature error.
func TypeMismatch(fn string, detail string) *Error {
	return &Error{
		Phase:  PhaseCompile,
		Kind:   KindTypeMismatch,
		Func:   fn,
		PC:     -1,
		Detail: detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		PC:     -1,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Exists creates an already-registered error
func Exists(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindExists,
		PC:     -1,
		Detail: fmt.Sprintf("%s %q already exists", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		PC:     -1,
		Detail: detail,
	}
}

// Arity creates an argument count/type mismatch error at the call boundary.
func Arity(detail string, args ...any) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindArity,
		PC:     -1,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// InFlight is returned when a Store already has an operation in progress.
func InFlight(detail string) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindInFlight,
		PC:     -1,
		Detail: detail,
	}
}

// Closed is returned when operating on a closed runtime or instance.
func Closed(what string) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindClosed,
		PC:     -1,
		Detail: fmt.Sprintf("%s is closed", what),
	}
}

// Registration creates a host function registration error
func Registration(idx uint32, name string, cause error) *Error {
	return &Error{
		Phase:  PhaseHost,
		Kind:   KindRegistration,
		PC:     -1,
		Detail: fmt.Sprintf("register host function %d (%s)", idx, name),
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		PC:     -1,
		Detail: detail,
		Cause:  cause,
	}
}

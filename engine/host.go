package engine

import (
	"context"

	"github.com/Neopallium/s1vm/isa"
)

// HostFn is a synchronous host function. It receives the Store for memory
// and global access, runs to completion, and must not re-enter module
// calls on the same Store (the driver guards against it). The result is
// ignored unless the registered signature declares one.
type HostFn func(ctx context.Context, s *Store, args []StackValue) (StackValue, error)

// AsyncResult is what an asynchronous host function produced so far.
type AsyncResult struct {
	// Value is the completed result when Pending is false.
	Value StackValue
	// Pending suspends the calling Store at the current unit boundary.
	// The completion value is supplied by the embedder on resume.
	Pending bool
}

// AsyncHostFn is a host function that may suspend the calling instance.
type AsyncHostFn func(ctx context.Context, s *Store, args []StackValue) (AsyncResult, error)

// HostFunc is a host-provided function registered under a stable integer
// index with a fixed signature. The compiler selects the dispatch kind
// (host call vs async call) from the registration, so a function must be
// registered before any module calling it is loaded.
type HostFunc struct {
	call      HostFn
	callAsync AsyncHostFn
	Name      string
	Type      isa.FuncType
}

// NewHostFunc wraps a synchronous host function.
func NewHostFunc(name string, sig isa.FuncType, fn HostFn) *HostFunc {
	return &HostFunc{Name: name, Type: sig, call: fn}
}

// NewAsyncHostFunc wraps a host function that may suspend.
func NewAsyncHostFunc(name string, sig isa.FuncType, fn AsyncHostFn) *HostFunc {
	return &HostFunc{Name: name, Type: sig, callAsync: fn}
}

// IsAsync reports whether calls to this function compile to the
// asynchronous dispatch kind.
func (h *HostFunc) IsAsync() bool {
	return h.callAsync != nil
}

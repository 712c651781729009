package runtime

import (
	"context"

	"github.com/Neopallium/s1vm/engine"
	"github.com/Neopallium/s1vm/errors"
	"github.com/Neopallium/s1vm/isa"
)

// CallSession is a suspended call. The instance's Store holds the live
// continuation (frames, operand stack, memory); the session is just the
// handle to drive it. Only one operation is in flight per instance, so a
// session stays valid until resumed to completion or abandoned.
type CallSession struct {
	inst    *Instance
	fn      *engine.Function
	waiting *engine.HostFunc
}

// WaitingOn returns the name of the async host function this call is
// suspended on, or "" for a fuel-slice suspension.
func (s *CallSession) WaitingOn() string {
	if s.waiting == nil {
		return ""
	}
	return s.waiting.Name
}

// WaitingType returns the result type the waiting host function expects
// on resume. ok is false for fuel-slice suspensions and for hosts with no
// result, which resume without a value.
func (s *CallSession) WaitingType() (isa.ValType, bool) {
	if s.waiting == nil || !s.waiting.Type.HasResult() {
		return 0, false
	}
	return s.waiting.Type.Results[0], true
}

// Resume continues the call. A suspension waiting on an async host
// function with a result takes exactly one value (the host call's
// completion); fuel-slice suspensions take none.
func (s *CallSession) Resume(ctx context.Context, results ...engine.Value) (*Outcome, error) {
	i := s.inst
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil, errors.Closed("instance")
	}
	if len(results) > 1 {
		return nil, errors.Arity("resume takes at most one value, got %d", len(results))
	}

	var raw *engine.StackValue
	if len(results) == 1 {
		if s.waiting != nil && s.waiting.Type.HasResult() {
			want := s.waiting.Type.Results[0]
			if results[0].Type != want {
				return nil, errors.Arity("resume value: want %s, got %s", want, results[0].Type)
			}
		}
		v := results[0].Stack()
		raw = &v
	}

	res, err := i.interp.Resume(ctx, raw)
	if err != nil {
		return nil, err
	}
	return i.outcome(s.fn, res), nil
}

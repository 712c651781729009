package engine

// DefaultStackLimit bounds the operand stack to 1M values unless an
// instance option overrides it.
const DefaultStackLimit = 1024 * 1024

// Stack is the operand stack for one Store. Call frames claim a region
// starting at their base slot: locals first, temporaries above. The height
// within a compiled block is statically determined by the compiler, so
// individual units do not re-check shapes, only the configured limit.
type Stack struct {
	values []StackValue
	limit  int
}

// NewStack creates a stack with the given value-count limit.
func NewStack(limit int) *Stack {
	if limit <= 0 {
		limit = DefaultStackLimit
	}
	return &Stack{limit: limit}
}

// Len returns the current stack height.
func (s *Stack) Len() int {
	return len(s.values)
}

// Push appends a value, trapping when the limit is reached.
func (s *Stack) Push(v StackValue) *Trap {
	if len(s.values) >= s.limit {
		return trapf(TrapStackOverflow, "limit=%d", s.limit)
	}
	s.values = append(s.values, v)
	return nil
}

// Pop removes and returns the top value.
func (s *Stack) Pop() (StackValue, *Trap) {
	n := len(s.values)
	if n == 0 {
		return 0, trapf(TrapStackOverflow, "pop on empty stack")
	}
	v := s.values[n-1]
	s.values = s.values[:n-1]
	return v, nil
}

// Reserve extends the stack with n zero slots (function locals).
func (s *Stack) Reserve(n int) *Trap {
	if len(s.values)+n > s.limit {
		return trapf(TrapStackOverflow, "limit=%d, reserve=%d", s.limit, n)
	}
	for i := 0; i < n; i++ {
		s.values = append(s.values, 0)
	}
	return nil
}

// Truncate drops all values above height n.
func (s *Stack) Truncate(n int) {
	if n < len(s.values) {
		s.values = s.values[:n]
	}
}

// At returns the value at absolute height idx. The caller guarantees idx is
// in range (frame-local indices are bounds-checked at the frame layer).
func (s *Stack) At(idx int) StackValue {
	return s.values[idx]
}

// Set writes the value at absolute height idx.
func (s *Stack) Set(idx int, v StackValue) {
	s.values[idx] = v
}

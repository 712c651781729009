package isa

import "fmt"

// ValType is a value type tag.
type ValType byte

// Value type encodings as defined in the WebAssembly binary format.
const (
	I32 ValType = 0x7F // 32-bit integer
	I64 ValType = 0x7E // 64-bit integer
	F32 ValType = 0x7D // 32-bit float
	F64 ValType = 0x7C // 64-bit float
)

// String returns the textual name of the value type.
func (t ValType) String() string {
	switch t {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	default:
		return fmt.Sprintf("valtype(0x%02X)", byte(t))
	}
}

// FuncType is a function signature. At most one result is supported.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// HasResult reports whether the signature produces a value.
func (t FuncType) HasResult() bool {
	return len(t.Results) > 0
}

// Equal reports whether two signatures match exactly.
func (t FuncType) Equal(o FuncType) bool {
	if len(t.Params) != len(o.Params) || len(t.Results) != len(o.Results) {
		return false
	}
	for i, p := range t.Params {
		if o.Params[i] != p {
			return false
		}
	}
	for i, r := range t.Results {
		if o.Results[i] != r {
			return false
		}
	}
	return true
}

// String formats the signature as "(i32, i32) -> i64".
func (t FuncType) String() string {
	s := "("
	for i, p := range t.Params {
		if i > 0 {
			s += ", "
		}
		s += p.String()
	}
	s += ")"
	if t.HasResult() {
		s += " -> " + t.Results[0].String()
	}
	return s
}

// FuncBody is one function's validated instruction stream plus its
// declared local slots (parameters are not repeated in Locals).
type FuncBody struct {
	Locals []ValType
	Code   []Instruction
}

// Function describes one module function for compilation.
type Function struct {
	Name string
	Type FuncType
	Body FuncBody
}

// NumLocals returns the total local slot count (params + declared locals).
func (f *Function) NumLocals() int {
	return len(f.Type.Params) + len(f.Body.Locals)
}

// Global describes a module global and its initial value (as a raw bit
// pattern of the global's type).
type Global struct {
	Type    ValType
	Mutable bool
	Init    uint64
}

// Export names a function for embedder calls.
type Export struct {
	Name    string
	FuncIdx uint32
}

// Module is a validated, decoded unit of functions plus metadata. It is the
// external input to the compiler; the compiler trusts that it was validated.
type Module struct {
	Funcs   []Function
	Globals []Global
	Exports []Export

	// Start, when non-nil, names a function run during instantiation.
	Start *uint32

	// MemoryMin/MemoryMax are the linear memory limits in pages.
	// MemoryMax of zero means no declared maximum.
	MemoryMin uint32
	MemoryMax uint32
}

// ExportedFunc resolves an export name to its function index.
func (m *Module) ExportedFunc(name string) (uint32, bool) {
	for _, e := range m.Exports {
		if e.Name == name {
			return e.FuncIdx, true
		}
	}
	return 0, false
}

// FuncName returns a printable name for a function index, falling back to
// the index when the function is unnamed.
func (m *Module) FuncName(idx uint32) string {
	if int(idx) < len(m.Funcs) && m.Funcs[idx].Name != "" {
		return m.Funcs[idx].Name
	}
	return fmt.Sprintf("func[%d]", idx)
}

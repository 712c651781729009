package isa

import "testing"

func TestBuilderWritesBodies(t *testing.T) {
	m := NewModuleBuilder().
		Func("inc", FuncType{Params: []ValType{I32}, Results: []ValType{I32}}).
		LocalGet(0).I32Const(1).I32Add().
		End().
		Export("inc", 0).
		Build()

	if len(m.Funcs) != 1 {
		t.Fatalf("funcs = %d, want 1", len(m.Funcs))
	}
	code := m.Funcs[0].Body.Code
	want := []Opcode{OpLocalGet, OpI32Const, OpI32Add, OpEnd}
	if len(code) != len(want) {
		t.Fatalf("code length = %d, want %d", len(code), len(want))
	}
	for i, op := range want {
		if code[i].Opcode != op {
			t.Errorf("code[%d] = %s, want %s", i, code[i].Opcode, op)
		}
	}
	if idx, ok := m.ExportedFunc("inc"); !ok || idx != 0 {
		t.Fatalf("ExportedFunc(inc) = %d, %v", idx, ok)
	}
}

func TestBuilderMultipleFuncs(t *testing.T) {
	m := NewModuleBuilder().
		Memory(1, 2).
		Global(I64, true, 7).
		Func("a", FuncType{}).Nop().End().
		Func("b", FuncType{}).Locals(I32, I64).Nop().End().
		Start(0).
		Build()

	if m.MemoryMin != 1 || m.MemoryMax != 2 {
		t.Fatalf("memory limits = %d/%d", m.MemoryMin, m.MemoryMax)
	}
	if len(m.Globals) != 1 || m.Globals[0].Init != 7 || !m.Globals[0].Mutable {
		t.Fatalf("globals = %+v", m.Globals)
	}
	if m.Start == nil || *m.Start != 0 {
		t.Fatalf("start = %v", m.Start)
	}
	if got := m.Funcs[1].NumLocals(); got != 2 {
		t.Fatalf("NumLocals = %d, want 2", got)
	}
}

func TestFuncTypeString(t *testing.T) {
	tests := []struct {
		sig  FuncType
		want string
	}{
		{FuncType{}, "()"},
		{FuncType{Params: []ValType{I32}}, "(i32)"},
		{FuncType{Params: []ValType{I32, F64}, Results: []ValType{I64}}, "(i32, f64) -> i64"},
	}
	for _, tt := range tests {
		if got := tt.sig.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestFuncNameFallback(t *testing.T) {
	m := NewModuleBuilder().
		Func("", FuncType{}).Nop().End().
		Build()

	if got := m.FuncName(0); got != "func[0]" {
		t.Errorf("FuncName(0) = %q", got)
	}
	if got := m.FuncName(9); got != "func[9]" {
		t.Errorf("FuncName(9) = %q", got)
	}
}

package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "compile error with location",
			err: &Error{
				Phase:  PhaseCompile,
				Kind:   KindUnsupported,
				Func:   "fib",
				PC:     12,
				Detail: "opcode 0xFC",
			},
			contains: []string{"[compile]", "unsupported", "fib+12", "opcode 0xFC"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseRuntime,
				Kind:  KindNotFound,
				PC:    -1,
			},
			contains: []string{"[runtime]", "not_found"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseHost,
				Kind:   KindRegistration,
				PC:     -1,
				Detail: "register host function 3",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[host]", "registration", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(PhaseLoad, KindInvalidInput, cause, "load module")
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to match the wrapped cause")
	}
	if err.Unwrap() != cause {
		t.Fatal("Unwrap did not return the cause")
	}
}

func TestError_Is(t *testing.T) {
	err := Unsupported("f", 3, "opcode")
	target := &Error{Phase: PhaseCompile, Kind: KindUnsupported}
	if !errors.Is(err, target) {
		t.Fatal("expected Is to match on phase+kind")
	}
	other := &Error{Phase: PhaseRuntime, Kind: KindUnsupported}
	if errors.Is(err, other) {
		t.Fatal("expected Is to reject different phase")
	}
}

func TestBuilder(t *testing.T) {
	err := New(PhaseCompile, KindInvalidInput).
		Func("start").
		PC(7).
		Detail("operand stack empty at %d", 7).
		Build()

	if err.Func != "start" || err.PC != 7 {
		t.Fatalf("builder did not set location: %+v", err)
	}
	if err.Detail != "operand stack empty at 7" {
		t.Fatalf("builder did not format detail: %q", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	if got := NotFound(PhaseRuntime, "export", "main").Error(); !strings.Contains(got, `export "main" not found`) {
		t.Fatalf("NotFound: %q", got)
	}
	if got := Exists(PhaseLoad, "module", "env").Error(); !strings.Contains(got, `module "env" already exists`) {
		t.Fatalf("Exists: %q", got)
	}
	if got := Arity("want %d args, got %d", 2, 1).Error(); !strings.Contains(got, "want 2 args, got 1") {
		t.Fatalf("Arity: %q", got)
	}
	if got := Closed("instance").Error(); !strings.Contains(got, "instance is closed") {
		t.Fatalf("Closed: %q", got)
	}
}

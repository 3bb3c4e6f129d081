package lua

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	glua "github.com/yuin/gopher-lua"

	"github.com/dshills/rewind/internal/logging"
)

func newTestState(t *testing.T, opts ...StateOption) *State {
	t.Helper()
	opts = append([]StateOption{WithLogger(logging.NewNop())}, opts...)
	state, err := NewState(opts...)
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	t.Cleanup(func() { state.Close() })
	return state
}

func TestStateDoString(t *testing.T) {
	state := newTestState(t)

	if err := state.DoString(context.Background(), "test", `x = 1 + 1`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}

	v := state.GetGlobal("x")
	num, ok := v.(glua.LNumber)
	if !ok {
		t.Fatalf("x is not a number, got %T", v)
	}
	if float64(num) != 2 {
		t.Errorf("x = %v, want 2", num)
	}
}

func TestStateDoStringErrors(t *testing.T) {
	state := newTestState(t)

	tests := []struct {
		name string
		code string
		want string
	}{
		{"syntax", `invalid lua code !!!`, ""},
		{"runtime", `error("boom")`, "boom"},
		{"nil call", `undefined_function()`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := state.DoString(context.Background(), tt.name, tt.code)
			if err == nil {
				t.Fatal("DoString() should fail")
			}
			if !strings.Contains(err.Error(), tt.name) {
				t.Errorf("error %q should name the chunk", err)
			}
			if tt.want != "" && !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should contain %q", err, tt.want)
			}
		})
	}
}

func TestStateDoFile(t *testing.T) {
	state := newTestState(t)

	path := filepath.Join(t.TempDir(), "script.lua")
	if err := os.WriteFile(path, []byte("answer = 6 * 7\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := state.DoFile(context.Background(), path); err != nil {
		t.Fatalf("DoFile() error = %v", err)
	}
	if got := state.GetGlobal("answer"); got.String() != "42" {
		t.Errorf("answer = %v, want 42", got)
	}

	if err := state.DoFile(context.Background(), filepath.Join(t.TempDir(), "missing.lua")); err == nil {
		t.Error("DoFile() on missing file should fail")
	}
}

func TestStateTimeout(t *testing.T) {
	state := newTestState(t, WithExecutionTimeout(50*time.Millisecond))

	start := time.Now()
	err := state.DoString(context.Background(), "loop", `while true do end`)
	if !errors.Is(err, ErrExecutionTimeout) {
		t.Fatalf("DoString() error = %v, want ErrExecutionTimeout", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("timeout took too long")
	}

	// The state stays usable.
	if err := state.DoString(context.Background(), "after", `y = 1`); err != nil {
		t.Errorf("DoString() after timeout error = %v", err)
	}
}

func TestStateCancelledContext(t *testing.T) {
	state := newTestState(t, WithExecutionTimeout(0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := state.DoString(ctx, "cancelled", `while true do end`)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("DoString() error = %v, want context.Canceled", err)
	}
}

func TestStateInstructionLimit(t *testing.T) {
	state := newTestState(t, WithInstructionLimit(10))
	state.RegisterModule("host", map[string]glua.LGFunction{
		"ping": func(L *glua.LState) int { return 0 },
	})

	if err := state.DoString(context.Background(), "under", `for i = 1, 10 do host.ping() end`); err != nil {
		t.Fatalf("DoString() within limit error = %v", err)
	}
	if got := state.Sandbox().InstructionCount(); got != 10 {
		t.Errorf("InstructionCount() = %d, want 10", got)
	}

	err := state.DoString(context.Background(), "over", `for i = 1, 11 do host.ping() end`)
	if !errors.Is(err, ErrInstructionLimit) {
		t.Fatalf("DoString() error = %v, want ErrInstructionLimit", err)
	}

	// Each execution gets a fresh budget.
	if err := state.DoString(context.Background(), "again", `host.ping()`); err != nil {
		t.Errorf("DoString() after reset error = %v", err)
	}
}

func TestStateInstructionLimitDisabled(t *testing.T) {
	state := newTestState(t, WithInstructionLimit(0))
	state.RegisterModule("host", map[string]glua.LGFunction{
		"ping": func(L *glua.LState) int { return 0 },
	})

	if err := state.DoString(context.Background(), "many", `for i = 1, 1000 do host.ping() end`); err != nil {
		t.Errorf("DoString() error = %v", err)
	}
}

func TestStateRegisterModule(t *testing.T) {
	state := newTestState(t)
	state.RegisterModule("mymod", map[string]glua.LGFunction{
		"double": func(L *glua.LState) int {
			L.Push(glua.LNumber(L.CheckNumber(1) * 2))
			return 1
		},
	})

	err := state.DoString(context.Background(), "mod", `
		a = mymod.double(4)
		local m = require("mymod")
		b = m.double(5)
	`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if got := state.GetGlobal("a").String(); got != "8" {
		t.Errorf("a = %s, want 8", got)
	}
	if got := state.GetGlobal("b").String(); got != "10" {
		t.Errorf("b = %s, want 10", got)
	}
}

func TestStateSandbox(t *testing.T) {
	state := newTestState(t)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "io", "os", "debug"} {
		if v := state.GetGlobal(name); v != glua.LNil {
			t.Errorf("%s should not be available, got %v", name, v.Type())
		}
	}

	for _, mod := range []string{"string", "table", "math"} {
		if err := state.DoString(context.Background(), mod, `require("`+mod+`")`); err != nil {
			t.Errorf("require(%q) error = %v", mod, err)
		}
	}

	for _, mod := range []string{"io", "os", "debug", "socket"} {
		err := state.DoString(context.Background(), mod, `require("`+mod+`")`)
		if err == nil || !strings.Contains(err.Error(), "not available") {
			t.Errorf("require(%q) error = %v, want not available", mod, err)
		}
	}
}

func TestStatePrint(t *testing.T) {
	var out bytes.Buffer
	state := newTestState(t, WithOutput(&out))

	if err := state.DoString(context.Background(), "print", `print("a", 1, true, nil)`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if got, want := out.String(), "a\t1\ttrue\tnil\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestStateClose(t *testing.T) {
	state, err := NewState(WithLogger(logging.NewNop()))
	if err != nil {
		t.Fatal(err)
	}

	if err := state.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if !state.IsClosed() {
		t.Error("IsClosed() should be true")
	}
	if err := state.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	if err := state.DoString(context.Background(), "closed", `x = 1`); !errors.Is(err, ErrStateClosed) {
		t.Errorf("DoString() on closed state error = %v, want ErrStateClosed", err)
	}
	if err := state.DoFile(context.Background(), "x.lua"); !errors.Is(err, ErrStateClosed) {
		t.Errorf("DoFile() on closed state error = %v, want ErrStateClosed", err)
	}
	if v := state.GetGlobal("x"); v != glua.LNil {
		t.Errorf("GetGlobal() on closed state = %v", v)
	}
}

package lua

import (
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// safeModules are the built-in libraries require may return.
var safeModules = map[string]bool{
	"string": true,
	"table":  true,
	"math":   true,
}

// Sandbox restricts Lua execution to safe operations.
type Sandbox struct {
	L *lua.LState

	instructionLimit int64
	instructionCount atomic.Int64
	exceeded         atomic.Bool

	output  io.Writer
	modules map[string]bool
}

// NewSandbox creates a sandbox for L. modules holds the names require may
// resolve besides the safe built-ins; the State adds to it as modules are
// registered.
func NewSandbox(L *lua.LState, instructionLimit int64, output io.Writer, modules map[string]bool) *Sandbox {
	if output == nil {
		output = io.Discard
	}
	if modules == nil {
		modules = make(map[string]bool)
	}
	return &Sandbox{
		L:                L,
		instructionLimit: instructionLimit,
		output:           output,
		modules:          modules,
	}
}

// Install sets up the sandbox restrictions.
func (s *Sandbox) Install() {
	for _, name := range []string{
		"dofile",
		"loadfile",
		"load",
		"loadstring",
	} {
		s.L.SetGlobal(name, lua.LNil)
	}

	s.installSafePrint()
	s.installSafeRequire()
}

// installSafePrint replaces print with one writing to the sandbox output.
func (s *Sandbox) installSafePrint() {
	s.L.SetGlobal("print", s.L.NewFunction(func(L *lua.LState) int {
		n := L.GetTop()
		parts := make([]string, n)
		for i := 1; i <= n; i++ {
			parts[i-1] = L.ToStringMeta(L.Get(i)).String()
		}
		fmt.Fprintln(s.output, strings.Join(parts, "\t"))
		return 0
	}))
}

// installSafeRequire clears the package search paths and replaces require
// with a whitelist of safe built-ins and registered modules.
func (s *Sandbox) installSafeRequire() {
	if pkg, ok := s.L.GetGlobal("package").(*lua.LTable); ok {
		s.L.SetField(pkg, "path", lua.LString(""))
		s.L.SetField(pkg, "cpath", lua.LString(""))
	}

	originalRequire := s.L.GetGlobal("require")
	if originalRequire == lua.LNil {
		return
	}

	s.L.SetGlobal("require", s.L.NewFunction(func(L *lua.LState) int {
		modName := L.CheckString(1)
		if !safeModules[modName] && !s.modules[modName] {
			L.RaiseError("module %q is not available", modName)
			return 0
		}
		L.Push(originalRequire)
		L.Push(lua.LString(modName))
		L.Call(1, 1)
		return 1
	}))
}

// Charged wraps fn so each call counts against the instruction limit. Once
// the limit is exceeded every charged call raises a Lua error.
func (s *Sandbox) Charged(fn lua.LGFunction) lua.LGFunction {
	return func(L *lua.LState) int {
		if s.IncrementInstructions(1) {
			s.exceeded.Store(true)
			L.RaiseError("%s", ErrInstructionLimit)
			return 0
		}
		return fn(L)
	}
}

// ResetInstructionCount resets the instruction counter.
func (s *Sandbox) ResetInstructionCount() {
	s.instructionCount.Store(0)
	s.exceeded.Store(false)
}

// InstructionCount returns the current instruction count.
func (s *Sandbox) InstructionCount() int64 {
	return s.instructionCount.Load()
}

// IncrementInstructions adds to the instruction count and returns true if
// the limit is exceeded.
func (s *Sandbox) IncrementInstructions(n int64) bool {
	count := s.instructionCount.Add(n)
	if s.instructionLimit <= 0 {
		return false
	}
	return count > s.instructionLimit
}

// Exceeded reports whether the limit was hit since the last reset.
func (s *Sandbox) Exceeded() bool {
	return s.exceeded.Load()
}

package lua

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/rewind/internal/logging"
)

// Default limits for Lua state.
const (
	DefaultExecutionTimeout = 30 * time.Second
	DefaultInstructionLimit = 10_000_000
)

// State wraps gopher-lua with a sandbox and execution limits.
//
// gopher-lua's LState is not goroutine-safe. The mutex serializes calls made
// through State; code holding the raw LState must do its own locking.
type State struct {
	L *lua.LState

	mu sync.Mutex

	executionTimeout time.Duration
	instructionLimit int64
	output           io.Writer
	logger           *slog.Logger

	sandbox *Sandbox
	modules map[string]bool
	closed  bool
}

// StateOption configures a State.
type StateOption func(*State)

// WithExecutionTimeout bounds each DoString and DoFile. Zero disables the
// timeout; the caller's context still applies.
func WithExecutionTimeout(d time.Duration) StateOption {
	return func(s *State) {
		s.executionTimeout = d
	}
}

// WithInstructionLimit sets the host call budget per execution. Zero or
// less disables it.
func WithInstructionLimit(limit int64) StateOption {
	return func(s *State) {
		s.instructionLimit = limit
	}
}

// WithOutput redirects Lua's print. The default is os.Stdout.
func WithOutput(w io.Writer) StateOption {
	return func(s *State) {
		s.output = w
	}
}

// WithLogger sets the logger used for script diagnostics.
func WithLogger(l *slog.Logger) StateOption {
	return func(s *State) {
		s.logger = l
	}
}

// NewState creates a new sandboxed Lua state.
func NewState(opts ...StateOption) (*State, error) {
	state := &State{
		executionTimeout: DefaultExecutionTimeout,
		instructionLimit: DefaultInstructionLimit,
		output:           os.Stdout,
		modules:          make(map[string]bool),
	}
	for _, opt := range opts {
		opt(state)
	}
	if state.logger == nil {
		state.logger = logging.Component(nil, "lua")
	}

	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})
	state.L = L

	if err := openSafeLibraries(L); err != nil {
		L.Close()
		return nil, fmt.Errorf("open libraries: %w", err)
	}

	state.sandbox = NewSandbox(L, state.instructionLimit, state.output, state.modules)
	state.sandbox.Install()

	return state, nil
}

// openSafeLibraries opens the libraries a script may use. io, os and debug
// are never opened.
func openSafeLibraries(L *lua.LState) error {
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.LoadLibName, lua.OpenPackage},
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.fn),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			return fmt.Errorf("%s: %w", lib.name, err)
		}
	}
	return nil
}

// DoString executes a Lua chunk. name labels the chunk in error messages.
func (s *State) DoString(ctx context.Context, name, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}
	return s.run(ctx, name, func() error {
		fn, err := s.L.Load(strings.NewReader(code), name)
		if err != nil {
			return err
		}
		s.L.Push(fn)
		return s.L.PCall(0, lua.MultRet, nil)
	})
}

// DoFile executes a Lua file.
func (s *State) DoFile(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}
	return s.run(ctx, path, func() error {
		return s.L.DoFile(path)
	})
}

// run executes fn with the context, timeout and instruction budget applied.
func (s *State) run(ctx context.Context, name string, fn func() error) error {
	if s.executionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.executionTimeout)
		defer cancel()
	}

	s.sandbox.ResetInstructionCount()
	top := s.L.GetTop()
	s.L.SetContext(ctx)
	defer func() {
		s.L.RemoveContext()
		s.L.SetTop(top)
	}()

	start := time.Now()
	err := s.doWithRecovery(fn)
	s.logger.Debug("script finished",
		"script", name,
		"duration", time.Since(start),
		"host_calls", s.sandbox.InstructionCount(),
		"err", err,
	)

	switch {
	case err == nil:
		return nil
	case s.sandbox.Exceeded():
		return fmt.Errorf("%s: %w", name, ErrInstructionLimit)
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", name, ErrExecutionTimeout)
	case ctx.Err() != nil:
		return fmt.Errorf("%s: %w", name, ctx.Err())
	}
	return fmt.Errorf("%s: %w", name, err)
}

// doWithRecovery executes a function with panic recovery.
func (s *State) doWithRecovery(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// NewFunction wraps fn so each call is charged against the instruction
// limit.
func (s *State) NewFunction(fn lua.LGFunction) *lua.LFunction {
	return s.L.NewFunction(s.sandbox.Charged(fn))
}

// RegisterModule installs funcs as a global table called name and makes it
// loadable with require(name).
func (s *State) RegisterModule(name string, funcs map[string]lua.LGFunction) *lua.LTable {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	mod := s.L.NewTable()
	for fname, fn := range funcs {
		s.L.SetField(mod, fname, s.NewFunction(fn))
	}
	s.installModule(name, mod)
	return mod
}

// SetModule installs a prepared table as a global and makes it loadable
// with require(name).
func (s *State) SetModule(name string, mod *lua.LTable) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.installModule(name, mod)
}

func (s *State) installModule(name string, mod *lua.LTable) {
	s.L.SetGlobal(name, mod)
	s.L.PreloadModule(name, func(L *lua.LState) int {
		L.Push(mod)
		return 1
	})
	s.modules[name] = true
}

// GetGlobal returns a global variable value.
func (s *State) GetGlobal(name string) lua.LValue {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return lua.LNil
	}
	return s.L.GetGlobal(name)
}

// Sandbox returns the state's sandbox.
func (s *State) Sandbox() *Sandbox {
	return s.sandbox
}

// IsClosed returns true if the state has been closed.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases all resources associated with the Lua state.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.L.Close()
	s.closed = true
	return nil
}

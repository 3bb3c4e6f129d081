package app

import (
	"errors"
	"testing"
)

func TestOperationError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *OperationError
		expected string
	}{
		{"nil error", nil, ""},
		{"op only", &OperationError{Op: "run"}, "run"},
		{"op and target", &OperationError{Op: "run", Target: "edit.lua"}, "run edit.lua"},
		{"full error chain", &OperationError{Op: "run", Target: "edit.lua", Err: errors.New("boom")}, "run edit.lua: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestOperationError_Unwrap(t *testing.T) {
	inner := errors.New("inner error")
	err := NewOperationError("run", "edit.lua", inner)

	if !errors.Is(err, inner) {
		t.Error("errors.Is should find the inner error")
	}

	var nilErr *OperationError
	if nilErr.Unwrap() != nil {
		t.Error("expected nil from Unwrap() on nil receiver")
	}
}

func TestComponentError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *ComponentError
		expected string
	}{
		{"nil", nil, ""},
		{"component only", &ComponentError{Component: "lua"}, "lua"},
		{"with action", &ComponentError{Component: "lua", Action: "close"}, "lua: close"},
		{"with error", &ComponentError{Component: "lua", Err: errors.New("x")}, "lua: x"},
		{"full", NewComponentError("watcher", "close", errors.New("x")), "watcher: close: x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestInitError(t *testing.T) {
	inner := errors.New("bad file")
	err := &InitError{Component: "config", Err: inner}

	if got := err.Error(); got != "init config: bad file" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, inner) {
		t.Error("errors.Is should find the inner error")
	}
}

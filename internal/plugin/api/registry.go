package api

import (
	"fmt"
	"sort"
	"sync"

	plua "github.com/dshills/rewind/internal/plugin/lua"
)

// Module is a Lua API module that can be installed into a State.
type Module interface {
	// Name returns the module name, which is also its global name.
	Name() string

	// Register installs the module into the Lua state.
	Register(s *plua.State) error
}

// Registry manages API modules and their registration.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]Module
}

// NewRegistry creates a new API registry.
func NewRegistry() *Registry {
	return &Registry{
		modules: make(map[string]Module),
	}
}

// Register adds a module to the registry.
func (r *Registry) Register(mod Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[mod.Name()]; exists {
		return fmt.Errorf("module %q already registered", mod.Name())
	}
	r.modules[mod.Name()] = mod
	return nil
}

// Get returns a module by name.
func (r *Registry) Get(name string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mod, ok := r.modules[name]
	return mod, ok
}

// List returns all registered module names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InjectAll installs every registered module into s.
func (r *Registry) InjectAll(s *plua.State) error {
	for _, name := range r.List() {
		mod, _ := r.Get(name)
		if err := mod.Register(s); err != nil {
			return fmt.Errorf("failed to register module %q: %w", name, err)
		}
	}
	return nil
}

// Context provides the host objects API modules operate on.
type Context struct {
	// History records and replays changes.
	History HistoryProvider

	// Scene is the document scripts edit.
	Scene SceneProvider
}

// DefaultRegistry creates a registry with the history and scene modules.
func DefaultRegistry(ctx *Context) (*Registry, error) {
	r := NewRegistry()
	for _, mod := range []Module{
		NewHistoryModule(ctx),
		NewSceneModule(ctx),
	} {
		if err := r.Register(mod); err != nil {
			return nil, fmt.Errorf("failed to register module %q: %w", mod.Name(), err)
		}
	}
	return r, nil
}

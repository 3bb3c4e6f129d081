package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dshills/rewind/internal/config"
	"github.com/dshills/rewind/internal/engine/history"
	"github.com/dshills/rewind/internal/logging"
	"github.com/dshills/rewind/internal/metrics"
	"github.com/dshills/rewind/internal/plugin/api"
	plua "github.com/dshills/rewind/internal/plugin/lua"
	"github.com/dshills/rewind/internal/scene"
)

// bootstrapper handles component initialization with proper cleanup on failure.
type bootstrapper struct {
	app       *Application
	opts      Options
	initOrder []string
}

// newBootstrapper creates a new bootstrapper for the application.
func newBootstrapper(app *Application, opts Options) *bootstrapper {
	return &bootstrapper{
		app:       app,
		opts:      opts,
		initOrder: make([]string, 0, 7),
	}
}

// bootstrap initializes all components in dependency order.
// On failure, it cleans up already-initialized components.
func (b *bootstrapper) bootstrap() error {
	for _, step := range []func() error{
		b.initConfig,
		b.initLogging,
		b.initMetrics,
		b.initHistory,
		b.initScene,
		b.initLua,
		b.initWatcher,
	} {
		if err := step(); err != nil {
			b.cleanup()
			return err
		}
	}

	b.app.logger.Debug("application initialized", "components", b.initOrder)
	return nil
}

// initConfig loads the configuration file and environment overrides.
func (b *bootstrapper) initConfig() error {
	if b.opts.Config != nil {
		if err := b.opts.Config.Validate(); err != nil {
			return &InitError{Component: "config", Err: err}
		}
		b.app.config = *b.opts.Config
	} else {
		cfg, err := config.Load(b.opts.ConfigPath)
		if err != nil {
			return &InitError{Component: "config", Err: err}
		}
		b.app.config = cfg
	}

	b.initOrder = append(b.initOrder, "config")
	return nil
}

// initLogging builds the application logger.
func (b *bootstrapper) initLogging() error {
	lc := b.app.config.LoggerConfig()
	lc.Output = b.opts.LogOutput
	if b.opts.LogLevel != "" {
		lc.Level = b.opts.LogLevel
	}

	b.app.logger, b.app.level = logging.New(lc)
	b.initOrder = append(b.initOrder, "logging")
	return nil
}

// initMetrics creates a private registry when metrics are enabled.
func (b *bootstrapper) initMetrics() error {
	cfg := b.app.config.Metrics
	if !cfg.Enabled {
		return nil
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	b.app.registry = reg
	b.app.metrics = metrics.New(cfg.Namespace, reg)

	b.initOrder = append(b.initOrder, "metrics")
	return nil
}

// initHistory creates the history manager and makes it the default.
func (b *bootstrapper) initHistory() error {
	cfg := b.app.config.History
	b.app.history = history.NewManager(
		history.WithLogger(logging.Component(b.app.logger, "history")),
		history.WithMetrics(b.app.metrics),
		history.WithMaxItems(cfg.MaxItems),
		history.WithNesting(b.app.config.Nesting()),
		history.WithLeakDetection(cfg.LeakDetection),
	)
	history.SetDefault(b.app.history)

	b.initOrder = append(b.initOrder, "history")
	return nil
}

// initScene creates the empty document scripts edit.
func (b *bootstrapper) initScene() error {
	b.app.scene = scene.New(scene.WithClonedValues(b.app.config.History.CloneValues))
	b.initOrder = append(b.initOrder, "scene")
	return nil
}

// initLua creates the sandboxed Lua state and installs the API modules.
func (b *bootstrapper) initLua() error {
	cfg := b.app.config.Script
	opts := []plua.StateOption{
		plua.WithExecutionTimeout(cfg.Timeout),
		plua.WithInstructionLimit(int64(cfg.InstructionLimit)),
		plua.WithLogger(logging.Component(b.app.logger, "lua")),
	}
	if b.opts.Output != nil {
		opts = append(opts, plua.WithOutput(b.opts.Output))
	}

	state, err := plua.NewState(opts...)
	if err != nil {
		return &InitError{Component: "lua", Err: err}
	}
	b.app.lua = state
	b.initOrder = append(b.initOrder, "lua")

	registry, err := api.DefaultRegistry(&api.Context{
		History: b.app.history,
		Scene:   b.app.scene,
	})
	if err != nil {
		return &InitError{Component: "lua api", Err: err}
	}
	if err := registry.InjectAll(state); err != nil {
		return &InitError{Component: "lua api", Err: err}
	}
	return nil
}

// initWatcher starts config hot reload when requested.
func (b *bootstrapper) initWatcher() error {
	if !b.opts.Watch || b.opts.ConfigPath == "" {
		return nil
	}

	logger := logging.Component(b.app.logger, "config")
	w, err := config.Watch(b.opts.ConfigPath, func(cfg config.Config, err error) {
		if err != nil {
			logger.Warn("config reload failed", "path", b.opts.ConfigPath, "err", err)
			return
		}
		b.app.ApplyConfig(cfg)
	})
	if err != nil {
		return &InitError{Component: "config watcher", Err: err}
	}
	b.app.watcher = w

	b.initOrder = append(b.initOrder, "watcher")
	return nil
}

// cleanup releases components initialized before a failure, in reverse
// order.
func (b *bootstrapper) cleanup() {
	for i := len(b.initOrder) - 1; i >= 0; i-- {
		switch b.initOrder[i] {
		case "watcher":
			if b.app.watcher != nil {
				_ = b.app.watcher.Close()
			}
		case "lua":
			if b.app.lua != nil {
				_ = b.app.lua.Close()
			}
		case "history":
			if history.Default() == b.app.history {
				history.SetDefault(nil)
			}
		}
	}
}

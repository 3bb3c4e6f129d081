// Package app wires configuration, logging, metrics, the history manager,
// the scene document and the Lua runtime into one application.
package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dshills/rewind/internal/config"
	"github.com/dshills/rewind/internal/config/watcher"
	"github.com/dshills/rewind/internal/engine/history"
	"github.com/dshills/rewind/internal/logging"
	"github.com/dshills/rewind/internal/metrics"
	plua "github.com/dshills/rewind/internal/plugin/lua"
	"github.com/dshills/rewind/internal/scene"
)

// Application is the central coordinator for all rewind components.
type Application struct {
	mu sync.RWMutex

	// Core infrastructure
	config   config.Config
	logger   *slog.Logger
	level    *slog.LevelVar
	registry *prometheus.Registry
	metrics  *metrics.History

	// Domain
	history *history.Manager
	scene   *scene.Document
	lua     *plua.State
	watcher *watcher.Watcher

	closed atomic.Bool

	opts Options
}

// Options configures the application.
type Options struct {
	// ConfigPath is the path to a TOML or YAML configuration file. A
	// missing file leaves the defaults in place.
	ConfigPath string

	// Config, when set, is used instead of loading ConfigPath.
	Config *config.Config

	// Watch reloads the configuration file when it changes.
	Watch bool

	// LogLevel overrides the configured log level.
	LogLevel string

	// Output receives script print output. Defaults to os.Stdout.
	Output io.Writer

	// LogOutput receives log records. Defaults to os.Stderr.
	LogOutput io.Writer
}

// New creates a new Application with the given options.
func New(opts Options) (*Application, error) {
	app := &Application{opts: opts}
	if err := newBootstrapper(app, opts).bootstrap(); err != nil {
		return nil, err
	}
	return app, nil
}

// RunScripts executes the Lua scripts in order, stopping at the first
// failure.
func (app *Application) RunScripts(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return ErrNoScripts
	}
	if app.closed.Load() {
		return ErrClosed
	}

	for _, path := range paths {
		app.logger.Debug("running script", "script", path)
		if err := app.lua.DoFile(ctx, path); err != nil {
			app.logger.Error("script failed", "script", path, "err", err)
			return NewOperationError("run", path, err)
		}
		app.logger.Info("script finished", "script", path, "items", app.history.Len())
	}
	return nil
}

// RunString executes a Lua chunk. name labels it in errors.
func (app *Application) RunString(ctx context.Context, name, code string) error {
	if app.closed.Load() {
		return ErrClosed
	}
	if err := app.lua.DoString(ctx, name, code); err != nil {
		return NewOperationError("run", name, err)
	}
	return nil
}

// ApplyConfig applies the settings that can change at runtime: the log
// level and the history cap. Other changes are logged and ignored until
// restart.
func (app *Application) ApplyConfig(cfg config.Config) {
	app.mu.Lock()
	old := app.config
	app.config = cfg
	app.mu.Unlock()

	if app.opts.LogLevel == "" {
		app.level.Set(logging.ParseLevel(cfg.Logging.Level))
	}
	app.history.SetMaxItems(cfg.History.MaxItems)

	if old.History.Nesting != cfg.History.Nesting ||
		old.History.CloneValues != cfg.History.CloneValues ||
		old.History.LeakDetection != cfg.History.LeakDetection ||
		old.Script != cfg.Script ||
		old.Metrics != cfg.Metrics ||
		old.Logging.Format != cfg.Logging.Format {
		app.logger.Warn("configuration changes need a restart to take effect")
	}
	app.logger.Info("configuration applied",
		"level", cfg.Logging.Level,
		"max_items", cfg.History.MaxItems,
	)
}

// Config returns the configuration in effect.
func (app *Application) Config() config.Config {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.config
}

// Logger returns the application logger.
func (app *Application) Logger() *slog.Logger {
	return app.logger
}

// History returns the history manager.
func (app *Application) History() *history.Manager {
	return app.history
}

// Scene returns the scene document.
func (app *Application) Scene() *scene.Document {
	return app.scene
}

// Gatherer returns the metrics registry, or nil when metrics are disabled.
func (app *Application) Gatherer() prometheus.Gatherer {
	if app.registry == nil {
		return nil
	}
	return app.registry
}

// Shutdown releases the Lua runtime and stops the config watcher. It is
// safe to call more than once.
func (app *Application) Shutdown() error {
	if !app.closed.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error
	if app.watcher != nil {
		if err := app.watcher.Close(); err != nil {
			errs = append(errs, NewComponentError("watcher", "close", err))
		}
	}
	if app.lua != nil {
		if err := app.lua.Close(); err != nil {
			errs = append(errs, NewComponentError("lua", "close", err))
		}
	}
	if history.Default() == app.history {
		history.SetDefault(nil)
	}

	app.logger.Debug("application shut down")
	return errors.Join(errs...)
}

package config

import (
	"github.com/dshills/rewind/internal/config/watcher"
)

// Watch reloads the configuration whenever the file at path changes and
// passes the result to fn. A reload that fails to load or validate is
// passed to fn as an error and the previous configuration stays in effect.
// The returned watcher must be closed by the caller.
func Watch(path string, fn func(Config, error), opts ...watcher.Option) (*watcher.Watcher, error) {
	w, err := watcher.New(opts...)
	if err != nil {
		return nil, err
	}

	w.OnChange(func(ev watcher.Event) {
		if ev.Op == watcher.OpRemove || ev.Op == watcher.OpRename {
			return
		}
		fn(Load(path))
	})
	w.OnError(func(err error) {
		fn(Config{}, err)
	})

	if err := w.Watch(path); err != nil {
		_ = w.Close()
		return nil, err
	}
	return w, nil
}

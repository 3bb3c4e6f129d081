package history

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dshills/rewind/internal/metrics"
)

// Nesting selects how a newly opened scope discovers its enclosing scope.
type Nesting int

const (
	// NestOutermost claims the active-scope slot only when it is empty, so
	// every nested scope merges into the outermost active one.
	NestOutermost Nesting = iota

	// NestImmediate makes each new scope the active one and restores the
	// slot to the parent on completion, so a scope merges into the scope
	// opened immediately before it.
	NestImmediate
)

// String returns the configuration name of the mode.
func (n Nesting) String() string {
	switch n {
	case NestOutermost:
		return "outermost"
	case NestImmediate:
		return "immediate"
	default:
		return fmt.Sprintf("Nesting(%d)", int(n))
	}
}

// ParseNesting parses "outermost" or "immediate". The empty string selects
// NestOutermost.
func ParseNesting(s string) (Nesting, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "outermost":
		return NestOutermost, nil
	case "immediate":
		return NestImmediate, nil
	default:
		return NestOutermost, fmt.Errorf("history: unknown nesting mode %q", s)
	}
}

// Option configures a Manager during creation.
type Option func(*Manager)

// WithLogger sets the diagnostic sink for apply failures and scope misuse.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics records history activity on h.
func WithMetrics(h *metrics.History) Option {
	return func(m *Manager) {
		m.metrics = h
	}
}

// WithMaxItems caps the number of items kept. When exceeded the oldest items
// are dropped. Zero means unbounded.
func WithMaxItems(n int) Option {
	return func(m *Manager) {
		if n >= 0 {
			m.maxItems = n
		}
	}
}

// WithNesting sets the nesting mode for scopes opened on the manager.
func WithNesting(n Nesting) Option {
	return func(m *Manager) {
		m.nesting = n
	}
}

// WithLeakDetection enables or disables the diagnostic for scopes that are
// garbage collected without being completed. Enabled by default.
func WithLeakDetection(enabled bool) Option {
	return func(m *Manager) {
		m.leakDetection = enabled
	}
}

// Package metrics exposes Prometheus collectors for history activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "rewind"

// Result label values.
const (
	ResultOK    = "ok"
	ResultEmpty = "empty"
)

// Discard reason label values.
const (
	ReasonReplaying = "replaying"
	ReasonTruncated = "truncated"
	ReasonTrimmed   = "trimmed"
)

// History records history manager and change scope activity.
// A nil *History is valid and records nothing.
type History struct {
	commits        prometheus.Counter
	merges         prometheus.Counter
	undos          *prometheus.CounterVec
	redos          *prometheus.CounterVec
	applyFailures  *prometheus.CounterVec
	discarded      *prometheus.CounterVec
	leakedScopes   prometheus.Counter
	items          prometheus.Gauge
	cursor         prometheus.Gauge
	itemChangeSize prometheus.Histogram
}

// New creates and registers the history collectors on reg.
// A nil reg uses prometheus.DefaultRegisterer.
func New(namespace string, reg prometheus.Registerer) *History {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &History{
		commits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "commits_total",
			Help:      "History items committed.",
		}),
		merges: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "merges_total",
			Help:      "Nested change scopes merged into an enclosing scope.",
		}),
		undos: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "undo_total",
			Help:      "Undo requests by result.",
		}, []string{"result"}),
		redos: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "redo_total",
			Help:      "Redo requests by result.",
		}, []string{"result"}),
		applyFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "apply_failures_total",
			Help:      "Changes that failed while being undone or redone.",
		}, []string{"op"}),
		discarded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "discarded_total",
			Help:      "History items dropped instead of kept, by reason.",
		}, []string{"reason"}),
		leakedScopes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "leaked_scopes_total",
			Help:      "Change scopes reclaimed without being completed.",
		}),
		items: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "items",
			Help:      "History items currently held.",
		}),
		cursor: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "cursor",
			Help:      "Index of the next item to undo, -1 when nothing can be undone.",
		}),
		itemChangeSize: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "item_changes",
			Help:      "Number of changes per committed history item.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128},
		}),
	}
}

// Commit records a committed item of n changes.
func (h *History) Commit(n int) {
	if h == nil {
		return
	}
	h.commits.Inc()
	h.itemChangeSize.Observe(float64(n))
}

// Merge records a nested scope merged into its parent.
func (h *History) Merge() {
	if h == nil {
		return
	}
	h.merges.Inc()
}

// Undo records an undo request.
func (h *History) Undo(ok bool) {
	if h == nil {
		return
	}
	h.undos.WithLabelValues(result(ok)).Inc()
}

// Redo records a redo request.
func (h *History) Redo(ok bool) {
	if h == nil {
		return
	}
	h.redos.WithLabelValues(result(ok)).Inc()
}

// ApplyFailure records a change that failed during op ("undo" or "redo").
func (h *History) ApplyFailure(op string) {
	if h == nil {
		return
	}
	h.applyFailures.WithLabelValues(op).Inc()
}

// Discard records n items dropped for reason.
func (h *History) Discard(reason string, n int) {
	if h == nil || n <= 0 {
		return
	}
	h.discarded.WithLabelValues(reason).Add(float64(n))
}

// LeakedScope records a scope reclaimed without completion.
func (h *History) LeakedScope() {
	if h == nil {
		return
	}
	h.leakedScopes.Inc()
}

// State records the current history length and cursor.
func (h *History) State(items, cursor int) {
	if h == nil {
		return
	}
	h.items.Set(float64(items))
	h.cursor.Set(float64(cursor))
}

func result(ok bool) string {
	if ok {
		return ResultOK
	}
	return ResultEmpty
}

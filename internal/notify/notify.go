// Package notify provides property change notification.
//
// A Notifier lets components subscribe to changes of named properties and
// receive callbacks when they change. The history manager uses it to announce
// CanUndo/CanRedo transitions, and attr.Observable uses it to announce
// attribute changes on application objects.
package notify

import (
	"sync"
)

// Event describes a single property change.
type Event struct {
	// Property is the dot-separated name of the changed property.
	Property string

	// OldValue is the previous value (may be nil).
	OldValue any

	// NewValue is the current value (may be nil).
	NewValue any

	// Source identifies the publisher.
	Source string
}

// Observer is called when a property changes.
type Observer func(ev Event)

// Subscription represents an active observer subscription.
type Subscription struct {
	id       uint64
	property string
	notifier *Notifier
}

// Unsubscribe removes this subscription. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s != nil && s.notifier != nil {
		s.notifier.unsubscribe(s.id)
	}
}

// Property returns the property the subscription is bound to, or "" for
// subscriptions that receive every event.
func (s *Subscription) Property() string {
	return s.property
}

// Notifier manages property change subscriptions.
// The zero value is not usable; create one with New.
type Notifier struct {
	mu sync.RWMutex

	// Observers that receive every event
	global map[uint64]Observer

	// Property-specific observers
	byProperty map[string]map[uint64]Observer

	nextID uint64

	// Asynchronous delivery
	async  bool
	buffer chan Event
	done   chan struct{}
	wg     sync.WaitGroup

	closed bool
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithAsync enables asynchronous delivery through a buffered channel.
func WithAsync(bufferSize int) Option {
	return func(n *Notifier) {
		if bufferSize > 0 {
			n.async = true
			n.buffer = make(chan Event, bufferSize)
		}
	}
}

// New creates a new Notifier.
func New(opts ...Option) *Notifier {
	n := &Notifier{
		global:     make(map[uint64]Observer),
		byProperty: make(map[string]map[uint64]Observer),
		done:       make(chan struct{}),
	}

	for _, opt := range opts {
		opt(n)
	}

	if n.async {
		n.wg.Add(1)
		go n.processAsync()
	}

	return n
}

// Subscribe registers an observer for every event.
func (n *Notifier) Subscribe(observer Observer) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	n.global[id] = observer

	return &Subscription{id: id, notifier: n}
}

// SubscribeProperty registers an observer for one property.
// The observer is called for exact matches and for nested properties, so
// subscribing to "shape" receives "shape.Name".
func (n *Notifier) SubscribeProperty(property string, observer Observer) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++

	if n.byProperty[property] == nil {
		n.byProperty[property] = make(map[uint64]Observer)
	}
	n.byProperty[property][id] = observer

	return &Subscription{id: id, property: property, notifier: n}
}

// Notify sends an event to all matching observers.
// Synchronous notifiers call observers on the caller's goroutine, outside
// the notifier's lock.
func (n *Notifier) Notify(ev Event) {
	n.mu.RLock()
	if n.closed {
		n.mu.RUnlock()
		return
	}
	n.mu.RUnlock()

	if n.async {
		select {
		case n.buffer <- ev:
		case <-n.done:
		}
		return
	}

	n.deliver(ev)
}

// NotifySet is a convenience wrapper around Notify.
func (n *Notifier) NotifySet(property string, oldValue, newValue any, source string) {
	n.Notify(Event{
		Property: property,
		OldValue: oldValue,
		NewValue: newValue,
		Source:   source,
	})
}

// Len returns the number of active subscriptions.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()

	count := len(n.global)
	for _, observers := range n.byProperty {
		count += len(observers)
	}
	return count
}

// Close shuts down the notifier. It is safe to call Close multiple times.
// Pending asynchronous events are delivered before Close returns.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	n.mu.Unlock()

	close(n.done)
	n.wg.Wait()
}

func (n *Notifier) unsubscribe(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	delete(n.global, id)

	for property, observers := range n.byProperty {
		delete(observers, id)
		if len(observers) == 0 {
			delete(n.byProperty, property)
		}
	}
}

func (n *Notifier) deliver(ev Event) {
	n.mu.RLock()

	var observers []Observer
	for _, obs := range n.global {
		observers = append(observers, obs)
	}

	if pathObs, ok := n.byProperty[ev.Property]; ok {
		for _, obs := range pathObs {
			observers = append(observers, obs)
		}
	}
	for property, pathObs := range n.byProperty {
		if isParentProperty(property, ev.Property) {
			for _, obs := range pathObs {
				observers = append(observers, obs)
			}
		}
	}

	n.mu.RUnlock()

	for _, obs := range observers {
		obs(ev)
	}
}

func (n *Notifier) processAsync() {
	defer n.wg.Done()

	for {
		select {
		case ev := <-n.buffer:
			n.deliver(ev)
		case <-n.done:
			for {
				select {
				case ev := <-n.buffer:
					n.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

// isParentProperty reports whether parent is a strict prefix path of child,
// e.g. "shape" is a parent of "shape.Name".
func isParentProperty(parent, child string) bool {
	if parent == "" || len(parent) >= len(child) {
		return false
	}
	return child[:len(parent)] == parent && child[len(parent)] == '.'
}

// Batch collects events and delivers them together.
// The history manager fills a batch while it holds its lock and commits it
// after releasing the lock.
type Batch struct {
	notifier *Notifier
	mu       sync.Mutex
	events   []Event
}

// NewBatch creates a new batch bound to n.
func (n *Notifier) NewBatch() *Batch {
	return &Batch{notifier: n}
}

// Add appends an event to the batch.
func (b *Batch) Add(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

// Set appends a property change to the batch.
func (b *Batch) Set(property string, oldValue, newValue any, source string) {
	b.Add(Event{
		Property: property,
		OldValue: oldValue,
		NewValue: newValue,
		Source:   source,
	})
}

// Commit delivers all batched events in order and empties the batch.
func (b *Batch) Commit() {
	b.mu.Lock()
	events := b.events
	b.events = nil
	b.mu.Unlock()

	for _, ev := range events {
		b.notifier.Notify(ev)
	}
}

// Discard empties the batch without delivering.
func (b *Batch) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

// Len returns the number of pending events.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

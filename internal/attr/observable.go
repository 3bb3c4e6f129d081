package attr

import (
	"sync"

	"github.com/dshills/rewind/internal/notify"
)

// Observable gives an application type the Notifier capability. Embed it
// by value and subscribe with OnChange or OnAttribute:
//
//	type Shape struct {
//	    attr.Observable
//	    Name string
//	}
//
// The zero value is ready to use.
type Observable struct {
	once     sync.Once
	notifier *notify.Notifier
}

func (o *Observable) init() *notify.Notifier {
	o.once.Do(func() {
		o.notifier = notify.New()
	})
	return o.notifier
}

// AttributeChanged implements Notifier.
func (o *Observable) AttributeChanged(name string) {
	o.init().Notify(notify.Event{Property: name, Source: "attr"})
}

// OnChange registers fn for every attribute change.
func (o *Observable) OnChange(fn func(name string)) *notify.Subscription {
	return o.init().Subscribe(func(ev notify.Event) {
		fn(ev.Property)
	})
}

// OnAttribute registers fn for changes of one attribute.
func (o *Observable) OnAttribute(name string, fn func()) *notify.Subscription {
	return o.init().SubscribeProperty(name, func(notify.Event) {
		fn()
	})
}

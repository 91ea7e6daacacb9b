package models

import (
	"sync"
	"sync/atomic"
)

// Field identifies an observable property. Notifications carry only the
// identity; observers re-read the current value themselves.
type Field string

type Listener func(field Field)

type subscription struct {
	fn     Listener
	active atomic.Bool
}

// Notifier is a synchronous observer registry. Listeners run on the
// publishing goroutine in registration order.
type Notifier struct {
	mutex     sync.Mutex
	listeners []*subscription
}

// Subscribe registers fn and returns the function that removes it. The
// returned function may be called from inside a listener and more than once.
func (n *Notifier) Subscribe(fn Listener) func() {
	sub := &subscription{fn: fn}
	sub.active.Store(true)

	n.mutex.Lock()
	n.listeners = append(n.listeners, sub)
	n.mutex.Unlock()

	return func() {
		if !sub.active.Swap(false) {
			return
		}
		n.mutex.Lock()
		defer n.mutex.Unlock()
		kept := make([]*subscription, 0, len(n.listeners))
		for _, s := range n.listeners {
			if s != sub {
				kept = append(kept, s)
			}
		}
		n.listeners = kept
	}
}

func (n *Notifier) Publish(fields ...Field) {
	if len(fields) == 0 {
		return
	}

	n.mutex.Lock()
	listeners := n.listeners
	n.mutex.Unlock()

	for _, field := range fields {
		for _, sub := range listeners {
			if sub.active.Load() {
				sub.fn(field)
			}
		}
	}
}

func (n *Notifier) Len() int {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	return len(n.listeners)
}

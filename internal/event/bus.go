// Package event is the in-process notification channel shared by the session
// components. Delivery is synchronous and run-to-completion: a notification
// published from inside a handler is queued until every handler of the
// notification currently being delivered has returned.
package event

import "sync"

// Notification is a named event with an arbitrary payload.
type Notification struct {
	Name    string
	Payload any
}

// Handler receives notifications for the names it subscribed to.
type Handler func(Notification)

type subscription struct {
	owner string
	fn    Handler
}

// Bus maps notification names to ordered subscriber lists.
type Bus struct {
	mu          sync.Mutex
	subs        map[string][]subscription
	queue       []Notification
	dispatching bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// Subscribe registers fn for name under owner. Registering the same
// (name, owner) pair again is a no-op and reports false.
func (b *Bus) Subscribe(name, owner string, fn Handler) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, s := range b.subs[name] {
		if s.owner == owner {
			return false
		}
	}
	b.subs[name] = append(b.subs[name], subscription{owner: owner, fn: fn})
	return true
}

// Unsubscribe removes owner's handler for name.
func (b *Bus) Unsubscribe(name, owner string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[name]
	for i, s := range list {
		if s.owner == owner {
			b.subs[name] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Publish delivers n to every subscriber of n.Name in subscription order.
func (b *Bus) Publish(n Notification) {
	b.mu.Lock()
	b.queue = append(b.queue, n)
	if b.dispatching {
		b.mu.Unlock()
		return
	}
	b.dispatching = true

	for len(b.queue) > 0 {
		next := b.queue[0]
		b.queue = b.queue[1:]
		handlers := make([]subscription, len(b.subs[next.Name]))
		copy(handlers, b.subs[next.Name])
		b.mu.Unlock()

		for _, s := range handlers {
			s.fn(next)
		}

		b.mu.Lock()
	}

	b.dispatching = false
	b.mu.Unlock()
}

// Emit is shorthand for Publish(Notification{Name: name, Payload: payload}).
func (b *Bus) Emit(name string, payload any) {
	b.Publish(Notification{Name: name, Payload: payload})
}

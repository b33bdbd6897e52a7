package transport

import (
	"sync"
)

// Subscription is the handle returned by every On* call.
// Unsubscribe removes exactly this listener and is safe to call more than once.
type Subscription struct {
	id    uint64
	event string
	fn    func(any)
	reg   *listenerMap
}

// Event returns the event name the subscription listens to
func (s *Subscription) Event() string {
	return s.event
}

// Unsubscribe removes the listener
func (s *Subscription) Unsubscribe() {
	if s == nil || s.reg == nil {
		return
	}
	s.reg.remove(s)
}

// listenerMap manages listeners per event, in registration order
type listenerMap struct {
	mu     sync.RWMutex
	seq    uint64
	events map[string][]*Subscription
}

func newListenerMap() *listenerMap {
	return &listenerMap{
		events: make(map[string][]*Subscription),
	}
}

// add registers a listener
func (m *listenerMap) add(event string, fn func(any)) *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	sub := &Subscription{id: m.seq, event: event, fn: fn, reg: m}
	m.events[event] = append(m.events[event], sub)
	return sub
}

// remove unregisters a listener, reporting whether it was registered
func (m *listenerMap) remove(sub *Subscription) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	subs, exists := m.events[sub.event]
	if !exists {
		return false
	}

	removed := false
	remaining := make([]*Subscription, 0, len(subs))
	for _, s := range subs {
		if s.id == sub.id {
			removed = true
			continue
		}
		remaining = append(remaining, s)
	}

	if len(remaining) == 0 {
		delete(m.events, sub.event)
	} else {
		m.events[sub.event] = remaining
	}
	return removed
}

// get returns a copy of the listeners for an event
func (m *listenerMap) get(event string) []*Subscription {
	m.mu.RLock()
	defer m.mu.RUnlock()

	subs := m.events[event]
	if len(subs) == 0 {
		return nil
	}
	out := make([]*Subscription, len(subs))
	copy(out, subs)
	return out
}

// count returns the number of listeners for an event
func (m *listenerMap) count(event string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events[event])
}

// total returns the number of listeners across all events
func (m *listenerMap) total() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, subs := range m.events {
		n += len(subs)
	}
	return n
}

// clear drops every listener
func (m *listenerMap) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = make(map[string][]*Subscription)
}

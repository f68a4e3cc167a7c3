// Package events provides a small synchronous event emitter.
//
// Handlers run on the goroutine that triggers the event, in registration
// order, before Trigger returns. Every registration returns a Subscription
// handle; calling Off on it removes the handler. Once registers a handler
// that removes itself before it runs, so it fires at most once even when the
// same event is triggered again from inside the handler.
package events

import "sync"

// Event is delivered to handlers.
type Event struct {
	Name    string
	Source  any
	Payload any
}

// Handler receives events.
type Handler func(Event)

// Emitter dispatches named events to registered handlers.
// The zero value is ready to use.
type Emitter struct {
	mu       sync.Mutex
	handlers map[string][]*Subscription
}

// Subscription is the handle for one registered handler.
type Subscription struct {
	emitter *Emitter
	name    string
	handler Handler
	once    bool
	active  bool
}

// NewEmitter returns an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{}
}

// On registers h for the named event.
func (e *Emitter) On(name string, h Handler) *Subscription {
	return e.add(name, h, false)
}

// Once registers h for the next occurrence of the named event only.
func (e *Emitter) Once(name string, h Handler) *Subscription {
	return e.add(name, h, true)
}

func (e *Emitter) add(name string, h Handler, once bool) *Subscription {
	sub := &Subscription{emitter: e, name: name, handler: h, once: once, active: true}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.handlers == nil {
		e.handlers = make(map[string][]*Subscription)
	}
	e.handlers[name] = append(e.handlers[name], sub)
	return sub
}

// Trigger delivers payload to every handler registered for name, with the
// emitter as the event source.
func (e *Emitter) Trigger(name string, payload any) {
	e.Emit(Event{Name: name, Source: e, Payload: payload})
}

// Emit delivers evt to every handler registered for evt.Name.
func (e *Emitter) Emit(evt Event) {
	e.mu.Lock()
	subs := append([]*Subscription(nil), e.handlers[evt.Name]...)
	e.mu.Unlock()

	for _, sub := range subs {
		if sub.once {
			// Only the caller that wins the removal gets to run the handler.
			if !sub.Off() {
				continue
			}
		} else if !sub.Active() {
			continue
		}
		sub.handler(evt)
	}
}

// Count returns the number of active handlers for name.
func (e *Emitter) Count(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlers[name])
}

// Off removes the handler. It reports whether this call removed it; calling
// Off on an already removed subscription is a no-op returning false.
func (s *Subscription) Off() bool {
	if s == nil || s.emitter == nil {
		return false
	}
	e := s.emitter

	e.mu.Lock()
	defer e.mu.Unlock()
	if !s.active {
		return false
	}
	s.active = false

	subs := e.handlers[s.name]
	for i, candidate := range subs {
		if candidate == s {
			e.handlers[s.name] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(e.handlers[s.name]) == 0 {
		delete(e.handlers, s.name)
	}
	return true
}

// Active reports whether the subscription is still registered.
func (s *Subscription) Active() bool {
	if s == nil || s.emitter == nil {
		return false
	}
	s.emitter.mu.Lock()
	defer s.emitter.mu.Unlock()
	return s.active
}

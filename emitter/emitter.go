// Package emitter is the outward-facing publish/subscribe surface of the
// client. Emission is synchronous and in registration order; a panicking
// handler is recovered and logged so it cannot swallow delivery to the
// handlers registered after it.
package emitter

import (
	"sync"

	"go.uber.org/zap"
)

// Handler receives the payload of one emitted event.
type Handler func(payload any)

type subscription struct {
	fn      Handler
	once    bool
	removed bool
}

// Emitter dispatches named events to registered handlers.
type Emitter struct {
	mu       sync.Mutex
	sugar    *zap.SugaredLogger
	handlers map[string][]*subscription
}

// New returns an emitter logging handler panics through sugar.
func New(sugar *zap.SugaredLogger) *Emitter {
	return &Emitter{
		sugar:    sugar,
		handlers: make(map[string][]*subscription),
	}
}

// On registers fn for event and returns a function that unsubscribes it.
func (e *Emitter) On(event string, fn Handler) (off func()) {
	return e.add(event, fn, false)
}

// Once registers fn to run for at most one emission of event. The returned
// function unsubscribes it early.
func (e *Emitter) Once(event string, fn Handler) (off func()) {
	return e.add(event, fn, true)
}

func (e *Emitter) add(event string, fn Handler, once bool) func() {
	sub := &subscription{fn: fn, once: once}

	e.mu.Lock()
	e.handlers[event] = append(e.handlers[event], sub)
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		sub.removed = true
	}
}

// Emit synchronously delivers payload to every live handler of event, in
// registration order. Once-handlers are retired before their callback runs,
// so re-entrant emits cannot fire them twice.
func (e *Emitter) Emit(event string, payload any) {
	e.mu.Lock()
	subs := e.handlers[event]
	fire := make([]Handler, 0, len(subs))
	kept := subs[:0]
	for _, sub := range subs {
		if sub.removed {
			continue
		}
		fire = append(fire, sub.fn)
		if sub.once {
			sub.removed = true
			continue
		}
		kept = append(kept, sub)
	}
	e.handlers[event] = kept
	e.mu.Unlock()

	for _, fn := range fire {
		e.call(event, fn, payload)
	}
}

func (e *Emitter) call(event string, fn Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			e.sugar.Errorf("Event handler for [%s] panicked: %v", event, r)
		}
	}()
	fn(payload)
}

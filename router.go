package memq

import (
	"fmt"
	"sync"
)

// Router dispatches events to per-channel handlers. It implements Handler
// composition for brokers that carry several kinds of traffic on distinct
// channels.
type Router struct {
	mu       sync.Mutex
	handlers map[string]Handler
	fallback Handler
	l        Logger
}

// NewRouter initializes Router
func NewRouter() *Router {
	return &Router{
		handlers: make(map[string]Handler),
	}
}

// Handle registers a handler for the given channel. Registering the same
// channel twice is an error.
func (r *Router) Handle(channel string, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handlers[channel]; ok {
		return fmt.Errorf("handler for channel %q is already registered", channel)
	}
	r.handlers[channel] = h

	return nil
}

// Fallback sets the handler used for channels without a registration.
// Without a fallback such events fail and go through the retry path.
func (r *Router) Fallback(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = h
}

// SetLogger sets the logger
func (r *Router) SetLogger(l Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.l = l
}

// Handler returns the routing handler to pass to Broker.Subscribe.
func (r *Router) Handler() Handler {
	return func(e Event) error {
		r.mu.Lock()
		h, ok := r.handlers[e.Channel()]
		if !ok {
			h = r.fallback
		}
		l := r.l
		r.mu.Unlock()

		if h == nil {
			err := fmt.Errorf("no handler registered for channel %q", e.Channel())
			if l != nil {
				l.Error(err.Error())
			}
			return err
		}
		return h(e)
	}
}

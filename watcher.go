package gatekeeper

import "sync"

// IdentityHub is an in-process IdentityWatcher: an observer list that
// fans identity-state-change events out to subscribers. Adapters sit
// between a provider SDK's callback and Publish.
type IdentityHub struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]func(IdentityEvent)
	last      *IdentityEvent
	replay    bool
}

var _ IdentityWatcher = (*IdentityHub)(nil)

// IdentityHubOption customizes hub construction
type IdentityHubOption func(*IdentityHub)

// WithReplayLastEvent delivers the most recent event to new
// subscribers, matching providers that emit current state on attach.
func WithReplayLastEvent() IdentityHubOption {
	return func(h *IdentityHub) {
		h.replay = true
	}
}

// NewIdentityHub creates an empty hub
func NewIdentityHub(opts ...IdentityHubOption) *IdentityHub {
	h := &IdentityHub{
		listeners: map[int]func(IdentityEvent){},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}

	return h
}

// Subscribe registers a listener and returns its unsubscribe handle.
// The handle is idempotent.
func (h *IdentityHub) Subscribe(fn func(IdentityEvent)) Unsubscribe {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	var pending *IdentityEvent
	if h.replay && h.last != nil {
		event := *h.last
		pending = &event
	}
	h.mu.Unlock()

	if pending != nil {
		fn(*pending)
	}

	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

// Publish delivers an event to every current subscriber
func (h *IdentityHub) Publish(event IdentityEvent) {
	h.mu.Lock()
	h.last = &event
	listeners := make([]func(IdentityEvent), 0, len(h.listeners))
	for _, fn := range h.listeners {
		listeners = append(listeners, fn)
	}
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(event)
	}
}

// Listeners reports the current subscriber count, useful for verifying
// that page teardown released its subscription
func (h *IdentityHub) Listeners() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

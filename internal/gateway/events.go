package gateway

import (
	"encoding/json"
	"sort"
	"sync"
)

// Notification is one unsolicited message delivered to subscribers. Payload
// is the raw frame body; shapes are owned by the Gateway.
type Notification struct {
	Name    string
	Payload json.RawMessage
}

// Handler consumes notifications. Wire events run on the connection's frame
// loop in arrival order, so a handler that blocks delays every frame behind
// it; handlers needing RPC round trips should hand off to their own
// goroutine. Lifecycle notifications are emitted by whichever goroutine
// completes the transition and may run concurrently with frame dispatch.
type Handler func(Notification)

// Client lifecycle notifications share the subscriber stream with wire
// events.
const (
	NotifyConnected    = "connected"
	NotifyDisconnected = "disconnected"
)

// dispatcher fans notifications out to catch-all and named subscribers.
type dispatcher struct {
	mu      sync.Mutex
	nextID  uint64
	named   map[string]map[uint64]Handler
	generic map[uint64]Handler
}

func newDispatcher() *dispatcher {
	return &dispatcher{
		named:   make(map[string]map[uint64]Handler),
		generic: make(map[uint64]Handler),
	}
}

// subscribe registers h under one event name. The returned func removes the
// subscription and is safe to call more than once.
func (d *dispatcher) subscribe(name string, h Handler) func() {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	set, ok := d.named[name]
	if !ok {
		set = make(map[uint64]Handler)
		d.named[name] = set
	}
	set[id] = h
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if set, ok := d.named[name]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(d.named, name)
			}
		}
	}
}

// subscribeAll registers a catch-all handler receiving every notification.
func (d *dispatcher) subscribeAll(h Handler) func() {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.generic[id] = h
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.generic, id)
	}
}

// dispatch delivers n to catch-all subscribers first, then to subscribers
// registered under n.Name, each group in registration order. Returns the
// number of handlers invoked.
func (d *dispatcher) dispatch(n Notification) int {
	d.mu.Lock()
	handlers := make([]Handler, 0, len(d.generic))
	for _, id := range sortedHandlerIDs(d.generic) {
		handlers = append(handlers, d.generic[id])
	}
	if set, ok := d.named[n.Name]; ok {
		for _, id := range sortedHandlerIDs(set) {
			handlers = append(handlers, set[id])
		}
	}
	d.mu.Unlock()

	for _, h := range handlers {
		h(n)
	}
	return len(handlers)
}

func sortedHandlerIDs(m map[uint64]Handler) []uint64 {
	ids := make([]uint64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

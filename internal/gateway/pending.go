package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// callResult is the terminal outcome of one correlated request.
type callResult struct {
	payload json.RawMessage
	err     error
}

// pendingCall is one in-flight request. It stays in the table until response,
// timeout, or teardown removes it; whoever removes it delivers the result.
type pendingCall struct {
	id      string
	method  string
	started time.Time
	// conn is the socket the request went out on; teardown drains per socket.
	conn *websocket.Conn
	// done is buffered so delivery never blocks on the waiting caller.
	done chan callResult

	// timer is guarded by the owning table's mutex.
	timer *time.Timer
}

func (p *pendingCall) deliver(res callResult) {
	p.done <- res
}

// pendingCalls tracks in-flight requests by correlation id. Removing an
// entry transfers the exclusive right to deliver its result, so every call
// resolves exactly once no matter how response, timeout, and teardown race.
type pendingCalls struct {
	mu    sync.Mutex
	calls map[string]*pendingCall
}

func newPendingCalls() *pendingCalls {
	return &pendingCalls{calls: make(map[string]*pendingCall)}
}

// add registers the call; a false return means the id is already taken.
func (t *pendingCalls) add(c *pendingCall) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.calls[c.id]; ok {
		return false
	}
	t.calls[c.id] = c
	return true
}

// arm starts the deadline timer for id. A no-op when the call has already
// been resolved, which keeps late arming from leaking timers.
func (t *pendingCalls) arm(id string, d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.calls[id]
	if !ok {
		return
	}
	c.timer = time.AfterFunc(d, fn)
}

// has reports whether id belongs to an in-flight call.
func (t *pendingCalls) has(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.calls[id]
	return ok
}

// take removes and returns the call for id, stopping its timer. The caller
// that wins the take delivers the result.
func (t *pendingCalls) take(id string) (*pendingCall, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.calls[id]
	if !ok {
		return nil, false
	}
	delete(t.calls, id)
	if c.timer != nil {
		c.timer.Stop()
	}
	return c, true
}

// drain removes every pending call sent on conn and rejects each with err.
// Returns the number rejected. Calls issued on a different socket stay in
// the table untouched.
func (t *pendingCalls) drain(conn *websocket.Conn, err error) int {
	t.mu.Lock()
	calls := make([]*pendingCall, 0, len(t.calls))
	for id, c := range t.calls {
		if c.conn != conn {
			continue
		}
		if c.timer != nil {
			c.timer.Stop()
		}
		delete(t.calls, id)
		calls = append(calls, c)
	}
	t.mu.Unlock()

	for _, c := range calls {
		c.deliver(callResult{err: err})
	}
	return len(calls)
}

func (t *pendingCalls) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}

package gateway

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/danmuck/gatectl/internal/testutil/testlog"
)

func newCall(id string) *pendingCall {
	return &pendingCall{
		id:      id,
		method:  "test.op",
		started: time.Now(),
		done:    make(chan callResult, 1),
	}
}

func TestPendingAddRejectsDuplicateID(t *testing.T) {
	testlog.Start(t)
	table := newPendingCalls()

	if !table.add(newCall("a")) {
		t.Fatalf("first add should succeed")
	}
	if table.add(newCall("a")) {
		t.Fatalf("duplicate id must be rejected")
	}
	if table.size() != 1 {
		t.Fatalf("unexpected size: %d", table.size())
	}
}

func TestPendingTakeTransfersOwnershipOnce(t *testing.T) {
	testlog.Start(t)
	table := newPendingCalls()
	pc := newCall("a")
	table.add(pc)

	got, ok := table.take("a")
	if !ok || got != pc {
		t.Fatalf("take should return the registered call")
	}
	if _, ok := table.take("a"); ok {
		t.Fatalf("second take must fail")
	}

	got.deliver(callResult{payload: json.RawMessage(`{"ok":true}`)})
	res := <-pc.done
	if res.err != nil || string(res.payload) != `{"ok":true}` {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestPendingArmFiresDeadline(t *testing.T) {
	testlog.Start(t)
	table := newPendingCalls()
	pc := newCall("a")
	table.add(pc)

	fired := make(chan struct{})
	table.arm("a", 10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatalf("armed deadline never fired")
	}
}

func TestPendingArmAfterResolutionIsNoop(t *testing.T) {
	testlog.Start(t)
	table := newPendingCalls()
	pc := newCall("a")
	table.add(pc)
	table.take("a")

	fired := make(chan struct{}, 1)
	table.arm("a", time.Millisecond, func() { fired <- struct{}{} })

	select {
	case <-fired:
		t.Fatalf("deadline must not fire for a resolved call")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPendingTakeStopsDeadline(t *testing.T) {
	testlog.Start(t)
	table := newPendingCalls()
	pc := newCall("a")
	table.add(pc)

	fired := make(chan struct{}, 1)
	table.arm("a", 30*time.Millisecond, func() { fired <- struct{}{} })
	table.take("a")

	select {
	case <-fired:
		t.Fatalf("deadline must not fire after take")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPendingHasTracksLifetime(t *testing.T) {
	testlog.Start(t)
	table := newPendingCalls()

	if table.has("a") {
		t.Fatalf("empty table must not report a")
	}
	table.add(newCall("a"))
	if !table.has("a") {
		t.Fatalf("registered id must be reported")
	}
	table.take("a")
	if table.has("a") {
		t.Fatalf("taken id must not be reported")
	}
}

func TestPendingDrainRejectsEverything(t *testing.T) {
	testlog.Start(t)
	table := newPendingCalls()
	a, b := newCall("a"), newCall("b")
	table.add(a)
	table.add(b)

	cause := errors.New("socket gone")
	if n := table.drain(nil, cause); n != 2 {
		t.Fatalf("expected 2 rejected, got %d", n)
	}
	if table.size() != 0 {
		t.Fatalf("table should be empty after drain")
	}

	for _, pc := range []*pendingCall{a, b} {
		res := <-pc.done
		if !errors.Is(res.err, cause) {
			t.Fatalf("expected drain cause, got %v", res.err)
		}
	}
}

func TestPendingDrainScopedToConn(t *testing.T) {
	testlog.Start(t)
	table := newPendingCalls()
	dead, live := new(websocket.Conn), new(websocket.Conn)
	a, b := newCall("a"), newCall("b")
	a.conn, b.conn = dead, live
	table.add(a)
	table.add(b)

	cause := errors.New("socket gone")
	if n := table.drain(dead, cause); n != 1 {
		t.Fatalf("expected 1 rejected, got %d", n)
	}
	res := <-a.done
	if !errors.Is(res.err, cause) {
		t.Fatalf("expected drain cause, got %v", res.err)
	}

	select {
	case res := <-b.done:
		t.Fatalf("call on the live socket was rejected: %+v", res)
	default:
	}
	if !table.has("b") {
		t.Fatalf("call on the live socket must stay pending")
	}
}

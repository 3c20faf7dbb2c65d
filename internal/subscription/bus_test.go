package subscription

import (
	"errors"
	"sync"
	"testing"
)

type fakeConn struct {
	mu      sync.Mutex
	frames  []Frame
	failing bool
	closed  bool
}

func (f *fakeConn) WriteJSON(v any) error {
	if f.failing {
		return errors.New("write failed")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, v.(Frame))
	return nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func (f *fakeConn) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func TestConnectAutoSubscribesToAll(t *testing.T) {
	b := New(nil)
	conn := &fakeConn{}
	b.Connect(conn, "c1")
	if conn.count() != 1 || conn.frames[0].Event != "subscribed" || conn.frames[0].Channel != "all" {
		t.Fatalf("expected subscribed/all confirmation, got %+v", conn.frames)
	}
}

func TestBroadcastEventDedupesAcrossChannels(t *testing.T) {
	b := New(nil)
	conn := &fakeConn{}
	b.Connect(conn, "c1")
	b.Subscribe("c1", "queue.TRIAGE")

	b.BroadcastEvent("ticket.moved", map[string]any{"x": 1}, []string{"all", "queue.TRIAGE"})

	// 2 confirmations (subscribed:all, subscribed:queue.TRIAGE) + exactly 1 event frame.
	events := 0
	for _, f := range conn.frames {
		if f.Event == "ticket.moved" {
			events++
		}
	}
	if events != 1 {
		t.Fatalf("expected exactly one delivery despite double channel match, got %d", events)
	}
}

func TestBroadcastToChannelRemovesFailingClient(t *testing.T) {
	b := New(nil)
	good := &fakeConn{}
	bad := &fakeConn{failing: true}
	b.Connect(good, "good")
	b.Connect(bad, "bad")

	b.BroadcastToChannel("all", Frame{Event: "ping"})

	b.mu.RLock()
	_, stillThere := b.clients["bad"]
	b.mu.RUnlock()
	if stillThere {
		t.Fatalf("expected failing client to be disconnected")
	}
}

func TestUnsubscribeIdempotent(t *testing.T) {
	b := New(nil)
	conn := &fakeConn{}
	b.Connect(conn, "c1")
	b.Unsubscribe("c1", "queue.TRIAGE")
	b.Unsubscribe("c1", "queue.TRIAGE")
	if conn.count() != 3 { // subscribed:all + 2x unsubscribed confirmations
		t.Fatalf("expected 3 frames, got %d", conn.count())
	}
}

func TestSendToDeliversToOneClient(t *testing.T) {
	b := New(nil)
	c1 := &fakeConn{}
	c2 := &fakeConn{}
	b.Connect(c1, "c1")
	b.Connect(c2, "c2")

	if !b.SendTo("c1", Frame{Event: "pong"}) {
		t.Fatalf("expected SendTo to succeed for a known client")
	}
	if c1.count() != 2 { // subscribed:all + pong
		t.Fatalf("expected 2 frames for c1, got %d", c1.count())
	}
	if c2.count() != 1 { // subscribed:all only
		t.Fatalf("expected c2 untouched, got %d frames", c2.count())
	}
	if b.SendTo("ghost", Frame{Event: "pong"}) {
		t.Fatalf("expected SendTo to report false for an unknown client")
	}
}

func TestSendToFailureDisconnectsClient(t *testing.T) {
	b := New(nil)
	bad := &fakeConn{failing: true}
	b.Connect(bad, "bad")

	if b.SendTo("bad", Frame{Event: "pong"}) {
		t.Fatalf("expected SendTo to fail for a failing connection")
	}
	b.mu.RLock()
	_, stillThere := b.clients["bad"]
	b.mu.RUnlock()
	if stillThere {
		t.Fatalf("expected failing client to be disconnected")
	}
}

func TestDisconnectPurgesFromEveryChannel(t *testing.T) {
	b := New(nil)
	conn := &fakeConn{}
	b.Connect(conn, "c1")
	b.Subscribe("c1", "ticket.t1")
	b.Disconnect("c1")

	b.mu.RLock()
	_, inAll := b.byChannel["all"]["c1"]
	_, inTicket := b.byChannel["ticket.t1"]["c1"]
	b.mu.RUnlock()
	if inAll || inTicket {
		t.Fatalf("expected client purged from all channel indexes")
	}
}

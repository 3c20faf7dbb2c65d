package events

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ticketflow/ticketd/internal/ticket"
)

func newRecordingServer(t *testing.T, mu *sync.Mutex, hits *[]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		*hits = append(*hits, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
}

func waitForHits(t *testing.T, mu *sync.Mutex, hits *[]string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		got := len(*hits)
		mu.Unlock()
		if got >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d webhook hits", n)
}

type fakeBus struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeBus) BroadcastEvent(eventType string, data map[string]any, channels []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, eventType)
}

func (f *fakeBus) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestTicket() *ticket.Ticket {
	return ticket.New(ticket.SourceEmail, &ticket.EmailContent{From: "a@b.com", Subject: "s", Body: "b"}, ticket.PriorityMedium, "", "")
}

func TestPublishTicketCreatedBroadcasts(t *testing.T) {
	bus := &fakeBus{}
	p := New(bus, Config{}, nil)
	p.PublishTicketCreated(context.Background(), newTestTicket())

	if bus.count() != 1 || bus.calls[0] != TicketCreated {
		t.Fatalf("expected one ticket.created broadcast, got %+v", bus.calls)
	}
}

func TestChannelsForDedupesTicketAndQueueChannels(t *testing.T) {
	tk := newTestTicket()
	channels := channelsFor(tk, ticket.QueueInbox, ticket.QueueTriage, "agent-1")

	want := map[string]bool{
		"all": true, "tickets.all": true,
		"ticket." + tk.ID:            true,
		"queue." + string(tk.CurrentQueue): true,
		"queue.INBOX":  true,
		"queue.TRIAGE": true,
		"agent.agent-1": true,
	}
	if len(channels) != len(want) {
		t.Fatalf("expected %d channels, got %d: %v", len(want), len(channels), channels)
	}
	for _, c := range channels {
		if !want[c] {
			t.Fatalf("unexpected channel %q", c)
		}
	}
}

func TestPublishTicketResolvedSurvivesCancelledCallerContext(t *testing.T) {
	var hits []string
	var mu sync.Mutex

	srv := newRecordingServer(t, &mu, &hits)
	defer srv.Close()

	p := New(&fakeBus{}, Config{ResolutionURL: srv.URL + "/resolution"}, nil)

	tk := newTestTicket()
	_ = tk.MoveToQueue(ticket.QueueTriage)
	_ = tk.MarkResolved(ticket.ResolutionManual)

	// Handlers pass the request context, which is cancelled as soon as
	// the handler returns; the webhook POST must still go out.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.PublishTicketResolved(ctx, tk, nil)

	waitForHits(t, &mu, &hits, 1)
}

func TestPublishTicketResolvedMirrorsToResolutionAndCodingWebhooks(t *testing.T) {
	var hits []string
	var mu sync.Mutex

	srv := newRecordingServer(t, &mu, &hits)
	defer srv.Close()

	bus := &fakeBus{}
	p := New(bus, Config{ResolutionURL: srv.URL + "/resolution", CodingAgentURL: srv.URL + "/coding"}, nil)

	tk := newTestTicket()
	tk.AddTag("coding")
	_ = tk.MoveToQueue(ticket.QueueTriage)
	_ = tk.MarkResolved(ticket.ResolutionManual)

	p.PublishTicketResolved(context.Background(), tk, map[string]any{"raw": "data"})

	waitForHits(t, &mu, &hits, 2)

	mu.Lock()
	defer mu.Unlock()
	if len(hits) != 2 {
		t.Fatalf("expected 2 webhook hits (resolution + coding), got %d: %v", len(hits), hits)
	}
}

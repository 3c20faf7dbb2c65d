// Package events implements the event publisher: it
// computes the channel set for a state change, broadcasts it onto the
// subscription bus, and best-effort mirrors it to configured external
// webhooks. External delivery must never fail the originating
// operation.
package events

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ticketflow/ticketd/internal/ticket"
)

// Event type names.
const (
	TicketCreated       = "ticket.created"
	TicketUpdated       = "ticket.updated"
	TicketMoved         = "ticket.moved"
	TicketAssigned      = "ticket.assigned"
	TicketTriagePending = "ticket.triage_pending"
	TicketResolved      = "ticket.resolved"
	QueueStats          = "queue.stats"
)

// MirrorTimeout bounds the best-effort external webhook POST.
const MirrorTimeout = 8 * time.Second

// Broadcaster is the subset of the subscription bus the publisher
// needs. Satisfied structurally by *subscription.Bus.
type Broadcaster interface {
	BroadcastEvent(eventType string, data map[string]any, channels []string)
}

// Publisher fans typed events to the subscription bus and mirrors them
// to external webhooks.
type Publisher struct {
	bus Broadcaster

	// mirrorURL receives every published event, best-effort (N8N_AI_WEBHOOK_URL).
	mirrorURL string
	// resolutionURL receives ticket.resolved payloads shaped for the
	// outbound workflow engine (N8N_RESOLUTION_WEBHOOK_URL).
	resolutionURL string
	// codingAgentURL receives a dispatch when a resolved ticket carries
	// the "coding" tag (CODING_AGENT_WEBHOOK_URL).
	codingAgentURL string

	http   *http.Client
	logger *slog.Logger
}

// Config wires the optional external webhook endpoints.
type Config struct {
	MirrorURL      string
	ResolutionURL  string
	CodingAgentURL string
}

// New creates a Publisher broadcasting through bus and mirroring to cfg's URLs.
func New(bus Broadcaster, cfg Config, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		bus:            bus,
		mirrorURL:      cfg.MirrorURL,
		resolutionURL:  cfg.ResolutionURL,
		codingAgentURL: cfg.CodingAgentURL,
		http:           &http.Client{},
		logger:         logger,
	}
}

// channelsFor computes the channel set for a ticket-scoped event.
func channelsFor(t *ticket.Ticket, from, to ticket.Queue, assigneeID string) []string {
	channels := []string{"all", "tickets.all"}
	seen := map[string]struct{}{"all": {}, "tickets.all": {}}
	add := func(c string) {
		if _, ok := seen[c]; ok {
			return
		}
		seen[c] = struct{}{}
		channels = append(channels, c)
	}
	if t != nil {
		add("ticket." + t.ID)
		add("queue." + string(t.CurrentQueue))
	}
	if from != "" {
		add("queue." + string(from))
	}
	if to != "" {
		add("queue." + string(to))
	}
	if assigneeID != "" {
		add("agent." + assigneeID)
	}
	return channels
}

func (p *Publisher) publish(ctx context.Context, eventType string, data map[string]any, channels []string) {
	if p.bus != nil {
		p.bus.BroadcastEvent(eventType, data, channels)
	}
	if p.mirrorURL != "" {
		// Detached from the caller's context: handler-originated events
		// must outlive the request, and mirror applies its own timeout.
		go p.mirror(context.WithoutCancel(ctx), p.mirrorURL, mergeEvent(eventType, data))
	}
}

// PublishTicketCreated announces a newly ingested ticket.
func (p *Publisher) PublishTicketCreated(ctx context.Context, t *ticket.Ticket) {
	p.publish(ctx, TicketCreated, map[string]any{"ticket": t.ToMap()}, channelsFor(t, "", "", ""))
}

// PublishTicketUpdated announces a field-level mutation. changes
// carries just the changed fields.
func (p *Publisher) PublishTicketUpdated(ctx context.Context, t *ticket.Ticket, changes map[string]any) {
	p.publish(ctx, TicketUpdated, map[string]any{"ticket_id": t.ID, "changes": changes}, channelsFor(t, "", "", ""))
}

// PublishTicketMoved announces a queue transition.
func (p *Publisher) PublishTicketMoved(ctx context.Context, t *ticket.Ticket, from, to ticket.Queue, reason string) {
	data := map[string]any{
		"ticket_id": t.ID,
		"from":      string(from),
		"to":        string(to),
		"reason":    reason,
	}
	p.publish(ctx, TicketMoved, data, channelsFor(t, from, to, ""))
}

// PublishTicketAssigned announces an assignment.
func (p *Publisher) PublishTicketAssigned(ctx context.Context, t *ticket.Ticket, agentID string) {
	data := map[string]any{"ticket_id": t.ID, "assignee_id": agentID}
	p.publish(ctx, TicketAssigned, data, channelsFor(t, "", "", agentID))
}

// PublishTriagePending announces a ticket routed to manual triage.
func (p *Publisher) PublishTriagePending(ctx context.Context, t *ticket.Ticket) {
	p.publish(ctx, TicketTriagePending, map[string]any{"ticket": t.ToMap()}, channelsFor(t, "", "", ""))
}

// PublishQueueStats announces a queue-wide stats snapshot.
func (p *Publisher) PublishQueueStats(ctx context.Context, queue string, stats map[string]any) {
	p.publish(ctx, QueueStats, stats, []string{"all", "queue." + queue})
}

// PublishTicketResolved announces a resolution and additionally posts
// the resolution payload to the outbound workflow
// engine and, for tickets tagged "coding", dispatches to the coding
// agent webhook.
func (p *Publisher) PublishTicketResolved(ctx context.Context, t *ticket.Ticket, sourceData map[string]any) {
	data := map[string]any{"ticket": t.ToMap()}
	p.publish(ctx, TicketResolved, data, channelsFor(t, "", "", ""))

	if p.resolutionURL != "" {
		payload := map[string]any{
			"event":          TicketResolved,
			"ticket_id":      t.ID,
			"source":         string(t.Source),
			"source_data":    sourceData,
			"resolution":     string(t.ResolutionAction),
			"ticket_summary": t.DisplayTitle(),
		}
		go p.mirror(context.WithoutCancel(ctx), p.resolutionURL, payload)
	}
	if p.codingAgentURL != "" && t.HasTag("coding") {
		go p.mirror(context.WithoutCancel(ctx), p.codingAgentURL, map[string]any{"event": "coding_agent.dispatch", "ticket": t.ToMap()})
	}
}

func mergeEvent(eventType string, data map[string]any) map[string]any {
	out := make(map[string]any, len(data)+2)
	for k, v := range data {
		out[k] = v
	}
	out["event"] = eventType
	out["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	return out
}

// mirror best-effort POSTs payload to url. Failures are logged and
// discarded; external delivery must never fail the caller.
func (p *Publisher) mirror(ctx context.Context, url string, payload map[string]any) {
	body, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("webhook mirror: encode failed", slog.Any("err", err))
		return
	}
	ctx, cancel := context.WithTimeout(ctx, MirrorTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		p.logger.Error("webhook mirror: build request failed", slog.Any("err", err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		p.logger.Error("webhook mirror: request failed", slog.String("url", url), slog.Any("err", err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		p.logger.Error("webhook mirror: non-2xx response", slog.String("url", url), slog.Int("status", resp.StatusCode))
	}
}

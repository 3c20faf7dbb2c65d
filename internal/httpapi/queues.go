package httpapi

import (
	"net/http"

	"github.com/ticketflow/ticketd/internal/queue"
	"github.com/ticketflow/ticketd/internal/ticket"
)

// handleListQueues returns every queue's stats snapshot.
func (s *Server) handleListQueues(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctx.Queue.GetAllQueueStats())
}

// handleGetQueue returns one queue's full membership (insertion order)
// plus its stats.
func (s *Server) handleGetQueue(w http.ResponseWriter, r *http.Request) {
	q, ok := parseQueueName(r.PathValue("name"))
	if !ok {
		writeError(w, s.logger(), validationErrorf("unknown queue %q", r.PathValue("name")))
		return
	}
	ids := s.ctx.Queue.PeekQueue(q, 0, false)
	writeJSON(w, http.StatusOK, map[string]any{
		"queue":   string(q),
		"tickets": ids,
		"stats":   s.ctx.Queue.GetQueueStats(q),
	})
}

// handlePeekQueue returns the top n ticket ids in score order without
// mutation.
func (s *Server) handlePeekQueue(w http.ResponseWriter, r *http.Request) {
	q, ok := parseQueueName(r.PathValue("name"))
	if !ok {
		writeError(w, s.logger(), validationErrorf("unknown queue %q", r.PathValue("name")))
		return
	}
	n := atoiDefault(r.URL.Query().Get("n"), 10)
	priorityBased := r.URL.Query().Get("priority_based") != "false"

	ids := s.ctx.Queue.PeekQueue(q, n, priorityBased)
	writeJSON(w, http.StatusOK, map[string]any{"queue": string(q), "tickets": ids})
}

// handleQueueStats returns count/avg-wait/oldest/newest for one queue.
func (s *Server) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	q, ok := parseQueueName(r.PathValue("name"))
	if !ok {
		writeError(w, s.logger(), validationErrorf("unknown queue %q", r.PathValue("name")))
		return
	}
	writeJSON(w, http.StatusOK, s.ctx.Queue.GetQueueStats(q))
}

// DequeueRequest selects dequeue ordering.
type DequeueRequest struct {
	PriorityBased *bool `json:"priority_based,omitempty"`
}

// handleDequeue removes and returns the next ticket id from a queue.
// This is the raw queue primitive: it does not touch the ticket's own
// status/queue fields; higher-level orchestration (distribution claim)
// is responsible for keeping both in step.
func (s *Server) handleDequeue(w http.ResponseWriter, r *http.Request) {
	q, ok := parseQueueName(r.PathValue("name"))
	if !ok {
		writeError(w, s.logger(), validationErrorf("unknown queue %q", r.PathValue("name")))
		return
	}
	var req DequeueRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, s.logger(), err)
			return
		}
	}
	priorityBased := true
	if req.PriorityBased != nil {
		priorityBased = *req.PriorityBased
	}

	id, ok := s.ctx.Queue.Dequeue(q, priorityBased)
	if !ok {
		writeError(w, s.logger(), notFoundErrorf("queue %q is empty", q))
		return
	}

	stats := s.ctx.Queue.GetQueueStats(q)
	s.ctx.Publisher.PublishQueueStats(r.Context(), string(q), map[string]any{
		"queue":                     string(q),
		"count":                     stats.Count,
		"avg_wait_time_seconds":     stats.AvgWaitSeconds,
		"oldest_ticket_age_seconds": stats.OldestTicketAgeSeconds,
	})
	writeJSON(w, http.StatusOK, map[string]any{"ticket_id": id, "queue": string(q)})
}

// MoveQueueRequest is the body of the atomic cross-queue move endpoint.
type MoveQueueRequest struct {
	TicketID string `json:"ticket_id" validate:"required"`
	From     string `json:"from" validate:"required"`
	To       string `json:"to" validate:"required"`
	Reason   string `json:"reason,omitempty"`
	Actor    string `json:"actor,omitempty"`
}

// handleMoveQueue moves a ticket between queues. The ticket's own
// status is advanced through the legal-transition table first (so an
// illegal move never partially mutates queue state), then the queue
// manager's bookkeeping follows.
func (s *Server) handleMoveQueue(w http.ResponseWriter, r *http.Request) {
	var req MoveQueueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.logger(), err)
		return
	}
	if err := validateStruct(req); err != nil {
		writeError(w, s.logger(), err)
		return
	}

	from, ok := parseQueueName(req.From)
	if !ok {
		writeError(w, s.logger(), validationErrorf("unknown from-queue %q", req.From))
		return
	}
	to, ok := parseQueueName(req.To)
	if !ok {
		writeError(w, s.logger(), validationErrorf("unknown to-queue %q", req.To))
		return
	}

	t, ok := s.ctx.Repo.Get(req.TicketID)
	if !ok {
		writeError(w, s.logger(), notFoundErrorf("ticket %q not found", req.TicketID))
		return
	}

	if err := t.MoveToQueue(to); err != nil {
		writeError(w, s.logger(), err)
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = "Manual queue move"
	}
	moved := s.ctx.Queue.MoveTicket(t, from, to, reason, req.Actor)
	if !moved {
		writeError(w, s.logger(), notFoundErrorf("ticket %q is not in queue %q", req.TicketID, from))
		return
	}

	s.ctx.Repo.Save(t)
	s.ctx.Publisher.PublishTicketMoved(r.Context(), t, from, to, reason)
	writeJSON(w, http.StatusOK, t.ToMap())
}

// handleAuditLog returns the tail of the queue manager's audit log,
// optionally filtered by ticket.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	ticketID := r.URL.Query().Get("ticket_id")
	limit := atoiDefault(r.URL.Query().Get("limit"), 100)
	entries := s.ctx.Queue.GetAuditLog(ticketID, limit)
	if entries == nil {
		entries = []queue.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// handleTicketPosition reports where a ticket currently sits and the
// estimated wait at that position.
func (s *Server) handleTicketPosition(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.ctx.Repo.Exists(id) {
		writeError(w, s.logger(), notFoundErrorf("ticket %q not found", id))
		return
	}
	q, position, ok := s.ctx.Queue.GetQueuePosition(id)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"ticket_id": id, "queued": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ticket_id":              id,
		"queued":                 true,
		"queue":                  string(q),
		"position":               position,
		"estimated_wait_seconds": s.ctx.Queue.EstimateWaitTime(q, position).Seconds(),
	})
}

func parseQueueName(s string) (ticket.Queue, bool) {
	q := ticket.Queue(s)
	for _, candidate := range ticket.AllQueues {
		if candidate == q {
			return q, true
		}
	}
	return "", false
}

package httpapi

import (
	"net/http"

	"github.com/ticketflow/ticketd/internal/ticket"
)

// ClaimRequest claims a ticket out of ASSIGNMENT for an agent.
type ClaimRequest struct {
	TicketID string `json:"ticket_id,omitempty"`
	AgentID  string `json:"agent_id" validate:"required"`
}

// handleClaim assigns a ticket to the requesting agent and advances it
// into ACTIVE/IN_PROGRESS. If no ticket_id is given, the highest-priority
// entry is popped off ASSIGNMENT.
func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req ClaimRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.logger(), err)
		return
	}
	if err := validateStruct(req); err != nil {
		writeError(w, s.logger(), err)
		return
	}

	ticketID := req.TicketID
	poppedViaDequeue := ticketID == ""
	if poppedViaDequeue {
		id, ok := s.ctx.Queue.Dequeue(ticket.QueueAssignment, true)
		if !ok {
			writeError(w, s.logger(), notFoundErrorf("no tickets available in ASSIGNMENT"))
			return
		}
		ticketID = id
	}

	t, ok := s.ctx.Repo.Get(ticketID)
	if !ok {
		writeError(w, s.logger(), notFoundErrorf("ticket %q not found", ticketID))
		return
	}

	from := t.CurrentQueue
	if err := t.MoveToQueue(ticket.QueueActive); err != nil {
		writeError(w, s.logger(), err)
		return
	}
	t.AssigneeID = req.AgentID

	if poppedViaDequeue {
		// Dequeue already removed the entry from ASSIGNMENT; just add
		// the new ACTIVE residency.
		s.ctx.Queue.Enqueue(r.Context(), t, ticket.QueueActive, "Claimed by agent", req.AgentID)
	} else {
		// the entry is still sitting wherever it was (normally
		// ASSIGNMENT); move it properly so no stale entry is left behind.
		s.ctx.Queue.MoveTicket(t, from, ticket.QueueActive, "Claimed by agent", req.AgentID)
	}
	s.ctx.Tracker.Assign(req.AgentID, ticketID)
	s.ctx.Repo.Save(t)

	s.ctx.Publisher.PublishTicketAssigned(r.Context(), t, req.AgentID)
	s.ctx.Publisher.PublishTicketMoved(r.Context(), t, from, ticket.QueueActive, "Claimed by agent")
	writeJSON(w, http.StatusOK, t.ToMap())
}

// AssignRequest directly assigns a ticket to an agent.
type AssignRequest struct {
	TicketID string `json:"ticket_id" validate:"required"`
	AgentID  string `json:"agent_id" validate:"required"`
}

// handleAssign calls the ticket's assign() semantics: it promotes
// INBOX/TRIAGE_PENDING tickets to ASSIGNED/ASSIGNMENT, and otherwise
// only changes the assignee field.
func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.logger(), err)
		return
	}
	if err := validateStruct(req); err != nil {
		writeError(w, s.logger(), err)
		return
	}

	t, ok := s.ctx.Repo.Get(req.TicketID)
	if !ok {
		writeError(w, s.logger(), notFoundErrorf("ticket %q not found", req.TicketID))
		return
	}

	from := t.CurrentQueue
	_ = t.Assign(req.AgentID)
	to := t.CurrentQueue

	if from != to {
		s.ctx.Queue.MoveTicket(t, from, to, "Assigned to agent", req.AgentID)
	}
	s.ctx.Tracker.Assign(req.AgentID, req.TicketID)
	s.ctx.Repo.Save(t)

	s.ctx.Publisher.PublishTicketAssigned(r.Context(), t, req.AgentID)
	if from != to {
		s.ctx.Publisher.PublishTicketMoved(r.Context(), t, from, to, "Assigned to agent")
	}
	writeJSON(w, http.StatusOK, t.ToMap())
}

// ReleaseRequest releases a claimed ticket back to the pool.
type ReleaseRequest struct {
	TicketID string `json:"ticket_id" validate:"required"`
	AgentID  string `json:"agent_id" validate:"required"`
	Retriage bool   `json:"retriage,omitempty"`
}

// handleRelease requires the releasing agent to be the current owner,
// answering 403 otherwise. retriage=true clears the AI data before
// re-enqueuing into INBOX so the fan-out starts clean and actually
// re-fires.
func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	var req ReleaseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.logger(), err)
		return
	}
	if err := validateStruct(req); err != nil {
		writeError(w, s.logger(), err)
		return
	}

	t, ok := s.ctx.Repo.Get(req.TicketID)
	if !ok {
		writeError(w, s.logger(), notFoundErrorf("ticket %q not found", req.TicketID))
		return
	}
	if owner, ok := s.ctx.Tracker.FindTicketAgent(req.TicketID); ok && owner != req.AgentID {
		writeError(w, s.logger(), forbiddenErrorf("ticket %q is owned by a different agent", req.TicketID))
		return
	}

	from := t.CurrentQueue
	t.Unassign()
	s.ctx.Tracker.Unassign(req.TicketID)

	if req.Retriage {
		t.ClearAIData()
		s.ctx.Repo.Save(t)
		s.ctx.Queue.RemoveFromQueue(req.TicketID, from)
		s.ctx.Queue.Enqueue(r.Context(), t, ticket.QueueInbox, "Released for re-triage", req.AgentID)
	} else {
		s.ctx.Queue.MoveTicket(t, from, ticket.QueueInbox, "Released by agent", req.AgentID)
		s.ctx.Repo.Save(t)
	}

	s.ctx.Publisher.PublishTicketMoved(r.Context(), t, from, ticket.QueueInbox, "Released by agent")
	writeJSON(w, http.StatusOK, t.ToMap())
}

// TransferRequest reassigns a ticket between two agents.
type TransferRequest struct {
	TicketID    string `json:"ticket_id" validate:"required"`
	FromAgentID string `json:"from_agent_id" validate:"required"`
	ToAgentID   string `json:"to_agent_id" validate:"required"`
}

// handleTransfer requires the caller to name the actual current owner,
// answering 403 on a mismatch.
func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.logger(), err)
		return
	}
	if err := validateStruct(req); err != nil {
		writeError(w, s.logger(), err)
		return
	}

	t, ok := s.ctx.Repo.Get(req.TicketID)
	if !ok {
		writeError(w, s.logger(), notFoundErrorf("ticket %q not found", req.TicketID))
		return
	}
	if owner, ok := s.ctx.Tracker.FindTicketAgent(req.TicketID); !ok || owner != req.FromAgentID {
		writeError(w, s.logger(), forbiddenErrorf("ticket %q is not owned by agent %q", req.TicketID, req.FromAgentID))
		return
	}

	t.AssigneeID = req.ToAgentID
	s.ctx.Tracker.Assign(req.ToAgentID, req.TicketID)
	s.ctx.Repo.Save(t)
	s.ctx.Publisher.PublishTicketAssigned(r.Context(), t, req.ToAgentID)
	writeJSON(w, http.StatusOK, t.ToMap())
}

// handleAvailable returns the classifier roster snapshot, refreshed
// with each agent's current load.
func (s *Server) handleAvailable(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"agents": s.ctx.Roster.AvailableAgents()})
}

// handleMyTickets returns the full ticket objects owned by an agent.
func (s *Server) handleMyTickets(w http.ResponseWriter, r *http.Request) {
	agentID := r.URL.Query().Get("agent_id")
	if agentID == "" {
		writeError(w, s.logger(), validationErrorf("agent_id is required"))
		return
	}
	ids := s.ctx.Tracker.GetAgentTickets(agentID)
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		if t, ok := s.ctx.Repo.Get(id); ok {
			out = append(out, t.ToMap())
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tickets": out})
}

// handleAgentStats returns an agent's current ticket load.
func (s *Server) handleAgentStats(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("agent_id")
	writeJSON(w, http.StatusOK, map[string]any{
		"agent_id":     agentID,
		"ticket_count": s.ctx.Tracker.GetAgentTicketCount(agentID),
	})
}

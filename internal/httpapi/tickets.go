package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/ticketflow/ticketd/internal/classifier"
	"github.com/ticketflow/ticketd/internal/repository"
	"github.com/ticketflow/ticketd/internal/ticket"
)

// handleGetTicket returns a single ticket by id.
func (s *Server) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	t, ok := s.ctx.Repo.Get(r.PathValue("id"))
	if !ok {
		writeError(w, s.logger(), notFoundErrorf("ticket %q not found", r.PathValue("id")))
		return
	}
	writeJSON(w, http.StatusOK, t.ToMap())
}

// handleListTickets returns a filtered, paginated ticket list.
// total reflects the filtered result set, not the repository's global
// cardinality.
func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := repository.Filters{
		Status:   ticket.Status(q.Get("status")),
		Queue:    ticket.Queue(q.Get("queue")),
		Priority: ticket.Priority(q.Get("priority")),
		Category: ticket.Category(q.Get("category")),
		Assignee: q.Get("assignee"),
	}
	limit := atoiDefault(q.Get("limit"), 50)
	offset := atoiDefault(q.Get("offset"), 0)

	page, total := s.ctx.Repo.Find(filters, limit, offset)
	out := make([]map[string]any, len(page))
	for i, t := range page {
		out[i] = t.ToMap()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tickets": out,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// PatchRequest is a partial ticket update.
type PatchRequest struct {
	Category    *string  `json:"category,omitempty"`
	Priority    *string  `json:"priority,omitempty"`
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Status      *string  `json:"status,omitempty"`
}

// handlePatchTicket applies a partial update. Every status value,
// including CLOSED, is enforced through the legal-transition table;
// PATCH never bypasses it, so closing still requires RESOLVED first.
func (s *Server) handlePatchTicket(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	t, ok := s.ctx.Repo.Get(id)
	if !ok {
		writeError(w, s.logger(), notFoundErrorf("ticket %q not found", id))
		return
	}

	var req PatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.logger(), err)
		return
	}

	if req.Category != nil {
		if c, ok := ticket.ValidCategory(*req.Category); ok {
			t.SetCategory(c)
		} else {
			writeError(w, s.logger(), validationErrorf("unknown category %q", *req.Category))
			return
		}
	}
	if req.Priority != nil {
		if p, ok := ticket.ValidPriority(*req.Priority); ok {
			t.SetPriority(p)
		} else {
			writeError(w, s.logger(), validationErrorf("unknown priority %q", *req.Priority))
			return
		}
	}
	if req.Title != nil {
		t.SetTitle(*req.Title)
	}
	if req.Description != nil {
		t.SetDescription(*req.Description)
	}
	for _, tag := range req.Tags {
		t.AddTag(tag)
	}

	if req.Status != nil {
		if err := s.applyPatchedStatus(r, t, ticket.Status(*req.Status)); err != nil {
			writeError(w, s.logger(), err)
			return
		}
	}

	s.ctx.Repo.Save(t)
	s.ctx.Publisher.PublishTicketUpdated(r.Context(), t, map[string]any{"ticket": t.ToMap()})
	writeJSON(w, http.StatusOK, t.ToMap())
}

// applyPatchedStatus moves t to targetStatus through the legal-transition
// table and keeps the queue manager's bookkeeping in step, mirroring
// any other queue transition rather than writing the field directly.
func (s *Server) applyPatchedStatus(r *http.Request, t *ticket.Ticket, targetStatus ticket.Status) error {
	fromQueue := t.CurrentQueue

	switch targetStatus {
	case ticket.StatusClosed:
		if err := t.Close(); err != nil {
			return err
		}
	case ticket.StatusResolved:
		if err := t.MarkResolved(ticket.ResolutionManual); err != nil {
			return err
		}
	default:
		q, ok := ticket.QueueForStatus(targetStatus)
		if !ok {
			return validationErrorf("status %q cannot be set directly", targetStatus)
		}
		if err := t.MoveToQueue(q); err != nil {
			return err
		}
	}

	toQueue := t.CurrentQueue
	if fromQueue != toQueue {
		s.ctx.Queue.MoveTicket(t, fromQueue, toQueue, "PATCH status update", "")
		s.ctx.Publisher.PublishTicketMoved(r.Context(), t, fromQueue, toQueue, "PATCH status update")
	}
	return nil
}

// handleDeleteTicket removes a ticket from the repository and from
// whichever queue it resides in.
func (s *Server) handleDeleteTicket(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	t, ok := s.ctx.Repo.Get(id)
	if !ok {
		writeError(w, s.logger(), notFoundErrorf("ticket %q not found", id))
		return
	}
	s.ctx.Queue.RemoveFromQueue(id, t.CurrentQueue)
	s.ctx.Repo.Delete(id)
	s.ctx.Tracker.Unassign(id)
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// TriageCompleteRequest carries a human agent's manual triage decision.
type TriageCompleteRequest struct {
	Category   string   `json:"category,omitempty"`
	Priority   string   `json:"priority,omitempty"`
	AssigneeID string   `json:"assignee_id,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// handleTriageComplete finishes a manual triage, valid only when the
// ticket currently sits in TRIAGE.
func (s *Server) handleTriageComplete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	t, ok := s.ctx.Repo.Get(id)
	if !ok {
		writeError(w, s.logger(), notFoundErrorf("ticket %q not found", id))
		return
	}
	if t.CurrentQueue != ticket.QueueTriage {
		writeError(w, s.logger(), validationErrorf("ticket %q is not in the TRIAGE queue", id))
		return
	}

	var req TriageCompleteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.logger(), err)
		return
	}
	if req.Category != "" {
		if c, ok := ticket.ValidCategory(req.Category); ok {
			t.SetCategory(c)
		}
	}
	if req.Priority != "" {
		if p, ok := ticket.ValidPriority(req.Priority); ok {
			t.SetPriority(p)
		}
	}
	for _, tag := range req.Tags {
		t.AddTag(tag)
	}

	from := t.CurrentQueue
	if req.AssigneeID != "" {
		_ = t.Assign(req.AssigneeID)
		s.ctx.Tracker.Assign(req.AssigneeID, id)
	} else {
		if err := t.MoveToQueue(ticket.QueueAssignment); err != nil {
			writeError(w, s.logger(), err)
			return
		}
	}

	s.ctx.Queue.MoveTicket(t, from, ticket.QueueAssignment, "Manual triage complete", "")
	s.ctx.Repo.Save(t)
	s.ctx.Publisher.PublishTicketMoved(r.Context(), t, from, ticket.QueueAssignment, "Manual triage complete")
	if req.AssigneeID != "" {
		s.ctx.Publisher.PublishTicketAssigned(r.Context(), t, req.AssigneeID)
	}
	writeJSON(w, http.StatusOK, t.ToMap())
}

// ResolveRequest carries the resolution decision.
type ResolveRequest struct {
	Action     string         `json:"action,omitempty"`
	SourceData map[string]any `json:"source_data,omitempty"`
}

// resolutionActions maps the request's lowercase action names onto the
// resolution enum.
var resolutionActions = map[string]ticket.ResolutionAction{
	"manual":                ticket.ResolutionManual,
	"faq_link":              ticket.ResolutionFAQLink,
	"auto_response":         ticket.ResolutionAutoResponse,
	"reboot":                ticket.ResolutionReboot,
	"config_change":         ticket.ResolutionConfigChange,
	"duplicate_close":       ticket.ResolutionDuplicateClose,
	"self_service_redirect": ticket.ResolutionSelfServiceRedirect,
	"none":                  ticket.ResolutionNone,
}

// handleResolve marks the ticket RESOLVED and publishes ticket.resolved
// for the outbound workflow engine.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	t, ok := s.ctx.Repo.Get(id)
	if !ok {
		writeError(w, s.logger(), notFoundErrorf("ticket %q not found", id))
		return
	}

	var req ResolveRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, s.logger(), err)
			return
		}
	}

	action := ticket.ResolutionManual
	if req.Action != "" {
		mapped, ok := resolutionActions[strings.ToLower(req.Action)]
		if !ok {
			writeError(w, s.logger(), validationErrorf("unknown resolution action %q", req.Action))
			return
		}
		action = mapped
	}

	from := t.CurrentQueue
	if err := t.MarkResolved(action); err != nil {
		writeError(w, s.logger(), err)
		return
	}

	s.ctx.Queue.MoveTicket(t, from, ticket.QueueResolution, "Ticket resolved", "")
	s.ctx.Repo.Save(t)
	s.ctx.Publisher.PublishTicketMoved(r.Context(), t, from, ticket.QueueResolution, "Ticket resolved")
	s.ctx.Publisher.PublishTicketResolved(r.Context(), t, req.SourceData)

	writeJSON(w, http.StatusOK, t.ToMap())
}

// analyzeRequest carries optional extra context for the richer
// classifier endpoints.
type analyzeRequest struct {
	Context map[string]any `json:"context,omitempty"`
}

// handleAnalyzeCode is a thin wrapper over the classifier's code-review
// collaborator call. Failures are logged and swallowed exactly like
// triage, never failing the request: the response just reports
// unavailability.
func (s *Server) handleAnalyzeCode(w http.ResponseWriter, r *http.Request) {
	s.handleAnalyze(w, r, s.ctx.Classifier.AnalyzeCode)
}

// handleAnalyzeSupport is a thin wrapper over the classifier's support
// collaborator call.
func (s *Server) handleAnalyzeSupport(w http.ResponseWriter, r *http.Request) {
	s.handleAnalyze(w, r, s.ctx.Classifier.AnalyzeSupport)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request, call func(ctx context.Context, t *ticket.Ticket, extra map[string]any) (*classifier.Result, error)) {
	id := r.PathValue("id")
	t, ok := s.ctx.Repo.Get(id)
	if !ok {
		writeError(w, s.logger(), notFoundErrorf("ticket %q not found", id))
		return
	}

	var req analyzeRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, s.logger(), err)
			return
		}
	}

	result, err := call(r.Context(), t, req.Context)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"available": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"available": true, "result": result})
}

package httpapi

import (
	"net/http"

	"github.com/ticketflow/ticketd/internal/ticket"
)

// IngestRequest is the ingress body.
type IngestRequest struct {
	Source      string         `json:"source" validate:"required,oneof=EMAIL DISCORD GITHUB FORM WEBHOOK"`
	ContentType string         `json:"content_type" validate:"required"`
	Payload     map[string]any `json:"payload" validate:"required"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// handleIngest translates an external channel's normalised payload
// into a ticket, saves it, and enqueues it into INBOX, which fires the
// automatic triage fan-out.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.logger(), err)
		return
	}
	if err := validateStruct(req); err != nil {
		writeError(w, s.logger(), err)
		return
	}

	contentMap := make(map[string]any, len(req.Payload)+1)
	for k, v := range req.Payload {
		contentMap[k] = v
	}
	if _, ok := contentMap["type"]; !ok {
		contentMap["type"] = req.ContentType
	}

	content, err := ticket.ContentFromMap(contentMap)
	if err != nil {
		writeError(w, s.logger(), validationErrorf("%v", err))
		return
	}

	// An unrecognised priority string in metadata is ignored the same
	// way an invalid classifier enum is: the ticket keeps its default.
	priority, _ := ticket.ValidPriority(stringField(req.Metadata, "priority"))
	title := stringField(req.Metadata, "title")
	description := stringField(req.Metadata, "description")

	t := ticket.New(ticket.Source(req.Source), content, priority, title, description)
	s.ctx.Repo.Save(t)

	position := s.ctx.Queue.Enqueue(r.Context(), t, ticket.QueueInbox, "Ticket ingested", "")
	s.ctx.Publisher.PublishTicketCreated(r.Context(), t)

	estimate := s.ctx.Queue.EstimateWaitTime(ticket.QueueInbox, position)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"ticket_id":                t.ID,
		"status":                   string(t.Status),
		"queue":                    string(t.CurrentQueue),
		"position_in_queue":        position,
		"estimated_time_to_triage": estimate.Seconds(),
		"created_at":               t.CreatedAt,
	})
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

package httpapi

import (
	"net/http"
	"testing"
)

func TestListQueuesCoversAllFive(t *testing.T) {
	s := newTestServer(t)
	h := s.Router()

	rec := doJSON(t, h, http.MethodGet, "/api/queues", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	for _, q := range []string{"INBOX", "TRIAGE", "ASSIGNMENT", "ACTIVE", "RESOLUTION"} {
		if _, ok := body[q]; !ok {
			t.Fatalf("expected queue %q in response, got %v", q, body)
		}
	}
}

func TestGetQueueUnknownName(t *testing.T) {
	s := newTestServer(t)
	h := s.Router()

	rec := doJSON(t, h, http.MethodGet, "/api/queues/NOT_A_QUEUE", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown queue name, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestMoveQueueRejectsIllegalTransition(t *testing.T) {
	s := newTestServer(t)
	h := s.Router()
	id := ingestOne(t, h)

	// A fresh ticket sits in INBOX; ACTIVE is not a legal direct target.
	rec := doJSON(t, h, http.MethodPost, "/api/queues/move", map[string]any{
		"ticket_id": id,
		"from":      "INBOX",
		"to":        "ACTIVE",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for illegal move, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAuditLogRecordsMoves(t *testing.T) {
	s := newTestServer(t)
	h := s.Router()
	id := ingestOne(t, h)

	doJSON(t, h, http.MethodPost, "/api/queues/move", map[string]any{
		"ticket_id": id, "from": "INBOX", "to": "TRIAGE", "reason": "manual escalation",
	})

	rec := doJSON(t, h, http.MethodGet, "/api/queues/audit?ticket_id="+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("audit log failed: %d %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	entries, _ := body["entries"].([]any)
	if len(entries) != 2 { // initial enqueue + the move
		t.Fatalf("expected 2 audit entries, got %d: %v", len(entries), entries)
	}
}

func TestTicketPositionReportsQueueAndEstimate(t *testing.T) {
	s := newTestServer(t)
	h := s.Router()
	id := ingestOne(t, h)

	rec := doJSON(t, h, http.MethodGet, "/api/tickets/"+id+"/position", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("position failed: %d %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["queued"] != true || body["queue"] != "INBOX" {
		t.Fatalf("expected queued in INBOX, got %v", body)
	}
	if body["position"].(float64) != 1 {
		t.Fatalf("expected position 1, got %v", body["position"])
	}
	if body["estimated_wait_seconds"].(float64) != 5 { // 1 x INBOX's 5s constant
		t.Fatalf("expected 5s estimate, got %v", body["estimated_wait_seconds"])
	}
}

func TestMoveQueueAppliesLegalTransition(t *testing.T) {
	s := newTestServer(t)
	h := s.Router()
	id := ingestOne(t, h)

	rec := doJSON(t, h, http.MethodPost, "/api/queues/move", map[string]any{
		"ticket_id": id,
		"from":      "INBOX",
		"to":        "TRIAGE",
		"reason":    "manual escalation",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for legal move, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["current_queue"] != "TRIAGE" {
		t.Fatalf("expected current_queue TRIAGE, got %v", body["current_queue"])
	}
}

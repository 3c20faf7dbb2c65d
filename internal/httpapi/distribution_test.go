package httpapi

import (
	"net/http"
	"testing"
)

// moveToAssignment escalates a freshly-ingested ticket through the
// legal path INBOX -> ASSIGNMENT so claim/assign tests have something
// to work with without depending on the (network-dependent) automatic
// triage fan-out.
func moveToAssignment(t *testing.T, h http.Handler, id string) {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/queues/move", map[string]any{
		"ticket_id": id, "from": "INBOX", "to": "TRIAGE",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("move to TRIAGE failed: %d %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, h, http.MethodPost, "/api/tickets/"+id+"/triage_complete", map[string]any{
		"category": "TECHNICAL_SUPPORT",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("triage_complete failed: %d %s", rec.Code, rec.Body.String())
	}
}

func TestClaimAdvancesTicketToActive(t *testing.T) {
	s := newTestServer(t)
	h := s.Router()
	id := ingestOne(t, h)
	moveToAssignment(t, h, id)

	rec := doJSON(t, h, http.MethodPost, "/api/distribution/claim", map[string]any{
		"ticket_id": id, "agent_id": "agent-1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("claim failed: %d %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["current_queue"] != "ACTIVE" || body["status"] != "IN_PROGRESS" {
		t.Fatalf("expected ACTIVE/IN_PROGRESS, got %v/%v", body["current_queue"], body["status"])
	}
	if body["assignee_id"] != "agent-1" {
		t.Fatalf("expected assignee_id agent-1, got %v", body["assignee_id"])
	}
}

func TestReleaseRejectsNonOwner(t *testing.T) {
	s := newTestServer(t)
	h := s.Router()
	id := ingestOne(t, h)
	moveToAssignment(t, h, id)

	doJSON(t, h, http.MethodPost, "/api/distribution/claim", map[string]any{"ticket_id": id, "agent_id": "agent-1"})

	rec := doJSON(t, h, http.MethodPost, "/api/distribution/release", map[string]any{
		"ticket_id": id, "agent_id": "agent-2",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner release, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestReleaseWithRetriageClearsAIDataAndReturnsToInbox(t *testing.T) {
	s := newTestServer(t)
	h := s.Router()
	id := ingestOne(t, h)
	moveToAssignment(t, h, id)
	doJSON(t, h, http.MethodPost, "/api/distribution/claim", map[string]any{"ticket_id": id, "agent_id": "agent-1"})

	rec := doJSON(t, h, http.MethodPost, "/api/distribution/release", map[string]any{
		"ticket_id": id, "agent_id": "agent-1", "retriage": true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("release failed: %d %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["current_queue"] != "INBOX" || body["status"] != "INBOX" {
		t.Fatalf("expected INBOX/INBOX after release, got %v/%v", body["current_queue"], body["status"])
	}
	if body["assignee_id"] != "" {
		t.Fatalf("expected assignee cleared, got %v", body["assignee_id"])
	}
	// moveToAssignment set category TECHNICAL_SUPPORT; re-triage clears it.
	if body["category"] != "" {
		t.Fatalf("expected category cleared by re-triage, got %v", body["category"])
	}
}

func TestTransferRejectsWrongFromAgent(t *testing.T) {
	s := newTestServer(t)
	h := s.Router()
	id := ingestOne(t, h)
	moveToAssignment(t, h, id)
	doJSON(t, h, http.MethodPost, "/api/distribution/claim", map[string]any{"ticket_id": id, "agent_id": "agent-1"})

	rec := doJSON(t, h, http.MethodPost, "/api/distribution/transfer", map[string]any{
		"ticket_id": id, "from_agent_id": "agent-9", "to_agent_id": "agent-2",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for wrong from_agent_id, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestTransferMovesOwnership(t *testing.T) {
	s := newTestServer(t)
	h := s.Router()
	id := ingestOne(t, h)
	moveToAssignment(t, h, id)
	doJSON(t, h, http.MethodPost, "/api/distribution/claim", map[string]any{"ticket_id": id, "agent_id": "agent-1"})

	rec := doJSON(t, h, http.MethodPost, "/api/distribution/transfer", map[string]any{
		"ticket_id": id, "from_agent_id": "agent-1", "to_agent_id": "agent-2",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("transfer failed: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/api/distribution/agent-stats/agent-2", nil)
	body := decodeBody(t, rec)
	if body["ticket_count"].(float64) != 1 {
		t.Fatalf("expected agent-2 to own 1 ticket after transfer, got %v", body["ticket_count"])
	}
}

func TestAvailableReturnsStaticRoster(t *testing.T) {
	s := newTestServer(t)
	h := s.Router()

	rec := doJSON(t, h, http.MethodGet, "/api/distribution/available", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("available failed: %d %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	agents, ok := body["agents"].([]any)
	if !ok || len(agents) != 7 {
		t.Fatalf("expected the 7-agent static roster, got %v", body["agents"])
	}
	first, ok := agents[0].(map[string]any)
	if !ok || first["id"] != "user-1" || first["name"] != "IT Person" {
		t.Fatalf("expected user-1/IT Person first, got %v", agents[0])
	}
}

func TestMyTicketsRequiresAgentID(t *testing.T) {
	s := newTestServer(t)
	h := s.Router()

	rec := doJSON(t, h, http.MethodGet, "/api/distribution/my-tickets", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without agent_id, got %d: %s", rec.Code, rec.Body.String())
	}
}
